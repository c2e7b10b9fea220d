// Package parser reads raw RFC 5322 messages and extracts the headers and
// body alternatives the cleaning engine works on.
package parser

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
)

var (
	emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

	wordDecoder = &mime.WordDecoder{CharsetReader: charsetReader}
)

// headerGetter is satisfied by both mail.Header and textproto.MIMEHeader.
type headerGetter interface {
	Get(key string) string
}

// EmailParser implements email parsing functionality
type EmailParser struct{}

// NewEmailParser creates a new EmailParser instance
func NewEmailParser() *EmailParser {
	return &EmailParser{}
}

// Parse parses a raw email into a ParsedEmail structure. A body that cannot
// be fully decoded does not fail the parse; whatever was extracted is kept.
func (p *EmailParser) Parse(raw []byte) (*ParsedEmail, error) {
	if len(raw) == 0 {
		return nil, &ParseError{
			Stage:   "parse",
			Message: "empty email data",
			Raw:     raw,
		}
	}

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, &ParseError{
			Stage:   "parse",
			Message: fmt.Sprintf("failed to parse email: %v", err),
			Raw:     raw,
		}
	}

	fromAddress, fromName := p.extractFromHeader(msg.Header.Get(HeaderFrom))

	body, _ := p.ExtractBody(msg)

	parsed := &ParsedEmail{
		From:        fromAddress,
		FromName:    fromName,
		To:          p.extractToAddress(msg.Header.Get(HeaderTo)),
		Subject:     TruncateHeader(p.decodeHeader(msg.Header.Get(HeaderSubject))),
		MessageID:   extractMessageID(msg.Header.Get(HeaderMessageID)),
		InReplyTo:   extractMessageID(msg.Header.Get(HeaderInReplyTo)),
		BodyHTML:    body.HTML,
		BodyText:    body.Text,
		Headers:     p.ExtractHeaders(msg),
		Attachments: body.Attachments,
		SizeBytes:   int64(len(raw)),
		ReceivedAt:  time.Now().UTC(),
		RawEmail:    raw,
	}
	if parsed.Attachments == nil {
		parsed.Attachments = []Attachment{}
	}
	if sentAt, err := msg.Header.Date(); err == nil {
		sentAt = sentAt.UTC()
		parsed.SentAt = &sentAt
	}

	return parsed, nil
}

// ExtractHeaders returns the first value of every header, decoded and capped
// at MaxHeaderLength characters. Values carrying line breaks after decoding
// are dropped.
func (p *EmailParser) ExtractHeaders(msg *mail.Message) map[string]string {
	headers := make(map[string]string, len(msg.Header))

	for key, values := range msg.Header {
		if ContainsCRLFInjection(key) {
			continue
		}
		for _, value := range values {
			decoded := p.decodeHeader(value)
			if ContainsCRLFInjection(decoded) {
				continue
			}
			if _, exists := headers[key]; !exists {
				headers[key] = TruncateHeader(decoded)
			}
		}
	}

	return headers
}

// extractFromHeader extracts email address and display name from From header
func (p *EmailParser) extractFromHeader(from string) (address, name string) {
	if from == "" {
		return "", ""
	}

	addr, err := mail.ParseAddress(p.decodeHeader(from))
	if err != nil {
		return emailRegex.FindString(from), ""
	}

	return addr.Address, TruncateHeader(addr.Name)
}

// extractToAddress extracts the primary To address
func (p *EmailParser) extractToAddress(to string) string {
	if to == "" {
		return ""
	}

	to = p.decodeHeader(to)
	addrs, err := mail.ParseAddressList(to)
	if err != nil || len(addrs) == 0 {
		return emailRegex.FindString(to)
	}

	return addrs[0].Address
}

// decodeHeader decodes MIME encoded words in a header value, leaving the
// value untouched when it cannot be decoded.
func (p *EmailParser) decodeHeader(value string) string {
	if value == "" {
		return ""
	}

	decoded, err := wordDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

// extractMessageID returns the first message ID in value without its angle
// brackets.
func extractMessageID(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if start := strings.IndexByte(value, '<'); start >= 0 {
		if end := strings.IndexByte(value[start:], '>'); end > 0 {
			return TruncateHeader(value[start+1 : start+end])
		}
	}
	return TruncateHeader(strings.Fields(value)[0])
}

// ContainsCRLFInjection checks if a string contains CRLF injection attempts
func ContainsCRLFInjection(s string) bool {
	patterns := []string{
		"\r\n",
		"\r",
		"\n",
		"%0d%0a",
		"%0d",
		"%0a",
	}

	lower := strings.ToLower(s)
	for _, pattern := range patterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}

	return false
}

// TruncateHeader cuts a header value to MaxHeaderLength characters.
func TruncateHeader(value string) string {
	if utf8.RuneCountInString(value) <= MaxHeaderLength {
		return value
	}
	runes := []rune(value)
	return string(runes[:MaxHeaderLength])
}

// ExtractBody walks the message body and collects the first text/plain and
// text/html parts, decoding their transfer encoding and charset. Parts
// marked as attachments are recorded but not read into the body.
func (p *EmailParser) ExtractBody(msg *mail.Message) (Body, error) {
	var body Body
	err := p.walk(msg.Body, msg.Header, &body, 0)
	return body, err
}

func (p *EmailParser) walk(r io.Reader, header headerGetter, body *Body, depth int) error {
	contentType := header.Get(HeaderContentType)
	if contentType == "" {
		contentType = ContentTypePlain
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, params = ContentTypePlain, map[string]string{}
	}

	if depth > 0 && isAttachment(header, mediaType) {
		return p.recordAttachment(r, header, mediaType, params, body)
	}

	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		if depth >= maxMultipartDepth {
			return nil
		}
		boundary := params["boundary"]
		if boundary == "" {
			return fmt.Errorf("missing boundary for %s", mediaType)
		}

		reader := multipart.NewReader(r, boundary)
		for {
			part, err := reader.NextPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read %s part: %w", mediaType, err)
			}
			if err := p.walk(part, part.Header, body, depth+1); err != nil {
				return err
			}
		}

	case mediaType == ContentTypeHTML:
		if body.HTML != "" {
			return nil
		}
		content, err := readPart(r, header, params)
		if err != nil {
			return err
		}
		body.HTML = content

	case mediaType == ContentTypePlain || depth == 0:
		// An unknown top-level type is read as text.
		if body.Text != "" {
			return nil
		}
		content, err := readPart(r, header, params)
		if err != nil {
			return err
		}
		body.Text = content

	default:
		return p.recordAttachment(r, header, mediaType, params, body)
	}

	return nil
}

func (p *EmailParser) recordAttachment(r io.Reader, header headerGetter, mediaType string, params map[string]string, body *Body) error {
	size, err := io.Copy(io.Discard, r)
	if err != nil {
		return fmt.Errorf("read attachment: %w", err)
	}

	filename := params["name"]
	if _, dparams, err := mime.ParseMediaType(header.Get(HeaderDisposition)); err == nil && dparams["filename"] != "" {
		filename = dparams["filename"]
	}

	body.Attachments = append(body.Attachments, Attachment{
		Filename:    p.decodeHeader(filename),
		ContentType: mediaType,
		SizeBytes:   size,
	})
	return nil
}

func isAttachment(header headerGetter, mediaType string) bool {
	disposition, _, err := mime.ParseMediaType(header.Get(HeaderDisposition))
	if err == nil && disposition == "attachment" {
		return true
	}
	return !strings.HasPrefix(mediaType, "text/") && !strings.HasPrefix(mediaType, "multipart/")
}

// readPart reads a body part and converts it to UTF-8. Content that cannot
// be decoded is returned as it was received.
func readPart(r io.Reader, header headerGetter, params map[string]string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	if decoded, err := DecodeContent(data, header.Get(HeaderEncoding)); err == nil {
		data = decoded
	}
	if converted, err := ConvertCharset(data, params["charset"]); err == nil {
		data = converted
	}

	return string(data), nil
}

// DecodeContent decodes email content based on Content-Transfer-Encoding
func DecodeContent(data []byte, encoding string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case EncodingQuotedPrintable:
		decoded, err := io.ReadAll(quotedprintable.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("quoted-printable decode: %w", err)
		}
		return decoded, nil

	case EncodingBase64:
		cleaned := bytes.Map(func(r rune) rune {
			if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
				return -1
			}
			return r
		}, data)

		decoded := make([]byte, base64.StdEncoding.DecodedLen(len(cleaned)))
		n, err := base64.StdEncoding.Decode(decoded, cleaned)
		if err != nil {
			return nil, fmt.Errorf("base64 decode: %w", err)
		}
		return decoded[:n], nil

	default:
		// 7bit, 8bit, binary and unknown encodings pass through.
		return data, nil
	}
}

// ConvertCharset converts content from a source charset to UTF-8. Labels are
// resolved the way browsers resolve them, so latin1 maps to windows-1252.
func ConvertCharset(data []byte, charset string) ([]byte, error) {
	charset = strings.ToLower(strings.TrimSpace(charset))
	switch charset {
	case "", "utf-8", "utf8", "us-ascii", "ascii":
		return data, nil
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}

	converted, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("convert from %s: %w", charset, err)
	}
	return converted, nil
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(strings.ToLower(charset))
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

// IsParseError checks if an error is a ParseError
func IsParseError(err error) bool {
	var parseErr *ParseError
	return errors.As(err, &parseErr)
}

// GetParseErrorStage returns the stage where parsing failed
func GetParseErrorStage(err error) string {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return parseErr.Stage
	}
	return "unknown"
}
