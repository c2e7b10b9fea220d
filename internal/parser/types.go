package parser

import (
	"time"
)

// ParsedEmail is a raw message broken into the parts the cleaning engine
// and the preview need.
type ParsedEmail struct {
	From        string            `json:"from"`
	FromName    string            `json:"from_name"`
	To          string            `json:"to"`
	Subject     string            `json:"subject"`
	SentAt      *time.Time        `json:"sent_at,omitempty"`
	MessageID   string            `json:"message_id,omitempty"`
	InReplyTo   string            `json:"in_reply_to,omitempty"`
	BodyHTML    string            `json:"body_html"`
	BodyText    string            `json:"body_text"`
	Headers     map[string]string `json:"headers"`
	Attachments []Attachment      `json:"attachments"`
	SizeBytes   int64             `json:"size_bytes"`
	ReceivedAt  time.Time         `json:"received_at"`
	RawEmail    []byte            `json:"-"`
}

// Attachment describes a part that was skipped during body extraction.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// Body holds the text and HTML alternatives found in a message.
type Body struct {
	HTML        string
	Text        string
	Attachments []Attachment
}

// ParseError represents an error during email parsing
type ParseError struct {
	Stage   string `json:"stage"`   // Which parsing stage failed
	Message string `json:"message"` // Error description
	Raw     []byte `json:"-"`
}

// Error implements the error interface
func (e *ParseError) Error() string {
	return e.Message
}

// ContentType constants
const (
	ContentTypePlain       = "text/plain"
	ContentTypeHTML        = "text/html"
	ContentTypeMultiAlt    = "multipart/alternative"
	ContentTypeMultiMixed  = "multipart/mixed"
	ContentTypeOctetStream = "application/octet-stream"
)

// Encoding constants
const (
	EncodingQuotedPrintable = "quoted-printable"
	EncodingBase64          = "base64"
	Encoding7Bit            = "7bit"
	Encoding8Bit            = "8bit"
)

// Header constants
const (
	HeaderFrom        = "From"
	HeaderTo          = "To"
	HeaderSubject     = "Subject"
	HeaderMessageID   = "Message-Id"
	HeaderInReplyTo   = "In-Reply-To"
	HeaderContentType = "Content-Type"
	HeaderEncoding    = "Content-Transfer-Encoding"
	HeaderDisposition = "Content-Disposition"
)

// Limits
const (
	MaxHeaderLength = 1000 // characters kept per header value

	// maxMultipartDepth bounds recursion into nested multipart bodies.
	maxMultipartDepth = 10
)
