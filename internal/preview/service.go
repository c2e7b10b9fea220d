// Package preview builds what a mail client shows for a message: the
// cleaned reply, its thread segments and a safe rendering of the original.
// It owns the fallbacks the cleaning engine leaves to its callers.
package preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jaytaylor/html2text"

	"github.com/welldanyogia/mailclean/internal/logger"
	"github.com/welldanyogia/mailclean/internal/metrics"
	"github.com/welldanyogia/mailclean/internal/parser"
	"github.com/welldanyogia/mailclean/internal/sanitizer"
	"github.com/welldanyogia/mailclean/internal/thread"
)

// Source names where the preview text came from.
type Source string

const (
	SourceText        Source = "text"
	SourceHTML        Source = "html"
	SourceSummary     Source = "summary"
	SourcePlaceholder Source = "placeholder"
)

// DefaultPlaceholder is shown when neither the body nor a summary has text.
const DefaultPlaceholder = "(no preview available)"

// Input is a message body in the forms a provider may deliver it.
type Input struct {
	Text    string
	HTML    string
	Summary string
}

// Result is the preview of one message.
type Result struct {
	Cleaned      string           `json:"cleaned"`
	Segments     []thread.Segment `json:"segments"`
	ShowOriginal bool             `json:"show_original"`
	Source       Source           `json:"source"`
	SafeHTML     string           `json:"safe_html,omitempty"`
}

// Config holds preview settings
type Config struct {
	Placeholder string
}

// Service builds previews. It is safe for concurrent use.
type Service struct {
	parser      *parser.EmailParser
	html        sanitizer.HTMLSanitizer
	placeholder string
	logger      *slog.Logger
}

// NewService creates a preview service. A nil html sanitizer gets the
// default bluemonday policy.
func NewService(cfg Config, html sanitizer.HTMLSanitizer, log *slog.Logger) *Service {
	if html == nil {
		html = sanitizer.NewHTMLSanitizer()
	}
	if log == nil {
		log = slog.Default()
	}
	placeholder := cfg.Placeholder
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	return &Service{
		parser:      parser.NewEmailParser(),
		html:        html,
		placeholder: placeholder,
		logger:      log,
	}
}

// Build cleans and segments the message body. The plain text body is used
// when it has any text; otherwise the HTML body is converted to text. When
// cleaning leaves nothing, Cleaned falls back to the summary and then to the
// placeholder, and Source says which one was used.
func (s *Service) Build(ctx context.Context, in Input) Result {
	start := time.Now()
	defer metrics.ObserveDuration("preview", start)

	body, source := s.BodyText(in)
	cleaned := sanitizer.Clean(body)
	result := Result{
		Cleaned:      cleaned,
		Segments:     thread.Parse(body),
		ShowOriginal: sanitizer.HasSignificantCleaning(body, cleaned),
		Source:       source,
	}
	if in.HTML != "" {
		result.SafeHTML = s.html.Sanitize(in.HTML)
	}

	if cleaned == "" {
		if summary := strings.TrimSpace(in.Summary); summary != "" {
			result.Cleaned, result.Source = summary, SourceSummary
		} else {
			result.Cleaned, result.Source = s.placeholder, SourcePlaceholder
		}
		metrics.EngineEmptyResults.WithLabelValues(string(result.Source)).Inc()
	}

	s.record(ctx, result, len(body))
	return result
}

// BuildFromMessage parses a raw RFC 5322 message and builds its preview.
// When summary is empty the subject stands in for it.
func (s *Service) BuildFromMessage(ctx context.Context, raw []byte, summary string) (Result, *parser.ParsedEmail, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, nil, err
	}

	start := time.Now()
	parsed, err := s.parser.Parse(raw)
	metrics.ObserveDuration("parse", start)
	if err != nil {
		stage := parser.GetParseErrorStage(err)
		metrics.ParseErrors.WithLabelValues(stage).Inc()
		logger.WithCorrelationID(ctx, s.logger).Warn("message rejected by parser",
			slog.String("stage", stage),
			slog.Int("size_bytes", len(raw)),
			slog.String("error", err.Error()),
		)
		return Result{}, nil, fmt.Errorf("parse message: %w", err)
	}

	if summary == "" {
		summary = parsed.Subject
	}

	result := s.Build(ctx, Input{
		Text:    parsed.BodyText,
		HTML:    parsed.BodyHTML,
		Summary: summary,
	})
	return result, parsed, nil
}

// Check runs a known message through the engine and reports whether the
// output is what it should be.
func (s *Service) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	const canary = "Works for me.\n\nSent from my iPhone\n\nOn Mon, 5 Jan 2024, Jane wrote:\n> Can you do Friday?"
	segments := thread.Parse(canary)
	if cleaned := sanitizer.Clean(canary); cleaned != "Works for me." {
		return fmt.Errorf("engine canary cleaned to %q", cleaned)
	}
	if len(segments) != 2 || segments[1].Attribution == nil {
		return errors.New("engine canary segmented incorrectly")
	}
	return nil
}

// BodyText returns the text the engine should see: the plain text body
// when it has any text, otherwise the HTML body rendered as text.
func (s *Service) BodyText(in Input) (string, Source) {
	if strings.TrimSpace(in.Text) == "" && strings.TrimSpace(in.HTML) != "" {
		return s.htmlToText(in.HTML), SourceHTML
	}
	return in.Text, SourceText
}

// htmlToText renders HTML as plain text, falling back to stripping tags
// when the document cannot be converted.
func (s *Service) htmlToText(html string) string {
	text, err := html2text.FromString(html, html2text.Options{OmitLinks: true, TextOnly: true})
	if err != nil {
		return s.html.StripTags(html)
	}
	return text
}

func (s *Service) record(ctx context.Context, result Result, inputBytes int) {
	metrics.EngineMessagesProcessed.WithLabelValues(string(result.Source)).Inc()
	if result.ShowOriginal {
		metrics.EngineSignificantCleanings.Inc()
	}

	depths := make([]int, len(result.Segments))
	for i, seg := range result.Segments {
		depths[i] = seg.Depth
	}
	metrics.ObserveSegments(depths)

	logger.WithCorrelationID(ctx, s.logger).Debug("preview built",
		slog.String("source", string(result.Source)),
		slog.Int("input_bytes", inputBytes),
		slog.Int("cleaned_bytes", len(result.Cleaned)),
		slog.Int("segments", len(result.Segments)),
		slog.Bool("show_original", result.ShowOriginal),
	)
}
