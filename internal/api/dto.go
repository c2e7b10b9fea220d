package api

import (
	"time"

	"github.com/welldanyogia/mailclean/internal/parser"
	"github.com/welldanyogia/mailclean/internal/preview"
	"github.com/welldanyogia/mailclean/internal/thread"
)

// CleanRequest is the body of POST /clean and POST /thread. Body may be
// empty but must be present.
type CleanRequest struct {
	Body *string `json:"body" validate:"required"`
}

// CleanResponse carries the cleaned reply text
type CleanResponse struct {
	Cleaned string `json:"cleaned"`
}

// ThreadResponse carries the segments of a body, newest first
type ThreadResponse struct {
	Segments []thread.Segment `json:"segments"`
}

// SignificanceRequest is the body of POST /significance
type SignificanceRequest struct {
	Raw     *string `json:"raw" validate:"required"`
	Cleaned *string `json:"cleaned" validate:"required"`
}

// SignificanceResponse reports whether cleaning removed enough to offer
// the original
type SignificanceResponse struct {
	Significant bool `json:"significant"`
}

// PreviewRequest is the body of POST /preview. At least one of text or
// html must be non-empty.
type PreviewRequest struct {
	Text    string `json:"text" validate:"required_without=HTML"`
	HTML    string `json:"html" validate:"required_without=Text"`
	Summary string `json:"summary" validate:"max=1000"`
}

// MessageResponse is the result of POST /messages/parse
type MessageResponse struct {
	Message MessageSummary `json:"message"`
	Preview preview.Result `json:"preview"`
}

// MessageSummary holds the headers of a parsed message
type MessageSummary struct {
	From        string              `json:"from"`
	FromName    string              `json:"from_name,omitempty"`
	To          string              `json:"to"`
	Subject     string              `json:"subject"`
	SentAt      *time.Time          `json:"sent_at,omitempty"`
	MessageID   string              `json:"message_id,omitempty"`
	InReplyTo   string              `json:"in_reply_to,omitempty"`
	Attachments []parser.Attachment `json:"attachments"`
	SizeBytes   int64               `json:"size_bytes"`
}

// ToMessageSummary converts a parsed message to its response DTO
func ToMessageSummary(e *parser.ParsedEmail) MessageSummary {
	return MessageSummary{
		From:        e.From,
		FromName:    e.FromName,
		To:          e.To,
		Subject:     e.Subject,
		SentAt:      e.SentAt,
		MessageID:   e.MessageID,
		InReplyTo:   e.InReplyTo,
		Attachments: e.Attachments,
		SizeBytes:   e.SizeBytes,
	}
}
