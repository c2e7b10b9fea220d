// Package thread splits an email body into the newest reply and the quoted
// history below it, attributing each quoted block where a header allows it.
package thread

// MaxDepth is the deepest quoting level produced. History nested deeper
// than this stays embedded in the MaxDepth segment.
const MaxDepth = 2

// Attribution identifies who wrote a quoted block and when. Date is empty
// when only a sender could be extracted.
type Attribution struct {
	Sender string `json:"sender"`
	Date   string `json:"date"`
}

// Segment is one contiguous block of message text at a given quoting depth.
type Segment struct {
	Content     string       `json:"content"`
	IsQuoted    bool         `json:"is_quoted"`
	Depth       int          `json:"depth"`
	Attribution *Attribution `json:"attribution,omitempty"`
}

// MarkerKind names the kind of boundary that starts quoted history.
type MarkerKind string

const (
	MarkerWrote       MarkerKind = "wrote"
	MarkerFromHeader  MarkerKind = "from_header"
	MarkerQuotePrefix MarkerKind = "quote_prefix"
)
