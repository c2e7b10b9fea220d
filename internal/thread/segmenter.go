package thread

import (
	"regexp"
	"strings"

	"github.com/welldanyogia/mailclean/internal/entity"
	"github.com/welldanyogia/mailclean/internal/sanitizer"
)

var (
	fromHeaderRegex  = regexp.MustCompile(`(?m)^From:[ \t]*([^\n]+)\n`)
	quotePrefixRegex = regexp.MustCompile(`(?m)^>+`)

	// Leading '>' markers at any nesting level, with their optional space.
	quotePrefixStripRegex = regexp.MustCompile(`(?m)^[ \t]*(?:>[ \t]?)+`)
)

// boundary is where quoted history starts in a decoded body.
type boundary struct {
	kind  MarkerKind
	start int
	// end is where the quoted text begins once the marker is dropped.
	end         int
	attribution *Attribution
}

// Parse splits raw into segments in reading order: the new content first
// (depth 0, when there is any), then the quoted history at depth 1 and, when
// the history itself quotes an older message, depth 2. Empty input yields an
// empty slice.
func Parse(raw string) []Segment {
	content := entity.Decode(raw)
	if content == "" {
		return []Segment{}
	}

	b, ok := findBoundary(content)
	if !ok {
		return []Segment{{Content: sanitizer.Clean(content)}}
	}

	segments := make([]Segment, 0, MaxDepth+1)
	if main := content[:b.start]; strings.TrimSpace(main) != "" {
		segments = append(segments, Segment{Content: sanitizer.Clean(main)})
	}

	quoted := StripQuotePrefixes(content[b.end:])
	return append(segments, splitQuoted(quoted, b.attribution, 1)...)
}

// findBoundary returns the earliest of the three quote markers. Ties go to
// the marker that carries attribution.
func findBoundary(content string) (boundary, bool) {
	var candidates []boundary

	if h, ok := sanitizer.FindReplyHeader(content); ok {
		candidates = append(candidates, boundary{
			kind:        MarkerWrote,
			start:       h.Start,
			end:         afterHeader(content, h),
			attribution: attributionFromHeader(h),
		})
	}

	if loc := fromHeaderRegex.FindStringSubmatchIndex(content); loc != nil {
		b := boundary{kind: MarkerFromHeader, start: loc[0], end: loc[1]}
		if sender := strings.TrimSpace(content[loc[2]:loc[3]]); sender != "" {
			b.attribution = &Attribution{Sender: sender}
		}
		candidates = append(candidates, b)
	}

	if loc := quotePrefixRegex.FindStringIndex(content); loc != nil {
		candidates = append(candidates, boundary{kind: MarkerQuotePrefix, start: loc[0], end: loc[0]})
	}

	if len(candidates) == 0 {
		return boundary{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.start < best.start {
			best = c
		}
	}
	return best, true
}

// splitQuoted turns quoted history into segments starting at depth. Below
// MaxDepth a nested reply header opens the next level; at MaxDepth the rest
// of the history is kept in one segment.
func splitQuoted(quoted string, attribution *Attribution, depth int) []Segment {
	if strings.TrimSpace(quoted) == "" {
		return nil
	}

	if depth >= MaxDepth {
		return []Segment{quotedSegment(sanitizer.CleanHistory(quoted), depth, attribution)}
	}

	h, ok := sanitizer.FindReplyHeader(quoted)
	if !ok {
		return []Segment{quotedSegment(sanitizer.Clean(quoted), depth, attribution)}
	}

	var segments []Segment
	if before := strings.TrimSpace(quoted[:h.Start]); before != "" {
		segments = append(segments, quotedSegment(sanitizer.Clean(before), depth, attribution))
	}
	return append(segments, splitQuoted(quoted[afterHeader(quoted, h):], attributionFromHeader(h), depth+1)...)
}

// afterHeader is where quoted text resumes past a reply header. Text on the
// same line as the header is kept.
func afterHeader(text string, h sanitizer.ReplyHeader) int {
	return len(text) - len(strings.TrimLeft(text[h.End:], " \t\n"))
}

func quotedSegment(content string, depth int, attribution *Attribution) Segment {
	return Segment{
		Content:     content,
		IsQuoted:    true,
		Depth:       depth,
		Attribution: attribution,
	}
}

func attributionFromHeader(h sanitizer.ReplyHeader) *Attribution {
	if !h.Parsed {
		return nil
	}
	return &Attribution{Sender: h.Sender, Date: h.Date}
}

// StripQuotePrefixes removes leading '>' quote markers from every line.
func StripQuotePrefixes(text string) string {
	return quotePrefixStripRegex.ReplaceAllString(text, "")
}
