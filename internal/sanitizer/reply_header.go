package sanitizer

import (
	"regexp"
	"strings"
)

// A header opens with a capitalised "On" anywhere, or with "on" in any case
// at the start of a line. Lower case "on" inside a sentence is prose.
const replyHeaderOpen = `(?m)(?:\bOn|^[ \t]*(?i:on))\s`

var (
	// "On <date>, <name> wrote:" on a single line.
	replyHeaderLongRegex = regexp.MustCompile(replyHeaderOpen + `[^\n]{1,200}?,[^\n]{1,200}?\s(?i:wrote):`)
	// Looser form, allowed to wrap across lines as some clients do.
	replyHeaderLooseRegex = regexp.MustCompile(replyHeaderOpen + `[\s\S]{10,60}?\s(?i:wrote):`)

	// Greedy date: the sender is whatever follows the last comma.
	attributionRegex = regexp.MustCompile(`(?i)^On\s+(.+),\s*(.+?)\s+wrote:$`)
)

// ReplyHeader is a located "On <date>, <name> wrote:" quote introduction.
type ReplyHeader struct {
	// Start and End delimit the matched header text.
	Start int
	End   int
	// LineEnd is the index just past the line the header ends on,
	// including its newline when there is one.
	LineEnd int
	// Date and Sender are set when Parsed is true.
	Date   string
	Sender string
	Parsed bool
}

// FindReplyHeader returns the earliest reply header in text. When both the
// long and the loose form start at the same index the long form wins.
func FindReplyHeader(text string) (ReplyHeader, bool) {
	best := []int(nil)
	for _, re := range []*regexp.Regexp{replyHeaderLongRegex, replyHeaderLooseRegex} {
		loc := re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		if best == nil || loc[0] < best[0] {
			best = loc
		}
	}
	if best == nil {
		return ReplyHeader{}, false
	}

	header := ReplyHeader{
		Start:   best[0],
		End:     best[1],
		LineEnd: len(text),
	}
	if nl := strings.IndexByte(text[best[1]:], '\n'); nl >= 0 {
		header.LineEnd = best[1] + nl + 1
	}
	header.Sender, header.Date, header.Parsed = ParseAttribution(text[best[0]:best[1]])
	return header, true
}

// ParseAttribution splits a reply header into sender and date. It reports
// false when the header does not have the "On <date>, <name> wrote:" shape.
func ParseAttribution(header string) (sender, date string, ok bool) {
	flat := strings.Join(strings.Fields(header), " ")
	m := attributionRegex.FindStringSubmatch(flat)
	if m == nil {
		return "", "", false
	}
	date = strings.TrimSpace(m[1])
	sender = strings.TrimSpace(m[2])
	if sender == "" {
		return "", "", false
	}
	return sender, date, true
}
