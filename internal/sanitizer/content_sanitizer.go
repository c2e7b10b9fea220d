package sanitizer

import (
	"regexp"
	"strings"

	"github.com/welldanyogia/mailclean/internal/entity"
)

// Stage names, in pipeline order.
const (
	StageDecode          = "decode"
	StageQuotedLines     = "quoted_lines"
	StageReplyHeader     = "reply_header"
	StagePaymentMetadata = "payment_metadata"
	StageInlineIDs       = "inline_ids"
	StageCutoffPhrases   = "cutoff_phrases"
	StageFooterURL       = "footer_url"
	StageFooterEmail     = "footer_email"
	StageTidy            = "tidy"
)

// FooterPositionRatio is the relative position past which a bare URL or
// email address is treated as part of a signature or footer.
const FooterPositionRatio = 0.5

// maxPasses bounds how often Clean reruns the pipeline looking for a fixed
// point. Ordinary mail settles after the first pass.
const maxPasses = 16

// cutSpace is trimmed off the end of the text after every cut.
const cutSpace = " \t\n"

var (
	quotedLineRegex = regexp.MustCompile(`(?m)^[ \t]*>.*(?:\n|$)`)

	// Payment-provider key/value fragments. Separators may be a hyphen or an
	// em dash.
	paymentMetadataRegexes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Metadata[ \t]+)?customerId[ \t]*[-—][ \t]*\S+`),
		regexp.MustCompile(`(?i)invoiceId[ \t]*[-—][ \t]*\S+`),
		regexp.MustCompile(`(?i)paymentId[ \t]*[-—][ \t]*\S+`),
		regexp.MustCompile(`(?i)ownerEmail[ \t]*[-—][ \t]*\S+`),
		regexp.MustCompile(`(?i)Account ID:[ \t]*\S+`),
		regexp.MustCompile(`(?i)Payment ID(?::[ \t]*|[ \t]+)\S+`),
		regexp.MustCompile(`(?i)Need to refer to this message\?[ \t]*Use this ID:[ \t]*\S+`),
	}

	// Opaque identifiers dropped inline, e.g. "Paid - pi_3NqK..."
	inlineIDRegex = regexp.MustCompile(` [-—] [A-Za-z0-9_]{20,}`)

	footerURLRegex   = regexp.MustCompile(`(?i)\bwww\.[a-z0-9-]+(?:\.[a-z0-9-]+)+`)
	footerEmailRegex = regexp.MustCompile(`\s[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}(?:\s|$)`)

	blankLinesRegex = regexp.MustCompile(`\n{3,}`)
)

// Stage is a single pure text transformation of the cleaning pipeline.
type Stage struct {
	Name  string
	Apply func(string) string
}

// Pipeline applies its stages in order, each one to the output of the
// previous stage.
type Pipeline []Stage

// Run passes text through every stage.
func (p Pipeline) Run(text string) string {
	for _, stage := range p {
		text = stage.Apply(text)
	}
	return text
}

// Settle reruns the pipeline on its own output until nothing changes, at
// most maxPasses times. A later stage can expose work for an earlier one,
// e.g. an ID removal that leaves a line starting with '>', or a cut that
// moves a signature address into the back half of the text.
func (p Pipeline) Settle(text string) string {
	for i := 0; i < maxPasses; i++ {
		next := p.Run(text)
		if next == text {
			break
		}
		text = next
	}
	return text
}

// Without returns a copy of the pipeline minus the named stages.
func (p Pipeline) Without(names ...string) Pipeline {
	out := make(Pipeline, 0, len(p))
	for _, stage := range p {
		skip := false
		for _, name := range names {
			if stage.Name == name {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, stage)
		}
	}
	return out
}

// StageResult records the text after one stage ran.
type StageResult struct {
	Stage  string `json:"stage"`
	Output string `json:"output"`
}

// Trace runs the pipeline and returns every intermediate result.
func (p Pipeline) Trace(text string) []StageResult {
	results := make([]StageResult, 0, len(p))
	for _, stage := range p {
		text = stage.Apply(text)
		results = append(results, StageResult{Stage: stage.Name, Output: text})
	}
	return results
}

// ContentPipeline is the full cleaning pipeline. Order matters: the reply
// header cut has to happen before the footer heuristics so quoted history is
// not mistaken for a signature, and ID stripping changes the lengths those
// heuristics measure against.
var ContentPipeline = Pipeline{
	{Name: StageDecode, Apply: entity.Decode},
	{Name: StageQuotedLines, Apply: RemoveQuotedLines},
	{Name: StageReplyHeader, Apply: CutAtReplyHeader},
	{Name: StagePaymentMetadata, Apply: RemovePaymentMetadata},
	{Name: StageInlineIDs, Apply: RemoveInlineIDs},
	{Name: StageCutoffPhrases, Apply: CutAtCutoffPhrases},
	{Name: StageFooterURL, Apply: CutAtFooterURL},
	{Name: StageFooterEmail, Apply: CutAtFooterEmail},
	{Name: StageTidy, Apply: Tidy},
}

// historyPipeline keeps embedded quoted history intact.
var historyPipeline = ContentPipeline.Without(StageQuotedLines, StageReplyHeader)

// Clean returns the human-readable part of a plain-text email body with
// quoted replies, signatures, legal boilerplate and payment metadata
// removed. An empty input, or one that is nothing but boilerplate, yields "".
// Cleaning already cleaned text returns it unchanged.
func Clean(raw string) string {
	if raw == "" {
		return ""
	}
	return ContentPipeline.Settle(raw)
}

// CleanHistory is Clean without quoted-line removal and without the reply
// header cut, for text whose nested history has to stay embedded.
func CleanHistory(raw string) string {
	if raw == "" {
		return ""
	}
	return historyPipeline.Settle(raw)
}

// RemoveQuotedLines drops every line starting with '>', indented or not.
func RemoveQuotedLines(text string) string {
	return quotedLineRegex.ReplaceAllString(text, "")
}

// CutAtReplyHeader drops everything from the first reply header onwards.
func CutAtReplyHeader(text string) string {
	header, ok := FindReplyHeader(text)
	if !ok {
		return text
	}
	return text[:header.Start]
}

// RemovePaymentMetadata strips payment-provider labels and their values.
func RemovePaymentMetadata(text string) string {
	for _, re := range paymentMetadataRegexes {
		text = re.ReplaceAllString(text, "")
	}
	return text
}

// RemoveInlineIDs strips " - <id>" tokens with long opaque identifiers.
func RemoveInlineIDs(text string) string {
	return inlineIDRegex.ReplaceAllString(text, "")
}

// CutAtCutoffPhrases truncates text at the known boilerplate phrases.
func CutAtCutoffPhrases(text string) string {
	return cutAtPhrases(text, CutoffPhrases)
}

// CutAtFooterURL cuts at the first bare www URL when it sits in the back
// half of the text.
func CutAtFooterURL(text string) string {
	return cutInBackHalf(text, footerURLRegex)
}

// CutAtFooterEmail cuts at the first whitespace-delimited email address when
// it sits in the back half of the text.
func CutAtFooterEmail(text string) string {
	return cutInBackHalf(text, footerEmailRegex)
}

// Tidy folds long blank-line runs into a single paragraph break and trims.
func Tidy(text string) string {
	text = blankLinesRegex.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func cutInBackHalf(text string, re *regexp.Regexp) string {
	loc := re.FindStringIndex(text)
	if loc == nil {
		return text
	}
	if float64(loc[0]) > float64(len(text))*FooterPositionRatio {
		return strings.TrimRight(text[:loc[0]], cutSpace)
	}
	return text
}
