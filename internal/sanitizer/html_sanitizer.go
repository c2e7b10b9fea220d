// Package sanitizer cleans email bodies for display: Clean strips quoted
// history, signatures and provider boilerplate from plain text, and the HTML
// sanitizer makes an original HTML body safe to show next to it.
package sanitizer

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// BlockedImagePlaceholder replaces remote image sources so that tracking
// pixels never load.
const BlockedImagePlaceholder = "data:image/svg+xml,%3Csvg xmlns='http://www.w3.org/2000/svg' width='100' height='100'%3E%3Crect fill='%23f0f0f0' width='100' height='100'/%3E%3Ctext x='50' y='55' text-anchor='middle' fill='%23999' font-size='12'%3EImage Blocked%3C/text%3E%3C/svg%3E"

var (
	scriptRegex   = regexp.MustCompile(`(?i)<script[^>]*>[\s\S]*?</script>`)
	styleRegex    = regexp.MustCompile(`(?i)<style[^>]*>[\s\S]*?</style>`)
	noscriptRegex = regexp.MustCompile(`(?i)<noscript[^>]*>[\s\S]*?</noscript>`)
	imgSrcRegex   = regexp.MustCompile(`(?i)(<img\b[^>]*?\bsrc\s*=\s*)("[^"]*"|'[^']*')`)
)

// HTMLSanitizer prepares the HTML part of a message for the "show original"
// view and reduces HTML to bare text.
type HTMLSanitizer interface {
	// Sanitize returns HTML that is safe to embed.
	Sanitize(html string) string
	// StripTags removes all markup and returns the remaining text.
	StripTags(html string) string
}

// DefaultHTMLSanitizer implements HTMLSanitizer using bluemonday policies.
type DefaultHTMLSanitizer struct {
	display *bluemonday.Policy
	strict  *bluemonday.Policy
}

// NewHTMLSanitizer creates a sanitizer with an email display policy.
func NewHTMLSanitizer() *DefaultHTMLSanitizer {
	display := bluemonday.UGCPolicy()
	display.AllowElements(
		"p", "br", "hr", "div", "span",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"strong", "b", "em", "i", "u", "s", "strike",
		"blockquote", "pre", "code",
		"ul", "ol", "li", "dl", "dt", "dd",
		"table", "thead", "tbody", "tfoot", "tr", "th", "td",
		"a", "img", "font", "center",
	)
	display.AllowAttrs("href").OnElements("a")
	display.AllowAttrs("src", "alt", "width", "height").OnElements("img")
	display.AllowAttrs("class").Globally()
	display.AllowAttrs("align", "valign", "bgcolor", "color", "size", "face").Globally()
	display.AllowAttrs("colspan", "rowspan", "border", "cellpadding", "cellspacing").OnElements("table", "td", "th")
	display.AllowURLSchemes("http", "https", "mailto", "cid")
	display.AllowDataURIImages()
	display.RequireNoFollowOnLinks(true)

	return &DefaultHTMLSanitizer{
		display: display,
		strict:  bluemonday.StrictPolicy(),
	}
}

// Sanitize removes scripts, styles and event handlers, blocks remote images
// and applies the display policy. Inline data: and cid: images survive.
func (s *DefaultHTMLSanitizer) Sanitize(html string) string {
	if html == "" {
		return ""
	}
	result := removeActiveContent(html)
	result = BlockExternalImages(result)
	return s.display.Sanitize(result)
}

// StripTags drops every tag, keeping text content. Entities in the text are
// left encoded; the entity decoder resolves them later in the pipeline.
func (s *DefaultHTMLSanitizer) StripTags(html string) string {
	if html == "" {
		return ""
	}
	return s.strict.Sanitize(removeActiveContent(html))
}

func removeActiveContent(html string) string {
	html = scriptRegex.ReplaceAllString(html, "")
	html = styleRegex.ReplaceAllString(html, "")
	return noscriptRegex.ReplaceAllString(html, "")
}

// BlockExternalImages points remote <img> sources at BlockedImagePlaceholder.
func BlockExternalImages(html string) string {
	return imgSrcRegex.ReplaceAllStringFunc(html, func(match string) string {
		parts := imgSrcRegex.FindStringSubmatch(match)
		if len(parts) < 3 {
			return match
		}
		src := strings.Trim(parts[2], `"'`)
		if !isExternalURL(src) {
			return match
		}
		return parts[1] + `"` + BlockedImagePlaceholder + `"`
	})
}

func isExternalURL(url string) bool {
	url = strings.ToLower(strings.TrimSpace(url))
	return strings.HasPrefix(url, "//") ||
		strings.HasPrefix(url, "http://") ||
		strings.HasPrefix(url, "https://") ||
		strings.HasPrefix(url, "ftp://")
}
