// Package entity normalizes HTML/SGML character entities and invisible
// characters found in plain-text email bodies into ordinary Unicode.
package entity

import (
	"regexp"
	"strings"
)

var (
	// Zero-width spaces and joiners, as entities or literal runes.
	zeroWidthRegex = regexp.MustCompile(`(?i)&(?:zwnj|zwj|ZeroWidthSpace|NegativeThinSpace);|&#(?:8203|8204|8205|65279);|&#x0*(?:200b|200c|200d|feff);|[\x{200B}\x{200C}\x{200D}\x{FEFF}]`)

	nbspRegex = regexp.MustCompile(`(?i)&nbsp;|&#160;|&#x0*a0;|\x{00A0}`)

	leftoverNumericRegex = regexp.MustCompile(`&#\d+;`)
	leftoverNamedRegex   = regexp.MustCompile(`&[a-zA-Z]+;`)

	whitespaceRunRegex = regexp.MustCompile(`\s{3,}`)
)

var lineEndingReplacer = strings.NewReplacer("\r\n", "\n", "\r", "\n")

var structuralReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#34;", `"`,
	"&#39;", "'",
	"&apos;", "'",
)

// Typographic entities kept as glyphs rather than stripped.
var typographicReplacer = strings.NewReplacer(
	"&copy;", "©", "&#169;", "©",
	"&reg;", "®", "&#174;", "®",
	"&trade;", "™", "&#8482;", "™",
	"&sup1;", "¹", "&#185;", "¹",
	"&sup2;", "²", "&#178;", "²",
	"&sup3;", "³", "&#179;", "³",
	"&bull;", "•", "&#8226;", "•",
	"&middot;", "·", "&#183;", "·",
	"&hellip;", "…", "&#8230;", "…",
	"&ndash;", "–", "&#8211;", "–",
	"&mdash;", "—", "&#8212;", "—",
)

// Rule is one ordered decoding step.
type Rule struct {
	Name  string
	Apply func(string) string
}

// Rules lists the decoding steps in the order Decode applies them. Each rule
// runs over the whole text before the next one starts; the generic stripping
// rules at the end would otherwise swallow entities that have a meaning.
var Rules = []Rule{
	{Name: "line_endings", Apply: lineEndingReplacer.Replace},
	{Name: "zero_width", Apply: func(s string) string { return zeroWidthRegex.ReplaceAllString(s, "") }},
	{Name: "nbsp", Apply: func(s string) string { return nbspRegex.ReplaceAllString(s, " ") }},
	{Name: "structural", Apply: structuralReplacer.Replace},
	{Name: "typographic", Apply: typographicReplacer.Replace},
	{Name: "leftover_entities", Apply: stripLeftoverEntities},
	{Name: "whitespace", Apply: collapseWhitespace},
}

// Decode resolves entities in raw and removes invisible characters. It never
// fails: anything that does not look like a known entity is left untouched.
func Decode(raw string) string {
	if raw == "" {
		return ""
	}

	text := raw
	for _, rule := range Rules {
		text = rule.Apply(text)
	}
	return text
}

func stripLeftoverEntities(s string) string {
	s = leftoverNumericRegex.ReplaceAllString(s, "")
	return leftoverNamedRegex.ReplaceAllString(s, "")
}

// collapseWhitespace folds runs of three or more whitespace characters into a
// single space and trims the ends. Runs of one or two (a paragraph break) are
// kept as they are.
func collapseWhitespace(s string) string {
	s = whitespaceRunRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
