package sanitizer

import "strings"

// CutoffPhrases mark the start of signatures, mobile-client footers, legal
// disclaimers, list footers and payment-provider registration boilerplate.
// Matching is case-sensitive.
var CutoffPhrases = []string{
	"CONFIDENTIALITY NOTICE",
	"Confidentiality Notice",
	"This email and any attachments",
	"This e-mail and any attachments",
	"This message and any attachments",
	"The information contained in this",
	"This message is intended only for",
	"Sent from my iPhone",
	"Sent from my iPad",
	"Sent from my Android",
	"Sent from my Galaxy",
	"Sent from Mail for Windows",
	"Sent from Yahoo Mail",
	"Get Outlook for iOS",
	"Get Outlook for Android",
	"-- ",
	"--\n",
	"---",
	"___",
	"To unsubscribe",
	"Unsubscribe from",
	"You are receiving this email because",
	"You received this email because",
	"Manage your email preferences",
	"Stripe Payments Europe, Limited",
	"Stripe Payments UK Ltd",
	"Stripe, Inc. 354 Oyster Point",
	"Paddle.com Market Limited",
	"PayPal Pte. Ltd.",
}

// signatureDelimiters only count when they follow whitespace or open the
// text, so dashes and underscores inside a word survive.
var signatureDelimiters = map[string]bool{
	"-- ":  true,
	"--\n": true,
	"---":  true,
	"___":  true,
}

// cutAtPhrases walks phrases in order and truncates the working text at each
// one found past index 0, re-scanning the already shortened text for the
// next phrase. The earliest phrase usually wins; a phrase that straddles an
// earlier cut is no longer found. Whitespace left in front of a cut is
// dropped.
func cutAtPhrases(text string, phrases []string) string {
	for _, phrase := range phrases {
		if idx := indexPhrase(text, phrase); idx > 0 {
			text = strings.TrimRight(text[:idx], cutSpace)
		}
	}
	return text
}

func indexPhrase(text, phrase string) int {
	if !signatureDelimiters[phrase] {
		return strings.Index(text, phrase)
	}
	for from := 0; from < len(text); {
		i := strings.Index(text[from:], phrase)
		if i < 0 {
			return -1
		}
		i += from
		if i == 0 || strings.IndexByte(cutSpace, text[i-1]) >= 0 {
			return i
		}
		from = i + 1
	}
	return -1
}
