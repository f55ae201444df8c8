package intel

import (
	"regexp"
	"strings"
)

var (
	paymentIDPattern = regexp.MustCompile(`(?i)\b[\w.\-]{3,}@(?:paytm|phonepe|googlepay|ybl|axl|okicici|okhdfcbank|oksbi|okaxis|upi)\b`)
	digitRunPattern  = regexp.MustCompile(`\b\d{9,18}\b`)
	indianPhone      = regexp.MustCompile(`(?:\+91[\s\-]?|\b91|\b0)?[6-9]\d{4}[\s\-]?\d{5}\b`)
	intlPhone        = regexp.MustCompile(`\+\d{8,15}\b`)
	urlPattern       = regexp.MustCompile(`(?i)https?://(?:www\.)?[-a-zA-Z0-9@:%._+~#=]{1,256}\.[a-zA-Z0-9()]{1,6}\b[-a-zA-Z0-9()@:%_+.~#?&/=]*`)
	emailPattern     = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)
)

// suspiciousTLDs are free or throwaway TLDs common in phishing campaigns.
var suspiciousTLDs = []string{
	".tk", ".ml", ".ga", ".cf", ".gq",
	".xyz", ".top", ".win", ".bid", ".click",
}

// keywordVocabularies maps a category to its fixed vocabulary. Hinglish
// terms are included alongside English ones.
var keywordVocabularies = map[string][]string{
	"urgency": {
		"urgent", "immediately", "expire", "suspended", "blocked",
		"turant", "abhi", "jaldi",
	},
	"verification": {
		"verify", "confirm", "validate", "authenticate",
		"verification", "otp", "kyc", "password",
	},
	"reward": {
		"congratulations", "winner", "prize", "reward", "cashback",
		"gift", "bonus", "lottery", "badhaai", "inaam", "muft",
	},
}

// keywordCategoryOrder keeps category matching deterministic.
var keywordCategoryOrder = []string{"urgency", "verification", "reward"}

// IsSuspiciousURL reports whether a URL uses a known throwaway TLD.
func IsSuspiciousURL(url string) bool {
	lower := strings.ToLower(url)
	for _, tld := range suspiciousTLDs {
		if strings.Contains(lower, tld) {
			return true
		}
	}
	return false
}

// MatchURLs returns all URLs found in text, in order of appearance.
func MatchURLs(text string) []string {
	return urlPattern.FindAllString(text, -1)
}

// MatchKeywords returns every scam keyword present in text, across all
// categories, deduplicated.
func MatchKeywords(text string) []string {
	lower := strings.ToLower(text)
	seen := make(map[string]struct{})
	var hits []string
	for _, category := range keywordCategoryOrder {
		for _, kw := range keywordVocabularies[category] {
			if _, ok := seen[kw]; ok {
				continue
			}
			if strings.Contains(lower, kw) {
				seen[kw] = struct{}{}
				hits = append(hits, kw)
			}
		}
	}
	return hits
}

// HasPaymentArtifacts reports whether text contains a payment handle or
// a plausible bank account number.
func HasPaymentArtifacts(text string) bool {
	if paymentIDPattern.MatchString(text) {
		return true
	}
	phones := phoneSpans(text)
	for _, run := range digitRunPattern.FindAllStringIndex(text, -1) {
		if !overlapsAny(run, phones) {
			return true
		}
	}
	return false
}
