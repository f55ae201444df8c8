package intel

import (
	"strings"
	"time"
)

// Extract scans one inbound message and returns the records that are new
// with respect to the existing ledger, in deterministic matcher order:
// payment IDs, bank accounts, phone numbers, URLs, emails, keyword
// categories. Extraction is purely additive; it never touches existing
// records and never re-scans prior history.
func Extract(text string, ledger []Record, turn int, at time.Time) []Record {
	seen := make(map[string]struct{}, len(ledger))
	for _, r := range ledger {
		seen[r.Key()] = struct{}{}
	}

	var out []Record
	add := func(r Record) {
		if r.Value == "" {
			return
		}
		if _, ok := seen[r.Key()]; ok {
			return
		}
		seen[r.Key()] = struct{}{}
		r.FirstSeenTurn = turn
		r.FirstSeenAt = at
		out = append(out, r)
	}

	for _, m := range paymentIDPattern.FindAllString(text, -1) {
		add(Record{Type: TypePaymentID, Value: strings.ToLower(m)})
	}

	phones := phoneSpans(text)
	for _, span := range digitRunPattern.FindAllStringIndex(text, -1) {
		if overlapsAny(span, phones) {
			continue
		}
		add(Record{Type: TypeBankAccount, Value: text[span[0]:span[1]]})
	}

	for _, span := range phones {
		add(Record{Type: TypePhoneNumber, Value: normalizePhone(text[span[0]:span[1]])})
	}

	for _, u := range MatchURLs(text) {
		add(Record{Type: TypeURL, Value: u, Suspicious: IsSuspiciousURL(u)})
	}

	for _, m := range emailPattern.FindAllString(text, -1) {
		add(Record{Type: TypeEmail, Value: strings.ToLower(m)})
	}

	lower := strings.ToLower(text)
	for _, category := range keywordCategoryOrder {
		for _, kw := range keywordVocabularies[category] {
			if strings.Contains(lower, kw) {
				add(Record{Type: TypeKeywordCategory, Value: category})
				break
			}
		}
	}

	return out
}

// phoneSpans returns the byte spans of all phone number matches, Indian
// formats first, merged with international matches. Matches adjacent to
// further digits are rejected so a phone is never carved out of the
// middle of a longer account number.
func phoneSpans(text string) [][]int {
	var spans [][]int
	for _, span := range indianPhone.FindAllStringIndex(text, -1) {
		if digitAdjacent(text, span) {
			continue
		}
		spans = append(spans, span)
	}
	for _, span := range intlPhone.FindAllStringIndex(text, -1) {
		if digitAdjacent(text, span) || overlapsAny(span, spans) {
			continue
		}
		spans = append(spans, span)
	}
	return spans
}

func digitAdjacent(text string, span []int) bool {
	if span[0] > 0 && isDigit(text[span[0]-1]) {
		return true
	}
	if span[1] < len(text) && isDigit(text[span[1]]) {
		return true
	}
	return false
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func overlapsAny(span []int, spans [][]int) bool {
	for _, other := range spans {
		if span[0] < other[1] && other[0] < span[1] {
			return true
		}
	}
	return false
}

// normalizePhone reduces a matched phone number to +<country><number>
// form. Bare Indian mobiles gain the +91 prefix.
func normalizePhone(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	switch {
	case len(d) == 10:
		return "+91" + d
	case len(d) == 11 && strings.HasPrefix(d, "0"):
		return "+91" + d[1:]
	case len(d) == 12 && strings.HasPrefix(d, "91"):
		return "+" + d
	default:
		return "+" + d
	}
}
