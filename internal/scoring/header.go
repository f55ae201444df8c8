package scoring

import (
	"regexp"
	"strings"
)

// traiHeaderPattern matches the regulated commercial sender format:
// two-letter operator code, dash, six alphanumerics.
var traiHeaderPattern = regexp.MustCompile(`(?i)^[A-Z]{2}-[A-Z0-9]{6}$`)

// legitimateSenders are well-known bank sender IDs that pass validation
// even without the operator prefix.
var legitimateSenders = []string{
	"HDFCBK", "ICICIB", "SBIIN", "KOTAKB", "AXISNB",
	"PNBSMS", "BOISMS", "CANBNK", "UNIONSMS", "IDBIBN",
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isAlnum(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return true
}

// ValidSenderHeader reports whether a sender ID looks like a legitimate
// transactional sender: a plausible phone number, the regulated
// XX-NNNNNN header format, a whitelisted bank ID, or a plain 6-char
// alphanumeric header.
func ValidSenderHeader(senderID string) bool {
	s := strings.TrimSpace(senderID)
	if s == "" {
		return false
	}
	if isDigits(s) {
		return len(s) >= 10
	}
	if traiHeaderPattern.MatchString(s) {
		return true
	}
	upper := strings.ToUpper(s)
	for _, legit := range legitimateSenders {
		if strings.Contains(upper, legit) {
			return true
		}
	}
	return len(s) == 6 && isAlnum(s)
}
