// Package scoring computes a fraud probability for a single inbound
// message by summing fixed weights for each triggered signal. The
// computation is pure: the same message, sender and external signals
// always produce the same score, so it is safe to re-run every turn.
package scoring

import (
	"fmt"

	"github.com/priyankdesai/jaal/internal/intel"
)

const (
	weightHeaderAnomaly  = 0.20
	weightVeryNewDomain  = 0.30
	weightRecentDomain   = 0.20
	weightYoungDomain    = 0.10
	weightSuspiciousURL  = 0.15
	capSuspiciousURLs    = 0.25
	weightBadReputation  = 0.25
	weightScamKeyword    = 0.03
	capScamKeywords      = 0.15
	weightPaymentPresent = 0.10

	veryNewDomainDays = 30
	recentDomainDays  = 90
	youngDomainDays   = 365
)

// Result is the scorer output for one message.
type Result struct {
	Probability float64
	Flags       []string
}

// Score combines message-derived and externally looked-up signals into
// a clamped [0,1] probability, recording a flag per triggered signal.
func Score(message, senderID string, sig Signals) Result {
	var score float64
	var flags []string

	if !ValidSenderHeader(senderID) || len(sig.AnomalyFlags) > 0 {
		score += weightHeaderAnomaly
		flags = append(flags, "header_anomaly")
		flags = append(flags, sig.AnomalyFlags...)
	}

	if sig.DomainAgeDays != nil {
		switch age := *sig.DomainAgeDays; {
		case age < veryNewDomainDays:
			score += weightVeryNewDomain
			flags = append(flags, "very_new_domain")
		case age < recentDomainDays:
			score += weightRecentDomain
			flags = append(flags, "recent_domain")
		case age < youngDomainDays:
			score += weightYoungDomain
			flags = append(flags, "young_domain")
		}
	}

	suspicious := 0
	for _, u := range intel.MatchURLs(message) {
		if intel.IsSuspiciousURL(u) {
			suspicious++
		}
	}
	if suspicious > 0 {
		score += min(capSuspiciousURLs, float64(suspicious)*weightSuspiciousURL)
		flags = append(flags, fmt.Sprintf("suspicious_urls_%d", suspicious))
	}

	if sig.ReputationVerdict == "malicious" {
		score += weightBadReputation
		flags = append(flags, "url_reputation_malicious")
	}

	if n := len(intel.MatchKeywords(message)); n > 0 {
		score += min(capScamKeywords, float64(n)*weightScamKeyword)
		flags = append(flags, fmt.Sprintf("scam_keywords_%d", n))
	}

	if intel.HasPaymentArtifacts(message) {
		score += weightPaymentPresent
		flags = append(flags, "payment_info_present")
	}

	if score > 1 {
		score = 1
	}
	return Result{Probability: score, Flags: flags}
}
