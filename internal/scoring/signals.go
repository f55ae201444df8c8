package scoring

import (
	"context"
	"net/url"
	"strings"
)

// Signals carries the external lookups feeding the scorer: WHOIS-derived
// domain age, a URL reputation verdict, and transport-level anomaly
// flags. All fields are optional; absent signals contribute nothing.
type Signals struct {
	DomainAgeDays     *int     `json:"domain_age_days,omitempty"`
	ReputationVerdict string   `json:"reputation_verdict,omitempty"`
	AnomalyFlags      []string `json:"anomaly_flags,omitempty"`
}

// LookupRequest identifies what the provider should inspect.
type LookupRequest struct {
	Domain   string
	URL      string
	SenderID string
}

// Provider resolves external scoring signals. Implementations are
// expected to be slow (network) and may fail; callers treat a failed
// lookup as "no signals".
type Provider interface {
	Lookup(ctx context.Context, req LookupRequest) (Signals, error)
}

// StaticProvider returns fixed signals, or none at all. Used when no
// real signal backend is configured, and as a test double.
type StaticProvider struct {
	Result Signals
	Err    error
}

func (p *StaticProvider) Lookup(_ context.Context, _ LookupRequest) (Signals, error) {
	if p.Err != nil {
		return Signals{}, p.Err
	}
	return p.Result, nil
}

// DomainOf extracts the host portion of a URL for provider lookups.
func DomainOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
