package intel

import "time"

// Type classifies an extracted intelligence artifact.
type Type string

const (
	TypePaymentID       Type = "payment-id"
	TypeBankAccount     Type = "bank-account"
	TypePhoneNumber     Type = "phone-number"
	TypeURL             Type = "url"
	TypeEmail           Type = "email"
	TypeKeywordCategory Type = "keyword-category"
)

// Record is a single ledger entry. Immutable once created.
type Record struct {
	Type          Type      `json:"type"`
	Value         string    `json:"value"`
	Suspicious    bool      `json:"suspicious,omitempty"`
	FirstSeenTurn int       `json:"first_seen_turn"`
	FirstSeenAt   time.Time `json:"first_seen_at"`
}

// Key is the ledger uniqueness key for a record.
func (r Record) Key() string {
	return string(r.Type) + "|" + r.Value
}

// HighValue reports whether the record is a direct payment artifact.
func (r Record) HighValue() bool {
	return r.Type == TypePaymentID || r.Type == TypeBankAccount
}
