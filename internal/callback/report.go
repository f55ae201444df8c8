// Package callback assembles and delivers the end-of-session
// intelligence report. Delivery retries with backoff; a report that
// cannot be delivered is written to the local holding directory so it
// is never lost.
package callback

import (
	"fmt"
	"time"

	"github.com/priyankdesai/jaal/internal/intel"
	"github.com/priyankdesai/jaal/internal/session"
)

// Completion reasons carried in the report.
const (
	ReasonMaxTurns  = "max_turns_reached"
	ReasonHighValue = "high_value_intel"
)

// Report is the payload delivered when a session completes.
type Report struct {
	SessionID        string         `json:"session_id"`
	FinalProbability float64        `json:"final_probability"`
	TurnCount        int            `json:"turn_count"`
	Persona          string         `json:"persona"`
	CompletionReason string         `json:"completion_reason"`
	Ledger           []intel.Record `json:"ledger"`
	AgentNotes       string         `json:"agent_notes"`
	CreatedAt        time.Time      `json:"created_at"`
	CompletedAt      time.Time      `json:"completed_at"`
}

// BuildReport snapshots a completed session into its report.
func BuildReport(sess *session.Session, reason string) Report {
	ledger := sess.Ledger
	if ledger == nil {
		ledger = []intel.Record{}
	}
	return Report{
		SessionID:        sess.ID,
		FinalProbability: sess.ScamProbability,
		TurnCount:        sess.TurnCount,
		Persona:          sess.Persona,
		CompletionReason: reason,
		Ledger:           ledger,
		AgentNotes:       buildNotes(sess, reason),
		CreatedAt:        sess.CreatedAt,
		CompletedAt:      sess.CompletedAt,
	}
}

func buildNotes(sess *session.Session, reason string) string {
	highValue := sess.HighValueCount()
	duration := sess.CompletedAt.Sub(sess.CreatedAt).Round(time.Second)
	return fmt.Sprintf(
		"Persona %s held the counterpart for %d turns over %s. Extracted %d records (%d high-value). Final fraud probability %.2f. Closed on %s.",
		sess.Persona, sess.TurnCount, duration, len(sess.Ledger), highValue, sess.ScamProbability, reason,
	)
}
