package session

import (
	"time"

	"github.com/priyankdesai/jaal/internal/intel"
)

// Stage is the session lifecycle marker.
type Stage string

const (
	StageActive     Stage = "active"
	StageCompleting Stage = "completing"
	StageClosed     Stage = "closed"
)

// Speaker identifies who produced a history entry.
type Speaker string

const (
	SpeakerScammer Speaker = "scammer"
	SpeakerAgent   Speaker = "agent"
)

// Message is one append-only history entry.
type Message struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the persisted per-conversation record.
type Session struct {
	ID              string         `json:"session_id"`
	Persona         string         `json:"persona"`
	TurnCount       int            `json:"turn_count"`
	Stage           Stage          `json:"stage"`
	ScamProbability float64        `json:"scam_probability"`
	Flags           []string       `json:"flags"`
	EmotionalState  string         `json:"emotional_state"`
	History         []Message      `json:"history"`
	Ledger          []intel.Record `json:"ledger"`
	LastReply       string         `json:"last_reply"`
	Completed       bool           `json:"completed"`
	CreatedAt       time.Time      `json:"created_at"`
	LastUpdatedAt   time.Time      `json:"last_updated_at"`
	ExpiresAt       time.Time      `json:"expires_at"`
	CompletedAt     time.Time      `json:"completed_at,omitempty"`
}

// AddFlags merges new flags into the session's flag set, preserving
// first-seen order and suppressing duplicates.
func (s *Session) AddFlags(flags ...string) {
	for _, f := range flags {
		found := false
		for _, existing := range s.Flags {
			if existing == f {
				found = true
				break
			}
		}
		if !found {
			s.Flags = append(s.Flags, f)
		}
	}
}

// Append adds a history entry.
func (s *Session) Append(speaker Speaker, text string, at time.Time) {
	s.History = append(s.History, Message{Speaker: speaker, Text: text, Timestamp: at})
}

// HighValueCount returns how many ledger records are direct payment
// artifacts (payment IDs and bank accounts).
func (s *Session) HighValueCount() int {
	n := 0
	for _, r := range s.Ledger {
		if r.HighValue() {
			n++
		}
	}
	return n
}

// Clone returns a deep copy so callers never share mutable state with
// the store.
func (s *Session) Clone() *Session {
	c := *s
	c.Flags = append([]string(nil), s.Flags...)
	c.History = append([]Message(nil), s.History...)
	c.Ledger = append([]intel.Record(nil), s.Ledger...)
	return &c
}
