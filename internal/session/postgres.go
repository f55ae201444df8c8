package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/priyankdesai/jaal/internal/intel"
)

const sessionSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id       TEXT PRIMARY KEY,
	persona          TEXT NOT NULL,
	turn_count       INT NOT NULL DEFAULT 0,
	stage            TEXT NOT NULL,
	scam_probability DOUBLE PRECISION NOT NULL DEFAULT 0,
	flags            JSONB NOT NULL DEFAULT '[]',
	emotional_state  TEXT NOT NULL DEFAULT '',
	history          JSONB NOT NULL DEFAULT '[]',
	ledger           JSONB NOT NULL DEFAULT '[]',
	last_reply       TEXT NOT NULL DEFAULT '',
	completed        BOOLEAN NOT NULL DEFAULT FALSE,
	created_at       TIMESTAMPTZ NOT NULL,
	last_updated_at  TIMESTAMPTZ NOT NULL,
	expires_at       TIMESTAMPTZ NOT NULL,
	completed_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS sessions_expires_at_idx ON sessions (expires_at);
`

// PostgresStore persists sessions in a sessions table, with history,
// ledger, and flags held as JSONB.
type PostgresStore struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

func NewPostgresStore(ctx context.Context, databaseURL string, ttl time.Duration) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, sessionSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init session schema: %w", err)
	}
	return &PostgresStore{pool: pool, ttl: ttl}, nil
}

func (s *PostgresStore) Load(ctx context.Context, id string) (*Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT session_id, persona, turn_count, stage, scam_probability,
		       flags, emotional_state, history, ledger, last_reply,
		       completed, created_at, last_updated_at, expires_at, completed_at
		FROM sessions
		WHERE session_id = $1 AND expires_at > now()`, id)
	return scanSession(row)
}

func (s *PostgresStore) CreateIfAbsent(ctx context.Context, id, persona string) (*Session, bool, error) {
	if sess, err := s.Load(ctx, id); err == nil {
		return sess, false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	now := time.Now().UTC()
	fresh := &Session{
		ID:            id,
		Persona:       persona,
		Stage:         StageActive,
		CreatedAt:     now,
		LastUpdatedAt: now,
		ExpiresAt:     now.Add(s.ttl),
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (session_id, persona, turn_count, stage, scam_probability,
		                      flags, emotional_state, history, ledger, last_reply,
		                      completed, created_at, last_updated_at, expires_at)
		VALUES ($1, $2, 0, $3, 0, '[]', '', '[]', '[]', '', FALSE, $4, $4, $5)
		ON CONFLICT (session_id) DO NOTHING`,
		id, persona, StageActive, now, fresh.ExpiresAt)
	if err != nil {
		return nil, false, &TransientError{Op: "create", Err: err}
	}
	if tag.RowsAffected() == 0 {
		sess, err := s.Load(ctx, id)
		if err != nil {
			return nil, false, err
		}
		return sess, false, nil
	}
	return fresh, true, nil
}

func (s *PostgresStore) Save(ctx context.Context, sess *Session) error {
	now := time.Now().UTC()
	sess.LastUpdatedAt = now
	sess.ExpiresAt = now.Add(s.ttl)

	flags, err := json.Marshal(nonNilStrings(sess.Flags))
	if err != nil {
		return fmt.Errorf("marshal flags: %w", err)
	}
	history, err := json.Marshal(nonNilMessages(sess.History))
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	ledger, err := json.Marshal(nonNilRecords(sess.Ledger))
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	var completedAt any
	if !sess.CompletedAt.IsZero() {
		completedAt = sess.CompletedAt
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO sessions (session_id, persona, turn_count, stage, scam_probability,
		                      flags, emotional_state, history, ledger, last_reply,
		                      completed, created_at, last_updated_at, expires_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (session_id) DO UPDATE SET
			persona = EXCLUDED.persona,
			turn_count = EXCLUDED.turn_count,
			stage = EXCLUDED.stage,
			scam_probability = EXCLUDED.scam_probability,
			flags = EXCLUDED.flags,
			emotional_state = EXCLUDED.emotional_state,
			history = EXCLUDED.history,
			ledger = EXCLUDED.ledger,
			last_reply = EXCLUDED.last_reply,
			completed = EXCLUDED.completed,
			last_updated_at = EXCLUDED.last_updated_at,
			expires_at = EXCLUDED.expires_at,
			completed_at = EXCLUDED.completed_at`,
		sess.ID, sess.Persona, sess.TurnCount, sess.Stage, sess.ScamProbability,
		flags, sess.EmotionalState, history, ledger, sess.LastReply,
		sess.Completed, sess.CreatedAt, sess.LastUpdatedAt, sess.ExpiresAt, completedAt)
	if err != nil {
		return &TransientError{Op: "save", Err: err}
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE session_id = $1`, id); err != nil {
		return &TransientError{Op: "delete", Err: err}
	}
	return nil
}

func (s *PostgresStore) Mode() string { return "postgres" }

func (s *PostgresStore) Healthy(ctx context.Context) bool {
	return s.pool.Ping(ctx) == nil
}

func (s *PostgresStore) Close() { s.pool.Close() }

func scanSession(row pgx.Row) (*Session, error) {
	var (
		sess        Session
		flags       []byte
		history     []byte
		ledger      []byte
		completedAt *time.Time
	)
	err := row.Scan(&sess.ID, &sess.Persona, &sess.TurnCount, &sess.Stage, &sess.ScamProbability,
		&flags, &sess.EmotionalState, &history, &ledger, &sess.LastReply,
		&sess.Completed, &sess.CreatedAt, &sess.LastUpdatedAt, &sess.ExpiresAt, &completedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &TransientError{Op: "load", Err: err}
	}
	if err := json.Unmarshal(flags, &sess.Flags); err != nil {
		return nil, fmt.Errorf("unmarshal flags: %w", err)
	}
	if err := json.Unmarshal(history, &sess.History); err != nil {
		return nil, fmt.Errorf("unmarshal history: %w", err)
	}
	if err := json.Unmarshal(ledger, &sess.Ledger); err != nil {
		return nil, fmt.Errorf("unmarshal ledger: %w", err)
	}
	if completedAt != nil {
		sess.CompletedAt = *completedAt
	}
	return &sess, nil
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func nonNilMessages(in []Message) []Message {
	if in == nil {
		return []Message{}
	}
	return in
}

func nonNilRecords(in []intel.Record) []intel.Record {
	if in == nil {
		return []intel.Record{}
	}
	return in
}
