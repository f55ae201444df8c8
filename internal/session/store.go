package session

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// TransientError marks a store failure that is worth retrying, such as
// a dropped database connection. Permanent errors are returned bare.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("session store: %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Store persists sessions keyed by session ID. Reads past a session's
// expiry behave as not-found; Save refreshes the expiry window.
type Store interface {
	// Load returns the session or ErrNotFound.
	Load(ctx context.Context, id string) (*Session, error)
	// CreateIfAbsent returns the existing session, or creates a fresh
	// one with the given persona. The bool reports whether a session
	// was created.
	CreateIfAbsent(ctx context.Context, id, persona string) (*Session, bool, error)
	// Save writes the session and slides its expiry forward.
	Save(ctx context.Context, s *Session) error
	// Delete removes the session. Deleting an absent session is not an
	// error.
	Delete(ctx context.Context, id string) error
	// Mode names the backing implementation, for health reporting.
	Mode() string
	// Healthy reports whether the backend is reachable.
	Healthy(ctx context.Context) bool
	Close()
}
