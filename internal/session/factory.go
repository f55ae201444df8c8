package session

import (
	"context"
	"time"
)

// NewStore selects the backing store. A configured database URL means
// Postgres; otherwise sessions live in process memory.
func NewStore(ctx context.Context, databaseURL string, ttl time.Duration) (Store, error) {
	if databaseURL != "" {
		return NewPostgresStore(ctx, databaseURL, ttl)
	}
	return NewInMemoryStore(ttl), nil
}
