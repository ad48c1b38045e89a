// Package confirm holds moderation actions waiting for their requester to
// confirm or cancel them.
package confirm

import (
	"context"
	"time"

	"ceniza-bot/model"

	"github.com/google/uuid"
)

// DefaultTTL is how long a pending action stays confirmable.
const DefaultTTL = 120 * time.Second

// Store keeps pending actions keyed by an unguessable token. Peek and the
// consume methods return nil, nil for tokens that are unknown, expired or
// already consumed; callers must not tell those cases apart.
type Store interface {
	// Create stores a new record and returns it; its ID is the token.
	Create(ctx context.Context, requesterID string, action model.Action, origin model.Origin) (*model.PendingAction, error)
	Peek(ctx context.Context, token string) (*model.PendingAction, error)
	// Consume removes the record, live or expired. At most one caller ever
	// receives a given record.
	Consume(ctx context.Context, token string) (*model.PendingAction, error)
	// ConsumeFor is Consume restricted to the record's requester. A
	// different user gets nil and leaves the record in place.
	ConsumeFor(ctx context.Context, token, requesterID string) (*model.PendingAction, error)
	TTL() time.Duration
}

func newToken() string {
	return uuid.NewString()
}
