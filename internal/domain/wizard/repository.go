package wizard

import (
	"context"
	"errors"
	"time"
)

// ErrStateNotFound is returned when no state is stored under a key.
var ErrStateNotFound = errors.New("wizard state not found")

// StateRepository is the server-side "browser storage": one serialized
// State per storage key.
type StateRepository interface {
	Load(ctx context.Context, key string) (*State, error)
	Save(ctx context.Context, key string, state *State) error
	Delete(ctx context.Context, key string) error
	// PurgeIdle removes states whose LastActivity is before cutoff and
	// reports how many were removed.
	PurgeIdle(ctx context.Context, cutoff time.Time) (int, error)
}
