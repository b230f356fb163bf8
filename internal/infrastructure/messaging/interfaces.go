// Package messaging carries wizard events between the state service, the
// flow service and live websocket clients.
package messaging

import (
	"context"

	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/events"
)

// Publisher publishes wizard events.
type Publisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

// Subscriber streams the events of one storage key until ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, storageKey string) (<-chan events.Event, error)
}
