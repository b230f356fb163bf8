package messaging

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/events"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/logging"
)

const (
	// TopicAll receives every wizard event.
	TopicAll       = "wizard.events"
	topicKeyPrefix = "wizard.session."
	metaStorageKey = "storage_key"
	metaKind       = "kind"
)

// EventBus is an in-process pub/sub on a watermill go channel. Each event
// is published to its storage key topic and to TopicAll.
type EventBus struct {
	pubsub    *gochannel.GoChannel
	logger    *logging.ChanneledLogger
	published atomic.Int64
}

// NewEventBus creates the bus.
func NewEventBus(logger *logging.ChanneledLogger) *EventBus {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	ps := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, watermill.NewSlogLogger(logger.Debug()))
	return &EventBus{pubsub: ps, logger: logger}
}

func topicForKey(key string) string { return topicKeyPrefix + key }

// Publish implements Publisher. Events without subscribers are dropped.
func (b *EventBus) Publish(_ context.Context, ev events.Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	topics := []string{TopicAll}
	if ev.StorageKey != "" {
		topics = append(topics, topicForKey(ev.StorageKey))
	}
	for _, topic := range topics {
		msg := message.NewMessage(ev.ID, payload)
		msg.Metadata.Set(metaStorageKey, ev.StorageKey)
		msg.Metadata.Set(metaKind, string(ev.Kind))
		if err := b.pubsub.Publish(topic, msg); err != nil {
			b.logger.Wizard().Error("Failed to publish wizard event", "kind", ev.Kind, "error", err.Error())
			return err
		}
	}
	b.published.Add(1)
	return nil
}

// Subscribe implements Subscriber for one storage key.
func (b *EventBus) Subscribe(ctx context.Context, storageKey string) (<-chan events.Event, error) {
	return b.subscribe(ctx, topicForKey(storageKey))
}

// SubscribeAll streams every wizard event.
func (b *EventBus) SubscribeAll(ctx context.Context) (<-chan events.Event, error) {
	return b.subscribe(ctx, TopicAll)
}

func (b *EventBus) subscribe(ctx context.Context, topic string) (<-chan events.Event, error) {
	msgs, err := b.pubsub.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}
	out := make(chan events.Event, 16)
	go func() {
		defer close(out)
		for msg := range msgs {
			var ev events.Event
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				b.logger.Wizard().Warn("Dropping undecodable wizard event", "error", err.Error())
				msg.Ack()
				continue
			}
			ev.StorageKey = msg.Metadata.Get(metaStorageKey)
			select {
			case out <- ev:
			case <-ctx.Done():
				msg.Nack()
				return
			}
			msg.Ack()
		}
	}()
	return out, nil
}

// Published returns how many events were published.
func (b *EventBus) Published() int64 { return b.published.Load() }

// Close stops the bus and closes every subscription.
func (b *EventBus) Close() error {
	return b.pubsub.Close()
}
