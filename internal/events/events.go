package events

import (
	"context"
	"encoding/json"
	"fmt"

	"ctchen222/nxn-tic-tac-toe/internal/api/models"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("events")

// Event types.
const (
	TypeSessionUpdated = "session_updated"
	TypeSessionDeleted = "session_deleted"
)

// Event represents a message published via Pub/Sub.
type Event struct {
	Type    string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SessionUpdatedPayload is the payload for the "session_updated" event.
type SessionUpdatedPayload struct {
	Session models.SessionView `json:"session"`
}

// SessionChannel is the Pub/Sub channel of one session.
func SessionChannel(id string) string {
	return fmt.Sprintf("channel:session:%s", id)
}

//go:generate mockgen -source=events.go -destination=mocks/events.go -package=mocks

// Publisher announces session changes to connected streams.
type Publisher interface {
	SessionUpdated(ctx context.Context, view models.SessionView) error
	SessionDeleted(ctx context.Context, id string) error
}

// Bus publishes and subscribes to session events over Redis Pub/Sub.
type Bus struct {
	rdb *redis.Client
}

// NewBus creates a Redis-backed Bus.
func NewBus(rdb *redis.Client) *Bus {
	return &Bus{rdb: rdb}
}

// SessionUpdated publishes the new state of a session.
func (b *Bus) SessionUpdated(ctx context.Context, view models.SessionView) error {
	payload, err := json.Marshal(SessionUpdatedPayload{Session: view})
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", TypeSessionUpdated, err)
	}
	return b.publish(ctx, view.ID, Event{Type: TypeSessionUpdated, Payload: payload})
}

// SessionDeleted tells subscribers the session is gone.
func (b *Bus) SessionDeleted(ctx context.Context, id string) error {
	return b.publish(ctx, id, Event{Type: TypeSessionDeleted})
}

func (b *Bus) publish(ctx context.Context, id string, evt Event) error {
	ctx, span := tracer.Start(ctx, "events.publish", trace.WithAttributes(
		attribute.String("session.id", id),
		attribute.String("event.type", evt.Type),
	))
	defer span.End()

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.rdb.Publish(ctx, SessionChannel(id), data).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to publish event")
		return fmt.Errorf("failed to publish %s for session %s: %w", evt.Type, id, err)
	}
	return nil
}

// Subscription delivers the events of one session until closed.
type Subscription struct {
	pubsub *redis.PubSub
	events chan Event
}

// Subscribe starts listening on a session's channel. The subscription is
// confirmed before Subscribe returns, so no event published afterwards is missed.
func (b *Bus) Subscribe(ctx context.Context, id string) (*Subscription, error) {
	pubsub := b.rdb.Subscribe(ctx, SessionChannel(id))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to session %s: %w", id, err)
	}

	sub := &Subscription{pubsub: pubsub, events: make(chan Event)}
	go sub.run(ctx)
	return sub, nil
}

func (s *Subscription) run(ctx context.Context) {
	defer close(s.events)
	for msg := range s.pubsub.Channel() {
		var evt Event
		if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
			continue
		}
		select {
		case s.events <- evt:
		case <-ctx.Done():
			return
		}
	}
}

// Events is closed when the subscription ends.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close stops the subscription.
func (s *Subscription) Close() error {
	return s.pubsub.Close()
}
