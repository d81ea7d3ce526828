// Package bus broadcasts cache-invalidation events between processes over
// Redis pub/sub. Delivery is fire-and-forget and at-most-once: the permission
// cache self-heals from store-of-truth reads on miss, so the bus only
// shortens the staleness window, it is not the consistency mechanism.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/velora/commerce-api/internal/api/metrics"
	"github.com/velora/commerce-api/internal/core/ports"
)

// Channel is the pub/sub channel all invalidation events travel on.
const Channel = "commerce.permissions.events"

// Envelope is the wire form of an invalidation event. ID deduplicates for
// logging; Origin lets a process skip events it published itself.
type Envelope struct {
	ID     string `json:"id"`
	Origin string `json:"origin"`
	Event  string `json:"event"`
	RoleID string `json:"role_id,omitempty"`
	At     int64  `json:"at"`
}

// Publisher implements ports.Publisher on a Redis channel.
type Publisher struct {
	client *redis.Client
	origin string
}

// NewPublisher creates a publisher. origin identifies this process in event
// envelopes; a fresh UUID is generated when empty.
func NewPublisher(client *redis.Client, origin string) *Publisher {
	if origin == "" {
		origin = uuid.NewString()
	}
	return &Publisher{client: client, origin: origin}
}

// Origin returns the process identity stamped on published events.
func (p *Publisher) Origin() string {
	return p.origin
}

func (p *Publisher) Publish(ctx context.Context, event string, payload ports.EventPayload) error {
	env := Envelope{
		ID:     uuid.NewString(),
		Origin: p.origin,
		Event:  event,
		RoleID: payload.RoleID,
		At:     time.Now().UTC().Unix(),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("bus marshal: %w", err)
	}
	if err := p.client.Publish(ctx, Channel, raw).Err(); err != nil {
		return fmt.Errorf("bus publish: %w", err)
	}
	metrics.InvalidationEventsTotal.WithLabelValues(event, "published").Inc()
	return nil
}
