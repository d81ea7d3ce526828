package bus

import (
	"context"
	"encoding/json"
	"hash/fnv"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/velora/commerce-api/internal/api/metrics"
	"github.com/velora/commerce-api/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 128
)

// Subscriber listens on the invalidation channel and applies the deletions
// to the local cache. Events are routed to a fixed set of workers by
// consistent hashing on the role id, so invalidations for the same role are
// applied in arrival order while distinct roles proceed in parallel.
type Subscriber struct {
	client  *redis.Client
	cache   ports.Cache
	origin  string
	workers []chan Envelope
	log     zerolog.Logger
}

// NewSubscriber creates a Subscriber with numWorkers sharded workers. Events
// whose Origin equals origin are skipped: the publishing process already
// invalidated its own entries synchronously.
func NewSubscriber(client *redis.Client, cache ports.Cache, origin string, numWorkers int, log zerolog.Logger) *Subscriber {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	s := &Subscriber{
		client:  client,
		cache:   cache,
		origin:  origin,
		workers: make([]chan Envelope, numWorkers),
		log:     log,
	}
	for i := range s.workers {
		s.workers[i] = make(chan Envelope, channelBuffer)
	}
	return s
}

// Start subscribes and launches the receive loop plus all workers. It returns
// once the subscription is confirmed; everything stops when ctx is cancelled.
func (s *Subscriber) Start(ctx context.Context) error {
	sub := s.client.Subscribe(ctx, Channel)
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	for i, ch := range s.workers {
		go s.runWorker(ctx, i, ch)
	}
	go s.receive(ctx, sub)
	return nil
}

func (s *Subscriber) receive(ctx context.Context, sub *redis.PubSub) {
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				s.log.Warn().Err(err).Msg("malformed invalidation event dropped")
				continue
			}
			if env.Origin == s.origin {
				continue
			}
			s.workers[s.shardIndex(env.RoleID)] <- env
		}
	}
}

// shardIndex maps a role id deterministically to a worker index. Bulk events
// (empty role id) all land on worker 0.
func (s *Subscriber) shardIndex(roleID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(roleID))
	return int(h.Sum32()) % len(s.workers)
}

func (s *Subscriber) runWorker(ctx context.Context, id int, ch <-chan Envelope) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-ch:
			if !ok {
				return
			}
			if err := s.apply(ctx, env); err != nil {
				s.log.Warn().Err(err).
					Str("event", env.Event).
					Str("role_id", env.RoleID).
					Int("worker_id", id).
					Msg("invalidation apply failed")
			}
		}
	}
}

func (s *Subscriber) apply(ctx context.Context, env Envelope) error {
	metrics.InvalidationEventsTotal.WithLabelValues(env.Event, "received").Inc()
	switch env.Event {
	case ports.EventPermissionsUpdated, ports.EventPermissionsInvalidated:
		return s.cache.InvalidateTag(ctx, ports.RoleTag(env.RoleID))
	case ports.EventPermissionsBulkInvalidated:
		return s.cache.DeleteByPattern(ctx, ports.CacheDomainPermissions, "*")
	default:
		s.log.Debug().Str("event", env.Event).Msg("unknown invalidation event ignored")
		return nil
	}
}
