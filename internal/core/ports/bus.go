package ports

import "context"

// Invalidation event names broadcast to other processes.
const (
	EventPermissionsUpdated         = "permissions.updated"
	EventPermissionsInvalidated     = "permissions.invalidated"
	EventPermissionsBulkInvalidated = "permissions.bulk.invalidated"
)

// EventPayload is the body of an invalidation event. RoleID is empty for bulk
// invalidations.
type EventPayload struct {
	RoleID string `json:"role_id,omitempty"`
}

// Publisher broadcasts cache-invalidation events to other processes.
// Delivery is fire-and-forget, at-most-once: consumers self-heal from
// store-of-truth reads on cache miss, so a lost event degrades freshness,
// never correctness.
type Publisher interface {
	Publish(ctx context.Context, event string, payload EventPayload) error
}

// NopPublisher discards events. Used in tests and single-process deployments.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, EventPayload) error { return nil }
