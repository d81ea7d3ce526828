// Package metrics defines and registers all custom Prometheus metrics for the
// commerce platform API. It is the single source of truth for metric names,
// labels, and help strings; promauto registers everything with the default
// registry at package init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "commerce"

// ── Authentication metrics ────────────────────────────────────────────────────

// LoginAttemptsTotal counts login attempts by outcome.
// Label:
//   - outcome: "success", "invalid_credentials", "locked", "error"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts, labelled by outcome.",
	},
	[]string{"outcome"},
)

// LockoutsEngagedTotal counts lockouts that engaged after the failed-attempt
// threshold was reached.
var LockoutsEngagedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lockouts_engaged_total",
		Help:      "Total number of account lockouts engaged.",
	},
)

// PasswordResetsTotal counts password-reset redemptions by outcome.
// Label:
//   - outcome: "success", "invalid_token", "password_unchanged"
var PasswordResetsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "password_resets_total",
		Help:      "Total number of password reset redemptions, labelled by outcome.",
	},
	[]string{"outcome"},
)

// ── Authorization metrics ─────────────────────────────────────────────────────

// AuthorizationDenialsTotal counts requests denied by the authorization
// engine.
// Label:
//   - requirement: "resource_action", "any_of", "all_of", "minimum_level"
var AuthorizationDenialsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authorization_denials_total",
		Help:      "Total number of requests denied by the authorization engine.",
	},
	[]string{"requirement"},
)

// ── Permission cache metrics ──────────────────────────────────────────────────

// PermissionCacheTotal counts permission lookups by cache result.
// Label:
//   - result: "hit" or "miss" (miss includes repopulation from the store)
var PermissionCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "permission_cache_total",
		Help:      "Total number of permission cache lookups, labelled by result (hit/miss).",
	},
	[]string{"result"},
)

// InvalidationEventsTotal counts invalidation events by name and direction.
// Labels:
//   - event: "permissions.updated", "permissions.invalidated", "permissions.bulk.invalidated"
//   - direction: "published" or "received"
var InvalidationEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invalidation_events_total",
		Help:      "Total number of cache invalidation events published and received.",
	},
	[]string{"event", "direction"},
)
