// Package plugin provides an extensible plugin system for tally.
// Plugins hook into entity lifecycle, counter and ranking events.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/tally/counter"
	"github.com/xraph/tally/id"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, t interface{}) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Entity hooks
// ──────────────────────────────────────────────────

// OnEntityCreated is called after an entity row is stored and its edge deltas
// applied. entity is the *model.X that was created.
type OnEntityCreated interface {
	Plugin
	OnEntityCreated(ctx context.Context, kind id.Kind, entityID id.ID, entity interface{}) error
}

// OnEntityDeleted is called after an entity row is removed.
type OnEntityDeleted interface {
	Plugin
	OnEntityDeleted(ctx context.Context, kind id.Kind, entityID id.ID) error
}

// ──────────────────────────────────────────────────
// Counter hooks
// ──────────────────────────────────────────────────

// OnDeltaApplied is called after a counter delta is committed.
type OnDeltaApplied interface {
	Plugin
	OnDeltaApplied(ctx context.Context, d counter.Delta) error
}

// OnTargetGone is called when a delta is dropped because its target row no
// longer exists.
type OnTargetGone interface {
	Plugin
	OnTargetGone(ctx context.Context, d counter.Delta) error
}

// OnCounterDrift is called when a recount finds a stored value that
// disagrees with the live child count. The stored value has already been
// corrected.
type OnCounterDrift interface {
	Plugin
	OnCounterDrift(ctx context.Context, t counter.Target, stored, actual int64) error
}

// ──────────────────────────────────────────────────
// Ranking hooks
// ──────────────────────────────────────────────────

// OnRankingServed is called after a ranking query returns. ranking names the
// ordering ("answer.smile_count", "question.by_author", ...).
type OnRankingServed interface {
	Plugin
	OnRankingServed(ctx context.Context, ranking string, window time.Duration, results int, elapsed time.Duration) error
}
