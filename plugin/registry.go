package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/tally/counter"
	"github.com/xraph/tally/id"
)

// DefaultHookTimeout bounds a single plugin call.
const DefaultHookTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit          []OnInit
	onShutdown      []OnShutdown
	onEntityCreated []OnEntityCreated
	onEntityDeleted []OnEntityDeleted
	onDeltaApplied  []OnDeltaApplied
	onTargetGone    []OnTargetGone
	onCounterDrift  []OnCounterDrift
	onRankingServed []OnRankingServed
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultHookTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-call hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnEntityCreated); ok {
		r.onEntityCreated = append(r.onEntityCreated, v)
	}
	if v, ok := p.(OnEntityDeleted); ok {
		r.onEntityDeleted = append(r.onEntityDeleted, v)
	}
	if v, ok := p.(OnDeltaApplied); ok {
		r.onDeltaApplied = append(r.onDeltaApplied, v)
	}
	if v, ok := p.(OnTargetGone); ok {
		r.onTargetGone = append(r.onTargetGone, v)
	}
	if v, ok := p.(OnCounterDrift); ok {
		r.onCounterDrift = append(r.onCounterDrift, v)
	}
	if v, ok := p.(OnRankingServed); ok {
		r.onRankingServed = append(r.onRankingServed, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	typ  reflect.Type
	name string
}{
	{reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit"},
	{reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown"},
	{reflect.TypeOf((*OnEntityCreated)(nil)).Elem(), "OnEntityCreated"},
	{reflect.TypeOf((*OnEntityDeleted)(nil)).Elem(), "OnEntityDeleted"},
	{reflect.TypeOf((*OnDeltaApplied)(nil)).Elem(), "OnDeltaApplied"},
	{reflect.TypeOf((*OnTargetGone)(nil)).Elem(), "OnTargetGone"},
	{reflect.TypeOf((*OnCounterDrift)(nil)).Elem(), "OnCounterDrift"},
	{reflect.TypeOf((*OnRankingServed)(nil)).Elem(), "OnRankingServed"},
}

// implementedInterfaces returns the hook interfaces p implements.
func implementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			interfaces = append(interfaces, h.name)
		}
	}
	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// emit runs call for every plugin in hooks, logging failures.
func emit[H Plugin](ctx context.Context, r *Registry, hook string, hooks []H, call func(H) error) {
	for _, p := range hooks {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return call(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, t interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	emit(ctx, r, "OnInit", plugins, func(p OnInit) error { return p.OnInit(ctx, t) })
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	emit(ctx, r, "OnShutdown", plugins, func(p OnShutdown) error { return p.OnShutdown(ctx) })
}

// EmitEntityCreated emits an entity created event.
func (r *Registry) EmitEntityCreated(ctx context.Context, kind id.Kind, entityID id.ID, entity interface{}) {
	r.mu.RLock()
	plugins := r.onEntityCreated
	r.mu.RUnlock()

	emit(ctx, r, "OnEntityCreated", plugins, func(p OnEntityCreated) error {
		return p.OnEntityCreated(ctx, kind, entityID, entity)
	})
}

// EmitEntityDeleted emits an entity deleted event.
func (r *Registry) EmitEntityDeleted(ctx context.Context, kind id.Kind, entityID id.ID) {
	r.mu.RLock()
	plugins := r.onEntityDeleted
	r.mu.RUnlock()

	emit(ctx, r, "OnEntityDeleted", plugins, func(p OnEntityDeleted) error {
		return p.OnEntityDeleted(ctx, kind, entityID)
	})
}

// EmitDeltaApplied emits a delta applied event.
func (r *Registry) EmitDeltaApplied(ctx context.Context, d counter.Delta) {
	r.mu.RLock()
	plugins := r.onDeltaApplied
	r.mu.RUnlock()

	emit(ctx, r, "OnDeltaApplied", plugins, func(p OnDeltaApplied) error {
		return p.OnDeltaApplied(ctx, d)
	})
}

// EmitTargetGone emits a dropped-delta event.
func (r *Registry) EmitTargetGone(ctx context.Context, d counter.Delta) {
	r.mu.RLock()
	plugins := r.onTargetGone
	r.mu.RUnlock()

	emit(ctx, r, "OnTargetGone", plugins, func(p OnTargetGone) error {
		return p.OnTargetGone(ctx, d)
	})
}

// EmitCounterDrift emits a counter drift event.
func (r *Registry) EmitCounterDrift(ctx context.Context, t counter.Target, stored, actual int64) {
	r.mu.RLock()
	plugins := r.onCounterDrift
	r.mu.RUnlock()

	emit(ctx, r, "OnCounterDrift", plugins, func(p OnCounterDrift) error {
		return p.OnCounterDrift(ctx, t, stored, actual)
	})
}

// EmitRankingServed emits a ranking served event.
func (r *Registry) EmitRankingServed(ctx context.Context, ranking string, window time.Duration, results int, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onRankingServed
	r.mu.RUnlock()

	emit(ctx, r, "OnRankingServed", plugins, func(p OnRankingServed) error {
		return p.OnRankingServed(ctx, ranking, window, results, elapsed)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the counter pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
