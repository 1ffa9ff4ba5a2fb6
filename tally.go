package tally

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/tally/counter"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/plugin"
	"github.com/xraph/tally/store"
)

// Defaults for the discover page.
const (
	DefaultDiscoverWindow = 7 * 24 * time.Hour
	DefaultDiscoverLimit  = 10
)

// Tally is the identity-and-ranking engine. It allocates identifiers, keeps
// denormalized counters in step with the relation graph and answers windowed
// rankings.
type Tally struct {
	store   store.Store
	ids     *id.Generator
	plugins *plugin.Registry
	logger  *slog.Logger

	// Background reconciler
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Configuration
	autoMigrate       bool
	batchConcurrency  int
	reconcileInterval time.Duration
	reconcilePage     int
	discoverEnabled   bool
	discoverWindow    time.Duration
	discoverLimit     int
}

// New creates a new Tally instance.
func New(s store.Store, opts ...Option) *Tally {
	t := &Tally{
		store:            s,
		ids:              id.NewGenerator(),
		plugins:          plugin.NewRegistry(),
		logger:           slog.Default(),
		stopChan:         make(chan struct{}),
		autoMigrate:      true,
		batchConcurrency: 8,
		reconcilePage:    500,
		discoverEnabled:  true,
		discoverWindow:   DefaultDiscoverWindow,
		discoverLimit:    DefaultDiscoverLimit,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Option configures a Tally instance.
type Option func(*Tally)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tally) {
		t.logger = logger
		t.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(t *Tally) {
		_ = t.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithHookTimeout bounds how long a single plugin hook may run.
func WithHookTimeout(d time.Duration) Option {
	return func(t *Tally) {
		if d > 0 {
			t.plugins.WithTimeout(d)
		}
	}
}

// WithGenerator replaces the identifier generator.
func WithGenerator(g *id.Generator) Option {
	return func(t *Tally) {
		t.ids = g
	}
}

// WithClock builds the identifier generator on the given clock.
func WithClock(c id.Clock) Option {
	return func(t *Tally) {
		t.ids = id.NewGenerator(id.WithClock(c))
	}
}

// WithAutoMigrate controls whether Start migrates the store. It defaults to
// true.
func WithAutoMigrate(enabled bool) Option {
	return func(t *Tally) {
		t.autoMigrate = enabled
	}
}

// WithBatchConcurrency bounds how many deltas BatchApply runs at once.
func WithBatchConcurrency(n int) Option {
	return func(t *Tally) {
		if n > 0 {
			t.batchConcurrency = n
		}
	}
}

// WithReconcileInterval enables the background reconciler. Zero disables it.
func WithReconcileInterval(d time.Duration) Option {
	return func(t *Tally) {
		t.reconcileInterval = d
	}
}

// WithReconcilePageSize sets how many identifiers Reconcile loads per page.
func WithReconcilePageSize(n int) Option {
	return func(t *Tally) {
		if n > 0 {
			t.reconcilePage = n
		}
	}
}

// WithDiscoverEnabled switches the discover feature on or off.
func WithDiscoverEnabled(enabled bool) Option {
	return func(t *Tally) {
		t.discoverEnabled = enabled
	}
}

// WithDiscoverDefaults sets the window and per-list limit Discover uses when
// the caller leaves them zero.
func WithDiscoverDefaults(window time.Duration, limit int) Option {
	return func(t *Tally) {
		if window > 0 {
			t.discoverWindow = window
		}
		if limit > 0 {
			t.discoverLimit = limit
		}
	}
}

// Store returns the underlying store.
func (t *Tally) Store() store.Store { return t.store }

// IDs returns the identifier generator.
func (t *Tally) IDs() *id.Generator { return t.ids }

// Plugins returns the plugin registry.
func (t *Tally) Plugins() *plugin.Registry { return t.plugins }

// Allocate returns a fresh identifier for kind without waiting out
// exhaustion.
func (t *Tally) Allocate(kind id.Kind) (id.ID, error) {
	return t.ids.Allocate(kind)
}

// Start migrates the store, initializes plugins and starts the background
// reconciler when configured.
func (t *Tally) Start(ctx context.Context) error {
	if t.autoMigrate {
		if err := t.store.Migrate(ctx); err != nil {
			return err
		}
	}

	t.plugins.EmitInit(ctx, t)

	if t.reconcileInterval > 0 {
		t.wg.Add(1)
		go t.reconcileWorker(context.WithoutCancel(ctx))
	}

	t.logger.Info("tally started",
		"batch_concurrency", t.batchConcurrency,
		"reconcile_interval", t.reconcileInterval,
		"discover_enabled", t.discoverEnabled,
	)

	return nil
}

// Stop shuts down the background reconciler, notifies plugins and closes
// the store.
func (t *Tally) Stop() error {
	t.stopOnce.Do(func() { close(t.stopChan) })
	t.wg.Wait()

	ctx := context.Background()
	t.plugins.EmitShutdown(ctx)

	return t.store.Close()
}

func (t *Tally) reconcileWorker(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopChan:
			return
		case <-ticker.C:
			for _, kind := range counter.Counted() {
				drifts, err := t.Reconcile(ctx, kind)
				if err != nil {
					t.logger.Error("reconcile failed",
						"kind", kind.String(),
						"error", err,
					)
					continue
				}
				if len(drifts) > 0 {
					t.logger.Info("reconcile corrected drift",
						"kind", kind.String(),
						"drifts", len(drifts),
					)
				}
			}
		}
	}
}
