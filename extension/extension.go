// Package extension provides the Forge extension adapter for tally.
//
// It implements the forge.Extension interface to integrate tally
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.tally" or "tally" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/tally"
	"github.com/xraph/tally/observability"
	"github.com/xraph/tally/store"
	"github.com/xraph/tally/store/memory"
	"github.com/xraph/tally/store/mongo"
	"github.com/xraph/tally/store/postgres"
	"github.com/xraph/tally/store/sqlite"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "tally"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Identifier allocation, denormalized counters and windowed rankings"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts tally as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *tally.Tally
	store      store.Store
	groveDB    *grove.DB
	registerer prometheus.Registerer
	tallyOpts  []tally.Option
}

// New creates a new tally Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying tally instance.
// This is nil until Register is called.
func (e *Extension) Engine() *tally.Tally { return e.engine }

// ResolvedConfig returns the configuration after defaults and file values
// are merged in.
func (e *Extension) ResolvedConfig() Config { return e.config }

// Register implements [forge.Extension]. It loads configuration,
// initializes the tally engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	s, err := e.buildStore()
	if err != nil {
		return err
	}
	e.store = s

	e.engine = tally.New(e.store, e.buildTallyOpts()...)

	return vessel.Provide(fapp.Container(), func() (*tally.Tally, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("tally: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("tally: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildStore picks the store: an explicit WithStore wins, then a grove.DB
// with the configured driver, then memory.
func (e *Extension) buildStore() (store.Store, error) {
	if e.store != nil {
		return e.store, nil
	}

	driver := e.config.Driver
	if e.groveDB == nil {
		if driver == "" || driver == DriverMemory {
			return memory.New(), nil
		}
		return nil, fmt.Errorf("tally: driver %q needs a grove database (WithGroveDB)", driver)
	}

	switch driver {
	case DriverSQLite:
		return sqlite.New(e.groveDB), nil
	case DriverPostgres:
		return postgres.New(e.groveDB), nil
	case DriverMongo:
		return mongo.New(e.groveDB), nil
	}
	return nil, fmt.Errorf("tally: unknown store driver %q", driver)
}

// buildTallyOpts constructs tally.Option values from the resolved config.
func (e *Extension) buildTallyOpts() []tally.Option {
	opts := make([]tally.Option, 0, len(e.tallyOpts)+8)

	opts = append(opts,
		tally.WithAutoMigrate(!e.config.DisableMigrate),
		tally.WithDiscoverEnabled(!e.config.DisableDiscover),
		tally.WithDiscoverDefaults(e.config.DiscoverWindow, e.config.DiscoverLimit),
		tally.WithBatchConcurrency(e.config.BatchConcurrency),
		tally.WithReconcileInterval(e.config.ReconcileInterval),
		tally.WithReconcilePageSize(e.config.ReconcilePageSize),
		tally.WithHookTimeout(e.config.HookTimeout),
	)

	if e.config.Metrics {
		factory := observability.NewPrometheusFactory(e.registerer)
		opts = append(opts, tally.WithPlugin(observability.NewMetricsExtension(factory)))
	}

	// Append any pass-through tally options.
	opts = append(opts, e.tallyOpts...)

	return opts
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("tally: configuration is required but not found in config files; " +
				"ensure 'extensions.tally' or 'tally' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("tally: configuration loaded",
		forge.F("driver", e.config.Driver),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("disable_discover", e.config.DisableDiscover),
		forge.F("discover_window", e.config.DiscoverWindow),
		forge.F("discover_limit", e.config.DiscoverLimit),
		forge.F("reconcile_interval", e.config.ReconcileInterval),
		forge.F("metrics", e.config.Metrics),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.tally", "tally"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("tally: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("tally: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Driver == "" {
		cfg.Driver = defaults.Driver
	}
	if cfg.DiscoverWindow == 0 {
		cfg.DiscoverWindow = defaults.DiscoverWindow
	}
	if cfg.DiscoverLimit == 0 {
		cfg.DiscoverLimit = defaults.DiscoverLimit
	}
	if cfg.BatchConcurrency == 0 {
		cfg.BatchConcurrency = defaults.BatchConcurrency
	}
	if cfg.ReconcilePageSize == 0 {
		cfg.ReconcilePageSize = defaults.ReconcilePageSize
	}
	if cfg.HookTimeout == 0 {
		cfg.HookTimeout = defaults.HookTimeout
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.DisableDiscover {
		yamlConfig.DisableDiscover = true
	}
	if programmaticConfig.Metrics {
		yamlConfig.Metrics = true
	}

	if yamlConfig.Driver == "" {
		yamlConfig.Driver = programmaticConfig.Driver
	}

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.DiscoverWindow == 0 {
		yamlConfig.DiscoverWindow = programmaticConfig.DiscoverWindow
	}
	if yamlConfig.DiscoverLimit == 0 {
		yamlConfig.DiscoverLimit = programmaticConfig.DiscoverLimit
	}
	if yamlConfig.BatchConcurrency == 0 {
		yamlConfig.BatchConcurrency = programmaticConfig.BatchConcurrency
	}
	if yamlConfig.ReconcileInterval == 0 {
		yamlConfig.ReconcileInterval = programmaticConfig.ReconcileInterval
	}
	if yamlConfig.ReconcilePageSize == 0 {
		yamlConfig.ReconcilePageSize = programmaticConfig.ReconcilePageSize
	}
	if yamlConfig.HookTimeout == 0 {
		yamlConfig.HookTimeout = programmaticConfig.HookTimeout
	}

	// Fill remaining zeros with defaults.
	return mergeWithDefaults(yamlConfig)
}
