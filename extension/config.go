package extension

import "time"

// Store driver names accepted in Config.Driver.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config holds the tally extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.tally" or "tally" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// DisableDiscover turns the discover page off.
	DisableDiscover bool `json:"disable_discover" mapstructure:"disable_discover" yaml:"disable_discover"`

	// Driver selects the store backend built on the grove.DB passed with
	// WithGroveDB: "sqlite", "postgres" or "mongo". Without a grove.DB the
	// memory store is used (default: "memory").
	Driver string `json:"driver" mapstructure:"driver" yaml:"driver"`

	// DiscoverWindow is the trailing window of the discover page (default: 168h).
	DiscoverWindow time.Duration `json:"discover_window" mapstructure:"discover_window" yaml:"discover_window"`

	// DiscoverLimit is the length of each discover list (default: 10).
	DiscoverLimit int `json:"discover_limit" mapstructure:"discover_limit" yaml:"discover_limit"`

	// BatchConcurrency bounds how many counter deltas apply at once (default: 8).
	BatchConcurrency int `json:"batch_concurrency" mapstructure:"batch_concurrency" yaml:"batch_concurrency"`

	// ReconcileInterval runs a full counter reconciliation at this period.
	// Zero leaves reconciliation to operational tooling.
	ReconcileInterval time.Duration `json:"reconcile_interval" mapstructure:"reconcile_interval" yaml:"reconcile_interval"`

	// ReconcilePageSize is the number of identifiers loaded per page while
	// reconciling (default: 500).
	ReconcilePageSize int `json:"reconcile_page_size" mapstructure:"reconcile_page_size" yaml:"reconcile_page_size"`

	// HookTimeout bounds a single plugin hook call (default: 5s).
	HookTimeout time.Duration `json:"hook_timeout" mapstructure:"hook_timeout" yaml:"hook_timeout"`

	// Metrics registers the Prometheus-backed metrics plugin.
	Metrics bool `json:"metrics" mapstructure:"metrics" yaml:"metrics"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Driver:            DriverMemory,
		DiscoverWindow:    7 * 24 * time.Hour,
		DiscoverLimit:     10,
		BatchConcurrency:  8,
		ReconcilePageSize: 500,
		HookTimeout:       5 * time.Second,
	}
}
