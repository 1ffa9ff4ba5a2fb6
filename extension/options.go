package extension

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xraph/grove"

	"github.com/xraph/tally"
	audithook "github.com/xraph/tally/audit_hook"
	"github.com/xraph/tally/plugin"
	"github.com/xraph/tally/store"
)

// Option configures the tally Forge extension.
type Option func(*Extension)

// WithStore sets the store for the tally engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithGroveDB builds the store on db using Config.Driver.
func WithGroveDB(db *grove.DB) Option {
	return func(e *Extension) {
		e.groveDB = db
	}
}

// WithDriver sets the store driver used with WithGroveDB.
func WithDriver(driver string) Option {
	return func(e *Extension) { e.config.Driver = driver }
}

// WithTallyOption passes a tally.Option through to the underlying engine.
func WithTallyOption(opt tally.Option) Option {
	return func(e *Extension) {
		e.tallyOpts = append(e.tallyOpts, opt)
	}
}

// WithPlugin registers a tally plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.tallyOpts = append(e.tallyOpts, tally.WithPlugin(p))
	}
}

// WithAuditRecorder registers the audit hook, recording through r.
func WithAuditRecorder(r audithook.Recorder, opts ...audithook.Option) Option {
	return func(e *Extension) {
		e.tallyOpts = append(e.tallyOpts, tally.WithPlugin(audithook.New(r, opts...)))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithDisableDiscover turns the discover page off.
func WithDisableDiscover() Option {
	return func(e *Extension) { e.config.DisableDiscover = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithDiscover sets the discover window and per-list limit.
func WithDiscover(window time.Duration, limit int) Option {
	return func(e *Extension) {
		e.config.DiscoverWindow = window
		e.config.DiscoverLimit = limit
	}
}

// WithReconcileInterval enables periodic counter reconciliation.
func WithReconcileInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.ReconcileInterval = d }
}

// WithMetrics registers the Prometheus-backed metrics plugin.
func WithMetrics() Option {
	return func(e *Extension) { e.config.Metrics = true }
}

// WithMetricsRegisterer registers the metrics plugin on reg instead of the
// default Prometheus registerer.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(e *Extension) {
		e.config.Metrics = true
		e.registerer = reg
	}
}
