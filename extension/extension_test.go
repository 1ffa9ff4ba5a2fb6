package extension

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/tally"
	"github.com/xraph/tally/store/memory"
)

func TestMergeWithDefaults(t *testing.T) {
	got := mergeWithDefaults(Config{DiscoverLimit: 3})
	want := DefaultConfig()
	want.DiscoverLimit = 3
	if got != want {
		t.Errorf("mergeWithDefaults = %+v, want %+v", got, want)
	}
}

func TestMergeConfigurations(t *testing.T) {
	tests := []struct {
		name        string
		yaml, prog  Config
		check       func(Config) bool
		description string
	}{
		{
			name:        "yaml wins",
			yaml:        Config{DiscoverLimit: 4, Driver: DriverSQLite},
			prog:        Config{DiscoverLimit: 9, Driver: DriverMongo},
			check:       func(c Config) bool { return c.DiscoverLimit == 4 && c.Driver == DriverSQLite },
			description: "file values take precedence",
		},
		{
			name:        "programmatic fills gaps",
			yaml:        Config{},
			prog:        Config{ReconcileInterval: time.Minute, Driver: DriverPostgres},
			check:       func(c Config) bool { return c.ReconcileInterval == time.Minute && c.Driver == DriverPostgres },
			description: "zero file values take programmatic ones",
		},
		{
			name:        "bool flags",
			yaml:        Config{},
			prog:        Config{DisableMigrate: true, DisableDiscover: true, Metrics: true},
			check:       func(c Config) bool { return c.DisableMigrate && c.DisableDiscover && c.Metrics },
			description: "programmatic true flags override",
		},
		{
			name:        "defaults last",
			yaml:        Config{},
			prog:        Config{},
			check:       func(c Config) bool { return c == DefaultConfig() },
			description: "remaining zeros take defaults",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mergeConfigurations(tt.yaml, tt.prog); !tt.check(got) {
				t.Errorf("%s: got %+v", tt.description, got)
			}
		})
	}
}

func TestBuildStore(t *testing.T) {
	explicit := memory.New()
	e := New(WithStore(explicit), WithDriver(DriverPostgres))
	if s, err := e.buildStore(); err != nil || s != explicit {
		t.Errorf("WithStore was not honoured: %v", err)
	}

	e = New()
	e.config = mergeWithDefaults(e.config)
	s, err := e.buildStore()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*memory.Store); !ok {
		t.Errorf("default store is %T", s)
	}

	e = New(WithDriver(DriverSQLite))
	if _, err := e.buildStore(); err == nil {
		t.Error("sqlite without a grove database should fail")
	}
}

func TestBuildTallyOpts(t *testing.T) {
	e := New(
		WithStore(memory.New()),
		WithDisableDiscover(),
		WithDisableMigrate(),
		WithMetricsRegisterer(prometheus.NewRegistry()),
	)
	e.config = mergeWithDefaults(e.config)

	engine := tally.New(e.store, e.buildTallyOpts()...)
	if _, err := engine.Discover(context.Background(), tally.DiscoverOpts{}); !errors.Is(err, tally.ErrDiscoverDisabled) {
		t.Errorf("expected ErrDiscoverDisabled, got %v", err)
	}
	if engine.Plugins().Get("observability-metrics") == nil {
		t.Error("metrics plugin not registered")
	}
}

func TestLifecycleBeforeRegister(t *testing.T) {
	e := New()
	if e.Engine() != nil {
		t.Error("engine exists before Register")
	}
	if err := e.Start(context.Background()); err == nil {
		t.Error("Start before Register should fail")
	}
	if err := e.Health(context.Background()); err == nil {
		t.Error("Health before Register should fail")
	}
}
