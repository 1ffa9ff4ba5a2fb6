package plugin_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/tally/counter"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/plugin"
)

type named struct{ name string }

func (n named) Name() string { return n.name }

type deltaCounter struct {
	named
	applied atomic.Int64
	gone    atomic.Int64
}

func (d *deltaCounter) OnDeltaApplied(context.Context, counter.Delta) error {
	d.applied.Add(1)
	return nil
}

func (d *deltaCounter) OnTargetGone(context.Context, counter.Delta) error {
	d.gone.Add(1)
	return nil
}

type failing struct {
	named
	calls atomic.Int64
}

func (f *failing) OnEntityCreated(context.Context, id.Kind, id.ID, interface{}) error {
	f.calls.Add(1)
	return errors.New("boom")
}

type slow struct {
	named
	release chan struct{}
}

func (s *slow) OnCounterDrift(context.Context, counter.Target, int64, int64) error {
	<-s.release
	return nil
}

func quietRegistry() *plugin.Registry {
	return plugin.NewRegistry().WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegister(t *testing.T) {
	r := quietRegistry()
	if err := r.Register(&deltaCounter{named: named{"deltas"}}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(named{"deltas"}); err == nil {
		t.Error("expected duplicate registration to fail")
	}
	if err := r.Register(named{"bare"}); err != nil {
		t.Fatal(err)
	}

	if r.Count() != 2 {
		t.Errorf("Count = %d, want 2", r.Count())
	}
	if r.Get("bare") == nil || r.Get("missing") != nil {
		t.Error("Get returned the wrong plugin")
	}
	if got := r.List(); len(got) != 2 || got[0].Name() != "deltas" {
		t.Errorf("List = %v", got)
	}
}

func TestEmitReachesOnlyImplementers(t *testing.T) {
	r := quietRegistry()
	d := &deltaCounter{named: named{"deltas"}}
	f := &failing{named: named{"failing"}}
	for _, p := range []plugin.Plugin{d, f, named{"bare"}} {
		if err := r.Register(p); err != nil {
			t.Fatal(err)
		}
	}

	ctx := context.Background()
	delta := counter.Inc(id.KindAnswer, id.New(1, 0), counter.SmileCount)
	r.EmitDeltaApplied(ctx, delta)
	r.EmitDeltaApplied(ctx, delta)
	r.EmitTargetGone(ctx, delta)
	r.EmitEntityCreated(ctx, id.KindAnswer, delta.ID, nil)
	r.EmitRankingServed(ctx, "answer.smile_count", time.Hour, 0, time.Millisecond)

	if d.applied.Load() != 2 || d.gone.Load() != 1 {
		t.Errorf("applied=%d gone=%d", d.applied.Load(), d.gone.Load())
	}
	// A failing hook is logged, not propagated.
	if f.calls.Load() != 1 {
		t.Errorf("failing hook called %d times", f.calls.Load())
	}
}

func TestHookTimeout(t *testing.T) {
	r := quietRegistry().WithTimeout(10 * time.Millisecond)
	s := &slow{named: named{"slow"}, release: make(chan struct{})}
	defer close(s.release)
	if err := r.Register(s); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		r.EmitCounterDrift(context.Background(), counter.Target{Kind: id.KindUser, ID: id.New(1, 0), Field: counter.FriendCount}, 3, 0)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("EmitCounterDrift blocked past the hook timeout")
	}
}

func TestEmitHonoursContext(t *testing.T) {
	r := quietRegistry()
	s := &slow{named: named{"slow"}, release: make(chan struct{})}
	defer close(s.release)
	if err := r.Register(s); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	r.EmitCounterDrift(ctx, counter.Target{Kind: id.KindUser, ID: id.New(1, 0), Field: counter.FriendCount}, 1, 0)
	if time.Since(start) > time.Second {
		t.Error("cancelled context did not cut the hook short")
	}
}
