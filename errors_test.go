package tally_test

import (
	"errors"
	"testing"
	"time"

	"github.com/xraph/tally"
	"github.com/xraph/tally/counter"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/model"
)

func TestAllocatorExhaustionIsRetryable(t *testing.T) {
	clk := &clock{now: now}
	g := id.NewGenerator(id.WithClock(clk), id.WithRetry(time.Millisecond, 5*time.Millisecond))
	for i := 0; i < 1<<16; i++ {
		if _, err := g.Allocate(id.KindUser); err != nil {
			t.Fatalf("allocation %d: %v", i, err)
		}
	}
	e := newEnv(t, tally.WithGenerator(g))

	err := e.t.CreateUser(e.ctx, &model.User{ScreenName: "late"})
	if !errors.Is(err, tally.ErrAllocatorExhausted) {
		t.Fatalf("expected ErrAllocatorExhausted, got %v", err)
	}
	if !tally.IsRetryable(err) {
		t.Errorf("exhaustion should be retryable: %v", err)
	}

	clk.Set(now.Add(time.Millisecond))
	u := &model.User{ScreenName: "late"}
	if err := e.t.CreateUser(e.ctx, u); err != nil {
		t.Fatalf("retry after the clock ticks: %v", err)
	}
	if !u.ID.Time().Equal(now.Add(time.Millisecond)) {
		t.Errorf("id time = %v", u.ID.Time())
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{tally.ErrAllocatorExhausted, true},
		{tally.MultiError{Errors: []error{tally.ErrAllocatorExhausted}}, true},
		{tally.ErrUserNotFound, false},
		{tally.ErrTargetGone, false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := tally.IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestMultiError(t *testing.T) {
	var errs tally.MultiError
	if errs.HasErrors() || errs.ErrOrNil() != nil {
		t.Fatal("empty MultiError should report no errors")
	}
	errs.Add(nil)
	if errs.HasErrors() {
		t.Fatal("Add(nil) should be ignored")
	}

	errs.Add(tally.ErrAnswerNotFound)
	errs.Add(tally.ErrInvalidDelta)
	if !errs.HasErrors() || len(errs.Errors) != 2 {
		t.Fatalf("expected two errors, got %+v", errs.Errors)
	}
	err := errs.ErrOrNil()
	if !errors.Is(err, tally.ErrInvalidDelta) || !tally.IsNotFound(err) {
		t.Errorf("collected errors should stay matchable: %v", err)
	}
	if errs.First() != tally.ErrAnswerNotFound {
		t.Errorf("First = %v", errs.First())
	}

	var none *tally.MultiError
	if none.ErrOrNil() != nil {
		t.Error("nil MultiError should yield nil")
	}
}

func TestDriftErrorDelta(t *testing.T) {
	tests := []struct {
		stored, actual, want int64
	}{
		{7, 2, -5},
		{0, 3, 3},
		{4, 4, 0},
	}
	for _, tt := range tests {
		d := &tally.DriftError{
			Target: counter.Target{Kind: id.KindAnswer, ID: id.New(1, 0), Field: counter.SmileCount},
			Stored: tt.stored,
			Actual: tt.actual,
		}
		if got := d.Delta(); got != tt.want {
			t.Errorf("Delta() stored %d actual %d = %d, want %d", tt.stored, tt.actual, got, tt.want)
		}
		if !errors.Is(d, tally.ErrCounterDrift) {
			t.Error("drift should match ErrCounterDrift")
		}
	}
}
