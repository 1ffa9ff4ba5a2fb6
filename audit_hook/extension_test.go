package audithook_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/xraph/tally"
	audithook "github.com/xraph/tally/audit_hook"
	"github.com/xraph/tally/counter"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/model"
	"github.com/xraph/tally/store/memory"
)

type trail struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (tr *trail) Record(_ context.Context, evt *audithook.AuditEvent) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.events = append(tr.events, evt)
	return nil
}

func (tr *trail) actions() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := make([]string, len(tr.events))
	for i, e := range tr.events {
		out[i] = e.Action
	}
	return out
}

func (tr *trail) find(action string) *audithook.AuditEvent {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for _, e := range tr.events {
		if e.Action == action {
			return e
		}
	}
	return nil
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func engine(t *testing.T, rec audithook.Recorder, opts ...audithook.Option) (*tally.Tally, *memory.Store) {
	t.Helper()
	opts = append([]audithook.Option{audithook.WithLogger(quiet)}, opts...)
	s := memory.New()
	return tally.New(s,
		tally.WithLogger(quiet),
		tally.WithPlugin(audithook.New(rec, opts...)),
	), s
}

func TestEntityEvents(t *testing.T) {
	ctx := context.Background()
	tr := &trail{}
	tl, _ := engine(t, tr)

	u := &model.User{ScreenName: "ann"}
	if err := tl.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	q := &model.Question{UserID: u.ID, Content: "who?", Anonymous: true}
	if err := tl.AskQuestion(ctx, q); err != nil {
		t.Fatal(err)
	}
	if err := tl.DeleteQuestion(ctx, q.ID); err != nil {
		t.Fatal(err)
	}

	want := []string{audithook.ActionUserCreated, audithook.ActionQuestionCreated, audithook.ActionQuestionDeleted}
	got := tr.actions()
	if len(got) != len(want) {
		t.Fatalf("actions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("action[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	created := tr.find(audithook.ActionQuestionCreated)
	if created.ResourceID != q.ID.String() || created.Category != audithook.CategoryContent {
		t.Errorf("unexpected event %+v", created)
	}
	if _, leaked := created.Metadata["user_id"]; leaked {
		t.Error("anonymous question leaked its author")
	}
	if tr.find(audithook.ActionUserCreated).Metadata["screen_name"] != "ann" {
		t.Error("user event lacks screen name")
	}
}

func TestCounterEvents(t *testing.T) {
	ctx := context.Background()
	tr := &trail{}
	tl, s := engine(t, tr)

	u := &model.User{ScreenName: "bob"}
	if err := tl.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	target := counter.Target{Kind: id.KindUser, ID: u.ID, Field: counter.FollowerCount}
	if err := s.SetCounter(ctx, target, 4); err != nil {
		t.Fatal(err)
	}
	if _, err := tl.Recount(ctx, id.KindUser, u.ID, counter.FollowerCount); err != nil {
		t.Fatal(err)
	}

	drift := tr.find(audithook.ActionCounterDrift)
	if drift == nil {
		t.Fatal("no drift event")
	}
	if drift.Severity != audithook.SeverityWarning || drift.Metadata["stored"] != int64(4) || drift.Metadata["actual"] != int64(0) {
		t.Errorf("unexpected drift event %+v", drift)
	}

	if err := tl.ApplyDelta(ctx, id.KindAnswer, id.New(1, 1), counter.SmileCount, 1); err != nil {
		t.Fatal(err)
	}
	gone := tr.find(audithook.ActionCounterTargetGone)
	if gone == nil || gone.Outcome != audithook.OutcomeFailure || gone.Reason == "" {
		t.Errorf("unexpected target-gone event %+v", gone)
	}
}

func TestActionFilters(t *testing.T) {
	tests := []struct {
		name string
		opts []audithook.Option
		want int
	}{
		{"all", nil, 3},
		{"enabled", []audithook.Option{audithook.WithEnabledActions(audithook.ActionUserCreated)}, 2},
		{"disabled", []audithook.Option{audithook.WithDisabledActions(audithook.ActionUserCreated)}, 1},
		{"without edges", []audithook.Option{audithook.WithoutEdges()}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			tr := &trail{}
			tl, _ := engine(t, tr, tt.opts...)

			a := &model.User{ScreenName: "a"}
			b := &model.User{ScreenName: "b"}
			for _, u := range []*model.User{a, b} {
				if err := tl.CreateUser(ctx, u); err != nil {
					t.Fatal(err)
				}
			}
			if _, err := tl.Follow(ctx, a.ID, b.ID); err != nil {
				t.Fatal(err)
			}
			if got := len(tr.actions()); got != tt.want {
				t.Errorf("recorded %d events (%v), want %d", got, tr.actions(), tt.want)
			}
		})
	}
}

func TestRecorderFailureIsSwallowed(t *testing.T) {
	var calls int
	rec := audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		calls++
		return errors.New("backend down")
	})
	ext := audithook.New(rec, audithook.WithLogger(quiet))

	err := ext.OnEntityDeleted(context.Background(), id.KindComment, id.New(5, 0))
	if err != nil {
		t.Errorf("recorder failure propagated: %v", err)
	}
	if calls != 1 {
		t.Errorf("recorder called %d times", calls)
	}
}
