package tally_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/xraph/tally"
	"github.com/xraph/tally/counter"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/model"
	"github.com/xraph/tally/store/memory"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

const week = 7 * 24 * time.Hour

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// recorder is a plugin that counts the events it receives.
type recorder struct {
	mu        sync.Mutex
	created   map[id.Kind]int
	deleted   map[id.Kind]int
	applied   int
	gone      []counter.Delta
	drifts    []counter.Target
	rankings  []string
	initCalls int
}

func newRecorder() *recorder {
	return &recorder{created: map[id.Kind]int{}, deleted: map[id.Kind]int{}}
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnInit(context.Context, interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initCalls++
	return nil
}

func (r *recorder) OnEntityCreated(_ context.Context, kind id.Kind, _ id.ID, _ interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created[kind]++
	return nil
}

func (r *recorder) OnEntityDeleted(_ context.Context, kind id.Kind, _ id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted[kind]++
	return nil
}

func (r *recorder) OnDeltaApplied(context.Context, counter.Delta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied++
	return nil
}

func (r *recorder) OnTargetGone(_ context.Context, d counter.Delta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gone = append(r.gone, d)
	return nil
}

func (r *recorder) OnCounterDrift(_ context.Context, t counter.Target, _, _ int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drifts = append(r.drifts, t)
	return nil
}

func (r *recorder) OnRankingServed(_ context.Context, ranking string, _ time.Duration, _ int, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rankings = append(r.rankings, ranking)
	return nil
}

func (r *recorder) driftCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.drifts)
}

type env struct {
	t     *tally.Tally
	store *memory.Store
	clock *clock
	rec   *recorder
	ctx   context.Context
}

func newEnv(tb testing.TB, opts ...tally.Option) *env {
	tb.Helper()
	clk := &clock{now: now}
	s := memory.New()
	rec := newRecorder()
	base := []tally.Option{
		tally.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		tally.WithClock(clk),
		tally.WithPlugin(rec),
	}
	return &env{
		t:     tally.New(s, append(base, opts...)...),
		store: s,
		clock: clk,
		rec:   rec,
		ctx:   context.Background(),
	}
}

func (e *env) user(tb testing.TB, name string) *model.User {
	tb.Helper()
	u := &model.User{ScreenName: name}
	if err := e.t.CreateUser(e.ctx, u); err != nil {
		tb.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func (e *env) question(tb testing.TB, userID id.ID, anonymous bool) *model.Question {
	tb.Helper()
	q := &model.Question{UserID: userID, Content: "what is up?", Anonymous: anonymous}
	if err := e.t.AskQuestion(e.ctx, q); err != nil {
		tb.Fatalf("ask question: %v", err)
	}
	return q
}

func (e *env) answer(tb testing.TB, questionID, userID id.ID) *model.Answer {
	tb.Helper()
	a := &model.Answer{QuestionID: questionID, UserID: userID, Content: "not much"}
	if err := e.t.AnswerQuestion(e.ctx, a); err != nil {
		tb.Fatalf("answer question: %v", err)
	}
	return a
}

func (e *env) comment(tb testing.TB, answerID, userID id.ID) *model.Comment {
	tb.Helper()
	c := &model.Comment{AnswerID: answerID, UserID: userID, Content: "nice"}
	if err := e.t.CreateComment(e.ctx, c); err != nil {
		tb.Fatalf("create comment: %v", err)
	}
	return c
}

func (e *env) value(tb testing.TB, kind id.Kind, entityID id.ID, f counter.Field) int64 {
	tb.Helper()
	v, err := e.store.CounterValue(e.ctx, counter.Target{Kind: kind, ID: entityID, Field: f})
	if err != nil {
		tb.Fatalf("counter %s/%s.%s: %v", kind, entityID, f, err)
	}
	return v
}

// bump applies n +1 deltas to one counter.
func (e *env) bump(tb testing.TB, kind id.Kind, entityID id.ID, f counter.Field, n int) {
	tb.Helper()
	for i := 0; i < n; i++ {
		if err := e.t.ApplyDelta(e.ctx, kind, entityID, f, 1); err != nil {
			tb.Fatal(err)
		}
	}
}

func TestStartStop(t *testing.T) {
	e := newEnv(t)
	if err := e.t.Start(e.ctx); err != nil {
		t.Fatal(err)
	}
	if err := e.t.Stop(); err != nil {
		t.Fatal(err)
	}
	if e.rec.initCalls != 1 {
		t.Errorf("expected OnInit once, got %d", e.rec.initCalls)
	}
	if err := e.store.Ping(e.ctx); err == nil {
		t.Error("expected store closed after Stop")
	}
}

func TestAllocate(t *testing.T) {
	e := newEnv(t)
	a, err := e.t.Allocate(id.KindAnswer)
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.t.Allocate(id.KindAnswer)
	if err != nil {
		t.Fatal(err)
	}
	if a.Millis() != uint64(now.UnixMilli()) || b <= a {
		t.Errorf("unexpected ids %d, %d", a, b)
	}
}
