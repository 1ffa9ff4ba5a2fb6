package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/xraph/tally"
	"github.com/xraph/tally/counter"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/model"
	"github.com/xraph/tally/store/memory"
)

// Fixture describes a small community to seed into a memory store. Ages are
// durations before Now; references use user names and entity keys.
type Fixture struct {
	Now       time.Time         `yaml:"now"`
	Users     []FixtureUser     `yaml:"users"`
	Questions []FixtureQuestion `yaml:"questions"`
	Answers   []FixtureAnswer   `yaml:"answers"`
	Comments  []FixtureComment  `yaml:"comments"`
	Smiles    []FixtureSmile    `yaml:"smiles"`
	Follows   []FixtureFollow   `yaml:"follows"`
	Drift     []FixtureDrift    `yaml:"drift"`
}

type FixtureUser struct {
	Name string `yaml:"name"`
	Age  string `yaml:"age"`
}

type FixtureQuestion struct {
	Key       string `yaml:"key"`
	Author    string `yaml:"author"`
	Content   string `yaml:"content"`
	Anonymous bool   `yaml:"anonymous"`
	Age       string `yaml:"age"`
}

type FixtureAnswer struct {
	Key      string `yaml:"key"`
	Question string `yaml:"question"`
	Author   string `yaml:"author"`
	Content  string `yaml:"content"`
	Age      string `yaml:"age"`
}

type FixtureComment struct {
	Key     string `yaml:"key"`
	Answer  string `yaml:"answer"`
	Author  string `yaml:"author"`
	Content string `yaml:"content"`
	Age     string `yaml:"age"`
}

type FixtureSmile struct {
	User   string `yaml:"user"`
	Answer string `yaml:"answer"`
}

type FixtureFollow struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// FixtureDrift overwrites a stored counter after seeding.
type FixtureDrift struct {
	Kind  string `yaml:"kind"`
	Ref   string `yaml:"ref"`
	Field string `yaml:"field"`
	Value int64  `yaml:"value"`
}

func loadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	if f.Now.IsZero() {
		f.Now = time.Now().UTC()
	}
	return &f, nil
}

// fixtureClock is the identifier clock while seeding. Entities are created
// at Now minus their age.
type fixtureClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixtureClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixtureClock) set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// seeded is an engine loaded with a fixture.
type seeded struct {
	engine *tally.Tally
	store  *memory.Store
	refs   map[string]id.ID
}

func (f *Fixture) seed(ctx context.Context, logger *slog.Logger, opts ...tally.Option) (*seeded, error) {
	clk := &fixtureClock{now: f.Now}
	s := memory.New()
	opts = append([]tally.Option{tally.WithLogger(logger), tally.WithClock(clk)}, opts...)
	sd := &seeded{
		engine: tally.New(s, opts...),
		store:  s,
		refs:   make(map[string]id.ID),
	}

	at := func(age string) error {
		d, err := parseAge(age)
		if err != nil {
			return err
		}
		clk.set(f.Now.Add(-d))
		return nil
	}

	// Identifiers never regress within a kind, so each kind is seeded
	// oldest first.
	users, err := oldestFirst(f.Users, func(u FixtureUser) string { return u.Age })
	if err != nil {
		return nil, err
	}
	questions, err := oldestFirst(f.Questions, func(q FixtureQuestion) string { return q.Age })
	if err != nil {
		return nil, err
	}
	answers, err := oldestFirst(f.Answers, func(a FixtureAnswer) string { return a.Age })
	if err != nil {
		return nil, err
	}
	comments, err := oldestFirst(f.Comments, func(c FixtureComment) string { return c.Age })
	if err != nil {
		return nil, err
	}

	for _, u := range users {
		if err := at(u.Age); err != nil {
			return nil, err
		}
		m := &model.User{ScreenName: u.Name, DisplayName: u.Name}
		if err := sd.engine.CreateUser(ctx, m); err != nil {
			return nil, fmt.Errorf("user %q: %w", u.Name, err)
		}
		sd.refs[u.Name] = m.ID
	}
	for _, q := range questions {
		if err := at(q.Age); err != nil {
			return nil, err
		}
		m := &model.Question{UserID: sd.refs[q.Author], Content: q.Content, Anonymous: q.Anonymous}
		if err := sd.engine.AskQuestion(ctx, m); err != nil {
			return nil, fmt.Errorf("question %q: %w", q.Key, err)
		}
		sd.refs[q.Key] = m.ID
	}
	for _, a := range answers {
		if err := at(a.Age); err != nil {
			return nil, err
		}
		m := &model.Answer{QuestionID: sd.refs[a.Question], UserID: sd.refs[a.Author], Content: a.Content}
		if err := sd.engine.AnswerQuestion(ctx, m); err != nil {
			return nil, fmt.Errorf("answer %q: %w", a.Key, err)
		}
		sd.refs[a.Key] = m.ID
	}
	for _, c := range comments {
		if err := at(c.Age); err != nil {
			return nil, err
		}
		m := &model.Comment{AnswerID: sd.refs[c.Answer], UserID: sd.refs[c.Author], Content: c.Content}
		if err := sd.engine.CreateComment(ctx, m); err != nil {
			return nil, fmt.Errorf("comment %q: %w", c.Key, err)
		}
		if c.Key != "" {
			sd.refs[c.Key] = m.ID
		}
	}

	clk.set(f.Now)
	for _, sm := range f.Smiles {
		if _, err := sd.engine.SmileAnswer(ctx, sd.refs[sm.User], sd.refs[sm.Answer]); err != nil {
			return nil, fmt.Errorf("smile %s on %s: %w", sm.User, sm.Answer, err)
		}
	}
	for _, fl := range f.Follows {
		if _, err := sd.engine.Follow(ctx, sd.refs[fl.Source], sd.refs[fl.Target]); err != nil {
			return nil, fmt.Errorf("follow %s -> %s: %w", fl.Source, fl.Target, err)
		}
	}

	for _, d := range f.Drift {
		kind, err := id.ParseKind(d.Kind)
		if err != nil {
			return nil, err
		}
		target := counter.Target{Kind: kind, ID: sd.refs[d.Ref], Field: counter.Field(d.Field)}
		if err := s.SetCounter(ctx, target, d.Value); err != nil {
			return nil, fmt.Errorf("drift %s: %w", target, err)
		}
	}
	return sd, nil
}

func oldestFirst[T any](items []T, age func(T) string) ([]T, error) {
	ages := make(map[int]time.Duration, len(items))
	idx := make([]int, len(items))
	for i, it := range items {
		d, err := parseAge(age(it))
		if err != nil {
			return nil, err
		}
		ages[i] = d
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		switch {
		case ages[a] > ages[b]:
			return -1
		case ages[a] < ages[b]:
			return 1
		}
		return 0
	})
	out := make([]T, len(items))
	for i, j := range idx {
		out[i] = items[j]
	}
	return out, nil
}

func parseAge(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("age %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("age %q: negative", s)
	}
	return d, nil
}
