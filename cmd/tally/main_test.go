package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xraph/tally"
	"github.com/xraph/tally/id"
)

const fixtureYAML = `
now: 2024-06-01T12:00:00Z
users:
  - name: ann
    age: 720h
  - name: bob
    age: 720h
  - name: cid
    age: 720h
questions:
  - key: q1
    author: ann
    content: Why is the sky blue?
    age: 48h
  - key: q2
    author: bob
    content: Who am I?
    anonymous: true
    age: 24h
answers:
  - key: a2
    question: q1
    author: cid
    content: Scattering.
    age: 1h
  - key: a1
    question: q1
    author: bob
    content: Rayleigh.
    age: 2h
comments:
  - answer: a1
    author: ann
    content: Thanks!
    age: 30m
smiles:
  - user: ann
    answer: a1
  - user: cid
    answer: a1
  - user: ann
    answer: a2
follows:
  - source: ann
    target: bob
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// run executes the CLI with a config path that does not exist, so defaults
// apply unless args override --config.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	missing := filepath.Join(t.TempDir(), "absent.yaml")
	root.SetArgs(append([]string{"--config", missing}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestIDDecode(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	v := id.New(uint64(now.UnixMilli()), 7)

	out, err := run(t, "id", "decode", v.String())
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"sequence  7", "2024-06-01T12:00:00Z", "millis    1717243200000"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}

	if _, err := run(t, "id", "decode", "nope"); err == nil {
		t.Error("expected an error for a malformed id")
	}
}

func TestIDWindow(t *testing.T) {
	out, err := run(t, "id", "window", "24h", "--now", "2024-06-01T12:00:00Z")
	if err != nil {
		t.Fatal(err)
	}
	want := id.FromTime(time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC))
	if fields := strings.Fields(out); len(fields) != 2 || fields[0] != want.String() {
		t.Errorf("window output %q, want bound %s", out, want)
	}

	if _, err := run(t, "id", "window", "0s"); err == nil {
		t.Error("expected an error for an empty window")
	}
}

func TestIDNew(t *testing.T) {
	out, err := run(t, "id", "new", "answer", "-n", "3")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Fields(out)
	if len(lines) != 3 {
		t.Fatalf("expected 3 ids, got %q", out)
	}
	var prev id.ID
	for _, l := range lines {
		v, err := id.Parse(l)
		if err != nil {
			t.Fatal(err)
		}
		if v <= prev {
			t.Errorf("ids not increasing: %v", lines)
		}
		prev = v
	}

	if _, err := run(t, "id", "new", "planet"); err == nil {
		t.Error("expected an error for an unknown kind")
	}
}

func TestDiscoverJSON(t *testing.T) {
	fixture := writeFile(t, "fixture.yaml", fixtureYAML)
	out, err := run(t, "discover", "--fixture", fixture, "--limit", "2", "-o", "json")
	if err != nil {
		t.Fatal(err)
	}

	var d tally.Discovery
	if err := json.Unmarshal([]byte(out), &d); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(d.PopularAnswers) != 2 || d.PopularAnswers[0].Score != 2 || d.PopularAnswers[0].Answer.Content != "Rayleigh." {
		t.Errorf("popular answers = %+v", d.PopularAnswers)
	}
	if len(d.NewUsers) != 1 || d.NewUsers[0].User.ScreenName != "ann" {
		t.Errorf("new users = %+v", d.NewUsers)
	}
	if len(d.UsersWithMostQuestions) != 1 || d.UsersWithMostQuestions[0].Count != 1 {
		t.Errorf("users with most questions = %+v", d.UsersWithMostQuestions)
	}
	if len(d.UsersWithMostAnswers) != 2 {
		t.Errorf("users with most answers = %+v", d.UsersWithMostAnswers)
	}
}

func TestDiscoverText(t *testing.T) {
	fixture := writeFile(t, "fixture.yaml", fixtureYAML)
	out, err := run(t, "discover", "--fixture", fixture)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Popular answers", "Rayleigh.", "Users with most answers", "bob"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestDiscoverWindowFromConfig(t *testing.T) {
	fixture := writeFile(t, "fixture.yaml", fixtureYAML)
	config := writeFile(t, "tally.yaml", "logger:\n  level: error\ndiscover:\n  window: 90m\n  limit: 5\n")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"--config", config, "discover", "--fixture", fixture, "-o", "json"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}

	var d tally.Discovery
	if err := json.Unmarshal(out.Bytes(), &d); err != nil {
		t.Fatal(err)
	}
	// Only a2 (1h old) falls inside a 90 minute window.
	if len(d.PopularAnswers) != 1 || d.PopularAnswers[0].Answer.Content != "Scattering." {
		t.Errorf("popular answers = %+v", d.PopularAnswers)
	}
	if d.Window != 90*time.Minute {
		t.Errorf("window = %s", d.Window)
	}
}

func TestReconcile(t *testing.T) {
	drifted := fixtureYAML + `
drift:
  - kind: user
    ref: bob
    field: follower_count
    value: 5
  - kind: answer
    ref: a1
    field: smile_count
    value: 9
`
	fixture := writeFile(t, "fixture.yaml", drifted)

	tests := []struct {
		kind string
		want string
	}{
		{"all", "2 counters corrected"},
		{"user", "1 counters corrected"},
		{"comment", "0 counters corrected"},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			out, err := run(t, "reconcile", "--fixture", fixture, "--kind", tt.kind, "--page-size", "2")
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output lacks %q:\n%s", tt.want, out)
			}
		})
	}

	if _, err := run(t, "reconcile", "--fixture", fixture, "--kind", "smile"); err == nil {
		t.Error("expected an error for a kind without counters")
	}
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg != defaultConfig() {
		t.Errorf("missing file should yield defaults, got %+v", cfg)
	}

	path := writeFile(t, "tally.yaml", "logger:\n  json: true\n  level: debug\ndiscover:\n  window: 48h\n")
	cfg, err = loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Logger.JSON || cfg.Logger.Level != "debug" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if w, _ := cfg.window(); w != 48*time.Hour {
		t.Errorf("window = %s", w)
	}

	bad := writeFile(t, "bad.yaml", "discover:\n  window: -3h\n")
	if _, err := loadConfig(bad); err == nil {
		t.Error("expected an error for a negative window")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(LoggerConfig{JSON: true, Level: "warn"}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "kind", "answer")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), `"kind":"answer"`) {
		t.Errorf("unexpected log output %q", buf.String())
	}

	if _, err := newLogger(LoggerConfig{Level: "loud"}, io.Discard); err == nil {
		t.Error("expected an error for an unknown level")
	}
}
