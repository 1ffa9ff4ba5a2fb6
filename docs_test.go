package tally_test

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/tally"
	"github.com/xraph/tally/counter"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/model"
	"github.com/xraph/tally/rank"
	"github.com/xraph/tally/store/memory"
)

// TestDocumentationExamples verifies that the package documentation examples work.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		ctx := context.Background()

		// Create store (memory for demo, use PostgreSQL in production)
		t1 := tally.New(memory.New(),
			tally.WithLogger(slog.Default()),
			tally.WithDiscoverDefaults(7*24*time.Hour, 10),
		)
		if err := t1.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer t1.Stop()

		asker := &model.User{ScreenName: "asker"}
		fan := &model.User{ScreenName: "fan"}
		for _, u := range []*model.User{asker, fan} {
			if err := t1.CreateUser(ctx, u); err != nil {
				t.Fatal(err)
			}
		}

		q := &model.Question{UserID: asker.ID, Content: "Tabs or spaces?"}
		if err := t1.AskQuestion(ctx, q); err != nil {
			t.Fatal(err)
		}
		a := &model.Answer{QuestionID: q.ID, UserID: fan.ID, Content: "Tabs."}
		if err := t1.AnswerQuestion(ctx, a); err != nil {
			t.Fatal(err)
		}
		if _, err := t1.SmileAnswer(ctx, asker.ID, a.ID); err != nil {
			t.Fatal(err)
		}

		top, err := t1.TopK(ctx, id.KindAnswer, counter.SmileCount, 24*time.Hour, 5, rank.WithUser())
		if err != nil {
			t.Fatal(err)
		}
		if len(top) != 1 || top[0].Score != 1 || top[0].Answer.User.ScreenName != "fan" {
			t.Errorf("unexpected ranking %+v", top)
		}

		d, err := t1.Discover(ctx, tally.DiscoverOpts{})
		if err != nil {
			t.Fatal(err)
		}
		if len(d.PopularAnswers) != 1 || len(d.NewUsers) != 1 {
			t.Errorf("unexpected discovery %+v", d)
		}
	})

	t.Run("IdentifierExample", func(t *testing.T) {
		at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		x := id.New(uint64(at.UnixMilli()), 7)
		if !x.Time().Equal(at) || x.Sequence() != 7 {
			t.Errorf("decoded %s seq %d", x.Time(), x.Sequence())
		}
		if id.FromTime(at) > x {
			t.Error("window bound must not exceed ids allocated in the same millisecond")
		}
	})
}

func ExampleTally_TopK() {
	ctx := context.Background()
	t := tally.New(memory.New())

	u := &model.User{ScreenName: "ann"}
	_ = t.CreateUser(ctx, u)
	q := &model.Question{UserID: u.ID, Content: "Why?"}
	_ = t.AskQuestion(ctx, q)
	a := &model.Answer{QuestionID: q.ID, UserID: u.ID, Content: "Because."}
	_ = t.AnswerQuestion(ctx, a)
	_, _ = t.SmileAnswer(ctx, u.ID, a.ID)

	top, _ := t.TopK(ctx, id.KindAnswer, counter.SmileCount, time.Hour, 3)
	for _, e := range top {
		fmt.Println(e.Answer.Content, e.Score)
	}
	// Output: Because. 1
}
