package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/tally"
	"github.com/xraph/tally/counter"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/model"
	"github.com/xraph/tally/rank"
	"github.com/xraph/tally/store/memory"
	"github.com/xraph/tally/types"
)

var base = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// at builds an ID minutes after base.
func at(minutes int, seq uint16) id.ID {
	return id.New(uint64(base.Add(time.Duration(minutes)*time.Minute).UnixMilli()), seq)
}

func entity() types.Entity { return types.NewEntity(base) }

func seedUser(t *testing.T, s *memory.Store, uid id.ID) *model.User {
	t.Helper()
	u := &model.User{Entity: entity(), ID: uid, ScreenName: uid.String()}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	return u
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	u := seedUser(t, s, at(0, 0))

	got, err := s.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == u {
		t.Error("GetUser must return a copy")
	}
	if got.ScreenName != u.ScreenName {
		t.Errorf("screen name = %q", got.ScreenName)
	}

	if err := s.CreateUser(ctx, u); !errors.Is(err, tally.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
	if _, err := s.GetUser(ctx, at(9, 9)); !errors.Is(err, tally.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestCountersLiveInCells(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	u := seedUser(t, s, at(0, 0))
	q := &model.Question{Entity: entity(), ID: at(1, 0), UserID: u.ID, Content: "?", AnswerCount: 4}
	if err := s.CreateQuestion(ctx, q); err != nil {
		t.Fatal(err)
	}

	target := counter.Target{Kind: id.KindQuestion, ID: q.ID, Field: counter.AnswerCount}
	if v, _ := s.CounterValue(ctx, target); v != 4 {
		t.Fatalf("seeded value = %d, want 4", v)
	}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Increment(ctx, target, 1); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	got, err := s.GetQuestion(ctx, q.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.AnswerCount != 104 {
		t.Errorf("snapshot answer_count = %d, want 104", got.AnswerCount)
	}

	if err := s.SetCounter(ctx, target, 2); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.CounterValue(ctx, target); v != 2 {
		t.Errorf("after SetCounter = %d", v)
	}
}

func TestCounterErrors(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	u := seedUser(t, s, at(0, 0))

	gone := counter.Target{Kind: id.KindAnswer, ID: at(5, 0), Field: counter.SmileCount}
	if err := s.Increment(ctx, gone, 1); !errors.Is(err, tally.ErrTargetGone) {
		t.Errorf("expected ErrTargetGone, got %v", err)
	}
	if _, err := s.CounterValue(ctx, gone); !errors.Is(err, tally.ErrAnswerNotFound) {
		t.Errorf("expected ErrAnswerNotFound, got %v", err)
	}
	bad := counter.Target{Kind: id.KindUser, ID: u.ID, Field: counter.SmileCount}
	if err := s.Increment(ctx, bad, 1); !errors.Is(err, tally.ErrInvalidCounter) {
		t.Errorf("expected ErrInvalidCounter, got %v", err)
	}
	smile := counter.Target{Kind: id.KindSmile, ID: u.ID, Field: counter.SmileCount}
	if err := s.Increment(ctx, smile, 1); !errors.Is(err, tally.ErrInvalidCounter) {
		t.Errorf("expected ErrInvalidCounter for smiles, got %v", err)
	}
}

func TestEdgesAreUnique(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	u := seedUser(t, s, at(0, 0))
	aid := at(1, 0)

	sm := &model.Smile{Entity: entity(), ID: at(2, 0), UserID: u.ID, AnswerID: aid}
	if err := s.CreateSmile(ctx, sm); err != nil {
		t.Fatal(err)
	}
	dup := &model.Smile{Entity: entity(), ID: at(2, 1), UserID: u.ID, AnswerID: aid}
	if err := s.CreateSmile(ctx, dup); !errors.Is(err, tally.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if s.Len(id.KindSmile) != 1 {
		t.Errorf("rows = %d, want 1", s.Len(id.KindSmile))
	}

	found, err := s.FindSmile(ctx, u.ID, aid)
	if err != nil || found.ID != sm.ID {
		t.Fatalf("FindSmile = %+v, %v", found, err)
	}

	if err := s.Delete(ctx, id.KindSmile, sm.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.FindSmile(ctx, u.ID, aid); !errors.Is(err, tally.ErrSmileNotFound) {
		t.Errorf("expected ErrSmileNotFound, got %v", err)
	}
	if err := s.CreateSmile(ctx, dup); err != nil {
		t.Errorf("edge not released on delete: %v", err)
	}
	if err := s.Delete(ctx, id.KindSmile, sm.ID); !errors.Is(err, tally.ErrSmileNotFound) {
		t.Errorf("expected ErrSmileNotFound on second delete, got %v", err)
	}
}

func TestRelationshipsByUser(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	a, b, c := at(0, 0), at(0, 1), at(0, 2)

	rels := []*model.Relationship{
		{Entity: entity(), ID: at(1, 0), SourceID: a, TargetID: b},
		{Entity: entity(), ID: at(1, 1), SourceID: c, TargetID: a},
		{Entity: entity(), ID: at(1, 2), SourceID: b, TargetID: c},
	}
	for _, r := range rels {
		if err := s.CreateRelationship(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.RelationshipsByUser(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 relationships touching a, got %d", len(got))
	}

	follow := counter.Source{Child: id.KindRelationship, ForeignKey: "target_id"}
	if n, _ := s.CountChildren(ctx, follow, a); n != 1 {
		t.Errorf("followers of a = %d, want 1", n)
	}
}

func TestCountChildrenExcludesAnonymous(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	u := seedUser(t, s, at(0, 0))
	for i, anon := range []bool{false, true, false} {
		q := &model.Question{Entity: entity(), ID: at(1, uint16(i)), UserID: u.ID, Content: "?", Anonymous: anon}
		if err := s.CreateQuestion(ctx, q); err != nil {
			t.Fatal(err)
		}
	}
	src, ok := counter.SourceOf(id.KindUser, counter.AskedCount)
	if !ok {
		t.Fatal("asked_count has no source")
	}
	if n, _ := s.CountChildren(ctx, src, u.ID); n != 2 {
		t.Errorf("asked = %d, want 2", n)
	}
	mine, _ := s.QuestionsByUser(ctx, u.ID)
	if len(mine) != 3 {
		t.Errorf("QuestionsByUser = %d, want 3", len(mine))
	}
}

func TestListIDsPages(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	var want []id.ID
	for i := 0; i < 5; i++ {
		want = append(want, seedUser(t, s, at(i, 0)).ID)
	}

	var got []id.ID
	after := id.Nil
	for {
		page, err := s.ListIDs(ctx, id.KindUser, after, 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(page) == 0 {
			break
		}
		got = append(got, page...)
		after = page[len(page)-1]
	}
	if len(got) != len(want) {
		t.Fatalf("paged %d ids, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("page order %v, want %v", got, want)
			break
		}
	}
}

func TestTopAnswersWindow(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	scores := []int64{3, 0, 7, 7, 1}
	for i, n := range scores {
		a := &model.Answer{Entity: entity(), ID: at(i*10, 0), QuestionID: at(0, 5), UserID: at(0, 6), SmileCount: n}
		if err := s.CreateAnswer(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.TopAnswers(ctx, rank.Query{Field: counter.SmileCount, Since: at(10, 0), Limit: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
	// Order among the two 7s is unspecified.
	tied := map[id.ID]bool{got[0].ID: true, got[1].ID: true}
	if !tied[at(20, 0)] || !tied[at(30, 0)] || got[2].ID != at(40, 0) {
		t.Errorf("unexpected ranking %s %s %s", got[0].ID, got[1].ID, got[2].ID)
	}

	nz, _ := s.TopAnswers(ctx, rank.Query{Since: id.Nil, NonZero: counter.SmileCount})
	if len(nz) != 4 {
		t.Errorf("NonZero kept %d rows, want 4", len(nz))
	}
	if nz[0].ID != at(40, 0) {
		t.Errorf("newest-first order broken: %s", nz[0].ID)
	}
}

func TestCountByAuthor(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	a, b := at(0, 1), at(0, 2)
	rows := []struct {
		user id.ID
		anon bool
	}{{a, false}, {b, true}, {b, true}, {a, false}, {b, false}}
	for i, r := range rows {
		q := &model.Question{Entity: entity(), ID: at(5, uint16(i)), UserID: r.user, Content: "?", Anonymous: r.anon}
		if err := s.CreateQuestion(ctx, q); err != nil {
			t.Fatal(err)
		}
	}

	groups, err := s.CountByAuthor(ctx, rank.GroupQuery{Kind: id.KindQuestion, By: rank.GroupByAuthor, ExcludeAnonymous: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 2 || groups[0].UserID != a || groups[0].Count != 2 || groups[1].Count != 1 {
		t.Errorf("unexpected groups %+v", groups)
	}

	all, _ := s.CountByAuthor(ctx, rank.GroupQuery{Kind: id.KindQuestion, By: rank.GroupByAuthor})
	if all[0].UserID != b || all[0].Count != 3 {
		t.Errorf("unexpected groups with anonymous %+v", all)
	}

	if _, err := s.CountByAuthor(ctx, rank.GroupQuery{Kind: id.KindUser}); !errors.Is(err, tally.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestPingAfterClose(t *testing.T) {
	s := memory.New()
	if err := s.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()
	if err := s.Ping(context.Background()); !errors.Is(err, tally.ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
}
