package tally_test

import (
	"errors"
	"testing"

	"github.com/xraph/tally"
	"github.com/xraph/tally/counter"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/model"
)

func TestCreateUserRequiresScreenName(t *testing.T) {
	e := newEnv(t)
	err := e.t.CreateUser(e.ctx, &model.User{})
	if !errors.Is(err, tally.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCreateAssignsIdentifiers(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "u")
	if u.ID.IsNil() {
		t.Fatal("expected user ID to be allocated")
	}
	if !u.ID.Time().Equal(now.Truncate(1e6)) {
		t.Errorf("id time = %v, want %v", u.ID.Time(), now)
	}
	if e.rec.created[id.KindUser] != 1 {
		t.Errorf("expected one OnEntityCreated, got %d", e.rec.created[id.KindUser])
	}
}

func TestAskQuestionCounters(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "u")

	e.question(t, u.ID, false)
	if got := e.value(t, id.KindUser, u.ID, counter.AskedCount); got != 1 {
		t.Errorf("asked_count = %d, want 1", got)
	}
	e.question(t, u.ID, true)
	if got := e.value(t, id.KindUser, u.ID, counter.AskedCount); got != 1 {
		t.Errorf("anonymous question changed asked_count to %d", got)
	}

	err := e.t.AskQuestion(e.ctx, &model.Question{UserID: id.New(1, 1), Content: "?"})
	if !errors.Is(err, tally.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAnswerAndCommentCounters(t *testing.T) {
	e := newEnv(t)
	asker := e.user(t, "asker")
	answerer := e.user(t, "answerer")
	commenter := e.user(t, "commenter")
	q := e.question(t, asker.ID, false)
	a := e.answer(t, q.ID, answerer.ID)
	e.comment(t, a.ID, commenter.ID)
	e.comment(t, a.ID, commenter.ID)

	checks := []struct {
		kind  id.Kind
		id    id.ID
		field counter.Field
		want  int64
	}{
		{id.KindQuestion, q.ID, counter.AnswerCount, 1},
		{id.KindUser, answerer.ID, counter.AnsweredCount, 1},
		{id.KindAnswer, a.ID, counter.CommentCount, 2},
		{id.KindUser, commenter.ID, counter.CommentedCount, 2},
	}
	for _, c := range checks {
		if got := e.value(t, c.kind, c.id, c.field); got != c.want {
			t.Errorf("%s.%s = %d, want %d", c.kind, c.field, got, c.want)
		}
	}

	err := e.t.AnswerQuestion(e.ctx, &model.Answer{QuestionID: id.New(5, 0), UserID: answerer.ID, Content: "x"})
	if !errors.Is(err, tally.ErrQuestionNotFound) {
		t.Errorf("expected ErrQuestionNotFound, got %v", err)
	}
}

func TestDuplicateSmileRejected(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "u")
	q := e.question(t, u.ID, false)
	a := e.answer(t, q.ID, u.ID)

	if _, err := e.t.SmileAnswer(e.ctx, u.ID, a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.t.SmileAnswer(e.ctx, u.ID, a.ID); !errors.Is(err, tally.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if got := e.value(t, id.KindAnswer, a.ID, counter.SmileCount); got != 1 {
		t.Errorf("smile_count = %d, want 1", got)
	}
	if got := e.value(t, id.KindUser, u.ID, counter.SmiledCount); got != 1 {
		t.Errorf("smiled_count = %d, want 1", got)
	}
}

func TestUnsmile(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "u")
	q := e.question(t, u.ID, false)
	a := e.answer(t, q.ID, u.ID)
	c := e.comment(t, a.ID, u.ID)

	if _, err := e.t.SmileAnswer(e.ctx, u.ID, a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.t.SmileComment(e.ctx, u.ID, c.ID); err != nil {
		t.Fatal(err)
	}
	if err := e.t.UnsmileAnswer(e.ctx, u.ID, a.ID); err != nil {
		t.Fatal(err)
	}
	if err := e.t.UnsmileComment(e.ctx, u.ID, c.ID); err != nil {
		t.Fatal(err)
	}

	if got := e.value(t, id.KindAnswer, a.ID, counter.SmileCount); got != 0 {
		t.Errorf("answer smile_count = %d", got)
	}
	if got := e.value(t, id.KindComment, c.ID, counter.SmileCount); got != 0 {
		t.Errorf("comment smile_count = %d", got)
	}
	if got := e.value(t, id.KindUser, u.ID, counter.CommentSmiledCount); got != 0 {
		t.Errorf("comment_smiled_count = %d", got)
	}

	if err := e.t.UnsmileAnswer(e.ctx, u.ID, a.ID); !errors.Is(err, tally.ErrSmileNotFound) {
		t.Errorf("expected ErrSmileNotFound, got %v", err)
	}
	// The edge is free again.
	if _, err := e.t.SmileAnswer(e.ctx, u.ID, a.ID); err != nil {
		t.Errorf("re-smile: %v", err)
	}
}

func TestFollow(t *testing.T) {
	e := newEnv(t)
	a := e.user(t, "a")
	b := e.user(t, "b")

	if _, err := e.t.Follow(e.ctx, a.ID, a.ID); !errors.Is(err, tally.ErrInvalidInput) {
		t.Errorf("expected self-follow rejected, got %v", err)
	}
	if _, err := e.t.Follow(e.ctx, a.ID, b.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.t.Follow(e.ctx, a.ID, b.ID); !errors.Is(err, tally.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
	if e.value(t, id.KindUser, a.ID, counter.FriendCount) != 1 || e.value(t, id.KindUser, b.ID, counter.FollowerCount) != 1 {
		t.Error("follow counters not incremented")
	}

	if err := e.t.Unfollow(e.ctx, a.ID, b.ID); err != nil {
		t.Fatal(err)
	}
	if e.value(t, id.KindUser, a.ID, counter.FriendCount) != 0 || e.value(t, id.KindUser, b.ID, counter.FollowerCount) != 0 {
		t.Error("unfollow counters not decremented")
	}
	if err := e.t.Unfollow(e.ctx, a.ID, b.ID); !errors.Is(err, tally.ErrRelationshipNotFound) {
		t.Errorf("expected ErrRelationshipNotFound, got %v", err)
	}
}

func TestDeleteAnswerCascades(t *testing.T) {
	e := newEnv(t)
	asker := e.user(t, "asker")
	answerer := e.user(t, "answerer")
	commenter := e.user(t, "commenter")
	q := e.question(t, asker.ID, false)
	a := e.answer(t, q.ID, answerer.ID)
	c := e.comment(t, a.ID, commenter.ID)
	if _, err := e.t.SmileAnswer(e.ctx, asker.ID, a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.t.SmileComment(e.ctx, asker.ID, c.ID); err != nil {
		t.Fatal(err)
	}

	if err := e.t.DeleteAnswer(e.ctx, a.ID); err != nil {
		t.Fatal(err)
	}

	checks := []struct {
		name  string
		kind  id.Kind
		id    id.ID
		field counter.Field
	}{
		{"question answers", id.KindQuestion, q.ID, counter.AnswerCount},
		{"answerer answered", id.KindUser, answerer.ID, counter.AnsweredCount},
		{"commenter commented", id.KindUser, commenter.ID, counter.CommentedCount},
		{"asker smiled", id.KindUser, asker.ID, counter.SmiledCount},
		{"asker comment smiled", id.KindUser, asker.ID, counter.CommentSmiledCount},
	}
	for _, c := range checks {
		if got := e.value(t, c.kind, c.id, c.field); got != 0 {
			t.Errorf("%s = %d, want 0", c.name, got)
		}
	}
	for _, k := range []id.Kind{id.KindAnswer, id.KindComment, id.KindSmile, id.KindCommentSmile} {
		if n := e.store.Len(k); n != 0 {
			t.Errorf("%d %s rows left", n, k)
		}
	}
	// Deltas aimed at rows removed by the cascade are not reported as gone.
	if len(e.rec.gone) != 0 {
		t.Errorf("unexpected target-gone events: %+v", e.rec.gone)
	}
	if e.rec.deleted[id.KindComment] != 1 || e.rec.deleted[id.KindCommentSmile] != 1 {
		t.Errorf("unexpected delete events: %v", e.rec.deleted)
	}

	if err := e.t.DeleteAnswer(e.ctx, a.ID); !errors.Is(err, tally.ErrAnswerNotFound) {
		t.Errorf("expected ErrAnswerNotFound, got %v", err)
	}
}

func TestDeleteQuestionCascades(t *testing.T) {
	e := newEnv(t)
	asker := e.user(t, "asker")
	answerer := e.user(t, "answerer")
	q := e.question(t, asker.ID, false)
	e.answer(t, q.ID, answerer.ID)
	e.answer(t, q.ID, answerer.ID)

	if err := e.t.DeleteQuestion(e.ctx, q.ID); err != nil {
		t.Fatal(err)
	}
	if got := e.value(t, id.KindUser, asker.ID, counter.AskedCount); got != 0 {
		t.Errorf("asked_count = %d, want 0", got)
	}
	if got := e.value(t, id.KindUser, answerer.ID, counter.AnsweredCount); got != 0 {
		t.Errorf("answered_count = %d, want 0", got)
	}
	if n := e.store.Len(id.KindAnswer); n != 0 {
		t.Errorf("%d answers left", n)
	}
}

func TestDeleteUserCascades(t *testing.T) {
	e := newEnv(t)
	gone := e.user(t, "gone")
	stay := e.user(t, "stay")
	other := e.user(t, "other")

	if _, err := e.t.Follow(e.ctx, gone.ID, stay.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.t.Follow(e.ctx, other.ID, gone.ID); err != nil {
		t.Fatal(err)
	}
	mine := e.question(t, gone.ID, false)
	theirs := e.question(t, stay.ID, false)
	onMine := e.answer(t, mine.ID, stay.ID)
	byMe := e.answer(t, theirs.ID, gone.ID)
	stayAnswer := e.answer(t, theirs.ID, other.ID)
	e.comment(t, stayAnswer.ID, gone.ID)
	if _, err := e.t.SmileAnswer(e.ctx, gone.ID, stayAnswer.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.t.SmileAnswer(e.ctx, stay.ID, byMe.ID); err != nil {
		t.Fatal(err)
	}

	if err := e.t.DeleteUser(e.ctx, gone.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := e.t.GetUser(e.ctx, gone.ID); !errors.Is(err, tally.ErrUserNotFound) {
		t.Errorf("expected user deleted, got %v", err)
	}
	if _, err := e.t.GetAnswer(e.ctx, onMine.ID); !errors.Is(err, tally.ErrAnswerNotFound) {
		t.Errorf("answer on deleted question survived: %v", err)
	}

	checks := []struct {
		name  string
		kind  id.Kind
		id    id.ID
		field counter.Field
		want  int64
	}{
		{"stay followers", id.KindUser, stay.ID, counter.FollowerCount, 0},
		{"other friends", id.KindUser, other.ID, counter.FriendCount, 0},
		{"stay answered", id.KindUser, stay.ID, counter.AnsweredCount, 0},
		{"stay smiled", id.KindUser, stay.ID, counter.SmiledCount, 0},
		{"theirs answers", id.KindQuestion, theirs.ID, counter.AnswerCount, 1},
		{"stay answer comments", id.KindAnswer, stayAnswer.ID, counter.CommentCount, 0},
		{"stay answer smiles", id.KindAnswer, stayAnswer.ID, counter.SmileCount, 0},
	}
	for _, c := range checks {
		if got := e.value(t, c.kind, c.id, c.field); got != c.want {
			t.Errorf("%s = %d, want %d", c.name, got, c.want)
		}
	}

	// Every counter left behind agrees with a recount.
	for _, k := range counter.Counted() {
		drifts, err := e.t.Reconcile(e.ctx, k)
		if err != nil {
			t.Fatal(err)
		}
		if len(drifts) != 0 {
			t.Errorf("%s drifted after delete: %+v", k, drifts)
		}
	}
}

func TestReads(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "reader")
	q := e.question(t, u.ID, false)
	a := e.answer(t, q.ID, u.ID)
	c := e.comment(t, a.ID, u.ID)

	if got, err := e.t.GetUser(e.ctx, u.ID); err != nil || got.ScreenName != "reader" {
		t.Errorf("GetUser = %+v, %v", got, err)
	}
	if got, err := e.t.GetQuestion(e.ctx, q.ID); err != nil || got.AnswerCount != 1 {
		t.Errorf("GetQuestion = %+v, %v", got, err)
	}
	if got, err := e.t.GetAnswer(e.ctx, a.ID); err != nil || got.CommentCount != 1 {
		t.Errorf("GetAnswer = %+v, %v", got, err)
	}
	if got, err := e.t.GetComment(e.ctx, c.ID); err != nil || got.AnswerID != a.ID {
		t.Errorf("GetComment = %+v, %v", got, err)
	}
}

func TestCascadeAcrossKindsSharingAnID(t *testing.T) {
	e := newEnv(t)
	asker := e.user(t, "asker")
	q := e.question(t, asker.ID, false)
	a := e.answer(t, q.ID, asker.ID)
	if q.ID != a.ID || asker.ID != a.ID {
		t.Fatalf("frozen clock should give every kind the same first id: user %s question %s answer %s", asker.ID, q.ID, a.ID)
	}

	if err := e.t.DeleteAnswer(e.ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if got := e.value(t, id.KindQuestion, q.ID, counter.AnswerCount); got != 0 {
		t.Errorf("question answer_count = %d, want 0", got)
	}
	if got := e.value(t, id.KindUser, asker.ID, counter.AnsweredCount); got != 0 {
		t.Errorf("user answered_count = %d, want 0", got)
	}

	if err := e.t.DeleteQuestion(e.ctx, q.ID); err != nil {
		t.Fatal(err)
	}
	if got := e.value(t, id.KindUser, asker.ID, counter.AskedCount); got != 0 {
		t.Errorf("user asked_count = %d, want 0", got)
	}
}
