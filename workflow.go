package tally

import (
	"context"
	"fmt"
	"strings"

	"github.com/xraph/tally/counter"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/model"
	"github.com/xraph/tally/types"
)

// ──────────────────────────────────────────────────
// Create workflows
// ──────────────────────────────────────────────────

// create stores a row, applies the counter deltas of its relation edges and
// notifies plugins. If the deltas fail the row stays; Recount repairs it.
func (t *Tally) create(ctx context.Context, kind id.Kind, entityID id.ID, entity interface{}, insert func() error, deltas ...counter.Delta) error {
	if err := insert(); err != nil {
		return err
	}
	if err := t.BatchApply(ctx, deltas); err != nil {
		t.logger.Error("edge deltas failed after create",
			"kind", kind.String(),
			"entity_id", entityID.String(),
			"error", err,
		)
		return err
	}

	t.plugins.EmitEntityCreated(ctx, kind, entityID, entity)
	t.logger.Debug("entity created",
		"kind", kind.String(),
		"entity_id", entityID.String(),
	)
	return nil
}

func (t *Tally) allocate(ctx context.Context, kind id.Kind, current id.ID) (id.ID, error) {
	if !current.IsNil() {
		return current, nil
	}
	v, err := t.ids.Next(ctx, kind)
	if err != nil {
		if IsRetryable(err) {
			t.logger.Warn("id allocation exhausted past retry limit",
				"kind", kind.String(),
			)
		}
		return id.Nil, fmt.Errorf("tally: allocate %s id: %w", kind, err)
	}
	return v, nil
}

func zeroCounters(kind id.Kind, c model.Counters) {
	for _, f := range counter.Fields(kind) {
		c.SetCounter(f, 0)
	}
}

// CreateUser stores a new user with zeroed counters.
func (t *Tally) CreateUser(ctx context.Context, u *model.User) error {
	if strings.TrimSpace(u.ScreenName) == "" {
		return ValidationError{Field: "screen_name", Message: "must not be empty"}
	}
	uid, err := t.allocate(ctx, id.KindUser, u.ID)
	if err != nil {
		return err
	}
	u.ID = uid
	u.Entity = types.NewEntity(t.ids.Now())
	zeroCounters(id.KindUser, u)

	return t.create(ctx, id.KindUser, u.ID, u, func() error {
		return t.store.CreateUser(ctx, u)
	})
}

// AskQuestion stores a question. Non-anonymous questions count toward the
// author's asked_count.
func (t *Tally) AskQuestion(ctx context.Context, q *model.Question) error {
	if strings.TrimSpace(q.Content) == "" {
		return ValidationError{Field: "content", Message: "must not be empty"}
	}
	if _, err := t.store.GetUser(ctx, q.UserID); err != nil {
		return err
	}
	qid, err := t.allocate(ctx, id.KindQuestion, q.ID)
	if err != nil {
		return err
	}
	q.ID = qid
	q.Entity = types.NewEntity(t.ids.Now())
	q.User, q.Answers = nil, nil
	zeroCounters(id.KindQuestion, q)

	var deltas []counter.Delta
	if !q.Anonymous {
		deltas = append(deltas, counter.Inc(id.KindUser, q.UserID, counter.AskedCount))
	}
	return t.create(ctx, id.KindQuestion, q.ID, q, func() error {
		return t.store.CreateQuestion(ctx, q)
	}, deltas...)
}

// AnswerQuestion stores an answer to an existing question.
func (t *Tally) AnswerQuestion(ctx context.Context, a *model.Answer) error {
	if strings.TrimSpace(a.Content) == "" {
		return ValidationError{Field: "content", Message: "must not be empty"}
	}
	if _, err := t.store.GetQuestion(ctx, a.QuestionID); err != nil {
		return err
	}
	if _, err := t.store.GetUser(ctx, a.UserID); err != nil {
		return err
	}
	aid, err := t.allocate(ctx, id.KindAnswer, a.ID)
	if err != nil {
		return err
	}
	a.ID = aid
	a.Entity = types.NewEntity(t.ids.Now())
	a.User, a.Question, a.Comments, a.Smiles = nil, nil, nil, nil
	zeroCounters(id.KindAnswer, a)

	return t.create(ctx, id.KindAnswer, a.ID, a, func() error {
		return t.store.CreateAnswer(ctx, a)
	},
		counter.Inc(id.KindQuestion, a.QuestionID, counter.AnswerCount),
		counter.Inc(id.KindUser, a.UserID, counter.AnsweredCount),
	)
}

// CreateComment stores a comment on an existing answer.
func (t *Tally) CreateComment(ctx context.Context, c *model.Comment) error {
	if strings.TrimSpace(c.Content) == "" {
		return ValidationError{Field: "content", Message: "must not be empty"}
	}
	if _, err := t.store.GetAnswer(ctx, c.AnswerID); err != nil {
		return err
	}
	if _, err := t.store.GetUser(ctx, c.UserID); err != nil {
		return err
	}
	cid, err := t.allocate(ctx, id.KindComment, c.ID)
	if err != nil {
		return err
	}
	c.ID = cid
	c.Entity = types.NewEntity(t.ids.Now())
	c.User, c.Smiles = nil, nil
	zeroCounters(id.KindComment, c)

	return t.create(ctx, id.KindComment, c.ID, c, func() error {
		return t.store.CreateComment(ctx, c)
	},
		counter.Inc(id.KindAnswer, c.AnswerID, counter.CommentCount),
		counter.Inc(id.KindUser, c.UserID, counter.CommentedCount),
	)
}

// SmileAnswer records that userID smiled at answerID. A second smile by the
// same user fails with ErrAlreadyExists and leaves counters unchanged.
func (t *Tally) SmileAnswer(ctx context.Context, userID, answerID id.ID) (*model.Smile, error) {
	if _, err := t.store.GetAnswer(ctx, answerID); err != nil {
		return nil, err
	}
	if _, err := t.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	sid, err := t.allocate(ctx, id.KindSmile, id.Nil)
	if err != nil {
		return nil, err
	}
	s := &model.Smile{
		Entity:   types.NewEntity(t.ids.Now()),
		ID:       sid,
		UserID:   userID,
		AnswerID: answerID,
	}

	err = t.create(ctx, id.KindSmile, s.ID, s, func() error {
		return t.store.CreateSmile(ctx, s)
	},
		counter.Inc(id.KindAnswer, answerID, counter.SmileCount),
		counter.Inc(id.KindUser, userID, counter.SmiledCount),
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// SmileComment records that userID smiled at commentID.
func (t *Tally) SmileComment(ctx context.Context, userID, commentID id.ID) (*model.CommentSmile, error) {
	if _, err := t.store.GetComment(ctx, commentID); err != nil {
		return nil, err
	}
	if _, err := t.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	sid, err := t.allocate(ctx, id.KindCommentSmile, id.Nil)
	if err != nil {
		return nil, err
	}
	s := &model.CommentSmile{
		Entity:    types.NewEntity(t.ids.Now()),
		ID:        sid,
		UserID:    userID,
		CommentID: commentID,
	}

	err = t.create(ctx, id.KindCommentSmile, s.ID, s, func() error {
		return t.store.CreateCommentSmile(ctx, s)
	},
		counter.Inc(id.KindComment, commentID, counter.SmileCount),
		counter.Inc(id.KindUser, userID, counter.CommentSmiledCount),
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Follow creates a relationship from sourceID to targetID.
func (t *Tally) Follow(ctx context.Context, sourceID, targetID id.ID) (*model.Relationship, error) {
	if sourceID == targetID {
		return nil, ValidationError{Field: "target_id", Message: "cannot follow yourself"}
	}
	if _, err := t.store.GetUser(ctx, sourceID); err != nil {
		return nil, err
	}
	if _, err := t.store.GetUser(ctx, targetID); err != nil {
		return nil, err
	}
	rid, err := t.allocate(ctx, id.KindRelationship, id.Nil)
	if err != nil {
		return nil, err
	}
	r := &model.Relationship{
		Entity:   types.NewEntity(t.ids.Now()),
		ID:       rid,
		SourceID: sourceID,
		TargetID: targetID,
	}

	err = t.create(ctx, id.KindRelationship, r.ID, r, func() error {
		return t.store.CreateRelationship(ctx, r)
	},
		counter.Inc(id.KindUser, sourceID, counter.FriendCount),
		counter.Inc(id.KindUser, targetID, counter.FollowerCount),
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ──────────────────────────────────────────────────
// Delete workflows
// ──────────────────────────────────────────────────

type removed struct {
	kind id.Kind
	id   id.ID
}

// removal accumulates the rows and counter deltas of one cascading delete.
// Deltas aimed at rows removed by the same cascade are dropped in finish.
type removal struct {
	gone    map[removed]struct{}
	deleted []removed
	deltas  []counter.Delta
	errs    MultiError
}

func newRemoval() *removal {
	return &removal{gone: make(map[removed]struct{})}
}

func (r *removal) dec(kind id.Kind, entityID id.ID, field counter.Field) {
	r.deltas = append(r.deltas, counter.Dec(kind, entityID, field))
}

// drop deletes one row. Rows already gone report their not-found error.
func (t *Tally) drop(ctx context.Context, r *removal, kind id.Kind, entityID id.ID) error {
	if err := t.store.Delete(ctx, kind, entityID); err != nil {
		return err
	}
	row := removed{kind: kind, id: entityID}
	r.gone[row] = struct{}{}
	r.deleted = append(r.deleted, row)
	return nil
}

// dropChild is drop for cascaded rows: a row removed concurrently is not an
// error.
func (t *Tally) dropChild(ctx context.Context, r *removal, kind id.Kind, entityID id.ID) bool {
	if err := t.drop(ctx, r, kind, entityID); err != nil {
		if !IsNotFound(err) {
			r.errs.Add(fmt.Errorf("tally: cascade delete %s %s: %w", kind, entityID, err))
		}
		return false
	}
	return true
}

func (t *Tally) finish(ctx context.Context, r *removal) error {
	deltas := make([]counter.Delta, 0, len(r.deltas))
	for _, d := range r.deltas {
		if _, ok := r.gone[removed{kind: d.Kind, id: d.ID}]; !ok {
			deltas = append(deltas, d)
		}
	}
	if err := t.BatchApply(ctx, deltas); err != nil {
		r.errs.Add(err)
	}

	for _, d := range r.deleted {
		t.plugins.EmitEntityDeleted(ctx, d.kind, d.id)
	}
	if len(r.deleted) > 0 {
		t.logger.Debug("entities deleted",
			"root_kind", r.deleted[0].kind.String(),
			"root_id", r.deleted[0].id.String(),
			"rows", len(r.deleted),
		)
	}
	return r.errs.ErrOrNil()
}

func (t *Tally) removeSmile(r *removal, s *model.Smile) {
	r.dec(id.KindAnswer, s.AnswerID, counter.SmileCount)
	r.dec(id.KindUser, s.UserID, counter.SmiledCount)
}

func (t *Tally) removeCommentSmile(r *removal, s *model.CommentSmile) {
	r.dec(id.KindComment, s.CommentID, counter.SmileCount)
	r.dec(id.KindUser, s.UserID, counter.CommentSmiledCount)
}

func (t *Tally) removeRelationship(r *removal, rel *model.Relationship) {
	r.dec(id.KindUser, rel.SourceID, counter.FriendCount)
	r.dec(id.KindUser, rel.TargetID, counter.FollowerCount)
}

// cascadeComment removes a comment's smiles and records the comment's own
// deltas. The comment row must already be dropped.
func (t *Tally) cascadeComment(ctx context.Context, r *removal, c *model.Comment) {
	r.dec(id.KindAnswer, c.AnswerID, counter.CommentCount)
	r.dec(id.KindUser, c.UserID, counter.CommentedCount)

	smiles, err := t.store.CommentSmilesByComments(ctx, []id.ID{c.ID})
	if err != nil {
		r.errs.Add(err)
		return
	}
	for _, s := range smiles {
		if t.dropChild(ctx, r, id.KindCommentSmile, s.ID) {
			t.removeCommentSmile(r, s)
		}
	}
}

func (t *Tally) cascadeAnswer(ctx context.Context, r *removal, a *model.Answer) {
	r.dec(id.KindQuestion, a.QuestionID, counter.AnswerCount)
	r.dec(id.KindUser, a.UserID, counter.AnsweredCount)

	comments, err := t.store.CommentsByAnswers(ctx, []id.ID{a.ID})
	if err != nil {
		r.errs.Add(err)
	}
	for _, c := range comments {
		if t.dropChild(ctx, r, id.KindComment, c.ID) {
			t.cascadeComment(ctx, r, c)
		}
	}

	smiles, err := t.store.SmilesByAnswers(ctx, []id.ID{a.ID})
	if err != nil {
		r.errs.Add(err)
	}
	for _, s := range smiles {
		if t.dropChild(ctx, r, id.KindSmile, s.ID) {
			t.removeSmile(r, s)
		}
	}
}

func (t *Tally) cascadeQuestion(ctx context.Context, r *removal, q *model.Question) {
	if !q.Anonymous {
		r.dec(id.KindUser, q.UserID, counter.AskedCount)
	}

	answers, err := t.store.AnswersByQuestions(ctx, []id.ID{q.ID})
	if err != nil {
		r.errs.Add(err)
	}
	for _, a := range answers {
		if t.dropChild(ctx, r, id.KindAnswer, a.ID) {
			t.cascadeAnswer(ctx, r, a)
		}
	}
}

// DeleteQuestion removes a question and its answers.
func (t *Tally) DeleteQuestion(ctx context.Context, questionID id.ID) error {
	q, err := t.store.GetQuestion(ctx, questionID)
	if err != nil {
		return err
	}
	r := newRemoval()
	if err := t.drop(ctx, r, id.KindQuestion, q.ID); err != nil {
		return err
	}
	t.cascadeQuestion(ctx, r, q)
	return t.finish(ctx, r)
}

// DeleteAnswer removes an answer with its comments and smiles.
func (t *Tally) DeleteAnswer(ctx context.Context, answerID id.ID) error {
	a, err := t.store.GetAnswer(ctx, answerID)
	if err != nil {
		return err
	}
	r := newRemoval()
	if err := t.drop(ctx, r, id.KindAnswer, a.ID); err != nil {
		return err
	}
	t.cascadeAnswer(ctx, r, a)
	return t.finish(ctx, r)
}

// DeleteComment removes a comment with its smiles.
func (t *Tally) DeleteComment(ctx context.Context, commentID id.ID) error {
	c, err := t.store.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	r := newRemoval()
	if err := t.drop(ctx, r, id.KindComment, c.ID); err != nil {
		return err
	}
	t.cascadeComment(ctx, r, c)
	return t.finish(ctx, r)
}

// UnsmileAnswer removes userID's smile on answerID.
func (t *Tally) UnsmileAnswer(ctx context.Context, userID, answerID id.ID) error {
	s, err := t.store.FindSmile(ctx, userID, answerID)
	if err != nil {
		return err
	}
	r := newRemoval()
	if err := t.drop(ctx, r, id.KindSmile, s.ID); err != nil {
		return err
	}
	t.removeSmile(r, s)
	return t.finish(ctx, r)
}

// UnsmileComment removes userID's smile on commentID.
func (t *Tally) UnsmileComment(ctx context.Context, userID, commentID id.ID) error {
	s, err := t.store.FindCommentSmile(ctx, userID, commentID)
	if err != nil {
		return err
	}
	r := newRemoval()
	if err := t.drop(ctx, r, id.KindCommentSmile, s.ID); err != nil {
		return err
	}
	t.removeCommentSmile(r, s)
	return t.finish(ctx, r)
}

// Unfollow removes the relationship from sourceID to targetID.
func (t *Tally) Unfollow(ctx context.Context, sourceID, targetID id.ID) error {
	rel, err := t.store.FindRelationship(ctx, sourceID, targetID)
	if err != nil {
		return err
	}
	r := newRemoval()
	if err := t.drop(ctx, r, id.KindRelationship, rel.ID); err != nil {
		return err
	}
	t.removeRelationship(r, rel)
	return t.finish(ctx, r)
}

// DeleteUser removes a user and everything they authored: relationships in
// both directions, smiles, comment smiles, comments, answers and questions.
// Counters of the users and entities left behind are decremented.
func (t *Tally) DeleteUser(ctx context.Context, userID id.ID) error {
	if _, err := t.store.GetUser(ctx, userID); err != nil {
		return err
	}
	r := newRemoval()
	if err := t.drop(ctx, r, id.KindUser, userID); err != nil {
		return err
	}

	if rels, err := t.store.RelationshipsByUser(ctx, userID); err != nil {
		r.errs.Add(err)
	} else {
		for _, rel := range rels {
			if t.dropChild(ctx, r, id.KindRelationship, rel.ID) {
				t.removeRelationship(r, rel)
			}
		}
	}

	if smiles, err := t.store.SmilesByUser(ctx, userID); err != nil {
		r.errs.Add(err)
	} else {
		for _, s := range smiles {
			if t.dropChild(ctx, r, id.KindSmile, s.ID) {
				t.removeSmile(r, s)
			}
		}
	}

	if smiles, err := t.store.CommentSmilesByUser(ctx, userID); err != nil {
		r.errs.Add(err)
	} else {
		for _, s := range smiles {
			if t.dropChild(ctx, r, id.KindCommentSmile, s.ID) {
				t.removeCommentSmile(r, s)
			}
		}
	}

	if comments, err := t.store.CommentsByUser(ctx, userID); err != nil {
		r.errs.Add(err)
	} else {
		for _, c := range comments {
			if t.dropChild(ctx, r, id.KindComment, c.ID) {
				t.cascadeComment(ctx, r, c)
			}
		}
	}

	if answers, err := t.store.AnswersByUser(ctx, userID); err != nil {
		r.errs.Add(err)
	} else {
		for _, a := range answers {
			if t.dropChild(ctx, r, id.KindAnswer, a.ID) {
				t.cascadeAnswer(ctx, r, a)
			}
		}
	}

	if questions, err := t.store.QuestionsByUser(ctx, userID); err != nil {
		r.errs.Add(err)
	} else {
		for _, q := range questions {
			if t.dropChild(ctx, r, id.KindQuestion, q.ID) {
				t.cascadeQuestion(ctx, r, q)
			}
		}
	}

	return t.finish(ctx, r)
}

// ──────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────

// GetUser retrieves a user by ID.
func (t *Tally) GetUser(ctx context.Context, userID id.ID) (*model.User, error) {
	return t.store.GetUser(ctx, userID)
}

// GetQuestion retrieves a question by ID.
func (t *Tally) GetQuestion(ctx context.Context, questionID id.ID) (*model.Question, error) {
	return t.store.GetQuestion(ctx, questionID)
}

// GetAnswer retrieves an answer by ID.
func (t *Tally) GetAnswer(ctx context.Context, answerID id.ID) (*model.Answer, error) {
	return t.store.GetAnswer(ctx, answerID)
}

// GetComment retrieves a comment by ID.
func (t *Tally) GetComment(ctx context.Context, commentID id.ID) (*model.Comment, error) {
	return t.store.GetComment(ctx, commentID)
}
