// Package memory provides an in-process store.Store. Rows live in lock-free
// ordered skip lists and counters in atomic cells, so concurrent deltas never
// lose updates.
package memory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/zhangyunhao116/skipset"

	"github.com/xraph/tally"
	"github.com/xraph/tally/counter"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/model"
	"github.com/xraph/tally/rank"
	"github.com/xraph/tally/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// edgeSet records unique (a, b) pairs.
type edgeSet interface {
	Add(string) bool
	Remove(string) bool
	Contains(string) bool
}

type Store struct {
	users         *table[model.User]
	questions     *table[model.Question]
	answers       *table[model.Answer]
	comments      *table[model.Comment]
	smiles        *table[model.Smile]
	commentSmiles *table[model.CommentSmile]
	relationships *table[model.Relationship]

	smileEdges        edgeSet
	commentSmileEdges edgeSet
	followEdges       edgeSet

	closed atomic.Bool
}

func edge(a, b id.ID) string { return a.String() + ":" + b.String() }

func New() *Store {
	s := &Store{
		users: newTable(id.KindUser,
			func(u *model.User) id.ID { return u.ID },
			func(*model.User, string) id.ID { return id.Nil }),
		questions: newTable(id.KindQuestion,
			func(q *model.Question) id.ID { return q.ID },
			func(q *model.Question, col string) id.ID {
				if col == "user_id" {
					return q.UserID
				}
				return id.Nil
			}),
		answers: newTable(id.KindAnswer,
			func(a *model.Answer) id.ID { return a.ID },
			func(a *model.Answer, col string) id.ID {
				switch col {
				case "question_id":
					return a.QuestionID
				case "user_id":
					return a.UserID
				}
				return id.Nil
			}),
		comments: newTable(id.KindComment,
			func(c *model.Comment) id.ID { return c.ID },
			func(c *model.Comment, col string) id.ID {
				switch col {
				case "answer_id":
					return c.AnswerID
				case "user_id":
					return c.UserID
				}
				return id.Nil
			}),
		smiles: newTable(id.KindSmile,
			func(sm *model.Smile) id.ID { return sm.ID },
			func(sm *model.Smile, col string) id.ID {
				switch col {
				case "answer_id":
					return sm.AnswerID
				case "user_id":
					return sm.UserID
				}
				return id.Nil
			}),
		commentSmiles: newTable(id.KindCommentSmile,
			func(cs *model.CommentSmile) id.ID { return cs.ID },
			func(cs *model.CommentSmile, col string) id.ID {
				switch col {
				case "comment_id":
					return cs.CommentID
				case "user_id":
					return cs.UserID
				}
				return id.Nil
			}),
		relationships: newTable(id.KindRelationship,
			func(r *model.Relationship) id.ID { return r.ID },
			func(r *model.Relationship, col string) id.ID {
				switch col {
				case "source_id":
					return r.SourceID
				case "target_id":
					return r.TargetID
				}
				return id.Nil
			}),

		smileEdges:        skipset.New[string](),
		commentSmileEdges: skipset.New[string](),
		followEdges:       skipset.New[string](),
	}

	s.questions.anonymous = func(q *model.Question) bool { return q.Anonymous }
	s.smiles.onDelete = func(sm *model.Smile) { s.smileEdges.Remove(edge(sm.UserID, sm.AnswerID)) }
	s.commentSmiles.onDelete = func(cs *model.CommentSmile) {
		s.commentSmileEdges.Remove(edge(cs.UserID, cs.CommentID))
	}
	s.relationships.onDelete = func(r *model.Relationship) {
		s.followEdges.Remove(edge(r.SourceID, r.TargetID))
	}
	return s
}

// ==================== User Store ====================

func (s *Store) CreateUser(_ context.Context, u *model.User) error {
	if !s.users.insert(u) {
		return tally.ErrAlreadyExists
	}
	return nil
}

func (s *Store) GetUser(_ context.Context, userID id.ID) (*model.User, error) {
	if u, ok := s.users.get(userID); ok {
		return u, nil
	}
	return nil, tally.ErrUserNotFound
}

func (s *Store) UsersByIDs(_ context.Context, ids []id.ID) ([]*model.User, error) {
	result := make([]*model.User, 0, len(ids))
	for _, uid := range ids {
		if u, ok := s.users.get(uid); ok {
			result = append(result, u)
		}
	}
	return result, nil
}

// ==================== Question Store ====================

func (s *Store) CreateQuestion(_ context.Context, q *model.Question) error {
	if !s.questions.insert(q) {
		return tally.ErrAlreadyExists
	}
	return nil
}

func (s *Store) GetQuestion(_ context.Context, questionID id.ID) (*model.Question, error) {
	if q, ok := s.questions.get(questionID); ok {
		return q, nil
	}
	return nil, tally.ErrQuestionNotFound
}

func (s *Store) QuestionsByIDs(_ context.Context, ids []id.ID) ([]*model.Question, error) {
	result := make([]*model.Question, 0, len(ids))
	for _, qid := range ids {
		if q, ok := s.questions.get(qid); ok {
			result = append(result, q)
		}
	}
	return result, nil
}

func (s *Store) QuestionsByUser(_ context.Context, userID id.ID) ([]*model.Question, error) {
	return s.questions.byColumn("user_id", []id.ID{userID}), nil
}

// ==================== Answer Store ====================

func (s *Store) CreateAnswer(_ context.Context, a *model.Answer) error {
	if !s.answers.insert(a) {
		return tally.ErrAlreadyExists
	}
	return nil
}

func (s *Store) GetAnswer(_ context.Context, answerID id.ID) (*model.Answer, error) {
	if a, ok := s.answers.get(answerID); ok {
		return a, nil
	}
	return nil, tally.ErrAnswerNotFound
}

func (s *Store) AnswersByQuestions(_ context.Context, questionIDs []id.ID) ([]*model.Answer, error) {
	return s.answers.byColumn("question_id", questionIDs), nil
}

func (s *Store) AnswersByUser(_ context.Context, userID id.ID) ([]*model.Answer, error) {
	return s.answers.byColumn("user_id", []id.ID{userID}), nil
}

// ==================== Comment Store ====================

func (s *Store) CreateComment(_ context.Context, c *model.Comment) error {
	if !s.comments.insert(c) {
		return tally.ErrAlreadyExists
	}
	return nil
}

func (s *Store) GetComment(_ context.Context, commentID id.ID) (*model.Comment, error) {
	if c, ok := s.comments.get(commentID); ok {
		return c, nil
	}
	return nil, tally.ErrCommentNotFound
}

func (s *Store) CommentsByAnswers(_ context.Context, answerIDs []id.ID) ([]*model.Comment, error) {
	return s.comments.byColumn("answer_id", answerIDs), nil
}

func (s *Store) CommentsByUser(_ context.Context, userID id.ID) ([]*model.Comment, error) {
	return s.comments.byColumn("user_id", []id.ID{userID}), nil
}

// ==================== Smile Store ====================

func (s *Store) CreateSmile(_ context.Context, sm *model.Smile) error {
	key := edge(sm.UserID, sm.AnswerID)
	if !s.smileEdges.Add(key) {
		return tally.ErrAlreadyExists
	}
	if !s.smiles.insert(sm) {
		s.smileEdges.Remove(key)
		return tally.ErrAlreadyExists
	}
	return nil
}

func (s *Store) FindSmile(_ context.Context, userID, answerID id.ID) (*model.Smile, error) {
	if !s.smileEdges.Contains(edge(userID, answerID)) {
		return nil, tally.ErrSmileNotFound
	}
	found := s.smiles.filter(func(sm *model.Smile) bool {
		return sm.UserID == userID && sm.AnswerID == answerID
	})
	if len(found) == 0 {
		return nil, tally.ErrSmileNotFound
	}
	return found[0], nil
}

func (s *Store) SmilesByAnswers(_ context.Context, answerIDs []id.ID) ([]*model.Smile, error) {
	return s.smiles.byColumn("answer_id", answerIDs), nil
}

func (s *Store) SmilesByUser(_ context.Context, userID id.ID) ([]*model.Smile, error) {
	return s.smiles.byColumn("user_id", []id.ID{userID}), nil
}

// ==================== Comment Smile Store ====================

func (s *Store) CreateCommentSmile(_ context.Context, cs *model.CommentSmile) error {
	key := edge(cs.UserID, cs.CommentID)
	if !s.commentSmileEdges.Add(key) {
		return tally.ErrAlreadyExists
	}
	if !s.commentSmiles.insert(cs) {
		s.commentSmileEdges.Remove(key)
		return tally.ErrAlreadyExists
	}
	return nil
}

func (s *Store) FindCommentSmile(_ context.Context, userID, commentID id.ID) (*model.CommentSmile, error) {
	if !s.commentSmileEdges.Contains(edge(userID, commentID)) {
		return nil, tally.ErrCommentSmileNotFound
	}
	found := s.commentSmiles.filter(func(cs *model.CommentSmile) bool {
		return cs.UserID == userID && cs.CommentID == commentID
	})
	if len(found) == 0 {
		return nil, tally.ErrCommentSmileNotFound
	}
	return found[0], nil
}

func (s *Store) CommentSmilesByComments(_ context.Context, commentIDs []id.ID) ([]*model.CommentSmile, error) {
	return s.commentSmiles.byColumn("comment_id", commentIDs), nil
}

func (s *Store) CommentSmilesByUser(_ context.Context, userID id.ID) ([]*model.CommentSmile, error) {
	return s.commentSmiles.byColumn("user_id", []id.ID{userID}), nil
}

// ==================== Relationship Store ====================

func (s *Store) CreateRelationship(_ context.Context, r *model.Relationship) error {
	key := edge(r.SourceID, r.TargetID)
	if !s.followEdges.Add(key) {
		return tally.ErrAlreadyExists
	}
	if !s.relationships.insert(r) {
		s.followEdges.Remove(key)
		return tally.ErrAlreadyExists
	}
	return nil
}

func (s *Store) FindRelationship(_ context.Context, sourceID, targetID id.ID) (*model.Relationship, error) {
	if !s.followEdges.Contains(edge(sourceID, targetID)) {
		return nil, tally.ErrRelationshipNotFound
	}
	found := s.relationships.filter(func(r *model.Relationship) bool {
		return r.SourceID == sourceID && r.TargetID == targetID
	})
	if len(found) == 0 {
		return nil, tally.ErrRelationshipNotFound
	}
	return found[0], nil
}

func (s *Store) RelationshipsByUser(_ context.Context, userID id.ID) ([]*model.Relationship, error) {
	return s.relationships.filter(func(r *model.Relationship) bool {
		return r.SourceID == userID || r.TargetID == userID
	}), nil
}

// ==================== Delete ====================

func (s *Store) Delete(_ context.Context, kind id.Kind, entityID id.ID) error {
	var ok bool
	switch kind {
	case id.KindUser:
		ok = s.users.remove(entityID)
	case id.KindQuestion:
		ok = s.questions.remove(entityID)
	case id.KindAnswer:
		ok = s.answers.remove(entityID)
	case id.KindComment:
		ok = s.comments.remove(entityID)
	case id.KindSmile:
		ok = s.smiles.remove(entityID)
	case id.KindCommentSmile:
		ok = s.commentSmiles.remove(entityID)
	case id.KindRelationship:
		ok = s.relationships.remove(entityID)
	default:
		return fmt.Errorf("tally/memory: delete: %w", id.ErrUnknownKind)
	}
	if !ok {
		return tally.NotFoundFor(kind)
	}
	return nil
}

// ==================== Counter Store ====================

// cellFor resolves the atomic cell behind t. A missing row yields
// ErrTargetGone.
func (s *Store) cellFor(t counter.Target) (*atomic.Int64, error) {
	var (
		cell            *atomic.Int64
		found, hasField bool
	)
	switch t.Kind {
	case id.KindUser:
		cell, found, hasField = s.users.cell(t.ID, t.Field)
	case id.KindQuestion:
		cell, found, hasField = s.questions.cell(t.ID, t.Field)
	case id.KindAnswer:
		cell, found, hasField = s.answers.cell(t.ID, t.Field)
	case id.KindComment:
		cell, found, hasField = s.comments.cell(t.ID, t.Field)
	default:
		return nil, fmt.Errorf("tally/memory: %s: %w", t, tally.ErrInvalidCounter)
	}
	if !found {
		return nil, tally.ErrTargetGone
	}
	if !hasField {
		return nil, fmt.Errorf("tally/memory: %s: %w", t, tally.ErrInvalidCounter)
	}
	return cell, nil
}

func (s *Store) Increment(_ context.Context, t counter.Target, delta int64) error {
	cell, err := s.cellFor(t)
	if err != nil {
		return err
	}
	cell.Add(delta)
	return nil
}

func (s *Store) SetCounter(_ context.Context, t counter.Target, value int64) error {
	cell, err := s.cellFor(t)
	if err != nil {
		return err
	}
	cell.Store(value)
	return nil
}

func (s *Store) CounterValue(_ context.Context, t counter.Target) (int64, error) {
	cell, err := s.cellFor(t)
	if err != nil {
		if errors.Is(err, tally.ErrTargetGone) {
			return 0, tally.NotFoundFor(t.Kind)
		}
		return 0, err
	}
	return cell.Load(), nil
}

func (s *Store) CountChildren(_ context.Context, src counter.Source, parentID id.ID) (int64, error) {
	switch src.Child {
	case id.KindQuestion:
		return s.questions.count(src.ForeignKey, parentID, src.ExcludeAnonymous), nil
	case id.KindAnswer:
		return s.answers.count(src.ForeignKey, parentID, false), nil
	case id.KindComment:
		return s.comments.count(src.ForeignKey, parentID, false), nil
	case id.KindSmile:
		return s.smiles.count(src.ForeignKey, parentID, false), nil
	case id.KindCommentSmile:
		return s.commentSmiles.count(src.ForeignKey, parentID, false), nil
	case id.KindRelationship:
		return s.relationships.count(src.ForeignKey, parentID, false), nil
	}
	return 0, fmt.Errorf("tally/memory: count children of %s: %w", src.Child, id.ErrUnknownKind)
}

func (s *Store) ListIDs(_ context.Context, kind id.Kind, after id.ID, limit int) ([]id.ID, error) {
	switch kind {
	case id.KindUser:
		return s.users.ids(after, limit), nil
	case id.KindQuestion:
		return s.questions.ids(after, limit), nil
	case id.KindAnswer:
		return s.answers.ids(after, limit), nil
	case id.KindComment:
		return s.comments.ids(after, limit), nil
	case id.KindSmile:
		return s.smiles.ids(after, limit), nil
	case id.KindCommentSmile:
		return s.commentSmiles.ids(after, limit), nil
	case id.KindRelationship:
		return s.relationships.ids(after, limit), nil
	}
	return nil, fmt.Errorf("tally/memory: list ids: %w", id.ErrUnknownKind)
}

// ==================== Ranking Store ====================

// top orders window rows (newest first) by q.Field descending. The stable
// sort keeps newer rows ahead among equal scores.
func top[T any](rows []*T, q rank.Query) []*T {
	if q.Field != "" {
		slices.SortStableFunc(rows, func(a, b *T) int {
			return cmp.Compare(score(b, q.Field), score(a, q.Field))
		})
	}
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	return rows
}

func score[T any](v *T, f counter.Field) int64 {
	if c, ok := any(v).(model.Counters); ok {
		n, _ := c.Counter(f)
		return n
	}
	return 0
}

func nonZero[T any](f counter.Field) func(*T) bool {
	if f == "" {
		return nil
	}
	return func(v *T) bool { return score(v, f) > 0 }
}

func (s *Store) TopQuestions(_ context.Context, q rank.Query) ([]*model.Question, error) {
	keep := nonZero[model.Question](q.NonZero)
	rows := s.questions.window(q.Since, func(v *model.Question) bool {
		if q.ExcludeAnonymous && v.Anonymous {
			return false
		}
		return keep == nil || keep(v)
	})
	return top(rows, q), nil
}

func (s *Store) TopAnswers(_ context.Context, q rank.Query) ([]*model.Answer, error) {
	return top(s.answers.window(q.Since, nonZero[model.Answer](q.NonZero)), q), nil
}

func (s *Store) TopComments(_ context.Context, q rank.Query) ([]*model.Comment, error) {
	return top(s.comments.window(q.Since, nonZero[model.Comment](q.NonZero)), q), nil
}

func (s *Store) TopUsers(_ context.Context, q rank.Query) ([]*model.User, error) {
	return top(s.users.window(q.Since, nonZero[model.User](q.NonZero)), q), nil
}

func (s *Store) CountByAuthor(_ context.Context, q rank.GroupQuery) ([]rank.Group, error) {
	counts := make(map[id.ID]int64)
	switch q.Kind {
	case id.KindQuestion:
		for _, v := range s.questions.window(q.Since, nil) {
			if q.ExcludeAnonymous && v.Anonymous {
				continue
			}
			counts[v.UserID]++
		}
	case id.KindAnswer:
		for _, v := range s.answers.window(q.Since, nil) {
			counts[v.UserID]++
		}
	case id.KindComment:
		for _, v := range s.comments.window(q.Since, nil) {
			counts[v.UserID]++
		}
	default:
		return nil, fmt.Errorf("tally/memory: group %s: %w", q.Kind, tally.ErrInvalidInput)
	}

	groups := make([]rank.Group, 0, len(counts))
	for uid, n := range counts {
		groups = append(groups, rank.Group{UserID: uid, Count: n})
	}
	slices.SortFunc(groups, func(a, b rank.Group) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
	if q.Limit > 0 && len(groups) > q.Limit {
		groups = groups[:q.Limit]
	}
	return groups, nil
}

// ==================== Core ====================

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	if s.closed.Load() {
		return tally.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}

// Len reports the number of stored rows of kind.
func (s *Store) Len(kind id.Kind) int {
	switch kind {
	case id.KindUser:
		return s.users.size()
	case id.KindQuestion:
		return s.questions.size()
	case id.KindAnswer:
		return s.answers.size()
	case id.KindComment:
		return s.comments.size()
	case id.KindSmile:
		return s.smiles.size()
	case id.KindCommentSmile:
		return s.commentSmiles.size()
	case id.KindRelationship:
		return s.relationships.size()
	}
	return 0
}
