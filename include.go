package tally

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/tally/id"
	"github.com/xraph/tally/model"
	"github.com/xraph/tally/rank"
)

// Includes are resolved in batches: one store call per relation for the
// whole result set, then one users call for every author and smiler seen.

type userSet map[id.ID]struct{}

func (s userSet) add(uid id.ID) {
	if !uid.IsNil() {
		s[uid] = struct{}{}
	}
}

func (s userSet) ids() []id.ID {
	out := make([]id.ID, 0, len(s))
	for uid := range s {
		out = append(out, uid)
	}
	return out
}

func (t *Tally) usersByID(ctx context.Context, ids []id.ID) (map[id.ID]*model.User, error) {
	out := make(map[id.ID]*model.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	users, err := t.store.UsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("tally: load users: %w", err)
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func answerIDs(answers []*model.Answer) []id.ID {
	out := make([]id.ID, len(answers))
	for i, a := range answers {
		out[i] = a.ID
	}
	return out
}

// includeAnswers attaches the relations o asks for to answers in place.
func (t *Tally) includeAnswers(ctx context.Context, answers []*model.Answer, o rank.Options) error {
	if len(answers) == 0 || !(o.IncludeUser || o.IncludeQuestion || o.IncludeComments || o.IncludeSmiles) {
		return nil
	}

	var (
		questions     []*model.Question
		comments      []*model.Comment
		commentSmiles []*model.CommentSmile
		smiles        []*model.Smile
	)
	aids := answerIDs(answers)

	g, gctx := errgroup.WithContext(ctx)
	if o.IncludeQuestion {
		g.Go(func() error {
			qids := make([]id.ID, len(answers))
			for i, a := range answers {
				qids[i] = a.QuestionID
			}
			var err error
			questions, err = t.store.QuestionsByIDs(gctx, qids)
			return err
		})
	}
	if o.IncludeComments {
		g.Go(func() error {
			var err error
			comments, err = t.store.CommentsByAnswers(gctx, aids)
			if err != nil || len(comments) == 0 {
				return err
			}
			cids := make([]id.ID, len(comments))
			for i, c := range comments {
				cids[i] = c.ID
			}
			commentSmiles, err = t.store.CommentSmilesByComments(gctx, cids)
			return err
		})
	}
	if o.IncludeSmiles {
		g.Go(func() error {
			var err error
			smiles, err = t.store.SmilesByAnswers(gctx, aids)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("tally: load answer relations: %w", err)
	}

	need := userSet{}
	if o.IncludeUser {
		for _, a := range answers {
			need.add(a.UserID)
		}
	}
	for _, q := range questions {
		if !q.Anonymous {
			need.add(q.UserID)
		}
	}
	for _, c := range comments {
		need.add(c.UserID)
	}
	for _, cs := range commentSmiles {
		need.add(cs.UserID)
	}
	for _, s := range smiles {
		need.add(s.UserID)
	}
	users, err := t.usersByID(ctx, need.ids())
	if err != nil {
		return err
	}

	questionByID := make(map[id.ID]*model.Question, len(questions))
	for _, q := range questions {
		if !q.Anonymous {
			q.User = users[q.UserID]
		}
		questionByID[q.ID] = q
	}

	smilesByComment := make(map[id.ID][]*model.CommentSmile)
	for _, cs := range commentSmiles {
		cs.User = users[cs.UserID]
		smilesByComment[cs.CommentID] = append(smilesByComment[cs.CommentID], cs)
	}
	commentsByAnswer := make(map[id.ID][]*model.Comment)
	for _, c := range comments {
		c.User = users[c.UserID]
		c.Smiles = smilesByComment[c.ID]
		commentsByAnswer[c.AnswerID] = append(commentsByAnswer[c.AnswerID], c)
	}
	smilesByAnswer := make(map[id.ID][]*model.Smile)
	for _, s := range smiles {
		s.User = users[s.UserID]
		smilesByAnswer[s.AnswerID] = append(smilesByAnswer[s.AnswerID], s)
	}

	for _, a := range answers {
		if o.IncludeUser {
			a.User = users[a.UserID]
		}
		if o.IncludeQuestion {
			a.Question = questionByID[a.QuestionID]
		}
		if o.IncludeComments {
			a.Comments = commentsByAnswer[a.ID]
		}
		if o.IncludeSmiles {
			a.Smiles = smilesByAnswer[a.ID]
		}
	}
	return nil
}

// includeQuestions attaches authors (never for anonymous questions) and
// answers. Answers carry their authors, comments and smiles.
func (t *Tally) includeQuestions(ctx context.Context, questions []*model.Question, o rank.Options) error {
	if len(questions) == 0 || !(o.IncludeUser || o.IncludeAnswers) {
		return nil
	}

	var answers []*model.Answer
	if o.IncludeAnswers {
		qids := make([]id.ID, len(questions))
		for i, q := range questions {
			qids[i] = q.ID
		}
		var err error
		answers, err = t.store.AnswersByQuestions(ctx, qids)
		if err != nil {
			return fmt.Errorf("tally: load answers: %w", err)
		}
		nested := rank.Options{IncludeUser: true, IncludeComments: true, IncludeSmiles: true}
		if err := t.includeAnswers(ctx, answers, nested); err != nil {
			return err
		}
	}

	if o.IncludeUser {
		need := userSet{}
		for _, q := range questions {
			if !q.Anonymous {
				need.add(q.UserID)
			}
		}
		users, err := t.usersByID(ctx, need.ids())
		if err != nil {
			return err
		}
		for _, q := range questions {
			if !q.Anonymous {
				q.User = users[q.UserID]
			}
		}
	}

	byQuestion := make(map[id.ID][]*model.Answer)
	for _, a := range answers {
		byQuestion[a.QuestionID] = append(byQuestion[a.QuestionID], a)
	}
	for _, q := range questions {
		if o.IncludeAnswers {
			q.Answers = byQuestion[q.ID]
		}
	}
	return nil
}

// includeComments attaches comment authors and smiles with smilers.
func (t *Tally) includeComments(ctx context.Context, comments []*model.Comment, o rank.Options) error {
	if len(comments) == 0 || !(o.IncludeUser || o.IncludeSmiles) {
		return nil
	}

	var smiles []*model.CommentSmile
	if o.IncludeSmiles {
		cids := make([]id.ID, len(comments))
		for i, c := range comments {
			cids[i] = c.ID
		}
		var err error
		smiles, err = t.store.CommentSmilesByComments(ctx, cids)
		if err != nil {
			return fmt.Errorf("tally: load comment smiles: %w", err)
		}
	}

	need := userSet{}
	if o.IncludeUser {
		for _, c := range comments {
			need.add(c.UserID)
		}
	}
	for _, s := range smiles {
		need.add(s.UserID)
	}
	users, err := t.usersByID(ctx, need.ids())
	if err != nil {
		return err
	}

	byComment := make(map[id.ID][]*model.CommentSmile)
	for _, s := range smiles {
		s.User = users[s.UserID]
		byComment[s.CommentID] = append(byComment[s.CommentID], s)
	}
	for _, c := range comments {
		if o.IncludeUser {
			c.User = users[c.UserID]
		}
		if o.IncludeSmiles {
			c.Smiles = byComment[c.ID]
		}
	}
	return nil
}
