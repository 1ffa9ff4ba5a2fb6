package tally

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/tally/counter"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/model"
	"github.com/xraph/tally/rank"
)

// ──────────────────────────────────────────────────
// Ranking Query Engine
// ──────────────────────────────────────────────────

// ValidateWindow reports ErrInvalidWindow for non-positive windows.
func ValidateWindow(window time.Duration) error {
	if window <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidWindow, window)
	}
	return nil
}

// TopK returns up to k entities of kind created within the trailing window,
// ordered by field descending. Recency is decided by identifier alone: the
// selection is id >= WindowStart(window). Order among equal scores is
// unspecified.
func (t *Tally) TopK(ctx context.Context, kind id.Kind, field counter.Field, window time.Duration, k int, opts ...rank.Option) ([]rank.Entry, error) {
	if err := ValidateWindow(window); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("tally: top %d: %w", k, ErrInvalidInput)
	}
	if !counter.Valid(kind, field) {
		return nil, fmt.Errorf("tally: rank %s by %q: %w", kind, field, ErrInvalidCounter)
	}

	start := time.Now()
	o := rank.Apply(opts...)
	q := rank.Query{
		Field:            field,
		Since:            t.ids.WindowStart(window),
		Limit:            k,
		ExcludeAnonymous: o.ExcludeAnonymous,
		NonZero:          o.NonZero,
	}

	entries, err := t.selectRanked(ctx, kind, q, o)
	if err != nil {
		return nil, err
	}

	t.plugins.EmitRankingServed(ctx, kind.String()+"."+string(field), window, len(entries), time.Since(start))
	return entries, nil
}

// Newest returns up to k entities of kind, newest first. With
// rank.NonZero(f) only entities whose f counter is positive qualify, and
// the entry score is that counter.
func (t *Tally) Newest(ctx context.Context, kind id.Kind, k int, opts ...rank.Option) ([]rank.Entry, error) {
	if k <= 0 {
		return nil, fmt.Errorf("tally: newest %d: %w", k, ErrInvalidInput)
	}
	o := rank.Apply(opts...)
	if o.NonZero != "" && !counter.Valid(kind, o.NonZero) {
		return nil, fmt.Errorf("tally: filter %s by %q: %w", kind, o.NonZero, ErrInvalidCounter)
	}

	start := time.Now()
	q := rank.Query{
		Limit:            k,
		ExcludeAnonymous: o.ExcludeAnonymous,
		NonZero:          o.NonZero,
	}

	entries, err := t.selectRanked(ctx, kind, q, o)
	if err != nil {
		return nil, err
	}

	t.plugins.EmitRankingServed(ctx, kind.String()+".newest", 0, len(entries), time.Since(start))
	return entries, nil
}

// TopKGroupedBy buckets the entities of kind created within the window by
// group, counts each bucket and returns the k largest with their users
// attached. Anonymous questions never count toward their author.
func (t *Tally) TopKGroupedBy(ctx context.Context, kind id.Kind, group rank.GroupKey, window time.Duration, k int) ([]rank.Group, error) {
	if err := ValidateWindow(window); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("tally: top %d: %w", k, ErrInvalidInput)
	}
	if group != rank.GroupByAuthor {
		return nil, fmt.Errorf("tally: group by %q: %w", group, ErrInvalidInput)
	}
	switch kind {
	case id.KindQuestion, id.KindAnswer, id.KindComment:
	default:
		return nil, fmt.Errorf("tally: group %s by author: %w", kind, ErrInvalidInput)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	groups, err := t.store.CountByAuthor(ctx, rank.GroupQuery{
		Kind:             kind,
		By:               group,
		Since:            t.ids.WindowStart(window),
		Limit:            k,
		ExcludeAnonymous: kind == id.KindQuestion,
	})
	if err != nil {
		return nil, fmt.Errorf("tally: group %s: %w", kind, err)
	}

	userIDs := make([]id.ID, len(groups))
	for i, g := range groups {
		userIDs[i] = g.UserID
	}
	users, err := t.usersByID(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	for i := range groups {
		groups[i].User = users[groups[i].UserID]
	}

	t.plugins.EmitRankingServed(ctx, kind.String()+".by_author", window, len(groups), time.Since(start))
	return groups, nil
}

func (t *Tally) selectRanked(ctx context.Context, kind id.Kind, q rank.Query, o rank.Options) ([]rank.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	scoreBy := q.Field
	if scoreBy == "" {
		scoreBy = q.NonZero
	}

	switch kind {
	case id.KindQuestion:
		rows, err := t.store.TopQuestions(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("tally: rank questions: %w", err)
		}
		if err := t.includeQuestions(ctx, rows, o); err != nil {
			return nil, err
		}
		entries := make([]rank.Entry, len(rows))
		for i, r := range rows {
			entries[i] = rank.Entry{Kind: kind, ID: r.ID, Score: score(r, scoreBy), Question: r}
		}
		return entries, nil

	case id.KindAnswer:
		rows, err := t.store.TopAnswers(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("tally: rank answers: %w", err)
		}
		if err := t.includeAnswers(ctx, rows, o); err != nil {
			return nil, err
		}
		entries := make([]rank.Entry, len(rows))
		for i, r := range rows {
			entries[i] = rank.Entry{Kind: kind, ID: r.ID, Score: score(r, scoreBy), Answer: r}
		}
		return entries, nil

	case id.KindComment:
		rows, err := t.store.TopComments(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("tally: rank comments: %w", err)
		}
		if err := t.includeComments(ctx, rows, o); err != nil {
			return nil, err
		}
		entries := make([]rank.Entry, len(rows))
		for i, r := range rows {
			entries[i] = rank.Entry{Kind: kind, ID: r.ID, Score: score(r, scoreBy), Comment: r}
		}
		return entries, nil

	case id.KindUser:
		rows, err := t.store.TopUsers(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("tally: rank users: %w", err)
		}
		entries := make([]rank.Entry, len(rows))
		for i, r := range rows {
			entries[i] = rank.Entry{Kind: kind, ID: r.ID, Score: score(r, scoreBy), User: r}
		}
		return entries, nil
	}

	return nil, fmt.Errorf("tally: rank %s: %w", kind, ErrInvalidInput)
}

func score(c model.Counters, f counter.Field) int64 {
	if f == "" {
		return 0
	}
	v, _ := c.Counter(f)
	return v
}

// ──────────────────────────────────────────────────
// Discover
// ──────────────────────────────────────────────────

// DiscoverOpts tunes a Discover call. Zero values take the engine defaults.
type DiscoverOpts struct {
	Window time.Duration
	Limit  int
}

// Discovery holds the six lists of the discover page.
type Discovery struct {
	Window time.Duration `json:"window"`
	Since  id.ID         `json:"since"`

	PopularAnswers         []rank.Entry `json:"popular_answers"`
	MostDiscussedAnswers   []rank.Entry `json:"most_discussed_answers"`
	PopularQuestions       []rank.Entry `json:"popular_questions"`
	NewUsers               []rank.Entry `json:"new_users"`
	UsersWithMostQuestions []rank.Group `json:"users_with_most_questions"`
	UsersWithMostAnswers   []rank.Group `json:"users_with_most_answers"`
}

// Len is the total number of rows across all six lists.
func (d *Discovery) Len() int {
	return len(d.PopularAnswers) + len(d.MostDiscussedAnswers) + len(d.PopularQuestions) +
		len(d.NewUsers) + len(d.UsersWithMostQuestions) + len(d.UsersWithMostAnswers)
}

// Discover computes the discover page lists concurrently.
func (t *Tally) Discover(ctx context.Context, opts DiscoverOpts) (*Discovery, error) {
	if !t.discoverEnabled {
		return nil, ErrDiscoverDisabled
	}
	if opts.Window == 0 {
		opts.Window = t.discoverWindow
	}
	if opts.Limit == 0 {
		opts.Limit = t.discoverLimit
	}
	if err := ValidateWindow(opts.Window); err != nil {
		return nil, err
	}
	if opts.Limit < 0 {
		return nil, fmt.Errorf("tally: discover limit %d: %w", opts.Limit, ErrInvalidInput)
	}

	start := time.Now()
	d := &Discovery{Window: opts.Window, Since: t.ids.WindowStart(opts.Window)}
	answerIncludes := []rank.Option{rank.WithUser(), rank.WithQuestion(), rank.WithComments(), rank.WithSmiles()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.PopularAnswers, err = t.TopK(gctx, id.KindAnswer, counter.SmileCount, opts.Window, opts.Limit, answerIncludes...)
		return err
	})
	g.Go(func() (err error) {
		d.MostDiscussedAnswers, err = t.TopK(gctx, id.KindAnswer, counter.CommentCount, opts.Window, opts.Limit, answerIncludes...)
		return err
	})
	g.Go(func() (err error) {
		d.PopularQuestions, err = t.TopK(gctx, id.KindQuestion, counter.AnswerCount, opts.Window, opts.Limit,
			rank.WithUser(), rank.WithAnswers())
		return err
	})
	g.Go(func() (err error) {
		d.NewUsers, err = t.Newest(gctx, id.KindUser, opts.Limit, rank.NonZero(counter.AskedCount))
		return err
	})
	g.Go(func() (err error) {
		d.UsersWithMostQuestions, err = t.TopKGroupedBy(gctx, id.KindQuestion, rank.GroupByAuthor, opts.Window, opts.Limit)
		return err
	})
	g.Go(func() (err error) {
		d.UsersWithMostAnswers, err = t.TopKGroupedBy(gctx, id.KindAnswer, rank.GroupByAuthor, opts.Window, opts.Limit)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	t.plugins.EmitRankingServed(ctx, "discover", opts.Window, d.Len(), time.Since(start))
	return d, nil
}
