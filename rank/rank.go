// Package rank defines the query and result types of windowed rankings.
//
// A ranking selects entities whose identifier is at or above a lower bound
// (the window start), orders them by a counter and keeps the first K. Stores
// implement the selection; the engine in the root package computes the bound
// and resolves includes.
package rank

import (
	"github.com/xraph/tally/counter"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/model"
)

// Query is a windowed top-K selection over one entity table.
type Query struct {
	// Field orders results descending. Empty orders by identifier descending.
	Field counter.Field

	// Since is the inclusive identifier lower bound. Nil means no bound.
	Since id.ID

	Limit int

	// ExcludeAnonymous drops anonymous questions.
	ExcludeAnonymous bool

	// NonZero keeps only rows whose NonZero counter is positive.
	NonZero counter.Field
}

// GroupKey names the column a grouped ranking buckets by.
type GroupKey string

// GroupByAuthor buckets entities by their author's user ID.
const GroupByAuthor GroupKey = "user_id"

// GroupQuery counts entities of Kind per owner within the window.
type GroupQuery struct {
	Kind             id.Kind
	By               GroupKey
	Since            id.ID
	Limit            int
	ExcludeAnonymous bool
}

// Group is one bucket of a grouped ranking.
type Group struct {
	UserID id.ID       `json:"user_id"`
	Count  int64       `json:"count"`
	User   *model.User `json:"user,omitempty"`
}

// Entry is one ranked entity. Exactly one of the entity pointers is set,
// matching Kind.
type Entry struct {
	Kind  id.Kind `json:"kind"`
	ID    id.ID   `json:"id"`
	Score int64   `json:"score"`

	User     *model.User     `json:"user,omitempty"`
	Question *model.Question `json:"question,omitempty"`
	Answer   *model.Answer   `json:"answer,omitempty"`
	Comment  *model.Comment  `json:"comment,omitempty"`
}

// Options controls filtering and eager loading for a ranking call.
type Options struct {
	IncludeUser     bool
	IncludeQuestion bool
	IncludeAnswers  bool
	IncludeComments bool
	IncludeSmiles   bool

	ExcludeAnonymous bool
	NonZero          counter.Field
}

// Option configures Options.
type Option func(*Options)

// Apply folds opts into a fresh Options.
func Apply(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithUser attaches each entity's author.
func WithUser() Option { return func(o *Options) { o.IncludeUser = true } }

// WithQuestion attaches an answer's question and the question's author.
func WithQuestion() Option { return func(o *Options) { o.IncludeQuestion = true } }

// WithAnswers attaches a question's answers with their authors.
func WithAnswers() Option { return func(o *Options) { o.IncludeAnswers = true } }

// WithComments attaches an answer's comments with their authors.
func WithComments() Option { return func(o *Options) { o.IncludeComments = true } }

// WithSmiles attaches smiles with the users who smiled.
func WithSmiles() Option { return func(o *Options) { o.IncludeSmiles = true } }

// ExcludeAnonymous drops anonymous questions from question rankings and from
// author grouping.
func ExcludeAnonymous() Option { return func(o *Options) { o.ExcludeAnonymous = true } }

// NonZero keeps only entities whose field counter is positive.
func NonZero(field counter.Field) Option { return func(o *Options) { o.NonZero = field } }
