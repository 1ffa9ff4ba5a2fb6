// Package counter declares the denormalized counter fields of every entity kind
// and the child relation each one counts.
//
// The tables here are closed: a (kind, field) pair is valid only if it appears in
// Fields. Stores translate fields to columns through this package, so no caller
// can address a column it does not declare.
package counter

import (
	"fmt"

	"github.com/xraph/tally/id"
)

// Field names a counter column.
type Field string

// Counter fields.
const (
	AnswerCount        Field = "answer_count"
	SmileCount         Field = "smile_count"
	CommentCount       Field = "comment_count"
	AskedCount         Field = "asked_count"
	AnsweredCount      Field = "answered_count"
	CommentedCount     Field = "commented_count"
	SmiledCount        Field = "smiled_count"
	CommentSmiledCount Field = "comment_smiled_count"
	FriendCount        Field = "friend_count"
	FollowerCount      Field = "follower_count"
)

// Source describes how a counter is derived from its child rows: the number of
// Child entities whose ForeignKey column equals the parent ID.
type Source struct {
	Child      id.Kind
	ForeignKey string

	// ExcludeAnonymous skips anonymous questions (only meaningful for
	// Child == id.KindQuestion).
	ExcludeAnonymous bool
}

var table = map[id.Kind][]Field{
	id.KindQuestion: {AnswerCount},
	id.KindAnswer:   {SmileCount, CommentCount},
	id.KindComment:  {SmileCount},
	id.KindUser: {
		AskedCount, AnsweredCount, CommentedCount, SmiledCount,
		CommentSmiledCount, FriendCount, FollowerCount,
	},
}

type key struct {
	kind  id.Kind
	field Field
}

var sources = map[key]Source{
	{id.KindQuestion, AnswerCount}:     {Child: id.KindAnswer, ForeignKey: "question_id"},
	{id.KindAnswer, SmileCount}:        {Child: id.KindSmile, ForeignKey: "answer_id"},
	{id.KindAnswer, CommentCount}:      {Child: id.KindComment, ForeignKey: "answer_id"},
	{id.KindComment, SmileCount}:       {Child: id.KindCommentSmile, ForeignKey: "comment_id"},
	{id.KindUser, AskedCount}:          {Child: id.KindQuestion, ForeignKey: "user_id", ExcludeAnonymous: true},
	{id.KindUser, AnsweredCount}:       {Child: id.KindAnswer, ForeignKey: "user_id"},
	{id.KindUser, CommentedCount}:      {Child: id.KindComment, ForeignKey: "user_id"},
	{id.KindUser, SmiledCount}:         {Child: id.KindSmile, ForeignKey: "user_id"},
	{id.KindUser, CommentSmiledCount}:  {Child: id.KindCommentSmile, ForeignKey: "user_id"},
	{id.KindUser, FriendCount}:         {Child: id.KindRelationship, ForeignKey: "source_id"},
	{id.KindUser, FollowerCount}:       {Child: id.KindRelationship, ForeignKey: "target_id"},
}

// Fields returns the counter fields declared by kind. Kinds without counters
// return nil.
func Fields(kind id.Kind) []Field {
	fs := table[kind]
	if len(fs) == 0 {
		return nil
	}
	out := make([]Field, len(fs))
	copy(out, fs)
	return out
}

// Counted returns the kinds that declare at least one counter field.
func Counted() []id.Kind {
	var out []id.Kind
	for _, k := range id.Kinds() {
		if len(table[k]) > 0 {
			out = append(out, k)
		}
	}
	return out
}

// Valid reports whether field is a counter of kind.
func Valid(kind id.Kind, field Field) bool {
	_, ok := sources[key{kind, field}]
	return ok
}

// SourceOf returns the child relation that a counter counts.
func SourceOf(kind id.Kind, field Field) (Source, bool) {
	s, ok := sources[key{kind, field}]
	return s, ok
}

// Target addresses one counter cell.
type Target struct {
	Kind  id.Kind `json:"kind"`
	ID    id.ID   `json:"id"`
	Field Field   `json:"field"`
}

// Validate checks the target against the field table.
func (t Target) Validate() error {
	if !t.Kind.Valid() {
		return fmt.Errorf("counter: %w", id.ErrUnknownKind)
	}
	if t.ID.IsNil() {
		return fmt.Errorf("counter: nil id for %s.%s", t.Kind, t.Field)
	}
	if !Valid(t.Kind, t.Field) {
		return fmt.Errorf("counter: %s has no counter %q", t.Kind, t.Field)
	}
	return nil
}

func (t Target) String() string {
	return fmt.Sprintf("%s/%s.%s", t.Kind, t.ID, t.Field)
}

// Delta is a +1 or -1 adjustment to one counter.
type Delta struct {
	Target
	Amount int64 `json:"amount"`
}

// Inc returns a +1 delta.
func Inc(kind id.Kind, entityID id.ID, field Field) Delta {
	return Delta{Target: Target{Kind: kind, ID: entityID, Field: field}, Amount: 1}
}

// Dec returns a -1 delta.
func Dec(kind id.Kind, entityID id.ID, field Field) Delta {
	return Delta{Target: Target{Kind: kind, ID: entityID, Field: field}, Amount: -1}
}

// Signed returns Inc when sign > 0 and Dec otherwise.
func Signed(sign int64, kind id.Kind, entityID id.ID, field Field) Delta {
	if sign > 0 {
		return Inc(kind, entityID, field)
	}
	return Dec(kind, entityID, field)
}
