// Package model defines the entities whose identifiers and counters tally
// manages. Relation fields (User, Question, Answers, ...) are populated only
// when a ranking query asks for them.
package model

import (
	"github.com/xraph/tally/counter"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/types"
)

// User is an account. Its counters summarise the user's activity.
type User struct {
	types.Entity

	ID          id.ID  `json:"id"`
	ScreenName  string `json:"screen_name"`
	DisplayName string `json:"display_name,omitempty"`

	AskedCount         int64 `json:"asked_count"`
	AnsweredCount      int64 `json:"answered_count"`
	CommentedCount     int64 `json:"commented_count"`
	SmiledCount        int64 `json:"smiled_count"`
	CommentSmiledCount int64 `json:"comment_smiled_count"`
	FriendCount        int64 `json:"friend_count"`
	FollowerCount      int64 `json:"follower_count"`
}

// Question is asked by a user, possibly anonymously. An anonymous question
// still records UserID but is not attributed to it.
type Question struct {
	types.Entity

	ID         id.ID  `json:"id"`
	UserID     id.ID  `json:"user_id"`
	Content    string `json:"content"`
	Anonymous  bool   `json:"author_is_anonymous"`
	AuthorName string `json:"author_name,omitempty"`
	Direct     bool   `json:"direct"`

	AnswerCount int64 `json:"answer_count"`

	User    *User     `json:"user,omitempty"`
	Answers []*Answer `json:"answers,omitempty"`
}

// Answer responds to a question.
type Answer struct {
	types.Entity

	ID         id.ID  `json:"id"`
	QuestionID id.ID  `json:"question_id"`
	UserID     id.ID  `json:"user_id"`
	Content    string `json:"content"`

	SmileCount   int64 `json:"smile_count"`
	CommentCount int64 `json:"comment_count"`

	User     *User      `json:"user,omitempty"`
	Question *Question  `json:"question,omitempty"`
	Comments []*Comment `json:"comments,omitempty"`
	Smiles   []*Smile   `json:"smiles,omitempty"`
}

// Comment is attached to an answer.
type Comment struct {
	types.Entity

	ID       id.ID  `json:"id"`
	AnswerID id.ID  `json:"answer_id"`
	UserID   id.ID  `json:"user_id"`
	Content  string `json:"content"`

	SmileCount int64 `json:"smile_count"`

	User   *User           `json:"user,omitempty"`
	Smiles []*CommentSmile `json:"smiles,omitempty"`
}

// Smile is a like on an answer. At most one per (user, answer).
type Smile struct {
	types.Entity

	ID       id.ID `json:"id"`
	UserID   id.ID `json:"user_id"`
	AnswerID id.ID `json:"answer_id"`

	User *User `json:"user,omitempty"`
}

// CommentSmile is a like on a comment. At most one per (user, comment).
type CommentSmile struct {
	types.Entity

	ID        id.ID `json:"id"`
	UserID    id.ID `json:"user_id"`
	CommentID id.ID `json:"comment_id"`

	User *User `json:"user,omitempty"`
}

// Relationship is a follow edge from Source to Target.
type Relationship struct {
	types.Entity

	ID       id.ID `json:"id"`
	SourceID id.ID `json:"source_id"`
	TargetID id.ID `json:"target_id"`
}

// Counters is implemented by entities that carry counter fields.
type Counters interface {
	Counter(f counter.Field) (int64, bool)
	SetCounter(f counter.Field, v int64) bool
}

var (
	_ Counters = (*User)(nil)
	_ Counters = (*Question)(nil)
	_ Counters = (*Answer)(nil)
	_ Counters = (*Comment)(nil)
)

func (u *User) field(f counter.Field) *int64 {
	switch f {
	case counter.AskedCount:
		return &u.AskedCount
	case counter.AnsweredCount:
		return &u.AnsweredCount
	case counter.CommentedCount:
		return &u.CommentedCount
	case counter.SmiledCount:
		return &u.SmiledCount
	case counter.CommentSmiledCount:
		return &u.CommentSmiledCount
	case counter.FriendCount:
		return &u.FriendCount
	case counter.FollowerCount:
		return &u.FollowerCount
	}
	return nil
}

// Counter returns the value of f, or false if users have no such counter.
func (u *User) Counter(f counter.Field) (int64, bool) { return get(u.field(f)) }

// SetCounter overwrites f. It reports false for unknown fields.
func (u *User) SetCounter(f counter.Field, v int64) bool { return set(u.field(f), v) }

func (q *Question) field(f counter.Field) *int64 {
	if f == counter.AnswerCount {
		return &q.AnswerCount
	}
	return nil
}

func (q *Question) Counter(f counter.Field) (int64, bool) { return get(q.field(f)) }
func (q *Question) SetCounter(f counter.Field, v int64) bool { return set(q.field(f), v) }

func (a *Answer) field(f counter.Field) *int64 {
	switch f {
	case counter.SmileCount:
		return &a.SmileCount
	case counter.CommentCount:
		return &a.CommentCount
	}
	return nil
}

func (a *Answer) Counter(f counter.Field) (int64, bool) { return get(a.field(f)) }
func (a *Answer) SetCounter(f counter.Field, v int64) bool { return set(a.field(f), v) }

func (c *Comment) field(f counter.Field) *int64 {
	if f == counter.SmileCount {
		return &c.SmileCount
	}
	return nil
}

func (c *Comment) Counter(f counter.Field) (int64, bool) { return get(c.field(f)) }
func (c *Comment) SetCounter(f counter.Field, v int64) bool { return set(c.field(f), v) }

func get(p *int64) (int64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

func set(p *int64, v int64) bool {
	if p == nil {
		return false
	}
	*p = v
	return true
}
