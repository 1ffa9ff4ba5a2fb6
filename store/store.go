package store

import (
	"context"

	"github.com/xraph/tally/counter"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/model"
	"github.com/xraph/tally/rank"
)

// Store is the unified storage interface for all tally entities.
//
// Create methods persist the entity with the identifier already set on it and
// return tally.ErrAlreadyExists on a duplicate identifier or unique edge.
// Counter writes must be atomic in the backend; none of them read-modify-write
// in process.
type Store interface {
	// User methods
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, userID id.ID) (*model.User, error)
	UsersByIDs(ctx context.Context, ids []id.ID) ([]*model.User, error)

	// Question methods
	CreateQuestion(ctx context.Context, q *model.Question) error
	GetQuestion(ctx context.Context, questionID id.ID) (*model.Question, error)
	QuestionsByIDs(ctx context.Context, ids []id.ID) ([]*model.Question, error)
	QuestionsByUser(ctx context.Context, userID id.ID) ([]*model.Question, error)

	// Answer methods
	CreateAnswer(ctx context.Context, a *model.Answer) error
	GetAnswer(ctx context.Context, answerID id.ID) (*model.Answer, error)
	AnswersByQuestions(ctx context.Context, questionIDs []id.ID) ([]*model.Answer, error)
	AnswersByUser(ctx context.Context, userID id.ID) ([]*model.Answer, error)

	// Comment methods
	CreateComment(ctx context.Context, c *model.Comment) error
	GetComment(ctx context.Context, commentID id.ID) (*model.Comment, error)
	CommentsByAnswers(ctx context.Context, answerIDs []id.ID) ([]*model.Comment, error)
	CommentsByUser(ctx context.Context, userID id.ID) ([]*model.Comment, error)

	// Smile methods
	CreateSmile(ctx context.Context, s *model.Smile) error
	FindSmile(ctx context.Context, userID, answerID id.ID) (*model.Smile, error)
	SmilesByAnswers(ctx context.Context, answerIDs []id.ID) ([]*model.Smile, error)
	SmilesByUser(ctx context.Context, userID id.ID) ([]*model.Smile, error)

	// Comment smile methods
	CreateCommentSmile(ctx context.Context, s *model.CommentSmile) error
	FindCommentSmile(ctx context.Context, userID, commentID id.ID) (*model.CommentSmile, error)
	CommentSmilesByComments(ctx context.Context, commentIDs []id.ID) ([]*model.CommentSmile, error)
	CommentSmilesByUser(ctx context.Context, userID id.ID) ([]*model.CommentSmile, error)

	// Relationship methods
	CreateRelationship(ctx context.Context, r *model.Relationship) error
	FindRelationship(ctx context.Context, sourceID, targetID id.ID) (*model.Relationship, error)
	// RelationshipsByUser returns edges where userID is source or target.
	RelationshipsByUser(ctx context.Context, userID id.ID) ([]*model.Relationship, error)

	// Delete removes one entity row. It returns tally.ErrNotFound if the row
	// is already gone. It does not cascade.
	Delete(ctx context.Context, kind id.Kind, entityID id.ID) error

	// Counter methods
	Increment(ctx context.Context, t counter.Target, delta int64) error
	SetCounter(ctx context.Context, t counter.Target, value int64) error
	CounterValue(ctx context.Context, t counter.Target) (int64, error)
	CountChildren(ctx context.Context, src counter.Source, parentID id.ID) (int64, error)
	// ListIDs pages identifiers of kind in ascending order, strictly after
	// the given identifier.
	ListIDs(ctx context.Context, kind id.Kind, after id.ID, limit int) ([]id.ID, error)

	// Ranking methods
	TopQuestions(ctx context.Context, q rank.Query) ([]*model.Question, error)
	TopAnswers(ctx context.Context, q rank.Query) ([]*model.Answer, error)
	TopComments(ctx context.Context, q rank.Query) ([]*model.Comment, error)
	TopUsers(ctx context.Context, q rank.Query) ([]*model.User, error)
	CountByAuthor(ctx context.Context, q rank.GroupQuery) ([]rank.Group, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
