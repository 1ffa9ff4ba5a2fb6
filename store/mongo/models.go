package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/tally/id"
	"github.com/xraph/tally/model"
	"github.com/xraph/tally/types"
)

// Identifiers are stored as signed 64-bit integers. The millisecond part
// occupies 48 bits, so every allocated ID is positive.

func entityOf(created, updated time.Time) types.Entity {
	return types.Entity{CreatedAt: created, UpdatedAt: updated}
}

// ==================== User models ====================

type userModel struct {
	grove.BaseModel `grove:"table:tally_users"`

	ID                 int64     `grove:"id,pk" bson:"_id"`
	ScreenName         string    `grove:"screen_name" bson:"screen_name"`
	DisplayName        string    `grove:"display_name" bson:"display_name"`
	AskedCount         int64     `grove:"asked_count" bson:"asked_count"`
	AnsweredCount      int64     `grove:"answered_count" bson:"answered_count"`
	CommentedCount     int64     `grove:"commented_count" bson:"commented_count"`
	SmiledCount        int64     `grove:"smiled_count" bson:"smiled_count"`
	CommentSmiledCount int64     `grove:"comment_smiled_count" bson:"comment_smiled_count"`
	FriendCount        int64     `grove:"friend_count" bson:"friend_count"`
	FollowerCount      int64     `grove:"follower_count" bson:"follower_count"`
	CreatedAt          time.Time `grove:"created_at" bson:"created_at"`
	UpdatedAt          time.Time `grove:"updated_at" bson:"updated_at"`
}

func toUserModel(u *model.User) *userModel {
	return &userModel{
		ID:                 u.ID.Int64(),
		ScreenName:         u.ScreenName,
		DisplayName:        u.DisplayName,
		AskedCount:         u.AskedCount,
		AnsweredCount:      u.AnsweredCount,
		CommentedCount:     u.CommentedCount,
		SmiledCount:        u.SmiledCount,
		CommentSmiledCount: u.CommentSmiledCount,
		FriendCount:        u.FriendCount,
		FollowerCount:      u.FollowerCount,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

func fromUserModel(m *userModel) *model.User {
	return &model.User{
		Entity:             entityOf(m.CreatedAt, m.UpdatedAt),
		ID:                 id.ID(m.ID),
		ScreenName:         m.ScreenName,
		DisplayName:        m.DisplayName,
		AskedCount:         m.AskedCount,
		AnsweredCount:      m.AnsweredCount,
		CommentedCount:     m.CommentedCount,
		SmiledCount:        m.SmiledCount,
		CommentSmiledCount: m.CommentSmiledCount,
		FriendCount:        m.FriendCount,
		FollowerCount:      m.FollowerCount,
	}
}

// ==================== Question models ====================

type questionModel struct {
	grove.BaseModel `grove:"table:tally_questions"`

	ID          int64     `grove:"id,pk" bson:"_id"`
	UserID      int64     `grove:"user_id" bson:"user_id"`
	Content     string    `grove:"content" bson:"content"`
	Anonymous   bool      `grove:"anonymous" bson:"anonymous"`
	AuthorName  string    `grove:"author_name" bson:"author_name"`
	Direct      bool      `grove:"direct" bson:"direct"`
	AnswerCount int64     `grove:"answer_count" bson:"answer_count"`
	CreatedAt   time.Time `grove:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `grove:"updated_at" bson:"updated_at"`
}

func toQuestionModel(q *model.Question) *questionModel {
	return &questionModel{
		ID:          q.ID.Int64(),
		UserID:      q.UserID.Int64(),
		Content:     q.Content,
		Anonymous:   q.Anonymous,
		AuthorName:  q.AuthorName,
		Direct:      q.Direct,
		AnswerCount: q.AnswerCount,
		CreatedAt:   q.CreatedAt,
		UpdatedAt:   q.UpdatedAt,
	}
}

func fromQuestionModel(m *questionModel) *model.Question {
	return &model.Question{
		Entity:      entityOf(m.CreatedAt, m.UpdatedAt),
		ID:          id.ID(m.ID),
		UserID:      id.ID(m.UserID),
		Content:     m.Content,
		Anonymous:   m.Anonymous,
		AuthorName:  m.AuthorName,
		Direct:      m.Direct,
		AnswerCount: m.AnswerCount,
	}
}

// ==================== Answer models ====================

type answerModel struct {
	grove.BaseModel `grove:"table:tally_answers"`

	ID           int64     `grove:"id,pk" bson:"_id"`
	QuestionID   int64     `grove:"question_id" bson:"question_id"`
	UserID       int64     `grove:"user_id" bson:"user_id"`
	Content      string    `grove:"content" bson:"content"`
	SmileCount   int64     `grove:"smile_count" bson:"smile_count"`
	CommentCount int64     `grove:"comment_count" bson:"comment_count"`
	CreatedAt    time.Time `grove:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `grove:"updated_at" bson:"updated_at"`
}

func toAnswerModel(a *model.Answer) *answerModel {
	return &answerModel{
		ID:           a.ID.Int64(),
		QuestionID:   a.QuestionID.Int64(),
		UserID:       a.UserID.Int64(),
		Content:      a.Content,
		SmileCount:   a.SmileCount,
		CommentCount: a.CommentCount,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func fromAnswerModel(m *answerModel) *model.Answer {
	return &model.Answer{
		Entity:       entityOf(m.CreatedAt, m.UpdatedAt),
		ID:           id.ID(m.ID),
		QuestionID:   id.ID(m.QuestionID),
		UserID:       id.ID(m.UserID),
		Content:      m.Content,
		SmileCount:   m.SmileCount,
		CommentCount: m.CommentCount,
	}
}

// ==================== Comment models ====================

type commentModel struct {
	grove.BaseModel `grove:"table:tally_comments"`

	ID         int64     `grove:"id,pk" bson:"_id"`
	AnswerID   int64     `grove:"answer_id" bson:"answer_id"`
	UserID     int64     `grove:"user_id" bson:"user_id"`
	Content    string    `grove:"content" bson:"content"`
	SmileCount int64     `grove:"smile_count" bson:"smile_count"`
	CreatedAt  time.Time `grove:"created_at" bson:"created_at"`
	UpdatedAt  time.Time `grove:"updated_at" bson:"updated_at"`
}

func toCommentModel(c *model.Comment) *commentModel {
	return &commentModel{
		ID:         c.ID.Int64(),
		AnswerID:   c.AnswerID.Int64(),
		UserID:     c.UserID.Int64(),
		Content:    c.Content,
		SmileCount: c.SmileCount,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func fromCommentModel(m *commentModel) *model.Comment {
	return &model.Comment{
		Entity:     entityOf(m.CreatedAt, m.UpdatedAt),
		ID:         id.ID(m.ID),
		AnswerID:   id.ID(m.AnswerID),
		UserID:     id.ID(m.UserID),
		Content:    m.Content,
		SmileCount: m.SmileCount,
	}
}

// ==================== Edge models ====================

type smileModel struct {
	grove.BaseModel `grove:"table:tally_smiles"`

	ID        int64     `grove:"id,pk" bson:"_id"`
	UserID    int64     `grove:"user_id" bson:"user_id"`
	AnswerID  int64     `grove:"answer_id" bson:"answer_id"`
	CreatedAt time.Time `grove:"created_at" bson:"created_at"`
	UpdatedAt time.Time `grove:"updated_at" bson:"updated_at"`
}

func toSmileModel(s *model.Smile) *smileModel {
	return &smileModel{
		ID:        s.ID.Int64(),
		UserID:    s.UserID.Int64(),
		AnswerID:  s.AnswerID.Int64(),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func fromSmileModel(m *smileModel) *model.Smile {
	return &model.Smile{
		Entity:   entityOf(m.CreatedAt, m.UpdatedAt),
		ID:       id.ID(m.ID),
		UserID:   id.ID(m.UserID),
		AnswerID: id.ID(m.AnswerID),
	}
}

type commentSmileModel struct {
	grove.BaseModel `grove:"table:tally_comment_smiles"`

	ID        int64     `grove:"id,pk" bson:"_id"`
	UserID    int64     `grove:"user_id" bson:"user_id"`
	CommentID int64     `grove:"comment_id" bson:"comment_id"`
	CreatedAt time.Time `grove:"created_at" bson:"created_at"`
	UpdatedAt time.Time `grove:"updated_at" bson:"updated_at"`
}

func toCommentSmileModel(s *model.CommentSmile) *commentSmileModel {
	return &commentSmileModel{
		ID:        s.ID.Int64(),
		UserID:    s.UserID.Int64(),
		CommentID: s.CommentID.Int64(),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func fromCommentSmileModel(m *commentSmileModel) *model.CommentSmile {
	return &model.CommentSmile{
		Entity:    entityOf(m.CreatedAt, m.UpdatedAt),
		ID:        id.ID(m.ID),
		UserID:    id.ID(m.UserID),
		CommentID: id.ID(m.CommentID),
	}
}

type relationshipModel struct {
	grove.BaseModel `grove:"table:tally_relationships"`

	ID        int64     `grove:"id,pk" bson:"_id"`
	SourceID  int64     `grove:"source_id" bson:"source_id"`
	TargetID  int64     `grove:"target_id" bson:"target_id"`
	CreatedAt time.Time `grove:"created_at" bson:"created_at"`
	UpdatedAt time.Time `grove:"updated_at" bson:"updated_at"`
}

func toRelationshipModel(r *model.Relationship) *relationshipModel {
	return &relationshipModel{
		ID:        r.ID.Int64(),
		SourceID:  r.SourceID.Int64(),
		TargetID:  r.TargetID.Int64(),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func fromRelationshipModel(m *relationshipModel) *model.Relationship {
	return &model.Relationship{
		Entity:   entityOf(m.CreatedAt, m.UpdatedAt),
		ID:       id.ID(m.ID),
		SourceID: id.ID(m.SourceID),
		TargetID: id.ID(m.TargetID),
	}
}

// authorCount is one document out of the $group by user_id stage.
type authorCount struct {
	UserID int64 `bson:"_id"`
	Count  int64 `bson:"count"`
}
