package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/tally"
	"github.com/xraph/tally/counter"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/model"
	"github.com/xraph/tally/rank"
	tallystore "github.com/xraph/tally/store"
)

// Collection name constants.
const (
	colUsers         = "tally_users"
	colQuestions     = "tally_questions"
	colAnswers       = "tally_answers"
	colComments      = "tally_comments"
	colSmiles        = "tally_smiles"
	colCommentSmiles = "tally_comment_smiles"
	colRelationships = "tally_relationships"
)

var collections = map[id.Kind]string{
	id.KindUser:         colUsers,
	id.KindQuestion:     colQuestions,
	id.KindAnswer:       colAnswers,
	id.KindComment:      colComments,
	id.KindSmile:        colSmiles,
	id.KindCommentSmile: colCommentSmiles,
	id.KindRelationship: colRelationships,
}

// compile-time interface check
var _ tallystore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all tally collections. The unique edge indexes
// are what make duplicate smiles and follows fail on insert.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("tally/mongo: %w: %s indexes: %w", tally.ErrMigrationFailed, col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== User Store ====================

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	return s.insert(ctx, toUserModel(u))
}

func (s *Store) GetUser(ctx context.Context, userID id.ID) (*model.User, error) {
	var m userModel
	if err := s.findOne(ctx, &m, bson.M{"_id": userID.Int64()}, tally.ErrUserNotFound); err != nil {
		return nil, err
	}
	return fromUserModel(&m), nil
}

func (s *Store) UsersByIDs(ctx context.Context, ids []id.ID) ([]*model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var models []userModel
	if err := s.findIn(ctx, &models, "_id", ids); err != nil {
		return nil, err
	}
	return users(models), nil
}

func users(models []userModel) []*model.User {
	result := make([]*model.User, len(models))
	for i := range models {
		result[i] = fromUserModel(&models[i])
	}
	return result
}

// ==================== Question Store ====================

func (s *Store) CreateQuestion(ctx context.Context, q *model.Question) error {
	return s.insert(ctx, toQuestionModel(q))
}

func (s *Store) GetQuestion(ctx context.Context, questionID id.ID) (*model.Question, error) {
	var m questionModel
	if err := s.findOne(ctx, &m, bson.M{"_id": questionID.Int64()}, tally.ErrQuestionNotFound); err != nil {
		return nil, err
	}
	return fromQuestionModel(&m), nil
}

func (s *Store) QuestionsByIDs(ctx context.Context, ids []id.ID) ([]*model.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var models []questionModel
	if err := s.findIn(ctx, &models, "_id", ids); err != nil {
		return nil, err
	}
	return questions(models), nil
}

func (s *Store) QuestionsByUser(ctx context.Context, userID id.ID) ([]*model.Question, error) {
	var models []questionModel
	if err := s.findIn(ctx, &models, "user_id", []id.ID{userID}); err != nil {
		return nil, err
	}
	return questions(models), nil
}

func questions(models []questionModel) []*model.Question {
	result := make([]*model.Question, len(models))
	for i := range models {
		result[i] = fromQuestionModel(&models[i])
	}
	return result
}

// ==================== Answer Store ====================

func (s *Store) CreateAnswer(ctx context.Context, a *model.Answer) error {
	return s.insert(ctx, toAnswerModel(a))
}

func (s *Store) GetAnswer(ctx context.Context, answerID id.ID) (*model.Answer, error) {
	var m answerModel
	if err := s.findOne(ctx, &m, bson.M{"_id": answerID.Int64()}, tally.ErrAnswerNotFound); err != nil {
		return nil, err
	}
	return fromAnswerModel(&m), nil
}

func (s *Store) AnswersByQuestions(ctx context.Context, questionIDs []id.ID) ([]*model.Answer, error) {
	if len(questionIDs) == 0 {
		return nil, nil
	}
	var models []answerModel
	if err := s.findIn(ctx, &models, "question_id", questionIDs); err != nil {
		return nil, err
	}
	return answers(models), nil
}

func (s *Store) AnswersByUser(ctx context.Context, userID id.ID) ([]*model.Answer, error) {
	var models []answerModel
	if err := s.findIn(ctx, &models, "user_id", []id.ID{userID}); err != nil {
		return nil, err
	}
	return answers(models), nil
}

func answers(models []answerModel) []*model.Answer {
	result := make([]*model.Answer, len(models))
	for i := range models {
		result[i] = fromAnswerModel(&models[i])
	}
	return result
}

// ==================== Comment Store ====================

func (s *Store) CreateComment(ctx context.Context, c *model.Comment) error {
	return s.insert(ctx, toCommentModel(c))
}

func (s *Store) GetComment(ctx context.Context, commentID id.ID) (*model.Comment, error) {
	var m commentModel
	if err := s.findOne(ctx, &m, bson.M{"_id": commentID.Int64()}, tally.ErrCommentNotFound); err != nil {
		return nil, err
	}
	return fromCommentModel(&m), nil
}

func (s *Store) CommentsByAnswers(ctx context.Context, answerIDs []id.ID) ([]*model.Comment, error) {
	if len(answerIDs) == 0 {
		return nil, nil
	}
	var models []commentModel
	if err := s.findIn(ctx, &models, "answer_id", answerIDs); err != nil {
		return nil, err
	}
	return comments(models), nil
}

func (s *Store) CommentsByUser(ctx context.Context, userID id.ID) ([]*model.Comment, error) {
	var models []commentModel
	if err := s.findIn(ctx, &models, "user_id", []id.ID{userID}); err != nil {
		return nil, err
	}
	return comments(models), nil
}

func comments(models []commentModel) []*model.Comment {
	result := make([]*model.Comment, len(models))
	for i := range models {
		result[i] = fromCommentModel(&models[i])
	}
	return result
}

// ==================== Smile Store ====================

func (s *Store) CreateSmile(ctx context.Context, sm *model.Smile) error {
	return s.insert(ctx, toSmileModel(sm))
}

func (s *Store) FindSmile(ctx context.Context, userID, answerID id.ID) (*model.Smile, error) {
	var m smileModel
	filter := bson.M{"user_id": userID.Int64(), "answer_id": answerID.Int64()}
	if err := s.findOne(ctx, &m, filter, tally.ErrSmileNotFound); err != nil {
		return nil, err
	}
	return fromSmileModel(&m), nil
}

func (s *Store) SmilesByAnswers(ctx context.Context, answerIDs []id.ID) ([]*model.Smile, error) {
	if len(answerIDs) == 0 {
		return nil, nil
	}
	var models []smileModel
	if err := s.findIn(ctx, &models, "answer_id", answerIDs); err != nil {
		return nil, err
	}
	return smiles(models), nil
}

func (s *Store) SmilesByUser(ctx context.Context, userID id.ID) ([]*model.Smile, error) {
	var models []smileModel
	if err := s.findIn(ctx, &models, "user_id", []id.ID{userID}); err != nil {
		return nil, err
	}
	return smiles(models), nil
}

func smiles(models []smileModel) []*model.Smile {
	result := make([]*model.Smile, len(models))
	for i := range models {
		result[i] = fromSmileModel(&models[i])
	}
	return result
}

// ==================== Comment Smile Store ====================

func (s *Store) CreateCommentSmile(ctx context.Context, cs *model.CommentSmile) error {
	return s.insert(ctx, toCommentSmileModel(cs))
}

func (s *Store) FindCommentSmile(ctx context.Context, userID, commentID id.ID) (*model.CommentSmile, error) {
	var m commentSmileModel
	filter := bson.M{"user_id": userID.Int64(), "comment_id": commentID.Int64()}
	if err := s.findOne(ctx, &m, filter, tally.ErrCommentSmileNotFound); err != nil {
		return nil, err
	}
	return fromCommentSmileModel(&m), nil
}

func (s *Store) CommentSmilesByComments(ctx context.Context, commentIDs []id.ID) ([]*model.CommentSmile, error) {
	if len(commentIDs) == 0 {
		return nil, nil
	}
	var models []commentSmileModel
	if err := s.findIn(ctx, &models, "comment_id", commentIDs); err != nil {
		return nil, err
	}
	return commentSmiles(models), nil
}

func (s *Store) CommentSmilesByUser(ctx context.Context, userID id.ID) ([]*model.CommentSmile, error) {
	var models []commentSmileModel
	if err := s.findIn(ctx, &models, "user_id", []id.ID{userID}); err != nil {
		return nil, err
	}
	return commentSmiles(models), nil
}

func commentSmiles(models []commentSmileModel) []*model.CommentSmile {
	result := make([]*model.CommentSmile, len(models))
	for i := range models {
		result[i] = fromCommentSmileModel(&models[i])
	}
	return result
}

// ==================== Relationship Store ====================

func (s *Store) CreateRelationship(ctx context.Context, r *model.Relationship) error {
	return s.insert(ctx, toRelationshipModel(r))
}

func (s *Store) FindRelationship(ctx context.Context, sourceID, targetID id.ID) (*model.Relationship, error) {
	var m relationshipModel
	filter := bson.M{"source_id": sourceID.Int64(), "target_id": targetID.Int64()}
	if err := s.findOne(ctx, &m, filter, tally.ErrRelationshipNotFound); err != nil {
		return nil, err
	}
	return fromRelationshipModel(&m), nil
}

func (s *Store) RelationshipsByUser(ctx context.Context, userID id.ID) ([]*model.Relationship, error) {
	var models []relationshipModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"$or": bson.A{
			bson.M{"source_id": userID.Int64()},
			bson.M{"target_id": userID.Int64()},
		}}).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("tally/mongo: relationships by user: %w", err)
	}
	result := make([]*model.Relationship, len(models))
	for i := range models {
		result[i] = fromRelationshipModel(&models[i])
	}
	return result, nil
}

// ==================== Delete ====================

func (s *Store) Delete(ctx context.Context, kind id.Kind, entityID id.ID) error {
	m, err := nilModel(kind)
	if err != nil {
		return err
	}
	res, err := s.mdb.NewDelete(m).
		Filter(bson.M{"_id": entityID.Int64()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tally/mongo: delete %s: %w", kind, err)
	}
	if res.DeletedCount() == 0 {
		return tally.NotFoundFor(kind)
	}
	return nil
}

// ==================== Counter Store ====================

// Increment applies delta with $inc on the server; no matched document means
// the target is gone.
func (s *Store) Increment(ctx context.Context, t counter.Target, delta int64) error {
	col, err := counterCollection(t)
	if err != nil {
		return err
	}
	res, err := s.mdb.Collection(col).UpdateOne(ctx,
		bson.M{"_id": t.ID.Int64()},
		bson.M{"$inc": bson.M{string(t.Field): delta}},
	)
	if err != nil {
		return fmt.Errorf("tally/mongo: increment %s: %w", t, err)
	}
	if res.MatchedCount == 0 {
		return tally.ErrTargetGone
	}
	return nil
}

func (s *Store) SetCounter(ctx context.Context, t counter.Target, value int64) error {
	col, err := counterCollection(t)
	if err != nil {
		return err
	}
	res, err := s.mdb.Collection(col).UpdateOne(ctx,
		bson.M{"_id": t.ID.Int64()},
		bson.M{"$set": bson.M{string(t.Field): value}},
	)
	if err != nil {
		return fmt.Errorf("tally/mongo: set %s: %w", t, err)
	}
	if res.MatchedCount == 0 {
		return tally.ErrTargetGone
	}
	return nil
}

func (s *Store) CounterValue(ctx context.Context, t counter.Target) (int64, error) {
	col, err := counterCollection(t)
	if err != nil {
		return 0, err
	}
	field := string(t.Field)
	raw, err := s.mdb.Collection(col).FindOne(ctx,
		bson.M{"_id": t.ID.Int64()},
		options.FindOne().SetProjection(bson.M{field: 1}),
	).Raw()
	if err != nil {
		if isNoDocuments(err) {
			return 0, tally.NotFoundFor(t.Kind)
		}
		return 0, fmt.Errorf("tally/mongo: read %s: %w", t, err)
	}
	rv, err := raw.LookupErr(field)
	if err != nil {
		// A document written before the field existed counts as zero.
		return 0, nil
	}
	v, ok := rv.AsInt64OK()
	if !ok {
		return 0, fmt.Errorf("tally/mongo: read %s: unexpected %s", t, rv.Type)
	}
	return v, nil
}

func (s *Store) CountChildren(ctx context.Context, src counter.Source, parentID id.ID) (int64, error) {
	col, ok := collections[src.Child]
	if !ok {
		return 0, fmt.Errorf("tally/mongo: count children of %s: %w", src.Child, id.ErrUnknownKind)
	}
	filter := bson.M{src.ForeignKey: parentID.Int64()}
	if src.ExcludeAnonymous {
		filter["anonymous"] = false
	}
	n, err := s.mdb.Collection(col).CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("tally/mongo: count %s: %w", col, err)
	}
	return n, nil
}

func (s *Store) ListIDs(ctx context.Context, kind id.Kind, after id.ID, limit int) ([]id.ID, error) {
	switch kind {
	case id.KindUser, id.KindQuestion, id.KindAnswer, id.KindComment:
	default:
		return nil, fmt.Errorf("tally/mongo: list %s: %w", kind, tally.ErrInvalidCounter)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetProjection(bson.M{"_id": 1})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	cursor, err := s.mdb.Collection(collections[kind]).Find(ctx, bson.M{"_id": bson.M{"$gt": after.Int64()}}, opts)
	if err != nil {
		return nil, fmt.Errorf("tally/mongo: list %s: %w", kind, err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID int64 `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("tally/mongo: list %s decode: %w", kind, err)
	}
	out := make([]id.ID, len(docs))
	for i, d := range docs {
		out[i] = id.ID(d.ID)
	}
	return out, nil
}

// ==================== Ranking Store ====================

func (s *Store) TopQuestions(ctx context.Context, q rank.Query) ([]*model.Question, error) {
	var models []questionModel
	if err := s.ranked(ctx, &models, q, true); err != nil {
		return nil, err
	}
	return questions(models), nil
}

func (s *Store) TopAnswers(ctx context.Context, q rank.Query) ([]*model.Answer, error) {
	var models []answerModel
	if err := s.ranked(ctx, &models, q, false); err != nil {
		return nil, err
	}
	return answers(models), nil
}

func (s *Store) TopComments(ctx context.Context, q rank.Query) ([]*model.Comment, error) {
	var models []commentModel
	if err := s.ranked(ctx, &models, q, false); err != nil {
		return nil, err
	}
	return comments(models), nil
}

func (s *Store) TopUsers(ctx context.Context, q rank.Query) ([]*model.User, error) {
	var models []userModel
	if err := s.ranked(ctx, &models, q, false); err != nil {
		return nil, err
	}
	return users(models), nil
}

func (s *Store) ranked(ctx context.Context, dest any, q rank.Query, hasAnonymous bool) error {
	filter := bson.M{"_id": bson.M{"$gte": q.Since.Int64()}}
	if q.NonZero != "" {
		filter[string(q.NonZero)] = bson.M{"$gt": 0}
	}
	if q.ExcludeAnonymous && hasAnonymous {
		filter["anonymous"] = false
	}

	sort := bson.D{{Key: "_id", Value: -1}}
	if q.Field != "" {
		sort = bson.D{{Key: string(q.Field), Value: -1}, {Key: "_id", Value: -1}}
	}
	find := s.mdb.NewFind(dest).Filter(filter).Sort(sort)
	if q.Limit > 0 {
		find = find.Limit(int64(q.Limit))
	}
	if err := find.Scan(ctx); err != nil {
		return fmt.Errorf("tally/mongo: rank: %w", err)
	}
	return nil
}

func (s *Store) CountByAuthor(ctx context.Context, q rank.GroupQuery) ([]rank.Group, error) {
	switch q.Kind {
	case id.KindQuestion, id.KindAnswer, id.KindComment:
	default:
		return nil, fmt.Errorf("tally/mongo: group %s: %w", q.Kind, tally.ErrInvalidInput)
	}

	match := bson.M{"_id": bson.M{"$gte": q.Since.Int64()}}
	if q.ExcludeAnonymous && q.Kind == id.KindQuestion {
		match["anonymous"] = false
	}
	pipeline := bson.A{
		bson.M{"$match": match},
		bson.M{"$group": bson.M{"_id": "$user_id", "count": bson.M{"$sum": 1}}},
		bson.M{"$sort": bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}},
	}
	if q.Limit > 0 {
		pipeline = append(pipeline, bson.M{"$limit": q.Limit})
	}

	cursor, err := s.mdb.Collection(collections[q.Kind]).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("tally/mongo: group %s: %w", q.Kind, err)
	}
	defer cursor.Close(ctx)

	var rows []authorCount
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("tally/mongo: group %s decode: %w", q.Kind, err)
	}
	groups := make([]rank.Group, len(rows))
	for i, r := range rows {
		groups[i] = rank.Group{UserID: id.ID(r.UserID), Count: r.Count}
	}
	return groups, nil
}

// ==================== Helpers ====================

func (s *Store) insert(ctx context.Context, m any) error {
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return tally.ErrAlreadyExists
		}
		return fmt.Errorf("tally/mongo: insert: %w", err)
	}
	return nil
}

func (s *Store) findOne(ctx context.Context, m any, filter bson.M, notFound error) error {
	if err := s.mdb.NewFind(m).Filter(filter).Scan(ctx); err != nil {
		if isNoDocuments(err) {
			return notFound
		}
		return fmt.Errorf("tally/mongo: find: %w", err)
	}
	return nil
}

// findIn loads documents whose field is one of ids, oldest first.
func (s *Store) findIn(ctx context.Context, dest any, field string, ids []id.ID) error {
	in := make(bson.A, len(ids))
	for i, v := range ids {
		in[i] = v.Int64()
	}
	err := s.mdb.NewFind(dest).
		Filter(bson.M{field: bson.M{"$in": in}}).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return fmt.Errorf("tally/mongo: find by %s: %w", field, err)
	}
	return nil
}

func nilModel(kind id.Kind) (any, error) {
	switch kind {
	case id.KindUser:
		return (*userModel)(nil), nil
	case id.KindQuestion:
		return (*questionModel)(nil), nil
	case id.KindAnswer:
		return (*answerModel)(nil), nil
	case id.KindComment:
		return (*commentModel)(nil), nil
	case id.KindSmile:
		return (*smileModel)(nil), nil
	case id.KindCommentSmile:
		return (*commentSmileModel)(nil), nil
	case id.KindRelationship:
		return (*relationshipModel)(nil), nil
	}
	return nil, fmt.Errorf("tally/mongo: %w: %s", id.ErrUnknownKind, kind)
}

func counterCollection(t counter.Target) (string, error) {
	if !counter.Valid(t.Kind, t.Field) {
		return "", fmt.Errorf("tally/mongo: %s: %w", t, tally.ErrInvalidCounter)
	}
	return collections[t.Kind], nil
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all tally collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colUsers: {
			{Keys: bson.D{{Key: "asked_count", Value: -1}}},
		},
		colQuestions: {
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
			{Keys: bson.D{{Key: "answer_count", Value: -1}, {Key: "_id", Value: -1}}},
		},
		colAnswers: {
			{Keys: bson.D{{Key: "question_id", Value: 1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
			{Keys: bson.D{{Key: "smile_count", Value: -1}, {Key: "_id", Value: -1}}},
			{Keys: bson.D{{Key: "comment_count", Value: -1}, {Key: "_id", Value: -1}}},
		},
		colComments: {
			{Keys: bson.D{{Key: "answer_id", Value: 1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
			{Keys: bson.D{{Key: "smile_count", Value: -1}, {Key: "_id", Value: -1}}},
		},
		colSmiles: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "answer_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "answer_id", Value: 1}}},
		},
		colCommentSmiles: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "comment_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "comment_id", Value: 1}}},
		},
		colRelationships: {
			{
				Keys:    bson.D{{Key: "source_id", Value: 1}, {Key: "target_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "target_id", Value: 1}}},
		},
	}
}
