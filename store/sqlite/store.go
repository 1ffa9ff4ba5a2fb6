package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/xraph/tally"
	"github.com/xraph/tally/counter"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/model"
	"github.com/xraph/tally/rank"
	tallystore "github.com/xraph/tally/store"
)

// compile-time interface check
var _ tallystore.Store = (*Store)(nil)

// tables maps each kind to its table. Counter fields are column names.
var tables = map[id.Kind]string{
	id.KindUser:         "tally_users",
	id.KindQuestion:     "tally_questions",
	id.KindAnswer:       "tally_answers",
	id.KindComment:      "tally_comments",
	id.KindSmile:        "tally_smiles",
	id.KindCommentSmile: "tally_comment_smiles",
	id.KindRelationship: "tally_relationships",
}

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("tally/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("tally/sqlite: %w: %w", tally.ErrMigrationFailed, err)
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
	m := new(userModel)
	if err := s.getByID(ctx, m, userID, tally.ErrUserNotFound); err != nil {
		return nil, err
	}
	return fromUserModel(m), nil
}

func (s *Store) UsersByIDs(ctx context.Context, ids []id.ID) ([]*model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var models []userModel
	if err := s.selectIn(ctx, &models, "id", ids); err != nil {
		return nil, err
	}
	result := make([]*model.User, len(models))
	for i := range models {
		result[i] = fromUserModel(&models[i])
	}
	return result, nil
}

// ==================== Question Store ====================

func (s *Store) CreateQuestion(ctx context.Context, q *model.Question) error {
	return s.insert(ctx, toQuestionModel(q))
}

func (s *Store) GetQuestion(ctx context.Context, questionID id.ID) (*model.Question, error) {
	m := new(questionModel)
	if err := s.getByID(ctx, m, questionID, tally.ErrQuestionNotFound); err != nil {
		return nil, err
	}
	return fromQuestionModel(m), nil
}

func (s *Store) QuestionsByIDs(ctx context.Context, ids []id.ID) ([]*model.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var models []questionModel
	if err := s.selectIn(ctx, &models, "id", ids); err != nil {
		return nil, err
	}
	return questions(models), nil
}

func (s *Store) QuestionsByUser(ctx context.Context, userID id.ID) ([]*model.Question, error) {
	var models []questionModel
	if err := s.selectIn(ctx, &models, "user_id", []id.ID{userID}); err != nil {
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
	m := new(answerModel)
	if err := s.getByID(ctx, m, answerID, tally.ErrAnswerNotFound); err != nil {
		return nil, err
	}
	return fromAnswerModel(m), nil
}

func (s *Store) AnswersByQuestions(ctx context.Context, questionIDs []id.ID) ([]*model.Answer, error) {
	if len(questionIDs) == 0 {
		return nil, nil
	}
	var models []answerModel
	if err := s.selectIn(ctx, &models, "question_id", questionIDs); err != nil {
		return nil, err
	}
	return answers(models), nil
}

func (s *Store) AnswersByUser(ctx context.Context, userID id.ID) ([]*model.Answer, error) {
	var models []answerModel
	if err := s.selectIn(ctx, &models, "user_id", []id.ID{userID}); err != nil {
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
	m := new(commentModel)
	if err := s.getByID(ctx, m, commentID, tally.ErrCommentNotFound); err != nil {
		return nil, err
	}
	return fromCommentModel(m), nil
}

func (s *Store) CommentsByAnswers(ctx context.Context, answerIDs []id.ID) ([]*model.Comment, error) {
	if len(answerIDs) == 0 {
		return nil, nil
	}
	var models []commentModel
	if err := s.selectIn(ctx, &models, "answer_id", answerIDs); err != nil {
		return nil, err
	}
	return comments(models), nil
}

func (s *Store) CommentsByUser(ctx context.Context, userID id.ID) ([]*model.Comment, error) {
	var models []commentModel
	if err := s.selectIn(ctx, &models, "user_id", []id.ID{userID}); err != nil {
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
	m := new(smileModel)
	err := s.sdb.NewSelect(m).
		Where("user_id = ?", userID.Int64()).
		Where("answer_id = ?", answerID.Int64()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tally.ErrSmileNotFound
		}
		return nil, err
	}
	return fromSmileModel(m), nil
}

func (s *Store) SmilesByAnswers(ctx context.Context, answerIDs []id.ID) ([]*model.Smile, error) {
	if len(answerIDs) == 0 {
		return nil, nil
	}
	var models []smileModel
	if err := s.selectIn(ctx, &models, "answer_id", answerIDs); err != nil {
		return nil, err
	}
	return smiles(models), nil
}

func (s *Store) SmilesByUser(ctx context.Context, userID id.ID) ([]*model.Smile, error) {
	var models []smileModel
	if err := s.selectIn(ctx, &models, "user_id", []id.ID{userID}); err != nil {
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
	m := new(commentSmileModel)
	err := s.sdb.NewSelect(m).
		Where("user_id = ?", userID.Int64()).
		Where("comment_id = ?", commentID.Int64()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tally.ErrCommentSmileNotFound
		}
		return nil, err
	}
	return fromCommentSmileModel(m), nil
}

func (s *Store) CommentSmilesByComments(ctx context.Context, commentIDs []id.ID) ([]*model.CommentSmile, error) {
	if len(commentIDs) == 0 {
		return nil, nil
	}
	var models []commentSmileModel
	if err := s.selectIn(ctx, &models, "comment_id", commentIDs); err != nil {
		return nil, err
	}
	return commentSmiles(models), nil
}

func (s *Store) CommentSmilesByUser(ctx context.Context, userID id.ID) ([]*model.CommentSmile, error) {
	var models []commentSmileModel
	if err := s.selectIn(ctx, &models, "user_id", []id.ID{userID}); err != nil {
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
	m := new(relationshipModel)
	err := s.sdb.NewSelect(m).
		Where("source_id = ?", sourceID.Int64()).
		Where("target_id = ?", targetID.Int64()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tally.ErrRelationshipNotFound
		}
		return nil, err
	}
	return fromRelationshipModel(m), nil
}

func (s *Store) RelationshipsByUser(ctx context.Context, userID id.ID) ([]*model.Relationship, error) {
	var models []relationshipModel
	err := s.sdb.NewSelect(&models).
		Where("source_id = ? OR target_id = ?", userID.Int64(), userID.Int64()).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
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
	res, err := s.sdb.NewDelete(m).
		Where("id = ?", entityID.Int64()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tally/sqlite: delete %s: %w", kind, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return tally.NotFoundFor(kind)
	}
	return nil
}

// ==================== Counter Store ====================

// Increment adds delta in a single UPDATE so concurrent writers never lose
// updates. No affected row means the target is gone.
func (s *Store) Increment(ctx context.Context, t counter.Target, delta int64) error {
	m, err := counterModel(t)
	if err != nil {
		return err
	}
	col := string(t.Field)
	res, err := s.sdb.NewUpdate(m).
		Set(col+" = "+col+" + ?", delta).
		Where("id = ?", t.ID.Int64()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tally/sqlite: increment %s: %w", t, err)
	}
	return affected(res, tally.ErrTargetGone)
}

func (s *Store) SetCounter(ctx context.Context, t counter.Target, value int64) error {
	m, err := counterModel(t)
	if err != nil {
		return err
	}
	res, err := s.sdb.NewUpdate(m).
		Set(string(t.Field)+" = ?", value).
		Where("id = ?", t.ID.Int64()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tally/sqlite: set %s: %w", t, err)
	}
	return affected(res, tally.ErrTargetGone)
}

func (s *Store) CounterValue(ctx context.Context, t counter.Target) (int64, error) {
	if _, err := counterModel(t); err != nil {
		return 0, err
	}
	var v int64
	err := s.sdb.NewRaw(
		"SELECT "+string(t.Field)+" FROM "+tables[t.Kind]+" WHERE id = ?",
		t.ID.Int64(),
	).Scan(ctx, &v)
	if err != nil {
		if isNoRows(err) {
			return 0, tally.NotFoundFor(t.Kind)
		}
		return 0, fmt.Errorf("tally/sqlite: read %s: %w", t, err)
	}
	return v, nil
}

func (s *Store) CountChildren(ctx context.Context, src counter.Source, parentID id.ID) (int64, error) {
	table, ok := tables[src.Child]
	if !ok {
		return 0, fmt.Errorf("tally/sqlite: count children of %s: %w", src.Child, id.ErrUnknownKind)
	}
	query := "SELECT COUNT(*) FROM " + table + " WHERE " + src.ForeignKey + " = ?"
	if src.ExcludeAnonymous {
		query += " AND anonymous = 0"
	}
	var n int64
	if err := s.sdb.NewRaw(query, parentID.Int64()).Scan(ctx, &n); err != nil {
		return 0, fmt.Errorf("tally/sqlite: count %s: %w", table, err)
	}
	return n, nil
}

func (s *Store) ListIDs(ctx context.Context, kind id.Kind, after id.ID, limit int) ([]id.ID, error) {
	switch kind {
	case id.KindUser:
		var models []userModel
		return listIDs(ctx, s, &models, after, limit, func(i int) int64 { return models[i].ID }, func() int { return len(models) })
	case id.KindQuestion:
		var models []questionModel
		return listIDs(ctx, s, &models, after, limit, func(i int) int64 { return models[i].ID }, func() int { return len(models) })
	case id.KindAnswer:
		var models []answerModel
		return listIDs(ctx, s, &models, after, limit, func(i int) int64 { return models[i].ID }, func() int { return len(models) })
	case id.KindComment:
		var models []commentModel
		return listIDs(ctx, s, &models, after, limit, func(i int) int64 { return models[i].ID }, func() int { return len(models) })
	}
	return nil, fmt.Errorf("tally/sqlite: list %s: %w", kind, tally.ErrInvalidCounter)
}

func listIDs(ctx context.Context, s *Store, dest any, after id.ID, limit int, at func(int) int64, n func() int) ([]id.ID, error) {
	q := s.sdb.NewSelect(dest).
		Where("id > ?", after.Int64()).
		OrderExpr("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("tally/sqlite: list ids: %w", err)
	}
	out := make([]id.ID, n())
	for i := range out {
		out[i] = id.ID(at(i))
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
	result := make([]*model.User, len(models))
	for i := range models {
		result[i] = fromUserModel(&models[i])
	}
	return result, nil
}

// ranked selects rows with id >= q.Since, ordered by q.Field (then newest
// first), or newest first when q.Field is empty.
func (s *Store) ranked(ctx context.Context, dest any, q rank.Query, hasAnonymous bool) error {
	sel := s.sdb.NewSelect(dest).Where("id >= ?", q.Since.Int64())
	if q.NonZero != "" {
		sel = sel.Where(string(q.NonZero) + " > 0")
	}
	if q.ExcludeAnonymous && hasAnonymous {
		sel = sel.Where("anonymous = 0")
	}
	if q.Field != "" {
		sel = sel.OrderExpr(string(q.Field) + " DESC, id DESC")
	} else {
		sel = sel.OrderExpr("id DESC")
	}
	if q.Limit > 0 {
		sel = sel.Limit(q.Limit)
	}
	if err := sel.Scan(ctx); err != nil {
		return fmt.Errorf("tally/sqlite: rank: %w", err)
	}
	return nil
}

func (s *Store) CountByAuthor(ctx context.Context, q rank.GroupQuery) ([]rank.Group, error) {
	var table string
	switch q.Kind {
	case id.KindQuestion, id.KindAnswer, id.KindComment:
		table = tables[q.Kind]
	default:
		return nil, fmt.Errorf("tally/sqlite: group %s: %w", q.Kind, tally.ErrInvalidInput)
	}

	query := "SELECT user_id, COUNT(*) AS count FROM " + table + " WHERE id >= ?"
	if q.ExcludeAnonymous && q.Kind == id.KindQuestion {
		query += " AND anonymous = 0"
	}
	query += " GROUP BY user_id ORDER BY count DESC, user_id ASC"
	args := []any{q.Since.Int64()}
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	var rows []authorCount
	if err := s.sdb.NewRaw(query, args...).Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("tally/sqlite: group %s: %w", q.Kind, err)
	}
	groups := make([]rank.Group, len(rows))
	for i, r := range rows {
		groups[i] = rank.Group{UserID: id.ID(r.UserID), Count: r.Count}
	}
	return groups, nil
}

// ==================== Helpers ====================

func (s *Store) insert(ctx context.Context, m any) error {
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return tally.ErrAlreadyExists
		}
		return fmt.Errorf("tally/sqlite: insert: %w", err)
	}
	return nil
}

func (s *Store) getByID(ctx context.Context, m any, entityID id.ID, notFound error) error {
	err := s.sdb.NewSelect(m).
		Where("id = ?", entityID.Int64()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return notFound
		}
		return err
	}
	return nil
}

// selectIn loads rows whose col is one of ids, oldest first.
func (s *Store) selectIn(ctx context.Context, dest any, col string, ids []id.ID) error {
	args := make([]any, len(ids))
	for i, v := range ids {
		args[i] = v.Int64()
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	return s.sdb.NewSelect(dest).
		Where(col+" IN ("+placeholders+")", args...).
		OrderExpr("id ASC").
		Scan(ctx)
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
	return nil, fmt.Errorf("tally/sqlite: %w: %s", id.ErrUnknownKind, kind)
}

// counterModel validates t against the field table before its field is
// spliced into SQL.
func counterModel(t counter.Target) (any, error) {
	if !counter.Valid(t.Kind, t.Field) {
		return nil, fmt.Errorf("tally/sqlite: %s: %w", t, tally.ErrInvalidCounter)
	}
	return nilModel(t.Kind)
}

func affected(res sql.Result, none error) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return none
	}
	return nil
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}
