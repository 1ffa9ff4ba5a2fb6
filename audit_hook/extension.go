// Package audithook bridges tally entity and counter events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not import an
// audit backend directly. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/tally"
	"github.com/xraph/tally/counter"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/model"
	"github.com/xraph/tally/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin          = (*Extension)(nil)
	_ plugin.OnEntityCreated = (*Extension)(nil)
	_ plugin.OnEntityDeleted = (*Extension)(nil)
	_ plugin.OnCounterDrift  = (*Extension)(nil)
	_ plugin.OnTargetGone    = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges tally events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Entity hooks
// ──────────────────────────────────────────────────

// OnEntityCreated implements plugin.OnEntityCreated.
func (e *Extension) OnEntityCreated(ctx context.Context, kind id.Kind, entityID id.ID, entity interface{}) error {
	return e.record(ctx, kind.String()+".created", SeverityInfo, OutcomeSuccess,
		kind.String(), entityID.String(), categoryOf(kind), nil,
		entityMetadata(entity)...,
	)
}

// OnEntityDeleted implements plugin.OnEntityDeleted.
func (e *Extension) OnEntityDeleted(ctx context.Context, kind id.Kind, entityID id.ID) error {
	return e.record(ctx, kind.String()+".deleted", SeverityInfo, OutcomeSuccess,
		kind.String(), entityID.String(), categoryOf(kind), nil,
		"created_at", entityID.Time(),
	)
}

// ──────────────────────────────────────────────────
// Counter hooks
// ──────────────────────────────────────────────────

// OnCounterDrift implements plugin.OnCounterDrift.
func (e *Extension) OnCounterDrift(ctx context.Context, t counter.Target, stored, actual int64) error {
	return e.record(ctx, ActionCounterDrift, SeverityWarning, OutcomeSuccess,
		ResourceCounter, t.ID.String(), CategoryIntegrity, nil,
		"kind", t.Kind.String(),
		"field", string(t.Field),
		"stored", stored,
		"actual", actual,
	)
}

// OnTargetGone implements plugin.OnTargetGone.
func (e *Extension) OnTargetGone(ctx context.Context, d counter.Delta) error {
	return e.record(ctx, ActionCounterTargetGone, SeverityInfo, OutcomeFailure,
		ResourceCounter, d.ID.String(), CategoryIntegrity, tally.ErrTargetGone,
		"kind", d.Kind.String(),
		"field", string(d.Field),
		"delta", d.Amount,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func categoryOf(kind id.Kind) string {
	switch kind {
	case id.KindUser:
		return CategoryAccount
	case id.KindQuestion, id.KindAnswer, id.KindComment:
		return CategoryContent
	}
	return CategorySocial
}

// entityMetadata lists the foreign keys of entity. An anonymous question
// never reveals its author.
func entityMetadata(entity interface{}) []any {
	switch v := entity.(type) {
	case *model.User:
		return []any{"screen_name", v.ScreenName}
	case *model.Question:
		if v.Anonymous {
			return []any{"anonymous", true}
		}
		return []any{"user_id", v.UserID.String(), "direct", v.Direct}
	case *model.Answer:
		return []any{"question_id", v.QuestionID.String(), "user_id", v.UserID.String()}
	case *model.Comment:
		return []any{"answer_id", v.AnswerID.String(), "user_id", v.UserID.String()}
	case *model.Smile:
		return []any{"answer_id", v.AnswerID.String(), "user_id", v.UserID.String()}
	case *model.CommentSmile:
		return []any{"comment_id", v.CommentID.String(), "user_id", v.UserID.String()}
	case *model.Relationship:
		return []any{"source_id", v.SourceID.String(), "target_id", v.TargetID.String()}
	}
	return nil
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
