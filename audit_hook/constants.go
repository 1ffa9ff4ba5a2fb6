package audithook

// Action constants for audit events.
const (
	// Content actions
	ActionUserCreated     = "user.created"
	ActionUserDeleted     = "user.deleted"
	ActionQuestionCreated = "question.created"
	ActionQuestionDeleted = "question.deleted"
	ActionAnswerCreated   = "answer.created"
	ActionAnswerDeleted   = "answer.deleted"
	ActionCommentCreated  = "comment.created"
	ActionCommentDeleted  = "comment.deleted"

	// Edge actions
	ActionSmileCreated        = "smile.created"
	ActionSmileDeleted        = "smile.deleted"
	ActionCommentSmileCreated = "comment_smile.created"
	ActionCommentSmileDeleted = "comment_smile.deleted"
	ActionRelationshipCreated = "relationship.created"
	ActionRelationshipDeleted = "relationship.deleted"

	// Counter actions
	ActionCounterDrift      = "counter.drift"
	ActionCounterTargetGone = "counter.target_gone"
)

// Resource constants for audit events.
const (
	ResourceUser         = "user"
	ResourceQuestion     = "question"
	ResourceAnswer       = "answer"
	ResourceComment      = "comment"
	ResourceSmile        = "smile"
	ResourceCommentSmile = "comment_smile"
	ResourceRelationship = "relationship"
	ResourceCounter      = "counter"
)

// Category constants for audit events.
const (
	CategoryAccount   = "account"
	CategoryContent   = "content"
	CategorySocial    = "social"
	CategoryIntegrity = "integrity"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
