package tally

import (
	"errors"
	"fmt"

	"github.com/xraph/tally/counter"
	"github.com/xraph/tally/id"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("tally: not found")
	ErrAlreadyExists = errors.New("tally: already exists")
	ErrInvalidInput  = errors.New("tally: invalid input")

	// Entity errors
	ErrUserNotFound         = errors.New("tally: user not found")
	ErrQuestionNotFound     = errors.New("tally: question not found")
	ErrAnswerNotFound       = errors.New("tally: answer not found")
	ErrCommentNotFound      = errors.New("tally: comment not found")
	ErrSmileNotFound        = errors.New("tally: smile not found")
	ErrCommentSmileNotFound = errors.New("tally: comment smile not found")
	ErrRelationshipNotFound = errors.New("tally: relationship not found")

	// Identifier errors
	ErrAllocatorExhausted = id.ErrAllocatorExhausted
	ErrUnknownKind        = id.ErrUnknownKind

	// Counter errors
	ErrTargetGone     = errors.New("tally: counter target no longer exists")
	ErrCounterDrift   = errors.New("tally: counter drift detected")
	ErrInvalidCounter = errors.New("tally: invalid counter field")
	ErrInvalidDelta   = errors.New("tally: delta must be +1 or -1")

	// Ranking errors
	ErrInvalidWindow    = errors.New("tally: window must be positive")
	ErrDiscoverDisabled = errors.New("tally: discover is disabled")

	// Store errors
	ErrStoreClosed     = errors.New("tally: store is closed")
	ErrMigrationFailed = errors.New("tally: migration failed")
)

// NotFoundFor returns the not-found sentinel for kind.
func NotFoundFor(kind id.Kind) error {
	switch kind {
	case id.KindUser:
		return ErrUserNotFound
	case id.KindQuestion:
		return ErrQuestionNotFound
	case id.KindAnswer:
		return ErrAnswerNotFound
	case id.KindComment:
		return ErrCommentNotFound
	case id.KindSmile:
		return ErrSmileNotFound
	case id.KindCommentSmile:
		return ErrCommentSmileNotFound
	case id.KindRelationship:
		return ErrRelationshipNotFound
	}
	return ErrNotFound
}

// DriftError describes a counter whose stored value disagreed with the live
// count of its children. It is informational; Recount has already corrected it.
type DriftError struct {
	counter.Target
	Stored int64
	Actual int64
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("tally: counter drift on %s: stored %d, actual %d", e.Target, e.Stored, e.Actual)
}

// Unwrap lets errors.Is match ErrCounterDrift.
func (e *DriftError) Unwrap() error { return ErrCounterDrift }

// Delta returns Actual - Stored.
func (e *DriftError) Delta() int64 { return e.Actual - e.Stored }

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("tally: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "tally: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("tally: %d errors occurred; first: %v", len(e.Errors), e.Errors[0])
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// ErrOrNil returns e if it holds errors, nil otherwise.
func (e *MultiError) ErrOrNil() error {
	if e == nil || !e.HasErrors() {
		return nil
	}
	return *e
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrQuestionNotFound) ||
		errors.Is(err, ErrAnswerNotFound) ||
		errors.Is(err, ErrCommentNotFound) ||
		errors.Is(err, ErrSmileNotFound) ||
		errors.Is(err, ErrCommentSmileNotFound) ||
		errors.Is(err, ErrRelationshipNotFound)
}

// IsBenign returns true for conditions the ledger reports but never fails on.
func IsBenign(err error) bool {
	return errors.Is(err, ErrTargetGone) || errors.Is(err, ErrCounterDrift)
}

// IsRetryable returns true if the error is temporary and the operation can be
// retried. Exhaustion of the ID allocator clears when the clock ticks over.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrAllocatorExhausted)
}
