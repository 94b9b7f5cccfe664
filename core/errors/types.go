// Package errors implements the error taxonomy shared by the fable stores
// and lifecycle managers. Every failure surfaced to a caller carries a Kind
// that determines whether the caller should disambiguate, retry with an
// explicit confirmation flag, or report and stop.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error by the caller behavior it requires.
type Kind int

const (
	// KindValidation indicates rejected input, such as an empty character name.
	KindValidation Kind = iota

	// KindConflict indicates a uniqueness collision, such as an existing slug.
	KindConflict

	// KindNotFound indicates the requested record, session, or project is absent.
	KindNotFound

	// KindAmbiguousMatch indicates multiple candidates matched and the caller
	// must disambiguate before retrying.
	KindAmbiguousMatch

	// KindInvalidTransition indicates an illegal lifecycle state change.
	KindInvalidTransition

	// KindStateWrite indicates a durable write could not be confirmed.
	KindStateWrite

	// KindStateCorrupt indicates the primary document and every backup slot
	// failed to parse.
	KindStateCorrupt

	// KindNoActiveProject indicates a continuation was requested with no
	// active project recorded in the state document.
	KindNoActiveProject

	// KindInternal is the fallback classification for unrecognized errors.
	KindInternal
)

var kindNames = map[Kind]string{
	KindValidation:        "validation",
	KindConflict:          "conflict",
	KindNotFound:          "not_found",
	KindAmbiguousMatch:    "ambiguous_match",
	KindInvalidTransition: "invalid_transition",
	KindStateWrite:        "state_write",
	KindStateCorrupt:      "state_corrupt",
	KindNoActiveProject:   "no_active_project",
	KindInternal:          "internal",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Behavior defines how a caller should react to an error kind.
type Behavior struct {
	// Disambiguate indicates the caller should re-prompt with candidates
	// rather than fail outright.
	Disambiguate bool

	// NeedsConfirmation indicates the operation can be retried with an
	// explicit confirmation flag (overwrite, force-archive).
	NeedsConfirmation bool

	// Recoverable indicates local recovery exists (backup fallback).
	Recoverable bool
}

// DefaultBehaviors returns the behavior table for each kind.
func DefaultBehaviors() map[Kind]Behavior {
	return map[Kind]Behavior{
		KindValidation:        {},
		KindConflict:          {NeedsConfirmation: true},
		KindNotFound:          {},
		KindAmbiguousMatch:    {Disambiguate: true},
		KindInvalidTransition: {},
		KindStateWrite:        {},
		KindStateCorrupt:      {Recoverable: true},
		KindNoActiveProject:   {Disambiguate: true},
		KindInternal:          {},
	}
}

// KindError wraps an error with its kind classification.
type KindError struct {
	Kind       Kind
	Message    string
	Underlying error
	Context    map[string]string
}

// Error implements the error interface.
func (e *KindError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *KindError) Unwrap() error {
	return e.Underlying
}

// Is matches any KindError of the same kind, so callers can test against
// the kind sentinels with errors.Is.
func (e *KindError) Is(target error) bool {
	var ke *KindError
	if errors.As(target, &ke) {
		return e.Kind == ke.Kind
	}
	return false
}

// New creates a KindError with the given kind and message.
func New(kind Kind, message string) *KindError {
	return &KindError{
		Kind:    kind,
		Message: message,
		Context: make(map[string]string),
	}
}

// Newf creates a KindError with a formatted message.
func Newf(kind Kind, format string, args ...any) *KindError {
	return New(kind, fmt.Sprintf(format, args...))
}

// WithContext adds a context key-value pair to the error.
func (e *KindError) WithContext(key, value string) *KindError {
	e.Context[key] = value
	return e
}

// Wrap classifies an existing error. A KindError underlying keeps its
// original kind; Wrap never double-classifies.
func Wrap(kind Kind, message string, err error) error {
	if err == nil {
		return nil
	}

	var ke *KindError
	if errors.As(err, &ke) {
		return &KindError{
			Kind:       ke.Kind,
			Message:    message,
			Underlying: err,
			Context:    ke.Context,
		}
	}

	return &KindError{
		Kind:       kind,
		Message:    message,
		Underlying: err,
		Context:    make(map[string]string),
	}
}

// GetKind extracts the Kind from an error, defaulting to KindInternal.
func GetKind(err error) Kind {
	var ke *KindError
	if errors.As(err, &ke) {
		return ke.Kind
	}
	return KindInternal
}

// GetBehavior returns the behavior for an error's kind.
func GetBehavior(err error) Behavior {
	return DefaultBehaviors()[GetKind(err)]
}

// Kind sentinels for errors.Is checks.
var (
	ErrValidation        = New(KindValidation, "invalid input")
	ErrConflict          = New(KindConflict, "already exists")
	ErrNotFound          = New(KindNotFound, "not found")
	ErrAmbiguousMatch    = New(KindAmbiguousMatch, "multiple matches")
	ErrInvalidTransition = New(KindInvalidTransition, "invalid transition")
	ErrStateWrite        = New(KindStateWrite, "state write failed")
	ErrStateCorrupt      = New(KindStateCorrupt, "state document corrupt")
	ErrNoActiveProject   = New(KindNoActiveProject, "no active project")
)
