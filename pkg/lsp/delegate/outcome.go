// Package delegate forwards editor requests addressed at .gsx documents to
// the foreign language server owning the position, and maps the answer back
// into authored coordinates.
package delegate

import "fmt"

// Reason says why a request produced no answer. Every reason reaches the
// editor as a null result; they stay distinct for logs and metrics.
type Reason int

const (
	ReasonNone Reason = iota
	// FeatureDisabled: the request kind is switched off in configuration.
	FeatureDisabled
	// DocumentNotFound: the authored document is not open.
	DocumentNotFound
	// Unresolved: the position is host markup or has no generated document.
	Unresolved
	// LanguageRejected: the owning language is not one the kind forwards to.
	LanguageRejected
	// TriggerRejected: the trigger character is not allowed for the language.
	TriggerRejected
	// RemapFailed: nothing in the answer maps back to the authored document.
	RemapFailed
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case FeatureDisabled:
		return "feature_disabled"
	case DocumentNotFound:
		return "document_not_found"
	case Unresolved:
		return "unresolved"
	case LanguageRejected:
		return "language_rejected"
	case TriggerRejected:
		return "trigger_rejected"
	case RemapFailed:
		return "remap_failed"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// OutcomeKind discriminates Outcome.
type OutcomeKind int

const (
	KindAnswer OutcomeKind = iota
	KindNoAnswer
	KindFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case KindAnswer:
		return "answer"
	case KindNoAnswer:
		return "no_answer"
	case KindFailed:
		return "failed"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the result of a delegated request: an answer, no answer for a
// given reason, or a failure. An empty answer is still an answer.
type Outcome[T any] struct {
	kind   OutcomeKind
	value  T
	reason Reason
	err    error
}

// Answer returns an outcome carrying v.
func Answer[T any](v T) Outcome[T] {
	return Outcome[T]{kind: KindAnswer, value: v}
}

// NoAnswer returns an outcome meaning the request does not apply.
func NoAnswer[T any](r Reason) Outcome[T] {
	return Outcome[T]{kind: KindNoAnswer, reason: r}
}

// Failed returns an outcome for a request that could not complete. err
// should wrap ErrBackend or ErrCancelled.
func Failed[T any](err error) Outcome[T] {
	return Outcome[T]{kind: KindFailed, err: err}
}

// Kind reports which of the three outcomes o is.
func (o Outcome[T]) Kind() OutcomeKind { return o.kind }

// Value returns the answer and whether there is one.
func (o Outcome[T]) Value() (T, bool) {
	return o.value, o.kind == KindAnswer
}

// Reason returns why there is no answer. ReasonNone for other outcomes.
func (o Outcome[T]) Reason() Reason { return o.reason }

// Err returns the failure. Nil unless Kind is KindFailed.
func (o Outcome[T]) Err() error { return o.err }

func (o Outcome[T]) String() string {
	switch o.kind {
	case KindNoAnswer:
		return "no_answer(" + o.reason.String() + ")"
	case KindFailed:
		return "failed(" + o.err.Error() + ")"
	default:
		return o.kind.String()
	}
}
