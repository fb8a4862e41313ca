// api/schemas/schemas.go
// Shared types crossing package boundaries. Kept free of internal imports so
// both the engine and the browser layer can depend on them.
package schemas

import (
	"fmt"
	"time"
)

// ElementIdentifier is an opaque expression (a CSS selector) identifying
// zero-or-more elements in the current document state. It is configuration
// data, supplied at startup and never constructed by the engine.
type ElementIdentifier string

// ElementState is a point-in-time observation of the elements matched by one
// identifier. It is valid only for the synchronous check that produced it;
// the document may have mutated by the next read.
type ElementState struct {
	// Matches is the number of elements the identifier resolved to.
	Matches int `json:"matches"`
	// Visible and Enabled describe the first match.
	Visible bool `json:"visible"`
	Enabled bool `json:"enabled"`
}

// Present reports whether the identifier matched at least one element.
func (s ElementState) Present() bool { return s.Matches > 0 }

// Interactable reports whether the first match can be activated right now:
// present, visible, and not disabled, evaluated at a single point in time.
func (s ElementState) Interactable() bool {
	return s.Present() && s.Visible && s.Enabled
}

// AttemptOutcome classifies the result of a single locate-and-activate
// attempt.
type AttemptOutcome int

const (
	// OutcomeActivated means the element's primary action was invoked once.
	OutcomeActivated AttemptOutcome = iota
	// OutcomeNotFound means the identifier matched nothing.
	OutcomeNotFound
	// OutcomeNotInteractable means a match exists but is hidden or disabled.
	OutcomeNotInteractable
	// OutcomeActivationError means locating or activating the element raised
	// an error. Treated as retriable, never fatal.
	OutcomeActivationError
)

// String returns the outcome name for logs.
func (o AttemptOutcome) String() string {
	switch o {
	case OutcomeActivated:
		return "activated"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeNotInteractable:
		return "not_interactable"
	case OutcomeActivationError:
		return "activation_error"
	default:
		return fmt.Sprintf("unknown(%d)", int(o))
	}
}

// AttemptResult carries the outcome of one attempt plus the underlying error
// for activation failures.
type AttemptResult struct {
	Outcome AttemptOutcome
	Err     error
}

// RetryPolicy controls how a retry scheduler turns one attempt into a
// bounded-or-unbounded sequence of attempts.
type RetryPolicy struct {
	// Limit is the maximum number of attempts. Zero or negative means
	// unbounded: the scheduler retries forever and never gives up.
	Limit int `mapstructure:"limit" yaml:"limit"`
	// Delay separates consecutive attempts.
	Delay time.Duration `mapstructure:"delay" yaml:"delay"`
	// LogEvery rate-limits per-attempt logging: attempts beyond this index
	// are summarized every LogEvery ticks instead of logged individually.
	// Zero disables suppression.
	LogEvery int `mapstructure:"log_every" yaml:"log_every"`
	// FailFastOnAbsent short-circuits the sequence when the very first
	// attempt finds nothing at all, on the theory that a flatly absent
	// control is unlikely to appear soon, whereas a present-but-disabled one
	// is worth polling.
	FailFastOnAbsent bool `mapstructure:"fail_fast_on_absent" yaml:"fail_fast_on_absent"`
}

// Unbounded reports whether the policy retries forever.
func (p RetryPolicy) Unbounded() bool { return p.Limit <= 0 }
