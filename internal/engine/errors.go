// internal/engine/errors.go
package engine

import (
	"errors"
	"fmt"

	"github.com/rvexel/feedcycler/api/schemas"
)

// The failure taxonomy for a single action. All three are non-fatal and feed
// the same retry/advance pathway; the engine has no fatal error class and
// never aborts the overall loop because of one of these.
var (
	// ErrTargetAbsent means the identifying expression matched nothing.
	ErrTargetAbsent = errors.New("target element absent")
	// ErrTargetNotInteractable means a match exists but is hidden or disabled.
	ErrTargetNotInteractable = errors.New("target element not interactable")
	// ErrActivationFailed means activating the element raised an error.
	ErrActivationFailed = errors.New("target activation failed")
)

// classify maps an attempt result onto the failure taxonomy, wrapping the
// underlying cause when one was reported.
func classify(res schemas.AttemptResult) error {
	switch res.Outcome {
	case schemas.OutcomeNotFound:
		return ErrTargetAbsent
	case schemas.OutcomeNotInteractable:
		return ErrTargetNotInteractable
	case schemas.OutcomeActivationError:
		if res.Err != nil {
			return fmt.Errorf("%w: %w", ErrActivationFailed, res.Err)
		}
		return ErrActivationFailed
	default:
		return nil
	}
}
