// internal/dom/attempt.go
package dom

import (
	"context"

	"go.uber.org/zap"

	"github.com/rvexel/feedcycler/api/schemas"
	"github.com/rvexel/feedcycler/internal/telemetry"
)

// ActionKind names the logical action slot an attempt serves. It selects
// which success counter is credited after an activation.
type ActionKind int

const (
	KindReaction ActionKind = iota
	KindAdvance
)

// String returns the kind name for logs.
func (k ActionKind) String() string {
	if k == KindReaction {
		return "react"
	}
	return "advance"
}

// Attempt wraps a probe with the activate-or-report decision: found and
// interactable means activate exactly once; anything else is reported as a
// failure outcome for the retry scheduler to act on. Nothing here is fatal.
type Attempt struct {
	probe     *Probe
	activator schemas.Activator
	counters  *telemetry.Counters
	logger    *zap.Logger
}

// NewAttempt wires an attempt over the document boundary.
func NewAttempt(reader schemas.DocumentReader, activator schemas.Activator, counters *telemetry.Counters, logger *zap.Logger) *Attempt {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Attempt{
		probe:     NewProbe(reader, logger),
		activator: activator,
		counters:  counters,
		logger:    logger.Named("attempt"),
	}
}

// Do performs one locate-and-activate attempt for the identifier. When all
// is set the activation applies to every interactable match instead of only
// the first; that multi-match policy is the caller's configuration choice.
//
// The operations counter increments before the activation call and the
// kind-specific success counter only after it returned, so operations can
// never trail reactions+advances.
func (a *Attempt) Do(ctx context.Context, id schemas.ElementIdentifier, kind ActionKind, all bool) schemas.AttemptResult {
	state, err := a.probe.Probe(ctx, id)
	if err != nil {
		// A failed read is neither absence nor presence; route it through
		// the same retriable pathway as an activation error.
		a.logger.Debug("Probe read failed.", zap.String("selector", string(id)), zap.Error(err))
		return schemas.AttemptResult{Outcome: schemas.OutcomeActivationError, Err: err}
	}
	if !state.Present() {
		return schemas.AttemptResult{Outcome: schemas.OutcomeNotFound}
	}
	if !state.Interactable() {
		return schemas.AttemptResult{Outcome: schemas.OutcomeNotInteractable}
	}

	a.counters.RecordOperation()
	if err := a.activator.Activate(ctx, id, all); err != nil {
		// Transient render races surface here; retriable, never fatal.
		a.logger.Debug("Activation raised an error.",
			zap.String("selector", string(id)),
			zap.String("action", kind.String()),
			zap.Error(err),
		)
		return schemas.AttemptResult{Outcome: schemas.OutcomeActivationError, Err: err}
	}

	switch kind {
	case KindReaction:
		a.counters.RecordReaction()
	case KindAdvance:
		a.counters.RecordAdvance()
	}

	a.logger.Debug("Activated element.",
		zap.String("selector", string(id)),
		zap.String("action", kind.String()),
		zap.Bool("match_all", all),
	)
	return schemas.AttemptResult{Outcome: schemas.OutcomeActivated}
}
