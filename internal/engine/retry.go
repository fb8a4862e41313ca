// internal/engine/retry.go
package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/rvexel/feedcycler/api/schemas"
	"github.com/rvexel/feedcycler/internal/schedule"
)

// AttemptFunc performs one locate-and-activate attempt against the live
// document. It must not wait or retry internally.
type AttemptFunc func(ctx context.Context) schemas.AttemptResult

// RetryScheduler turns a single attempt into a bounded-or-unbounded sequence
// of attempts separated by the policy delay. Ticks run on the cooperative
// loop; the wait between ticks is a deferred re-invocation, never a blocking
// sleep. Continuations are always posted back to the loop rather than called
// inline, decoupling them from the tick's call stack.
type RetryScheduler struct {
	loop   *schedule.Loop
	logger *zap.Logger
}

// NewRetryScheduler creates a scheduler bound to the loop.
func NewRetryScheduler(loop *schedule.Loop, logger *zap.Logger) *RetryScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryScheduler{loop: loop, logger: logger.Named("retry")}
}

// retryRun is the state of one in-flight sequence. Owned exclusively by that
// sequence and discarded when it terminates.
type retryRun struct {
	sched      *RetryScheduler
	ctx        context.Context
	name       string
	attempt    AttemptFunc
	policy     schemas.RetryPolicy
	onSuccess  func()
	onFailure  func()
	index      int
	suppressed int
}

// Run starts a retry sequence named name (for logs) and returns immediately;
// ticks execute on the loop. onSuccess fires after an activation, onFailure
// after the bounded attempt budget is exhausted (or immediately under the
// fail-fast-on-absent policy). With an unbounded limit onFailure never
// fires: a permanently missing target keeps the sequence polling, which is
// the documented liveness trade-off. Either continuation may be nil.
func (r *RetryScheduler) Run(
	ctx context.Context,
	name string,
	attempt AttemptFunc,
	policy schemas.RetryPolicy,
	onSuccess, onFailure func(),
) {
	run := &retryRun{
		sched:     r,
		ctx:       ctx,
		name:      name,
		attempt:   attempt,
		policy:    policy,
		onSuccess: onSuccess,
		onFailure: onFailure,
	}
	r.loop.Post(run.tick)
}

// tick performs one attempt and schedules the consequence.
func (t *retryRun) tick() {
	if t.ctx.Err() != nil {
		// External teardown: stop scheduling, fire nothing.
		return
	}

	t.index++ // attempt indices start at 1
	res := t.attempt(t.ctx)

	if res.Outcome == schemas.OutcomeActivated {
		t.sched.logger.Debug("Attempt succeeded.",
			zap.String("action", t.name),
			zap.Int("attempt", t.index),
		)
		t.finish(t.onSuccess)
		return
	}

	t.logFailure(res)

	if t.policy.FailFastOnAbsent && t.index == 1 && res.Outcome == schemas.OutcomeNotFound {
		// A flatly absent control is unlikely to appear soon; skip the
		// remaining budget. A present-but-disabled control keeps polling.
		t.sched.logger.Debug("Target absent on first attempt; failing fast.",
			zap.String("action", t.name),
			zap.Error(ErrTargetAbsent),
		)
		t.finish(t.onFailure)
		return
	}

	if !t.policy.Unbounded() && t.index >= t.policy.Limit {
		t.sched.logger.Debug("Attempt budget exhausted.",
			zap.String("action", t.name),
			zap.Int("attempts", t.index),
			zap.Error(classify(res)),
		)
		t.finish(t.onFailure)
		return
	}

	t.sched.loop.PostAfter(t.policy.Delay, t.tick)
}

// finish posts the continuation to the loop, decoupled from this tick's
// call stack, and ends the sequence.
func (t *retryRun) finish(next func()) {
	if next == nil {
		return
	}
	t.sched.loop.Post(next)
}

// logFailure applies the LogEvery rate limit: early attempts are logged
// individually, later ones summarized, so an indefinite wait does not
// produce unbounded log volume.
func (t *retryRun) logFailure(res schemas.AttemptResult) {
	every := t.policy.LogEvery
	if every > 0 && t.index > every {
		t.suppressed++
		if t.index%every != 0 {
			return
		}
		t.sched.logger.Debug("Still waiting for target.",
			zap.String("action", t.name),
			zap.Int("attempt", t.index),
			zap.Int("suppressed", t.suppressed),
			zap.String("outcome", res.Outcome.String()),
		)
		t.suppressed = 0
		return
	}

	fields := []zap.Field{
		zap.String("action", t.name),
		zap.Int("attempt", t.index),
		zap.String("outcome", res.Outcome.String()),
	}
	if res.Err != nil {
		fields = append(fields, zap.Error(res.Err))
	}
	t.sched.logger.Debug("Attempt failed.", fields...)
}
