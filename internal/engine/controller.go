// internal/engine/controller.go
package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/rvexel/feedcycler/api/schemas"
	"github.com/rvexel/feedcycler/internal/schedule"
	"github.com/rvexel/feedcycler/internal/telemetry"
)

// Phase is one step of the per-cycle state machine. Transitions are strictly
// sequential within a cycle; no phase is revisited.
type Phase int

const (
	PhaseEvaluating Phase = iota
	PhaseReact
	PhaseAdvance
	PhaseComplete
)

// String returns the phase name for logs.
func (p Phase) String() string {
	switch p {
	case PhaseEvaluating:
		return "evaluating"
	case PhaseReact:
		return "react"
	case PhaseAdvance:
		return "advance"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// PhaseHook observes phase entries. Test instrumentation; runs on the loop
// goroutine.
type PhaseHook func(cycle uint64, phase Phase)

// ControllerConfig carries the per-slot retry policies and logging switches.
type ControllerConfig struct {
	ReactPolicy   schemas.RetryPolicy
	AdvancePolicy schemas.RetryPolicy
	LogCycles     bool
}

// Controller drives the unbounded cycle loop: consult the gate, conditionally
// run the react retry sequence, always run the advance retry sequence, then
// schedule the next cycle on the loop. Every failure path still advances;
// the design prioritizes liveness over the correctness of any single cycle.
// There is no terminal phase; stopping is external context cancellation,
// which simply prevents the next deferred task from being scheduled.
type Controller struct {
	loop     *schedule.Loop
	gate     *ReactionGate
	retry    *RetryScheduler
	react    AttemptFunc
	advance  AttemptFunc
	counters *telemetry.Counters
	cfg      ControllerConfig
	logger   *zap.Logger

	// cycle is loop-confined; only tasks running on the loop touch it.
	cycle uint64
	hook  PhaseHook
}

// NewController wires the cycle state machine.
func NewController(
	loop *schedule.Loop,
	gate *ReactionGate,
	react, advance AttemptFunc,
	counters *telemetry.Counters,
	cfg ControllerConfig,
	logger *zap.Logger,
) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		loop:     loop,
		gate:     gate,
		retry:    NewRetryScheduler(loop, logger),
		react:    react,
		advance:  advance,
		counters: counters,
		cfg:      cfg,
		logger:   logger.Named("controller"),
	}
}

// SetPhaseHook installs a phase observer. Call before Start.
func (c *Controller) SetPhaseHook(hook PhaseHook) { c.hook = hook }

// Start schedules the first cycle and returns. The controller then runs
// until ctx is canceled.
func (c *Controller) Start(ctx context.Context) {
	c.loop.Post(func() { c.beginCycle(ctx) })
}

func (c *Controller) enter(phase Phase) {
	if c.hook != nil {
		c.hook(c.cycle, phase)
	}
}

// beginCycle is the EvaluatingReactionState phase: decide whether the react
// step runs at all this cycle.
func (c *Controller) beginCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	c.cycle++
	c.enter(PhaseEvaluating)

	if c.gate.AlreadyReacted(ctx) {
		if c.cfg.LogCycles {
			c.logger.Debug("Item already reacted to; skipping react step.",
				zap.Uint64("cycle", c.cycle))
		}
		c.beginAdvance(ctx)
		return
	}
	if !c.gate.Eligible(ctx) {
		if c.cfg.LogCycles {
			c.logger.Debug("Item not eligible for reaction; skipping react step.",
				zap.Uint64("cycle", c.cycle))
		}
		c.beginAdvance(ctx)
		return
	}
	c.beginReact(ctx)
}

// beginReact runs the react retry sequence. Success and exhaustion both lead
// to the advance step.
func (c *Controller) beginReact(ctx context.Context) {
	c.enter(PhaseReact)
	next := func() { c.beginAdvance(ctx) }
	c.retry.Run(ctx, "react", c.react, c.cfg.ReactPolicy, next, next)
}

// beginAdvance runs the advance retry sequence. Both outcomes complete the
// cycle.
func (c *Controller) beginAdvance(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	c.enter(PhaseAdvance)
	done := func() { c.completeCycle(ctx) }
	c.retry.Run(ctx, "advance", c.advance, c.cfg.AdvancePolicy, done, done)
}

// completeCycle logs the cycle outcome and posts the next cycle to the loop.
// The next cycle is always a deferred task, never a synchronous call, so an
// effectively infinite run cannot grow the stack.
func (c *Controller) completeCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	c.enter(PhaseComplete)
	if c.cfg.LogCycles {
		c.logger.Info("Cycle complete.",
			append([]zap.Field{zap.Uint64("cycle", c.cycle)}, c.counters.Snapshot().Fields()...)...,
		)
	}
	c.loop.Post(func() { c.beginCycle(ctx) })
}

// Cycle returns the current cycle ordinal. Only meaningful from loop tasks
// or after the loop has stopped.
func (c *Controller) Cycle() uint64 { return c.cycle }
