// internal/engine/retry_test.go
package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rvexel/feedcycler/api/schemas"
	"github.com/rvexel/feedcycler/internal/schedule"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startTestLoop(t *testing.T) *schedule.Loop {
	t.Helper()
	loop := schedule.NewLoop(zap.NewNop(), 64)
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-loop.Done()
	})
	return loop
}

// scriptedAttempt returns a failing outcome until attempt succeedOn, then
// Activated. succeedOn <= 0 never succeeds. Attempt timestamps are recorded.
type scriptedAttempt struct {
	mu        sync.Mutex
	failWith  schemas.AttemptOutcome
	succeedOn int
	calls     []time.Time
}

func (s *scriptedAttempt) fn(context.Context) schemas.AttemptResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, time.Now())
	if s.succeedOn > 0 && len(s.calls) >= s.succeedOn {
		return schemas.AttemptResult{Outcome: schemas.OutcomeActivated}
	}
	return schemas.AttemptResult{Outcome: s.failWith}
}

func (s *scriptedAttempt) times() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.calls...)
}

func TestBoundedRetryExhaustsAfterLimit(t *testing.T) {
	loop := startTestLoop(t)
	sched := NewRetryScheduler(loop, zap.NewNop())

	const delay = 20 * time.Millisecond
	attempt := &scriptedAttempt{failWith: schemas.OutcomeNotInteractable}

	successes := make(chan struct{}, 8)
	failures := make(chan struct{}, 8)
	sched.Run(context.Background(), "react", attempt.fn,
		schemas.RetryPolicy{Limit: 3, Delay: delay},
		func() { successes <- struct{}{} },
		func() { failures <- struct{}{} },
	)

	select {
	case <-failures:
	case <-time.After(5 * time.Second):
		t.Fatal("onFailure never fired")
	}

	calls := attempt.times()
	require.Len(t, calls, 3, "exactly limit attempts")
	for i := 1; i < len(calls); i++ {
		assert.GreaterOrEqual(t, calls[i].Sub(calls[i-1]), delay,
			"attempts must be separated by at least the policy delay")
	}

	// onFailure fires exactly once and onSuccess never.
	select {
	case <-failures:
		t.Fatal("onFailure fired more than once")
	case <-time.After(5 * delay):
	}
	assert.Empty(t, successes)
}

func TestUnboundedRetrySucceedsEventually(t *testing.T) {
	loop := startTestLoop(t)
	sched := NewRetryScheduler(loop, zap.NewNop())

	attempt := &scriptedAttempt{failWith: schemas.OutcomeNotFound, succeedOn: 5}

	successes := make(chan struct{}, 8)
	failures := make(chan struct{}, 8)
	sched.Run(context.Background(), "advance", attempt.fn,
		schemas.RetryPolicy{Limit: 0, Delay: 5 * time.Millisecond},
		func() { successes <- struct{}{} },
		func() { failures <- struct{}{} },
	)

	select {
	case <-successes:
	case <-time.After(5 * time.Second):
		t.Fatal("onSuccess never fired")
	}

	assert.Len(t, attempt.times(), 5, "success on exactly the fifth probe")
	select {
	case <-successes:
		t.Fatal("onSuccess fired more than once")
	case <-failures:
		t.Fatal("onFailure must never fire for an unbounded policy")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFailFastOnAbsentFirstAttempt(t *testing.T) {
	loop := startTestLoop(t)
	sched := NewRetryScheduler(loop, zap.NewNop())

	attempt := &scriptedAttempt{failWith: schemas.OutcomeNotFound}

	failures := make(chan struct{}, 1)
	sched.Run(context.Background(), "react", attempt.fn,
		schemas.RetryPolicy{Limit: 10, Delay: 5 * time.Millisecond, FailFastOnAbsent: true},
		nil,
		func() { failures <- struct{}{} },
	)

	select {
	case <-failures:
	case <-time.After(2 * time.Second):
		t.Fatal("onFailure never fired")
	}
	assert.Len(t, attempt.times(), 1, "absent target must not be retried under fail-fast")
}

func TestFailFastStillRetriesDisabledTarget(t *testing.T) {
	loop := startTestLoop(t)
	sched := NewRetryScheduler(loop, zap.NewNop())

	// Present but disabled on the first attempt: fail-fast must not apply.
	attempt := &scriptedAttempt{failWith: schemas.OutcomeNotInteractable, succeedOn: 3}

	successes := make(chan struct{}, 1)
	sched.Run(context.Background(), "react", attempt.fn,
		schemas.RetryPolicy{Limit: 10, Delay: 5 * time.Millisecond, FailFastOnAbsent: true},
		func() { successes <- struct{}{} },
		nil,
	)

	select {
	case <-successes:
	case <-time.After(2 * time.Second):
		t.Fatal("onSuccess never fired")
	}
	assert.Len(t, attempt.times(), 3)
}

func TestLogEverySuppressesSteadyStateFailures(t *testing.T) {
	loop := startTestLoop(t)
	core, observed := observer.New(zapcore.DebugLevel)
	sched := NewRetryScheduler(loop, zap.New(core))

	// Nine failures, success on the tenth. With LogEvery of 3 the first
	// three failures log individually; afterwards only every third attempt
	// produces a summary carrying the suppressed tick count.
	attempt := &scriptedAttempt{failWith: schemas.OutcomeNotFound, succeedOn: 10}

	successes := make(chan struct{}, 1)
	sched.Run(context.Background(), "advance", attempt.fn,
		schemas.RetryPolicy{Limit: 0, Delay: time.Millisecond, LogEvery: 3},
		func() { successes <- struct{}{} },
		nil,
	)

	select {
	case <-successes:
	case <-time.After(5 * time.Second):
		t.Fatal("onSuccess never fired")
	}

	individual := observed.FilterMessage("Attempt failed.").All()
	require.Len(t, individual, 3, "only the first LogEvery failures log individually")
	for i, entry := range individual {
		assert.Equal(t, int64(i+1), entry.ContextMap()["attempt"])
	}

	summaries := observed.FilterMessage("Still waiting for target.").All()
	require.Len(t, summaries, 2, "one summary per LogEvery ticks past the threshold")
	assert.Equal(t, int64(6), summaries[0].ContextMap()["attempt"])
	assert.Equal(t, int64(9), summaries[1].ContextMap()["attempt"])
	for _, entry := range summaries {
		assert.Equal(t, int64(3), entry.ContextMap()["suppressed"])
	}

	assert.Equal(t, 1, observed.FilterMessage("Attempt succeeded.").Len())
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	loop := startTestLoop(t)
	sched := NewRetryScheduler(loop, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	attempt := &scriptedAttempt{failWith: schemas.OutcomeNotFound}

	fired := make(chan struct{}, 2)
	sched.Run(ctx, "advance", attempt.fn,
		schemas.RetryPolicy{Limit: 0, Delay: 5 * time.Millisecond},
		func() { fired <- struct{}{} },
		func() { fired <- struct{}{} },
	)

	// Let a few ticks happen, then tear down.
	time.Sleep(25 * time.Millisecond)
	cancel()
	before := len(attempt.times())
	time.Sleep(50 * time.Millisecond)

	assert.LessOrEqual(t, len(attempt.times()), before+1,
		"at most the in-flight tick may run after cancellation")
	select {
	case <-fired:
		t.Fatal("no continuation may fire after external teardown")
	default:
	}
}
