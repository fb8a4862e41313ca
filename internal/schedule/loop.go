// internal/schedule/loop.go
// A single-goroutine cooperative task loop. All engine work (probes, gate
// reads, retry ticks, phase transitions) executes on one goroutine; waits
// are expressed as deferred re-invocations, never blocking sleeps inside a
// task. This keeps the unbounded cycle iteration free of both stack growth
// and data races without any locking in the engine itself.
package schedule

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Loop drains a task queue on a single goroutine.
type Loop struct {
	logger *zap.Logger
	tasks  chan func()

	mu      sync.Mutex
	timers  map[*time.Timer]struct{}
	stopped bool
	done    chan struct{}
}

// NewLoop creates a loop with the given queue capacity.
func NewLoop(logger *zap.Logger, queueSize int) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Loop{
		logger: logger.Named("loop"),
		tasks:  make(chan func(), queueSize),
		timers: make(map[*time.Timer]struct{}),
		done:   make(chan struct{}),
	}
}

// Run drains tasks until ctx is canceled. It blocks; callers typically run
// it on its own goroutine and wait on Done.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	defer l.shutdown()

	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("Task loop stopping.", zap.Error(ctx.Err()))
			return
		case task := <-l.tasks:
			task()
		}
	}
}

// Post enqueues fn to run on the loop goroutine. It reports false when the
// loop has stopped or the queue is saturated; a dropped task is logged, not
// fatal, since teardown is the only time drops occur in practice.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	stopped := l.stopped
	l.mu.Unlock()
	if stopped {
		return false
	}

	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	default:
		l.logger.Warn("Task queue saturated; dropping task.")
		return false
	}
}

// PostAfter schedules fn to be enqueued after d. The timer fires on its own
// goroutine but only re-posts into the queue, so fn itself still runs on the
// loop goroutine.
func (l *Loop) PostAfter(d time.Duration, fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	var timer *time.Timer
	timer = time.AfterFunc(d, func() {
		l.mu.Lock()
		delete(l.timers, timer)
		l.mu.Unlock()
		l.Post(fn)
	})
	l.timers[timer] = struct{}{}
	l.mu.Unlock()
	return true
}

// Done is closed once the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} { return l.done }

// shutdown stops pending timers so no task outlives the loop.
func (l *Loop) shutdown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
	for timer := range l.timers {
		timer.Stop()
	}
	l.timers = map[*time.Timer]struct{}{}
}
