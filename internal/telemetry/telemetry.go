// internal/telemetry/telemetry.go
package telemetry

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Counters holds the process-wide cycle counters: operations attempted,
// successful reactions, successful advances. Monotonically increasing,
// never reset. A single instance is shared by reference with every
// component that reports outcomes; the API exposes increments only.
//
// The invariant operations >= reactions + advances always holds because the
// operation counter increments before an activation is attempted and the
// success counters only after it returned.
type Counters struct {
	operations atomic.Int64
	reactions  atomic.Int64
	advances   atomic.Int64

	opsMetric      prometheus.Counter
	reactionMetric prometheus.Counter
	advanceMetric  prometheus.Counter
}

// New creates the counter set and registers its prometheus mirrors with reg.
// A nil registerer keeps the counters purely in-process.
func New(reg prometheus.Registerer) *Counters {
	c := &Counters{
		opsMetric: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "feedcycler",
			Name:      "operations_total",
			Help:      "Activation operations attempted.",
		}),
		reactionMetric: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "feedcycler",
			Name:      "reactions_total",
			Help:      "Successful react activations.",
		}),
		advanceMetric: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "feedcycler",
			Name:      "advances_total",
			Help:      "Successful advance activations.",
		}),
	}
	if reg != nil {
		reg.MustRegister(c.opsMetric, c.reactionMetric, c.advanceMetric)
	}
	return c
}

// RecordOperation increments the attempted-operations counter.
func (c *Counters) RecordOperation() {
	c.operations.Add(1)
	c.opsMetric.Inc()
}

// RecordReaction increments the successful-reactions counter.
func (c *Counters) RecordReaction() {
	c.reactions.Add(1)
	c.reactionMetric.Inc()
}

// RecordAdvance increments the successful-advances counter.
func (c *Counters) RecordAdvance() {
	c.advances.Add(1)
	c.advanceMetric.Inc()
}

// Snapshot is a point-in-time copy of the counters for log payloads.
type Snapshot struct {
	Operations int64
	Reactions  int64
	Advances   int64
}

// Snapshot reads the current counter values.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Operations: c.operations.Load(),
		Reactions:  c.reactions.Load(),
		Advances:   c.advances.Load(),
	}
}

// Fields renders the snapshot as structured log fields.
func (s Snapshot) Fields() []zap.Field {
	return []zap.Field{
		zap.Int64("operations", s.Operations),
		zap.Int64("reactions", s.Reactions),
		zap.Int64("advances", s.Advances),
	}
}
