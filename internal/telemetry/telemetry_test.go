// internal/telemetry/telemetry_test.go
package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrementOnly(t *testing.T) {
	c := New(nil)

	c.RecordOperation()
	c.RecordOperation()
	c.RecordReaction()
	c.RecordAdvance()

	snap := c.Snapshot()
	assert.Equal(t, int64(2), snap.Operations)
	assert.Equal(t, int64(1), snap.Reactions)
	assert.Equal(t, int64(1), snap.Advances)
	assert.GreaterOrEqual(t, snap.Operations, snap.Reactions+snap.Advances)
}

func TestSnapshotIsMonotonic(t *testing.T) {
	c := New(nil)

	var prev Snapshot
	for i := 0; i < 10; i++ {
		c.RecordOperation()
		if i%2 == 0 {
			c.RecordReaction()
		} else {
			c.RecordAdvance()
		}
		snap := c.Snapshot()
		assert.GreaterOrEqual(t, snap.Operations, prev.Operations)
		assert.GreaterOrEqual(t, snap.Reactions, prev.Reactions)
		assert.GreaterOrEqual(t, snap.Advances, prev.Advances)
		assert.GreaterOrEqual(t, snap.Operations, snap.Reactions+snap.Advances)
		prev = snap
	}
}

func TestPrometheusMirrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.RecordOperation()
	c.RecordReaction()

	require.Equal(t, float64(1), testutil.ToFloat64(c.opsMetric))
	require.Equal(t, float64(1), testutil.ToFloat64(c.reactionMetric))
	require.Equal(t, float64(0), testutil.ToFloat64(c.advanceMetric))
}

func TestSnapshotFields(t *testing.T) {
	c := New(nil)
	c.RecordOperation()

	fields := c.Snapshot().Fields()
	require.Len(t, fields, 3)
	assert.Equal(t, "operations", fields[0].Key)
}
