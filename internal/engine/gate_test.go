// internal/engine/gate_test.go
package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/rvexel/feedcycler/api/schemas"
)

type gateDoc struct {
	states     map[schemas.ElementIdentifier]schemas.ElementState
	childCount int
	inspectErr error
	childErr   error
	inspects   int
}

func (g *gateDoc) Inspect(_ context.Context, id schemas.ElementIdentifier) (schemas.ElementState, error) {
	g.inspects++
	if g.inspectErr != nil {
		return schemas.ElementState{}, g.inspectErr
	}
	return g.states[id], nil
}

func (g *gateDoc) ChildCount(_ context.Context, _, _ schemas.ElementIdentifier) (int, error) {
	if g.childErr != nil {
		return 0, g.childErr
	}
	return g.childCount, nil
}

func TestAlreadyReactedDisjunction(t *testing.T) {
	doc := &gateDoc{states: map[schemas.ElementIdentifier]schemas.ElementState{
		// Present but hidden and disabled: presence alone is decisive.
		"button.unreact-alt": {Matches: 1, Visible: false, Enabled: false},
	}}
	gate := NewReactionGate(doc,
		[]schemas.ElementIdentifier{"button.unreact", "button.unreact-alt"},
		"", "", 0, zap.NewNop())

	assert.True(t, gate.AlreadyReacted(context.Background()))
}

func TestAlreadyReactedFalseWhenAllAbsent(t *testing.T) {
	doc := &gateDoc{states: map[schemas.ElementIdentifier]schemas.ElementState{}}
	gate := NewReactionGate(doc,
		[]schemas.ElementIdentifier{"button.unreact", "button.unreact-alt"},
		"", "", 0, zap.NewNop())

	assert.False(t, gate.AlreadyReacted(context.Background()))
	assert.Equal(t, 2, doc.inspects, "every remove-reaction identifier is probed once")
}

func TestAlreadyReactedTreatsReadErrorAsNotReacted(t *testing.T) {
	doc := &gateDoc{inspectErr: errors.New("evaluate failed")}
	gate := NewReactionGate(doc,
		[]schemas.ElementIdentifier{"button.unreact"},
		"", "", 0, zap.NewNop())

	assert.False(t, gate.AlreadyReacted(context.Background()))
}

func TestEligibleThreshold(t *testing.T) {
	tests := []struct {
		name     string
		count    int
		min      int
		eligible bool
	}{
		{"below minimum", 1, 2, false},
		{"at minimum", 2, 2, true},
		{"above minimum", 5, 2, true},
		{"absent container", 0, 2, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			doc := &gateDoc{childCount: tc.count}
			gate := NewReactionGate(doc, nil, "div.media", "img.slide", tc.min, zap.NewNop())
			assert.Equal(t, tc.eligible, gate.Eligible(context.Background()))
		})
	}
}

func TestEligibleWithoutContainerConfigured(t *testing.T) {
	gate := NewReactionGate(&gateDoc{}, nil, "", "", 2, zap.NewNop())
	assert.True(t, gate.Eligible(context.Background()))
}

func TestEligibleReadErrorIsIneligible(t *testing.T) {
	doc := &gateDoc{childErr: errors.New("evaluate failed")}
	gate := NewReactionGate(doc, nil, "div.media", "img.slide", 2, zap.NewNop())
	assert.False(t, gate.Eligible(context.Background()))
}
