// internal/engine/gate.go
package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/rvexel/feedcycler/api/schemas"
)

// ReactionGate answers two questions about the current item with pure,
// point-in-time reads: has it already been reacted to, and does it
// structurally support reaction at all. No retries here; a negative answer
// routes the controller straight to the advance step because these
// properties are expected to be stable within a cycle, unlike control
// availability.
type ReactionGate struct {
	reader      schemas.DocumentReader
	removeIDs   []schemas.ElementIdentifier
	container   schemas.ElementIdentifier
	childKind   schemas.ElementIdentifier
	minChildren int
	logger      *zap.Logger
}

// NewReactionGate builds a gate over the document reader. removeIDs are
// evaluated disjunctively.
func NewReactionGate(
	reader schemas.DocumentReader,
	removeIDs []schemas.ElementIdentifier,
	container, childKind schemas.ElementIdentifier,
	minChildren int,
	logger *zap.Logger,
) *ReactionGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReactionGate{
		reader:      reader,
		removeIDs:   removeIDs,
		container:   container,
		childKind:   childKind,
		minChildren: minChildren,
		logger:      logger.Named("gate"),
	}
}

// AlreadyReacted reports whether any remove-reaction control is present.
// Presence alone indicates prior action; interactability is irrelevant.
// Read errors count as "not reacted" so the cycle stays live; the retry
// layer around the react attempt absorbs any resulting redundant probe.
func (g *ReactionGate) AlreadyReacted(ctx context.Context) bool {
	for _, id := range g.removeIDs {
		state, err := g.reader.Inspect(ctx, id)
		if err != nil {
			g.logger.Debug("Remove-reaction probe failed.",
				zap.String("selector", string(id)), zap.Error(err))
			continue
		}
		if state.Present() {
			return true
		}
	}
	return false
}

// Eligible reports whether the current item structurally supports the react
// action: the eligibility container holds at least the configured minimum
// of qualifying children. An absent container counts zero children.
func (g *ReactionGate) Eligible(ctx context.Context) bool {
	if g.container == "" {
		// No structural requirement configured; everything qualifies.
		return true
	}
	count, err := g.reader.ChildCount(ctx, g.container, g.childKind)
	if err != nil {
		g.logger.Debug("Eligibility probe failed.",
			zap.String("container", string(g.container)), zap.Error(err))
		return false
	}
	return count >= g.minChildren
}
