// internal/dom/probe.go
// Single-shot element lookup. The probe performs exactly one read of the
// live document per call and never waits or retries; resilience against the
// document mutating underneath it is the retry scheduler's job, not ours.
package dom

import (
	"context"

	"go.uber.org/zap"

	"github.com/rvexel/feedcycler/api/schemas"
)

// Probe resolves element identifiers against the current document state.
type Probe struct {
	reader schemas.DocumentReader
	logger *zap.Logger
}

// NewProbe creates a probe over the given document reader.
func NewProbe(reader schemas.DocumentReader, logger *zap.Logger) *Probe {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Probe{reader: reader, logger: logger.Named("probe")}
}

// Probe performs one point-in-time read for the identifier. The returned
// state is only meaningful for the current synchronous check; callers must
// not cache it across asynchronous boundaries.
func (p *Probe) Probe(ctx context.Context, id schemas.ElementIdentifier) (schemas.ElementState, error) {
	state, err := p.reader.Inspect(ctx, id)
	if err != nil {
		return schemas.ElementState{}, err
	}
	p.logger.Debug("Probed element.",
		zap.String("selector", string(id)),
		zap.Int("matches", state.Matches),
		zap.Bool("visible", state.Visible),
		zap.Bool("enabled", state.Enabled),
	)
	return state, nil
}
