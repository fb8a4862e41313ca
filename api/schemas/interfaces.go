// api/schemas/interfaces.go
package schemas

import "context"

// DocumentReader is the read side of the document-state boundary. Every
// method performs exactly one read of the live document; implementations
// must not wait or retry. The document is external and non-deterministic
// from the caller's point of view.
type DocumentReader interface {
	// Inspect resolves an identifier against the current document and
	// reports presence, visibility, and enabled state in a single read.
	Inspect(ctx context.Context, id ElementIdentifier) (ElementState, error)

	// ChildCount returns how many elements matching child exist underneath
	// the first element matching container. Zero when the container itself
	// is absent.
	ChildCount(ctx context.Context, container, child ElementIdentifier) (int, error)
}

// Activator is the write side of the boundary: invoking the primary action
// of a located, interactable element. Activation re-resolves the identifier
// and acts in one synchronous check-then-act pair; handles are never cached
// across reads. When all is set, the action applies to every interactable
// match instead of only the first.
type Activator interface {
	Activate(ctx context.Context, id ElementIdentifier, all bool) error
}
