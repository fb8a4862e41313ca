// internal/browser/document.go
// Implements the document-state and activation boundaries (api/schemas
// DocumentReader and Activator) over CDP. Every read is one synchronous
// in-page evaluation; activation re-resolves the selector and clicks inside
// the same evaluation so a handle never crosses an asynchronous boundary.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/rvexel/feedcycler/api/schemas"
)

// Checks and activations are quick round-trips; nothing here should wait on
// page state, only report it.
const evaluateTimeout = 10 * time.Second

var (
	_ schemas.DocumentReader = (*Session)(nil)
	_ schemas.Activator      = (*Session)(nil)
)

// Inspect resolves the identifier in a single in-page read and reports the
// matched count plus the first match's visibility and enabled state.
func (s *Session) Inspect(ctx context.Context, id schemas.ElementIdentifier) (schemas.ElementState, error) {
	opCtx, cancel := context.WithTimeout(ctx, evaluateTimeout)
	defer cancel()

	var state schemas.ElementState
	if err := s.runActions(opCtx, chromedp.Evaluate(inspectScript(id), &state)); err != nil {
		return schemas.ElementState{}, fmt.Errorf("inspect %q: %w", id, err)
	}
	return state, nil
}

// ChildCount counts elements matching child under the first element
// matching container. Zero when the container is absent.
func (s *Session) ChildCount(ctx context.Context, container, child schemas.ElementIdentifier) (int, error) {
	opCtx, cancel := context.WithTimeout(ctx, evaluateTimeout)
	defer cancel()

	var count int
	if err := s.runActions(opCtx, chromedp.Evaluate(childCountScript(container, child), &count)); err != nil {
		return 0, fmt.Errorf("child count %q: %w", container, err)
	}
	return count, nil
}

// Activate re-resolves the identifier and clicks in one synchronous
// check-then-act evaluation. When all is set every interactable match is
// clicked, otherwise only the first. A page-side exception (for example the
// node detaching mid-click) surfaces as an error for the retry layer.
func (s *Session) Activate(ctx context.Context, id schemas.ElementIdentifier, all bool) error {
	opCtx, cancel := context.WithTimeout(ctx, evaluateTimeout)
	defer cancel()

	var clicked int
	if err := s.runActions(opCtx, chromedp.Evaluate(activateScript(id, all), &clicked)); err != nil {
		return fmt.Errorf("activate %q: %w", id, err)
	}
	if clicked == 0 {
		// The document mutated between the caller's probe and our click.
		return fmt.Errorf("activate %q: no interactable match at activation time", id)
	}
	s.logger.Debug("Activated element(s).",
		zap.String("selector", string(id)),
		zap.Int("clicked", clicked),
	)
	return nil
}

// quoteSelector embeds a selector into a script as a JS string literal.
func quoteSelector(id schemas.ElementIdentifier) string {
	b, err := json.Marshal(string(id))
	if err != nil {
		// Strings always marshal; keep the compiler happy.
		return `""`
	}
	return string(b)
}

// isInteractableJS is the in-page interactability predicate: attached,
// laid out, not hidden by computed style, and not disabled (natively or via
// aria-disabled).
const isInteractableJS = `function (el) {
		const style = window.getComputedStyle(el);
		const rect = el.getBoundingClientRect();
		const visible = style.display !== 'none' &&
			style.visibility !== 'hidden' &&
			rect.width > 0 && rect.height > 0;
		const enabled = !el.disabled && el.getAttribute('aria-disabled') !== 'true';
		return { visible: visible, enabled: enabled };
	}`

func inspectScript(id schemas.ElementIdentifier) string {
	return fmt.Sprintf(`(() => {
	const check = %s;
	const nodes = document.querySelectorAll(%s);
	if (nodes.length === 0) {
		return { matches: 0, visible: false, enabled: false };
	}
	const first = check(nodes[0]);
	return { matches: nodes.length, visible: first.visible, enabled: first.enabled };
})()`, isInteractableJS, quoteSelector(id))
}

func childCountScript(container, child schemas.ElementIdentifier) string {
	return fmt.Sprintf(`(() => {
	const root = document.querySelector(%s);
	if (!root) {
		return 0;
	}
	return root.querySelectorAll(%s).length;
})()`, quoteSelector(container), quoteSelector(child))
}

func activateScript(id schemas.ElementIdentifier, all bool) string {
	return fmt.Sprintf(`(() => {
	const check = %s;
	const nodes = Array.from(document.querySelectorAll(%s)).filter((el) => {
		const state = check(el);
		return state.visible && state.enabled;
	});
	if (nodes.length === 0) {
		return 0;
	}
	const targets = %t ? nodes : nodes.slice(0, 1);
	targets.forEach((el) => el.click());
	return targets.length;
})()`, isInteractableJS, quoteSelector(id), all)
}
