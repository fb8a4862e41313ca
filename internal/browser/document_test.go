package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvexel/feedcycler/api/schemas"
)

func TestQuoteSelectorEscapesHostileInput(t *testing.T) {
	testCases := []struct {
		name     string
		selector schemas.ElementIdentifier
		expected string
	}{
		{
			name:     "Plain selector passes through",
			selector: `button.like-action`,
			expected: `"button.like-action"`,
		},
		{
			name:     "Embedded quotes are escaped",
			selector: `a[aria-label="Next item"]`,
			expected: `"a[aria-label=\"Next item\"]"`,
		},
		{
			name:     "Script breakout attempt stays inert",
			selector: `"); el.click(); ("`,
			expected: `"\"); el.click(); (\""`,
		},
		{
			name:     "Newlines do not split the literal",
			selector: "div\n.child",
			expected: `"div\n.child"`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, quoteSelector(tc.selector))
		})
	}
}

func TestSplitFlagHandlesValuedArgs(t *testing.T) {
	testCases := []struct {
		name    string
		arg     string
		wantKey string
		wantVal interface{}
	}{
		{name: "Bare switch", arg: "disable-gpu", wantKey: "disable-gpu", wantVal: true},
		{name: "Valued arg", arg: "proxy-server=http://127.0.0.1:8080", wantKey: "proxy-server", wantVal: "http://127.0.0.1:8080"},
		{name: "Value containing equals", arg: "js-flags=--max-old-space-size=512", wantKey: "js-flags", wantVal: "--max-old-space-size=512"},
		{name: "Leading dashes stripped", arg: "--no-sandbox", wantKey: "no-sandbox", wantVal: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			key, val := splitFlag(tc.arg)
			assert.Equal(t, tc.wantKey, key)
			assert.Equal(t, tc.wantVal, val)
		})
	}
}

func TestInspectScriptShape(t *testing.T) {
	script := inspectScript(`div[data-id="x"]`)

	require.Contains(t, script, `querySelectorAll("div[data-id=\"x\"]")`)
	assert.Contains(t, script, "matches: 0, visible: false, enabled: false",
		"the absent case must report a zero state rather than throw")
	assert.Contains(t, script, "matches: nodes.length")
	assert.NotContains(t, script, ".click(", "inspection must never mutate the page")
}

func TestChildCountScriptShape(t *testing.T) {
	script := childCountScript("ul.feed", "li.item")

	require.Contains(t, script, `querySelector("ul.feed")`)
	require.Contains(t, script, `querySelectorAll("li.item")`)
	assert.Contains(t, script, "return 0", "an absent container must count as zero")
}

func TestActivateScriptTargetSelection(t *testing.T) {
	single := activateScript("button.advance", false)
	every := activateScript("button.dismiss", true)

	require.Contains(t, single, `querySelectorAll("button.advance")`)
	assert.Contains(t, single, "false ? nodes : nodes.slice(0, 1)")
	assert.Contains(t, every, "true ? nodes : nodes.slice(0, 1)")

	// Both variants filter on interactability before clicking.
	for _, script := range []string{single, every} {
		assert.Contains(t, script, "state.visible && state.enabled")
		assert.Contains(t, script, "el.click()")
	}
}
