// Package browser runs the field pipeline against real pages in a
// Playwright-driven Chromium.
package browser

import (
	"github.com/starwell/voidvault-bridge/pkg/field"
)

// Options configures the browser and the pages it opens.
type Options struct {
	// Headless controls whether the browser runs without a visible window
	Headless bool

	// Viewport sets the initial viewport size
	Viewport *Viewport

	// Timeout sets the default timeout for page operations (in milliseconds)
	Timeout float64

	// Toggle activates or finalizes the session on the focused field.
	Toggle field.Hotkey

	// Preview moves the focused field's domain to its next counter.
	Preview field.Hotkey

	// Confirmer approves counter changes. Nil uses an in-page dialog.
	Confirmer field.Confirmer
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}

// Default values for browser options
const (
	DefaultTimeout        = 30000.0 // 30 seconds in milliseconds
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
	DefaultMaxTabs        = 8
	DefaultToggleHotkey   = "Alt+Shift+P"
	DefaultPreviewHotkey  = "Alt+Shift+ArrowUp"

	// keyQueueSize bounds the page events waiting for a tab's worker.
	keyQueueSize = 256
)

// TabInfo contains metadata about an open tab.
type TabInfo struct {
	ID     string
	URL    string
	Domain string
	Active bool
}
