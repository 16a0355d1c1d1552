package browser

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"

	"github.com/starwell/voidvault-bridge/pkg/field"
	"github.com/starwell/voidvault-bridge/pkg/logging"
	"github.com/starwell/voidvault-bridge/pkg/session"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("browser")
	if err != nil {
		debugLog.Warnf("Failed to initialize browser logger, using stderr fallback: %v", err)
	}
}

// Manager owns the Playwright browser and every tab opened in it.
type Manager struct {
	mu          sync.RWMutex
	tabs        map[session.TabID]*Tab
	sessions    *session.Controller
	opts        Options
	script      string
	maxTabs     int
	playwright  *playwright.Playwright
	browser     playwright.Browser
	context     playwright.BrowserContext
	initialized bool
}

// NewManager creates a manager whose tabs drive sessions.
func NewManager(sessions *session.Controller, opts Options) *Manager {
	return &Manager{
		tabs:     make(map[session.TabID]*Tab),
		sessions: sessions,
		opts:     opts,
		maxTabs:  DefaultMaxTabs,
	}
}

// Initialize installs and starts Playwright and launches Chromium. It must
// be called before OpenTab.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	if m.opts.Viewport == nil {
		m.opts.Viewport = &Viewport{
			Width:  DefaultViewportWidth,
			Height: DefaultViewportHeight,
		}
	}
	if m.opts.Timeout == 0 {
		m.opts.Timeout = DefaultTimeout
	}
	if m.opts.Toggle.Key == "" {
		m.opts.Toggle, _ = field.ParseHotkey(DefaultToggleHotkey)
	}
	if m.opts.Preview.Key == "" {
		m.opts.Preview, _ = field.ParseHotkey(DefaultPreviewHotkey)
	}
	script, err := buildCaptureScript(m.opts.Toggle, m.opts.Preview)
	if err != nil {
		return err
	}
	m.script = script

	// Keep Playwright's own output off the terminal
	runOpts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}
	if err := playwright.Install(runOpts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(m.opts.Headless),
	})
	if err != nil {
		pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  m.opts.Viewport.Width,
			Height: m.opts.Viewport.Height,
		},
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return fmt.Errorf("failed to create context: %w", err)
	}

	m.playwright = pw
	m.browser = browser
	m.context = bctx
	m.initialized = true
	return nil
}

// OpenTab opens url in a new page with the capture script installed and a
// field controller attached.
func (m *Manager) OpenTab(ctx context.Context, url string) (*Tab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return nil, fmt.Errorf("browser manager not initialized")
	}
	if len(m.tabs) >= m.maxTabs {
		return nil, fmt.Errorf("maximum number of tabs (%d) reached", m.maxTabs)
	}

	page, err := m.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(m.opts.Timeout)

	tab := newTab(session.TabID(uuid.NewString()), page, m.sessions)
	confirm := m.opts.Confirmer
	if confirm == nil {
		confirm = NewDialogConfirmer(page)
	}
	tab.field = field.NewController(tab.id, tab, m.sessions, confirm)

	if err := page.ExposeBinding(bindingName, tab.onBinding); err != nil {
		tab.close()
		page.Close()
		return nil, fmt.Errorf("failed to expose binding: %w", err)
	}
	if err := page.AddInitScript(playwright.Script{Content: playwright.String(m.script)}); err != nil {
		tab.close()
		page.Close()
		return nil, fmt.Errorf("failed to add capture script: %w", err)
	}
	page.OnFrameNavigated(tab.onNavigated)
	page.OnClose(func(playwright.Page) {
		go m.forget(tab.id)
	})

	tab.wg.Add(1)
	go tab.run(context.WithoutCancel(ctx))

	if _, err := page.Goto(url); err != nil {
		tab.close()
		page.Close()
		return nil, fmt.Errorf("navigation failed: %w", err)
	}

	m.tabs[tab.id] = tab
	debugLog.Infof("opened tab %s on %s", tab.id, tab.Domain())
	return tab, nil
}

// forget drops a tab whose page was closed by the user.
func (m *Manager) forget(id session.TabID) {
	m.mu.Lock()
	tab, exists := m.tabs[id]
	delete(m.tabs, id)
	m.mu.Unlock()
	if exists {
		tab.close()
	}
}

// CloseTab closes and removes a tab.
func (m *Manager) CloseTab(id session.TabID) error {
	m.mu.Lock()
	tab, exists := m.tabs[id]
	delete(m.tabs, id)
	m.mu.Unlock()

	if !exists {
		return fmt.Errorf("tab %q not found", id)
	}
	tab.close()
	_ = tab.page.Close() // Ignore errors, continue cleanup
	return nil
}

// GetTab retrieves an open tab.
func (m *Manager) GetTab(id session.TabID) (*Tab, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tab, exists := m.tabs[id]
	if !exists {
		return nil, fmt.Errorf("tab %q not found", id)
	}
	return tab, nil
}

// ListTabs returns information about all open tabs.
func (m *Manager) ListTabs() []TabInfo {
	m.mu.RLock()
	tabs := make([]*Tab, 0, len(m.tabs))
	for _, tab := range m.tabs {
		tabs = append(tabs, tab)
	}
	m.mu.RUnlock()

	infos := make([]TabInfo, 0, len(tabs))
	for _, tab := range tabs {
		_, active := m.sessions.State(tab.id)
		infos = append(infos, TabInfo{
			ID:     string(tab.id),
			URL:    tab.URL(),
			Domain: tab.Domain(),
			Active: active,
		})
	}
	return infos
}

// HasTabs returns true if any tab is still open.
func (m *Manager) HasTabs() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tabs) > 0
}

// Wait blocks until every tab has been closed or ctx ends.
func (m *Manager) Wait(ctx context.Context) error {
	for {
		m.mu.RLock()
		var next *Tab
		for _, tab := range m.tabs {
			next = tab
			break
		}
		m.mu.RUnlock()

		if next == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-next.Done():
		}
	}
}

// SetMaxTabs sets the maximum number of concurrently open tabs.
func (m *Manager) SetMaxTabs(max int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxTabs = max
}

// Shutdown closes all tabs and stops Playwright.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	tabs := m.tabs
	m.tabs = make(map[session.TabID]*Tab)
	m.mu.Unlock()

	for _, tab := range tabs {
		tab.close()
		_ = tab.page.Close()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return nil
	}
	m.initialized = false
	if m.context != nil {
		_ = m.context.Close()
	}
	if m.browser != nil {
		_ = m.browser.Close()
	}
	if err := m.playwright.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}
