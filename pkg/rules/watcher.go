package rules

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/go-cmp/cmp"

	"github.com/starwell/voidvault-bridge/pkg/logging"
	"github.com/starwell/voidvault-bridge/pkg/policy"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("rules")
	if err != nil {
		debugLog.Warnf("Failed to initialize rules logger, using stderr fallback: %v", err)
	}
}

// DefaultDebounce is how long the rules file must be quiet before a reload.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads the rules file when it changes on disk and reports which
// domains' policies changed.
type Watcher struct {
	mu       sync.Mutex
	store    *Store
	watcher  *fsnotify.Watcher
	onChange func(domains []string)
	debounce time.Duration

	snapshot map[string]policy.Policy
	dirtyAt  time.Time
	dirty    bool

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// NewWatcher creates a watcher over store's file. onChange is called from the
// watcher goroutine with the sorted list of changed domains.
func NewWatcher(store *Store, onChange func(domains []string), opts ...WatcherOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		store:    store,
		watcher:  fw,
		onChange: onChange,
		debounce: DefaultDebounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start takes the initial snapshot and begins watching the file's directory.
// It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	snapshot, err := w.store.All()
	if err != nil {
		debugLog.Warnf("initial rules load failed, starting empty: %v", err)
		snapshot = map[string]policy.Policy{}
	}
	w.snapshot = snapshot

	// The directory is watched because atomic saves replace the file.
	if err := w.watcher.Add(filepath.Dir(w.store.Path())); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}
	debugLog.Infof("watching rules file %s", w.store.Path())

	go w.run(ctx)
	return nil
}

// Stop ends watching and waits for the goroutine to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		debugLog.Errorf("error closing rules watcher: %v", err)
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounce / 2
	if tick <= 0 {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	target := filepath.Clean(w.store.Path())
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.dirty = true
			w.dirtyAt = time.Now()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			debugLog.Errorf("rules watcher error: %v", err)
		case <-ticker.C:
			if w.dirty && time.Since(w.dirtyAt) >= w.debounce {
				w.dirty = false
				w.reload()
			}
		}
	}
}

func (w *Watcher) reload() {
	next, err := w.store.All()
	if err != nil {
		// Keep the previous snapshot; a half-edited file is not a change.
		debugLog.Warnf("rules reload failed: %v", err)
		return
	}

	changed := Diff(w.snapshot, next)
	w.snapshot = next
	if len(changed) == 0 {
		return
	}
	debugLog.Infof("rules changed for %d domain(s)", len(changed))
	if w.onChange != nil {
		w.onChange(changed)
	}
}

// Diff returns the sorted domains whose policy differs between old and next,
// including domains added or removed.
func Diff(old, next map[string]policy.Policy) []string {
	var changed []string
	for domain, p := range next {
		prev, ok := old[domain]
		if !ok || !cmp.Equal(prev, p) {
			changed = append(changed, domain)
		}
	}
	for domain := range old {
		if _, ok := next[domain]; !ok {
			changed = append(changed, domain)
		}
	}
	sort.Strings(changed)
	return changed
}
