package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"github.com/samber/lo"

	"github.com/starwell/voidvault-bridge/pkg/field"
)

const (
	// SectionIDActivation is the identifier for the activation section
	SectionIDActivation = "activation"

	DefaultToggleHotkey  = "Alt+Shift+P"
	DefaultPreviewHotkey = "Alt+Shift+ArrowUp"
)

// ActivationSection holds the hotkeys and the domains activation is
// refused on. Exclusions are globs over dot-separated hostnames, so
// "*.bank.example" covers one label and "**.bank.example" any depth.
type ActivationSection struct {
	mu             sync.RWMutex
	toggleHotkey   string
	previewHotkey  string
	excludeDomains []string
	compiled       []glob.Glob
}

// NewActivationSection creates an activation section with default settings.
func NewActivationSection() *ActivationSection {
	s := &ActivationSection{}
	s.Reset()
	return s
}

func (s *ActivationSection) ID() string {
	return SectionIDActivation
}

func (s *ActivationSection) Title() string {
	return "Activation"
}

func (s *ActivationSection) Description() string {
	return "Hotkeys that toggle and preview a session, and domains the bridge never activates on"
}

func (s *ActivationSection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	excluded := make([]interface{}, len(s.excludeDomains))
	for i, d := range s.excludeDomains {
		excluded[i] = d
	}
	return map[string]interface{}{
		"toggle_hotkey":   s.toggleHotkey,
		"preview_hotkey":  s.previewHotkey,
		"exclude_domains": excluded,
	}
}

func (s *ActivationSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok, err := stringValue(data, "toggle_hotkey"); err != nil {
		return err
	} else if ok {
		s.toggleHotkey = v
	}
	if v, ok, err := stringValue(data, "preview_hotkey"); err != nil {
		return err
	} else if ok {
		s.previewHotkey = v
	}
	if v, ok, err := stringSliceValue(data, "exclude_domains"); err != nil {
		return err
	} else if ok {
		compiled, err := compileDomainGlobs(v)
		if err != nil {
			return err
		}
		s.excludeDomains, s.compiled = v, compiled
	}
	return nil
}

func compileDomainGlobs(patterns []string) ([]glob.Glob, error) {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(strings.ToLower(strings.TrimSpace(p)), '.')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		compiled = append(compiled, g)
	}
	return compiled, nil
}

func (s *ActivationSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	toggle, err := field.ParseHotkey(s.toggleHotkey)
	if err != nil {
		return fmt.Errorf("toggle_hotkey: %w", err)
	}
	preview, err := field.ParseHotkey(s.previewHotkey)
	if err != nil {
		return fmt.Errorf("preview_hotkey: %w", err)
	}
	if toggle == preview {
		return fmt.Errorf("toggle_hotkey and preview_hotkey are both %s", toggle)
	}
	return nil
}

func (s *ActivationSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toggleHotkey = DefaultToggleHotkey
	s.previewHotkey = DefaultPreviewHotkey
	s.excludeDomains = nil
	s.compiled = nil
}

// Hotkeys parses the configured toggle and preview chords.
func (s *ActivationSection) Hotkeys() (toggle, preview field.Hotkey, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if toggle, err = field.ParseHotkey(s.toggleHotkey); err != nil {
		return
	}
	preview, err = field.ParseHotkey(s.previewHotkey)
	return
}

// IsExcluded reports whether domain matches an exclusion pattern.
func (s *ActivationSection) IsExcluded(domain string) bool {
	domain = strings.ToLower(strings.TrimSpace(domain))
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.SomeBy(s.compiled, func(g glob.Glob) bool {
		return g.Match(domain)
	})
}

// AddExclusion appends pattern unless it is already present.
func (s *ActivationSection) AddExclusion(pattern string) error {
	compiled, err := compileDomainGlobs([]string{pattern})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if lo.Contains(s.excludeDomains, pattern) {
		return fmt.Errorf("pattern %q already excluded", pattern)
	}
	s.excludeDomains = append(s.excludeDomains, pattern)
	s.compiled = append(s.compiled, compiled[0])
	return nil
}

// RemoveExclusion drops pattern.
func (s *ActivationSection) RemoveExclusion(pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := lo.IndexOf(s.excludeDomains, pattern)
	if i < 0 {
		return fmt.Errorf("pattern %q not found", pattern)
	}
	s.excludeDomains = append(s.excludeDomains[:i:i], s.excludeDomains[i+1:]...)
	s.compiled = append(s.compiled[:i:i], s.compiled[i+1:]...)
	return nil
}

// Exclusions returns a copy of the exclusion patterns.
func (s *ActivationSection) Exclusions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.excludeDomains...)
}
