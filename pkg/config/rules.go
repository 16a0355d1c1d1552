package config

import "sync"

const (
	// SectionIDRules is the identifier for the rules section
	SectionIDRules = "rules"
)

// RulesSection locates the per-domain policy file.
type RulesSection struct {
	mu    sync.RWMutex
	path  string
	watch bool
}

// NewRulesSection creates a rules section with default settings.
func NewRulesSection() *RulesSection {
	s := &RulesSection{}
	s.Reset()
	return s
}

func (s *RulesSection) ID() string {
	return SectionIDRules
}

func (s *RulesSection) Title() string {
	return "Password Rules"
}

func (s *RulesSection) Description() string {
	return "Where per-domain password policies are stored, and whether edits made while running reset the affected sessions"
}

func (s *RulesSection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]interface{}{
		"path":  s.path,
		"watch": s.watch,
	}
}

func (s *RulesSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok, err := stringValue(data, "path"); err != nil {
		return err
	} else if ok {
		s.path = v
	}
	if v, ok, err := boolValue(data, "watch"); err != nil {
		return err
	} else if ok {
		s.watch = v
	}
	return nil
}

// Validate always passes; an empty path means the default location.
func (s *RulesSection) Validate() error {
	return nil
}

func (s *RulesSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.path = ""
	s.watch = true
}

// Path returns the rules file, or "" for the default location.
func (s *RulesSection) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

// Watch reports whether the rules file is watched for changes.
func (s *RulesSection) Watch() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.watch
}
