// Package config holds the bridge's persisted settings: sections stored in
// a JSON file, optionally overlaid by a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/joho/godotenv"
)

const (
	// EnvHost overrides the generator host path.
	EnvHost = "VOIDVAULT_HOST"

	// EnvAccount overrides the generator account.
	EnvAccount = "VOIDVAULT_ACCOUNT"
)

var (
	// globalManager is the singleton configuration manager instance
	globalManager *Manager
	globalMu      sync.Mutex
)

// New builds a manager with every bridge section registered and loads it
// from the file at configPath (DefaultPath when empty).
func New(configPath string) (*Manager, error) {
	store, err := NewFileStore(configPath)
	if err != nil {
		return nil, err
	}

	manager := NewManager(store)
	for _, section := range []Section{
		NewGeneratorSection(),
		NewActivationSection(),
		NewRulesSection(),
	} {
		if err := manager.RegisterSection(section); err != nil {
			return nil, err
		}
	}

	if err := manager.LoadAll(); err != nil {
		return nil, err
	}
	return manager, nil
}

// Initialize creates the global configuration manager.
// This should be called once at application startup.
func Initialize(configPath string) error {
	manager, err := New(configPath)
	if err != nil {
		return err
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	globalManager = manager
	return nil
}

// Global returns the global configuration manager.
// Panics if Initialize has not been called.
func Global() *Manager {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalManager == nil {
		panic("config not initialized: call config.Initialize first")
	}
	return globalManager
}

// IsInitialized returns true if the global configuration has been initialized.
func IsInitialized() bool {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalManager != nil
}

// Generator returns m's generator section.
func (m *Manager) Generator() *GeneratorSection {
	return sectionAs[*GeneratorSection](m, SectionIDGenerator)
}

// Activation returns m's activation section.
func (m *Manager) Activation() *ActivationSection {
	return sectionAs[*ActivationSection](m, SectionIDActivation)
}

// Rules returns m's rules section.
func (m *Manager) Rules() *RulesSection {
	return sectionAs[*RulesSection](m, SectionIDRules)
}

func sectionAs[T Section](m *Manager, id string) T {
	var zero T
	section, ok := m.GetSection(id)
	if !ok {
		return zero
	}
	typed, ok := section.(T)
	if !ok {
		return zero
	}
	return typed
}

// GetGenerator returns the generator section from global config.
// Returns nil if config is not initialized.
func GetGenerator() *GeneratorSection {
	if !IsInitialized() {
		return nil
	}
	return Global().Generator()
}

// GetActivation returns the activation section from global config.
// Returns nil if config is not initialized.
func GetActivation() *ActivationSection {
	if !IsInitialized() {
		return nil
	}
	return Global().Activation()
}

// GetRules returns the rules section from global config.
// Returns nil if config is not initialized.
func GetRules() *RulesSection {
	if !IsInitialized() {
		return nil
	}
	return Global().Rules()
}

// LoadEnv reads KEY=value files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv copies the VOIDVAULT_* overrides into m's sections.
func ApplyEnv(m *Manager) {
	gen := m.Generator()
	if gen == nil {
		return
	}
	if host := os.Getenv(EnvHost); host != "" {
		gen.SetHostPath(host)
	}
	if account := os.Getenv(EnvAccount); account != "" {
		gen.SetAccount(account)
	}
}
