package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/samber/lo"
)

// Store persists section data for a Manager.
type Store interface {
	Load() error
	Save() error

	// GetSection returns one section's values; unknown sections are empty.
	GetSection(sectionID string) (map[string]interface{}, error)
	SetSection(sectionID string, data map[string]interface{}) error

	GetAll() (map[string]map[string]interface{}, error)
	SetAll(data map[string]map[string]interface{}) error
}

// storeVersion is written to every saved file.
const storeVersion = "1"

// settingsFile is the on-disk layout of config.json.
type settingsFile struct {
	Version  string                            `json:"version"`
	Sections map[string]map[string]interface{} `json:"sections"`
}

// FileStore keeps every section in one JSON file, rewritten whole on Save.
// The file holds the generator account name, so it is owner-only.
type FileStore struct {
	path string

	mu       sync.RWMutex
	sections map[string]map[string]interface{}
	version  string
	dirty    bool
}

// DefaultPath returns ~/.voidvault/config.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".voidvault", "config.json"), nil
}

// NewFileStore opens the settings file at path, or DefaultPath when path is
// empty. A missing file is an empty store.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	s := &FileStore{
		path:     path,
		sections: map[string]map[string]interface{}{},
		version:  storeVersion,
	}
	if err := s.Load(); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return s, nil
}

// Load replaces the in-memory sections with the file's contents.
func (s *FileStore) Load() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.mu.Lock()
		s.sections = map[string]map[string]interface{}{}
		s.dirty = false
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var doc settingsFile
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to decode config file: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections = lo.Ternary(doc.Sections != nil, doc.Sections, map[string]map[string]interface{}{})
	if doc.Version != "" {
		s.version = doc.Version
	}
	s.dirty = false
	return nil
}

// Save writes every section through a temp file renamed over the target.
func (s *FileStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.MarshalIndent(settingsFile{Version: storeVersion, Sections: s.sections}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := writeFileAtomic(s.path, append(raw, '\n')); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// CreateTemp opens with 0600.
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp config file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp config file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}

func (s *FileStore) GetSection(sectionID string) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Assign(s.sections[sectionID]), nil
}

func (s *FileStore) SetSection(sectionID string, data map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections[sectionID] = lo.Assign(data)
	s.dirty = true
	return nil
}

func (s *FileStore) GetAll() (map[string]map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSections(s.sections), nil
}

func (s *FileStore) SetAll(data map[string]map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections = cloneSections(data)
	s.dirty = true
	return nil
}

func cloneSections(data map[string]map[string]interface{}) map[string]map[string]interface{} {
	return lo.MapValues(data, func(section map[string]interface{}, _ string) map[string]interface{} {
		return lo.Assign(section)
	})
}

// IsModified reports whether sections changed since the last Load or Save.
func (s *FileStore) IsModified() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// Path returns the settings file location.
func (s *FileStore) Path() string {
	return s.path
}

// Version returns the format version read from disk.
func (s *FileStore) Version() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}
