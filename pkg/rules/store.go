// Package rules persists the per-domain policy overrides edited by the
// settings surface and watches the file for changes.
package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/starwell/voidvault-bridge/pkg/policy"
)

// Store is a JSON file holding one object that maps domain to policy:
//
//	{"example.com": {"enabled": true, "maxLength": 16, "allowedClasses": ["lowercase", "digit"]}}
//
// Every operation reads the whole file and rewrites it atomically. There is no
// cross-process locking; the last writer wins.
type Store struct {
	path string
	mu   sync.Mutex
}

// DefaultPath returns ~/.voidvault/rules.json.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".voidvault", "rules.json"), nil
}

// NewStore opens the rules file at path, or the default path when empty. A
// missing file is not an error.
func NewStore(path string) (*Store, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return &Store{path: path}, nil
}

// NormalizeDomain lowercases and trims a domain key.
func NormalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}

// Path returns the rules file location.
func (s *Store) Path() string {
	return s.path
}

// Get returns the stored policy for domain, or nil when there is none.
func (s *Store) Get(domain string) (*policy.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	domains, err := s.load()
	if err != nil {
		return nil, err
	}
	p, ok := domains[NormalizeDomain(domain)]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// Set stores p for domain after validating it.
func (s *Store) Set(domain string, p policy.Policy) error {
	key := NormalizeDomain(domain)
	if key == "" {
		return errors.New("domain cannot be empty")
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid policy for %s: %w", key, err)
	}
	p.AllowedClasses = lo.Uniq(p.AllowedClasses)
	if p.AllowedClasses == nil {
		p.AllowedClasses = []policy.Class{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	domains, err := s.load()
	if err != nil {
		return err
	}
	domains[key] = p
	return s.save(domains)
}

// Delete removes the policy for domain. Deleting an absent domain is a no-op.
func (s *Store) Delete(domain string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	domains, err := s.load()
	if err != nil {
		return err
	}
	key := NormalizeDomain(domain)
	if _, ok := domains[key]; !ok {
		return nil
	}
	delete(domains, key)
	return s.save(domains)
}

// All returns every stored policy keyed by normalized domain.
func (s *Store) All() (map[string]policy.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load()
}

func (s *Store) load() (map[string]policy.Policy, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]policy.Policy), nil
		}
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	if err := ValidateDocument(data); err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}

	var raw map[string]policy.Policy
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode rules file: %w", err)
	}
	domains := make(map[string]policy.Policy, len(raw))
	for domain, p := range raw {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%s: invalid policy for %s: %w", s.path, domain, err)
		}
		domains[NormalizeDomain(domain)] = p
	}
	return domains, nil
}

func (s *Store) save(domains map[string]policy.Policy) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return fmt.Errorf("failed to create rules directory: %w", err)
	}

	data, err := json.MarshalIndent(domains, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode rules: %w", err)
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temp rules file: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp rules file: %w", err)
	}
	return nil
}
