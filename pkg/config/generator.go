package config

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	// SectionIDGenerator is the identifier for the generator section
	SectionIDGenerator = "generator"

	// DefaultGeneratorTimeout bounds requests and one-shot queries.
	DefaultGeneratorTimeout = 5 * time.Second
)

// GeneratorSection locates the generator host and bounds how long the
// bridge waits on it.
type GeneratorSection struct {
	mu             sync.RWMutex
	hostPath       string
	account        string
	requestTimeout time.Duration
	queryTimeout   time.Duration
}

// NewGeneratorSection creates a generator section with default settings.
func NewGeneratorSection() *GeneratorSection {
	s := &GeneratorSection{}
	s.Reset()
	return s
}

func (s *GeneratorSection) ID() string {
	return SectionIDGenerator
}

func (s *GeneratorSection) Title() string {
	return "Generator"
}

func (s *GeneratorSection) Description() string {
	return "Path and account of the password generator host, and how long to wait for it"
}

func (s *GeneratorSection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]interface{}{
		"host_path":       s.hostPath,
		"account":         s.account,
		"request_timeout": s.requestTimeout.String(),
		"query_timeout":   s.queryTimeout.String(),
	}
}

func (s *GeneratorSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok, err := stringValue(data, "host_path"); err != nil {
		return err
	} else if ok {
		s.hostPath = v
	}
	if v, ok, err := stringValue(data, "account"); err != nil {
		return err
	} else if ok {
		s.account = v
	}
	if v, ok, err := durationValue(data, "request_timeout"); err != nil {
		return err
	} else if ok {
		s.requestTimeout = v
	}
	if v, ok, err := durationValue(data, "query_timeout"); err != nil {
		return err
	} else if ok {
		s.queryTimeout = v
	}
	return nil
}

func (s *GeneratorSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.requestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", s.requestTimeout)
	}
	if s.queryTimeout <= 0 {
		return fmt.Errorf("query_timeout must be positive, got %s", s.queryTimeout)
	}
	return nil
}

func (s *GeneratorSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hostPath = ""
	s.account = ""
	s.requestTimeout = DefaultGeneratorTimeout
	s.queryTimeout = DefaultGeneratorTimeout
}

// HostPath returns the generator executable, or "" when unset.
func (s *GeneratorSection) HostPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hostPath
}

// SetHostPath sets the generator executable.
func (s *GeneratorSection) SetHostPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hostPath = path
}

// Account returns the account passed to the host, or "".
func (s *GeneratorSection) Account() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account
}

// SetAccount sets the account passed to the host.
func (s *GeneratorSection) SetAccount(account string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = account
}

// RequestTimeout bounds waits on a session's channel.
func (s *GeneratorSection) RequestTimeout() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requestTimeout
}

// QueryTimeout bounds one-shot exchanges.
func (s *GeneratorSection) QueryTimeout() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryTimeout
}

// ErrNoHost is returned when no generator host path is configured.
var ErrNoHost = errors.New("generator host path is not configured")

// RequireHost returns the host path or ErrNoHost.
func (s *GeneratorSection) RequireHost() (string, error) {
	path := s.HostPath()
	if path == "" {
		return "", ErrNoHost
	}
	return path, nil
}
