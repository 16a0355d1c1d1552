package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadOverrides applies a YAML file keyed by section ID on top of m's
// current settings. Overrides are not written back to the JSON store.
//
//	generator:
//	  host_path: /usr/local/bin/voidvault-host
//	  request_timeout: 10s
//	activation:
//	  exclude_domains: ["**.bank.example"]
func LoadOverrides(m *Manager, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read overrides: %w", err)
	}

	var doc map[string]map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse overrides %s: %w", path, err)
	}

	for id, values := range doc {
		section, ok := m.GetSection(id)
		if !ok {
			return fmt.Errorf("overrides %s: unknown section %q", path, id)
		}
		if err := section.SetData(values); err != nil {
			return fmt.Errorf("overrides %s: section %s: %w", path, id, err)
		}
		if err := section.Validate(); err != nil {
			return fmt.Errorf("overrides %s: invalid %s settings: %w", path, id, err)
		}
	}
	return nil
}
