package config

import (
	"fmt"
	"time"
)

// Section data arrives from JSON (numbers as float64) and from YAML
// (numbers as int), so the readers below accept both.

func stringValue(data map[string]interface{}, key string) (string, bool, error) {
	raw, ok := data[key]
	if !ok || raw == nil {
		return "", false, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", false, fmt.Errorf("invalid %s: expected string, got %T", key, raw)
	}
	return s, true, nil
}

func boolValue(data map[string]interface{}, key string) (bool, bool, error) {
	raw, ok := data[key]
	if !ok || raw == nil {
		return false, false, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, false, fmt.Errorf("invalid %s: expected boolean, got %T", key, raw)
	}
	return b, true, nil
}

// durationValue reads a Go duration string, or a number of milliseconds.
func durationValue(data map[string]interface{}, key string) (time.Duration, bool, error) {
	raw, ok := data[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, false, fmt.Errorf("invalid %s: %w", key, err)
		}
		return d, true, nil
	case float64:
		return time.Duration(v * float64(time.Millisecond)), true, nil
	case int:
		return time.Duration(v) * time.Millisecond, true, nil
	case int64:
		return time.Duration(v) * time.Millisecond, true, nil
	default:
		return 0, false, fmt.Errorf("invalid %s: expected duration, got %T", key, raw)
	}
}

func stringSliceValue(data map[string]interface{}, key string) ([]string, bool, error) {
	raw, ok := data[key]
	if !ok || raw == nil {
		return nil, false, nil
	}
	switch v := raw.(type) {
	case []string:
		return append([]string(nil), v...), true, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false, fmt.Errorf("invalid %s at index %d: expected string, got %T", key, i, item)
			}
			out = append(out, s)
		}
		return out, true, nil
	default:
		return nil, false, fmt.Errorf("invalid %s type: expected list, got %T", key, raw)
	}
}
