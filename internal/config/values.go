package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// ToMap converts cfg into a nested map keyed by JSON field names.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return m, nil
}

// ListValues returns every setting of cfg under its dot-separated key.
func ListValues(cfg *Config) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	return Flatten(m), nil
}

// GetValue loads the config at path and returns the value of a
// dot-separated key.
func GetValue(path, key string) (any, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	flat, err := ListValues(cfg)
	if err != nil {
		return nil, err
	}
	v, ok := flat[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return v, nil
}

// SetValue sets a dot-separated key in the config file at path. The raw
// value is parsed as JSON when possible so numbers and booleans keep their
// type; anything else is stored as a string. Unknown keys are kept.
func SetValue(path, key, raw string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		value = raw
	}

	flat := Flatten(m)
	flat[key] = value

	out, err := json.MarshalIndent(Unflatten(flat), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeAtomic(path, append(out, '\n'))
}
