package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RawConfigValue is a config value after reference resolution
type RawConfigValue struct {
	value string
	isRef bool
}

// Value returns the resolved string
func (r *RawConfigValue) Value() string { return r.value }

// ParseConfigValue resolves a plain string or a {"$env": "VAR"} reference.
//
// Secrets are written as explicit env references rather than $VAR so that
// shells and CI templating never expand them before the file is parsed.
func ParseConfigValue(raw json.RawMessage) (*RawConfigValue, error) {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return &RawConfigValue{value: str}, nil
	}

	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return nil, fmt.Errorf("config value must be string or reference object")
	}
	return resolveRef(ref)
}

func resolveRef(ref map[string]string) (*RawConfigValue, error) {
	envVar, ok := ref["$env"]
	if !ok {
		return nil, fmt.Errorf("unknown reference type in config value")
	}
	value := os.Getenv(envVar)
	if value == "" {
		return nil, fmt.Errorf("environment variable %s not set", envVar)
	}
	// Strip surrounding quotes if present (only matching pairs)
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			value = value[1 : len(value)-1]
		}
	}
	return &RawConfigValue{value: value, isRef: true}, nil
}

// UnmarshalJSON accepts a plain string or an env reference
func (s *Secret) UnmarshalJSON(data []byte) error {
	parsed, err := ParseConfigValue(data)
	if err != nil {
		return err
	}
	*s = Secret(parsed.value)
	return nil
}

// UnmarshalYAML accepts a plain scalar or a {$env: VAR} mapping
func (s *Secret) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = Secret(node.Value)
		return nil
	case yaml.MappingNode:
		var ref map[string]string
		if err := node.Decode(&ref); err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		parsed, err := resolveRef(ref)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*s = Secret(parsed.value)
		return nil
	default:
		return fmt.Errorf("line %d: config value must be string or reference object", node.Line)
	}
}

// MarshalYAML keeps secrets out of generated files
func (s Secret) MarshalYAML() (any, error) {
	if s == "" {
		return "", nil
	}
	return "***", nil
}
