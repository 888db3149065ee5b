package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidationResult holds validation errors and warnings
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// ValidationError represents a validation issue
type ValidationError struct {
	Path    string
	Message string
}

// IsValid returns true if there are no errors
func (v *ValidationResult) IsValid() bool {
	return len(v.Errors) == 0
}

var secretFields = map[string]bool{
	"storage.durable.redisUrl":      true,
	"storage.durable.encryptionKey": true,
}

// ValidateFile validates a config file structure without requiring env vars
func ValidateFile(path string) (*ValidationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return ValidateBytes(data), nil
}

// ValidateBytes is ValidateFile on already-read content
func ValidateBytes(data []byte) *ValidationResult {
	result := &ValidationResult{}

	var rawConfig map[string]any
	if err := yaml.Unmarshal(data, &rawConfig); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Message: fmt.Sprintf("invalid YAML: %v", err),
		})
		return result
	}

	checkBashStyleSyntax(rawConfig, "", result)
	validateIdentityProviderStructure(rawConfig, result)
	validateStorageStructure(rawConfig, result)

	return result
}

func validateIdentityProviderStructure(rawConfig map[string]any, result *ValidationResult) {
	idp, ok := rawConfig["identityProvider"].(map[string]any)
	if !ok {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "identityProvider",
			Message: "identityProvider field is required and must be an object",
		})
		return
	}

	for _, field := range []string{"domain", "clientId"} {
		if v, _ := idp[field].(string); strings.TrimSpace(v) == "" {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "identityProvider." + field,
				Message: field + " is required",
			})
		}
	}

	uris, ok := idp["redirectUris"].([]any)
	if !ok || len(uris) == 0 {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "identityProvider.redirectUris",
			Message: "at least one redirect URI is required",
		})
		return
	}
	for i, u := range uris {
		s, _ := u.(string)
		if !strings.HasPrefix(s, "https://") && !strings.HasPrefix(s, "http://") {
			result.Errors = append(result.Errors, ValidationError{
				Path:    fmt.Sprintf("identityProvider.redirectUris[%d]", i),
				Message: fmt.Sprintf("redirect URI %q must be an absolute http(s) URL", s),
			})
		}
	}

	if d, _ := idp["domain"].(string); strings.HasPrefix(d, "http://") {
		result.Warnings = append(result.Warnings, ValidationError{
			Path:    "identityProvider.domain",
			Message: "plain http domain is only accepted with MINIDP_ENV=development",
		})
	}
}

func validateStorageStructure(rawConfig map[string]any, result *ValidationResult) {
	storage, ok := rawConfig["storage"].(map[string]any)
	if !ok {
		return
	}
	durable, ok := storage["durable"].(map[string]any)
	if !ok {
		return
	}
	for field := range durable {
		path := "storage.durable." + field
		if !secretFields[path] {
			continue
		}
		if _, isString := durable[field].(string); isString {
			result.Warnings = append(result.Warnings, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("%s is a literal value; prefer {\"$env\": \"VAR_NAME\"}", field),
			})
		}
	}
	kind, _ := durable["kind"].(string)
	switch StorageKind(kind) {
	case "", StorageKindMemory, StorageKindFile, StorageKindSQLite, StorageKindRedis, StorageKindFirestore:
	default:
		result.Errors = append(result.Errors, ValidationError{
			Path:    "storage.durable.kind",
			Message: fmt.Sprintf("unknown storage kind %q", kind),
		})
	}
}

var bashStyleRegex = regexp.MustCompile(`\$\{?[A-Z_][A-Z0-9_]*\}?`)

// checkBashStyleSyntax warns about $VAR strings that look like env references
func checkBashStyleSyntax(value any, path string, result *ValidationResult) {
	switch v := value.(type) {
	case string:
		for _, match := range bashStyleRegex.FindAllString(v, -1) {
			varName := strings.Trim(match, "${}")
			result.Warnings = append(result.Warnings, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead", match, varName),
			})
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; hasEnv {
			return
		}
		for key, val := range v {
			newPath := key
			if path != "" {
				newPath = path + "." + key
			}
			checkBashStyleSyntax(val, newPath, result)
		}
	case []any:
		for i, item := range v {
			checkBashStyleSyntax(item, fmt.Sprintf("%s[%d]", path, i), result)
		}
	}
}
