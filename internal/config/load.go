package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/dgellow/minidp/internal/envutil"
	"github.com/dgellow/minidp/internal/log"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// DefaultCallbackTimeout bounds how long login waits for the IdP redirect
const DefaultCallbackTimeout = 5 * time.Minute

// Load reads a YAML (or JSON) config file, resolves env references,
// applies defaults and validates the result
func Load(path string) (Config, error) {
	return LoadWithDefaults(path, nil)
}

// LoadWithDefaults is Load with prefill run before the built-in defaults,
// so a host can choose its own values for unset fields
func LoadWithDefaults(path string, prefill func(*Config)) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return ParseWithDefaults(data, prefill)
}

// Parse is Load without the file read
func Parse(data []byte) (Config, error) {
	return ParseWithDefaults(data, nil)
}

// ParseWithDefaults is LoadWithDefaults without the file read
func ParseWithDefaults(data []byte, prefill func(*Config)) (Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	if prefill != nil {
		prefill(&config)
	}
	ApplyDefaults(&config)

	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// FileStorageDefaults returns a prefill that puts unset durable and
// session storage in files under dir
func FileStorageDefaults(dir string) func(*Config) {
	return func(config *Config) {
		if config.Storage.Durable.Kind == "" {
			config.Storage.Durable.Kind = StorageKindFile
			if config.Storage.Durable.Path == "" {
				config.Storage.Durable.Path = filepath.Join(dir, "tokens.json")
			}
		}
		if config.Storage.Session.Kind == "" {
			config.Storage.Session.Kind = StorageKindFile
			if config.Storage.Session.Path == "" {
				config.Storage.Session.Path = filepath.Join(dir, "session.json")
			}
		}
	}
}

// ApplyDefaults fills in storage kinds and the callback path
func ApplyDefaults(config *Config) {
	if config.Storage.Durable.Kind == "" {
		config.Storage.Durable.Kind = StorageKindMemory
	}
	if config.Storage.Session.Kind == "" {
		config.Storage.Session.Kind = StorageKindMemory
	}
	if config.Storage.Durable.Collection == "" {
		config.Storage.Durable.Collection = "minidp_kv"
	}
	if config.Callback.Timeout == "" {
		config.Callback.Timeout = DefaultCallbackTimeout.String()
	}
}

// CallbackTimeout parses Callback.Timeout, falling back to the default
func (c Config) CallbackTimeout() time.Duration {
	d, err := time.ParseDuration(c.Callback.Timeout)
	if err != nil || d <= 0 {
		return DefaultCallbackTimeout
	}
	return d
}

// ValidateConfig validates the resolved configuration
func ValidateConfig(config *Config) error {
	if err := validate.Struct(config); err != nil {
		return describeValidationError(err)
	}

	if err := ValidateIdentityProvider(config.IdentityProvider); err != nil {
		return fmt.Errorf("identityProvider: %w", err)
	}

	durable := config.Storage.Durable
	switch durable.Kind {
	case StorageKindFile, StorageKindSQLite:
		if durable.Path == "" {
			return fmt.Errorf("storage.durable.path is required when using %s storage", durable.Kind)
		}
	case StorageKindRedis:
		if durable.RedisURL == "" {
			return fmt.Errorf("storage.durable.redisUrl is required when using redis storage")
		}
	case StorageKindFirestore:
		if durable.GCPProject == "" {
			return fmt.Errorf("storage.durable.gcpProject is required when using firestore storage")
		}
	}
	if durable.EncryptionKey != "" && len(durable.EncryptionKey) != 32 {
		return fmt.Errorf("storage.durable.encryptionKey must be exactly 32 characters (got %d). Generate with: openssl rand -base64 32 | head -c 32", len(durable.EncryptionKey))
	}
	if durable.Kind == StorageKindMemory && durable.EncryptionKey != "" {
		log.LogWarn("Encryption key configured for memory storage; values never leave the process")
	}

	if config.Storage.Session.Kind == StorageKindFile && config.Storage.Session.Path == "" {
		return fmt.Errorf("storage.session.path is required when using file storage")
	}

	if config.Callback.Timeout != "" {
		if _, err := time.ParseDuration(config.Callback.Timeout); err != nil {
			return fmt.Errorf("callback.timeout: %w", err)
		}
	}

	return nil
}

// ValidateIdentityProvider checks a provider block on its own. It is also
// what decides whether environment settings are complete enough to use.
func ValidateIdentityProvider(idp IdentityProviderConfig) error {
	if err := validate.Struct(idp); err != nil {
		return describeValidationError(err)
	}
	if strings.HasPrefix(strings.TrimSpace(idp.Domain), "http://") && !envutil.IsDev() {
		return fmt.Errorf("domain %q uses plain http; set MINIDP_ENV=development to allow it", idp.Domain)
	}
	return nil
}

func describeValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
