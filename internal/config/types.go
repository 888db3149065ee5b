package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/dgellow/minidp/internal/urlutil"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// StorageKind selects a durable or session storage backend
type StorageKind string

const (
	StorageKindMemory    StorageKind = "memory"
	StorageKindFile      StorageKind = "file"
	StorageKindSQLite    StorageKind = "sqlite"
	StorageKindRedis     StorageKind = "redis"
	StorageKindFirestore StorageKind = "firestore"
)

// IdentityProviderConfig identifies the hosted identity provider and this
// client's registration with it.
type IdentityProviderConfig struct {
	// Domain is the IdP host, e.g. "auth.example.com". An explicit
	// scheme is kept as-is so local providers can run over http.
	Domain       string   `yaml:"domain" json:"domain" validate:"required"`
	ClientID     string   `yaml:"clientId" json:"clientId" validate:"required"`
	RedirectURIs []string `yaml:"redirectUris" json:"redirectUris" validate:"required,min=1,dive,url"`
	// Region is the Cognito region; derived from the domain when empty
	Region string `yaml:"region,omitempty" json:"region,omitempty"`
}

var cognitoDomainRegex = regexp.MustCompile(`\.auth\.([a-z]{2}(?:-gov)?-[a-z]+-\d)\.amazoncognito\.com$`)

// BaseURL returns the origin of the identity provider with no trailing slash.
func (c IdentityProviderConfig) BaseURL() string {
	d := strings.TrimRight(strings.TrimSpace(c.Domain), "/")
	if strings.HasPrefix(d, "http://") || strings.HasPrefix(d, "https://") {
		return d
	}
	return "https://" + d
}

// AuthorizeURL is the hosted-UI authorization endpoint.
func (c IdentityProviderConfig) AuthorizeURL() string {
	return urlutil.MustJoinPath(c.BaseURL(), "oauth2", "authorize")
}

// TokenURL is the token endpoint used for code exchange and refresh.
func (c IdentityProviderConfig) TokenURL() string {
	return urlutil.MustJoinPath(c.BaseURL(), "oauth2", "token")
}

// CognitoRegion returns Region, or the region embedded in a
// "<prefix>.auth.<region>.amazoncognito.com" domain.
func (c IdentityProviderConfig) CognitoRegion() string {
	if c.Region != "" {
		return c.Region
	}
	u, err := url.Parse(c.BaseURL())
	if err != nil {
		return ""
	}
	if m := cognitoDomainRegex.FindStringSubmatch(u.Hostname()); m != nil {
		return m[1]
	}
	return ""
}

// Clone returns a deep copy so holders never share the redirect slice.
func (c IdentityProviderConfig) Clone() IdentityProviderConfig {
	out := c
	out.RedirectURIs = append([]string(nil), c.RedirectURIs...)
	return out
}

func (c IdentityProviderConfig) String() string {
	return fmt.Sprintf("%s (client %s, %d redirect uris)", c.BaseURL(), c.ClientID, len(c.RedirectURIs))
}

// DurableStorageConfig selects where tokens and the legacy mirror persist
type DurableStorageConfig struct {
	Kind StorageKind `yaml:"kind" json:"kind" validate:"omitempty,oneof=memory file sqlite redis firestore"`
	// Path is the file or sqlite database location
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
	// RedisURL is a redis:// or rediss:// connection URL
	RedisURL Secret `yaml:"redisUrl,omitempty" json:"redisUrl,omitempty"`
	// Firestore settings
	GCPProject string `yaml:"gcpProject,omitempty" json:"gcpProject,omitempty"`
	Database   string `yaml:"database,omitempty" json:"database,omitempty"`
	Collection string `yaml:"collection,omitempty" json:"collection,omitempty"`
	// EncryptionKey enables at-rest encryption of every stored value (32 bytes)
	EncryptionKey Secret `yaml:"encryptionKey,omitempty" json:"encryptionKey,omitempty"`
}

// SessionStorageConfig selects where per-login transient state lives
type SessionStorageConfig struct {
	Kind StorageKind `yaml:"kind" json:"kind" validate:"omitempty,oneof=memory file"`
	Path string      `yaml:"path,omitempty" json:"path,omitempty"`
}

// StorageConfig groups durable and session storage
type StorageConfig struct {
	Durable DurableStorageConfig `yaml:"durable" json:"durable"`
	Session SessionStorageConfig `yaml:"session" json:"session"`
}

// CallbackConfig configures the loopback server that receives the IdP redirect
type CallbackConfig struct {
	// Path served by the loopback server; defaults to the path of the
	// first loopback redirect URI
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
	// Timeout bounds how long login waits for the redirect, e.g. "5m"
	Timeout string `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// LogConfig mirrors the LOG_* environment variables
type LogConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty"`
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
	File   string `yaml:"file,omitempty" json:"file,omitempty"`
}

// Config is the top-level configuration file
type Config struct {
	IdentityProvider IdentityProviderConfig `yaml:"identityProvider" json:"identityProvider"`
	Storage          StorageConfig          `yaml:"storage" json:"storage"`
	Callback         CallbackConfig         `yaml:"callback" json:"callback"`
	Log              LogConfig              `yaml:"log" json:"log"`
}
