package config

import (
	"os"
	"sync"

	"github.com/dgellow/minidp/internal/envutil"
	"github.com/dgellow/minidp/internal/log"
)

// SettingsSource supplies identity provider settings when nothing was
// installed explicitly. ok is false when no settings are available.
type SettingsSource func() (cfg IdentityProviderConfig, ok bool)

// Holder is the process-wide home of the identity provider configuration.
// Init always wins; EnsureConfigured only fills an empty holder.
type Holder struct {
	mu     sync.RWMutex
	cfg    *IdentityProviderConfig
	source SettingsSource
}

// NewHolder creates an empty holder that lazily reads from source
func NewHolder(source SettingsSource) *Holder {
	return &Holder{source: source}
}

// Init installs cfg, replacing any previous configuration
func (h *Holder) Init(cfg IdentityProviderConfig) {
	c := cfg.Clone()
	h.mu.Lock()
	h.cfg = &c
	h.mu.Unlock()
}

// InitIfUnset installs cfg only when the holder is empty
func (h *Holder) InitIfUnset(cfg IdentityProviderConfig) bool {
	c := cfg.Clone()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cfg != nil {
		return false
	}
	h.cfg = &c
	return true
}

// Get returns a copy of the current configuration, or nil
func (h *Holder) Get() *IdentityProviderConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.cfg == nil {
		return nil
	}
	c := h.cfg.Clone()
	return &c
}

// Reset clears the holder
func (h *Holder) Reset() {
	h.mu.Lock()
	h.cfg = nil
	h.mu.Unlock()
}

// EnsureConfigured fills an empty holder from the settings source.
// Incomplete settings leave the holder empty without failing.
func (h *Holder) EnsureConfigured() bool {
	if h.Get() != nil {
		return true
	}
	if h.source == nil {
		return false
	}
	cfg, ok := h.source()
	if !ok {
		return false
	}
	if err := ValidateIdentityProvider(cfg); err != nil {
		log.LogDebugWithFields("config", "Ignoring incomplete identity provider settings", map[string]any{
			"error": err.Error(),
		})
		return false
	}
	h.InitIfUnset(cfg)
	return h.Get() != nil
}

// EnvSource reads MINIDP_IDP_DOMAIN, MINIDP_IDP_CLIENT_ID,
// MINIDP_IDP_REDIRECT_URIS (comma separated) and MINIDP_IDP_REGION,
// after loading .env files.
func EnvSource(dotenvFiles ...string) SettingsSource {
	return func() (IdentityProviderConfig, bool) {
		if err := envutil.LoadDotEnv(dotenvFiles...); err != nil {
			log.LogWarnWithFields("config", "Failed to load .env file", map[string]any{
				"error": err.Error(),
			})
		}
		cfg := IdentityProviderConfig{
			Domain:       os.Getenv("MINIDP_IDP_DOMAIN"),
			ClientID:     os.Getenv("MINIDP_IDP_CLIENT_ID"),
			RedirectURIs: envutil.Split(os.Getenv("MINIDP_IDP_REDIRECT_URIS")),
			Region:       os.Getenv("MINIDP_IDP_REGION"),
		}
		if cfg.Domain == "" && cfg.ClientID == "" && len(cfg.RedirectURIs) == 0 {
			return IdentityProviderConfig{}, false
		}
		return cfg, true
	}
}

// StaticSource always yields cfg; used when a config file was loaded
func StaticSource(cfg IdentityProviderConfig) SettingsSource {
	return func() (IdentityProviderConfig, bool) {
		return cfg, cfg.Domain != "" || cfg.ClientID != ""
	}
}

// FirstOf tries each source in order
func FirstOf(sources ...SettingsSource) SettingsSource {
	return func() (IdentityProviderConfig, bool) {
		for _, s := range sources {
			if s == nil {
				continue
			}
			if cfg, ok := s(); ok && ValidateIdentityProvider(cfg) == nil {
				return cfg, true
			}
		}
		return IdentityProviderConfig{}, false
	}
}
