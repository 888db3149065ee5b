package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dgellow/minidp/internal/auth"
	"github.com/dgellow/minidp/internal/authflow"
	"github.com/dgellow/minidp/internal/browser"
	"github.com/dgellow/minidp/internal/compat"
	"github.com/dgellow/minidp/internal/config"
	"github.com/dgellow/minidp/internal/idp"
	"github.com/dgellow/minidp/internal/log"
	"github.com/dgellow/minidp/internal/notify"
	"github.com/dgellow/minidp/internal/server"
	"github.com/dgellow/minidp/internal/storage"
	"github.com/dgellow/minidp/internal/tokenstore"
)

const (
	// session entries older than this belong to abandoned logins
	sessionMaxAge          = time.Hour
	sessionCleanupInterval = 10 * time.Minute
)

// ErrNoLoopback means no loopback redirect URI is configured, so the
// callback has to be handed over manually
var ErrNoLoopback = errors.New("no loopback redirect uri configured")

// Navigator is a browser.Navigator whose location can be set by the host
type Navigator interface {
	browser.Navigator
	SetLocation(location string)
}

// Option customises NewMiniDP
type Option func(*options)

type options struct {
	navigator  Navigator
	httpClient *http.Client
	session    idp.Session
	dotenv     []string
}

// WithNavigator replaces the system browser
func WithNavigator(n Navigator) Option {
	return func(o *options) { o.navigator = n }
}

// WithHTTPClient sets the client used for token and provider requests
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithProviderSession overrides the provider-native session checker
func WithProviderSession(s idp.Session) Option {
	return func(o *options) { o.session = s }
}

// WithDotEnv sets the .env files read for identity provider settings
func WithDotEnv(files ...string) Option {
	return func(o *options) { o.dotenv = files }
}

// MiniDP is the assembled client application
type MiniDP struct {
	config    config.Config
	holder    *config.Holder
	durable   storage.Store
	session   storage.Store
	legacy    *compat.Legacy
	service   *auth.Service
	navigator Navigator
	bus       *notify.Bus
	cleanup   *storage.CleanupManager
}

// NewMiniDP builds every component described by cfg
func NewMiniDP(ctx context.Context, cfg config.Config, opts ...Option) (*MiniDP, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	log.LogInfoWithFields("minidp", "Building client", map[string]any{
		"durable": string(cfg.Storage.Durable.Kind),
		"session": string(cfg.Storage.Session.Kind),
	})

	holder := config.NewHolder(config.FirstOf(
		config.StaticSource(cfg.IdentityProvider),
		config.EnvSource(o.dotenv...),
	))
	holder.EnsureConfigured()

	durable, err := storage.OpenDurable(ctx, cfg.Storage.Durable)
	if err != nil {
		return nil, fmt.Errorf("failed to setup durable storage: %w", err)
	}
	session, err := storage.OpenSession(cfg.Storage.Session)
	if err != nil {
		durable.Close()
		return nil, fmt.Errorf("failed to setup session storage: %w", err)
	}

	// legacy readers cannot decrypt, so the mirror bypasses encryption
	if cfg.Storage.Durable.EncryptionKey != "" {
		log.LogWarnWithFields("minidp", "Legacy session keys are stored unencrypted", map[string]any{
			"prefix": compat.Prefix,
		})
	}
	legacy := compat.New(storage.Plain(durable), func() string {
		if c := holder.Get(); c != nil {
			return c.ClientID
		}
		return ""
	})

	providerSession := o.session
	if providerSession == nil {
		if idpCfg := holder.Get(); idpCfg != nil {
			providerSession, err = idp.NewSession(*idpCfg, o.httpClient)
			if err != nil {
				log.LogWarnWithFields("minidp", "Provider session check unavailable", map[string]any{
					"error": err.Error(),
				})
				providerSession = nil
			}
		}
	}

	nav := o.navigator
	if nav == nil {
		nav = browser.NewSystemBrowser(initialLocation(holder.Get()))
	}

	bus := notify.NewBus()
	flowOpts := authflow.Options{
		Config:     holder,
		Tokens:     tokenstore.New(durable, legacy),
		Session:    session,
		Navigator:  nav,
		Legacy:     legacy,
		HTTPClient: o.httpClient,
		Bus:        bus,
	}
	if providerSession != nil {
		flowOpts.ProviderSession = providerSession
	}
	client, err := authflow.New(flowOpts)
	if err != nil {
		durable.Close()
		session.Close()
		return nil, fmt.Errorf("failed to create auth client: %w", err)
	}

	m := &MiniDP{
		config:    cfg,
		holder:    holder,
		durable:   durable,
		session:   session,
		legacy:    legacy,
		service:   auth.NewService(client, legacy),
		navigator: nav,
		bus:       bus,
	}

	if exp, ok := session.(storage.Expirer); ok {
		m.cleanup = storage.NewCleanupManager(exp, sessionMaxAge, sessionCleanupInterval)
		m.cleanup.Start(ctx)
	}
	return m, nil
}

func initialLocation(cfg *config.IdentityProviderConfig) string {
	if cfg == nil || len(cfg.RedirectURIs) == 0 {
		return ""
	}
	if lb, ok := server.LoopbackAddr(cfg.RedirectURIs); ok {
		return lb.RedirectURI
	}
	return cfg.RedirectURIs[0]
}

// Auth returns the auth service
func (m *MiniDP) Auth() *auth.Service {
	return m.service
}

// Events returns the auth change event bus
func (m *MiniDP) Events() *notify.Bus {
	return m.bus
}

// Legacy returns the legacy key adapter
func (m *MiniDP) Legacy() *compat.Legacy {
	return m.legacy
}

// IdentityProvider returns the active identity provider settings, or nil
func (m *MiniDP) IdentityProvider() *config.IdentityProviderConfig {
	m.holder.EnsureConfigured()
	return m.holder.Get()
}

// Login runs the whole browser flow: it serves the loopback redirect URI,
// opens the authorize page and exchanges the code that comes back.
// Without a loopback redirect URI it only opens the authorize page and
// returns ErrNoLoopback; finish with Callback.
func (m *MiniDP) Login(ctx context.Context, providerID string) (*tokenstore.TokenSet, error) {
	idpCfg := m.IdentityProvider()
	if idpCfg == nil {
		return nil, authflow.ErrNotConfigured
	}

	lb, ok := server.LoopbackAddr(idpCfg.RedirectURIs)
	if !ok {
		if err := m.service.Login(ctx, providerID); err != nil {
			return nil, err
		}
		return nil, ErrNoLoopback
	}
	path := lb.Path
	if m.config.Callback.Path != "" {
		path = m.config.Callback.Path
	}

	srv, err := server.NewCallbackServer(lb.Addr, path)
	if err != nil {
		return nil, err
	}
	srv.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Stop(stopCtx); err != nil {
			log.LogWarnWithFields("minidp", "Failed to stop callback server", map[string]any{
				"error": err.Error(),
			})
		}
	}()

	// the registered URI, not the bound address, so redirect selection
	// matches it by origin
	m.navigator.SetLocation(lb.RedirectURI)
	if err := m.service.Login(ctx, providerID); err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, m.config.CallbackTimeout())
	defer cancel()
	callbackURL, err := srv.Wait(waitCtx)
	if err != nil {
		return nil, err
	}
	return m.Callback(ctx, callbackURL)
}

// Callback completes a login from the URL the identity provider
// redirected to
func (m *MiniDP) Callback(ctx context.Context, callbackURL string) (*tokenstore.TokenSet, error) {
	m.navigator.SetLocation(callbackURL)
	m.service.Client().Capture(ctx, callbackURL)
	return m.service.HandleRedirectCallback(ctx, callbackURL)
}

// Close releases storage and background workers
func (m *MiniDP) Close() error {
	if m.cleanup != nil {
		m.cleanup.Stop()
	}
	var errs []error
	if err := m.session.Close(); err != nil {
		errs = append(errs, fmt.Errorf("session storage: %w", err))
	}
	if err := m.durable.Close(); err != nil {
		errs = append(errs, fmt.Errorf("durable storage: %w", err))
	}
	return errors.Join(errs...)
}
