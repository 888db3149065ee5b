// Package authflow implements the OAuth2 authorization code flow with
// PKCE for a public client: login redirect, callback exchange, token
// refresh and sign-out.
package authflow

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/dgellow/minidp/internal/browser"
	"github.com/dgellow/minidp/internal/config"
	"github.com/dgellow/minidp/internal/idp"
	"github.com/dgellow/minidp/internal/log"
	"github.com/dgellow/minidp/internal/notify"
	"github.com/dgellow/minidp/internal/pkce"
	"github.com/dgellow/minidp/internal/storage"
	"github.com/dgellow/minidp/internal/tokenstore"
)

// Session storage keys; they live for a single login attempt
const (
	VerifierKey     = "sc_pkce.verifier"
	LastRedirectKey = "sc_oauth.lastRedirectUri"
	CaptureKey      = "sc_oauth.capture"
)

// ExpirySkew is how early tokens count as expired
const ExpirySkew = 5 * time.Second

// Scopes requested on every login
var Scopes = []string{"email", "profile", "openid"}

// Legacy is the slice of the legacy key layout the flow reads and writes
type Legacy interface {
	RefreshToken(ctx context.Context) string
	SetFlag(ctx context.Context, loggedIn bool) error
}

// Options wires a Client. Config, Tokens, Session and Navigator are
// required.
type Options struct {
	Config    *config.Holder
	Tokens    *tokenstore.Store
	Session   storage.Store
	Navigator browser.Navigator

	// ProviderSession is consulted for live sessions and sign-out
	ProviderSession idp.Session
	Legacy          Legacy
	PKCE            *pkce.Generator
	HTTPClient      *http.Client
	Bus             *notify.Bus
	// RefreshLimiter throttles refresh attempts from EnsureValidToken
	RefreshLimiter *rate.Limiter
	Now            func() time.Time
}

// Client is a public OAuth2 client bound to one identity provider
type Client struct {
	config    *config.Holder
	tokens    *tokenstore.Store
	session   storage.Store
	nav       browser.Navigator
	provider  idp.Session
	legacy    Legacy
	pkce      *pkce.Generator
	http      *http.Client
	limiter   *rate.Limiter
	now       func() time.Time
	notifier  *notify.Notifier
	refreshes singleflight.Group

	mu      sync.RWMutex
	trusted string
}

// New creates a client from opts
func New(opts Options) (*Client, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config holder is required")
	}
	if opts.Tokens == nil {
		return nil, fmt.Errorf("token store is required")
	}
	if opts.Session == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if opts.Navigator == nil {
		return nil, fmt.Errorf("navigator is required")
	}

	c := &Client{
		config:   opts.Config,
		tokens:   opts.Tokens,
		session:  opts.Session,
		nav:      opts.Navigator,
		provider: opts.ProviderSession,
		legacy:   opts.Legacy,
		pkce:     opts.PKCE,
		http:     opts.HTTPClient,
		limiter:  opts.RefreshLimiter,
		now:      opts.Now,
	}
	if c.pkce == nil {
		c.pkce = pkce.NewGenerator()
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	if c.limiter == nil {
		c.limiter = rate.NewLimiter(rate.Every(time.Second), 3)
	}
	if c.now == nil {
		c.now = time.Now
	}

	hooks := notify.Hooks{
		Revalidate: c.EnsureValidToken,
		LocalState: c.IsLoggedIn,
	}
	if c.provider != nil {
		hooks.SessionState = c.providerSessionState
	}
	if c.legacy != nil {
		hooks.SetFlag = c.legacy.SetFlag
	}
	c.notifier = notify.New(hooks, opts.Bus)
	return c, nil
}

// Notifier exposes the auth change notifier
func (c *Client) Notifier() *notify.Notifier {
	return c.notifier
}

// OnAuthChange registers cb; it is called immediately with the current
// state. The returned function unsubscribes.
func (c *Client) OnAuthChange(cb func(loggedIn bool)) func() {
	return c.notifier.OnAuthChange(cb)
}

// NotifyAuthChange recomputes the auth state and broadcasts it
func (c *Client) NotifyAuthChange(ctx context.Context) bool {
	return c.notifier.NotifyAuthChange(ctx)
}

// TrustSession marks accessToken as obtained by this client, so the
// provider's opinion of it is not asked when computing the auth state
func (c *Client) TrustSession(accessToken string) {
	c.mu.Lock()
	c.trusted = accessToken
	c.mu.Unlock()
}

func (c *Client) isTrusted(accessToken string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return accessToken != "" && c.trusted == accessToken
}

// ProviderSession returns the provider-native session checker, or nil
func (c *Client) ProviderSession() idp.Session {
	return c.provider
}

// Configured returns the identity provider configuration, loading it
// lazily, or ErrNotConfigured
func (c *Client) Configured() (*config.IdentityProviderConfig, error) {
	c.config.EnsureConfigured()
	cfg := c.config.Get()
	if cfg == nil {
		return nil, ErrNotConfigured
	}
	return cfg, nil
}

// GetTokens returns the stored tokens, or nil
func (c *Client) GetTokens(ctx context.Context) *tokenstore.TokenSet {
	return c.tokens.Get(ctx)
}

// IsLoggedIn reports whether an access or id token is stored
func (c *Client) IsLoggedIn(ctx context.Context) bool {
	return c.tokens.Get(ctx).Authenticated()
}

// SignOut ends the provider session best effort, then removes local
// tokens and broadcasts the logged-out state
func (c *Client) SignOut(ctx context.Context) error {
	tokens := c.tokens.Get(ctx)
	if c.provider != nil && tokens != nil && tokens.AccessToken != "" {
		if err := c.provider.SignOut(ctx, tokens.AccessToken); err != nil {
			log.LogWarnWithFields("authflow", "Provider sign-out failed", map[string]any{
				"error": err.Error(),
			})
		}
	}

	err := c.tokens.Clear(ctx)
	c.TrustSession("")
	c.notifier.Publish(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to remove tokens: %w", err)
	}
	log.LogInfoWithFields("authflow", "Signed out", nil)
	return nil
}

func (c *Client) providerSessionState(ctx context.Context) (bool, error) {
	tokens := c.tokens.Get(ctx)
	if !tokens.Authenticated() {
		return false, nil
	}
	if tokens.AccessToken == "" {
		return false, fmt.Errorf("no access token to check")
	}
	if c.isTrusted(tokens.AccessToken) {
		return true, nil
	}
	return c.provider.HasSession(ctx, tokens.AccessToken)
}

func (c *Client) oauthConfig(cfg *config.IdentityProviderConfig, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID: cfg.ClientID,
		Endpoint: oauth2.Endpoint{
			AuthURL:   cfg.AuthorizeURL(),
			TokenURL:  cfg.TokenURL(),
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: redirectURI,
		Scopes:      Scopes,
	}
}

func (c *Client) clearSession(ctx context.Context, keys ...string) {
	for _, k := range keys {
		if err := c.session.Delete(ctx, k); err != nil {
			log.LogWarnWithFields("authflow", "Failed to clear session key", map[string]any{
				"key":   k,
				"error": err.Error(),
			})
		}
	}
}

func (c *Client) sessionValue(ctx context.Context, key string) string {
	v, err := c.session.Get(ctx, key)
	if err != nil {
		return ""
	}
	return v
}
