package authflow

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/dgellow/minidp/internal/log"
	"github.com/dgellow/minidp/internal/pkce"
	"github.com/dgellow/minidp/internal/urlutil"
)

// SelectRedirectURI returns the first URI sharing currentOrigin, else the
// first URI
func SelectRedirectURI(uris []string, currentOrigin string) string {
	if len(uris) == 0 {
		return ""
	}
	if currentOrigin != "" {
		for _, u := range uris {
			if urlutil.Origin(u) == currentOrigin {
				return u
			}
		}
	}
	return uris[0]
}

// Login starts the authorization code flow: it picks a redirect URI,
// stores a fresh PKCE verifier and navigates to the hosted authorize
// endpoint. An empty providerID lets the hosted UI offer its choices.
func (c *Client) Login(ctx context.Context, providerID string) error {
	cfg, err := c.Configured()
	if err != nil {
		return err
	}

	redirectURI := SelectRedirectURI(cfg.RedirectURIs, urlutil.Origin(c.nav.Location()))

	pair, err := c.pkce.Generate(ctx)
	if err != nil {
		return fmt.Errorf("failed to generate pkce challenge: %w", err)
	}
	if err := c.session.Set(ctx, VerifierKey, pair.Verifier); err != nil {
		return fmt.Errorf("failed to store pkce verifier: %w", err)
	}
	if err := c.session.Set(ctx, LastRedirectKey, redirectURI); err != nil {
		return fmt.Errorf("failed to store redirect uri: %w", err)
	}

	target := c.oauthConfig(cfg, redirectURI).AuthCodeURL("", authorizeOptions(pair, providerID)...)

	log.LogInfoWithFields("authflow", "Redirecting to identity provider", map[string]any{
		"provider":    providerID,
		"redirectUri": redirectURI,
		"strategy":    c.pkce.Strategy().Name(),
	})
	return c.nav.Navigate(ctx, target)
}

func authorizeOptions(pair pkce.Pair, providerID string) []oauth2.AuthCodeOption {
	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("code_challenge", pair.Challenge),
		oauth2.SetAuthURLParam("code_challenge_method", pkce.Method),
	}
	if providerID != "" {
		opts = append(opts, oauth2.SetAuthURLParam("identity_provider", providerID))
	}
	return opts
}
