package authflow

import (
	"context"
	"errors"

	"golang.org/x/oauth2"

	"github.com/dgellow/minidp/internal/log"
	"github.com/dgellow/minidp/internal/tokenstore"
)

// EnsureValidToken reports whether usable tokens are stored afterwards.
// Tokens expiring within ExpirySkew are refreshed; with no tokens at all a
// refresh is still attempted in case only a refresh token survived. It
// never fails.
func (c *Client) EnsureValidToken(ctx context.Context) bool {
	tokens := c.tokens.Get(ctx)
	if tokens.Authenticated() && !tokens.ExpiresWithin(c.now(), ExpirySkew) {
		return true
	}

	if _, err := c.Configured(); err != nil {
		return false
	}
	if c.availableRefreshToken(ctx, tokens) == "" {
		log.LogDebugWithFields("authflow", "No refresh possible", map[string]any{
			"reason": ErrNoRefreshToken.Error(),
		})
		return false
	}

	if !c.limiter.Allow() {
		log.LogWarnWithFields("authflow", "Refresh throttled", map[string]any{
			"expiresAt": tokens.Expiry(),
		})
		return false
	}

	err := c.RefreshWithRefreshToken(ctx)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrNoRefreshToken), errors.Is(err, ErrNotConfigured):
		log.LogDebugWithFields("authflow", "No refresh possible", map[string]any{
			"reason": err.Error(),
		})
	default:
		log.LogWarnWithFields("authflow", "Token refresh failed", map[string]any{
			"error": err.Error(),
		})
	}
	return false
}

// RefreshWithRefreshToken runs the refresh token grant and stores the
// merged result. Concurrent callers share a single request. Without a
// refresh token it returns ErrNoRefreshToken and makes no request.
func (c *Client) RefreshWithRefreshToken(ctx context.Context) error {
	_, err, shared := c.refreshes.Do("refresh", func() (any, error) {
		return nil, c.refresh(ctx)
	})
	if shared {
		log.LogTraceWithFields("authflow", "Joined in-flight refresh", nil)
	}
	return err
}

func (c *Client) refresh(ctx context.Context) error {
	cfg, err := c.Configured()
	if err != nil {
		return err
	}

	current := c.tokens.Get(ctx)
	refreshToken := c.availableRefreshToken(ctx, current)
	if refreshToken == "" {
		return ErrNoRefreshToken
	}

	hctx, rec := c.recordingContext(ctx)
	src := c.oauthConfig(cfg, "").TokenSource(hctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		t, ok := rec.token()
		if !ok || (t.AccessToken == "" && extraString(t, "id_token") == "") {
			return &RefreshError{Err: err}
		}
		tok = t
	}

	merged := current.Merge(c.tokenSetFrom(tok))
	if merged.RefreshToken == "" {
		merged.RefreshToken = refreshToken
	}
	if err := c.tokens.Save(ctx, merged); err != nil {
		log.LogWarnWithFields("authflow", "Failed to persist refreshed tokens", map[string]any{
			"error": err.Error(),
		})
	}

	log.LogInfoWithFields("authflow", "Tokens refreshed", map[string]any{
		"expiresAt": merged.Expiry(),
	})
	c.notifier.Publish(ctx, true)
	return nil
}

// availableRefreshToken is the refresh token of current, else the one in
// the legacy mirror
func (c *Client) availableRefreshToken(ctx context.Context, current *tokenstore.TokenSet) string {
	if current != nil && current.RefreshToken != "" {
		return current.RefreshToken
	}
	if c.legacy != nil {
		return c.legacy.RefreshToken(ctx)
	}
	return ""
}
