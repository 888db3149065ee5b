package authflow

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"github.com/dgellow/minidp/internal/log"
	"github.com/dgellow/minidp/internal/tokenstore"
	"github.com/dgellow/minidp/internal/urlutil"
)

// OAuth error codes that mean the code is unusable with any redirect URI
var terminalErrorCodes = []string{"invalid_grant", "invalid_client"}

// Capture records the callback URL seen by the host before anything else
// rewrites the location. HandleRedirectCallback falls back to it.
func (c *Client) Capture(ctx context.Context, rawURL string) {
	if urlutil.QueryOrFragmentParam(rawURL, "code") == "" {
		return
	}
	if err := c.session.Set(ctx, CaptureKey, rawURL); err != nil {
		log.LogWarnWithFields("authflow", "Failed to store callback capture", map[string]any{
			"error": err.Error(),
		})
	}
}

// HandleRedirectCallback exchanges the authorization code in rawURL for
// tokens. An empty rawURL means the navigator's current location, then
// the captured callback URL. Candidate redirect URIs are tried strictly
// in order; a definitive rejection of the code stops the loop.
func (c *Client) HandleRedirectCallback(ctx context.Context, rawURL string) (*tokenstore.TokenSet, error) {
	if rawURL == "" {
		rawURL = c.nav.Location()
	}
	code := urlutil.QueryOrFragmentParam(rawURL, "code")
	if code == "" {
		if captured := c.sessionValue(ctx, CaptureKey); captured != "" {
			code = urlutil.QueryOrFragmentParam(captured, "code")
		}
	}
	if code == "" {
		log.LogDebugWithFields("authflow", "Callback without authorization code", nil)
		return nil, ErrNoCode
	}

	cfg, err := c.Configured()
	if err != nil {
		return nil, err
	}

	verifier := c.sessionValue(ctx, VerifierKey)
	candidates := RedirectCandidates(
		c.sessionValue(ctx, LastRedirectKey),
		urlutil.OriginAndPath(c.nav.Location()),
		cfg.RedirectURIs,
	)

	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	var last error
	for i, candidate := range candidates {
		hctx, rec := c.recordingContext(ctx)
		tok, err := c.oauthConfig(cfg, candidate).Exchange(hctx, code, opts...)
		if err != nil {
			if t, ok := rec.token(); ok {
				log.LogDebugWithFields("authflow", "Accepting token response without access_token", map[string]any{
					"error": err.Error(),
				})
				tok, err = t, nil
			}
		}
		if err == nil {
			log.LogInfoWithFields("authflow", "Token exchange succeeded", map[string]any{
				"redirectUri": candidate,
				"attempt":     i + 1,
			})
			return c.completeExchange(ctx, tok), nil
		}

		last = err
		if IsTerminal(err) {
			log.LogWarnWithFields("authflow", "Authorization code rejected", map[string]any{
				"redirectUri": candidate,
				"error":       err.Error(),
			})
			return nil, &ExchangeError{Kind: ExchangeRejected, Attempts: i + 1, Last: err}
		}
		log.LogDebugWithFields("authflow", "Token exchange attempt failed, trying next candidate", map[string]any{
			"redirectUri": candidate,
			"error":       err.Error(),
		})
		if ctx.Err() != nil {
			return nil, &ExchangeError{Kind: ExchangeExhausted, Attempts: i + 1, Last: ctx.Err()}
		}
	}

	log.LogWarnWithFields("authflow", "Token exchange exhausted all redirect URIs", map[string]any{
		"attempts": len(candidates),
	})
	return nil, &ExchangeError{Kind: ExchangeExhausted, Attempts: len(candidates), Last: last}
}

func (c *Client) completeExchange(ctx context.Context, tok *oauth2.Token) *tokenstore.TokenSet {
	ts := c.tokenSetFrom(tok)
	if err := c.tokens.Save(ctx, ts); err != nil {
		log.LogWarnWithFields("authflow", "Failed to persist tokens", map[string]any{
			"error": err.Error(),
		})
	}

	c.notifier.Publish(ctx, true)
	c.clearSession(ctx, VerifierKey, LastRedirectKey, CaptureKey)

	if loc := c.nav.Location(); loc != "" {
		c.nav.Replace(urlutil.StripParams(loc, "code", "state"))
	}
	return ts
}

// RedirectCandidates orders the redirect URIs to try: the one used at
// login, the current page, then the configured ones. Duplicates and empty
// entries are dropped.
func RedirectCandidates(preferred, current string, configured []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(u string) {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		out = append(out, u)
	}
	add(preferred)
	add(current)
	for _, u := range configured {
		add(u)
	}
	return out
}

// IsTerminal reports whether err is a 400 from the token endpoint saying
// the code or client is invalid. The structured error field is used when
// present; the raw body is searched only when none can be parsed.
func IsTerminal(err error) bool {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) || re.Response == nil {
		return false
	}
	if re.Response.StatusCode != http.StatusBadRequest {
		return false
	}

	code := re.ErrorCode
	if code == "" {
		if res := gjson.GetBytes(re.Body, "error"); res.Type == gjson.String {
			code = res.String()
		}
	}
	if code == "" {
		if vals, perr := url.ParseQuery(string(re.Body)); perr == nil {
			code = vals.Get("error")
		}
	}
	if code != "" {
		for _, t := range terminalErrorCodes {
			if code == t {
				return true
			}
		}
		return false
	}

	body := string(re.Body)
	for _, t := range terminalErrorCodes {
		if strings.Contains(body, t) {
			return true
		}
	}
	return false
}

func (c *Client) tokenSetFrom(tok *oauth2.Token) *tokenstore.TokenSet {
	ts := &tokenstore.TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		IDToken:      extraString(tok, "id_token"),
		Username:     extraString(tok, "username"),
		Raw:          rawResponse(tok),
	}
	if ts.Username == "" {
		ts.Username = extraString(tok, "user")
	}
	if ts.Username == "" {
		ts.Username = tokenstore.UsernameFromIDToken(ts.IDToken)
	}
	if tok.ExpiresIn > 0 {
		ts.ExpiresAt = c.now().UnixMilli() + tok.ExpiresIn*1000
	}
	return ts
}

func extraString(tok *oauth2.Token, key string) string {
	v, _ := tok.Extra(key).(string)
	return v
}

func rawResponse(tok *oauth2.Token) map[string]any {
	keys := []string{"access_token", "id_token", "refresh_token", "token_type", "expires_in", "username", "user", "scope"}
	out := make(map[string]any)
	for _, k := range keys {
		if v := tok.Extra(k); v != nil && v != "" {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
