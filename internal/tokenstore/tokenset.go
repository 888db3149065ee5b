package tokenstore

import (
	"time"
)

// TokenSet is the persisted result of a successful exchange or refresh.
// Empty strings stand for absent tokens; ExpiresAt is epoch milliseconds
// with 0 meaning unknown.
type TokenSet struct {
	AccessToken  string         `json:"accessToken,omitempty"`
	IDToken      string         `json:"idToken,omitempty"`
	RefreshToken string         `json:"refreshToken,omitempty"`
	Username     string         `json:"username,omitempty"`
	Raw          map[string]any `json:"raw,omitempty"`
	ExpiresAt    int64          `json:"expiresAt,omitempty"`
}

// Authenticated reports whether the set carries an access or id token
func (t *TokenSet) Authenticated() bool {
	return t != nil && (t.AccessToken != "" || t.IDToken != "")
}

// ExpiresWithin reports whether the tokens expire before now+skew.
// Unknown expiry never counts as expiring.
func (t *TokenSet) ExpiresWithin(now time.Time, skew time.Duration) bool {
	if t == nil || t.ExpiresAt == 0 {
		return false
	}
	return t.ExpiresAt < now.Add(skew).UnixMilli()
}

// Expiry returns ExpiresAt as a time, or the zero time when unknown
func (t *TokenSet) Expiry() time.Time {
	if t == nil || t.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(t.ExpiresAt)
}

// Merge returns a copy of t with non-empty fields of update applied.
// A refresh response that omits the refresh token keeps the old one.
func (t *TokenSet) Merge(update *TokenSet) *TokenSet {
	out := &TokenSet{}
	if t != nil {
		*out = *t
	}
	if update == nil {
		return out
	}
	if update.AccessToken != "" {
		out.AccessToken = update.AccessToken
	}
	if update.IDToken != "" {
		out.IDToken = update.IDToken
	}
	if update.RefreshToken != "" {
		out.RefreshToken = update.RefreshToken
	}
	if update.Username != "" {
		out.Username = update.Username
	}
	if update.Raw != nil {
		out.Raw = update.Raw
	}
	if update.ExpiresAt != 0 {
		out.ExpiresAt = update.ExpiresAt
	}
	return out
}
