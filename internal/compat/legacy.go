// Package compat mirrors tokens into the key layout the Cognito JavaScript
// SDK reads, so code that still asks the SDK for a session keeps working.
// Nothing else depends on this package; deleting it only requires
// dropping the Shadow passed to tokenstore.New.
package compat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgellow/minidp/internal/log"
	"github.com/dgellow/minidp/internal/storage"
	"github.com/dgellow/minidp/internal/tokenstore"
)

const (
	// Prefix of every legacy key
	Prefix = "CognitoIdentityServiceProvider"

	// LoggedInFlag is the quick "logged in" marker read by older pages
	LoggedInFlag = "sc_logged_in"
)

var _ tokenstore.Shadow = (*Legacy)(nil)

// Legacy reads and writes the
// CognitoIdentityServiceProvider.{clientId}.{username}.{field} layout
type Legacy struct {
	store    storage.Store
	clientID func() string
}

// New creates the adapter. clientID is evaluated on every call so a
// reconfigured client id takes effect immediately.
func New(store storage.Store, clientID func() string) *Legacy {
	return &Legacy{store: store, clientID: clientID}
}

func (l *Legacy) clientPrefix() (string, error) {
	id := ""
	if l.clientID != nil {
		id = l.clientID()
	}
	if id == "" {
		return "", fmt.Errorf("client id is not configured")
	}
	return Prefix + "." + id + ".", nil
}

// LastAuthUserKey is CognitoIdentityServiceProvider.{clientId}.LastAuthUser
func LastAuthUserKey(clientID string) string {
	return Prefix + "." + clientID + ".LastAuthUser"
}

// TokenKey is CognitoIdentityServiceProvider.{clientId}.{username}.{field}
func TokenKey(clientID, username, field string) string {
	return Prefix + "." + clientID + "." + username + "." + field
}

// Mirror writes the legacy keys for tokens. Without a username (explicit
// or from the id token) there is nothing to key on and Mirror is a no-op.
func (l *Legacy) Mirror(ctx context.Context, tokens *tokenstore.TokenSet) error {
	if tokens == nil {
		return nil
	}
	prefix, err := l.clientPrefix()
	if err != nil {
		return err
	}

	username := tokens.Username
	if username == "" {
		username = tokenstore.UsernameFromIDToken(tokens.IDToken)
	}
	if username == "" {
		log.LogDebugWithFields("compat", "Skipping legacy mirror, no username", nil)
		return nil
	}

	writes := []struct{ key, value string }{
		{prefix + "LastAuthUser", username},
		{prefix + username + ".accessToken", tokens.AccessToken},
		{prefix + username + ".idToken", tokens.IDToken},
		{prefix + username + ".refreshToken", tokens.RefreshToken},
		{prefix + username + ".clockDrift", "0"},
	}
	for _, w := range writes {
		if w.value == "" {
			if err := l.store.Delete(ctx, w.key); err != nil {
				return fmt.Errorf("failed to remove %s: %w", w.key, err)
			}
			continue
		}
		if err := l.store.Set(ctx, w.key, w.value); err != nil {
			return fmt.Errorf("failed to write %s: %w", w.key, err)
		}
	}
	return nil
}

// Clear removes every legacy key of the configured client
func (l *Legacy) Clear(ctx context.Context) error {
	prefix, err := l.clientPrefix()
	if err != nil {
		return err
	}
	n, err := storage.DeletePrefix(ctx, l.store, prefix)
	if err != nil {
		return fmt.Errorf("failed to clear legacy keys: %w", err)
	}
	log.LogTraceWithFields("compat", "Cleared legacy keys", map[string]any{"count": n})
	return nil
}

// Read reconstructs a TokenSet from the legacy layout, or nil
func (l *Legacy) Read(ctx context.Context) *tokenstore.TokenSet {
	prefix, err := l.clientPrefix()
	if err != nil {
		return nil
	}
	username, err := l.store.Get(ctx, prefix+"LastAuthUser")
	if err != nil || username == "" {
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			log.LogWarnWithFields("compat", "Failed to read legacy user", map[string]any{"error": err.Error()})
		}
		return nil
	}

	ts := &tokenstore.TokenSet{Username: username}
	fields := map[string]*string{
		"accessToken":  &ts.AccessToken,
		"idToken":      &ts.IDToken,
		"refreshToken": &ts.RefreshToken,
	}
	for field, dst := range fields {
		v, err := l.store.Get(ctx, prefix+username+"."+field)
		if err != nil {
			continue
		}
		*dst = v
	}
	return ts
}

// RefreshToken returns the mirrored refresh token, or ""
func (l *Legacy) RefreshToken(ctx context.Context) string {
	ts := l.Read(ctx)
	if ts == nil {
		return ""
	}
	return strings.TrimSpace(ts.RefreshToken)
}

// SetFlag writes or removes the sc_logged_in marker
func (l *Legacy) SetFlag(ctx context.Context, loggedIn bool) error {
	if loggedIn {
		return l.store.Set(ctx, LoggedInFlag, "1")
	}
	return l.store.Delete(ctx, LoggedInFlag)
}

// Flag reports whether the sc_logged_in marker is set
func (l *Legacy) Flag(ctx context.Context) bool {
	v, err := l.store.Get(ctx, LoggedInFlag)
	return err == nil && (v == "1" || v == "true")
}
