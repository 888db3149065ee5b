package idp

import (
	"context"
)

// Session asks the identity provider itself whether an access token still
// represents a live session. It is consulted before local token state.
type Session interface {
	// HasSession reports false with a nil error when the provider rejects
	// the token; errors mean the provider could not be asked.
	HasSession(ctx context.Context, accessToken string) (bool, error)
	// SignOut invalidates the session server-side, best effort
	SignOut(ctx context.Context, accessToken string) error
}
