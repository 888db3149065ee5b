package authflow

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured is returned before an identity provider is configured
	ErrNotConfigured = errors.New("identity provider is not configured")
	// ErrNoCode means the callback URL carried no authorization code
	ErrNoCode = errors.New("no authorization code in callback url")
	// ErrNoToken means no candidate redirect URI yielded tokens
	ErrNoToken = errors.New("token exchange failed")
	// ErrNoRefreshToken means neither the token set nor the legacy
	// mirror holds a refresh token
	ErrNoRefreshToken = errors.New("no refresh token available")
)

// Error codes reported to callers that render auth failures
const (
	CodeNotConfigured  = "not-configured"
	CodeNoCode         = "no-code"
	CodeNoToken        = "no-token"
	CodeNoRefreshToken = "no-refresh-token"
	CodeRefreshFailed  = "refresh-failed"
)

// ExchangeKind tells a definitive rejection from running out of candidates
type ExchangeKind string

const (
	// ExchangeRejected: the token endpoint refused the code itself
	ExchangeRejected ExchangeKind = "rejected"
	// ExchangeExhausted: every candidate redirect URI failed
	ExchangeExhausted ExchangeKind = "exhausted"
)

// ExchangeError describes a failed code exchange. It matches ErrNoToken
// with errors.Is and unwraps to the last attempt's error.
type ExchangeError struct {
	Kind     ExchangeKind
	Attempts int
	Last     error
}

func (e *ExchangeError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("token exchange %s after %d attempt(s)", e.Kind, e.Attempts)
	}
	return fmt.Sprintf("token exchange %s after %d attempt(s): %v", e.Kind, e.Attempts, e.Last)
}

func (e *ExchangeError) Is(target error) bool {
	return target == ErrNoToken
}

func (e *ExchangeError) Unwrap() error {
	return e.Last
}

// RefreshError wraps a failed refresh grant. Stored tokens are untouched.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("token refresh failed: %v", e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// ErrorCode maps err to its short code, or "" for unknown errors
func ErrorCode(err error) string {
	var refreshErr *RefreshError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotConfigured):
		return CodeNotConfigured
	case errors.Is(err, ErrNoCode):
		return CodeNoCode
	case errors.Is(err, ErrNoToken):
		return CodeNoToken
	case errors.Is(err, ErrNoRefreshToken):
		return CodeNoRefreshToken
	case errors.As(err, &refreshErr):
		return CodeRefreshFailed
	default:
		return ""
	}
}
