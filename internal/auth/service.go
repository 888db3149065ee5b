// Package auth is the application-facing wrapper over authflow. It adds
// a resilience pass after code exchange for hosts that also ask the
// identity provider directly whether a session exists.
package auth

import (
	"context"

	"github.com/dgellow/minidp/internal/authflow"
	"github.com/dgellow/minidp/internal/log"
	"github.com/dgellow/minidp/internal/tokenstore"
)

// ServiceName identifies the wrapper in logs
const ServiceName = "auth-cognito"

// CallbackResult is the outcome of a callback as reported to UIs
type CallbackResult struct {
	Success bool                 `json:"success"`
	Error   string               `json:"error,omitempty"`
	Tokens  *tokenstore.TokenSet `json:"tokens,omitempty"`
}

// NewCallbackResult folds an exchange outcome into a CallbackResult
func NewCallbackResult(tokens *tokenstore.TokenSet, err error) CallbackResult {
	if err != nil {
		code := authflow.ErrorCode(err)
		if code == "" {
			code = authflow.CodeNoToken
		}
		return CallbackResult{Error: code}
	}
	return CallbackResult{Success: true, Tokens: tokens}
}

// Service forwards to an authflow.Client
type Service struct {
	client *authflow.Client
	shadow tokenstore.Shadow
}

// NewService wraps client. shadow receives the tokens again when the
// provider does not yet see the new session; it may be nil.
func NewService(client *authflow.Client, shadow tokenstore.Shadow) *Service {
	return &Service{client: client, shadow: shadow}
}

// Client returns the wrapped client
func (s *Service) Client() *authflow.Client {
	return s.client
}

func (s *Service) Login(ctx context.Context, providerID string) error {
	return s.client.Login(ctx, providerID)
}

// HandleRedirectCallback exchanges the code, then checks the provider's
// view of the session. A provider that does not (yet) report the session
// does not override the exchange: the tokens are trusted and the legacy
// keys rewritten before auth state is broadcast.
func (s *Service) HandleRedirectCallback(ctx context.Context, rawURL string) (*tokenstore.TokenSet, error) {
	tokens, err := s.client.HandleRedirectCallback(ctx, rawURL)
	if err != nil {
		s.client.NotifyAuthChange(ctx)
		return nil, err
	}

	if provider := s.client.ProviderSession(); provider != nil {
		ok, herr := provider.HasSession(ctx, tokens.AccessToken)
		if herr != nil || !ok {
			fields := map[string]any{"service": ServiceName}
			if herr != nil {
				fields["error"] = herr.Error()
			}
			log.LogInfoWithFields("auth", "Provider reports no session after exchange, trusting exchange", fields)
			s.client.TrustSession(tokens.AccessToken)
			s.rewriteShadow(ctx, tokens)
		}
	}

	s.client.NotifyAuthChange(ctx)
	return tokens, nil
}

func (s *Service) rewriteShadow(ctx context.Context, tokens *tokenstore.TokenSet) {
	if s.shadow == nil {
		return
	}
	if err := s.shadow.Mirror(ctx, tokens); err != nil {
		log.LogWarnWithFields("auth", "Failed to rewrite legacy session keys", map[string]any{
			"error": err.Error(),
		})
	}
}

func (s *Service) IsLoggedIn(ctx context.Context) bool {
	return s.client.IsLoggedIn(ctx)
}

func (s *Service) GetTokens(ctx context.Context) *tokenstore.TokenSet {
	return s.client.GetTokens(ctx)
}

func (s *Service) EnsureValidToken(ctx context.Context) bool {
	return s.client.EnsureValidToken(ctx)
}

func (s *Service) RefreshWithRefreshToken(ctx context.Context) error {
	return s.client.RefreshWithRefreshToken(ctx)
}

func (s *Service) SignOut(ctx context.Context) error {
	return s.client.SignOut(ctx)
}

func (s *Service) OnAuthChange(cb func(loggedIn bool)) func() {
	return s.client.OnAuthChange(cb)
}

func (s *Service) NotifyAuthChange(ctx context.Context) bool {
	return s.client.NotifyAuthChange(ctx)
}
