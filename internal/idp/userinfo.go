package idp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dgellow/minidp/internal/ioutil"
	"github.com/dgellow/minidp/internal/urlutil"
)

var _ Session = (*UserInfoSession)(nil)

// UserInfoSession checks sessions through the OIDC userinfo endpoint of
// providers without a native session API
type UserInfoSession struct {
	userInfoURL string
	client      *http.Client
}

// NewUserInfoSession uses {baseURL}/oauth2/userInfo
func NewUserInfoSession(baseURL string, client *http.Client) (*UserInfoSession, error) {
	u, err := urlutil.JoinPath(baseURL, "oauth2", "userInfo")
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &UserInfoSession{userInfoURL: u, client: client}, nil
}

func (s *UserInfoSession) HasSession(ctx context.Context, accessToken string) (bool, error) {
	if accessToken == "" {
		return false, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to get user info: %w", err)
	}
	defer ioutil.DrainClose(resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return false, nil
	default:
		return false, fmt.Errorf("failed to get user info: status %d: %s", resp.StatusCode, ioutil.ReadLimited(resp.Body, 1024))
	}
}

// SignOut is a no-op; the userinfo protocol has no server-side sign-out
func (s *UserInfoSession) SignOut(context.Context, string) error {
	return nil
}
