package idp

import (
	"net/http"

	"github.com/dgellow/minidp/internal/config"
)

// NewSession picks the session checker for cfg: the Cognito user pool API
// when a region is known, the userinfo endpoint otherwise
func NewSession(cfg config.IdentityProviderConfig, client *http.Client) (Session, error) {
	if region := cfg.CognitoRegion(); region != "" {
		s, err := NewCognitoSession(CognitoOptions{Region: region, HTTPClient: client})
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := NewUserInfoSession(cfg.BaseURL(), client)
	if err != nil {
		return nil, err
	}
	return s, nil
}
