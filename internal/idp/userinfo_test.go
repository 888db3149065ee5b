package idp

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgellow/minidp/internal/config"
)

func TestUserInfoSession_HasSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth2/userInfo", r.URL.Path)
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"sub":"user-1"}`))
		case "Bearer broken":
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream down"))
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	s, err := NewUserInfoSession(srv.URL, srv.Client())
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		want    bool
		wantErr string
	}{
		{name: "active", token: "good", want: true},
		{name: "rejected", token: "expired", want: false},
		{name: "empty token", token: "", want: false},
		{name: "provider failure", token: "broken", wantErr: "status 502: upstream down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := s.HasSession(t.Context(), tt.token)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}

	assert.NoError(t, s.SignOut(t.Context(), "good"))
}

func TestNewSession_PicksImplementation(t *testing.T) {
	cognito, err := NewSession(config.IdentityProviderConfig{Domain: "app.auth.eu-west-1.amazoncognito.com"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &CognitoSession{}, cognito)

	generic, err := NewSession(config.IdentityProviderConfig{Domain: "auth.example.com"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &UserInfoSession{}, generic)
}
