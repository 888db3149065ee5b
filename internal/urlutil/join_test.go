package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinPath(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		paths   []string
		want    string
		wantErr bool
	}{
		{
			name:  "authorize endpoint",
			base:  "https://auth.example.com",
			paths: []string{"oauth2", "authorize"},
			want:  "https://auth.example.com/oauth2/authorize",
		},
		{
			name:  "base with path",
			base:  "https://example.com/base",
			paths: []string{"oauth2", "token"},
			want:  "https://example.com/base/oauth2/token",
		},
		{
			name:  "trailing slash preserved",
			base:  "https://example.com",
			paths: []string{"api", "v1/"},
			want:  "https://example.com/api/v1/",
		},
		{
			name:  "base with trailing slash",
			base:  "https://example.com/",
			paths: []string{"oauth2"},
			want:  "https://example.com/oauth2",
		},
		{
			name:    "invalid base URL",
			base:    "://invalid",
			paths:   []string{"api"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JoinPath(tt.base, tt.paths...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMustJoinPath_PanicsOnInvalidBase(t *testing.T) {
	assert.Equal(t, "https://example.com/api/v1", MustJoinPath("https://example.com", "api", "v1"))
	assert.Panics(t, func() { MustJoinPath("://invalid", "api") })
}

func TestOrigin(t *testing.T) {
	assert.Equal(t, "https://app.example.com", Origin("https://app.example.com/callback?code=1"))
	assert.Equal(t, "http://localhost:3000", Origin("http://LOCALHOST:3000/x"))
	assert.Equal(t, "", Origin("/relative/path"))
	assert.Equal(t, "https://app.example.com/auth/callback", OriginAndPath("https://app.example.com/auth/callback?code=1#frag"))
}

func TestStripParams(t *testing.T) {
	got := StripParams("https://app.example.com/cb?code=abc&state=xyz&keep=1", "code", "state")
	assert.Equal(t, "https://app.example.com/cb?keep=1", got)

	got = StripParams("https://app.example.com/cb#code=abc&other=2", "code", "state")
	assert.Equal(t, "https://app.example.com/cb#other=2", got)

	got = StripParams("https://app.example.com/cb?code=abc", "code")
	assert.Equal(t, "https://app.example.com/cb", got)
}

func TestQueryOrFragmentParam(t *testing.T) {
	assert.Equal(t, "abc", QueryOrFragmentParam("https://x.test/cb?code=abc", "code"))
	assert.Equal(t, "frag", QueryOrFragmentParam("https://x.test/cb#code=frag", "code"))
	assert.Equal(t, "q", QueryOrFragmentParam("https://x.test/cb?code=q#code=frag", "code"))
	assert.Empty(t, QueryOrFragmentParam("https://x.test/cb", "code"))
}
