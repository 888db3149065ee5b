package tokenstore

import (
	"testing"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedIDToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	tok := jwt.New()
	for k, v := range claims {
		require.NoError(t, tok.Set(k, v))
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte("test-signing-key")))
	require.NoError(t, err)
	return string(signed)
}

func TestUsernameFromIDToken(t *testing.T) {
	t.Run("cognito username wins", func(t *testing.T) {
		tok := signedIDToken(t, map[string]any{"cognito:username": "alice", "username": "other", "sub": "uuid-1"})
		assert.Equal(t, "alice", UsernameFromIDToken(tok))
	})

	t.Run("username claim", func(t *testing.T) {
		tok := signedIDToken(t, map[string]any{"username": "bob", "sub": "uuid-2"})
		assert.Equal(t, "bob", UsernameFromIDToken(tok))
	})

	t.Run("subject fallback", func(t *testing.T) {
		tok := signedIDToken(t, map[string]any{"sub": "uuid-3"})
		assert.Equal(t, "uuid-3", UsernameFromIDToken(tok))
	})

	t.Run("garbage", func(t *testing.T) {
		assert.Empty(t, UsernameFromIDToken("not-a-jwt"))
		assert.Empty(t, UsernameFromIDToken(""))
	})
}
