package compat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgellow/minidp/internal/storage"
	"github.com/dgellow/minidp/internal/tokenstore"
)

func newLegacy(clientID string) (*Legacy, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	return New(store, func() string { return clientID }), store
}

func get(t *testing.T, s storage.Store, key string) string {
	t.Helper()
	v, err := s.Get(context.Background(), key)
	require.NoError(t, err, key)
	return v
}

func TestLegacy_MirrorLayout(t *testing.T) {
	ctx := context.Background()
	l, store := newLegacy("client-1")

	require.NoError(t, l.Mirror(ctx, &tokenstore.TokenSet{
		AccessToken:  "at",
		IDToken:      "it",
		RefreshToken: "rt",
		Username:     "alice",
	}))

	assert.Equal(t, "alice", get(t, store, "CognitoIdentityServiceProvider.client-1.LastAuthUser"))
	assert.Equal(t, "at", get(t, store, "CognitoIdentityServiceProvider.client-1.alice.accessToken"))
	assert.Equal(t, "it", get(t, store, "CognitoIdentityServiceProvider.client-1.alice.idToken"))
	assert.Equal(t, "rt", get(t, store, "CognitoIdentityServiceProvider.client-1.alice.refreshToken"))
	assert.Equal(t, "0", get(t, store, "CognitoIdentityServiceProvider.client-1.alice.clockDrift"))

	assert.Equal(t, LastAuthUserKey("client-1"), "CognitoIdentityServiceProvider.client-1.LastAuthUser")
	assert.Equal(t, TokenKey("client-1", "alice", "idToken"), "CognitoIdentityServiceProvider.client-1.alice.idToken")
}

func TestLegacy_MirrorWithoutUsernameIsNoop(t *testing.T) {
	ctx := context.Background()
	l, store := newLegacy("client-1")

	require.NoError(t, l.Mirror(ctx, &tokenstore.TokenSet{AccessToken: "at"}))
	keys, err := store.Keys(ctx, Prefix)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestLegacy_MirrorRemovesAbsentFields(t *testing.T) {
	ctx := context.Background()
	l, store := newLegacy("client-1")

	require.NoError(t, l.Mirror(ctx, &tokenstore.TokenSet{AccessToken: "at", RefreshToken: "rt", Username: "alice"}))
	require.NoError(t, l.Mirror(ctx, &tokenstore.TokenSet{AccessToken: "at2", Username: "alice"}))

	_, err := store.Get(ctx, TokenKey("client-1", "alice", "refreshToken"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLegacy_RequiresClientID(t *testing.T) {
	l, _ := newLegacy("")
	assert.Error(t, l.Mirror(context.Background(), &tokenstore.TokenSet{AccessToken: "at", Username: "alice"}))
	assert.Error(t, l.Clear(context.Background()))
	assert.Nil(t, l.Read(context.Background()))
}

func TestLegacy_ReadAndRefreshToken(t *testing.T) {
	ctx := context.Background()
	l, store := newLegacy("client-1")

	assert.Nil(t, l.Read(ctx))
	assert.Empty(t, l.RefreshToken(ctx))

	require.NoError(t, store.Set(ctx, LastAuthUserKey("client-1"), "bob"))
	require.NoError(t, store.Set(ctx, TokenKey("client-1", "bob", "refreshToken"), "legacy-rt"))

	ts := l.Read(ctx)
	require.NotNil(t, ts)
	assert.Equal(t, "bob", ts.Username)
	assert.Equal(t, "legacy-rt", ts.RefreshToken)
	assert.Empty(t, ts.AccessToken)
	assert.Equal(t, "legacy-rt", l.RefreshToken(ctx))
}

func TestLegacy_ClearOnlyTouchesOwnClient(t *testing.T) {
	ctx := context.Background()
	l, store := newLegacy("client-1")

	require.NoError(t, l.Mirror(ctx, &tokenstore.TokenSet{AccessToken: "at", Username: "alice"}))
	require.NoError(t, store.Set(ctx, LastAuthUserKey("client-2"), "carol"))
	require.NoError(t, l.SetFlag(ctx, true))

	require.NoError(t, l.Clear(ctx))

	keys, err := store.Keys(ctx, Prefix+".client-1.")
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.Equal(t, "carol", get(t, store, LastAuthUserKey("client-2")))
	assert.True(t, l.Flag(ctx))
}

func TestLegacy_Flag(t *testing.T) {
	ctx := context.Background()
	l, store := newLegacy("client-1")

	assert.False(t, l.Flag(ctx))
	require.NoError(t, l.SetFlag(ctx, true))
	assert.Equal(t, "1", get(t, store, LoggedInFlag))
	assert.True(t, l.Flag(ctx))

	require.NoError(t, l.SetFlag(ctx, false))
	assert.False(t, l.Flag(ctx))
}
