package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dgellow/minidp/internal/authflow"
	"github.com/dgellow/minidp/internal/compat"
	"github.com/dgellow/minidp/internal/config"
	"github.com/dgellow/minidp/internal/idp"
	"github.com/dgellow/minidp/internal/storage"
	"github.com/dgellow/minidp/internal/testutil"
	"github.com/dgellow/minidp/internal/tokenstore"
)

type fixture struct {
	service *Service
	durable *storage.MemoryStore
	legacy  *compat.Legacy
	calls   *atomic.Int32
}

func newFixture(t *testing.T, session idp.Session, status int, body string) *fixture {
	t.Helper()
	calls := &atomic.Int32{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	holder := config.NewHolder(nil)
	holder.Init(config.IdentityProviderConfig{
		Domain:       srv.URL,
		ClientID:     "client-1",
		RedirectURIs: []string{"https://app.example.com/cb"},
	})

	durable := storage.NewMemoryStore()
	legacy := compat.New(durable, func() string { return "client-1" })
	opts := authflow.Options{
		Config:     holder,
		Tokens:     tokenstore.New(durable, legacy),
		Session:    storage.NewMemoryStore(),
		Navigator:  testutil.NewFakeNavigator("https://app.example.com/cb"),
		Legacy:     legacy,
		HTTPClient: srv.Client(),
	}
	if session != nil {
		opts.ProviderSession = session
	}
	client, err := authflow.New(opts)
	require.NoError(t, err)

	return &fixture{
		service: NewService(client, legacy),
		durable: durable,
		legacy:  legacy,
		calls:   calls,
	}
}

const okBody = `{"access_token":"AT","id_token":"IT","refresh_token":"RT","username":"u","expires_in":3600}`

func TestHandleRedirectCallback_TrustsExchangeWhenProviderDisagrees(t *testing.T) {
	session := &testutil.MockSession{}
	session.On("HasSession", mock.Anything, "AT").Return(false, nil)

	f := newFixture(t, session, http.StatusOK, okBody)
	ctx := t.Context()

	var states []bool
	f.service.OnAuthChange(func(v bool) { states = append(states, v) })

	shadow := &testutil.MockShadow{}
	shadow.On("Mirror", mock.Anything, mock.MatchedBy(func(ts *tokenstore.TokenSet) bool {
		return ts.AccessToken == "AT"
	})).Return(nil)
	f.service.shadow = shadow

	tokens, err := f.service.HandleRedirectCallback(ctx, "https://app.example.com/cb?code=abc")
	require.NoError(t, err)
	assert.Equal(t, "AT", tokens.AccessToken)

	assert.True(t, f.service.IsLoggedIn(ctx))
	require.NotEmpty(t, states)
	assert.True(t, states[len(states)-1])

	shadow.AssertNumberOfCalls(t, "Mirror", 1)
	v, err := f.durable.Get(ctx, compat.TokenKey("client-1", "u", "accessToken"))
	require.NoError(t, err)
	assert.Equal(t, "AT", v)

	// the provider is not asked again for a token this client obtained
	assert.True(t, f.service.NotifyAuthChange(ctx))
	session.AssertNumberOfCalls(t, "HasSession", 1)
}

func TestHandleRedirectCallback_ProviderErrorStillSucceeds(t *testing.T) {
	session := &testutil.MockSession{}
	session.On("HasSession", mock.Anything, "AT").Return(false, errors.New("throttled"))

	f := newFixture(t, session, http.StatusOK, okBody)

	result := NewCallbackResult(f.service.HandleRedirectCallback(t.Context(), "https://app.example.com/cb?code=abc"))
	assert.True(t, result.Success)
	assert.True(t, f.service.IsLoggedIn(t.Context()))
}

func TestHandleRedirectCallback_ProviderAgrees(t *testing.T) {
	session := &testutil.MockSession{}
	session.On("HasSession", mock.Anything, "AT").Return(true, nil)

	f := newFixture(t, session, http.StatusOK, okBody)

	_, err := f.service.HandleRedirectCallback(t.Context(), "https://app.example.com/cb?code=abc")
	require.NoError(t, err)
	assert.True(t, f.service.NotifyAuthChange(t.Context()))
}

func TestHandleRedirectCallback_Failures(t *testing.T) {
	f := newFixture(t, nil, http.StatusBadRequest, `{"error":"invalid_grant"}`)

	result := NewCallbackResult(f.service.HandleRedirectCallback(t.Context(), "https://app.example.com/cb"))
	assert.Equal(t, CallbackResult{Error: "no-code"}, result)
	assert.Equal(t, int32(0), f.calls.Load())

	result = NewCallbackResult(f.service.HandleRedirectCallback(t.Context(), "https://app.example.com/cb?code=spent"))
	assert.Equal(t, CallbackResult{Error: "no-token"}, result)
	assert.Equal(t, int32(1), f.calls.Load())
	assert.False(t, f.service.IsLoggedIn(t.Context()))
}

func TestService_SignOut(t *testing.T) {
	session := &testutil.MockSession{}
	session.On("HasSession", mock.Anything, "AT").Return(true, nil)
	session.On("SignOut", mock.Anything, "AT").Return(nil)

	f := newFixture(t, session, http.StatusOK, okBody)
	ctx := t.Context()

	_, err := f.service.HandleRedirectCallback(ctx, "https://app.example.com/cb?code=abc")
	require.NoError(t, err)

	var states []bool
	f.service.OnAuthChange(func(v bool) { states = append(states, v) })
	require.NoError(t, f.service.SignOut(ctx))

	assert.Equal(t, []bool{true, false}, states)
	assert.Nil(t, f.service.GetTokens(ctx))
	assert.Nil(t, f.legacy.Read(ctx))
	session.AssertCalled(t, "SignOut", mock.Anything, "AT")
}
