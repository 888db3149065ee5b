package authflow

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/dgellow/minidp/internal/compat"
	"github.com/dgellow/minidp/internal/config"
	"github.com/dgellow/minidp/internal/idp"
	"github.com/dgellow/minidp/internal/storage"
	"github.com/dgellow/minidp/internal/testutil"
	"github.com/dgellow/minidp/internal/tokenstore"
)

const testClientID = "client-123"

type tokenResponse struct {
	status      int
	body        string
	contentType string
}

// fakeTokenEndpoint records every form posted to /oauth2/token
type fakeTokenEndpoint struct {
	srv *httptest.Server

	mu      sync.Mutex
	forms   []url.Values
	respond func(form url.Values) tokenResponse
}

func newFakeTokenEndpoint(t *testing.T, respond func(form url.Values) tokenResponse) *fakeTokenEndpoint {
	t.Helper()
	f := &fakeTokenEndpoint{respond: respond}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth2/token" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))

		f.mu.Lock()
		f.forms = append(f.forms, form)
		f.mu.Unlock()

		resp := f.respond(form)
		if resp.contentType == "" {
			resp.contentType = "application/json"
		}
		w.Header().Set("Content-Type", resp.contentType)
		w.WriteHeader(resp.status)
		_, _ = w.Write([]byte(resp.body))
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeTokenEndpoint) Forms() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.forms...)
}

func (f *fakeTokenEndpoint) Calls() int {
	return len(f.Forms())
}

func okJSON(body string) tokenResponse {
	return tokenResponse{status: http.StatusOK, body: body}
}

type harness struct {
	client   *Client
	endpoint *fakeTokenEndpoint
	durable  *storage.MemoryStore
	session  *storage.MemoryStore
	nav      *testutil.FakeNavigator
	holder   *config.Holder
	legacy   *compat.Legacy
	now      time.Time
}

type harnessOption func(*Options)

func withProviderSession(s idp.Session) harnessOption {
	return func(o *Options) { o.ProviderSession = s }
}

func withLimiter(l *rate.Limiter) harnessOption {
	return func(o *Options) { o.RefreshLimiter = l }
}

func newHarness(t *testing.T, respond func(form url.Values) tokenResponse, opts ...harnessOption) *harness {
	t.Helper()
	if respond == nil {
		respond = func(url.Values) tokenResponse {
			return tokenResponse{status: http.StatusInternalServerError, body: `{"error":"unexpected call"}`}
		}
	}
	endpoint := newFakeTokenEndpoint(t, respond)

	holder := config.NewHolder(nil)
	holder.Init(config.IdentityProviderConfig{
		Domain:       endpoint.srv.URL,
		ClientID:     testClientID,
		RedirectURIs: []string{"https://a.example.com/x", "https://b.example.com/y"},
	})

	h := &harness{
		endpoint: endpoint,
		durable:  storage.NewMemoryStore(),
		session:  storage.NewMemoryStore(),
		nav:      testutil.NewFakeNavigator("https://b.example.com/y"),
		holder:   holder,
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	h.legacy = compat.New(h.durable, func() string {
		if cfg := holder.Get(); cfg != nil {
			return cfg.ClientID
		}
		return ""
	})

	o := Options{
		Config:     holder,
		Tokens:     tokenstore.New(h.durable, h.legacy),
		Session:    h.session,
		Navigator:  h.nav,
		Legacy:     h.legacy,
		HTTPClient: endpoint.srv.Client(),
		Now:        func() time.Time { return h.now },
	}
	for _, opt := range opts {
		opt(&o)
	}

	client, err := New(o)
	require.NoError(t, err)
	h.client = client
	return h
}

func (h *harness) durableValue(t *testing.T, key string) string {
	t.Helper()
	v, err := h.durable.Get(t.Context(), key)
	require.NoError(t, err, "key %s", key)
	return v
}

func (h *harness) seedTokens(t *testing.T, ts *tokenstore.TokenSet) {
	t.Helper()
	require.NoError(t, h.client.tokens.Save(t.Context(), ts))
}
