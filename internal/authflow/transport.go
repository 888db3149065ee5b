package authflow

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

// maxTokenResponse matches the body limit x/oauth2 applies
const maxTokenResponse = 1 << 20

// responseRecorder keeps the status and body of the last token endpoint
// response. x/oauth2 refuses a 2xx without access_token; the recorded JSON
// lets an id-token-only response still count as a successful grant.
type responseRecorder struct {
	base http.RoundTripper

	mu     sync.Mutex
	status int
	body   []byte
}

func (r *responseRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := r.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponse))
	resp.Body.Close()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.status = resp.StatusCode
	r.body = body
	r.mu.Unlock()

	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

// token builds a token from a recorded 2xx JSON object response
func (r *responseRecorder) token() (*oauth2.Token, bool) {
	r.mu.Lock()
	status, body := r.status, r.body
	r.mu.Unlock()

	if status < 200 || status > 299 || !gjson.ValidBytes(body) {
		return nil, false
	}
	res := gjson.ParseBytes(body)
	if !res.IsObject() {
		return nil, false
	}
	raw, _ := res.Value().(map[string]any)
	tok := &oauth2.Token{
		AccessToken:  res.Get("access_token").String(),
		TokenType:    res.Get("token_type").String(),
		RefreshToken: res.Get("refresh_token").String(),
		ExpiresIn:    res.Get("expires_in").Int(),
	}
	return tok.WithExtra(raw), true
}

// recordingContext carries an HTTP client for x/oauth2 whose responses
// are recorded
func (c *Client) recordingContext(ctx context.Context) (context.Context, *responseRecorder) {
	base := c.http.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	rec := &responseRecorder{base: base}
	hc := *c.http
	hc.Transport = rec
	return context.WithValue(ctx, oauth2.HTTPClient, &hc), rec
}
