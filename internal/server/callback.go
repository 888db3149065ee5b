package server

import (
	"context"
	"fmt"
	"html"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/dgellow/minidp/internal/log"
)

const callbackDonePage = `<!doctype html>
<html><head><meta charset="utf-8"><title>minidp</title></head>
<body><p>%s</p><p>You can close this window.</p></body></html>`

// Identity providers using response_mode=fragment never send the code to
// the server; this page replays the fragment as a query string.
const fragmentRelayPage = `<!doctype html>
<html><head><meta charset="utf-8"><title>minidp</title></head>
<body><script>
if (location.hash.length > 1) {
  location.replace(location.pathname + "?" + location.hash.substring(1));
} else {
  document.body.textContent = "No authorization response received.";
}
</script></body></html>`

// CallbackServer is the loopback redirect target of the login flow. It
// hands the first callback URL it receives to Wait.
type CallbackServer struct {
	http     *HTTPServer
	listener net.Listener
	host     string
	path     string
	urls     chan string
	once     sync.Once
}

// NewCallbackServer binds addr (host:port, port 0 picks a free one) and
// routes path to the callback handler
func NewCallbackServer(addr, path string) (*CallbackServer, error) {
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil || host == "" {
		host = "127.0.0.1"
	}
	s := &CallbackServer{
		listener: ln,
		host:     host,
		path:     path,
		urls:     make(chan string, 1),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger)
	e.GET("/health", echo.WrapHandler(NewHealthHandler()))
	e.GET(path, s.handleCallback)

	s.http = NewHTTPServer(e, ln.Addr().String())
	return s, nil
}

// URL is the redirect URI this server answers on. The host is the one
// requested, so "localhost" stays "localhost" after binding.
func (s *CallbackServer) URL() string {
	port := strconv.Itoa(s.listener.Addr().(*net.TCPAddr).Port)
	return "http://" + net.JoinHostPort(s.host, port) + s.path
}

// Start serves in the background
func (s *CallbackServer) Start() {
	go func() {
		if err := s.http.Serve(s.listener); err != nil {
			log.LogErrorWithFields("callback", "Callback server failed", map[string]any{
				"error": err.Error(),
			})
		}
	}()
}

// Wait blocks until a callback arrives or ctx is done
func (s *CallbackServer) Wait(ctx context.Context) (string, error) {
	select {
	case u := <-s.urls:
		return u, nil
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for callback: %w", ctx.Err())
	}
}

// Stop shuts the server down
func (s *CallbackServer) Stop(ctx context.Context) error {
	return s.http.Stop(ctx)
}

func (s *CallbackServer) handleCallback(c echo.Context) error {
	q := c.Request().URL.Query()
	if len(q) == 0 {
		return c.HTML(http.StatusOK, fragmentRelayPage)
	}

	callbackURL := s.URL() + "?" + c.Request().URL.RawQuery
	delivered := false
	s.once.Do(func() {
		s.urls <- callbackURL
		delivered = true
	})
	if !delivered {
		log.LogWarnWithFields("callback", "Ignoring repeated callback", nil)
	}

	msg := "Authorization response received."
	if e := q.Get("error"); e != "" {
		msg = "Authorization failed: " + html.EscapeString(e)
		if d := q.Get("error_description"); d != "" {
			msg += " (" + html.EscapeString(d) + ")"
		}
	}
	return c.HTML(http.StatusOK, fmt.Sprintf(callbackDonePage, msg))
}

func requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		log.LogTraceWithFields("http", "Request handled", map[string]any{
			"method": c.Request().Method,
			"path":   c.Request().URL.Path,
			"status": c.Response().Status,
		})
		return err
	}
}

// Loopback is a loopback redirect URI and where to serve it
type Loopback struct {
	// Addr is host:port for the listener
	Addr string
	Path string
	// RedirectURI is the configured URI exactly as registered
	RedirectURI string
}

// LoopbackAddr picks the first loopback http redirect URI, for binding
// the callback server
func LoopbackAddr(redirectURIs []string) (Loopback, bool) {
	for _, raw := range redirectURIs {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme != "http" {
			continue
		}
		host := u.Hostname()
		if host != "127.0.0.1" && host != "localhost" && host != "::1" {
			continue
		}
		port := u.Port()
		if port == "" {
			port = "80"
		}
		return Loopback{
			Addr:        net.JoinHostPort(host, port),
			Path:        u.Path,
			RedirectURI: raw,
		}, true
	}
	return Loopback{}, false
}
