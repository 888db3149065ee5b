// Package browser models the host the client runs in: a current location
// that can be navigated away from or rewritten in place.
package browser

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/pkg/browser"

	"github.com/dgellow/minidp/internal/log"
)

// Navigator is the page location seen by the auth flow
type Navigator interface {
	// Location is the current URL
	Location() string
	// Navigate leaves the current page for target
	Navigate(ctx context.Context, target string) error
	// Replace rewrites the current URL without navigating
	Replace(target string)
}

var _ Navigator = (*SystemBrowser)(nil)

// SystemBrowser opens navigations in the user's default browser. Its
// location is the URL the local process answers on, typically the
// loopback callback server.
type SystemBrowser struct {
	mu       sync.Mutex
	location string
	open     func(string) error
}

// NewSystemBrowser starts at location
func NewSystemBrowser(location string) *SystemBrowser {
	browser.Stdout = io.Discard
	return &SystemBrowser{location: location, open: browser.OpenURL}
}

func (b *SystemBrowser) Location() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.location
}

// SetLocation updates the current URL, e.g. once the callback server
// knows its port
func (b *SystemBrowser) SetLocation(location string) {
	b.mu.Lock()
	b.location = location
	b.mu.Unlock()
}

func (b *SystemBrowser) Navigate(ctx context.Context, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log.LogInfoWithFields("browser", "Opening system browser", map[string]any{
		"url": target,
	})
	if err := b.open(target); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

func (b *SystemBrowser) Replace(target string) {
	b.SetLocation(target)
}
