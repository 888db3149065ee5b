package browser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemBrowser_Navigate(t *testing.T) {
	b := NewSystemBrowser("http://127.0.0.1:8765/callback")
	var opened []string
	b.open = func(u string) error {
		opened = append(opened, u)
		return nil
	}

	require.NoError(t, b.Navigate(t.Context(), "https://auth.example.com/oauth2/authorize"))
	assert.Equal(t, []string{"https://auth.example.com/oauth2/authorize"}, opened)
	// navigation happens in another process; our location is unchanged
	assert.Equal(t, "http://127.0.0.1:8765/callback", b.Location())
}

func TestSystemBrowser_NavigateErrors(t *testing.T) {
	b := NewSystemBrowser("")
	b.open = func(string) error { return errors.New("no display") }
	err := b.Navigate(t.Context(), "https://auth.example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no display")

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	assert.ErrorIs(t, b.Navigate(ctx, "https://auth.example.com"), context.Canceled)
}

func TestSystemBrowser_Replace(t *testing.T) {
	b := NewSystemBrowser("http://127.0.0.1:8765/callback?code=abc")
	b.Replace("http://127.0.0.1:8765/callback")
	assert.Equal(t, "http://127.0.0.1:8765/callback", b.Location())
}
