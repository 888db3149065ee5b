// Package pkce creates RFC 7636 verifier/challenge pairs for the S256 method.
package pkce

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	mrand "math/rand/v2"

	"github.com/dgellow/minidp/internal/log"
)

const (
	// Method is the only challenge method this client sends
	Method = "S256"

	DefaultLength = 64
	MinLength     = 43
	MaxLength     = 128
)

// unreserved characters from RFC 3986 section 2.3
const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

// secureIndex is swapped in tests to simulate a failing secure source
var secureIndex = func(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

// Pair is a verifier and its derived challenge
type Pair struct {
	Verifier  string
	Challenge string
}

// GenerateVerifier returns a verifier of the given length, clamped to
// [MinLength, MaxLength]. Zero or negative selects DefaultLength. When the
// secure random source fails a non-cryptographic source is used and a
// warning is logged.
func GenerateVerifier(length int) string {
	switch {
	case length <= 0:
		length = DefaultLength
	case length < MinLength:
		length = MinLength
	case length > MaxLength:
		length = MaxLength
	}

	out := make([]byte, length)
	for i := range out {
		idx, err := secureIndex(len(letters))
		if err != nil {
			log.LogWarnWithFields("pkce", "Secure random source unavailable, falling back to math/rand", map[string]any{
				"error": err.Error(),
			})
			return fallbackVerifier(length)
		}
		out[i] = letters[idx]
	}
	return string(out)
}

func fallbackVerifier(length int) string {
	out := make([]byte, length)
	for i := range out {
		out[i] = letters[mrand.IntN(len(letters))]
	}
	return string(out)
}

// ValidVerifier reports whether v satisfies the RFC 7636 verifier grammar
func ValidVerifier(v string) bool {
	if len(v) < MinLength || len(v) > MaxLength {
		return false
	}
	for i := 0; i < len(v); i++ {
		if !isUnreserved(v[i]) {
			return false
		}
	}
	return true
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '.' || c == '_' || c == '~':
		return true
	}
	return false
}

// Generator creates pairs using the first available challenge strategy
type Generator struct {
	length     int
	strategies []Strategy
}

// Option configures a Generator
type Option func(*Generator)

// WithLength overrides the verifier length
func WithLength(n int) Option {
	return func(g *Generator) { g.length = n }
}

// WithStrategies replaces the strategy preference list
func WithStrategies(s ...Strategy) Option {
	return func(g *Generator) { g.strategies = s }
}

// NewGenerator prefers the synchronous strategy and falls back to the
// asynchronous one
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		length:     DefaultLength,
		strategies: []Strategy{SyncStrategy{}, NewAsyncStrategy()},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Strategy returns the strategy Generate would use, or nil
func (g *Generator) Strategy() Strategy {
	for _, s := range g.strategies {
		if s != nil && s.Available() {
			return s
		}
	}
	return nil
}

// Generate creates a fresh verifier and derives its challenge
func (g *Generator) Generate(ctx context.Context) (Pair, error) {
	s := g.Strategy()
	if s == nil {
		return Pair{}, fmt.Errorf("no challenge strategy available")
	}
	verifier := GenerateVerifier(g.length)
	challenge, err := s.Challenge(ctx, verifier)
	if err != nil {
		return Pair{}, fmt.Errorf("failed to derive challenge: %w", err)
	}
	return Pair{Verifier: verifier, Challenge: challenge}, nil
}
