package pkce

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"hash"

	"golang.org/x/oauth2"
)

// Strategy derives an S256 challenge from a verifier
type Strategy interface {
	Name() string
	Available() bool
	Challenge(ctx context.Context, verifier string) (string, error)
}

// DeriveChallenge is base64url(SHA-256(verifier)) without padding
func DeriveChallenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// SyncStrategy hashes inline
type SyncStrategy struct{}

func (SyncStrategy) Name() string    { return "sync" }
func (SyncStrategy) Available() bool { return true }

func (SyncStrategy) Challenge(ctx context.Context, verifier string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return DeriveChallenge(verifier), nil
}

// AsyncStrategy hashes on a separate goroutine in fixed-size chunks and
// returns a future for the result
type AsyncStrategy struct {
	chunkSize int
	newHash   func() hash.Hash
}

// NewAsyncStrategy returns a streaming SHA-256 strategy
func NewAsyncStrategy() *AsyncStrategy {
	return &AsyncStrategy{chunkSize: 16, newHash: sha256.New}
}

func (a *AsyncStrategy) Name() string    { return "async" }
func (a *AsyncStrategy) Available() bool { return a != nil && a.newHash != nil }

// Future is a challenge computation in flight
type Future struct {
	done chan struct{}
	val  string
	err  error
}

// Await blocks until the challenge is ready or ctx is done
func (f *Future) Await(ctx context.Context) (string, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Start begins hashing verifier in the background
func (a *AsyncStrategy) Start(ctx context.Context, verifier string) *Future {
	f := &Future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		h := a.newHash()
		data := []byte(verifier)
		for off := 0; off < len(data); off += a.chunkSize {
			if err := ctx.Err(); err != nil {
				f.err = err
				return
			}
			end := min(off+a.chunkSize, len(data))
			h.Write(data[off:end])
		}
		f.val = base64.RawURLEncoding.EncodeToString(h.Sum(nil))
	}()
	return f
}

func (a *AsyncStrategy) Challenge(ctx context.Context, verifier string) (string, error) {
	return a.Start(ctx, verifier).Await(ctx)
}
