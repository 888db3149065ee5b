// Package notify broadcasts authentication state changes to subscribers
// and to a process-local event bus.
package notify

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dgellow/minidp/internal/log"
)

// Hooks connect the notifier to the components that know the auth state.
// Only LocalState is required.
type Hooks struct {
	// Revalidate refreshes tokens when they are about to expire
	Revalidate func(ctx context.Context) bool
	// SessionState asks the provider for a live session. It is preferred
	// over LocalState unless it returns an error.
	SessionState func(ctx context.Context) (bool, error)
	// LocalState reports whether stored tokens exist
	LocalState func(ctx context.Context) bool
	// SetFlag persists the quick "logged in" marker
	SetFlag func(ctx context.Context, loggedIn bool) error
}

// Notifier keeps the subscriber set and the last computed auth state
type Notifier struct {
	hooks Hooks
	bus   *Bus

	mu          sync.RWMutex
	order       []uuid.UUID
	subscribers map[uuid.UUID]func(bool)

	known atomic.Bool
	quick atomic.Bool
}

// New creates a notifier dispatching to bus; a nil bus gets a fresh one
func New(hooks Hooks, bus *Bus) *Notifier {
	if bus == nil {
		bus = NewBus()
	}
	return &Notifier{
		hooks:       hooks,
		bus:         bus,
		subscribers: make(map[uuid.UUID]func(bool)),
	}
}

// Bus returns the event bus the notifier dispatches to
func (n *Notifier) Bus() *Bus {
	return n.bus
}

// Current returns the cached state when one was computed, else the local
// token state
func (n *Notifier) Current(ctx context.Context) bool {
	if n.known.Load() {
		return n.quick.Load()
	}
	return n.localState(ctx)
}

// OnAuthChange registers cb and calls it once, synchronously, with the
// current state before returning. The returned function unsubscribes.
func (n *Notifier) OnAuthChange(cb func(loggedIn bool)) func() {
	if cb == nil {
		return func() {}
	}
	id := uuid.New()
	n.mu.Lock()
	n.subscribers[id] = cb
	n.order = append(n.order, id)
	n.mu.Unlock()

	current := n.Current(context.Background())
	safeCall("subscriber", func() { cb(current) })

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subscribers, id)
			n.order = removeID(n.order, id)
		})
	}
}

// Subscribers returns the number of registered callbacks
func (n *Notifier) Subscribers() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subscribers)
}

// NotifyAuthChange revalidates, recomputes the state and broadcasts it.
// It never fails; every step degrades to the local token state.
func (n *Notifier) NotifyAuthChange(ctx context.Context) bool {
	if n.hooks.Revalidate != nil {
		safeCall("revalidation", func() { n.hooks.Revalidate(ctx) })
	}
	return n.Publish(ctx, n.compute(ctx))
}

// Publish broadcasts value without recomputing it
func (n *Notifier) Publish(ctx context.Context, value bool) bool {
	n.quick.Store(value)
	n.known.Store(true)

	if n.hooks.SetFlag != nil {
		safeCall("flag", func() {
			if err := n.hooks.SetFlag(ctx, value); err != nil {
				log.LogWarnWithFields("notify", "Failed to update logged-in flag", map[string]any{
					"error": err.Error(),
				})
			}
		})
	}

	n.bus.Dispatch(Event{Name: EventName, Value: value})

	for _, cb := range n.snapshot() {
		safeCall("subscriber", func() { cb(value) })
	}

	log.LogTraceWithFields("notify", "Auth state broadcast", map[string]any{
		"loggedIn": value,
	})
	return value
}

func (n *Notifier) compute(ctx context.Context) bool {
	if n.hooks.SessionState != nil {
		var (
			ok  bool
			err error
		)
		panicked := true
		safeCall("session check", func() {
			ok, err = n.hooks.SessionState(ctx)
			panicked = false
		})
		if !panicked && err == nil {
			return ok
		}
		if err != nil {
			log.LogDebugWithFields("notify", "Session check failed, using stored tokens", map[string]any{
				"error": err.Error(),
			})
		}
	}
	return n.localState(ctx)
}

func (n *Notifier) localState(ctx context.Context) bool {
	if n.hooks.LocalState == nil {
		return false
	}
	value := false
	safeCall("state", func() { value = n.hooks.LocalState(ctx) })
	return value
}

func (n *Notifier) snapshot() []func(bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]func(bool), 0, len(n.order))
	for _, id := range n.order {
		out = append(out, n.subscribers[id])
	}
	return out
}
