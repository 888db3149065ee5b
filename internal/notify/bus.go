package notify

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dgellow/minidp/internal/log"
)

// EventName is dispatched on every auth state recomputation
const EventName = "sc-auth-change"

// Event carries the recomputed auth state
type Event struct {
	Name  string `json:"name"`
	Value bool   `json:"value"`
}

// Listener observes dispatched events
type Listener func(Event)

// Bus is a process-local event target. Listeners are called in
// registration order; a panicking listener does not stop the others.
type Bus struct {
	mu        sync.RWMutex
	order     []uuid.UUID
	listeners map[uuid.UUID]Listener
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{listeners: make(map[uuid.UUID]Listener)}
}

// Listen registers fn and returns a function that removes it
func (b *Bus) Listen(fn Listener) func() {
	id := uuid.New()
	b.mu.Lock()
	b.listeners[id] = fn
	b.order = append(b.order, id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.listeners, id)
			b.order = removeID(b.order, id)
		})
	}
}

// Dispatch delivers ev to every listener
func (b *Bus) Dispatch(ev Event) {
	for _, fn := range b.snapshot() {
		safeCall("listener", func() { fn(ev) })
	}
}

func (b *Bus) snapshot() []Listener {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Listener, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.listeners[id])
	}
	return out
}

func removeID(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// safeCall runs fn and logs a panic instead of propagating it
func safeCall(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.LogErrorWithFields("notify", "Recovered panic in auth "+what, map[string]any{
				"panic": fmt.Sprint(r),
			})
		}
	}()
	fn()
}
