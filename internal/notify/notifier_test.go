package notify

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnAuthChange_ImmediateSynchronousCall(t *testing.T) {
	n := New(Hooks{LocalState: func(context.Context) bool { return true }}, nil)

	var got []bool
	unsubscribe := n.OnAuthChange(func(v bool) { got = append(got, v) })
	defer unsubscribe()

	// delivered before OnAuthChange returned
	assert.Equal(t, []bool{true}, got)
}

func TestOnAuthChange_UsesQuickFlagOnceKnown(t *testing.T) {
	var localCalls atomic.Int32
	n := New(Hooks{LocalState: func(context.Context) bool {
		localCalls.Add(1)
		return false
	}}, nil)

	n.Publish(t.Context(), true)

	var got bool
	n.OnAuthChange(func(v bool) { got = v })
	assert.True(t, got)
	assert.Equal(t, int32(0), localCalls.Load())
}

func TestNotifyAuthChange_Broadcast(t *testing.T) {
	var flag []bool
	state := true
	n := New(Hooks{
		LocalState: func(context.Context) bool { return state },
		SetFlag: func(_ context.Context, v bool) error {
			flag = append(flag, v)
			return nil
		},
	}, nil)

	var events []Event
	n.Bus().Listen(func(ev Event) { events = append(events, ev) })

	var a, b []bool
	n.OnAuthChange(func(v bool) { a = append(a, v) })
	unsubB := n.OnAuthChange(func(v bool) { b = append(b, v) })

	assert.True(t, n.NotifyAuthChange(t.Context()))
	state = false
	unsubB()
	assert.False(t, n.NotifyAuthChange(t.Context()))

	assert.Equal(t, []bool{true, true, false}, a)
	assert.Equal(t, []bool{true, true}, b)
	assert.Equal(t, []bool{true, false}, flag)
	require.Len(t, events, 2)
	assert.Equal(t, Event{Name: EventName, Value: false}, events[1])
	assert.Equal(t, 1, n.Subscribers())
}

func TestNotifyAuthChange_PrefersSessionState(t *testing.T) {
	tests := []struct {
		name    string
		session func(context.Context) (bool, error)
		local   bool
		want    bool
	}{
		{
			name:    "session says yes",
			session: func(context.Context) (bool, error) { return true, nil },
			local:   false,
			want:    true,
		},
		{
			name:    "session says no",
			session: func(context.Context) (bool, error) { return false, nil },
			local:   true,
			want:    false,
		},
		{
			name:    "session check fails",
			session: func(context.Context) (bool, error) { return false, errors.New("unreachable") },
			local:   true,
			want:    true,
		},
		{
			name:    "session check panics",
			session: func(context.Context) (bool, error) { panic("boom") },
			local:   true,
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := New(Hooks{
				SessionState: tt.session,
				LocalState:   func(context.Context) bool { return tt.local },
			}, nil)
			assert.Equal(t, tt.want, n.NotifyAuthChange(t.Context()))
		})
	}
}

func TestNotifyAuthChange_NeverFails(t *testing.T) {
	n := New(Hooks{
		Revalidate: func(context.Context) bool { panic("refresh exploded") },
		LocalState: func(context.Context) bool { return true },
		SetFlag:    func(context.Context, bool) error { return errors.New("storage full") },
	}, nil)

	n.Bus().Listen(func(Event) { panic("listener exploded") })

	var after []bool
	n.OnAuthChange(func(v bool) {
		if len(after) > 0 {
			panic("subscriber exploded")
		}
		after = append(after, v)
	})
	var last bool
	n.OnAuthChange(func(v bool) { last = v })

	assert.NotPanics(t, func() { n.NotifyAuthChange(t.Context()) })
	assert.True(t, last)
}

func TestNotifyAuthChange_RevalidatesFirst(t *testing.T) {
	var order []string
	n := New(Hooks{
		Revalidate: func(context.Context) bool {
			order = append(order, "revalidate")
			return true
		},
		LocalState: func(context.Context) bool {
			order = append(order, "state")
			return true
		},
	}, nil)

	n.NotifyAuthChange(t.Context())
	assert.Equal(t, []string{"revalidate", "state"}, order)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	n := New(Hooks{}, nil)
	unsub := n.OnAuthChange(func(bool) {})
	n.OnAuthChange(func(bool) {})
	unsub()
	unsub()
	assert.Equal(t, 1, n.Subscribers())
}
