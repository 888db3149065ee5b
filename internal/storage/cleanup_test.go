package storage

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingExpirer struct {
	calls atomic.Int32
}

func (c *countingExpirer) DeleteOlderThan(context.Context, time.Duration) (int, error) {
	c.calls.Add(1)
	return 1, nil
}

func TestCleanupManager_RunsImmediatelyAndStops(t *testing.T) {
	exp := &countingExpirer{}
	cm := NewCleanupManager(exp, time.Minute, 10*time.Millisecond)
	cm.Start(context.Background())

	assert.Eventually(t, func() bool { return exp.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cm.Stop()

	after := exp.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, exp.calls.Load())
}
