package storage

import (
	"context"
	"time"

	"github.com/dgellow/minidp/internal/log"
)

// CleanupManager periodically drops stale session entries, such as the
// verifier of a login that never came back
type CleanupManager struct {
	store    Expirer
	maxAge   time.Duration
	interval time.Duration
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(store Expirer, maxAge, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		store:    store,
		maxAge:   maxAge,
		interval: interval,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins the cleanup loop in a goroutine
func (cm *CleanupManager) Start(ctx context.Context) {
	log.LogDebugWithFields("cleanup", "Starting session storage cleanup", map[string]any{
		"interval": cm.interval.String(),
		"max_age":  cm.maxAge.String(),
	})

	go cm.run(ctx)
}

// Stop gracefully stops the cleanup loop
func (cm *CleanupManager) Stop() {
	close(cm.stopChan)
	<-cm.doneChan
	log.LogDebug("Session storage cleanup stopped")
}

func (cm *CleanupManager) run(ctx context.Context) {
	defer close(cm.doneChan)

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	cm.cleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.cleanup(ctx)
		case <-cm.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (cm *CleanupManager) cleanup(ctx context.Context) {
	count, err := cm.store.DeleteOlderThan(ctx, cm.maxAge)
	if err != nil {
		log.LogErrorWithFields("cleanup", "Failed to cleanup stale session entries", map[string]any{
			"error": err.Error(),
		})
		return
	}

	if count > 0 {
		log.LogInfoWithFields("cleanup", "Cleaned up stale session entries", map[string]any{
			"count": count,
		})
	}
}
