package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirestoreStoreConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("missing GCP project ID", func(t *testing.T) {
		_, err := NewFirestoreStore(ctx, "", "(default)", "minidp_kv")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "projectID is required")
	})

	t.Run("missing collection", func(t *testing.T) {
		_, err := NewFirestoreStore(ctx, "test-project", "(default)", "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "collection is required")
	})
}

func TestDocID_EscapesSlashes(t *testing.T) {
	assert.Equal(t, "sc_auth.tokens", docID("sc_auth.tokens"))
	assert.Equal(t, "a%2Fb", docID("a/b"))
}
