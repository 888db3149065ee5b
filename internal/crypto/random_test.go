package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomBytes(t *testing.T) {
	b, err := RandomBytes(24)
	require.NoError(t, err)
	assert.Len(t, b, 24)
}
