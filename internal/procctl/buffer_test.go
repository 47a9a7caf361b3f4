package procctl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTailBufferKeepsTail(t *testing.T) {
	b := newTailBuffer(8)

	_, _ = b.Write([]byte("0123"))
	assert.Equal(t, "0123", b.String())
	assert.False(t, b.Truncated())

	_, _ = b.Write([]byte("456789"))
	assert.Equal(t, "23456789", b.String())
	assert.True(t, b.Truncated())

	n, err := b.Write([]byte("abcdefghijkl"))
	assert.NoError(t, err)
	assert.Equal(t, 12, n)
	assert.Equal(t, "efghijkl", b.String())
}
