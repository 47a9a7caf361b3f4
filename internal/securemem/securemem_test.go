package securemem

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewString(t *testing.T) {
	s := NewString("3f1c2a9e-state")
	defer s.Destroy()

	assert.Equal(t, "3f1c2a9e-state", s.String())
	assert.Equal(t, len("3f1c2a9e-state"), s.Len())
}

func TestEqual(t *testing.T) {
	s := NewString("secret")
	defer s.Destroy()

	assert.True(t, s.Equal("secret"))
	assert.False(t, s.Equal("Secret"))
	assert.False(t, s.Equal(""))
}

func TestDestroy(t *testing.T) {
	s := NewString("secret")
	s.Destroy()
	s.Destroy()

	assert.Equal(t, "", s.String())
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Equal("secret"))
}

func TestNilString(t *testing.T) {
	var s *String

	assert.Equal(t, "", s.String())
	assert.False(t, s.Equal(""))
	s.Destroy()
}
