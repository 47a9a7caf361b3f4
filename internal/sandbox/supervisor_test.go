package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name string
		sc   StartConfig
		want []string
	}{
		{
			name: "minimal",
			sc:   StartConfig{Token: "t", Name: "n"},
			want: []string{"@hackerai/local", "--token", "t", "--name", "n", "--image", "hackerai/sandbox"},
		},
		{
			name: "all flags",
			sc:   StartConfig{Token: "t", Name: "n", Dangerous: true, Persist: true},
			want: []string{"@hackerai/local", "--token", "t", "--name", "n", "--image", "hackerai/sandbox", "--dangerous", "--persist"},
		},
		{
			name: "persist only",
			sc:   StartConfig{Token: "t", Name: "n", Persist: true},
			want: []string{"@hackerai/local", "--token", "t", "--name", "n", "--image", "hackerai/sandbox", "--persist"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildArgs("@hackerai/local", tt.sc, "hackerai/sandbox"))
		})
	}
}

func TestStopWithoutSandbox(t *testing.T) {
	s := NewSupervisor(Options{})
	assert.NoError(t, s.Stop())
	assert.NoError(t, s.Stop())

	h := s.Status()
	assert.False(t, h.Running)
	assert.Zero(t, h.PID)
	assert.Equal(t, "hackerai/sandbox", h.Image)
}
