package pprof

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigEnabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.True(t, Config{HTTPAddr: "127.0.0.1:0"}.Enabled())
	assert.True(t, Config{HeapProfile: "heap.out"}.Enabled())
}

func TestHTTPServer(t *testing.T) {
	h := NewHandler(Config{HTTPAddr: "127.0.0.1:0"})
	require.NoError(t, h.Start())
	t.Cleanup(func() { _ = h.Stop() })

	addr := h.Addr()
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://" + addr + "/debug/pprof/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, h.Stop())
	assert.Empty(t, h.Addr())
	require.NoError(t, h.Stop())
}

func TestProfileFiles(t *testing.T) {
	dir := t.TempDir()
	cpu := filepath.Join(dir, "nested", "cpu.out")
	heap := filepath.Join(dir, "heap.out")

	h := NewHandler(Config{CPUProfile: cpu, HeapProfile: heap})
	require.NoError(t, h.Start())
	require.NoError(t, h.Stop())

	for _, path := range []string{cpu, heap} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size(), path)
	}
}

func TestStartFailsOnBusyAddr(t *testing.T) {
	first := NewHandler(Config{HTTPAddr: "127.0.0.1:0"})
	require.NoError(t, first.Start())
	t.Cleanup(func() { _ = first.Stop() })

	second := NewHandler(Config{HTTPAddr: first.Addr()})
	assert.Error(t, second.Start())
}

func TestStopRightAfterStart(t *testing.T) {
	for i := 0; i < 200; i++ {
		h := NewHandler(Config{HTTPAddr: "127.0.0.1:0"})
		require.NoError(t, h.Start())
		require.NoError(t, h.Stop())
	}
}
