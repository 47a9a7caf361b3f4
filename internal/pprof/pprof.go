// Package pprof exposes the daemon's runtime profiles for debugging.
package pprof

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	netpprof "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/pprof"
	"sync"
	"time"

	"github.com/codefionn/hackerai-desktop/internal/logger"
)

// Config selects which profiles are collected. Zero values disable a mode.
type Config struct {
	HTTPAddr    string // e.g. "127.0.0.1:6060"
	CPUProfile  string // written from Start until Stop
	HeapProfile string // written on Stop
}

// Enabled reports whether any profiling mode is configured.
func (c Config) Enabled() bool {
	return c.HTTPAddr != "" || c.CPUProfile != "" || c.HeapProfile != ""
}

// Handler manages pprof profiling
type Handler struct {
	config Config

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	cpuFile  *os.File
	stopped  bool
}

func NewHandler(config Config) *Handler {
	return &Handler{config: config}
}

// Start begins profiling based on the configuration
func (h *Handler) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.config.CPUProfile != "" {
		f, err := createProfile(h.config.CPUProfile)
		if err != nil {
			return err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return fmt.Errorf("failed to start CPU profiling: %w", err)
		}
		h.cpuFile = f
	}

	if h.config.HTTPAddr == "" {
		return nil
	}

	ln, err := net.Listen("tcp", h.config.HTTPAddr)
	if err != nil {
		h.stopCPULocked()
		return fmt.Errorf("failed to bind pprof HTTP server: %w", err)
	}
	srv := &http.Server{Handler: mux(), ReadHeaderTimeout: 10 * time.Second}
	h.listener = ln
	h.server = srv

	// Stop may clear h.server before this goroutine runs.
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("pprof server error: %v", err)
		}
	}()
	logger.Info("pprof listening on http://%s/debug/pprof/", ln.Addr())
	return nil
}

// Addr returns the bound HTTP address, or "" when the HTTP mode is off.
func (h *Handler) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

// Stop finishes the CPU profile, writes the heap profile and closes the HTTP
// server. Calling it twice is a no-op.
func (h *Handler) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return nil
	}
	h.stopped = true

	errs := []error{h.stopCPULocked()}

	if h.config.HeapProfile != "" {
		errs = append(errs, writeHeap(h.config.HeapProfile))
	}

	if h.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown pprof server: %w", err))
		}
		h.server = nil
		h.listener = nil
	}
	return errors.Join(errs...)
}

func (h *Handler) stopCPULocked() error {
	if h.cpuFile == nil {
		return nil
	}
	pprof.StopCPUProfile()
	err := h.cpuFile.Close()
	h.cpuFile = nil
	if err != nil {
		return fmt.Errorf("failed to close CPU profile: %w", err)
	}
	return nil
}

func mux() *http.ServeMux {
	m := http.NewServeMux()
	m.HandleFunc("/debug/pprof/", netpprof.Index)
	m.HandleFunc("/debug/pprof/cmdline", netpprof.Cmdline)
	m.HandleFunc("/debug/pprof/profile", netpprof.Profile)
	m.HandleFunc("/debug/pprof/symbol", netpprof.Symbol)
	m.HandleFunc("/debug/pprof/trace", netpprof.Trace)
	return m
}

func createProfile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile file: %w", err)
	}
	return f, nil
}

func writeHeap(path string) error {
	f, err := createProfile(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("failed to write heap profile: %w", err)
	}
	return nil
}
