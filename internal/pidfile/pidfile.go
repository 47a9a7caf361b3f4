// Package pidfile records the running sandbox so a restarted daemon can tell
// whether it left one behind.
package pidfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/codefionn/hackerai-desktop/internal/lockfile"
)

// ErrNoRecord is returned by Read when no pid file exists.
var ErrNoRecord = errors.New("no pid file")

// Record describes a started sandbox.
type Record struct {
	PID       int       `json:"pid"`
	Name      string    `json:"name"`
	Image     string    `json:"image"`
	StartedAt time.Time `json:"started_at"`
}

// Pidfile represents a PID file
type Pidfile struct {
	path string
}

// New creates a new PID file instance. An empty path disables it.
func New(path string) *Pidfile {
	return &Pidfile{
		path: path,
	}
}

// Write replaces the file with rec.
func (p *Pidfile) Write(rec Record) error {
	if p.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return fmt.Errorf("failed to create pidfile directory: %w", err)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := os.WriteFile(p.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write pidfile: %w", err)
	}
	return nil
}

// Read reads the record from the PID file
func (p *Pidfile) Read() (Record, error) {
	if p.path == "" {
		return Record{}, ErrNoRecord
	}
	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return Record{}, ErrNoRecord
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to read pidfile: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil || rec.PID <= 0 {
		return Record{}, fmt.Errorf("invalid pidfile %s", p.path)
	}
	return rec, nil
}

// Leftover returns a record whose process is still alive. Records of exited
// processes and unreadable files are removed and reported as absent.
func (p *Pidfile) Leftover() (Record, bool) {
	rec, err := p.Read()
	if errors.Is(err, ErrNoRecord) {
		return Record{}, false
	}
	if err != nil || !lockfile.ProcessAlive(rec.PID) {
		_ = p.Remove()
		return Record{}, false
	}
	return rec, true
}

// Remove removes the PID file
func (p *Pidfile) Remove() error {
	if p.path == "" {
		return nil
	}
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove pidfile: %w", err)
	}
	return nil
}

// Path returns the PID file path
func (p *Pidfile) Path() string {
	return p.path
}
