// Package lockfile keeps a single daemon instance per user. The lock records
// the owner's control address so a second launch can hand its work over to
// the running instance instead of starting another.
package lockfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var (
	ErrLockAcquired = errors.New("lock already acquired")
	ErrLocked       = errors.New("daemon is already running")
	ErrNotLocked    = errors.New("no running daemon")
)

// Owner is the content of the lock.
type Owner struct {
	PID         int       `json:"pid"`
	StartedAt   time.Time `json:"started_at"`
	ControlAddr string    `json:"control_addr,omitempty"`
}

// Lockfile represents a file-based lock
type Lockfile struct {
	path   string
	owner  Owner
	locked bool
}

// New creates a new lockfile instance
func New(path string) *Lockfile {
	return &Lockfile{
		path: path,
	}
}

// TryAcquire takes the lock for the current process, advertising
// controlAddr. A lock left behind by a dead process is replaced.
func (l *Lockfile) TryAcquire(controlAddr string) error {
	if l.locked {
		return ErrLockAcquired
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return fmt.Errorf("failed to create lockfile directory: %w", err)
	}

	owner := Owner{
		PID:         os.Getpid(),
		StartedAt:   time.Now().UTC(),
		ControlAddr: controlAddr,
	}

	err := l.publish(owner)
	if os.IsExist(err) {
		current, readErr := ReadOwner(l.path)
		if readErr == nil {
			return fmt.Errorf("%w: pid %d", ErrLocked, current.PID)
		}
		if !errors.Is(readErr, ErrNotLocked) {
			return readErr
		}
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale lockfile: %w", err)
		}
		err = l.publish(owner)
	}
	if os.IsExist(err) {
		return ErrLocked
	}
	if err != nil {
		return fmt.Errorf("failed to create lockfile: %w", err)
	}

	l.owner = owner
	l.locked = true
	return nil
}

// publish writes owner to a temporary file and links it into place, so the
// lock never exists without its content. Fails with an os.IsExist error when
// the lock is already present.
func (l *Lockfile) publish(owner Owner) error {
	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".lock-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := json.NewEncoder(tmp).Encode(owner); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write to lockfile: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync lockfile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Link(tmp.Name(), l.path)
}

// ReadOwner returns the live owner of the lock at path. ErrNotLocked is
// returned when there is no lock or its owner is gone.
func ReadOwner(path string) (Owner, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Owner{}, ErrNotLocked
	}
	if err != nil {
		return Owner{}, fmt.Errorf("failed to read lockfile: %w", err)
	}

	var owner Owner
	if err := json.Unmarshal(data, &owner); err != nil || owner.PID <= 0 {
		return Owner{}, fmt.Errorf("%w: unreadable lockfile", ErrNotLocked)
	}
	if !ProcessAlive(owner.PID) {
		return Owner{}, fmt.Errorf("%w: pid %d has exited", ErrNotLocked, owner.PID)
	}
	return owner, nil
}

// Release releases the lock
func (l *Lockfile) Release() error {
	if !l.locked {
		return nil
	}

	l.locked = false
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lockfile: %w", err)
	}
	return nil
}

// Owner returns what this lock advertises. Zero until acquired.
func (l *Lockfile) Owner() Owner {
	return l.owner
}

// Locked returns true if the lock is held
func (l *Lockfile) Locked() bool {
	return l.locked
}

// Path returns the lockfile path
func (l *Lockfile) Path() string {
	return l.path
}
