package auth

import (
	"sync"
	"time"

	"github.com/codefionn/hackerai-desktop/internal/securemem"
)

type pendingState struct {
	value     *securemem.String
	expiresAt time.Time
}

// stateRegistry remembers the login states handed to the browser until the
// matching callback consumes them or they expire.
type stateRegistry struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries []pendingState
}

func newStateRegistry(ttl time.Duration, now func() time.Time) *stateRegistry {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &stateRegistry{ttl: ttl, now: now}
}

func (r *stateRegistry) Save(state string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pruneLocked()
	r.entries = append(r.entries, pendingState{
		value:     securemem.NewString(state),
		expiresAt: r.now().Add(r.ttl),
	})
}

// Consume reports whether state was issued and is still valid. A state is
// accepted at most once.
func (r *stateRegistry) Consume(state string) bool {
	if state == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.pruneLocked()
	for i, entry := range r.entries {
		if entry.value.Equal(state) {
			entry.value.Destroy()
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (r *stateRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entry := range r.entries {
		entry.value.Destroy()
	}
	r.entries = nil
}

func (r *stateRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pruneLocked()
	return len(r.entries)
}

func (r *stateRegistry) pruneLocked() {
	now := r.now()
	kept := r.entries[:0]
	for _, entry := range r.entries {
		if now.After(entry.expiresAt) {
			entry.value.Destroy()
			continue
		}
		kept = append(kept, entry)
	}
	r.entries = kept
}
