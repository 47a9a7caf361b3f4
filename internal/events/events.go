// Package events is the channel through which the core reports what happened
// to whatever presentation layer is attached. The core only publishes; it
// never waits on a subscriber.
package events

import (
	"sync"
	"time"

	"github.com/codefionn/hackerai-desktop/internal/logger"
)

// Kind names an event on the wire.
type Kind string

const (
	AuthSuccess    Kind = "auth-success"
	AuthError      Kind = "auth-error"
	SandboxStarted Kind = "sandbox-started"
	SandboxStopped Kind = "sandbox-stopped"
	SandboxExited  Kind = "sandbox-exited"
)

// Credential mirrors the stored token pair without importing the store.
type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Sandbox describes the sandbox a lifecycle event refers to.
type Sandbox struct {
	PID   int    `json:"pid"`
	Name  string `json:"name,omitempty"`
	Image string `json:"image,omitempty"`
}

// Event is one notification. Only the field matching Kind is set.
type Event struct {
	Kind       Kind        `json:"kind"`
	Time       time.Time   `json:"time"`
	Credential *Credential `json:"credential,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	Sandbox    *Sandbox    `json:"sandbox,omitempty"`
}

// Publisher is what the core depends on.
type Publisher interface {
	Publish(Event)
}

// Bus fans events out to subscribers. A subscriber whose buffer is full
// misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Publish delivers ev to every subscriber without blocking.
func (b *Bus) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			logger.Warn("events: subscriber %d is full, dropping %s", id, ev.Kind)
		}
	}
}

// Subscribe registers a subscriber with the given buffer size. The returned
// function unsubscribes and closes the channel; calling it twice is safe.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// Close closes every subscriber channel. Later publishes are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
