package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOut(t *testing.T) {
	bus := NewBus()
	a, cancelA := bus.Subscribe(4)
	defer cancelA()
	b, cancelB := bus.Subscribe(4)
	defer cancelB()

	bus.Publish(Event{Kind: AuthError, Reason: "missing-token"})

	for _, ch := range []<-chan Event{a, b} {
		ev := <-ch
		assert.Equal(t, AuthError, ev.Kind)
		assert.Equal(t, "missing-token", ev.Reason)
		assert.False(t, ev.Time.IsZero())
	}
}

func TestPublishKeepsExplicitTime(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	defer cancel()

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	bus.Publish(Event{Kind: SandboxStopped, Time: at})

	assert.Equal(t, at, (<-ch).Time)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus()
	_, cancel := bus.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(Event{Kind: SandboxExited})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	require.Equal(t, 1, bus.SubscriberCount())

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, bus.SubscriberCount())

	bus.Publish(Event{Kind: AuthSuccess})
}

func TestCloseBus(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	defer cancel()

	bus.Close()
	bus.Close()

	_, ok := <-ch
	assert.False(t, ok)

	late, lateCancel := bus.Subscribe(1)
	defer lateCancel()
	_, ok = <-late
	assert.False(t, ok, "subscribing to a closed bus yields a closed channel")

	bus.Publish(Event{Kind: AuthSuccess})
}
