package control

import (
	"sync"

	"github.com/codefionn/hackerai-desktop/internal/events"
	"github.com/codefionn/hackerai-desktop/internal/logger"
)

// Hub maintains the set of active event-stream clients and broadcasts events
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan events.Event
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	quit       chan struct{}
	stopOnce   sync.Once
}

// NewHub creates a new hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan events.Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
	}
}

// Run starts the hub
func (h *Hub) Run() {
	logger.Info("event hub started")
	defer logger.Info("event hub stopped")

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logger.Debug("event client registered: %s", client.ID)

		case client := <-h.unregister:
			h.remove(client)
			logger.Debug("event client unregistered: %s", client.ID)

		case ev := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- ev:
				default:
					// Slow client, drop it
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mu.Unlock()

		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

// Stop stops the hub and disconnects every client.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

// Register registers a new client
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
		close(client.send)
	}
}

// Unregister unregisters a client
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// Broadcast queues ev for every client.
func (h *Hub) Broadcast(ev events.Event) {
	select {
	case h.broadcast <- ev:
	default:
		logger.Warn("broadcast channel full, dropping %s", ev.Kind)
	}
}

// Forward broadcasts every event from ch until it is closed.
func (h *Hub) Forward(ch <-chan events.Event) {
	for ev := range ch {
		h.Broadcast(ev)
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
