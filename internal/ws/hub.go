package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/sahaj-pos/core/internal/domain"
)

// Hub maintains the set of connected terminals and fans committed-mutation
// events out to the ones subscribed to each event type. Delivery is
// at-least-once and best-effort: Publish never blocks and never fails the
// mutation, and terminals reconcile by re-reading after any gap.
type Hub struct {
	// Connected terminal clients.
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client

	// Outbound events awaiting fan-out.
	broadcast chan domain.Event

	mu sync.RWMutex
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan domain.Event, 256),
	}
}

// Run starts the hub's main loop.
// This should be called as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, exists := h.clients[client]; exists {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			message, err := json.Marshal(event)
			if err != nil {
				log.Printf("ERROR: marshal event %s: %v", event.Type, err)
				continue
			}

			h.mu.Lock()
			for client := range h.clients {
				if !client.wants(event.Type) {
					continue
				}
				select {
				case client.send <- message:
				default:
					// Send buffer full; drop the client, it will reconnect
					// and reconcile with a pull.
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish queues an event for fan-out. It never blocks: if the hub's queue is
// full the event is dropped with a log line and terminals catch up on their
// next reconciliation pull.
func (h *Hub) Publish(ev domain.Event) {
	select {
	case h.broadcast <- ev:
	default:
		log.Printf("ERROR: event queue full, dropped %s for order %s", ev.Type, ev.OrderID)
	}
}
