// Package ws pushes job status transitions to connected browsers so the
// frontend can update progress without polling.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/mani-django09/smallpdf.us-sub000/internal/job"
)

type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

// Start runs the hub loop in a goroutine until ctx is cancelled, then
// closes every remaining connection.
func (h *Hub) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-h.register:
				h.mu.Lock()
				h.clients[client] = true
				h.mu.Unlock()
			case client := <-h.unregister:
				h.mu.Lock()
				if _, ok := h.clients[client]; ok {
					delete(h.clients, client)
					client.Close()
				}
				h.mu.Unlock()
			case message := <-h.broadcast:
				h.mu.Lock()
				for client := range h.clients {
					if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
						client.Close()
						delete(h.clients, client)
					}
				}
				h.mu.Unlock()
			case <-ctx.Done():
				h.mu.Lock()
				for client := range h.clients {
					client.Close()
					delete(h.clients, client)
				}
				h.mu.Unlock()
				return
			}
		}
	}()
}

// BroadcastJobUpdate publishes a status transition to every client.
// Suitable as a job.Store notifier.
func (h *Hub) BroadcastJobUpdate(j job.Job) {
	update := map[string]any{
		"type":   "job_update",
		"job_id": j.ID,
		"status": j.Status,
	}
	if j.Status == job.StatusFailed && j.Error != nil {
		update["error"] = j.Error.Message
	}

	data, err := json.Marshal(update)
	if err != nil {
		log.Printf("ws: failed to marshal job update: %v", err)
		return
	}

	// Drop rather than block when the hub is saturated, status pushes are
	// advisory.
	select {
	case h.broadcast <- data:
	default:
	}
}

func (h *Hub) RegisterClient(conn *websocket.Conn) {
	h.register <- conn
}

func (h *Hub) UnregisterClient(conn *websocket.Conn) {
	h.unregister <- conn
}
