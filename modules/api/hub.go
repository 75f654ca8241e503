package api

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"
)

// feedClient is one connected UI client on the event feed.
type feedClient struct {
	ID   string
	Conn *websocket.Conn
}

// feedMessage is the envelope every broadcast frame is wrapped in.
type feedMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub fans store-change events out to every connected UI client. All clients
// receive every event; the feed has no rooms or subscriptions.
type Hub struct {
	clients    map[string]*feedClient
	register   chan *feedClient
	unregister chan *feedClient
	broadcast  chan feedMessage
	done       chan struct{}
	mu         sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*feedClient),
		register:   make(chan *feedClient),
		unregister: make(chan *feedClient),
		broadcast:  make(chan feedMessage, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop. It accepts a context for graceful shutdown.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			close(h.done)
			return
		case client := <-h.register:
			h.handleRegister(client)
		case client := <-h.unregister:
			h.handleUnregister(client)
		case msg := <-h.broadcast:
			h.handleBroadcast(msg)
		}
	}
}

// Wait blocks until the hub has stopped.
func (h *Hub) Wait() {
	<-h.done
}

// Register adds a client to the feed.
func (h *Hub) Register(client *feedClient) {
	h.register <- client
}

// Unregister removes a client from the feed.
func (h *Hub) Unregister(client *feedClient) {
	h.unregister <- client
}

// Broadcast queues an event frame for every connected client.
func (h *Hub) Broadcast(msgType string, payload any) {
	h.broadcast <- feedMessage{Type: msgType, Payload: payload}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		_ = client.Conn.Close()
	}
	h.clients = make(map[string]*feedClient)
}

func (h *Hub) handleRegister(client *feedClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	log.Printf("[api] Feed client %s connected", client.ID)
}

func (h *Hub) handleUnregister(client *feedClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		log.Printf("[api] Feed client %s disconnected", client.ID)
	}
}

func (h *Hub) handleBroadcast(msg feedMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[api] Failed to marshal feed message: %v", err)
		return
	}

	for _, client := range h.clients {
		if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("[api] Failed to send to feed client %s: %v", client.ID, err)
		}
	}
}
