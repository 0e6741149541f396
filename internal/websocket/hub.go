package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/LukeAtkinz/dashdice-sub004/internal/domain"
)

// Message types
const (
	MessageTypeQueueUpdate = "queue_update"
	MessageTypeMatchFound  = "match_found"
	MessageTypeSubscribe   = "subscribe"
	MessageTypeUnsubscribe = "unsubscribe"
	MessageTypePing        = "ping"
	MessageTypePong        = "pong"
	MessageTypeError       = "error"
)

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	QueueKey  string      `json:"queue_key,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// QueueUpdate contains queue data for broadcast
type QueueUpdate struct {
	QueueKey    string `json:"queue_key"`
	QueueLength int    `json:"queue_length"`
}

// MatchFound contains the selected pair for broadcast
type MatchFound struct {
	QueueKey string               `json:"queue_key"`
	Players  []*domain.QueueEntry `json:"players"`
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients by queue key
	clients map[string]map[*Client]bool

	// All connected clients
	allClients map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Inbound messages from clients
	broadcast chan *Message

	// Subscription requests
	subscribe chan *subscriptionRequest

	// Unsubscription requests
	unsubscribe chan *subscriptionRequest

	// Mutex for thread-safe operations
	mu sync.RWMutex

	// Logger
	logger *slog.Logger

	// Context for shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

type subscriptionRequest struct {
	client   *Client
	queueKey string
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[string]map[*Client]bool),
		allClients:  make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		subscribe:   make(chan *subscriptionRequest, 64),
		unsubscribe: make(chan *subscriptionRequest, 64),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("WebSocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.allClients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.allClients[client]; ok {
				delete(h.allClients, client)
				// Remove from all queue subscriptions
				for key, clients := range h.clients {
					if _, ok := clients[client]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.clients, key)
						}
					}
				}
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case req := <-h.subscribe:
			h.mu.Lock()
			if _, ok := h.clients[req.queueKey]; !ok {
				h.clients[req.queueKey] = make(map[*Client]bool)
			}
			h.clients[req.queueKey][req.client] = true
			h.mu.Unlock()
			h.logger.Debug("client subscribed", "client_id", req.client.id, "queue_key", req.queueKey)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if clients, ok := h.clients[req.queueKey]; ok {
				delete(clients, req.client)
				if len(clients) == 0 {
					delete(h.clients, req.queueKey)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", "client_id", req.client.id, "queue_key", req.queueKey)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// broadcastMessage sends a message to all subscribed clients
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	// If message has a queue key, only send to subscribed clients
	if message.QueueKey != "" {
		if clients, ok := h.clients[message.QueueKey]; ok {
			for client := range clients {
				select {
				case client.send <- data:
				default:
					// Client's buffer is full, skip
					h.logger.Warn("client buffer full, skipping", "client_id", client.id)
				}
			}
		}
	} else {
		// Broadcast to all clients
		for client := range h.allClients {
			select {
			case client.send <- data:
			default:
				h.logger.Warn("client buffer full, skipping", "client_id", client.id)
			}
		}
	}
}

// QueueUpdated broadcasts a queue length change to subscribed clients.
// Implements the engine's Notifier.
func (h *Hub) QueueUpdated(key domain.QueueKey, length int) {
	message := &Message{
		Type:     MessageTypeQueueUpdate,
		QueueKey: key.String(),
		Data: QueueUpdate{
			QueueKey:    key.String(),
			QueueLength: length,
		},
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// MatchFound broadcasts a selected pair to subscribed clients.
// Implements the engine's Notifier.
func (h *Hub) MatchFound(key domain.QueueKey, pair []*domain.QueueEntry) {
	message := &Message{
		Type:     MessageTypeMatchFound,
		QueueKey: key.String(),
		Data: MatchFound{
			QueueKey: key.String(),
			Players:  pair,
		},
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe adds a client to a queue subscription
func (h *Hub) Subscribe(client *Client, queueKey string) {
	h.subscribe <- &subscriptionRequest{
		client:   client,
		queueKey: queueKey,
	}
}

// Unsubscribe removes a client from a queue subscription
func (h *Hub) Unsubscribe(client *Client, queueKey string) {
	h.unsubscribe <- &subscriptionRequest{
		client:   client,
		queueKey: queueKey,
	}
}

// GetSubscriberCount returns the number of subscribers for a queue
func (h *Hub) GetSubscriberCount(queueKey string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if clients, ok := h.clients[queueKey]; ok {
		return len(clients)
	}
	return 0
}

// GetTotalConnections returns the total number of connected clients
func (h *Hub) GetTotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allClients)
}
