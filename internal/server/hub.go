package server

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"crewdesk/internal/events"
	"crewdesk/internal/services"

	"github.com/google/uuid"
)

// Wire event names exchanged with connected clients.
const (
	WireNewMessage  = "newMessage"
	WireMessageRead = "messageRead"
	WireError       = "error"
)

// WireEvent is the envelope pushed to connected clients.
type WireEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// BroadcastMessage targets every client subscribed to a conversation channel.
type BroadcastMessage struct {
	ConversationID uuid.UUID
	Data           []byte
}

// Hub maintains the set of active clients and an explicit channel registry
// keyed by conversation id. Channel membership is never implied by connect;
// clients subscribe per conversation and entries are cleaned up on unregister.
type Hub struct {
	clients          map[uuid.UUID]map[string]*Client
	channels         map[uuid.UUID]map[*Client]bool
	register         chan *Client
	unregister       chan *Client
	broadcast        chan *BroadcastMessage
	eventBus         events.EventBus
	messagingService *services.MessagingService
	logger           *WebSocketLogger
	mu               sync.RWMutex
	stopChan         chan struct{}
	isRunning        int32
}

func NewHub(eventBus events.EventBus, messagingService *services.MessagingService) *Hub {
	return &Hub{
		clients:          make(map[uuid.UUID]map[string]*Client),
		channels:         make(map[uuid.UUID]map[*Client]bool),
		register:         make(chan *Client, 256),
		unregister:       make(chan *Client, 256),
		broadcast:        make(chan *BroadcastMessage, 256),
		eventBus:         eventBus,
		messagingService: messagingService,
		logger:           NewWebSocketLogger(),
		stopChan:         make(chan struct{}),
	}
}

// Run starts the Hub
func (h *Hub) Run() {
	atomic.StoreInt32(&h.isRunning, 1)
	defer atomic.StoreInt32(&h.isRunning, 0)

	h.subscribeToEvents()

	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case msg := <-h.broadcast:
			h.handleBroadcast(msg)

		case <-h.stopChan:
			return
		}
	}
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.userID] == nil {
		h.clients[client.userID] = make(map[string]*Client)
	}
	h.clients[client.userID][client.clientID] = client

	h.logger.Info("client connected", client.userID, client.clientID)

	go client.writePump()
	go client.readPump()
}

func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userClients, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, ok := userClients[client.clientID]; !ok {
		return
	}

	delete(userClients, client.clientID)
	if len(userClients) == 0 {
		delete(h.clients, client.userID)
	}

	h.dropFromChannels(client)

	close(client.send)
	client.conn.Close()

	h.logger.Info("client disconnected", client.userID, client.clientID)
}

// dropFromChannels removes the client from every conversation channel so
// membership entries cannot leak past disconnect. Caller holds h.mu.
func (h *Hub) dropFromChannels(client *Client) {
	for convID := range client.subscriptions {
		if members, ok := h.channels[convID]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.channels, convID)
			}
		}
	}
	client.subscriptions = make(map[uuid.UUID]bool)
}

// Subscribe places the client into a conversation's broadcast channel.
func (h *Hub) Subscribe(client *Client, conversationID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.channels[conversationID] == nil {
		h.channels[conversationID] = make(map[*Client]bool)
	}
	h.channels[conversationID][client] = true
	client.subscriptions[conversationID] = true
}

// Unsubscribe removes the client from a conversation's broadcast channel.
func (h *Hub) Unsubscribe(client *Client, conversationID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.channels[conversationID]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.channels, conversationID)
		}
	}
	delete(client.subscriptions, conversationID)
}

func (h *Hub) handleBroadcast(msg *BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.channels[msg.ConversationID] {
		select {
		case client.send <- msg.Data:
		default:
			h.logger.Warn("client send buffer full", client.userID, client.clientID)
		}
	}
}

// subscribeToEvents routes service-published events into the broadcast loop.
func (h *Hub) subscribeToEvents() {
	if h.eventBus == nil {
		return
	}

	h.eventBus.Subscribe(events.EventMessageNew, events.EventHandlerFunc(func(ctx context.Context, event events.Event) error {
		return h.enqueueEvent(WireNewMessage, event)
	}))
	h.eventBus.Subscribe(events.EventMessageRead, events.EventHandlerFunc(func(ctx context.Context, event events.Event) error {
		return h.enqueueEvent(WireMessageRead, event)
	}))
}

func (h *Hub) enqueueEvent(wireType string, event events.Event) error {
	data, err := json.Marshal(WireEvent{Type: wireType, Payload: event.Payload})
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- &BroadcastMessage{ConversationID: event.ConversationID, Data: data}:
	default:
		h.logger.Warn("broadcast buffer full", uuid.Nil, "")
	}
	return nil
}

// Stop gracefully shuts down the Hub
func (h *Hub) Stop() {
	close(h.stopChan)

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, userClients := range h.clients {
		for _, client := range userClients {
			close(client.send)
			client.conn.Close()
		}
	}
	h.clients = make(map[uuid.UUID]map[string]*Client)
	h.channels = make(map[uuid.UUID]map[*Client]bool)
}
