package server

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"crewdesk/internal/domain"
	"crewdesk/internal/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// Rate limits per minute
type RateLimits struct {
	MaxSendMessages int
	MaxReadReceipts int
	MaxSubscribes   int
	MaxPingMessages int
}

var DefaultRateLimits = RateLimits{
	MaxSendMessages: 60,
	MaxReadReceipts: 120,
	MaxSubscribes:   30,
	MaxPingMessages: 60,
}

// ClientRateLimiter tracks rate limits per client
type ClientRateLimiter struct {
	sendTokens      int
	readTokens      int
	subscribeTokens int
	pingTokens      int
	lastRefill      time.Time
	mu              sync.Mutex
}

func NewClientRateLimiter() *ClientRateLimiter {
	return &ClientRateLimiter{
		sendTokens:      DefaultRateLimits.MaxSendMessages,
		readTokens:      DefaultRateLimits.MaxReadReceipts,
		subscribeTokens: DefaultRateLimits.MaxSubscribes,
		pingTokens:      DefaultRateLimits.MaxPingMessages,
		lastRefill:      time.Now(),
	}
}

func (rl *ClientRateLimiter) Allow(msgType string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastRefill) >= time.Minute {
		rl.sendTokens = DefaultRateLimits.MaxSendMessages
		rl.readTokens = DefaultRateLimits.MaxReadReceipts
		rl.subscribeTokens = DefaultRateLimits.MaxSubscribes
		rl.pingTokens = DefaultRateLimits.MaxPingMessages
		rl.lastRefill = now
	}

	switch msgType {
	case "sendMessage":
		if rl.sendTokens > 0 {
			rl.sendTokens--
			return true
		}
	case "readMessage":
		if rl.readTokens > 0 {
			rl.readTokens--
			return true
		}
	case "subscribe", "unsubscribe":
		if rl.subscribeTokens > 0 {
			rl.subscribeTokens--
			return true
		}
	case "ping":
		if rl.pingTokens > 0 {
			rl.pingTokens--
			return true
		}
	}
	return false
}

// Client represents a single WebSocket connection
type Client struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	userID        uuid.UUID
	clientID      string
	subscriptions map[uuid.UUID]bool
	rateLimiter   *ClientRateLimiter
	lastActivity  time.Time
	logger        *WebSocketLogger
}

// ClientMessage represents a message from the client
type ClientMessage struct {
	Type           string    `json:"type"`
	ConversationID uuid.UUID `json:"conversation_id,omitempty"`
	MessageID      uuid.UUID `json:"message_id,omitempty"`
	Content        string    `json:"content,omitempty"`
	ContentType    string    `json:"content_type,omitempty"`
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, clientID string, logger *WebSocketLogger) *Client {
	return &Client{
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, 256),
		userID:        userID,
		clientID:      clientID,
		subscriptions: make(map[uuid.UUID]bool),
		rateLimiter:   NewClientRateLimiter(),
		lastActivity:  time.Now(),
		logger:        logger,
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.lastActivity = time.Now()
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket unexpected close", c.userID, c.clientID, err)
			}
			break
		}

		message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))
		c.lastActivity = time.Now()

		// A bad event answers with an error event; it never takes the
		// connection or the process down.
		if err := c.handleMessage(message); err != nil {
			c.logger.Error("websocket handle message failed", c.userID, c.clientID, err)
			c.sendError(err.Error())
		}
	}
}

func (c *Client) handleMessage(message []byte) error {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return err
	}

	if !c.rateLimiter.Allow(msg.Type) {
		c.logger.Warn("rate limit exceeded", c.userID, c.clientID, zap.String("msg_type", msg.Type))
		return nil
	}

	switch msg.Type {
	case "subscribe":
		return c.handleSubscribe(msg)
	case "unsubscribe":
		c.hub.Unsubscribe(c, msg.ConversationID)
		return nil
	case "sendMessage":
		return c.handleSendMessage(msg)
	case "readMessage":
		return c.handleReadMessage(msg)
	case "ping":
		return c.handlePing()
	default:
		c.logger.Warn("unknown message type", c.userID, c.clientID, zap.String("msg_type", msg.Type))
		return nil
	}
}

func (c *Client) handleSubscribe(msg ClientMessage) error {
	ok, err := c.hub.messagingService.IsParticipant(context.Background(), msg.ConversationID, c.userID)
	if err != nil {
		return err
	}
	if !ok {
		c.sendError("not a participant of this conversation")
		return nil
	}
	c.hub.Subscribe(c, msg.ConversationID)
	return nil
}

func (c *Client) handleSendMessage(msg ClientMessage) error {
	_, err := c.hub.messagingService.SendMessage(context.Background(), services.SendMessageInput{
		ConversationID: msg.ConversationID,
		SenderID:       c.userID,
		Content:        msg.Content,
		Type:           domain.MessageType(msg.ContentType),
	})
	return err
}

func (c *Client) handleReadMessage(msg ClientMessage) error {
	return c.hub.messagingService.MarkRead(
		context.Background(),
		msg.ConversationID,
		c.userID,
		msg.MessageID,
	)
}

func (c *Client) handlePing() error {
	c.send <- []byte(`{"type":"pong"}`)
	return nil
}

// sendError emits an error event to this connection only.
func (c *Client) sendError(message string) {
	data, err := json.Marshal(WireEvent{Type: WireError, Payload: message})
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write(newline)
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

			if time.Since(c.lastActivity) > pongWait*2 {
				c.logger.Info("client idle timeout", c.userID, c.clientID)
				return
			}
		}
	}
}
