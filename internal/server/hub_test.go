package server

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"crewdesk/internal/domain"
	"crewdesk/internal/events"
	"crewdesk/internal/services"
	crewdesk_errors "crewdesk/pkg/errors"

	"github.com/google/uuid"
)

func newTestClient(hub *Hub) *Client {
	return &Client{
		hub:           hub,
		send:          make(chan []byte, 8),
		userID:        uuid.New(),
		clientID:      uuid.NewString(),
		subscriptions: make(map[uuid.UUID]bool),
		rateLimiter:   NewClientRateLimiter(),
		logger:        NewWebSocketLogger(),
	}
}

func receivedData(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case data := <-c.send:
		return data
	default:
		return nil
	}
}

func TestHubBroadcastReachesOnlySubscribedChannel(t *testing.T) {
	hub := NewHub(nil, nil)
	convID, otherID := uuid.New(), uuid.New()

	c1 := newTestClient(hub)
	c2 := newTestClient(hub)
	c3 := newTestClient(hub)
	hub.Subscribe(c1, convID)
	hub.Subscribe(c2, convID)
	hub.Subscribe(c3, otherID)

	payload := []byte(`{"type":"newMessage"}`)
	hub.handleBroadcast(&BroadcastMessage{ConversationID: convID, Data: payload})

	for _, c := range []*Client{c1, c2} {
		if got := receivedData(t, c); string(got) != string(payload) {
			t.Errorf("subscribed client got %q, want %q", got, payload)
		}
	}
	if got := receivedData(t, c3); got != nil {
		t.Errorf("client on another channel received %q", got)
	}
}

func TestHubUnsubscribeRemovesEmptyChannel(t *testing.T) {
	hub := NewHub(nil, nil)
	convID := uuid.New()

	c1 := newTestClient(hub)
	c2 := newTestClient(hub)
	hub.Subscribe(c1, convID)
	hub.Subscribe(c2, convID)

	hub.Unsubscribe(c1, convID)
	if _, ok := hub.channels[convID]; !ok {
		t.Fatal("channel dropped while a member remains")
	}
	if c1.subscriptions[convID] {
		t.Error("client still tracks dropped subscription")
	}

	hub.Unsubscribe(c2, convID)
	if _, ok := hub.channels[convID]; ok {
		t.Error("empty channel entry not removed from registry")
	}
}

func TestHubUnregisterCleansChannelRegistry(t *testing.T) {
	hub := NewHub(nil, nil)
	convA, convB := uuid.New(), uuid.New()

	c := newTestClient(hub)
	hub.Subscribe(c, convA)
	hub.Subscribe(c, convB)

	hub.mu.Lock()
	hub.dropFromChannels(c)
	hub.mu.Unlock()

	if len(hub.channels) != 0 {
		t.Errorf("expected empty channel registry, got %d entries", len(hub.channels))
	}
	if len(c.subscriptions) != 0 {
		t.Errorf("expected no subscriptions on client, got %d", len(c.subscriptions))
	}
}

func TestHubBridgesBusEventsToBroadcast(t *testing.T) {
	bus := events.NewInProcessBus()
	hub := NewHub(bus, nil)
	hub.subscribeToEvents()

	convID := uuid.New()
	err := bus.Publish(context.Background(), events.Event{
		Type:           events.EventMessageNew,
		ConversationID: convID,
		Payload:        map[string]string{"content": "hello"},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-hub.broadcast:
		if msg.ConversationID != convID {
			t.Errorf("broadcast targets %s, want %s", msg.ConversationID, convID)
		}
		var wire WireEvent
		if err := json.Unmarshal(msg.Data, &wire); err != nil {
			t.Fatalf("unmarshal wire event: %v", err)
		}
		if wire.Type != WireNewMessage {
			t.Errorf("wire type %q, want %q", wire.Type, WireNewMessage)
		}
	default:
		t.Fatal("no broadcast enqueued for published event")
	}

	if err := bus.Publish(context.Background(), events.Event{
		Type:           events.EventMessageRead,
		ConversationID: convID,
	}); err != nil {
		t.Fatalf("publish read: %v", err)
	}

	select {
	case msg := <-hub.broadcast:
		var wire WireEvent
		if err := json.Unmarshal(msg.Data, &wire); err != nil {
			t.Fatalf("unmarshal wire event: %v", err)
		}
		if wire.Type != WireMessageRead {
			t.Errorf("wire type %q, want %q", wire.Type, WireMessageRead)
		}
	default:
		t.Fatal("no broadcast enqueued for read event")
	}
}

func TestSendErrorTargetsSingleConnection(t *testing.T) {
	hub := NewHub(nil, nil)
	convID := uuid.New()

	failing := newTestClient(hub)
	bystander := newTestClient(hub)
	hub.Subscribe(failing, convID)
	hub.Subscribe(bystander, convID)

	failing.sendError("not a participant of this conversation")

	data := receivedData(t, failing)
	if data == nil {
		t.Fatal("originating connection received nothing")
	}
	var wire WireEvent
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if wire.Type != WireError {
		t.Errorf("wire type %q, want %q", wire.Type, WireError)
	}

	if got := receivedData(t, bystander); got != nil {
		t.Errorf("error leaked to another connection: %q", got)
	}
}

type fixedConversationRepo struct{ conv domain.Conversation }

func (r *fixedConversationRepo) Create(context.Context, *domain.Conversation) error { return nil }

func (r *fixedConversationRepo) GetByID(_ context.Context, id uuid.UUID) (domain.Conversation, error) {
	if id == r.conv.ID {
		return r.conv, nil
	}
	return domain.Conversation{}, crewdesk_errors.ErrNotFound
}

func (r *fixedConversationRepo) GetUserConversations(context.Context, uuid.UUID) ([]domain.Conversation, error) {
	return nil, nil
}

func (r *fixedConversationRepo) Delete(context.Context, uuid.UUID) error { return nil }

type fixedParticipantRepo struct{ rows []domain.Participant }

func (r *fixedParticipantRepo) Add(context.Context, *domain.Participant) error { return nil }

func (r *fixedParticipantRepo) Get(_ context.Context, conversationID, userID uuid.UUID) (domain.Participant, error) {
	for _, p := range r.rows {
		if p.ConversationID == conversationID && p.UserID == userID {
			return p, nil
		}
	}
	return domain.Participant{}, crewdesk_errors.ErrNotFound
}

func (r *fixedParticipantRepo) Remove(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (r *fixedParticipantRepo) RemoveByConversation(context.Context, uuid.UUID) error { return nil }

func (r *fixedParticipantRepo) UpdateLastRead(context.Context, uuid.UUID, uuid.UUID, uuid.UUID) error {
	return nil
}

type captureMessageRepo struct{ msgs []domain.Message }

func (r *captureMessageRepo) Create(_ context.Context, m *domain.Message) error {
	r.msgs = append(r.msgs, *m)
	return nil
}

func (r *captureMessageRepo) GetByID(_ context.Context, id uuid.UUID) (domain.Message, error) {
	for _, m := range r.msgs {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.Message{}, crewdesk_errors.ErrNotFound
}

func (r *captureMessageRepo) GetConversationMessages(context.Context, uuid.UUID, int, int) ([]domain.Message, error) {
	return nil, nil
}

func (r *captureMessageRepo) RemoveByConversation(context.Context, uuid.UUID) error { return nil }

func awaitData(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case data := <-c.send:
		return data
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered within the deadline")
		return nil
	}
}

// Drives a sendMessage socket event through the running hub loop: the message
// is persisted once and every connection subscribed to the conversation
// channel receives the same newMessage frame.
func TestHubDeliversSentMessageEndToEnd(t *testing.T) {
	convID := uuid.New()
	sender, reader := uuid.New(), uuid.New()

	convRepo := &fixedConversationRepo{conv: domain.Conversation{ID: convID, IsGroupChat: true}}
	partRepo := &fixedParticipantRepo{rows: []domain.Participant{
		{ID: uuid.New(), ConversationID: convID, UserID: sender},
		{ID: uuid.New(), ConversationID: convID, UserID: reader},
	}}
	msgRepo := &captureMessageRepo{}
	bus := events.NewInProcessBus()
	svc := services.NewMessagingService(nil, convRepo, partRepo, msgRepo, bus, nil)

	hub := NewHub(bus, svc)
	go hub.Run()
	defer hub.Stop()

	c1 := newTestClient(hub)
	c1.userID = sender
	c2 := newTestClient(hub)
	c2.userID = reader

	subscribe := fmt.Sprintf(`{"type":"subscribe","conversation_id":%q}`, convID)
	for _, c := range []*Client{c1, c2} {
		if err := c.handleMessage([]byte(subscribe)); err != nil {
			t.Fatalf("subscribe: %v", err)
		}
		if got := receivedData(t, c); got != nil {
			t.Fatalf("subscribe answered with %q", got)
		}
	}

	send := fmt.Sprintf(`{"type":"sendMessage","conversation_id":%q,"content":"hello"}`, convID)
	if err := c1.handleMessage([]byte(send)); err != nil {
		t.Fatalf("send: %v", err)
	}

	if len(msgRepo.msgs) != 1 {
		t.Fatalf("expected one persisted message, got %d", len(msgRepo.msgs))
	}
	persisted := msgRepo.msgs[0]
	if persisted.SenderID != sender || persisted.Content != "hello" {
		t.Fatalf("unexpected persisted message %+v", persisted)
	}

	for _, c := range []*Client{c1, c2} {
		var frame struct {
			Type    string `json:"type"`
			Payload struct {
				Message domain.Message `json:"message"`
			} `json:"payload"`
		}
		if err := json.Unmarshal(awaitData(t, c), &frame); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		if frame.Type != WireNewMessage {
			t.Errorf("frame type %q, want %q", frame.Type, WireNewMessage)
		}
		if frame.Payload.Message.ID != persisted.ID {
			t.Errorf("frame carries message %s, want %s", frame.Payload.Message.ID, persisted.ID)
		}
		if frame.Payload.Message.Content != "hello" {
			t.Errorf("frame content %q, want hello", frame.Payload.Message.Content)
		}
	}
}

func TestClientRateLimiterBuckets(t *testing.T) {
	rl := NewClientRateLimiter()

	for i := 0; i < DefaultRateLimits.MaxSubscribes; i++ {
		if !rl.Allow("subscribe") {
			t.Fatalf("subscribe %d denied under the limit", i)
		}
	}
	if rl.Allow("subscribe") {
		t.Error("subscribe allowed past the limit")
	}
	if !rl.Allow("ping") {
		t.Error("ping bucket drained by subscribe traffic")
	}
	if rl.Allow("bogus") {
		t.Error("unknown event type allowed")
	}
}

func TestClientHandleMessageRejectsMalformedPayload(t *testing.T) {
	hub := NewHub(nil, nil)
	c := newTestClient(hub)

	if err := c.handleMessage([]byte("{not json")); err == nil {
		t.Error("expected error for malformed payload")
	}
	// Unknown event types are logged and ignored without failing the
	// connection.
	if err := c.handleMessage([]byte(`{"type":"dance"}`)); err != nil {
		t.Errorf("unknown type should not error, got %v", err)
	}
}
