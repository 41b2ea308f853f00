package events

import (
	"context"

	"crewdesk/internal/domain"

	"github.com/google/uuid"
)

type EventType string

const (
	EventMessageNew  EventType = "message.new"
	EventMessageRead EventType = "message.read"
)

// Event is routed to the broadcast channel of its conversation.
type Event struct {
	Type           EventType   `json:"type"`
	ConversationID uuid.UUID   `json:"conversation_id"`
	Payload        interface{} `json:"payload"`
}

type MessageNewPayload struct {
	Message domain.Message `json:"message"`
}

type MessageReadPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	MessageID      uuid.UUID `json:"message_id"`
}

type EventHandler interface {
	Handle(ctx context.Context, event Event) error
}

type EventHandlerFunc func(ctx context.Context, event Event) error

func (f EventHandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

type EventBus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}
