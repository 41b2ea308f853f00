package repository

import (
	"context"

	"crewdesk/internal/domain"

	"github.com/google/uuid"
)

type ConversationRepository interface {
	Create(ctx context.Context, c *domain.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Conversation, error)
	GetUserConversations(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type ParticipantRepository interface {
	Add(ctx context.Context, p *domain.Participant) error
	Get(ctx context.Context, conversationID, userID uuid.UUID) (domain.Participant, error)
	Remove(ctx context.Context, conversationID, userID uuid.UUID) error
	RemoveByConversation(ctx context.Context, conversationID uuid.UUID) error
	UpdateLastRead(ctx context.Context, conversationID, userID, messageID uuid.UUID) error
}

type MessageRepository interface {
	Create(ctx context.Context, m *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Message, error)
	GetConversationMessages(ctx context.Context, conversationID uuid.UUID, take, skip int) ([]domain.Message, error)
	RemoveByConversation(ctx context.Context, conversationID uuid.UUID) error
}
