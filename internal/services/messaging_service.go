package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crewdesk/internal/domain"
	"crewdesk/internal/events"
	"crewdesk/internal/repository"
	crewdesk_errors "crewdesk/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultMessagePageSize = 50

// ConversationCache caches conversation snapshots with their participant
// rows. Every mutation of a conversation or its participants must invalidate
// the entry, read-pointer updates included.
type ConversationCache interface {
	GetConversation(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	SetConversation(ctx context.Context, conv *domain.Conversation) error
	InvalidateConversation(ctx context.Context, id uuid.UUID) error
}

// MessagingService orchestrates conversations, participants and the message
// log, and publishes realtime events for sends and read receipts.
type MessagingService struct {
	db            *gorm.DB
	conversations repository.ConversationRepository
	participants  repository.ParticipantRepository
	messages      repository.MessageRepository
	bus           events.EventBus
	cache         ConversationCache
}

func NewMessagingService(
	db *gorm.DB,
	conversations repository.ConversationRepository,
	participants repository.ParticipantRepository,
	messages repository.MessageRepository,
	bus events.EventBus,
	cache ConversationCache,
) *MessagingService {
	return &MessagingService{
		db:            db,
		conversations: conversations,
		participants:  participants,
		messages:      messages,
		bus:           bus,
		cache:         cache,
	}
}

type CreateConversationInput struct {
	Name               *string
	IsGroupChat        bool
	ParticipantUserIDs []uuid.UUID
}

func (in CreateConversationInput) Validate() error {
	if !in.IsGroupChat && len(in.ParticipantUserIDs) > domain.DirectChatMaxParticipants {
		return fmt.Errorf("%w: direct chat cannot have more than %d participants",
			crewdesk_errors.ErrInvalidInput, domain.DirectChatMaxParticipants)
	}
	if in.IsGroupChat && (in.Name == nil || *in.Name == "") {
		return fmt.Errorf("%w: group chat requires a name", crewdesk_errors.ErrInvalidInput)
	}
	return nil
}

// withTx runs fn against transaction-scoped repositories. Services built on
// injected repositories without a db handle run fn directly.
func (s *MessagingService) withTx(ctx context.Context, fn func(c repository.ConversationRepository, p repository.ParticipantRepository, m repository.MessageRepository) error) error {
	if s.db == nil {
		return fn(s.conversations, s.participants, s.messages)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(
			repository.NewConversationRepository(tx),
			repository.NewParticipantRepository(tx),
			repository.NewMessageRepository(tx),
		)
	})
}

// CreateConversation persists the conversation and its initial participant
// rows in one transaction. A failed validation persists nothing.
func (s *MessagingService) CreateConversation(ctx context.Context, input CreateConversationInput) (domain.Conversation, error) {
	if err := input.Validate(); err != nil {
		return domain.Conversation{}, err
	}

	now := time.Now()
	conv := domain.Conversation{
		ID:          uuid.New(),
		Name:        input.Name,
		IsGroupChat: input.IsGroupChat,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.withTx(ctx, func(c repository.ConversationRepository, p repository.ParticipantRepository, _ repository.MessageRepository) error {
		if err := c.Create(ctx, &conv); err != nil {
			return err
		}
		for _, userID := range input.ParticipantUserIDs {
			participant := &domain.Participant{
				ID:             uuid.New(),
				ConversationID: conv.ID,
				UserID:         userID,
				JoinedAt:       now,
			}
			if err := p.Add(ctx, participant); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Conversation{}, err
	}
	return conv, nil
}

// GetConversation returns the conversation with its participant list.
func (s *MessagingService) GetConversation(ctx context.Context, id uuid.UUID) (domain.Conversation, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetConversation(ctx, id); err == nil && cached != nil {
			return *cached, nil
		}
	}

	conv, err := s.conversations.GetByID(ctx, id)
	if err != nil {
		return domain.Conversation{}, err
	}

	if s.cache != nil {
		_ = s.cache.SetConversation(ctx, &conv)
	}
	return conv, nil
}

func (s *MessagingService) ListUserConversations(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	return s.conversations.GetUserConversations(ctx, userID)
}

// DeleteConversation removes messages, then participants, then the
// conversation row, inside one transaction.
func (s *MessagingService) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	if _, err := s.conversations.GetByID(ctx, id); err != nil {
		return err
	}

	err := s.withTx(ctx, func(c repository.ConversationRepository, p repository.ParticipantRepository, m repository.MessageRepository) error {
		if err := m.RemoveByConversation(ctx, id); err != nil {
			return err
		}
		if err := p.RemoveByConversation(ctx, id); err != nil {
			return err
		}
		return c.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.invalidateCache(ctx, id)
	return nil
}

// AddParticipant adds a user to a group conversation. Direct conversations
// have fixed membership.
func (s *MessagingService) AddParticipant(ctx context.Context, conversationID, userID uuid.UUID) (domain.Participant, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return domain.Participant{}, err
	}
	if !conv.IsGroupChat {
		return domain.Participant{}, crewdesk_errors.ErrDirectChatImmutable
	}

	if _, err := s.participants.Get(ctx, conversationID, userID); err == nil {
		return domain.Participant{}, crewdesk_errors.ErrAlreadyParticipant
	}

	participant := domain.Participant{
		ID:             uuid.New(),
		ConversationID: conversationID,
		UserID:         userID,
		JoinedAt:       time.Now(),
	}
	if err := s.participants.Add(ctx, &participant); err != nil {
		return domain.Participant{}, err
	}

	s.invalidateCache(ctx, conversationID)
	return participant, nil
}

// ParticipantAddResult reports the outcome of one entry in a batch add.
type ParticipantAddResult struct {
	UserID uuid.UUID `json:"user_id"`
	Added  bool      `json:"added"`
	Error  string    `json:"error,omitempty"`
}

// AddParticipants adds users one at a time. Earlier adds stay committed when
// a later one fails; callers get per-id outcomes.
func (s *MessagingService) AddParticipants(ctx context.Context, conversationID uuid.UUID, userIDs []uuid.UUID) ([]ParticipantAddResult, error) {
	results := make([]ParticipantAddResult, 0, len(userIDs))
	for _, userID := range userIDs {
		_, err := s.AddParticipant(ctx, conversationID, userID)
		result := ParticipantAddResult{UserID: userID, Added: err == nil}
		if err != nil {
			result.Error = err.Error()
		}
		results = append(results, result)
	}
	return results, nil
}

// RemoveParticipant removes a user from a group conversation.
func (s *MessagingService) RemoveParticipant(ctx context.Context, conversationID, userID uuid.UUID) error {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.IsGroupChat {
		return crewdesk_errors.ErrDirectChatImmutable
	}

	if err := s.participants.Remove(ctx, conversationID, userID); err != nil {
		return err
	}

	s.invalidateCache(ctx, conversationID)
	return nil
}

type SendMessageInput struct {
	ConversationID uuid.UUID
	SenderID       uuid.UUID
	Content        string
	Type           domain.MessageType
}

// SendMessage appends a message to the conversation log and publishes a
// message.new event for the broadcast gateway.
func (s *MessagingService) SendMessage(ctx context.Context, input SendMessageInput) (domain.Message, error) {
	if input.Type == "" {
		input.Type = domain.MessageTypeText
	}
	if !input.Type.IsValid() {
		return domain.Message{}, fmt.Errorf("%w: unknown message type %q", crewdesk_errors.ErrInvalidInput, input.Type)
	}

	if _, err := s.conversations.GetByID(ctx, input.ConversationID); err != nil {
		return domain.Message{}, err
	}

	msg := domain.Message{
		ID:             uuid.New(),
		ConversationID: input.ConversationID,
		SenderID:       input.SenderID,
		Content:        input.Content,
		Type:           input.Type,
		CreatedAt:      time.Now(),
	}
	if err := s.messages.Create(ctx, &msg); err != nil {
		return domain.Message{}, err
	}

	s.publish(ctx, events.Event{
		Type:           events.EventMessageNew,
		ConversationID: msg.ConversationID,
		Payload:        events.MessageNewPayload{Message: msg},
	})
	return msg, nil
}

// ListMessages pages the conversation log newest-first with offset pagination.
func (s *MessagingService) ListMessages(ctx context.Context, conversationID uuid.UUID, take, skip int) ([]domain.Message, error) {
	if take <= 0 {
		take = defaultMessagePageSize
	}
	if skip < 0 {
		skip = 0
	}

	if _, err := s.conversations.GetByID(ctx, conversationID); err != nil {
		return nil, err
	}
	return s.messages.GetConversationMessages(ctx, conversationID, take, skip)
}

// MarkRead moves the participant's last-read pointer to the given message.
// The pointer may move backward; regression is not guarded against.
func (s *MessagingService) MarkRead(ctx context.Context, conversationID, userID, messageID uuid.UUID) error {
	if _, err := s.participants.Get(ctx, conversationID, userID); err != nil {
		return err
	}
	if _, err := s.messages.GetByID(ctx, messageID); err != nil {
		return err
	}

	if err := s.participants.UpdateLastRead(ctx, conversationID, userID, messageID); err != nil {
		return err
	}

	// Cached snapshots embed the participant rows, so a stale entry would
	// keep serving the old pointer.
	s.invalidateCache(ctx, conversationID)

	s.publish(ctx, events.Event{
		Type:           events.EventMessageRead,
		ConversationID: conversationID,
		Payload: events.MessageReadPayload{
			ConversationID: conversationID,
			UserID:         userID,
			MessageID:      messageID,
		},
	})
	return nil
}

// IsParticipant reports whether the user holds a membership row.
func (s *MessagingService) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	_, err := s.participants.Get(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, crewdesk_errors.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *MessagingService) publish(ctx context.Context, event events.Event) {
	if s.bus == nil {
		return
	}
	_ = s.bus.Publish(ctx, event)
}

func (s *MessagingService) invalidateCache(ctx context.Context, conversationID uuid.UUID) {
	if s.cache == nil {
		return
	}
	_ = s.cache.InvalidateConversation(ctx, conversationID)
}
