package repository

import (
	"context"
	"errors"

	"crewdesk/internal/domain"
	crewdesk_errors "crewdesk/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresParticipantRepository struct {
	db *gorm.DB
}

func NewParticipantRepository(db *gorm.DB) ParticipantRepository {
	return &PostgresParticipantRepository{db: db}
}

func (r *PostgresParticipantRepository) Add(ctx context.Context, p *domain.Participant) error {
	res := r.db.WithContext(ctx).Create(p)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return crewdesk_errors.ErrAlreadyParticipant
		}
		return res.Error
	}
	return nil
}

func (r *PostgresParticipantRepository) Get(ctx context.Context, conversationID, userID uuid.UUID) (domain.Participant, error) {
	var p domain.Participant
	err := r.db.WithContext(ctx).
		Preload("LastReadMessage").
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Participant{}, crewdesk_errors.ErrNotFound
		}
		return domain.Participant{}, err
	}
	return p, nil
}

func (r *PostgresParticipantRepository) Remove(ctx context.Context, conversationID, userID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Delete(&domain.Participant{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return crewdesk_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresParticipantRepository) RemoveByConversation(ctx context.Context, conversationID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Delete(&domain.Participant{}).Error
}

func (r *PostgresParticipantRepository) UpdateLastRead(ctx context.Context, conversationID, userID, messageID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("last_read_message_id", messageID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return crewdesk_errors.ErrNotFound
	}
	return nil
}
