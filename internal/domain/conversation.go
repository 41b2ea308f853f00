package domain

import (
	"time"

	"github.com/google/uuid"
)

// DirectChatMaxParticipants caps membership of non-group conversations.
const DirectChatMaxParticipants = 2

type Conversation struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        *string   `gorm:"type:text" json:"name,omitempty"`
	IsGroupChat bool      `gorm:"not null;default:false" json:"is_group_chat"`
	CreatedAt   time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time `gorm:"default:CURRENT_TIMESTAMP;index:idx_conversations_updated,sort:desc" json:"updated_at"`

	// Relations
	Participants []Participant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
}

type Participant struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_participants_conversation_user,priority:1" json:"conversation_id"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_participants_conversation_user,priority:2;index:idx_participants_user" json:"user_id"`
	JoinedAt       time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"joined_at"`

	// LastReadMessageID is a weak reference used for read-position lookup,
	// never an ownership edge. The only mutable field after creation.
	LastReadMessageID *uuid.UUID `gorm:"type:uuid" json:"last_read_message_id,omitempty"`

	// Relations
	LastReadMessage *Message `gorm:"foreignKey:LastReadMessageID;constraint:OnDelete:SET NULL" json:"last_read_message,omitempty"`
}
