package httpdto

import (
	"time"

	"crewdesk/internal/domain"
)

type CreateConversationRequest struct {
	Name         string   `json:"name"`
	IsGroupChat  bool     `json:"is_group_chat"`
	Participants []string `json:"participants"`
}

type AddParticipantsRequest struct {
	UserIDs []string `json:"user_ids" binding:"required,min=1"`
}

type ParticipantResponse struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	JoinedAt          time.Time `json:"joined_at"`
	LastReadMessageID *string   `json:"last_read_message_id,omitempty"`
}

type ConversationResponse struct {
	ID           string                `json:"id"`
	Name         *string               `json:"name,omitempty"`
	IsGroupChat  bool                  `json:"is_group_chat"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
	Participants []ParticipantResponse `json:"participants,omitempty"`
}

type ListConversationsResponse struct {
	Conversations []ConversationResponse `json:"conversations"`
}

func FromParticipant(p domain.Participant) ParticipantResponse {
	resp := ParticipantResponse{
		ID:       p.ID.String(),
		UserID:   p.UserID.String(),
		JoinedAt: p.JoinedAt,
	}
	if p.LastReadMessageID != nil {
		id := p.LastReadMessageID.String()
		resp.LastReadMessageID = &id
	}
	return resp
}

func FromConversation(c domain.Conversation) ConversationResponse {
	resp := ConversationResponse{
		ID:          c.ID.String(),
		Name:        c.Name,
		IsGroupChat: c.IsGroupChat,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	for _, p := range c.Participants {
		resp.Participants = append(resp.Participants, FromParticipant(p))
	}
	return resp
}

func FromConversationSlice(items []domain.Conversation) []ConversationResponse {
	out := make([]ConversationResponse, 0, len(items))
	for _, c := range items {
		out = append(out, FromConversation(c))
	}
	return out
}
