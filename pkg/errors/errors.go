package crewdesk_errors

import (
	"errors"
)

// Common errors
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrInvalidInput  = errors.New("invalid input")
	ErrAlreadyExists = errors.New("already exists")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrRateLimited   = errors.New("rate limited")

	// Messaging domain errors
	ErrDirectChatImmutable = errors.New("cannot add participants to a direct chat")
	ErrAlreadyParticipant  = errors.New("already a participant")
)
