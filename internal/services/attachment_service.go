package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"crewdesk/internal/storage"
	crewdesk_errors "crewdesk/pkg/errors"

	"github.com/google/uuid"
)

// AttachmentService issues presigned S3 URLs for the payloads behind image
// and file messages. The object key travels as the message content.
type AttachmentService struct {
	storage *storage.Client
}

type PresignUploadInput struct {
	UploaderID  uuid.UUID
	FileName    string
	ContentType string
	FileSize    int64
}

type PresignUploadResult struct {
	ObjectKey string            `json:"object_key"`
	UploadURL string            `json:"upload_url"`
	Headers   map[string]string `json:"headers"`
}

func NewAttachmentService(storage *storage.Client) *AttachmentService {
	return &AttachmentService{storage: storage}
}

func (s *AttachmentService) PresignUpload(ctx context.Context, input PresignUploadInput) (PresignUploadResult, error) {
	if s.storage == nil {
		return PresignUploadResult{}, errors.New("s3 storage is not configured")
	}
	if input.UploaderID == uuid.Nil || input.FileName == "" || input.ContentType == "" || input.FileSize <= 0 {
		return PresignUploadResult{}, crewdesk_errors.ErrInvalidInput
	}
	if err := s.storage.ValidateContentType(input.ContentType); err != nil {
		return PresignUploadResult{}, crewdesk_errors.ErrInvalidInput
	}

	key := buildObjectKey(input.UploaderID, input.FileName)
	url, headers, err := s.storage.PresignPut(ctx, key, input.ContentType, input.FileSize)
	if err != nil {
		return PresignUploadResult{}, err
	}

	return PresignUploadResult{
		ObjectKey: key,
		UploadURL: url,
		Headers:   headers,
	}, nil
}

func (s *AttachmentService) PresignDownload(ctx context.Context, objectKey string) (string, error) {
	if s.storage == nil {
		return "", errors.New("s3 storage is not configured")
	}
	if objectKey == "" {
		return "", crewdesk_errors.ErrInvalidInput
	}
	return s.storage.PresignGet(ctx, objectKey)
}

func buildObjectKey(uploaderID uuid.UUID, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	return fmt.Sprintf("attachments/%s/%d/%s%s", uploaderID, time.Now().Year(), uuid.New(), ext)
}
