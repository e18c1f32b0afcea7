package Iservices

import (
	"context"
	"voice-relay/internal/domain/dto"
	"voice-relay/internal/domain/entities"
)

type ITranscriptionService interface {
	Transcribe(ctx context.Context, upload dto.Upload) (entities.Message, error)
}
