package Iservices

import (
	"context"
	"voice-relay/internal/domain/entities"
)

type IConversationService interface {
	Load(ctx context.Context) ([]entities.Message, error)
	AppendAndSave(ctx context.Context, messages ...entities.Message) error
}
