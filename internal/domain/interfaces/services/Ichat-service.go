package Iservices

import (
	"context"
	"voice-relay/internal/domain/entities"
)

type IChatService interface {
	GetReply(ctx context.Context, userMessage entities.Message) (string, error)
}
