package repository

import (
	"context"
	"voice-relay/internal/domain/entities"
)

// ConversationRepository stores the whole conversation log as one document.
// Read returns a nil slice when the document does not exist yet or is empty.
type ConversationRepository interface {
	Read(ctx context.Context) ([]entities.Message, error)
	Write(ctx context.Context, messages []entities.Message) error
	Close() error
}

// Locker is implemented by backends that can exclude other processes for the
// length of a read-modify-write. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context) (func() error, error)
}
