package services

import (
	"context"
	"sync"
	"voice-relay/internal/domain/entities"
	"voice-relay/internal/domain/errs"
	"voice-relay/internal/domain/interfaces/repository"
	"voice-relay/internal/infra/logger"

	"github.com/sirupsen/logrus"
)

// ConversationService is the conversation log used as the assistant's memory.
//
// It assumes a single writer: AppendAndSave is serialized by an in-process
// mutex, and by the repository's lock when the backend provides one. The
// history is never trimmed, so every turn resends the whole log upstream.
type ConversationService struct {
	Repository   repository.ConversationRepository
	SystemPrompt string
	Logger       *logger.Logger

	mu sync.Mutex
}

// NewConversationService creates a new instance of the service.
func NewConversationService(repo repository.ConversationRepository, systemPrompt string, logger *logger.Logger) *ConversationService {
	return &ConversationService{
		Repository:   repo,
		SystemPrompt: systemPrompt,
		Logger:       logger,
	}
}

// Load returns the stored conversation, or a log holding only the system
// prompt when nothing has been stored yet.
func (cs *ConversationService) Load(ctx context.Context) ([]entities.Message, error) {
	messages, err := cs.Repository.Read(ctx)
	if err != nil {
		cs.Logger.Error("Failed to read conversation", logrus.Fields{"error": err.Error()})
		return nil, errs.Wrap(errs.ErrStorageRead, err)
	}

	if len(messages) == 0 {
		return []entities.Message{entities.SystemMessage(cs.SystemPrompt)}, nil
	}

	if err := entities.ValidateMessages(messages); err != nil {
		cs.Logger.Error("Stored conversation is invalid", logrus.Fields{"error": err.Error()})
		return nil, errs.Wrap(errs.ErrStorageRead, err)
	}

	return messages, nil
}

// AppendAndSave reloads the stored conversation, appends messages and
// rewrites the whole document.
func (cs *ConversationService) AppendAndSave(ctx context.Context, messages ...entities.Message) error {
	if err := entities.ValidateMessages(messages); err != nil {
		return errs.Wrap(errs.ErrStorageWrite, err)
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if locker, ok := cs.Repository.(repository.Locker); ok {
		unlock, err := locker.Lock(ctx)
		if err != nil {
			cs.Logger.Error("Failed to lock conversation", logrus.Fields{"error": err.Error()})
			return errs.Wrap(errs.ErrStorageWrite, err)
		}
		defer func() {
			if err := unlock(); err != nil {
				cs.Logger.Warn("Failed to unlock conversation", logrus.Fields{"error": err.Error()})
			}
		}()
	}

	history, err := cs.Load(ctx)
	if err != nil {
		return err
	}

	history = append(history, messages...)

	if err := cs.Repository.Write(ctx, history); err != nil {
		cs.Logger.Error("Failed to write conversation", logrus.Fields{"error": err.Error()})
		return errs.Wrap(errs.ErrStorageWrite, err)
	}

	cs.Logger.Debug("Conversation saved", logrus.Fields{"messages": len(history), "appended": len(messages)})
	return nil
}
