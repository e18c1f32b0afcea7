package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"voice-relay/internal/domain/entities"
	"voice-relay/internal/domain/errs"
	Iservices "voice-relay/internal/domain/interfaces/services"
	"voice-relay/internal/infra/logger"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// ChatCompleter is the part of *openai.Client used for completions.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type ChatService struct {
	Client       ChatCompleter
	Conversation Iservices.IConversationService
	Model        string
	Timeout      time.Duration
	Logger       *logger.Logger
}

func NewChatService(client ChatCompleter, conversation Iservices.IConversationService, model string, timeout time.Duration, logger *logger.Logger) *ChatService {
	return &ChatService{
		Client:       client,
		Conversation: conversation,
		Model:        model,
		Timeout:      timeout,
		Logger:       logger,
	}
}

// GetReply sends the stored conversation plus userMessage to the model and
// returns the text of the first choice.
//
// Both turns are persisted through AppendAndSave, which reloads the log, so
// the stored history grows by exactly two messages on top of whatever is
// stored at write time, not on top of the history read here.
func (cs *ChatService) GetReply(ctx context.Context, userMessage entities.Message) (string, error) {
	history, err := cs.Conversation.Load(ctx)
	if err != nil {
		return "", err
	}
	history = append(history, userMessage)

	reply, err := cs.complete(ctx, history)
	if err != nil {
		return "", err
	}

	if err := cs.Conversation.AppendAndSave(ctx, userMessage, reply); err != nil {
		return "", err
	}

	return reply.Content, nil
}

func (cs *ChatService) complete(ctx context.Context, history []entities.Message) (entities.Message, error) {
	if cs.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cs.Timeout)
		defer cancel()
	}

	request := openai.ChatCompletionRequest{
		Model:    cs.Model,
		Messages: toChatCompletionMessages(history),
	}

	start := time.Now()
	resp, err := cs.Client.CreateChatCompletion(ctx, request)
	if err != nil {
		cs.Logger.Error("Completion request failed", logrus.Fields{"error": err.Error(), "model": cs.Model})
		return entities.Message{}, errs.Wrap(errs.ErrCompletion, err)
	}

	if len(resp.Choices) == 0 {
		cs.Logger.Warn("Completion response has no choices", logrus.Fields{"model": cs.Model})
		return entities.Message{}, errs.Wrap(errs.ErrCompletion, errors.New("response has no choices"))
	}

	choice := resp.Choices[0].Message
	content := choice.Content
	if strings.TrimSpace(content) == "" {
		cs.Logger.Warn("Completion response has no text content", logrus.Fields{
			"model":         cs.Model,
			"finish_reason": string(resp.Choices[0].FinishReason),
		})
		return entities.Message{}, errs.Wrap(errs.ErrCompletion, errors.New("first choice has no text content"))
	}

	role := entities.Role(choice.Role)
	if role == "" {
		role = entities.RoleAssistant
	}
	if !role.Valid() {
		cs.Logger.Warn("Completion response has an unknown role", logrus.Fields{"model": cs.Model, "role": choice.Role})
		return entities.Message{}, errs.Wrapf(errs.ErrCompletion, "first choice has unknown role %q", choice.Role)
	}

	cs.Logger.Info("Completion received", logrus.Fields{
		"history":           len(history),
		"reply_chars":       len(content),
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
		"duration_ms":       time.Since(start).Milliseconds(),
	})

	return entities.Message{Role: role, Content: content}, nil
}

func toChatCompletionMessages(messages []entities.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return out
}
