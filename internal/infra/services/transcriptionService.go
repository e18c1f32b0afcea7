package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"voice-relay/internal/domain/dto"
	"voice-relay/internal/domain/entities"
	"voice-relay/internal/domain/errs"
	"voice-relay/internal/infra/logger"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// AudioTranscriber is the part of *openai.Client used for speech-to-text.
type AudioTranscriber interface {
	CreateTranscription(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
}

type TranscriptionService struct {
	Client  AudioTranscriber
	Model   string
	Timeout time.Duration
	Logger  *logger.Logger
}

func NewTranscriptionService(client AudioTranscriber, model string, timeout time.Duration, logger *logger.Logger) *TranscriptionService {
	return &TranscriptionService{
		Client:  client,
		Model:   model,
		Timeout: timeout,
		Logger:  logger,
	}
}

// Transcribe sends the uploaded audio to the transcription endpoint and wraps
// the transcript as a user message. There is no retry.
func (ts *TranscriptionService) Transcribe(ctx context.Context, upload dto.Upload) (entities.Message, error) {
	if upload.Reader == nil {
		return entities.Message{}, errs.Wrapf(errs.ErrInvalidUpload, "upload has no content")
	}

	filename := upload.Filename
	if filename == "" {
		// The endpoint infers the audio format from the extension.
		filename = "audio.mp3"
	}

	if ts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ts.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := ts.Client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    ts.Model,
		FilePath: filename,
		Reader:   upload.Reader,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		ts.Logger.Error("Transcription request failed", logrus.Fields{"error": err.Error(), "model": ts.Model})
		return entities.Message{}, errs.Wrap(errs.ErrTranscription, err)
	}

	// Blank transcripts are rejected, but the text is stored as returned.
	if strings.TrimSpace(resp.Text) == "" {
		ts.Logger.Warn("Transcription response has no text", logrus.Fields{"model": ts.Model})
		return entities.Message{}, errs.Wrap(errs.ErrTranscription, errors.New("response has no transcript text"))
	}

	ts.Logger.Info("Audio transcribed", logrus.Fields{
		"chars":       len(resp.Text),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return entities.UserMessage(resp.Text), nil
}
