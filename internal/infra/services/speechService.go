package services

import (
	"context"
	"time"
	"voice-relay/internal/domain/dto"
	"voice-relay/internal/domain/errs"
	"voice-relay/internal/infra/logger"
	"voice-relay/internal/infra/provider"

	"github.com/sirupsen/logrus"
)

// DefaultVoiceSettings are sent with every synthesis request.
var DefaultVoiceSettings = dto.VoiceSettings{
	Stability:       0,
	SimilarityBoost: 0,
	Style:           0,
	UseSpeakerBoost: true,
}

type SpeechService struct {
	Provider provider.ISpeechProvider
	VoiceID  string
	ModelID  string
	Timeout  time.Duration
	Logger   *logger.Logger
}

func NewSpeechService(speechProvider provider.ISpeechProvider, voiceID, modelID string, timeout time.Duration, logger *logger.Logger) *SpeechService {
	return &SpeechService{
		Provider: speechProvider,
		VoiceID:  voiceID,
		ModelID:  modelID,
		Timeout:  timeout,
		Logger:   logger,
	}
}

// Synthesize converts text to MPEG audio with the configured voice.
func (ss *SpeechService) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if ss.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ss.Timeout)
		defer cancel()
	}

	request := dto.SynthesisRequest{
		Text:          text,
		ModelID:       ss.ModelID,
		VoiceSettings: DefaultVoiceSettings,
	}

	start := time.Now()
	audio, err := ss.Provider.TextToSpeech(ctx, ss.VoiceID, request)
	if err != nil {
		ss.Logger.Error("Synthesis failed", logrus.Fields{"error": err.Error(), "voice_id": ss.VoiceID})
		return nil, errs.Wrap(errs.ErrSynthesis, err)
	}

	ss.Logger.Info("Speech synthesized", logrus.Fields{
		"bytes":       len(audio),
		"voice_id":    ss.VoiceID,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return audio, nil
}
