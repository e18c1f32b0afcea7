package provider

import (
	"context"
	"voice-relay/internal/domain/dto"
)

type ISpeechProvider interface {
	TextToSpeech(ctx context.Context, voiceID string, request dto.SynthesisRequest) ([]byte, error)
}
