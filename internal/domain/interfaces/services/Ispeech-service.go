package Iservices

import "context"

type ISpeechService interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
