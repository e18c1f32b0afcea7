package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"voice-relay/internal/domain/dto"
	"voice-relay/internal/infra/logger"

	"github.com/sirupsen/logrus"
)

// maxErrorBody bounds how much of a failed response is kept for diagnostics.
const maxErrorBody = 512

// StatusError is returned when ElevenLabs answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d: %s", e.StatusCode, e.Body)
}

type ElevenLabsProvider struct {
	Logger     *logger.Logger
	HttpClient *http.Client
	BaseURL    string
	APIKey     string
}

func NewElevenLabsProvider(logger *logger.Logger, httpClient *http.Client, baseURL, apiKey string) *ElevenLabsProvider {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &ElevenLabsProvider{Logger: logger, HttpClient: httpClient, BaseURL: baseURL, APIKey: apiKey}
}

// TextToSpeech posts request to the text-to-speech endpoint for voiceID and
// returns the MPEG audio body.
//
// Returns:
//   - []byte: the raw audio on a 2xx response.
//   - error: a *StatusError for non-2xx responses, or the transport error.
//     No bytes are returned alongside an error.
func (p *ElevenLabsProvider) TextToSpeech(ctx context.Context, voiceID string, request dto.SynthesisRequest) ([]byte, error) {
	if voiceID == "" {
		return nil, fmt.Errorf("voice id cannot be empty")
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	apiURL := fmt.Sprintf("%s/v1/text-to-speech/%s", p.BaseURL, url.PathEscape(voiceID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", p.APIKey)

	res, err := p.HttpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		p.Logger.Error("ElevenLabs returned an error", logrus.Fields{
			"status":        res.StatusCode,
			"response_body": string(body),
		})
		return nil, &StatusError{StatusCode: res.StatusCode, Body: string(body)}
	}

	audio, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	p.Logger.Debug("ElevenLabs audio received", logrus.Fields{
		"status":       res.StatusCode,
		"bytes":        len(audio),
		"content_type": res.Header.Get("Content-Type"),
	})
	return audio, nil
}
