package client

import (
	"net/http"
	"voice-relay/internal/config"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient builds the client shared by transcription and chat. Timeouts
// are applied per call through the request context.
func OpenAIClient(cfg config.OpenAIConfig, httpClient *http.Client) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.OrgID = cfg.Organization
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		clientConfig.HTTPClient = httpClient
	}
	return openai.NewClientWithConfig(clientConfig)
}
