package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"
	"voice-relay/internal/config"
	"voice-relay/internal/domain/dto"
	"voice-relay/internal/domain/entities"
	irepository "voice-relay/internal/domain/interfaces/repository"
	"voice-relay/internal/infra/handlers"
	"voice-relay/internal/infra/logger"
	"voice-relay/internal/infra/provider"
	"voice-relay/internal/infra/repository"
	"voice-relay/internal/infra/routes"
	"voice-relay/internal/infra/services"
	"voice-relay/internal/middleware"
	client "voice-relay/internal/pkg"
	"voice-relay/internal/testutil"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	openAIKey     = "sk-secret-openai"
	elevenLabsKey = "xi-secret-elevenlabs"
)

type TalkHandlerSuite struct {
	suite.Suite

	openAI       *testutil.FakeOpenAI
	elevenLabs   *testutil.FakeElevenLabs
	conversation *services.ConversationService
	logHook      *test.Hook
	router       *mux.Router
}

func TestTalkHandlerSuite(t *testing.T) {
	suite.Run(t, new(TalkHandlerSuite))
}

func (s *TalkHandlerSuite) SetupTest() {
	s.openAI = testutil.NewFakeOpenAI()
	s.elevenLabs = testutil.NewFakeElevenLabs([]byte("\xff\xfbMPEG-AUDIO"))

	repo, err := repository.NewFileRepository(filepath.Join(s.T().TempDir(), "database.json"))
	require.NoError(s.T(), err)

	s.buildRouter(repo, time.Second)
}

// buildRouter wires the full service stack over repo, with timeout applied
// to every upstream call.
func (s *TalkHandlerSuite) buildRouter(repo irepository.ConversationRepository, timeout time.Duration) {
	base, hook := test.NewNullLogger()
	s.logHook = hook
	log := logger.FromLogrus(context.Background(), base)

	openaiClient := client.OpenAIClient(config.OpenAIConfig{APIKey: openAIKey, BaseURL: s.openAI.URL()}, s.openAI.Server.Client())
	speechProvider := provider.NewElevenLabsProvider(log, s.elevenLabs.Server.Client(), s.elevenLabs.URL(), elevenLabsKey)

	s.conversation = services.NewConversationService(repo, config.DefaultSystemPrompt, log)
	transcription := services.NewTranscriptionService(openaiClient, "whisper-1", timeout, log)
	chat := services.NewChatService(openaiClient, s.conversation, "gpt-3.5-turbo", timeout, log)
	speech := services.NewSpeechService(speechProvider, "IKne3meq5aSn9XLyUdCD", "eleven_monolingual_v1", timeout, log)

	s.router = mux.NewRouter()
	s.router.Use(middleware.LoggingMiddleware(log))
	routes.NewRoutes(s.router, handlers.NewHttpHandlers(log, 1<<20, transcription, chat, speech)).Init()
}

type unreadableRepository struct {
	writes int
}

func (r *unreadableRepository) Read(context.Context) ([]entities.Message, error) {
	return nil, errors.New("permission denied")
}

func (r *unreadableRepository) Write(context.Context, []entities.Message) error {
	r.writes++
	return nil
}

func (r *unreadableRepository) Close() error { return nil }

func (s *TalkHandlerSuite) TearDownTest() {
	s.openAI.Close()
	s.elevenLabs.Close()
}

func (s *TalkHandlerSuite) talk(field string, audio []byte) *httptest.ResponseRecorder {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, "question.mp3")
	require.NoError(s.T(), err)
	_, err = part.Write(audio)
	require.NoError(s.T(), err)
	require.NoError(s.T(), writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/talk", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *TalkHandlerSuite) stored() []entities.Message {
	messages, err := s.conversation.Load(context.Background())
	require.NoError(s.T(), err)
	return messages
}

func (s *TalkHandlerSuite) decodeError(rec *httptest.ResponseRecorder) dto.ErrorResponse {
	var body dto.ErrorResponse
	require.NoError(s.T(), json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func (s *TalkHandlerSuite) TestRoot() {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(s.T(), http.StatusOK, rec.Code)
	assert.JSONEq(s.T(), `{"message":"Hello Bot"}`, rec.Body.String())
}

func (s *TalkHandlerSuite) TestHealthCheck() {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthCheck", nil))

	assert.Equal(s.T(), http.StatusOK, rec.Code)
	assert.JSONEq(s.T(), `{"status":"healthy"}`, rec.Body.String())
}

func (s *TalkHandlerSuite) TestTalkFullTurn() {
	s.openAI.SetTranscript("Hello")
	s.openAI.SetReply("Hi there!")

	rec := s.talk("file", []byte("spoken-audio"))

	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(s.T(), "audio/mpeg", rec.Header().Get("Content-Type"))
	assert.NotEmpty(s.T(), rec.Header().Get(middleware.RequestIDHeader))
	assert.Equal(s.T(), []byte("\xff\xfbMPEG-AUDIO"), rec.Body.Bytes())

	assert.Equal(s.T(), []byte("spoken-audio"), s.openAI.LastAudio)
	calls := s.elevenLabs.Calls()
	require.Len(s.T(), calls, 1)
	assert.Equal(s.T(), "Hi there!", calls[0].Body["text"])

	assert.Equal(s.T(), []entities.Message{
		entities.SystemMessage(config.DefaultSystemPrompt),
		entities.UserMessage("Hello"),
		entities.AssistantMessage("Hi there!"),
	}, s.stored())
}

func (s *TalkHandlerSuite) TestTalkTranscriptWithoutText() {
	s.openAI.DropTranscriptText()

	rec := s.talk("file", []byte("noise"))

	assert.Equal(s.T(), http.StatusBadGateway, rec.Code)
	assert.Equal(s.T(), "transcription", s.decodeError(rec).Stage)

	_, completions := s.openAI.Calls()
	assert.Zero(s.T(), completions, "no completion call after a failed transcription")
	assert.Empty(s.T(), s.elevenLabs.Calls())
	assert.Len(s.T(), s.stored(), 1)
}

func (s *TalkHandlerSuite) TestTalkCompletionFailure() {
	s.openAI.SetTranscript("Hello")
	s.openAI.FailCompletion(http.StatusInternalServerError)

	rec := s.talk("file", []byte("spoken-audio"))

	assert.Equal(s.T(), http.StatusBadGateway, rec.Code)
	assert.Equal(s.T(), "completion", s.decodeError(rec).Stage)
	assert.Empty(s.T(), s.elevenLabs.Calls())
	assert.Len(s.T(), s.stored(), 1)
}

func (s *TalkHandlerSuite) TestTalkSynthesisFailureKeepsChatTurn() {
	s.openAI.SetTranscript("Hello")
	s.openAI.SetReply("Hi there!")
	s.elevenLabs.Fail(http.StatusInternalServerError)

	rec := s.talk("file", []byte("spoken-audio"))

	assert.Equal(s.T(), http.StatusBadGateway, rec.Code)
	assert.Equal(s.T(), "application/json", rec.Header().Get("Content-Type"))
	body := s.decodeError(rec)
	assert.Equal(s.T(), "synthesis", body.Stage)
	assert.Equal(s.T(), "synthesis failed", body.Error)

	assert.Equal(s.T(), []entities.Message{
		entities.SystemMessage(config.DefaultSystemPrompt),
		entities.UserMessage("Hello"),
		entities.AssistantMessage("Hi there!"),
	}, s.stored())
}

func (s *TalkHandlerSuite) TestTalkUpstreamTimeout() {
	repo, err := repository.NewFileRepository(filepath.Join(s.T().TempDir(), "database.json"))
	require.NoError(s.T(), err)
	s.buildRouter(repo, 50*time.Millisecond)

	s.openAI.SetTranscript("Hello")
	s.openAI.DelayTranscription(300 * time.Millisecond)

	rec := s.talk("file", []byte("spoken-audio"))

	assert.Equal(s.T(), http.StatusGatewayTimeout, rec.Code)
	body := s.decodeError(rec)
	assert.Equal(s.T(), "transcription", body.Stage)
	assert.Equal(s.T(), "transcription failed", body.Error)

	_, completions := s.openAI.Calls()
	assert.Zero(s.T(), completions)
	assert.Empty(s.T(), s.elevenLabs.Calls())
}

func (s *TalkHandlerSuite) TestTalkStorageReadFailure() {
	repo := &unreadableRepository{}
	s.buildRouter(repo, time.Second)

	s.openAI.SetTranscript("Hello")
	s.openAI.SetReply("Hi there!")

	rec := s.talk("file", []byte("spoken-audio"))

	assert.Equal(s.T(), http.StatusInternalServerError, rec.Code)
	body := s.decodeError(rec)
	assert.Equal(s.T(), "storage", body.Stage)
	assert.Equal(s.T(), "conversation read failed", body.Error)

	_, completions := s.openAI.Calls()
	assert.Zero(s.T(), completions, "history must load before the model is called")
	assert.Empty(s.T(), s.elevenLabs.Calls())
	assert.Zero(s.T(), repo.writes)
}

func (s *TalkHandlerSuite) TestTalkMissingFileField() {
	rec := s.talk("audio", []byte("spoken-audio"))

	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
	assert.Equal(s.T(), "upload", s.decodeError(rec).Stage)

	transcriptions, _ := s.openAI.Calls()
	assert.Zero(s.T(), transcriptions)
}

func (s *TalkHandlerSuite) TestTalkOversizedUpload() {
	rec := s.talk("file", bytes.Repeat([]byte("a"), 2<<20))

	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
}

func (s *TalkHandlerSuite) TestTalkRejectsGet() {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/talk", nil))

	assert.Equal(s.T(), http.StatusMethodNotAllowed, rec.Code)
}

func (s *TalkHandlerSuite) TestLogsNeverCarrySecretsOrContent() {
	s.openAI.SetTranscript("my private question")
	s.openAI.SetReply("a private answer")
	s.elevenLabs.Fail(http.StatusUnauthorized)

	s.talk("file", []byte("raw-audio-payload"))

	for _, entry := range s.logHook.AllEntries() {
		line, err := entry.String()
		require.NoError(s.T(), err)
		for _, secret := range []string{openAIKey, elevenLabsKey, "my private question", "a private answer", "raw-audio-payload"} {
			assert.NotContains(s.T(), line, secret)
		}
	}
}

func (s *TalkHandlerSuite) TestTalkStreamsBodyToRealClient() {
	s.openAI.SetTranscript("Hello")
	s.openAI.SetReply("Hi there!")

	server := httptest.NewServer(s.router)
	defer server.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "question.mp3")
	require.NoError(s.T(), err)
	_, _ = part.Write([]byte("spoken-audio"))
	require.NoError(s.T(), writer.Close())

	resp, err := http.Post(server.URL+"/talk", writer.FormDataContentType(), &body)
	require.NoError(s.T(), err)
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)
	assert.Equal(s.T(), "audio/mpeg", resp.Header.Get("Content-Type"))
	assert.Equal(s.T(), []byte("\xff\xfbMPEG-AUDIO"), audio)
}
