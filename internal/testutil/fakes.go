// Package testutil provides in-process stand-ins for the OpenAI and ElevenLabs
// HTTP APIs.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// FakeOpenAI serves /v1/audio/transcriptions and /v1/chat/completions.
type FakeOpenAI struct {
	Server *httptest.Server

	mu                  sync.Mutex
	transcript          *string
	transcriptionStatus int
	transcriptionDelay  time.Duration
	reply               string
	replyRole           string
	completionStatus    int
	noChoices           bool

	TranscriptionCalls int
	CompletionCalls    int
	LastModel          string
	LastFilename       string
	LastAudio          []byte
	LastMessages       []ChatMessage
	LastOrganization   string
}

func NewFakeOpenAI() *FakeOpenAI {
	f := &FakeOpenAI{}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/audio/transcriptions", f.handleTranscription)
	mux.HandleFunc("/v1/chat/completions", f.handleCompletion)
	f.Server = httptest.NewServer(mux)
	return f
}

func (f *FakeOpenAI) URL() string {
	return f.Server.URL + "/v1"
}

func (f *FakeOpenAI) Close() {
	f.Server.Close()
}

// SetTranscript makes the transcription endpoint answer {"text": text}.
func (f *FakeOpenAI) SetTranscript(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcript = &text
}

// DropTranscriptText makes the transcription endpoint answer without a text field.
func (f *FakeOpenAI) DropTranscriptText() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcript = nil
}

func (f *FakeOpenAI) FailTranscription(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcriptionStatus = status
}

func (f *FakeOpenAI) SetReply(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reply = text
	f.noChoices = false
}

// SetReplyRole overrides the role of the returned choice, "assistant" by default.
func (f *FakeOpenAI) SetReplyRole(role string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replyRole = role
}

// DelayTranscription holds every transcription response for d, or until the
// client gives up.
func (f *FakeOpenAI) DelayTranscription(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcriptionDelay = d
}

func (f *FakeOpenAI) ReplyWithNoChoices() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noChoices = true
}

func (f *FakeOpenAI) FailCompletion(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completionStatus = status
}

func (f *FakeOpenAI) Calls() (transcriptions, completions int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.TranscriptionCalls, f.CompletionCalls
}

func (f *FakeOpenAI) Messages() []ChatMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ChatMessage(nil), f.LastMessages...)
}

func (f *FakeOpenAI) handleTranscription(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	delay := f.transcriptionDelay
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.TranscriptionCalls++
	f.LastOrganization = r.Header.Get("OpenAI-Organization")

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeOpenAIError(w, http.StatusBadRequest, err.Error())
		return
	}
	f.LastModel = r.FormValue("model")

	file, header, err := r.FormFile("file")
	if err != nil {
		writeOpenAIError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()
	f.LastFilename = header.Filename
	f.LastAudio, _ = io.ReadAll(file)

	if f.transcriptionStatus != 0 {
		writeOpenAIError(w, f.transcriptionStatus, "transcription unavailable")
		return
	}

	body := map[string]any{}
	if f.transcript != nil {
		body["text"] = *f.transcript
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

func (f *FakeOpenAI) handleCompletion(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CompletionCalls++

	var request struct {
		Model    string        `json:"model"`
		Messages []ChatMessage `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeOpenAIError(w, http.StatusBadRequest, err.Error())
		return
	}
	f.LastModel = request.Model
	f.LastMessages = request.Messages

	if f.completionStatus != 0 {
		writeOpenAIError(w, f.completionStatus, "completion unavailable")
		return
	}

	role := f.replyRole
	if role == "" {
		role = "assistant"
	}
	choices := []map[string]any{}
	if !f.noChoices {
		choices = append(choices, map[string]any{
			"index":         0,
			"message":       map[string]string{"role": role, "content": f.reply},
			"finish_reason": "stop",
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   request.Model,
		"choices": choices,
		"usage":   map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
}

func writeOpenAIError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": message, "type": "server_error"},
	})
}

// SynthesisCall records one request received by FakeElevenLabs.
type SynthesisCall struct {
	VoiceID string
	APIKey  string
	Accept  string
	Body    map[string]any
}

// FakeElevenLabs serves /v1/text-to-speech/{voice_id}.
type FakeElevenLabs struct {
	Server *httptest.Server

	mu     sync.Mutex
	audio  []byte
	status int
	calls  []SynthesisCall
}

func NewFakeElevenLabs(audio []byte) *FakeElevenLabs {
	f := &FakeElevenLabs{audio: audio}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

func (f *FakeElevenLabs) URL() string {
	return f.Server.URL
}

func (f *FakeElevenLabs) Close() {
	f.Server.Close()
}

func (f *FakeElevenLabs) Fail(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
}

func (f *FakeElevenLabs) Calls() []SynthesisCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SynthesisCall(nil), f.calls...)
}

func (f *FakeElevenLabs) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	const prefix = "/v1/text-to-speech/"
	if r.Method != http.MethodPost || !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}

	call := SynthesisCall{
		VoiceID: strings.TrimPrefix(r.URL.Path, prefix),
		APIKey:  r.Header.Get("xi-api-key"),
		Accept:  r.Header.Get("Accept"),
	}
	json.NewDecoder(r.Body).Decode(&call.Body)
	f.calls = append(f.calls, call)

	if f.status != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		w.Write([]byte(`{"detail":{"status":"internal_error","message":"voice unavailable"}}`))
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Write(f.audio)
}
