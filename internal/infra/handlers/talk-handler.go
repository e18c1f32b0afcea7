package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"voice-relay/internal/domain/dto"
	"voice-relay/internal/domain/errs"
	Iservices "voice-relay/internal/domain/interfaces/services"
	"voice-relay/internal/infra/logger"
	"voice-relay/internal/middleware"

	"github.com/sirupsen/logrus"
)

const (
	uploadField    = "file"
	audioMediaType = "audio/mpeg"
)

type HttpHandlers struct {
	Logger               *logger.Logger
	MaxUploadBytes       int64
	TranscriptionService Iservices.ITranscriptionService
	ChatService          Iservices.IChatService
	SpeechService        Iservices.ISpeechService
}

func NewHttpHandlers(
	logger *logger.Logger,
	maxUploadBytes int64,
	transcriptionService Iservices.ITranscriptionService,
	chatService Iservices.IChatService,
	speechService Iservices.ISpeechService,
) *HttpHandlers {
	return &HttpHandlers{
		Logger:               logger,
		MaxUploadBytes:       maxUploadBytes,
		TranscriptionService: transcriptionService,
		ChatService:          chatService,
		SpeechService:        speechService,
	}
}

func (th *HttpHandlers) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.RootResponse{Message: "Hello Bot"})
}

func (th *HttpHandlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.HealthResponse{Status: "healthy"})
}

// Talk runs one voice turn: transcribe the upload, get the model's reply,
// synthesize it and stream the audio back.
//
// Stages run strictly in order and the first failure ends the request:
//   - 400 for a missing or oversized upload
//   - 502 when transcription, completion or synthesis fails upstream
//   - 504 when an upstream call times out
//   - 500 when the conversation log cannot be read or written
//
// The chat turn is persisted before synthesis, so a synthesis failure still
// leaves the conversation updated.
func (th *HttpHandlers) Talk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := th.Logger.With(logrus.Fields{"request_id": middleware.RequestIDFromContext(ctx)})

	if th.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, th.MaxUploadBytes)
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		th.writeError(w, log, errs.Wrap(errs.ErrInvalidUpload, err))
		return
	}
	defer file.Close()
	log.Info("Upload received", logrus.Fields{"stage": "received", "bytes": header.Size})

	userMessage, err := th.TranscriptionService.Transcribe(ctx, dto.Upload{Filename: header.Filename, Reader: file})
	if err != nil {
		th.writeError(w, log, err)
		return
	}
	log.Info("Stage complete", logrus.Fields{"stage": "transcribed"})

	reply, err := th.ChatService.GetReply(ctx, userMessage)
	if err != nil {
		th.writeError(w, log, err)
		return
	}
	log.Info("Stage complete", logrus.Fields{"stage": "replied"})

	audio, err := th.SpeechService.Synthesize(ctx, reply)
	if err != nil {
		th.writeError(w, log, err)
		return
	}
	log.Info("Stage complete", logrus.Fields{"stage": "synthesized"})

	w.Header().Set("Content-Type", audioMediaType)
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, bytes.NewReader(audio)); err != nil {
		log.Warn("Streaming audio to client failed", logrus.Fields{"stage": "streaming", "error": err.Error()})
		return
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (th *HttpHandlers) writeError(w http.ResponseWriter, log *logger.Logger, err error) {
	status, stage := classify(err)
	log.Error("Voice turn failed", logrus.Fields{"stage": stage, "status": status, "error": err.Error()})

	message := http.StatusText(status)
	if kind := errs.KindOf(err); kind != nil {
		message = kind.Error()
	}
	writeJSON(w, status, dto.ErrorResponse{Error: message, Stage: stage})
}

func classify(err error) (int, string) {
	var status int
	var stage string

	switch {
	case errors.Is(err, errs.ErrInvalidUpload):
		status, stage = http.StatusBadRequest, "upload"
	case errors.Is(err, errs.ErrTranscription):
		status, stage = http.StatusBadGateway, "transcription"
	case errors.Is(err, errs.ErrCompletion):
		status, stage = http.StatusBadGateway, "completion"
	case errors.Is(err, errs.ErrSynthesis):
		status, stage = http.StatusBadGateway, "synthesis"
	case errors.Is(err, errs.ErrStorageRead), errors.Is(err, errs.ErrStorageWrite):
		status, stage = http.StatusInternalServerError, "storage"
	default:
		status, stage = http.StatusInternalServerError, "unknown"
	}

	if status == http.StatusBadGateway && errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	return status, stage
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
