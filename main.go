package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"voice-relay/internal/config"
	"voice-relay/internal/infra/handlers"
	"voice-relay/internal/infra/logger"
	"voice-relay/internal/infra/provider"
	"voice-relay/internal/infra/repository"
	"voice-relay/internal/infra/routes"
	"voice-relay/internal/infra/services"
	"voice-relay/internal/middleware"
	client "voice-relay/internal/pkg"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

func main() {
	ctx := context.Background()

	if err := config.LoadEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration:\n%v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(ctx, cfg.LogJSON, cfg.LogLevel)

	conversationRepo, err := repository.NewConversationRepository(ctx, cfg.Store)
	if err != nil {
		log.Fatal("Failed to open conversation store", logrus.Fields{"backend": cfg.Store.Backend, "error": err.Error()})
	}
	defer func() {
		if err := conversationRepo.Close(); err != nil {
			log.Warn("Failed to close conversation store", logrus.Fields{"error": err.Error()})
		}
	}()

	httpClient := &http.Client{}
	openaiClient := client.OpenAIClient(cfg.OpenAI, httpClient)
	speechProvider := provider.NewElevenLabsProvider(log, httpClient, cfg.ElevenLabs.BaseURL, cfg.ElevenLabs.APIKey)

	conversationSvc := services.NewConversationService(conversationRepo, cfg.SystemPrompt, log)
	transcriptionSvc := services.NewTranscriptionService(openaiClient, cfg.OpenAI.TranscriptionModel, cfg.UpstreamTimeout, log)
	chatSvc := services.NewChatService(openaiClient, conversationSvc, cfg.OpenAI.ChatModel, cfg.UpstreamTimeout, log)
	speechSvc := services.NewSpeechService(speechProvider, cfg.ElevenLabs.VoiceID, cfg.ElevenLabs.ModelID, cfg.UpstreamTimeout, log)

	httpHandlers := handlers.NewHttpHandlers(log, cfg.MaxUploadBytes, transcriptionSvc, chatSvc, speechSvc)

	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware(log))

	routes := routes.NewRoutes(router, httpHandlers)
	routes.Init()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Info(fmt.Sprintf("Server is running on port %s", cfg.Port), logrus.Fields{
			"store":      cfg.Store.Backend,
			"chat_model": cfg.OpenAI.ChatModel,
			"voice_id":   cfg.ElevenLabs.VoiceID,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serverErr:
		log.Error(fmt.Sprintf("Error running HTTP server: %s", err))
		return
	}
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(fmt.Sprintf("Server forced to shutdown: %v", err))
	} else {
		log.Info("Server stopped gracefully.")
	}
}
