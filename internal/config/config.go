package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const DefaultSystemPrompt = "You are interviewing a Full Stack Software Engineer. Please ask short questions that are relevant to this position. Keep responses under 30 words and be funny sometimes"

// Store backends accepted by CONVERSATION_STORE.
const (
	StoreFile  = "file"
	StoreBolt  = "bolt"
	StoreRedis = "redis"
	StoreMongo = "mongo"
)

type Config struct {
	Port            string
	LogLevel        string
	LogJSON         bool
	UpstreamTimeout time.Duration
	MaxUploadBytes  int64
	SystemPrompt    string

	OpenAI     OpenAIConfig
	ElevenLabs ElevenLabsConfig
	Store      StoreConfig
}

type OpenAIConfig struct {
	APIKey             string
	Organization       string
	BaseURL            string
	ChatModel          string
	TranscriptionModel string
}

type ElevenLabsConfig struct {
	APIKey  string
	BaseURL string
	VoiceID string
	ModelID string
}

type StoreConfig struct {
	Backend string
	Path    string

	BoltPath string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string

	MongoURI        string
	MongoDatabase   string
	MongoCollection string
}

// LoadEnv loads a .env file into the process environment. A missing file is
// not an error.
func LoadEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	err := godotenv.Load(filenames...)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

func GetEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func GetEnvDefault(key, fallback string) string {
	if value := GetEnv(key); value != "" {
		return value
	}
	return fallback
}

// Load reads the configuration from the environment. Every missing required
// key and every malformed value is reported in the returned error.
func Load() (*Config, error) {
	var problems []error

	require := func(key string) string {
		value := GetEnv(key)
		if value == "" {
			problems = append(problems, fmt.Errorf("environment variable %s is required but not set", key))
		}
		return value
	}

	cfg := &Config{
		Port:         GetEnvDefault("PORT", "8000"),
		LogLevel:     GetEnvDefault("LOG_LEVEL", "info"),
		LogJSON:      !strings.EqualFold(GetEnvDefault("LOG_FORMAT", "json"), "text"),
		SystemPrompt: GetEnvDefault("SYSTEM_PROMPT", DefaultSystemPrompt),
		OpenAI: OpenAIConfig{
			APIKey:             require("OPEN_AI_KEY"),
			Organization:       GetEnv("OPEN_AI_ORG"),
			BaseURL:            GetEnvDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			ChatModel:          GetEnvDefault("CHAT_MODEL", "gpt-3.5-turbo"),
			TranscriptionModel: GetEnvDefault("TRANSCRIPTION_MODEL", "whisper-1"),
		},
		ElevenLabs: ElevenLabsConfig{
			APIKey:  require("ELEVENLABS_KEY"),
			BaseURL: strings.TrimRight(GetEnvDefault("ELEVENLABS_URL", "https://api.elevenlabs.io"), "/"),
			VoiceID: GetEnvDefault("VOICE_ID", "IKne3meq5aSn9XLyUdCD"),
			ModelID: GetEnvDefault("VOICE_MODEL_ID", "eleven_monolingual_v1"),
		},
		Store: StoreConfig{
			Backend:         strings.ToLower(GetEnvDefault("CONVERSATION_STORE", StoreFile)),
			Path:            GetEnvDefault("CONVERSATION_PATH", "database.json"),
			BoltPath:        GetEnvDefault("BOLT_PATH", "conversation.bolt"),
			RedisAddr:       GetEnvDefault("REDIS_ADDR", "localhost:6379"),
			RedisPassword:   GetEnv("REDIS_PASSWORD"),
			RedisKey:        GetEnvDefault("REDIS_KEY", "voice-relay:conversation"),
			MongoURI:        GetEnvDefault("MONGODB_URI", "mongodb://localhost:27017"),
			MongoDatabase:   GetEnvDefault("MONGODB_DATABASE", "voice_relay"),
			MongoCollection: GetEnvDefault("MONGODB_COLLECTION", "conversation"),
		},
	}

	timeout, err := time.ParseDuration(GetEnvDefault("UPSTREAM_TIMEOUT", "60s"))
	if err != nil || timeout <= 0 {
		problems = append(problems, fmt.Errorf("UPSTREAM_TIMEOUT must be a positive duration: %q", GetEnv("UPSTREAM_TIMEOUT")))
	}
	cfg.UpstreamTimeout = timeout

	maxUpload, err := strconv.ParseInt(GetEnvDefault("MAX_UPLOAD_BYTES", "26214400"), 10, 64)
	if err != nil || maxUpload <= 0 {
		problems = append(problems, fmt.Errorf("MAX_UPLOAD_BYTES must be a positive integer: %q", GetEnv("MAX_UPLOAD_BYTES")))
	}
	cfg.MaxUploadBytes = maxUpload

	redisDB, err := strconv.Atoi(GetEnvDefault("REDIS_DB", "0"))
	if err != nil || redisDB < 0 {
		problems = append(problems, fmt.Errorf("REDIS_DB must be a non-negative integer: %q", GetEnv("REDIS_DB")))
	}
	cfg.Store.RedisDB = redisDB

	switch cfg.Store.Backend {
	case StoreFile, StoreBolt, StoreRedis, StoreMongo:
	default:
		problems = append(problems, fmt.Errorf("CONVERSATION_STORE %q is not one of file, bolt, redis, mongo", cfg.Store.Backend))
	}

	if len(problems) > 0 {
		return nil, errors.Join(problems...)
	}
	return cfg, nil
}
