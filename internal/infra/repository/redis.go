package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"voice-relay/internal/domain/entities"

	"github.com/redis/go-redis/v9"
)

// RedisRepository keeps the conversation as a JSON string under one key.
type RedisRepository struct {
	client *redis.Client
	key    string
}

func NewRedisRepository(client *redis.Client, key string) *RedisRepository {
	return &RedisRepository{client: client, key: key}
}

func (r *RedisRepository) Read(ctx context.Context) ([]entities.Message, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", r.key, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var messages []entities.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", r.key, err)
	}
	return messages, nil
}

func (r *RedisRepository) Write(ctx context.Context, messages []entities.Message) error {
	if messages == nil {
		messages = []entities.Message{}
	}
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to encode conversation: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", r.key, err)
	}
	return nil
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}
