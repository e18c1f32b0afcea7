package repository

import (
	"context"
	"fmt"
	"voice-relay/internal/config"
	irepository "voice-relay/internal/domain/interfaces/repository"
	client "voice-relay/internal/pkg"
)

// NewConversationRepository opens the backend selected by cfg.Backend.
func NewConversationRepository(ctx context.Context, cfg config.StoreConfig) (irepository.ConversationRepository, error) {
	switch cfg.Backend {
	case config.StoreFile, "":
		repo, err := NewFileRepository(cfg.Path)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case config.StoreBolt:
		repo, err := NewBoltRepository(cfg.BoltPath)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case config.StoreRedis:
		rdb, err := client.RedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		return NewRedisRepository(rdb, cfg.RedisKey), nil
	case config.StoreMongo:
		mongoClient, err := client.MongoClient(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		return NewMongoRepository(mongoClient, cfg.MongoDatabase, cfg.MongoCollection), nil
	default:
		return nil, fmt.Errorf("unknown conversation store %q", cfg.Backend)
	}
}
