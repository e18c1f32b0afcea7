package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"voice-relay/internal/domain/entities"

	bolt "go.etcd.io/bbolt"
)

var (
	conversationBucket = []byte("conversation")
	messagesKey        = []byte("messages")
)

// BoltRepository keeps the conversation as one JSON value in a BoltDB file.
// BoltDB holds an exclusive file lock while open, so only one process can use
// the file at a time.
type BoltRepository struct {
	db *bolt.DB
}

func NewBoltRepository(path string) (*BoltRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create bolt directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db %s: %w", path, err)
	}
	return &BoltRepository{db: db}, nil
}

func (r *BoltRepository) Read(ctx context.Context) ([]entities.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var messages []entities.Message
	err := r.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(conversationBucket)
		if b == nil {
			return nil
		}
		v := b.Get(messagesKey)
		if len(v) == 0 {
			return nil
		}
		// v is only valid inside the transaction; Unmarshal copies it out.
		return json.Unmarshal(v, &messages)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation from bolt: %w", err)
	}
	return messages, nil
}

func (r *BoltRepository) Write(ctx context.Context, messages []entities.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if messages == nil {
		messages = []entities.Message{}
	}

	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to encode conversation: %w", err)
	}

	err = r.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(conversationBucket)
		if err != nil {
			return err
		}
		return b.Put(messagesKey, data)
	})
	if err != nil {
		return fmt.Errorf("failed to write conversation to bolt: %w", err)
	}
	return nil
}

func (r *BoltRepository) Close() error {
	return r.db.Close()
}
