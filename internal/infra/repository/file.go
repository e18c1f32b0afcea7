package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"voice-relay/internal/domain/entities"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 50 * time.Millisecond

// FileRepository keeps the conversation as a JSON array in a single file.
// Writes go through a temp file and a rename, so readers see either the old
// or the new document and never a truncated one.
type FileRepository struct {
	path string
	lock *flock.Flock
}

func NewFileRepository(path string) (*FileRepository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create conversation directory: %w", err)
		}
	}
	return &FileRepository{path: path, lock: flock.New(path + ".lock")}, nil
}

func (r *FileRepository) Read(ctx context.Context) ([]entities.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var messages []entities.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", r.path, err)
	}
	return messages, nil
}

func (r *FileRepository) Write(ctx context.Context, messages []entities.Message) error {
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

	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", r.path, err)
	}
	return nil
}

// Lock takes the advisory lock shared with other processes using the same
// file. It must not be nested.
func (r *FileRepository) Lock(ctx context.Context) (func() error, error) {
	locked, err := r.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", r.lock.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("failed to lock %s: %w", r.lock.Path(), ctx.Err())
	}
	return r.lock.Unlock, nil
}

func (r *FileRepository) Close() error {
	return r.lock.Close()
}
