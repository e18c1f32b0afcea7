package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"voice-relay/internal/config"
	"voice-relay/internal/domain/entities"
	"voice-relay/internal/domain/errs"
	"voice-relay/internal/infra/logger"
	"voice-relay/internal/infra/repository"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logger.Logger {
	base, _ := test.NewNullLogger()
	return logger.FromLogrus(context.Background(), base)
}

func newFileConversation(t *testing.T) (*ConversationService, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "database.json")
	repo, err := repository.NewFileRepository(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return NewConversationService(repo, config.DefaultSystemPrompt, newTestLogger()), path
}

func TestLoadSeedsSystemPromptWhenMissing(t *testing.T) {
	conv, _ := newFileConversation(t)

	messages, err := conv.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []entities.Message{entities.SystemMessage(config.DefaultSystemPrompt)}, messages)
}

func TestLoadSeedsSystemPromptWhenEmpty(t *testing.T) {
	for name, content := range map[string]string{"zero bytes": "", "whitespace": "\n ", "empty array": "[]"} {
		t.Run(name, func(t *testing.T) {
			conv, path := newFileConversation(t)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

			messages, err := conv.Load(context.Background())
			require.NoError(t, err)
			require.Len(t, messages, 1)
			assert.Equal(t, entities.RoleSystem, messages[0].Role)
			assert.Equal(t, config.DefaultSystemPrompt, messages[0].Content)
		})
	}
}

func TestLoadInvalidDocument(t *testing.T) {
	conv, path := newFileConversation(t)
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := conv.Load(context.Background())
	assert.ErrorIs(t, err, errs.ErrStorageRead)
}

func TestLoadRejectsUnknownRole(t *testing.T) {
	conv, path := newFileConversation(t)
	require.NoError(t, os.WriteFile(path, []byte(`[{"role":"agent","content":"hi"}]`), 0o644))

	_, err := conv.Load(context.Background())
	assert.ErrorIs(t, err, errs.ErrStorageRead)
}

func TestAppendAndSaveRoundTrip(t *testing.T) {
	conv, _ := newFileConversation(t)
	ctx := context.Background()

	require.NoError(t, conv.AppendAndSave(ctx, entities.UserMessage("Hello"), entities.AssistantMessage("Hi there!")))
	require.NoError(t, conv.AppendAndSave(ctx, entities.UserMessage("How are you?"), entities.AssistantMessage("Ready to interview.")))

	messages, err := conv.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []entities.Message{
		entities.SystemMessage(config.DefaultSystemPrompt),
		entities.UserMessage("Hello"),
		entities.AssistantMessage("Hi there!"),
		entities.UserMessage("How are you?"),
		entities.AssistantMessage("Ready to interview."),
	}, messages)
}

func TestAppendAndSaveBuildsOnStoredState(t *testing.T) {
	conv, _ := newFileConversation(t)
	ctx := context.Background()

	stale, err := conv.Load(ctx)
	require.NoError(t, err)

	// Another turn lands between this caller's read and its write.
	require.NoError(t, conv.AppendAndSave(ctx, entities.UserMessage("first"), entities.AssistantMessage("one")))
	require.NoError(t, conv.AppendAndSave(ctx, entities.UserMessage("second"), entities.AssistantMessage("two")))

	messages, err := conv.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, messages, len(stale)+4)
	assert.Equal(t, "first", messages[1].Content)
	assert.Equal(t, "second", messages[3].Content)
}

func TestAppendAndSaveSerializesWriters(t *testing.T) {
	conv, _ := newFileConversation(t)
	ctx := context.Background()

	const turns = 20
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, conv.AppendAndSave(ctx, entities.UserMessage("q"), entities.AssistantMessage("a")))
		}()
	}
	wg.Wait()

	messages, err := conv.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, messages, 1+2*turns, "no turn may be lost to a racing writer")
}

func TestAppendAndSaveRejectsUnknownRole(t *testing.T) {
	conv, _ := newFileConversation(t)

	err := conv.AppendAndSave(context.Background(), entities.Message{Role: "agent", Content: "x"})
	assert.ErrorIs(t, err, errs.ErrStorageWrite)
}

type failingRepository struct {
	readErr  error
	writeErr error
}

func (f *failingRepository) Read(context.Context) ([]entities.Message, error) {
	return nil, f.readErr
}

func (f *failingRepository) Write(context.Context, []entities.Message) error {
	return f.writeErr
}

func (f *failingRepository) Close() error { return nil }

func TestAppendAndSaveWriteFailure(t *testing.T) {
	cause := errors.New("disk full")
	conv := NewConversationService(&failingRepository{writeErr: cause}, "prompt", newTestLogger())

	err := conv.AppendAndSave(context.Background(), entities.UserMessage("Hello"))
	assert.ErrorIs(t, err, errs.ErrStorageWrite)
	assert.ErrorIs(t, err, cause)
}

func TestAppendAndSaveReadFailure(t *testing.T) {
	conv := NewConversationService(&failingRepository{readErr: errors.New("connection refused")}, "prompt", newTestLogger())

	err := conv.AppendAndSave(context.Background(), entities.UserMessage("Hello"))
	assert.ErrorIs(t, err, errs.ErrStorageRead)
}
