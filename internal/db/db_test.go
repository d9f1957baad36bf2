package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RichardoC/neurosci-ai/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sampleConversations() []models.Conversation {
	created := time.Date(2026, 3, 1, 9, 30, 0, 123000000, time.UTC)
	return []models.Conversation{
		{
			ID:        "c2",
			Title:     "Social interactions",
			CreatedAt: created.Add(time.Hour),
			UpdatedAt: created.Add(2 * time.Hour),
			IsStarred: true,
			Messages: []models.Message{
				{
					Role:      models.RoleUser,
					Content:   "Sent attachments",
					Timestamp: created.Add(time.Hour),
					Attachments: []models.Attachment{
						{Name: "trial.csv", Type: "text/csv", Size: 1536, URL: "attachment:1"},
					},
				},
				{
					Role:      models.RoleAssistant,
					Content:   "I see trial.csv.",
					Timestamp: created.Add(time.Hour + time.Second),
				},
			},
		},
		{
			ID:        "c1",
			Title:     models.DefaultTitle,
			CreatedAt: created,
			UpdatedAt: created,
			Messages:  []models.Message{},
		},
	}
}

func repositories(t *testing.T) map[string]ConversationRepository {
	t.Helper()
	dir := t.TempDir()
	logger := zap.NewNop()

	sqlite, err := NewSQLite(filepath.Join(dir, "chats.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]ConversationRepository{
		"sqlite": sqlite,
		"json":   NewFile(filepath.Join(dir, "nested", "chats.json"), logger),
		"memory": NewMemory(logger),
	}
}

func TestRepositoryEmptyLoad(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			convs, err := repo.Load(context.Background())
			require.NoError(t, err)
			assert.NotNil(t, convs)
			assert.Empty(t, convs)
		})
	}
}

func TestRepositoryRoundTrip(t *testing.T) {
	want := sampleConversations()

	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.Save(ctx, want))

			got, err := repo.Load(ctx)
			require.NoError(t, err)
			require.Len(t, got, len(want))

			for i := range want {
				assert.Equal(t, want[i].ID, got[i].ID)
				assert.Equal(t, want[i].Title, got[i].Title)
				assert.Equal(t, want[i].IsStarred, got[i].IsStarred)
				assert.True(t, want[i].CreatedAt.Equal(got[i].CreatedAt))
				assert.True(t, want[i].UpdatedAt.Equal(got[i].UpdatedAt))
				require.Len(t, got[i].Messages, len(want[i].Messages))
				for j := range want[i].Messages {
					w, g := want[i].Messages[j], got[i].Messages[j]
					assert.Equal(t, w.Role, g.Role)
					assert.Equal(t, w.Content, g.Content)
					assert.Equal(t, w.Attachments, g.Attachments)
					assert.True(t, w.Timestamp.Equal(g.Timestamp))
				}
			}
		})
	}
}

func TestRepositorySaveOverwrites(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.Save(ctx, sampleConversations()))
			require.NoError(t, repo.Save(ctx, sampleConversations()[1:]))

			got, err := repo.Load(ctx)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "c1", got[0].ID)
		})
	}
}

func TestDecodeRevivesBrowserDates(t *testing.T) {
	raw := `[{"id":"a","title":"t","messages":[{"role":"user","content":"x","timestamp":"2025-05-01T10:00:00.000Z"}],"createdAt":"2025-05-01T09:59:59.500Z","updatedAt":"2025-05-01T10:00:00.000Z"}]`

	convs, err := decode([]byte(raw))
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, time.Date(2025, 5, 1, 9, 59, 59, 500000000, time.UTC), convs[0].CreatedAt.UTC())
	assert.Equal(t, 10, convs[0].Messages[0].Timestamp.Hour())
}

func TestDecodeMissingMessages(t *testing.T) {
	convs, err := decode([]byte(`[{"id":"a","title":"t","createdAt":"2025-05-01T09:59:59Z","updatedAt":"2025-05-01T09:59:59Z"}]`))
	require.NoError(t, err)
	assert.NotNil(t, convs[0].Messages)
}

func TestLoadKeepsUnknownRoles(t *testing.T) {
	raw := `[
		{"id":"a","title":"Gait","messages":[{"role":"system","content":"be brief","timestamp":"2025-05-01T10:00:00.000Z"},{"role":"user","content":"hi","timestamp":"2025-05-01T10:00:01.000Z"}],"createdAt":"2025-05-01T10:00:00.000Z","updatedAt":"2025-05-01T10:00:01.000Z"},
		{"id":"b","title":"Sleep","messages":[],"createdAt":"2025-05-01T09:00:00.000Z","updatedAt":"2025-05-01T09:00:00.000Z"}
	]`
	repo := NewMemory(zap.NewNop())
	repo.SetRaw([]byte(raw))

	convs, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 2)
	require.Len(t, convs[0].Messages, 2)
	assert.Equal(t, models.Role("system"), convs[0].Messages[0].Role)
	assert.Equal(t, "be brief", convs[0].Messages[0].Content)
	assert.Equal(t, "b", convs[1].ID)
}

func TestLoadUnparsableFailsClosed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"garbage", "not json"},
		{"wrong shape", `{"id":"a"}`},
		{"bad date", `[{"id":"a","createdAt":"yesterday"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMemory(zap.NewNop())
			repo.SetRaw([]byte(tt.raw))

			convs, err := repo.Load(context.Background())
			require.NoError(t, err)
			assert.Empty(t, convs)
		})
	}
}

func TestFileRepositoryCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chats.json")
	require.NoError(t, os.WriteFile(path, []byte("{{{"), 0o644))

	convs, err := NewFile(path, zap.NewNop()).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestFileRepositoryLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	repo := NewFile(filepath.Join(dir, "chats.json"), zap.NewNop())
	require.NoError(t, repo.Save(context.Background(), sampleConversations()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "chats.json", entries[0].Name())
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	logger := zap.NewNop()

	repo, err := Open("json", filepath.Join(dir, "c.json"), logger)
	require.NoError(t, err)
	assert.IsType(t, &FileRepository{}, repo)

	repo, err = Open("memory", "", logger)
	require.NoError(t, err)
	assert.IsType(t, &MemoryRepository{}, repo)

	repo, err = Open("sqlite", filepath.Join(dir, "c.db"), logger)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteRepository{}, repo)
	require.NoError(t, repo.Close())

	_, err = Open("postgres", "", logger)
	assert.Error(t, err)

	_, err = Open("sqlite", "", logger)
	assert.Error(t, err)
}
