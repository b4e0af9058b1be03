package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexchat/internal/types"
)

func openTestRepositories(t *testing.T) map[string]Repository {
	t.Helper()
	dir := t.TempDir()
	repos := map[string]Repository{}
	for backend, path := range map[string]string{
		RepositoryBackendBbolt:  filepath.Join(dir, "cache.db"),
		RepositoryBackendSQLite: filepath.Join(dir, "cache.sqlite"),
		RepositoryBackendFile:   filepath.Join(dir, "cache"),
	} {
		repo, err := OpenRepository(path, backend)
		require.NoError(t, err, backend)
		require.Equal(t, backend, repo.Backend())
		t.Cleanup(func() { _ = repo.Close() })
		repos[backend] = repo
	}
	return repos
}

func TestRepositorySessionsKeepServerOrder(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	for backend, repo := range openTestRepositories(t) {
		t.Run(backend, func(t *testing.T) {
			sessions := []*types.ChatSession{
				{ID: "s2", Title: "Newer", CreatedAt: created.Add(time.Hour)},
				{ID: "s1", Title: "Older", CreatedAt: created},
			}
			require.NoError(t, repo.Sessions().Replace(ctx, "u1", sessions))
			require.NoError(t, repo.Sessions().Upsert(ctx, "u1", &types.ChatSession{ID: "s3", Title: "Third"}))
			require.NoError(t, repo.Sessions().Upsert(ctx, "u1", &types.ChatSession{ID: "s1", Title: "Renamed", CreatedAt: created}))

			list, err := repo.Sessions().List(ctx, "u1")
			require.NoError(t, err)
			require.Len(t, list, 3)
			assert.Equal(t, []string{"s2", "s1", "s3"}, []string{list[0].ID, list[1].ID, list[2].ID})
			assert.Equal(t, "Renamed", list[1].Title)
			assert.True(t, list[1].CreatedAt.Equal(created))

			other, err := repo.Sessions().List(ctx, "u2")
			require.NoError(t, err)
			assert.Empty(t, other)
		})
	}
}

func TestRepositoryDeleteSessionDropsTranscript(t *testing.T) {
	ctx := context.Background()
	for backend, repo := range openTestRepositories(t) {
		t.Run(backend, func(t *testing.T) {
			require.NoError(t, repo.Sessions().Replace(ctx, "u1", []*types.ChatSession{{ID: "s1"}, {ID: "s2"}}))
			messages := []*types.Message{
				{ID: "r1:user", Content: "Q", Sender: types.SenderUser, Kind: types.MessageKindText},
				{ID: "r1:assistant", Content: "A", Sender: types.SenderAssistant, Kind: types.MessageKindText, Sources: []any{"lease.pdf"}},
			}
			require.NoError(t, repo.Messages().Replace(ctx, "u1", "s1", messages))

			cached, err := repo.Messages().List(ctx, "u1", "s1")
			require.NoError(t, err)
			require.Len(t, cached, 2)
			assert.Equal(t, "A", cached[1].Content)
			assert.Equal(t, []any{"lease.pdf"}, cached[1].Sources)

			require.NoError(t, repo.Sessions().Delete(ctx, "u1", "s1"))
			list, err := repo.Sessions().List(ctx, "u1")
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, "s2", list[0].ID)

			cached, err = repo.Messages().List(ctx, "u1", "s1")
			require.NoError(t, err)
			assert.Empty(t, cached)
		})
	}
}

func TestRepositoryReplaceEmptyTranscriptClears(t *testing.T) {
	ctx := context.Background()
	for backend, repo := range openTestRepositories(t) {
		t.Run(backend, func(t *testing.T) {
			require.NoError(t, repo.Messages().Replace(ctx, "u1", "s1", []*types.Message{{ID: "m1", Content: "x"}}))
			require.NoError(t, repo.Messages().Replace(ctx, "u1", "s1", nil))
			cached, err := repo.Messages().List(ctx, "u1", "s1")
			require.NoError(t, err)
			assert.Empty(t, cached)
		})
	}
}

func TestRepositoryAppStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	for backend, repo := range openTestRepositories(t) {
		t.Run(backend, func(t *testing.T) {
			state, err := repo.AppState().Load(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, "", state.ActiveSessionID)
			assert.Equal(t, "u1", state.UserID)

			state.ActiveSessionID = "s1"
			require.NoError(t, repo.AppState().Save(ctx, state))

			loaded, err := repo.AppState().Load(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, "s1", loaded.ActiveSessionID)

			require.NoError(t, repo.AppState().Clear(ctx, "u1"))
			loaded, err = repo.AppState().Load(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, "", loaded.ActiveSessionID)
		})
	}
}

func TestRepositoryRequiresUserID(t *testing.T) {
	ctx := context.Background()
	for backend, repo := range openTestRepositories(t) {
		t.Run(backend, func(t *testing.T) {
			_, err := repo.Sessions().List(ctx, " ")
			assert.ErrorIs(t, err, ErrUserRequired)
			err = repo.AppState().Save(ctx, &types.AppState{ActiveSessionID: "s1"})
			assert.ErrorIs(t, err, ErrUserRequired)
		})
	}
}

func TestBboltRepositoryPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")
	repo, err := NewBboltRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.Sessions().Replace(ctx, "u1", []*types.ChatSession{{ID: "s1", Title: "Lease"}}))
	require.NoError(t, repo.Close())

	reopened, err := NewBboltRepository(path)
	require.NoError(t, err)
	defer reopened.Close()
	list, err := reopened.Sessions().List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Lease", list[0].Title)
}

func TestOpenRepositoryRejectsUnknownBackend(t *testing.T) {
	_, err := OpenRepository(filepath.Join(t.TempDir(), "x"), "redis")
	require.Error(t, err)
}
