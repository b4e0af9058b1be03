package store

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"lexchat/internal/types"
)

// fileCache is the on-disk document for one user.
type fileCache struct {
	Sessions []*types.ChatSession        `json:"sessions,omitempty"`
	Messages map[string][]*types.Message `json:"messages,omitempty"`
	AppState *types.AppState             `json:"app_state,omitempty"`
}

// fileRepository keeps one JSON document per user under dir. Every write
// rewrites that document atomically.
type fileRepository struct {
	dir string
	mu  sync.Mutex
}

func NewFileRepository(dir string) (Repository, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("repository dir is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "creating cache dir")
	}
	return &fileRepository{dir: dir}, nil
}

func (r *fileRepository) Sessions() SessionStore {
	return fileSessionStore{r}
}

func (r *fileRepository) Messages() MessageStore {
	return fileMessageStore{r}
}

func (r *fileRepository) AppState() AppStateStore {
	return fileAppStateStore{r}
}

func (r *fileRepository) Backend() string {
	return RepositoryBackendFile
}

func (r *fileRepository) Close() error {
	return nil
}

func (r *fileRepository) path(userID string) string {
	return filepath.Join(r.dir, url.PathEscape(userID)+".json")
}

func (r *fileRepository) load(userID string) (*fileCache, error) {
	return readCacheFile(r.path(userID))
}

func (r *fileRepository) update(userID string, fn func(*fileCache) error) error {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cache, err := r.load(userID)
	if err != nil {
		return err
	}
	if err := fn(cache); err != nil {
		return err
	}
	return writeCacheFile(r.path(userID), cache)
}

func (r *fileRepository) view(userID string) (*fileCache, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(userID)
}

type fileSessionStore struct{ r *fileRepository }

func (s fileSessionStore) List(ctx context.Context, userID string) ([]*types.ChatSession, error) {
	cache, err := s.r.view(userID)
	if err != nil {
		return nil, errors.Wrap(err, "listing cached sessions")
	}
	return cache.Sessions, nil
}

func (s fileSessionStore) Replace(ctx context.Context, userID string, sessions []*types.ChatSession) error {
	return errors.Wrap(s.r.update(userID, func(cache *fileCache) error {
		cache.Sessions = types.CloneSessions(sessions)
		return nil
	}), "replacing cached sessions")
}

func (s fileSessionStore) Upsert(ctx context.Context, userID string, session *types.ChatSession) error {
	normalized, err := normalizeSession(session)
	if err != nil {
		return err
	}
	return errors.Wrap(s.r.update(userID, func(cache *fileCache) error {
		cache.Sessions = upsertSession(cache.Sessions, normalized)
		return nil
	}), "upserting cached session")
}

func (s fileSessionStore) Delete(ctx context.Context, userID, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	return errors.Wrap(s.r.update(userID, func(cache *fileCache) error {
		cache.Sessions = removeSession(cache.Sessions, sessionID)
		delete(cache.Messages, sessionID)
		return nil
	}), "deleting cached session")
}

type fileMessageStore struct{ r *fileRepository }

func (s fileMessageStore) List(ctx context.Context, userID, sessionID string) ([]*types.Message, error) {
	cache, err := s.r.view(userID)
	if err != nil {
		return nil, errors.Wrap(err, "listing cached messages")
	}
	return cache.Messages[strings.TrimSpace(sessionID)], nil
}

func (s fileMessageStore) Replace(ctx context.Context, userID, sessionID string, messages []*types.Message) error {
	sessionID = strings.TrimSpace(sessionID)
	return errors.Wrap(s.r.update(userID, func(cache *fileCache) error {
		if len(messages) == 0 {
			delete(cache.Messages, sessionID)
			return nil
		}
		if cache.Messages == nil {
			cache.Messages = map[string][]*types.Message{}
		}
		cache.Messages[sessionID] = types.CloneMessages(messages)
		return nil
	}), "replacing cached messages")
}

type fileAppStateStore struct{ r *fileRepository }

func (s fileAppStateStore) Load(ctx context.Context, userID string) (*types.AppState, error) {
	cache, err := s.r.view(userID)
	if err != nil {
		return nil, errors.Wrap(err, "loading app state")
	}
	if cache.AppState == nil {
		return &types.AppState{UserID: strings.TrimSpace(userID)}, nil
	}
	return cache.AppState, nil
}

func (s fileAppStateStore) Save(ctx context.Context, state *types.AppState) error {
	if state == nil {
		return errors.New("state is required")
	}
	copied := *state
	return errors.Wrap(s.r.update(state.UserID, func(cache *fileCache) error {
		cache.AppState = &copied
		return nil
	}), "saving app state")
}

func (s fileAppStateStore) Clear(ctx context.Context, userID string) error {
	return errors.Wrap(s.r.update(userID, func(cache *fileCache) error {
		cache.AppState = nil
		return nil
	}), "clearing app state")
}
