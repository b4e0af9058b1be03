package store

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"lexchat/internal/types"
)

const (
	RepositoryBackendFile   = "file"
	RepositoryBackendBbolt  = "bbolt"
	RepositoryBackendSQLite = "sqlite"
)

var ErrUserRequired = errors.New("user id is required")

// Repository is the local cache of server-held chat state, partitioned by
// user id. It is never authoritative.
type Repository interface {
	Sessions() SessionStore
	Messages() MessageStore
	AppState() AppStateStore
	Backend() string
	Close() error
}

// SessionStore keeps each user's session list in server order.
type SessionStore interface {
	List(ctx context.Context, userID string) ([]*types.ChatSession, error)
	Replace(ctx context.Context, userID string, sessions []*types.ChatSession) error
	Upsert(ctx context.Context, userID string, session *types.ChatSession) error
	// Delete removes the session and its cached transcript.
	Delete(ctx context.Context, userID, sessionID string) error
}

type MessageStore interface {
	List(ctx context.Context, userID, sessionID string) ([]*types.Message, error)
	Replace(ctx context.Context, userID, sessionID string, messages []*types.Message) error
}

type AppStateStore interface {
	Load(ctx context.Context, userID string) (*types.AppState, error)
	Save(ctx context.Context, state *types.AppState) error
	Clear(ctx context.Context, userID string) error
}

func OpenRepository(path, backend string) (Repository, error) {
	path = strings.TrimSpace(path)
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", RepositoryBackendBbolt:
		return NewBboltRepository(path)
	case RepositoryBackendSQLite:
		return NewSQLiteRepository(path)
	case RepositoryBackendFile:
		return NewFileRepository(path)
	default:
		return nil, errors.Errorf("unsupported repository backend: %s", backend)
	}
}

func normalizeUserID(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrUserRequired
	}
	return userID, nil
}

func normalizeSession(session *types.ChatSession) (*types.ChatSession, error) {
	if session == nil {
		return nil, errors.New("session is required")
	}
	copied := *session
	copied.ID = strings.TrimSpace(copied.ID)
	if copied.ID == "" {
		return nil, errors.New("session id is required")
	}
	return &copied, nil
}

// upsertSession replaces the entry with the same id in place, or appends.
func upsertSession(list []*types.ChatSession, session *types.ChatSession) []*types.ChatSession {
	for i, existing := range list {
		if existing != nil && existing.ID == session.ID {
			list[i] = session
			return list
		}
	}
	return append(list, session)
}

func removeSession(list []*types.ChatSession, sessionID string) []*types.ChatSession {
	out := list[:0]
	for _, existing := range list {
		if existing != nil && existing.ID != sessionID {
			out = append(out, existing)
		}
	}
	return out
}

func messagesKey(userID, sessionID string) []byte {
	return []byte(userID + "\x00" + strings.TrimSpace(sessionID))
}
