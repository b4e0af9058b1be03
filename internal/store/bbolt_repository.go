package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"lexchat/internal/types"
)

var (
	bucketAppState = []byte("app_state")
	bucketSessions = []byte("sessions")
	bucketMessages = []byte("messages")
)

type bboltRepository struct {
	db       *bolt.DB
	sessions SessionStore
	messages MessageStore
	appState AppStateStore
}

func NewBboltRepository(path string) (Repository, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("repository db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "creating cache dir")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "opening bbolt cache")
	}
	if err := initBboltSchema(db); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "initializing bbolt cache")
	}
	return &bboltRepository{
		db:       db,
		sessions: &bboltSessionStore{db: db},
		messages: &bboltMessageStore{db: db},
		appState: &bboltAppStateStore{db: db},
	}, nil
}

func (r *bboltRepository) Sessions() SessionStore {
	return r.sessions
}

func (r *bboltRepository) Messages() MessageStore {
	return r.messages
}

func (r *bboltRepository) AppState() AppStateStore {
	return r.appState
}

func (r *bboltRepository) Backend() string {
	return RepositoryBackendBbolt
}

func (r *bboltRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func initBboltSchema(db *bolt.DB) error {
	return db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketAppState, bucketSessions, bucketMessages} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
}

// Values are JSON documents: one session list per user, one transcript per
// (user, session) pair.
type bboltSessionStore struct {
	db *bolt.DB
	mu sync.Mutex
}

func (s *bboltSessionStore) List(ctx context.Context, userID string) ([]*types.ChatSession, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	var out []*types.ChatSession
	err = s.db.View(func(tx *bolt.Tx) error {
		list, err := readSessionList(tx, userID)
		out = list
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing cached sessions")
	}
	return out, nil
}

func (s *bboltSessionStore) Replace(ctx context.Context, userID string, sessions []*types.ChatSession) error {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Wrap(s.db.Update(func(tx *bolt.Tx) error {
		return writeSessionList(tx, userID, types.CloneSessions(sessions))
	}), "replacing cached sessions")
}

func (s *bboltSessionStore) Upsert(ctx context.Context, userID string, session *types.ChatSession) error {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return err
	}
	normalized, err := normalizeSession(session)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Wrap(s.db.Update(func(tx *bolt.Tx) error {
		list, err := readSessionList(tx, userID)
		if err != nil {
			return err
		}
		return writeSessionList(tx, userID, upsertSession(list, normalized))
	}), "upserting cached session")
}

func (s *bboltSessionStore) Delete(ctx context.Context, userID, sessionID string) error {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Wrap(s.db.Update(func(tx *bolt.Tx) error {
		list, err := readSessionList(tx, userID)
		if err != nil {
			return err
		}
		if err := writeSessionList(tx, userID, removeSession(list, strings.TrimSpace(sessionID))); err != nil {
			return err
		}
		b := tx.Bucket(bucketMessages)
		if b == nil {
			return errors.New("messages bucket missing")
		}
		return b.Delete(messagesKey(userID, sessionID))
	}), "deleting cached session")
}

func readSessionList(tx *bolt.Tx, userID string) ([]*types.ChatSession, error) {
	b := tx.Bucket(bucketSessions)
	if b == nil {
		return nil, nil
	}
	raw := b.Get([]byte(userID))
	if len(raw) == 0 {
		return nil, nil
	}
	var list []*types.ChatSession
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func writeSessionList(tx *bolt.Tx, userID string, list []*types.ChatSession) error {
	b := tx.Bucket(bucketSessions)
	if b == nil {
		return errors.New("sessions bucket missing")
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return b.Put([]byte(userID), raw)
}

type bboltMessageStore struct {
	db *bolt.DB
	mu sync.Mutex
}

func (s *bboltMessageStore) List(ctx context.Context, userID, sessionID string) ([]*types.Message, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	var out []*types.Message
	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMessages)
		if b == nil {
			return nil
		}
		raw := b.Get(messagesKey(userID, sessionID))
		if len(raw) == 0 {
			return nil
		}
		return json.Unmarshal(raw, &out)
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing cached messages")
	}
	return out, nil
}

func (s *bboltMessageStore) Replace(ctx context.Context, userID, sessionID string, messages []*types.Message) error {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(types.CloneMessages(messages))
	if err != nil {
		return errors.Wrap(err, "marshaling messages")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Wrap(s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMessages)
		if b == nil {
			return errors.New("messages bucket missing")
		}
		if len(messages) == 0 {
			return b.Delete(messagesKey(userID, sessionID))
		}
		return b.Put(messagesKey(userID, sessionID), raw)
	}), "replacing cached messages")
}

type bboltAppStateStore struct {
	db *bolt.DB
	mu sync.Mutex
}

func (s *bboltAppStateStore) Load(ctx context.Context, userID string) (*types.AppState, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	state := &types.AppState{UserID: userID}
	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAppState)
		if b == nil {
			return nil
		}
		raw := b.Get([]byte(userID))
		if len(raw) == 0 {
			return nil
		}
		return json.Unmarshal(raw, state)
	})
	if err != nil {
		return nil, errors.Wrap(err, "loading app state")
	}
	return state, nil
}

func (s *bboltAppStateStore) Save(ctx context.Context, state *types.AppState) error {
	if state == nil {
		return errors.New("state is required")
	}
	userID, err := normalizeUserID(state.UserID)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "marshaling app state")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Wrap(s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAppState)
		if b == nil {
			return errors.New("app state bucket missing")
		}
		return b.Put([]byte(userID), raw)
	}), "saving app state")
}

func (s *bboltAppStateStore) Clear(ctx context.Context, userID string) error {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Wrap(s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAppState)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(userID))
	}), "clearing app state")
}
