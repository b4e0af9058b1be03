package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"lexchat/internal/types"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		user_id TEXT NOT NULL,
		id TEXT NOT NULL,
		position INTEGER NOT NULL,
		payload TEXT NOT NULL,
		PRIMARY KEY (user_id, id)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		PRIMARY KEY (user_id, session_id)
	)`,
	`CREATE TABLE IF NOT EXISTS app_state (
		user_id TEXT PRIMARY KEY,
		payload TEXT NOT NULL
	)`,
}

type sqliteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(path string) (Repository, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("repository db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "creating cache dir")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)
	_, _ = db.Exec("PRAGMA busy_timeout = 5000;")
	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "creating cache tables")
		}
	}
	return &sqliteRepository{db: db}, nil
}

func (r *sqliteRepository) Sessions() SessionStore {
	return sqliteSessionStore{db: r.db}
}

func (r *sqliteRepository) Messages() MessageStore {
	return sqliteMessageStore{db: r.db}
}

func (r *sqliteRepository) AppState() AppStateStore {
	return sqliteAppStateStore{db: r.db}
}

func (r *sqliteRepository) Backend() string {
	return RepositoryBackendSQLite
}

func (r *sqliteRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

type sqliteSessionStore struct {
	db *sql.DB
}

func (s sqliteSessionStore) List(ctx context.Context, userID string) ([]*types.ChatSession, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM sessions
		WHERE user_id = ?
		ORDER BY position ASC
	`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	defer rows.Close()

	var out []*types.ChatSession
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.Wrap(err, "scanning session row")
		}
		session := &types.ChatSession{}
		if err := json.Unmarshal([]byte(payload), session); err != nil {
			return nil, errors.Wrap(err, "unmarshaling session")
		}
		out = append(out, session)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating session rows")
	}
	return out, nil
}

func (s sqliteSessionStore) Replace(ctx context.Context, userID string, sessions []*types.ChatSession) error {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		return errors.Wrap(err, "clearing sessions")
	}
	position := 0
	for _, session := range sessions {
		normalized, err := normalizeSession(session)
		if err != nil {
			continue
		}
		if err := putSession(ctx, tx, userID, position, normalized); err != nil {
			return err
		}
		position++
	}
	return errors.Wrap(tx.Commit(), "committing sessions")
}

func (s sqliteSessionStore) Upsert(ctx context.Context, userID string, session *types.ChatSession) error {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return err
	}
	normalized, err := normalizeSession(session)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	position := 0
	err = tx.QueryRowContext(ctx, `SELECT position FROM sessions WHERE user_id = ? AND id = ?`, userID, normalized.ID).Scan(&position)
	if errors.Is(err, sql.ErrNoRows) {
		err = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position) + 1, 0) FROM sessions WHERE user_id = ?`, userID).Scan(&position)
	}
	if err != nil {
		return errors.Wrap(err, "resolving session position")
	}
	if err := putSession(ctx, tx, userID, position, normalized); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "committing session")
}

func (s sqliteSessionStore) Delete(ctx context.Context, userID, sessionID string) error {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return err
	}
	sessionID = strings.TrimSpace(sessionID)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ? AND id = ?`, userID, sessionID); err != nil {
		return errors.Wrap(err, "deleting session")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE user_id = ? AND session_id = ?`, userID, sessionID); err != nil {
		return errors.Wrap(err, "deleting session messages")
	}
	return errors.Wrap(tx.Commit(), "committing delete")
}

func putSession(ctx context.Context, tx *sql.Tx, userID string, position int, session *types.ChatSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "marshaling session")
	}
	_, err = tx.ExecContext(ctx, `
		REPLACE INTO sessions (user_id, id, position, payload)
		VALUES (?, ?, ?, ?)
	`, userID, session.ID, position, string(payload))
	return errors.Wrap(err, "writing session")
}

type sqliteMessageStore struct {
	db *sql.DB
}

func (s sqliteMessageStore) List(ctx context.Context, userID, sessionID string) ([]*types.Message, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	var payload string
	err = s.db.QueryRowContext(ctx, `
		SELECT payload FROM messages
		WHERE user_id = ? AND session_id = ?
	`, userID, strings.TrimSpace(sessionID)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	var out []*types.Message
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return nil, errors.Wrap(err, "unmarshaling messages")
	}
	return out, nil
}

func (s sqliteMessageStore) Replace(ctx context.Context, userID, sessionID string, messages []*types.Message) error {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return err
	}
	sessionID = strings.TrimSpace(sessionID)
	if len(messages) == 0 {
		_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE user_id = ? AND session_id = ?`, userID, sessionID)
		return errors.Wrap(err, "clearing messages")
	}
	payload, err := json.Marshal(types.CloneMessages(messages))
	if err != nil {
		return errors.Wrap(err, "marshaling messages")
	}
	_, err = s.db.ExecContext(ctx, `
		REPLACE INTO messages (user_id, session_id, payload)
		VALUES (?, ?, ?)
	`, userID, sessionID, string(payload))
	return errors.Wrap(err, "writing messages")
}

type sqliteAppStateStore struct {
	db *sql.DB
}

func (s sqliteAppStateStore) Load(ctx context.Context, userID string) (*types.AppState, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	state := &types.AppState{UserID: userID}
	var payload string
	err = s.db.QueryRowContext(ctx, `SELECT payload FROM app_state WHERE user_id = ?`, userID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "querying app state")
	}
	if err := json.Unmarshal([]byte(payload), state); err != nil {
		return nil, errors.Wrap(err, "unmarshaling app state")
	}
	return state, nil
}

func (s sqliteAppStateStore) Save(ctx context.Context, state *types.AppState) error {
	if state == nil {
		return errors.New("state is required")
	}
	userID, err := normalizeUserID(state.UserID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "marshaling app state")
	}
	_, err = s.db.ExecContext(ctx, `REPLACE INTO app_state (user_id, payload) VALUES (?, ?)`, userID, string(payload))
	return errors.Wrap(err, "writing app state")
}

func (s sqliteAppStateStore) Clear(ctx context.Context, userID string) error {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM app_state WHERE user_id = ?`, userID)
	return errors.Wrap(err, "clearing app state")
}
