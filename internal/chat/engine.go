package chat

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"lexchat/internal/identity"
	"lexchat/internal/logging"
	"lexchat/internal/store"
	"lexchat/internal/types"
)

const DefaultDedupWindow = 2 * time.Second

// Engine runs the session lifecycle and message dispatch operations against
// one Store. It is safe for concurrent use; sends are single-flight.
type Engine struct {
	api         API
	store       *Store
	cache       store.Repository
	identity    identity.Provider
	logger      logging.Logger
	now         func() time.Time
	dedupWindow time.Duration
	userType    string

	sendSlot *semaphore.Weighted
	listing  singleflight.Group
}

type Option func(*Engine)

func WithLogger(logger logging.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithCache enables the local cache. It is keyed by the identity's user id
// and is inert without one.
func WithCache(repo store.Repository) Option {
	return func(e *Engine) {
		e.cache = repo
	}
}

func WithIdentity(id identity.Provider) Option {
	return func(e *Engine) {
		e.identity = id
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithDedupWindow(window time.Duration) Option {
	return func(e *Engine) {
		if window >= 0 {
			e.dedupWindow = window
		}
	}
}

func WithUserType(userType string) Option {
	return func(e *Engine) {
		e.userType = strings.TrimSpace(userType)
	}
}

// WithStore shares an existing Store instead of allocating one.
func WithStore(s *Store) Option {
	return func(e *Engine) {
		if s != nil {
			e.store = s
		}
	}
}

func NewEngine(api API, opts ...Option) *Engine {
	e := &Engine{
		api:         api,
		logger:      logging.Nop(),
		now:         time.Now,
		dedupWindow: DefaultDedupWindow,
		sendSlot:    semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.store == nil {
		e.store = NewStore()
	}
	return e
}

func (e *Engine) Store() *Store {
	return e.store
}

func (e *Engine) Snapshot() Snapshot {
	return e.store.Snapshot()
}

// Restore warm-starts the Store from the local cache for the current user
// and returns the restored active session id. Cache failures are logged and
// leave the Store as it was.
func (e *Engine) Restore(ctx context.Context) string {
	userID := e.cacheUserID()
	if userID == "" {
		return ""
	}
	var (
		sessions []*types.ChatSession
		state    *types.AppState
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sessions, err = e.cache.Sessions().List(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		state, err = e.cache.AppState().Load(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		e.logger.Warn("cache restore failed", logging.F("user_id", userID), logging.F("error", err))
		return ""
	}

	activeID := ""
	if state != nil {
		activeID = strings.TrimSpace(state.ActiveSessionID)
	}
	if activeID != "" && !containsSession(sessions, activeID) {
		activeID = ""
	}
	var messages []*types.Message
	if activeID != "" {
		cached, err := e.cache.Messages().List(ctx, userID, activeID)
		if err != nil {
			e.logger.Warn("cache restore failed", logging.F("session_id", activeID), logging.F("error", err))
		}
		messages = cached
	}

	e.store.commit(func(st *storeState) bool {
		return st.currentSessionID == "" && len(st.sessions) == 0
	}, func(st *storeState) {
		st.sessions = types.CloneSessions(sessions)
		if activeID != "" {
			st.selectLocked(activeID)
			st.messages = messages
			st.transcriptOf = activeID
		}
	})
	e.logger.Debug("cache restored",
		logging.F("user_id", userID),
		logging.F("sessions", len(sessions)),
		logging.F("session_id", activeID),
	)
	return activeID
}

// SignOut empties the Store and forgets the persisted selection.
func (e *Engine) SignOut(ctx context.Context) {
	if userID := e.cacheUserID(); userID != "" {
		if err := e.cache.AppState().Clear(ctx, userID); err != nil {
			e.logger.Warn("cache write failed", logging.F("error", err))
		}
	}
	e.store.Reset()
}

func (e *Engine) cacheUserID() string {
	if e.cache == nil || e.identity == nil {
		return ""
	}
	return strings.TrimSpace(e.identity.CurrentUserID())
}

// writeCache runs fn against the cache when one is configured. Failures are
// logged only.
func (e *Engine) writeCache(ctx context.Context, op string, fn func(repo store.Repository, userID string) error) {
	userID := e.cacheUserID()
	if userID == "" {
		return
	}
	if err := fn(e.cache, userID); err != nil {
		e.logger.Warn("cache write failed", logging.F("op", op), logging.F("error", err))
	}
}

func (e *Engine) persistActive(ctx context.Context, sessionID string) {
	e.writeCache(ctx, "app_state", func(repo store.Repository, userID string) error {
		return repo.AppState().Save(ctx, &types.AppState{UserID: userID, ActiveSessionID: sessionID})
	})
}

// cacheTranscript stores the current transcript of sessionID if it is
// still selected.
func (e *Engine) cacheTranscript(ctx context.Context, sessionID string) {
	var messages []*types.Message
	current := false
	e.store.read(func(st *storeState) {
		if st.currentSessionID == sessionID {
			current = true
			messages = types.CloneMessages(st.messages)
		}
	})
	if !current || sessionID == "" {
		return
	}
	e.writeCache(ctx, "messages", func(repo store.Repository, userID string) error {
		return repo.Messages().Replace(ctx, userID, sessionID, messages)
	})
}

func (e *Engine) newLocalID() string {
	return types.LocalIDPrefix + ulid.Make().String()
}

func containsSession(sessions []*types.ChatSession, id string) bool {
	for _, session := range sessions {
		if session != nil && session.ID == id {
			return true
		}
	}
	return false
}
