package chat

import (
	"context"
	"strings"

	"lexchat/internal/history"
	"lexchat/internal/logging"
	"lexchat/internal/store"
	"lexchat/internal/types"
)

// ListSessions refreshes the session list. Concurrent calls share one
// request, which outlives the cancellation of any single caller. A failure
// keeps the previous list and does not set Error.
func (e *Engine) ListSessions(ctx context.Context) ([]*types.ChatSession, error) {
	ch := e.listing.DoChan("sessions", func() (any, error) {
		return e.listSessions(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return types.CloneSessions(res.Val.([]*types.ChatSession)), nil
	}
}

func (e *Engine) listSessions(ctx context.Context) ([]*types.ChatSession, error) {
	var epoch uint64
	e.store.mutate(func(st *storeState) {
		st.listings++
		epoch = st.epoch
	})
	defer e.store.mutate(func(st *storeState) {
		if st.epoch == epoch {
			st.listings--
		}
	})

	sessions, err := e.api.ListSessions(ctx)
	if err != nil {
		e.logger.Warn("list sessions failed", logging.F("error", err))
		return nil, err
	}
	committed := e.store.commit(func(st *storeState) bool {
		return st.epoch == epoch
	}, func(st *storeState) {
		st.sessions = types.CloneSessions(sessions)
	})
	if committed {
		e.writeCache(ctx, "sessions", func(repo store.Repository, userID string) error {
			return repo.Sessions().Replace(ctx, userID, sessions)
		})
	}
	return sessions, nil
}

// CreateSession creates a session, makes it current, and starts it with an
// empty transcript.
func (e *Engine) CreateSession(ctx context.Context, title string) (*types.ChatSession, error) {
	epoch := e.epoch()
	session, err := e.api.CreateSession(ctx, strings.TrimSpace(title))
	if err != nil {
		e.logger.Info("create session failed", logging.F("error", err))
		e.setError(epoch, err)
		return nil, err
	}
	committed := e.store.commit(func(st *storeState) bool {
		return st.epoch == epoch
	}, func(st *storeState) {
		copied := *session
		st.sessions = appendSession(st.sessions, &copied)
		st.selectLocked(session.ID)
		st.messages = nil
		st.transcriptOf = session.ID
	})
	if committed {
		e.writeCache(ctx, "sessions", func(repo store.Repository, userID string) error {
			return repo.Sessions().Upsert(ctx, userID, session)
		})
		e.persistActive(ctx, session.ID)
	}
	return session, nil
}

// SelectSession makes id current and loads its history. The visible
// transcript is kept until the load resolves. A load that resolves after
// another selection is discarded.
func (e *Engine) SelectSession(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrNoSession
	}
	var generation uint64
	e.store.mutate(func(st *storeState) {
		generation = st.selectLocked(id)
	})
	e.persistActive(ctx, id)
	e.showCachedTranscript(ctx, id, generation)

	records, err := e.api.GetHistory(ctx, id)
	if err != nil {
		e.logger.Info("history load failed", logging.F("session_id", id), logging.F("error", err))
		e.store.commit(func(st *storeState) bool {
			return st.selection == generation
		}, func(st *storeState) {
			st.errMsg = errorText(err)
		})
		return err
	}
	messages := history.Reconcile(records)
	committed := e.store.commit(func(st *storeState) bool {
		return st.selection == generation && st.currentSessionID == id
	}, func(st *storeState) {
		st.messages = messages
		st.transcriptOf = id
	})
	if !committed {
		e.logger.Debug("discarding stale history", logging.F("session_id", id))
		return nil
	}
	e.writeCache(ctx, "messages", func(repo store.Repository, userID string) error {
		return repo.Messages().Replace(ctx, userID, id, messages)
	})
	return nil
}

// showCachedTranscript fills the transcript from the cache while the history
// request is in flight.
func (e *Engine) showCachedTranscript(ctx context.Context, id string, generation uint64) {
	userID := e.cacheUserID()
	if userID == "" {
		return
	}
	cached, err := e.cache.Messages().List(ctx, userID, id)
	if err != nil {
		e.logger.Warn("cache read failed", logging.F("session_id", id), logging.F("error", err))
		return
	}
	if len(cached) == 0 {
		return
	}
	e.store.commit(func(st *storeState) bool {
		return st.selection == generation
	}, func(st *storeState) {
		st.messages = cached
		st.transcriptOf = id
	})
}

// DeleteSession deletes a session. Deleting the current session also clears
// the selection and the transcript.
func (e *Engine) DeleteSession(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrNoSession
	}
	var epoch uint64
	e.store.mutate(func(st *storeState) {
		st.deletes++
		epoch = st.epoch
	})
	err := e.api.DeleteSession(ctx, id)

	wasCurrent := false
	e.store.mutate(func(st *storeState) {
		if st.epoch != epoch {
			return
		}
		st.deletes--
		if err != nil {
			st.errMsg = errorText(err)
			return
		}
		st.sessions = removeSession(st.sessions, id)
		if st.currentSessionID == id {
			wasCurrent = true
			st.selectLocked("")
			st.messages = nil
			st.transcriptOf = ""
		}
	})
	if err != nil {
		e.logger.Info("delete session failed", logging.F("session_id", id), logging.F("error", err))
		return err
	}
	e.writeCache(ctx, "delete", func(repo store.Repository, userID string) error {
		return repo.Sessions().Delete(ctx, userID, id)
	})
	if wasCurrent {
		e.persistActive(ctx, "")
	}
	return nil
}

// ClearHistory clears a session's history on the server. The transcript is
// emptied only if id is still current when the call returns.
func (e *Engine) ClearHistory(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrNoSession
	}
	var epoch uint64
	e.store.mutate(func(st *storeState) {
		st.clears++
		epoch = st.epoch
	})
	err := e.api.ClearHistory(ctx, id)

	cleared := false
	e.store.mutate(func(st *storeState) {
		if st.epoch != epoch {
			return
		}
		st.clears--
		if err != nil {
			st.errMsg = errorText(err)
			return
		}
		if st.currentSessionID == id {
			cleared = true
			st.messages = nil
		}
	})
	if err != nil {
		e.logger.Info("clear history failed", logging.F("session_id", id), logging.F("error", err))
		return err
	}
	if !cleared {
		e.logger.Debug("history cleared for a session no longer current", logging.F("session_id", id))
	}
	e.writeCache(ctx, "messages", func(repo store.Repository, userID string) error {
		return repo.Messages().Replace(ctx, userID, id, nil)
	})
	return nil
}

// RenameSession renames a session and patches its title in place with the
// title the server reports.
func (e *Engine) RenameSession(ctx context.Context, id, title string) (string, error) {
	id = strings.TrimSpace(id)
	title = strings.TrimSpace(title)
	if id == "" {
		return "", ErrNoSession
	}
	epoch := e.epoch()
	if title == "" {
		e.setError(epoch, ErrEmptyTitle)
		return "", ErrEmptyTitle
	}
	renamed, err := e.api.RenameSession(ctx, id, title)
	if err != nil {
		e.logger.Info("rename session failed", logging.F("session_id", id), logging.F("error", err))
		e.setError(epoch, err)
		return "", err
	}
	if strings.TrimSpace(renamed) == "" {
		renamed = title
	}
	var patched *types.ChatSession
	e.store.commit(func(st *storeState) bool {
		return st.epoch == epoch
	}, func(st *storeState) {
		for _, session := range st.sessions {
			if session != nil && session.ID == id {
				session.Title = renamed
				copied := *session
				patched = &copied
			}
		}
	})
	if patched != nil {
		e.writeCache(ctx, "sessions", func(repo store.Repository, userID string) error {
			return repo.Sessions().Upsert(ctx, userID, patched)
		})
	}
	return renamed, nil
}

func (e *Engine) epoch() uint64 {
	var epoch uint64
	e.store.read(func(st *storeState) {
		epoch = st.epoch
	})
	return epoch
}

func (e *Engine) setError(epoch uint64, err error) {
	e.store.commit(func(st *storeState) bool {
		return st.epoch == epoch
	}, func(st *storeState) {
		st.errMsg = errorText(err)
	})
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func appendSession(list []*types.ChatSession, session *types.ChatSession) []*types.ChatSession {
	for i, existing := range list {
		if existing != nil && existing.ID == session.ID {
			list[i] = session
			return list
		}
	}
	return append(list, session)
}

func removeSession(list []*types.ChatSession, id string) []*types.ChatSession {
	out := make([]*types.ChatSession, 0, len(list))
	for _, session := range list {
		if session != nil && session.ID != id {
			out = append(out, session)
		}
	}
	return out
}
