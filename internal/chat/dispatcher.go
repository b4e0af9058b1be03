package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lexchat/internal/logging"
	"lexchat/internal/ratelimit"
	"lexchat/internal/types"
)

// SendText sends query in the current session, creating a session first
// when none is selected.
//
// Only one send runs at a time: a call made while another is pending
// returns SendSkipped without touching the Store. The user's message is
// inserted before the request unless an identical user message was inserted
// within the dedup window. A quota refusal removes the inserted message
// again; an ordinary failure leaves it visible.
func (e *Engine) SendText(ctx context.Context, query string) SendResult {
	query = strings.TrimSpace(query)
	if query == "" {
		return SendResult{Outcome: SendSkipped, Err: ErrEmptyQuery}
	}
	if !e.sendSlot.TryAcquire(1) {
		e.logger.Debug("send dropped while another is pending")
		return SendResult{Outcome: SendSkipped, Err: ErrSendInFlight}
	}
	defer e.sendSlot.Release(1)

	var (
		sessionID  string
		generation uint64
		epoch      uint64
	)
	e.store.read(func(st *storeState) {
		sessionID = st.currentSessionID
	})
	if sessionID == "" {
		session, err := e.CreateSession(ctx, "")
		if err != nil {
			return SendResult{Outcome: SendFailed, Err: err}
		}
		sessionID = session.ID
	}

	now := e.now().UTC()
	optimistic := &types.Message{
		ID:        e.newLocalID(),
		Content:   query,
		Sender:    types.SenderUser,
		Timestamp: now,
		Kind:      types.MessageKindText,
	}
	var (
		firstMessage bool
		inserted     bool
	)
	e.store.mutate(func(st *storeState) {
		generation = st.selection
		epoch = st.epoch
		// Until the selected session's history lands its length is unknown,
		// so the title refresh runs.
		firstMessage = st.transcriptOf != sessionID || len(st.messages) == 0
		if st.currentSessionID == sessionID && !hasRecentDuplicate(st.messages, query, now, e.dedupWindow) {
			copied := *optimistic
			st.messages = append(st.messages, &copied)
			inserted = true
		}
		st.sending = true
		st.errMsg = ""
		st.rateLimit = nil
	})
	if !inserted {
		e.logger.Debug("duplicate user message not inserted", logging.F("session_id", sessionID))
	}

	reply, err := e.api.SendMessage(ctx, sessionID, query, e.userType)
	if err != nil {
		return e.finishFailedSend(ctx, sessionID, epoch, optimistic.ID, inserted, err)
	}

	assistant := &types.Message{
		ID:        e.newLocalID(),
		Content:   reply.Response,
		Sender:    types.SenderAssistant,
		Timestamp: e.now().UTC(),
		Kind:      types.MessageKindText,
		Sources:   reply.Sources,
	}
	committed := e.store.commit(func(st *storeState) bool {
		return st.epoch == epoch
	}, func(st *storeState) {
		st.sending = false
		if st.selection == generation && st.currentSessionID == sessionID {
			copied := *assistant
			st.messages = append(st.messages, &copied)
		}
	})
	if committed {
		e.cacheTranscript(ctx, sessionID)
	}
	if firstMessage {
		// The server titles a session after its first turn.
		if _, err := e.ListSessions(ctx); err != nil {
			e.logger.Debug("title refresh failed", logging.F("session_id", sessionID), logging.F("error", err))
		}
	}
	return SendResult{Outcome: SendSent, SessionID: sessionID, Reply: assistant}
}

func (e *Engine) finishFailedSend(ctx context.Context, sessionID string, epoch uint64, optimisticID string, inserted bool, err error) SendResult {
	info, limited := ratelimit.Classify(err)
	e.store.commit(func(st *storeState) bool {
		return st.epoch == epoch
	}, func(st *storeState) {
		st.sending = false
		if limited {
			st.rateLimit = info
			if inserted {
				st.removeMessage(optimisticID)
			}
			return
		}
		st.errMsg = errorText(err)
	})
	if limited {
		e.logger.Info("send refused by quota",
			logging.F("session_id", sessionID),
			logging.F("kind", string(info.Kind)),
			logging.F("current_usage", info.CurrentUsage),
			logging.F("daily_limit", info.DailyLimit),
		)
		return SendResult{Outcome: SendRolledBack, SessionID: sessionID, RateLimit: info, Err: err}
	}
	e.logger.Info("send failed", logging.F("session_id", sessionID), logging.F("error", err))
	e.cacheTranscript(ctx, sessionID)
	return SendResult{Outcome: SendFailed, SessionID: sessionID, Err: err}
}

// hasRecentDuplicate reports whether messages holds a user message with the
// same content stamped within window of now.
func hasRecentDuplicate(messages []*types.Message, content string, now time.Time, window time.Duration) bool {
	if window <= 0 {
		return false
	}
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg == nil || msg.Sender != types.SenderUser || msg.Content != content {
			continue
		}
		delta := now.Sub(msg.Timestamp)
		if delta < 0 {
			delta = -delta
		}
		if delta <= window {
			return true
		}
	}
	return false
}

// UploadDocument uploads one file. It is UploadDocuments with a batch of one.
func (e *Engine) UploadDocument(ctx context.Context, upload Upload) UploadResult {
	return e.UploadDocuments(ctx, []Upload{upload})[0]
}

// UploadDocuments uploads files one after another. Error is cleared once when
// the batch starts; each failure overwrites it and does not stop the batch.
func (e *Engine) UploadDocuments(ctx context.Context, uploads []Upload) []UploadResult {
	results := make([]UploadResult, 0, len(uploads))
	if len(uploads) == 0 {
		return results
	}
	var epoch uint64
	e.store.mutate(func(st *storeState) {
		st.uploads++
		st.errMsg = ""
		epoch = st.epoch
	})
	defer e.store.mutate(func(st *storeState) {
		if st.epoch == epoch {
			st.uploads--
		}
	})

	for _, upload := range uploads {
		result := e.uploadOne(ctx, epoch, upload)
		if result.Err != nil {
			e.logger.Info("upload failed", logging.F("file", result.FileName), logging.F("error", result.Err))
			e.store.commit(func(st *storeState) bool {
				return st.epoch == epoch
			}, func(st *storeState) {
				st.errMsg = fmt.Sprintf("%s: %s", result.FileName, errorText(result.Err))
			})
		}
		results = append(results, result)
	}
	return results
}

func (e *Engine) uploadOne(ctx context.Context, epoch uint64, upload Upload) UploadResult {
	name := strings.TrimSpace(upload.DisplayName)
	if name == "" {
		name = baseName(upload.FileName)
	}
	result := UploadResult{FileName: name}
	if upload.Open == nil {
		result.Err = ErrNothingToOpen
		return result
	}

	var (
		sessionID  string
		generation uint64
	)
	e.store.read(func(st *storeState) {
		sessionID = st.currentSessionID
		generation = st.selection
	})

	body, err := upload.Open()
	if err != nil {
		result.Err = err
		return result
	}
	documentID, err := e.api.UploadDocument(ctx, types.DocumentUpload{
		FileName:    upload.FileName,
		DisplayName: name,
		Description: upload.Description,
		SessionID:   sessionID,
		Body:        body,
	})
	if cerr := body.Close(); cerr != nil {
		e.logger.Warn("closing upload body failed", logging.F("file", name), logging.F("error", cerr))
	}
	if err != nil {
		result.Err = err
		return result
	}

	now := e.now().UTC()
	doc := &types.UploadedDocument{ID: documentID, FileName: name, UploadedAt: now}
	result.Document = doc
	announcement := &types.Message{
		ID:        e.newLocalID(),
		Content:   fmt.Sprintf("Document %q uploaded successfully.", name),
		Sender:    types.SenderAssistant,
		Timestamp: now,
		Kind:      types.MessageKindDocument,
		FileName:  name,
	}
	committed := e.store.commit(func(st *storeState) bool {
		return st.epoch == epoch && st.selection == generation
	}, func(st *storeState) {
		copied := *doc
		st.uploadedDocuments = append(st.uploadedDocuments, &copied)
		st.messages = append(st.messages, announcement)
	})
	if !committed {
		e.logger.Debug("upload finished after session change", logging.F("file", name), logging.F("document_id", documentID))
		return result
	}
	e.cacheTranscript(ctx, sessionID)
	return result
}

func baseName(path string) string {
	path = strings.TrimSpace(path)
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		path = path[i+1:]
	}
	return path
}
