package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"lexchat/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeAPI is an in-memory Chat API. Gates block a call until closed so
// tests can order concurrent operations.
type fakeAPI struct {
	mu sync.Mutex

	sessions  []*types.ChatSession
	histories map[string][]types.HistoryRecord
	nextID    int

	historyGates   map[string]chan struct{}
	historyStarted chan string
	historyErrs    map[string]error
	sendGate       chan struct{}
	sendStarted    chan string
	listGate       chan struct{}
	listStarted    chan struct{}

	listErr    error
	createErr  error
	sendErr    error
	deleteErr  error
	clearErr   error
	renameErr  error
	uploadErrs map[string]error

	listCalls int
	sends     []string
	uploads   []types.DocumentUpload
	reply     string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		histories:    map[string][]types.HistoryRecord{},
		historyGates: map[string]chan struct{}{},
		historyErrs:  map[string]error{},
		uploadErrs:   map[string]error{},
		reply:        "Here is the answer.",
	}
}

func (f *fakeAPI) CreateSession(ctx context.Context, title string) (*types.ChatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	if title == "" {
		title = "Chat 2024-05-01 09:00"
	}
	session := &types.ChatSession{ID: fmt.Sprintf("new-%d", f.nextID), Title: title}
	f.sessions = append(f.sessions, session)
	copied := *session
	return &copied, nil
}

func (f *fakeAPI) ListSessions(ctx context.Context) ([]*types.ChatSession, error) {
	f.mu.Lock()
	gate, started := f.listGate, f.listStarted
	f.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return types.CloneSessions(f.sessions), nil
}

func (f *fakeAPI) GetHistory(ctx context.Context, sessionID string) ([]types.HistoryRecord, error) {
	f.mu.Lock()
	gate, started := f.historyGates[sessionID], f.historyStarted
	f.mu.Unlock()
	if started != nil {
		started <- sessionID
	}
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.historyErrs[sessionID]; err != nil {
		return nil, err
	}
	return f.histories[sessionID], nil
}

func (f *fakeAPI) SendMessage(ctx context.Context, sessionID, query, userType string) (*types.Reply, error) {
	f.mu.Lock()
	f.sends = append(f.sends, query)
	gate, started := f.sendGate, f.sendStarted
	f.mu.Unlock()
	if started != nil {
		started <- query
	}
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &types.Reply{Response: f.reply, Sources: []any{"lease.pdf"}}, nil
}

func (f *fakeAPI) UploadDocument(ctx context.Context, doc types.DocumentUpload) (string, error) {
	data, err := io.ReadAll(doc.Body)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, doc)
	if err := f.uploadErrs[doc.DisplayName]; err != nil {
		return "", err
	}
	return fmt.Sprintf("doc-%s-%d", doc.DisplayName, len(data)), nil
}

func (f *fakeAPI) DeleteSession(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	out := f.sessions[:0]
	for _, session := range f.sessions {
		if session.ID != sessionID {
			out = append(out, session)
		}
	}
	f.sessions = out
	return nil
}

func (f *fakeAPI) ClearHistory(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clearErr != nil {
		return f.clearErr
	}
	delete(f.histories, sessionID)
	return nil
}

func (f *fakeAPI) RenameSession(ctx context.Context, sessionID, title string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.renameErr != nil {
		return "", f.renameErr
	}
	return title, nil
}

func (f *fakeAPI) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

// quotaError carries structured quota data, like client.RateLimitError.
type quotaError struct {
	info types.RateLimitInfo
}

func (e *quotaError) Error() string                       { return "rate limited: " + e.info.Message }
func (e *quotaError) RateLimitInfo() types.RateLimitInfo { return e.info }

// statusError carries only an HTTP status, like client.APIError.
type statusError struct {
	status int
	msg    string
}

func (e *statusError) Error() string   { return e.msg }
func (e *statusError) HTTPStatus() int { return e.status }

var errBackendDown = errors.New("backend unavailable")

// stepClock returns a clock that advances by step on every call.
func stepClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := current
		current = current.Add(step)
		return now
	}
}

func conversation(id, query, response string, at time.Time) types.HistoryRecord {
	return types.ConversationRecord{
		RecordHeader: types.RecordHeader{ID: id, CreatedAt: at},
		QueryText:    query,
		ResponseText: response,
	}
}

func userContents(messages []*types.Message) []string {
	var out []string
	for _, msg := range messages {
		if msg.Sender == types.SenderUser {
			out = append(out, msg.Content)
		}
	}
	return out
}
