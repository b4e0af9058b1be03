package chat

import (
	"sync"

	"lexchat/internal/types"
)

// Snapshot is a copy of the client state at one instant. Callers own it.
type Snapshot struct {
	Messages          []*types.Message
	UploadedDocuments []*types.UploadedDocument
	Sessions          []*types.ChatSession
	CurrentSessionID  string

	Loading           bool
	Uploading         bool
	IsLoadingSessions bool
	IsDeletingSession bool
	IsClearingHistory bool

	Error     string
	RateLimit *types.RateLimitInfo
}

func (s Snapshot) CurrentSession() *types.ChatSession {
	for _, session := range s.Sessions {
		if session != nil && session.ID == s.CurrentSessionID {
			return session
		}
	}
	return nil
}

// storeState is the mutable state behind Snapshot. Counters back the busy
// flags because uploads and deletes may overlap.
type storeState struct {
	messages          []*types.Message
	uploadedDocuments []*types.UploadedDocument
	sessions          []*types.ChatSession
	currentSessionID  string

	// transcriptOf is the session messages were loaded for. It lags
	// currentSessionID while a history load is in flight.
	transcriptOf string

	sending  bool
	uploads  int
	listings int
	deletes  int
	clears   int

	errMsg    string
	rateLimit *types.RateLimitInfo

	// selection changes whenever currentSessionID is (re)assigned. Async
	// results compare it before committing.
	selection uint64
	// epoch changes on Reset so results started before a sign-out are dropped.
	epoch uint64
}

// Store is the single source of truth for client state. All mutation goes
// through the Engine; readers take Snapshots.
type Store struct {
	mu          sync.Mutex
	state       storeState
	subscribers map[int]chan struct{}
	nextSub     int
}

func NewStore() *Store {
	return &Store{subscribers: map[int]chan struct{}{}}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &s.state
	snap := Snapshot{
		Messages:          types.CloneMessages(st.messages),
		Sessions:          types.CloneSessions(st.sessions),
		CurrentSessionID:  st.currentSessionID,
		Loading:           st.sending,
		Uploading:         st.uploads > 0,
		IsLoadingSessions: st.listings > 0,
		IsDeletingSession: st.deletes > 0,
		IsClearingHistory: st.clears > 0,
		Error:             st.errMsg,
	}
	if st.uploadedDocuments != nil {
		snap.UploadedDocuments = make([]*types.UploadedDocument, 0, len(st.uploadedDocuments))
		for _, doc := range st.uploadedDocuments {
			copied := *doc
			snap.UploadedDocuments = append(snap.UploadedDocuments, &copied)
		}
	}
	if st.rateLimit != nil {
		info := *st.rateLimit
		snap.RateLimit = &info
	}
	return snap
}

// Subscribe returns a channel that receives a value after mutations. Sends
// never block: a subscriber that falls behind sees one pending signal.
// The returned func unsubscribes and closes the channel.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan struct{}, 1)
	s.subscribers[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subscribers, id)
			close(ch)
		})
	}
}

// DismissError clears both failure channels.
func (s *Store) DismissError() {
	s.mutate(func(st *storeState) {
		st.errMsg = ""
		st.rateLimit = nil
	})
}

// Reset empties the store, as on sign-out. In-flight results are dropped
// when they complete.
func (s *Store) Reset() {
	s.mutate(func(st *storeState) {
		epoch := st.epoch + 1
		selection := st.selection + 1
		*st = storeState{epoch: epoch, selection: selection}
	})
}

// mutate applies fn atomically and notifies subscribers.
func (s *Store) mutate(fn func(st *storeState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
	s.notifyLocked()
}

// commit applies fn only when ok reports the state is still the one the
// caller started from. It reports whether fn ran.
func (s *Store) commit(ok func(st *storeState) bool, fn func(st *storeState)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !ok(&s.state) {
		return false
	}
	fn(&s.state)
	s.notifyLocked()
	return true
}

func (s *Store) read(fn func(st *storeState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

func (s *Store) notifyLocked() {
	for _, ch := range s.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// selectLocked makes id current. Messages are kept until a history load
// replaces them; the per-session document list is not.
func (st *storeState) selectLocked(id string) uint64 {
	if st.currentSessionID != id {
		st.uploadedDocuments = nil
	}
	st.currentSessionID = id
	st.selection++
	return st.selection
}

func (st *storeState) removeMessage(id string) bool {
	for i, msg := range st.messages {
		if msg != nil && msg.ID == id {
			st.messages = append(st.messages[:i:i], st.messages[i+1:]...)
			return true
		}
	}
	return false
}
