package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexchat/internal/types"
)

func TestStoreSnapshotIsACopy(t *testing.T) {
	s := NewStore()
	s.mutate(func(st *storeState) {
		st.messages = []*types.Message{{ID: "m1", Content: "original"}}
		st.rateLimit = &types.RateLimitInfo{DailyLimit: 10}
	})
	snap := s.Snapshot()
	snap.Messages[0].Content = "changed"
	snap.RateLimit.DailyLimit = 99

	again := s.Snapshot()
	assert.Equal(t, "original", again.Messages[0].Content)
	assert.Equal(t, 10, again.RateLimit.DailyLimit)
}

func TestStoreSubscribeCoalesces(t *testing.T) {
	s := NewStore()
	ch, cancel := s.Subscribe()
	s.DismissError()
	s.DismissError()
	s.DismissError()

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("expected a change signal")
	}
	select {
	case <-ch:
		t.Fatalf("expected signals to coalesce")
	default:
	}

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
	s.DismissError()
}

func TestStoreDismissErrorAndReset(t *testing.T) {
	s := NewStore()
	s.mutate(func(st *storeState) {
		st.errMsg = "boom"
		st.rateLimit = &types.RateLimitInfo{}
		st.currentSessionID = "s1"
		st.sessions = []*types.ChatSession{{ID: "s1"}}
	})
	s.DismissError()
	snap := s.Snapshot()
	assert.Empty(t, snap.Error)
	assert.Nil(t, snap.RateLimit)
	assert.Equal(t, "s1", snap.CurrentSessionID)

	var before uint64
	s.read(func(st *storeState) { before = st.epoch })
	s.Reset()
	snap = s.Snapshot()
	assert.Empty(t, snap.CurrentSessionID)
	assert.Empty(t, snap.Sessions)
	s.read(func(st *storeState) {
		require.Equal(t, before+1, st.epoch)
	})
}

func TestSendOutcomeString(t *testing.T) {
	assert.Equal(t, "rolled_back", SendRolledBack.String())
	assert.Equal(t, "skipped", SendSkipped.String())
}
