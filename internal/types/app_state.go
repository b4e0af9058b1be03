package types

// AppState is the small slice of client state persisted across runs.
type AppState struct {
	ActiveSessionID string `json:"active_session_id"`
	UserID          string `json:"user_id,omitempty"`
}
