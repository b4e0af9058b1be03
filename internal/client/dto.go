package client

type CreateSessionRequest struct {
	Title string `json:"title,omitempty"`
}

type RenameSessionRequest struct {
	Title string `json:"title"`
}

type SendMessageRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
	UserType  string `json:"user_type,omitempty"`
}

type SendMessageResponse struct {
	Response string `json:"response"`
	Sources  []any  `json:"sources,omitempty"`
}
