// Package chat is the session and message orchestration engine: a Store
// holding one consistent snapshot of client state, and an Engine whose
// lifecycle and dispatch operations mutate it around calls to a remote
// Chat API.
//
// Every remote failure is caught inside the Engine and recorded in the
// Store: generic failures in Snapshot.Error, quota failures in
// Snapshot.RateLimit. Operations also return the error so that
// programmatic callers can set exit codes.
package chat

import (
	"context"

	"lexchat/internal/types"
)

// API is the remote Chat API the engine drives. *client.Client satisfies it.
type API interface {
	CreateSession(ctx context.Context, title string) (*types.ChatSession, error)
	ListSessions(ctx context.Context) ([]*types.ChatSession, error)
	GetHistory(ctx context.Context, sessionID string) ([]types.HistoryRecord, error)
	SendMessage(ctx context.Context, sessionID, query, userType string) (*types.Reply, error)
	UploadDocument(ctx context.Context, doc types.DocumentUpload) (string, error)
	DeleteSession(ctx context.Context, sessionID string) error
	ClearHistory(ctx context.Context, sessionID string) error
	RenameSession(ctx context.Context, sessionID, title string) (string, error)
}
