package types

import (
	"io"
	"time"
)

// UploadedDocument is client-local metadata about a file uploaded into the
// current session. It is a convenience cache, not authoritative storage.
type UploadedDocument struct {
	ID         string    `json:"id"`
	FileName   string    `json:"file_name"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// DocumentUpload is one file submitted to the Chat API. SessionID is optional.
type DocumentUpload struct {
	FileName    string
	DisplayName string
	Description string
	SessionID   string
	Body        io.Reader
}
