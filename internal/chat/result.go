package chat

import (
	"errors"
	"io"

	"lexchat/internal/types"
)

var (
	ErrNoSession     = errors.New("no session selected")
	ErrEmptyQuery    = errors.New("query is empty")
	ErrSendInFlight  = errors.New("a send is already in flight")
	ErrEmptyTitle    = errors.New("title is empty")
	ErrNothingToOpen = errors.New("upload has no content")
)

type SendOutcome int

const (
	// SendSkipped means nothing happened: the query was empty or another
	// send was still pending.
	SendSkipped SendOutcome = iota
	SendSent
	// SendRolledBack means the server refused the query for quota reasons
	// and the optimistic user message was removed.
	SendRolledBack
	// SendFailed means an ordinary failure. The user message stays visible.
	SendFailed
)

func (o SendOutcome) String() string {
	switch o {
	case SendSkipped:
		return "skipped"
	case SendSent:
		return "sent"
	case SendRolledBack:
		return "rolled_back"
	case SendFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type SendResult struct {
	Outcome   SendOutcome
	SessionID string
	// Reply is the assistant message appended on SendSent.
	Reply     *types.Message
	RateLimit *types.RateLimitInfo
	Err       error
}

// Upload is one file of an upload submission. Open is called only when the
// file's turn comes, so a batch holds at most one open file.
type Upload struct {
	FileName    string
	DisplayName string
	Description string
	Open        func() (io.ReadCloser, error)
}

type UploadResult struct {
	FileName string
	Document *types.UploadedDocument
	Err      error
}
