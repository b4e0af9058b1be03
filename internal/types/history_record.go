package types

import "time"

// HistoryRecord is one server history entry, decoded once at the API
// boundary. The concrete types below are the only implementations.
type HistoryRecord interface {
	historyRecord()
	RecordID() string
	RecordTime() time.Time
}

type RecordHeader struct {
	ID        string
	CreatedAt time.Time
}

func (h RecordHeader) RecordID() string      { return h.ID }
func (h RecordHeader) RecordTime() time.Time { return h.CreatedAt }

// ConversationRecord is the legacy single-turn shape carrying both sides.
type ConversationRecord struct {
	RecordHeader
	QueryText    string
	ResponseText string
	Sources      []any
}

type UserQueryRecord struct {
	RecordHeader
	Text string
}

type AssistantResponseRecord struct {
	RecordHeader
	Text    string
	Sources []any
}

type DocumentUploadRecord struct {
	RecordHeader
	Text     string
	FileName string
}

// UnknownRecord keeps the raw type tag of records this client does not understand.
type UnknownRecord struct {
	RecordHeader
	Type string
}

func (ConversationRecord) historyRecord()      {}
func (UserQueryRecord) historyRecord()         {}
func (AssistantResponseRecord) historyRecord() {}
func (DocumentUploadRecord) historyRecord()    {}
func (UnknownRecord) historyRecord()           {}
