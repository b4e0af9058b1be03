package types

import (
	"strings"
	"time"
)

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

type MessageKind string

const (
	MessageKindText     MessageKind = "text"
	MessageKindDocument MessageKind = "document"
)

// LocalIDPrefix marks ids generated on the client for optimistic messages.
// Server-assigned ids never carry it.
const LocalIDPrefix = "local-"

// Message is one entry of a session transcript. Sender is fixed at creation.
type Message struct {
	ID        string      `json:"id"`
	Content   string      `json:"content"`
	Sender    Sender      `json:"sender"`
	Timestamp time.Time   `json:"timestamp"`
	Kind      MessageKind `json:"kind"`
	FileName  string      `json:"file_name,omitempty"`
	Sources   []any       `json:"sources,omitempty"`
}

func (m *Message) IsLocal() bool {
	if m == nil {
		return false
	}
	return strings.HasPrefix(m.ID, LocalIDPrefix)
}

func CloneMessages(in []*Message) []*Message {
	if in == nil {
		return nil
	}
	out := make([]*Message, 0, len(in))
	for _, msg := range in {
		if msg == nil {
			continue
		}
		copied := *msg
		if msg.Sources != nil {
			copied.Sources = append([]any(nil), msg.Sources...)
		}
		out = append(out, &copied)
	}
	return out
}

// Reply is the assistant's answer to a query.
type Reply struct {
	Response string `json:"response"`
	Sources  []any  `json:"sources,omitempty"`
}
