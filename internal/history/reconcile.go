// Package history normalizes server chat history into the client's message
// list. The wire format moved from one record per turn ("conversation") to
// one record per side; both eras are accepted.
package history

import (
	"sort"

	"lexchat/internal/types"
)

const (
	userSuffix      = ":user"
	assistantSuffix = ":assistant"
	documentSuffix  = ":document"
)

// Reconcile expands records into messages sorted by timestamp. Ids derive
// from the record id and role, so reconciling the same records twice yields
// the same list. Unknown records are dropped, and a message whose id was
// already emitted is dropped in favor of the first one.
func Reconcile(records []types.HistoryRecord) []*types.Message {
	out := make([]*types.Message, 0, len(records)*2)
	seen := make(map[string]struct{}, len(records)*2)
	for _, record := range records {
		for _, msg := range expand(record) {
			if _, dup := seen[msg.ID]; dup {
				continue
			}
			seen[msg.ID] = struct{}{}
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func expand(record types.HistoryRecord) []*types.Message {
	switch r := record.(type) {
	case types.ConversationRecord:
		msgs := make([]*types.Message, 0, 2)
		if r.QueryText != "" {
			msgs = append(msgs, textMessage(r.ID+userSuffix, r.QueryText, types.SenderUser, r, nil))
		}
		if r.ResponseText != "" {
			msgs = append(msgs, textMessage(r.ID+assistantSuffix, r.ResponseText, types.SenderAssistant, r, r.Sources))
		}
		return msgs
	case types.UserQueryRecord:
		return []*types.Message{textMessage(r.ID+userSuffix, r.Text, types.SenderUser, r, nil)}
	case types.AssistantResponseRecord:
		return []*types.Message{textMessage(r.ID+assistantSuffix, r.Text, types.SenderAssistant, r, r.Sources)}
	case types.DocumentUploadRecord:
		return []*types.Message{{
			ID:        r.ID + documentSuffix,
			Content:   r.Text,
			Sender:    types.SenderAssistant,
			Timestamp: r.CreatedAt,
			Kind:      types.MessageKindDocument,
			FileName:  r.FileName,
		}}
	default:
		return nil
	}
}

func textMessage(id, content string, sender types.Sender, record types.HistoryRecord, sources []any) *types.Message {
	return &types.Message{
		ID:        id,
		Content:   content,
		Sender:    sender,
		Timestamp: record.RecordTime(),
		Kind:      types.MessageKindText,
		Sources:   sources,
	}
}
