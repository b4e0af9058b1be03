package history

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/tidwall/gjson"

	"lexchat/internal/types"
)

const (
	TypeConversation      = "conversation"
	TypeUserQuery         = "user_query"
	TypeAssistantResponse = "assistant_response"
	TypeDocumentUpload    = "document_upload"
)

var ErrMalformedHistory = errors.New("history payload is not a JSON list")

// Decode parses a history response body. It accepts a bare array or an
// object wrapping the array under "history", "messages" or "items".
func Decode(body []byte) ([]types.HistoryRecord, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrMalformedHistory
	}
	root := gjson.ParseBytes(body)
	list := root
	if !root.IsArray() {
		list = gjson.Result{}
		for _, key := range []string{"history", "messages", "items"} {
			if candidate := root.Get(key); candidate.IsArray() {
				list = candidate
				break
			}
		}
		if !list.IsArray() {
			return nil, ErrMalformedHistory
		}
	}
	records := make([]types.HistoryRecord, 0, len(list.Array()))
	list.ForEach(func(_, value gjson.Result) bool {
		if value.IsObject() {
			records = append(records, DecodeRecord(value))
		}
		return true
	})
	return records, nil
}

// DecodeRecord turns one raw record into its typed variant.
func DecodeRecord(raw gjson.Result) types.HistoryRecord {
	header := types.RecordHeader{
		ID:        recordID(raw),
		CreatedAt: types.ParseTimestamp(firstString(raw, "created_at", "timestamp")),
	}
	recordType := strings.ToLower(firstString(raw, "type", "message_type"))
	switch recordType {
	case TypeConversation:
		return types.ConversationRecord{
			RecordHeader: header,
			QueryText:    raw.Get("query_text").String(),
			ResponseText: raw.Get("response_text").String(),
			Sources:      sources(raw),
		}
	case TypeUserQuery:
		return types.UserQueryRecord{
			RecordHeader: header,
			Text:         recordText(raw, "query_text"),
		}
	case TypeAssistantResponse:
		return types.AssistantResponseRecord{
			RecordHeader: header,
			Text:         recordText(raw, "response_text"),
			Sources:      sources(raw),
		}
	case TypeDocumentUpload:
		return types.DocumentUploadRecord{
			RecordHeader: header,
			Text:         recordText(raw, "response_text"),
			FileName:     firstString(raw, "file_name", "metadata.file_name", "metadata.filename"),
		}
	default:
		return types.UnknownRecord{RecordHeader: header, Type: recordType}
	}
}

func recordText(raw gjson.Result, fallback string) string {
	if content := raw.Get("content"); content.Exists() {
		return content.String()
	}
	return raw.Get(fallback).String()
}

func sources(raw gjson.Result) []any {
	for _, path := range []string{"sources", "metadata.sources"} {
		if value := raw.Get(path); value.IsArray() {
			if list, ok := value.Value().([]any); ok && len(list) > 0 {
				return list
			}
		}
	}
	return nil
}

// recordID falls back to a content hash so id-less records still dedupe
// across refetches.
func recordID(raw gjson.Result) string {
	if id := strings.TrimSpace(raw.Get("id").String()); id != "" {
		return id
	}
	sum := sha256.Sum256([]byte(raw.Raw))
	return "h" + hex.EncodeToString(sum[:8])
}

func firstString(raw gjson.Result, paths ...string) string {
	for _, path := range paths {
		if value := strings.TrimSpace(raw.Get(path).String()); value != "" {
			return value
		}
	}
	return ""
}
