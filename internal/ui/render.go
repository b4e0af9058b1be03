package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"

	"lexchat/internal/chat"
	"lexchat/internal/types"
)

const untitledSession = "New chat"

func sessionLabel(session *types.ChatSession) string {
	if session == nil {
		return ""
	}
	title := strings.TrimSpace(session.Title)
	if title == "" {
		return untitledSession
	}
	return title
}

// renderSidebar lists sessions in server order, marking the current one.
func renderSidebar(snap chat.Snapshot, width, height int) string {
	if width < 4 {
		width = 4
	}
	lines := []string{sidebarTitleStyle.Render("Sessions")}
	if snap.IsLoadingSessions {
		lines = append(lines, statusStyle.Render("refreshing..."))
	}
	if len(snap.Sessions) == 0 {
		lines = append(lines, statusStyle.Render("no sessions"))
	}
	for _, session := range snap.Sessions {
		if session == nil {
			continue
		}
		marker := "  "
		style := sessionStyle
		if session.ID == snap.CurrentSessionID {
			marker = "> "
			style = currentSessionStyle
		}
		// One column goes to the sidebar's right padding.
		avail := width - runewidth.StringWidth(marker) - 1
		label := runewidth.Truncate(sessionLabel(session), avail, "…")
		lines = append(lines, style.Render(marker+label))
	}
	if height > 0 && len(lines) > height {
		lines = lines[:height]
	}
	return sidebarStyle.Width(width).Height(height).Render(strings.Join(lines, "\n"))
}

// renderTranscript renders messages for a column of the given width.
func renderTranscript(messages []*types.Message, width int) string {
	if len(messages) == 0 {
		return statusStyle.Render("No messages yet. Ask a question or upload a document with /upload <path>.")
	}
	blocks := make([]string, 0, len(messages))
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		blocks = append(blocks, renderMessage(msg, width))
	}
	return strings.Join(blocks, "\n\n")
}

func renderMessage(msg *types.Message, width int) string {
	stamp := ""
	if !msg.Timestamp.IsZero() {
		stamp = " " + timestampStyle.Render(msg.Timestamp.Local().Format("15:04"))
	}
	switch {
	case msg.Kind == types.MessageKindDocument:
		text := msg.Content
		if text == "" {
			text = fmt.Sprintf("Document %q uploaded.", msg.FileName)
		}
		return documentStyle.Render(xansi.Hardwrap("[document] "+text, width, true)) + stamp
	case msg.Sender == types.SenderUser:
		body := renderMarkdown(escapeMarkdown(msg.Content), width)
		return userLabelStyle.Render("You") + stamp + "\n" + body
	default:
		body := renderMarkdown(msg.Content, width)
		out := assistantLabelStyle.Render("Assistant") + stamp + "\n" + body
		if sources := sourceNames(msg.Sources); len(sources) > 0 {
			out += "\n" + sourcesStyle.Render(xansi.Hardwrap("Sources: "+strings.Join(sources, ", "), width, true))
		}
		return out
	}
}

// sourceNames flattens the loosely typed citation list the server returns.
func sourceNames(sources []any) []string {
	out := make([]string, 0, len(sources))
	for _, source := range sources {
		switch v := source.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				out = append(out, s)
			}
		case map[string]any:
			for _, key := range []string{"file_name", "filename", "title", "source", "id"} {
				if s, ok := v[key].(string); ok && strings.TrimSpace(s) != "" {
					out = append(out, strings.TrimSpace(s))
					break
				}
			}
		case nil:
		default:
			out = append(out, fmt.Sprint(v))
		}
	}
	return out
}

// lastAssistantReply returns the newest assistant text reply.
func lastAssistantReply(messages []*types.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg != nil && msg.Sender == types.SenderAssistant && msg.Kind != types.MessageKindDocument {
			return msg.Content
		}
	}
	return ""
}

// renderNotices returns the rate-limit banner and the error line, either of
// which may be empty.
func renderNotices(snap chat.Snapshot, banner string, width int) []string {
	var out []string
	if banner != "" {
		out = append(out, bannerStyle.Width(width).Render(xansi.Truncate(banner, width-2, "…")))
	}
	if msg := strings.TrimSpace(snap.Error); msg != "" {
		out = append(out, errorStyle.Render(xansi.Truncate("Error: "+msg+" (esc to dismiss)", width, "…")))
	}
	return out
}

func busyLabel(snap chat.Snapshot) string {
	switch {
	case snap.Loading:
		return "Waiting for reply"
	case snap.Uploading:
		return "Uploading"
	case snap.IsDeletingSession:
		return "Deleting session"
	case snap.IsClearingHistory:
		return "Clearing history"
	default:
		return ""
	}
}

func joinColumns(left, right string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

// adjacentSession returns the id of the session delta steps away from the
// current one, wrapping around. With no current session it starts from the
// first or last entry.
func adjacentSession(sessions []*types.ChatSession, currentID string, delta int) string {
	ids := make([]string, 0, len(sessions))
	index := -1
	for _, session := range sessions {
		if session == nil {
			continue
		}
		if session.ID == currentID {
			index = len(ids)
		}
		ids = append(ids, session.ID)
	}
	if len(ids) == 0 {
		return ""
	}
	if index < 0 {
		if delta < 0 {
			return ids[len(ids)-1]
		}
		return ids[0]
	}
	next := ((index+delta)%len(ids) + len(ids)) % len(ids)
	return ids[next]
}

func escapeMarkdown(text string) string {
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = strings.ReplaceAll(line, "`", "\\`")
		trimmed := strings.TrimLeft(line, " \t")
		prefix := line[:len(line)-len(trimmed)]
		switch {
		case strings.HasPrefix(trimmed, "#"),
			strings.HasPrefix(trimmed, ">"),
			strings.HasPrefix(trimmed, "- "),
			strings.HasPrefix(trimmed, "* "),
			strings.HasPrefix(trimmed, "+ "),
			isNumberedList(trimmed):
			lines[i] = prefix + "\\" + trimmed
		default:
			lines[i] = line
		}
	}
	return strings.Join(lines, "\n")
}

func isNumberedList(text string) bool {
	dot := strings.IndexByte(text, '.')
	if dot <= 0 || dot+1 >= len(text) || text[dot+1] != ' ' {
		return false
	}
	for i := 0; i < dot; i++ {
		if text[i] < '0' || text[i] > '9' {
			return false
		}
	}
	return true
}
