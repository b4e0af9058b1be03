package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"lexchat/internal/chat"
	"lexchat/internal/logging"
	"lexchat/internal/ratelimit"
)

const (
	maxSidebarWidth = 32
	inputHeight     = 3
	uploadCommand   = "/upload"
)

type storeChangedMsg struct{}

type opResultMsg struct {
	op     string
	status string
	err    error
}

type sendResultMsg struct {
	query  string
	result chat.SendResult
}

type uploadResultMsg struct {
	result chat.UploadResult
}

type copyResultMsg struct {
	method clipboardMethod
	err    error
}

// Model is the bubbletea model of the chat screen. All state it shows comes
// from Store snapshots; key presses become Engine calls run as commands.
type Model struct {
	ctx    context.Context
	engine *chat.Engine
	keys   *Keybindings
	logger logging.Logger

	changes     <-chan struct{}
	unsubscribe func()

	snap     chat.Snapshot
	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model

	width  int
	height int
	status string
	// pendingDelete holds the session id awaiting a second delete press.
	pendingDelete string
	renderedCount int
}

func NewModel(ctx context.Context, engine *chat.Engine, keys *Keybindings, logger logging.Logger) *Model {
	if ctx == nil {
		ctx = context.Background()
	}
	if keys == nil {
		keys = DefaultKeybindings()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	input := textarea.New()
	input.Placeholder = "Ask about your documents..."
	input.ShowLineNumbers = false
	input.SetHeight(inputHeight)
	input.CharLimit = 0
	input.KeyMap.InsertNewline.SetKeys("alt+enter")
	input.Focus()

	spin := spinner.New(spinner.WithSpinner(spinner.Dot))

	changes, unsubscribe := engine.Store().Subscribe()
	return &Model{
		ctx:         ctx,
		engine:      engine,
		keys:        keys,
		logger:      logger,
		changes:     changes,
		unsubscribe: unsubscribe,
		snap:        engine.Snapshot(),
		viewport:    viewport.New(0, 0),
		input:       input,
		spinner:     spin,
	}
}

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		waitForChange(m.changes),
		m.spinner.Tick,
		textarea.Blink,
		m.listCmd(),
	}
	if id := m.snap.CurrentSessionID; id != "" {
		cmds = append(cmds, m.selectCmd(id))
	}
	return tea.Batch(cmds...)
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return storeChangedMsg{}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refreshTranscript(true)
		return m, nil
	case storeChangedMsg:
		m.snap = m.engine.Snapshot()
		if m.pendingDelete != "" && m.pendingDelete != m.snap.CurrentSessionID {
			m.pendingDelete = ""
		}
		m.layout()
		m.refreshTranscript(false)
		return m, waitForChange(m.changes)
	case sendResultMsg:
		return m, m.handleSendResult(msg)
	case uploadResultMsg:
		if msg.result.Err == nil {
			m.status = fmt.Sprintf("Uploaded %s", msg.result.FileName)
		} else {
			m.status = ""
		}
		return m, nil
	case opResultMsg:
		if msg.err != nil {
			m.logger.Debug("ui operation failed", logging.F("op", msg.op), logging.F("error", msg.err))
			m.status = ""
			return m, nil
		}
		m.status = msg.status
		return m, nil
	case copyResultMsg:
		switch {
		case msg.err != nil:
			m.status = "Copy failed: " + msg.err.Error()
		case msg.method == clipboardMethodOSC52:
			m.status = "Copied reply (terminal clipboard)"
		default:
			m.status = "Copied reply"
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	command := m.keys.Command(msg)
	if command != KeyCommandDeleteSession {
		m.pendingDelete = ""
	}
	switch command {
	case KeyCommandQuit:
		m.unsubscribe()
		return m, tea.Quit
	case KeyCommandSend:
		return m, m.submit()
	case KeyCommandNewSession:
		m.status = ""
		return m, m.createCmd()
	case KeyCommandPrevSession, KeyCommandNextSession:
		delta := 1
		if command == KeyCommandPrevSession {
			delta = -1
		}
		id := adjacentSession(m.snap.Sessions, m.snap.CurrentSessionID, delta)
		if id == "" || id == m.snap.CurrentSessionID {
			return m, nil
		}
		return m, m.selectCmd(id)
	case KeyCommandDeleteSession:
		id := m.snap.CurrentSessionID
		if id == "" {
			return m, nil
		}
		if m.pendingDelete != id {
			m.pendingDelete = id
			m.status = fmt.Sprintf("Press %s again to delete %q", m.keys.KeyFor(KeyCommandDeleteSession), sessionLabel(m.snap.CurrentSession()))
			return m, nil
		}
		m.pendingDelete = ""
		return m, m.deleteCmd(id)
	case KeyCommandClearHistory:
		if id := m.snap.CurrentSessionID; id != "" {
			return m, m.clearCmd(id)
		}
		return m, nil
	case KeyCommandRefresh:
		return m, m.listCmd()
	case KeyCommandCopyReply:
		return m, copyCmd(lastAssistantReply(m.snap.Messages))
	case KeyCommandDismiss:
		m.status = ""
		m.engine.Store().DismissError()
		return m, nil
	}
	switch msg.String() {
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input, or uploads when it starts with /upload.
func (m *Model) submit() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return nil
	}
	if path, description, ok := parseUploadCommand(text); ok {
		m.input.Reset()
		m.status = ""
		return m.uploadCmd(path, description)
	}
	if m.snap.Loading {
		return nil
	}
	m.input.Reset()
	m.status = ""
	return m.sendCmd(text)
}

// parseUploadCommand splits "/upload <path> [description]".
func parseUploadCommand(text string) (path, description string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) < 2 || fields[0] != uploadCommand {
		return "", "", false
	}
	return fields[1], strings.Join(fields[2:], " "), true
}

func (m *Model) handleSendResult(msg sendResultMsg) tea.Cmd {
	switch msg.result.Outcome {
	case chat.SendRolledBack:
		// The query was taken back out of the transcript; keep it editable.
		if strings.TrimSpace(m.input.Value()) == "" {
			m.input.SetValue(msg.query)
		}
		m.status = ""
	case chat.SendSkipped:
		if errors.Is(msg.result.Err, chat.ErrSendInFlight) {
			m.status = "A reply is still pending"
		}
	default:
		m.status = ""
	}
	return nil
}

func (m *Model) sendCmd(query string) tea.Cmd {
	ctx, engine := m.ctx, m.engine
	return func() tea.Msg {
		return sendResultMsg{query: query, result: engine.SendText(ctx, query)}
	}
}

func (m *Model) uploadCmd(path, description string) tea.Cmd {
	ctx, engine := m.ctx, m.engine
	return func() tea.Msg {
		result := engine.UploadDocument(ctx, chat.Upload{
			FileName:    path,
			Description: description,
			Open: func() (io.ReadCloser, error) {
				return os.Open(path)
			},
		})
		return uploadResultMsg{result: result}
	}
}

func (m *Model) listCmd() tea.Cmd {
	ctx, engine := m.ctx, m.engine
	return func() tea.Msg {
		_, err := engine.ListSessions(ctx)
		return opResultMsg{op: "list", err: err}
	}
}

func (m *Model) createCmd() tea.Cmd {
	ctx, engine := m.ctx, m.engine
	return func() tea.Msg {
		_, err := engine.CreateSession(ctx, "")
		return opResultMsg{op: "create", status: "Started a new session", err: err}
	}
}

func (m *Model) selectCmd(id string) tea.Cmd {
	ctx, engine := m.ctx, m.engine
	return func() tea.Msg {
		return opResultMsg{op: "select", err: engine.SelectSession(ctx, id)}
	}
}

func (m *Model) deleteCmd(id string) tea.Cmd {
	ctx, engine := m.ctx, m.engine
	return func() tea.Msg {
		return opResultMsg{op: "delete", status: "Session deleted", err: engine.DeleteSession(ctx, id)}
	}
}

func (m *Model) clearCmd(id string) tea.Cmd {
	ctx, engine := m.ctx, m.engine
	return func() tea.Msg {
		return opResultMsg{op: "clear", status: "History cleared", err: engine.ClearHistory(ctx, id)}
	}
}

func copyCmd(text string) tea.Cmd {
	return func() tea.Msg {
		if strings.TrimSpace(text) == "" {
			return copyResultMsg{err: errors.New("no reply to copy")}
		}
		method, err := copyTextToClipboard(text)
		return copyResultMsg{method: method, err: err}
	}
}

func (m *Model) sidebarWidth() int {
	w := m.width / 4
	if w > maxSidebarWidth {
		w = maxSidebarWidth
	}
	if w < 12 {
		w = 12
	}
	return w
}

func (m *Model) mainWidth() int {
	w := m.width - m.sidebarWidth() - 2
	if w < 20 {
		w = 20
	}
	return w
}

// chromeHeight counts the rows around the transcript: header, notices,
// status, input and help.
func (m *Model) chromeHeight() int {
	notices := len(renderNotices(m.snap, ratelimit.Summary(m.snap.RateLimit), m.mainWidth()))
	return 1 + notices + 1 + inputHeight + 1
}

func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	m.viewport.Width = m.mainWidth()
	h := m.height - m.chromeHeight()
	if h < 3 {
		h = 3
	}
	m.viewport.Height = h
	m.input.SetWidth(m.mainWidth())
}

func (m *Model) refreshTranscript(force bool) {
	if m.width == 0 {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(renderTranscript(m.snap.Messages, m.mainWidth()))
	if force || atBottom || len(m.snap.Messages) != m.renderedCount {
		m.viewport.GotoBottom()
	}
	m.renderedCount = len(m.snap.Messages)
}

func (m *Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	width := m.mainWidth()
	header := "No session selected"
	if session := m.snap.CurrentSession(); session != nil {
		header = sessionLabel(session)
	}
	rows := []string{sidebarTitleStyle.Render(header), m.viewport.View()}
	rows = append(rows, renderNotices(m.snap, ratelimit.Summary(m.snap.RateLimit), width)...)

	status := m.status
	if label := busyLabel(m.snap); label != "" {
		status = m.spinner.View() + " " + label
	} else if n := len(m.snap.UploadedDocuments); n > 0 && status == "" {
		status = fmt.Sprintf("%d document(s) uploaded in this session", n)
	}
	rows = append(rows, statusStyle.Render(status), m.input.View(), helpStyle.Render(m.helpLine()))

	main := lipgloss.NewStyle().Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	sidebar := renderSidebar(m.snap, m.sidebarWidth(), m.height)
	return joinColumns(sidebar, " "+main)
}

func (m *Model) helpLine() string {
	parts := []string{
		m.keys.KeyFor(KeyCommandSend) + " send",
		m.keys.KeyFor(KeyCommandNewSession) + " new",
		m.keys.KeyFor(KeyCommandPrevSession) + "/" + m.keys.KeyFor(KeyCommandNextSession) + " switch",
		m.keys.KeyFor(KeyCommandDeleteSession) + " delete",
		m.keys.KeyFor(KeyCommandClearHistory) + " clear",
		m.keys.KeyFor(KeyCommandCopyReply) + " copy",
		m.keys.KeyFor(KeyCommandQuit) + " quit",
	}
	return strings.Join(parts, "  ")
}
