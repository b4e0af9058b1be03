package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"lexchat/internal/chat"
	"lexchat/internal/client"
	"lexchat/internal/identity"
	"lexchat/internal/store"
	"lexchat/internal/types"
	"lexchat/internal/ui"
)

type fakeChatAPI struct {
	mu sync.Mutex

	sessions  []*types.ChatSession
	histories map[string][]types.HistoryRecord

	sendErr   error
	deleteErr error

	listCalls   int
	created     []string
	renamed     map[string]string
	deleted     []string
	cleared     []string
	queries     []string
	uploadNames []string
}

func newFakeChatAPI() *fakeChatAPI {
	return &fakeChatAPI{
		sessions: []*types.ChatSession{
			{ID: "s1", Title: "Lease review", UpdatedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)},
			{ID: "s2", Title: "Employment contract"},
		},
		histories: map[string][]types.HistoryRecord{
			"s1": {types.ConversationRecord{
				RecordHeader: types.RecordHeader{ID: "r1", CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
				QueryText:    "How long is the lease?",
				ResponseText: "Five years.",
			}},
		},
		renamed: map[string]string{},
	}
}

func (f *fakeChatAPI) CreateSession(ctx context.Context, title string) (*types.ChatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, title)
	session := &types.ChatSession{ID: "new-1", Title: title}
	f.sessions = append(f.sessions, session)
	return session, nil
}

func (f *fakeChatAPI) ListSessions(ctx context.Context) ([]*types.ChatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return types.CloneSessions(f.sessions), nil
}

func (f *fakeChatAPI) GetHistory(ctx context.Context, sessionID string) ([]types.HistoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.histories[sessionID], nil
}

func (f *fakeChatAPI) SendMessage(ctx context.Context, sessionID, query, userType string) (*types.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, sessionID+":"+query)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &types.Reply{Response: "Reply to " + query, Sources: []any{"lease.pdf"}}, nil
}

func (f *fakeChatAPI) UploadDocument(ctx context.Context, doc types.DocumentUpload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadNames = append(f.uploadNames, doc.DisplayName)
	return "doc-" + doc.DisplayName, nil
}

func (f *fakeChatAPI) DeleteSession(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, sessionID)
	return nil
}

func (f *fakeChatAPI) ClearHistory(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, sessionID)
	return nil
}

func (f *fakeChatAPI) RenameSession(ctx context.Context, sessionID, title string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renamed[sessionID] = title
	return title, nil
}

func fixedRuntime(api chat.API, opts ...chat.Option) runtimeFactory {
	return func(io.Writer) (*chatRuntime, error) {
		return &chatRuntime{engine: chat.NewEngine(api, opts...)}, nil
	}
}

func TestSessionsCommandPrintsTable(t *testing.T) {
	stdout := &bytes.Buffer{}
	api := newFakeChatAPI()
	cmd := NewSessionsCommand(stdout, &bytes.Buffer{}, fixedRuntime(api))

	if err := cmd.Run(nil); err != nil {
		t.Fatalf("expected sessions to succeed, got err=%v", err)
	}
	out := stdout.String()
	if !strings.HasPrefix(out, "ID") || !strings.Contains(out, "TITLE") {
		t.Fatalf("expected table header, got %q", out)
	}
	for _, want := range []string{"s1", "Lease review", "s2", "Employment contract"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output %q", want, out)
		}
	}
	if api.listCalls != 1 {
		t.Fatalf("expected one list call, got %d", api.listCalls)
	}
}

func TestSessionsCommandCachedSkipsServer(t *testing.T) {
	repo, err := store.NewFileRepository(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatalf("NewFileRepository: %v", err)
	}
	ctx := context.Background()
	if err := repo.Sessions().Replace(ctx, "u1", []*types.ChatSession{{ID: "cached-1", Title: "From cache"}}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if err := repo.AppState().Save(ctx, &types.AppState{UserID: "u1", ActiveSessionID: "cached-1"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	stdout := &bytes.Buffer{}
	api := newFakeChatAPI()
	factory := fixedRuntime(api, chat.WithCache(repo), chat.WithIdentity(identity.Static{UserID: "u1"}))
	if err := NewSessionsCommand(stdout, &bytes.Buffer{}, factory).Run([]string{"--cached"}); err != nil {
		t.Fatalf("expected cached sessions to succeed, got err=%v", err)
	}
	if api.listCalls != 0 {
		t.Fatalf("expected no server call, got %d", api.listCalls)
	}
	line := ""
	for _, l := range strings.Split(stdout.String(), "\n") {
		if strings.HasPrefix(l, "cached-1") {
			line = l
		}
	}
	if line == "" || !strings.HasSuffix(strings.TrimSpace(line), "*") {
		t.Fatalf("expected cached session marked current, got %q", stdout.String())
	}
}

func TestNewSessionCommandPrintsID(t *testing.T) {
	stdout := &bytes.Buffer{}
	api := newFakeChatAPI()
	if err := NewNewSessionCommand(stdout, &bytes.Buffer{}, fixedRuntime(api)).Run([]string{"--title", "Due diligence"}); err != nil {
		t.Fatalf("expected new to succeed, got err=%v", err)
	}
	if strings.TrimSpace(stdout.String()) != "new-1" {
		t.Fatalf("unexpected output %q", stdout.String())
	}
	if len(api.created) != 1 || api.created[0] != "Due diligence" {
		t.Fatalf("unexpected create calls %#v", api.created)
	}
}

func TestRenameCommandJoinsTitleWords(t *testing.T) {
	stdout := &bytes.Buffer{}
	api := newFakeChatAPI()
	if err := NewRenameCommand(stdout, &bytes.Buffer{}, fixedRuntime(api)).Run([]string{"s1", "Office", "lease"}); err != nil {
		t.Fatalf("expected rename to succeed, got err=%v", err)
	}
	if api.renamed["s1"] != "Office lease" {
		t.Fatalf("unexpected rename %#v", api.renamed)
	}
	if strings.TrimSpace(stdout.String()) != "Office lease" {
		t.Fatalf("unexpected output %q", stdout.String())
	}
}

func TestRemoveCommandHonorsConfirmation(t *testing.T) {
	api := newFakeChatAPI()
	var asked []string
	declined := func(question string) (bool, error) {
		asked = append(asked, question)
		return false, nil
	}
	stdout := &bytes.Buffer{}
	if err := NewRemoveCommand(stdout, &bytes.Buffer{}, fixedRuntime(api), declined).Run([]string{"s1"}); err != nil {
		t.Fatalf("expected declined rm to succeed, got err=%v", err)
	}
	if len(asked) != 1 || !strings.Contains(asked[0], "s1") {
		t.Fatalf("expected one confirmation about s1, got %#v", asked)
	}
	if len(api.deleted) != 0 {
		t.Fatalf("expected no delete after decline, got %#v", api.deleted)
	}
	if strings.TrimSpace(stdout.String()) != "aborted" {
		t.Fatalf("unexpected output %q", stdout.String())
	}

	if err := NewRemoveCommand(&bytes.Buffer{}, &bytes.Buffer{}, fixedRuntime(api), declined).Run([]string{"--yes", "s1"}); err != nil {
		t.Fatalf("expected rm --yes to succeed, got err=%v", err)
	}
	if len(asked) != 1 {
		t.Fatalf("expected --yes to skip confirmation")
	}
	if len(api.deleted) != 1 || api.deleted[0] != "s1" {
		t.Fatalf("unexpected delete calls %#v", api.deleted)
	}
}

func TestRemoveCommandReturnsServerError(t *testing.T) {
	api := newFakeChatAPI()
	api.deleteErr = errors.New("session not found")
	err := NewRemoveCommand(&bytes.Buffer{}, &bytes.Buffer{}, fixedRuntime(api), nil).Run([]string{"-y", "missing"})
	if err == nil || !strings.Contains(err.Error(), "session not found") {
		t.Fatalf("expected server error, got %v", err)
	}
}

func TestClearCommandConfirmed(t *testing.T) {
	api := newFakeChatAPI()
	accept := func(string) (bool, error) { return true, nil }
	stdout := &bytes.Buffer{}
	if err := NewClearCommand(stdout, &bytes.Buffer{}, fixedRuntime(api), accept).Run([]string{"s2"}); err != nil {
		t.Fatalf("expected clear to succeed, got err=%v", err)
	}
	if len(api.cleared) != 1 || api.cleared[0] != "s2" {
		t.Fatalf("unexpected clear calls %#v", api.cleared)
	}
}

func TestHistoryCommandFormats(t *testing.T) {
	api := newFakeChatAPI()

	text := &bytes.Buffer{}
	if err := NewHistoryCommand(text, &bytes.Buffer{}, fixedRuntime(api)).Run([]string{"s1"}); err != nil {
		t.Fatalf("expected history to succeed, got err=%v", err)
	}
	if !strings.Contains(text.String(), "> How long is the lease?") || !strings.Contains(text.String(), "Five years.") {
		t.Fatalf("unexpected transcript %q", text.String())
	}

	raw := &bytes.Buffer{}
	if err := NewHistoryCommand(raw, &bytes.Buffer{}, fixedRuntime(api)).Run([]string{"s1", "--format", "json"}); err != nil {
		t.Fatalf("expected json history to succeed, got err=%v", err)
	}
	var messages []types.Message
	if err := json.Unmarshal(raw.Bytes(), &messages); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(messages) != 2 || messages[0].Sender != types.SenderUser || messages[1].Sender != types.SenderAssistant {
		t.Fatalf("unexpected messages %#v", messages)
	}

	yamlOut := &bytes.Buffer{}
	if err := NewHistoryCommand(yamlOut, &bytes.Buffer{}, fixedRuntime(api)).Run([]string{"s1", "--format", "yaml"}); err != nil {
		t.Fatalf("expected yaml history to succeed, got err=%v", err)
	}
	if !strings.Contains(yamlOut.String(), "content: Five years.") {
		t.Fatalf("unexpected yaml %q", yamlOut.String())
	}

	if err := NewHistoryCommand(&bytes.Buffer{}, &bytes.Buffer{}, fixedRuntime(api)).Run([]string{"s1", "--format", "xml"}); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestAskCommandPrintsReply(t *testing.T) {
	api := newFakeChatAPI()
	stdout := &bytes.Buffer{}
	if err := NewAskCommand(stdout, &bytes.Buffer{}, fixedRuntime(api)).Run([]string{"s1", "what", "is", "the", "rent?"}); err != nil {
		t.Fatalf("expected ask to succeed, got err=%v", err)
	}
	if len(api.queries) != 1 || api.queries[0] != "s1:what is the rent?" {
		t.Fatalf("unexpected queries %#v", api.queries)
	}
	out := stdout.String()
	if !strings.Contains(out, "Reply to what is the rent?") || !strings.Contains(out, "sources: lease.pdf") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestAskCommandNewSession(t *testing.T) {
	api := newFakeChatAPI()
	stderr := &bytes.Buffer{}
	if err := NewAskCommand(&bytes.Buffer{}, stderr, fixedRuntime(api)).Run([]string{"--new", "hello"}); err != nil {
		t.Fatalf("expected ask --new to succeed, got err=%v", err)
	}
	if len(api.created) != 1 {
		t.Fatalf("expected a session to be created, got %#v", api.created)
	}
	if len(api.queries) != 1 || api.queries[0] != "new-1:hello" {
		t.Fatalf("unexpected queries %#v", api.queries)
	}
	if !strings.Contains(stderr.String(), "session new-1") {
		t.Fatalf("expected new session id on stderr, got %q", stderr.String())
	}
}

func TestAskCommandRateLimitPrintsUpgradeHint(t *testing.T) {
	api := newFakeChatAPI()
	api.sendErr = &client.RateLimitError{StatusCode: 429, Info: types.RateLimitInfo{
		Kind:            types.RateLimitDailyLimitExceeded,
		CurrentUsage:    10,
		DailyLimit:      10,
		PlanDisplayName: "Free",
	}}
	stderr := &bytes.Buffer{}
	err := NewAskCommand(&bytes.Buffer{}, stderr, fixedRuntime(api)).Run([]string{"s1", "one", "more"})
	if !errors.Is(err, errRateLimited) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	out := stderr.String()
	if !strings.Contains(out, "10/10 messages used today") || !strings.Contains(out, "plan: Free") || !strings.Contains(out, "Upgrade your plan") {
		t.Fatalf("unexpected hint %q", out)
	}
}

func TestAskCommandRequiresQuery(t *testing.T) {
	if err := NewAskCommand(&bytes.Buffer{}, &bytes.Buffer{}, fixedRuntime(newFakeChatAPI())).Run([]string{"s1"}); err == nil {
		t.Fatalf("expected missing query error")
	}
}

func TestUploadCommandReportsEachFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "lease.pdf")
	if err := os.WriteFile(good, []byte("%PDF"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	missing := filepath.Join(dir, "missing.pdf")

	api := newFakeChatAPI()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	err := NewUploadCommand(stdout, stderr, fixedRuntime(api)).Run([]string{"s1", good, missing, "--description", "signed"})
	if err == nil || !strings.Contains(err.Error(), "1 of 2 uploads failed") {
		t.Fatalf("expected partial failure, got %v", err)
	}
	if !strings.Contains(stdout.String(), "uploaded lease.pdf (doc-lease.pdf)") {
		t.Fatalf("unexpected stdout %q", stdout.String())
	}
	if !strings.Contains(stderr.String(), "missing.pdf:") {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}
	if len(api.uploadNames) != 1 || api.uploadNames[0] != "lease.pdf" {
		t.Fatalf("unexpected uploads %#v", api.uploadNames)
	}
}

func TestUploadCommandNameNeedsSingleFile(t *testing.T) {
	err := NewUploadCommand(&bytes.Buffer{}, &bytes.Buffer{}, fixedRuntime(newFakeChatAPI())).Run([]string{"s1", "a.pdf", "b.pdf", "--name", "x"})
	if err == nil || !strings.Contains(err.Error(), "--name") {
		t.Fatalf("expected --name error, got %v", err)
	}
}

type scriptedPrompter struct {
	lines  []string
	closed bool
}

func (p *scriptedPrompter) Readline() (string, error) {
	if len(p.lines) == 0 {
		return "", io.EOF
	}
	line := p.lines[0]
	p.lines = p.lines[1:]
	return line, nil
}

func (p *scriptedPrompter) Close() error {
	p.closed = true
	return nil
}

func TestChatCommandREPL(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	api := newFakeChatAPI()
	prompter := &scriptedPrompter{lines: []string{"", "is it renewable?", "/rename Renewal", "/bogus", "/sessions", "/quit", "never sent"}}
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := NewChatCommand(stdout, stderr, fixedRuntime(api), func(string) (linePrompter, error) {
		return prompter, nil
	})

	if err := cmd.Run([]string{"s1"}); err != nil {
		t.Fatalf("expected chat to succeed, got err=%v", err)
	}
	out := stdout.String()
	for _, want := range []string{"session Lease review", "Five years.", "Reply to is it renewable?", "renamed to Renewal", "Employment contract"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if !strings.Contains(stderr.String(), "unknown command /bogus") {
		t.Fatalf("expected unknown command error, got %q", stderr.String())
	}
	if len(api.queries) != 1 || api.queries[0] != "s1:is it renewable?" {
		t.Fatalf("unexpected queries %#v", api.queries)
	}
	if !prompter.closed {
		t.Fatalf("expected prompter to be closed")
	}
}

func TestUICommandWiresEngineAndLogging(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	logged := false
	var gotOpts ui.Options
	var gotEngine *chat.Engine
	cmd := NewUICommand(&bytes.Buffer{}, fixedRuntime(newFakeChatAPI()),
		func(ctx context.Context, engine *chat.Engine, opts ui.Options) error {
			gotEngine = engine
			gotOpts = opts
			return nil
		},
		func() io.Writer {
			logged = true
			return io.Discard
		},
	)
	if err := cmd.Run(nil); err != nil {
		t.Fatalf("expected ui to succeed, got err=%v", err)
	}
	if !logged {
		t.Fatalf("expected UI logging to be configured")
	}
	if gotEngine == nil || gotOpts.Keybindings == nil {
		t.Fatalf("expected engine and keybindings, got %v %v", gotEngine, gotOpts.Keybindings)
	}
}

func TestSignOutCommandClearsRememberedSelection(t *testing.T) {
	repo, err := store.NewFileRepository(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatalf("NewFileRepository: %v", err)
	}
	ctx := context.Background()
	if err := repo.AppState().Save(ctx, &types.AppState{UserID: "u1", ActiveSessionID: "s1"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	factory := fixedRuntime(newFakeChatAPI(), chat.WithCache(repo), chat.WithIdentity(identity.Static{UserID: "u1"}))
	if err := NewSignOutCommand(&bytes.Buffer{}, &bytes.Buffer{}, factory).Run(nil); err != nil {
		t.Fatalf("expected signout to succeed, got err=%v", err)
	}
	state, err := repo.AppState().Load(ctx, "u1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state.ActiveSessionID != "" {
		t.Fatalf("expected cleared selection, got %q", state.ActiveSessionID)
	}
}

func TestConfigCommandDefaultFormats(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cases := []struct {
		format string
		want   []string
	}{
		{format: "json", want: []string{`"base_url": "http://127.0.0.1:8000"`, `"backend": "bbolt"`, `"ui.quit": "ctrl+c"`}},
		{format: "toml", want: []string{"[api]", "base_url = 'http://127.0.0.1:8000'", "dedup_window_ms = 2000"}},
		{format: "yaml", want: []string{"api:", "  base_url: http://127.0.0.1:8000", "token_configured: false"}},
	}
	for _, tc := range cases {
		stdout := &bytes.Buffer{}
		if err := NewConfigCommand(stdout, &bytes.Buffer{}).Run([]string{"--default", "--format", tc.format}); err != nil {
			t.Fatalf("%s: expected config to succeed, got err=%v", tc.format, err)
		}
		for _, want := range tc.want {
			if !strings.Contains(stdout.String(), want) {
				t.Fatalf("%s: expected %q in output:\n%s", tc.format, want, stdout.String())
			}
		}
	}
	if err := NewConfigCommand(&bytes.Buffer{}, &bytes.Buffer{}).Run([]string{"--format", "ini"}); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestConfigCommandNeverPrintsToken(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LEXCHAT_TOKEN", "secret-token")
	stdout := &bytes.Buffer{}
	if err := NewConfigCommand(stdout, &bytes.Buffer{}).Run(nil); err != nil {
		t.Fatalf("expected config to succeed, got err=%v", err)
	}
	if strings.Contains(stdout.String(), "secret-token") {
		t.Fatalf("token leaked into config output")
	}
	if !strings.Contains(stdout.String(), `"token_configured": true`) {
		t.Fatalf("expected token_configured, got %s", stdout.String())
	}
}

func TestRootCommandRegistersEverySubcommand(t *testing.T) {
	wiring := commandWiring{
		stdout:     &bytes.Buffer{},
		stderr:     &bytes.Buffer{},
		newRuntime: fixedRuntime(newFakeChatAPI()),
		version:    "test",
	}
	root := newRootCommand(wiring)
	for name := range buildCommands(wiring) {
		found, _, err := root.Find([]string{name})
		if err != nil || found == root {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	stdout := &bytes.Buffer{}
	if err := NewVersionCommand(stdout, "abc123").Run(nil); err != nil {
		t.Fatalf("expected version to succeed, got err=%v", err)
	}
	if strings.TrimSpace(stdout.String()) != "abc123" {
		t.Fatalf("unexpected version %q", stdout.String())
	}
}
