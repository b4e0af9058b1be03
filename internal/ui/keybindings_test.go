package ui

import (
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestLoadKeybindingsDefaultsWhenMissing(t *testing.T) {
	bindings, err := LoadKeybindings(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("LoadKeybindings: %v", err)
	}
	if got := bindings.KeyFor(KeyCommandNewSession); got != "ctrl+n" {
		t.Fatalf("unexpected default binding: %q", got)
	}
	if got := bindings.Command(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("k"), Alt: true}); got != KeyCommandPrevSession {
		t.Fatalf("expected alt+k to switch to previous session, got %q", got)
	}
}

func TestLoadKeybindingsArrayOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keybindings.json")
	data := []byte(`[
  {"command":"ui.newSession","key":"alt+n"},
  {"command":"ui.unknown","key":"F9"}
]`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	bindings, err := LoadKeybindings(path)
	if err != nil {
		t.Fatalf("LoadKeybindings: %v", err)
	}
	if got := bindings.KeyFor(KeyCommandNewSession); got != "alt+n" {
		t.Fatalf("unexpected new session binding: %q", got)
	}
	if got := bindings.Command(tea.KeyMsg{Type: tea.KeyCtrlN}); got != "" {
		t.Fatalf("expected overridden default key to be unbound, got %q", got)
	}
	if got := bindings.Command(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n"), Alt: true}); got != KeyCommandNewSession {
		t.Fatalf("expected alt+n to create a session, got %q", got)
	}
}

func TestLoadKeybindingsMapOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keybindings.json")
	if err := os.WriteFile(path, []byte(`{"ui.copyReply":"alt+y","ui.quit":42}`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	bindings, err := LoadKeybindings(path)
	if err != nil {
		t.Fatalf("LoadKeybindings: %v", err)
	}
	if got := bindings.KeyFor(KeyCommandCopyReply); got != "alt+y" {
		t.Fatalf("unexpected copy binding: %q", got)
	}
	if got := bindings.KeyFor(KeyCommandQuit); got != "ctrl+c" {
		t.Fatalf("expected non-string override to be ignored, got %q", got)
	}
}

func TestLoadKeybindingsRejectsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keybindings.json")
	if err := os.WriteFile(path, []byte(`{"ui.quit":`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadKeybindings(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestKeybindingsContestedKeyGoesToFirstCommand(t *testing.T) {
	bindings := NewKeybindings(map[string]string{KeyCommandRefresh: "ctrl+l"})
	if got := bindings.Command(tea.KeyMsg{Type: tea.KeyCtrlL}); got != KeyCommandClearHistory {
		t.Fatalf("expected sorted-first command to keep ctrl+l, got %q", got)
	}
}

func TestKeybindingsBindingsListsEveryCommand(t *testing.T) {
	bindings := NewKeybindings(map[string]string{KeyCommandQuit: "ctrl+q"}).Bindings()
	if len(bindings) != len(KnownKeybindingCommands()) {
		t.Fatalf("expected every command, got %d", len(bindings))
	}
	if bindings[KeyCommandPrevSession] != "ctrl+up,alt+k" {
		t.Fatalf("unexpected prev session keys %q", bindings[KeyCommandPrevSession])
	}
	if bindings[KeyCommandQuit] != "ctrl+q" {
		t.Fatalf("unexpected quit key %q", bindings[KeyCommandQuit])
	}
}
