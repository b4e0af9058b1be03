package ui

import (
	"errors"
	"os"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/tidwall/gjson"
)

const (
	KeyCommandSend          = "ui.send"
	KeyCommandNewSession    = "ui.newSession"
	KeyCommandPrevSession   = "ui.prevSession"
	KeyCommandNextSession   = "ui.nextSession"
	KeyCommandDeleteSession = "ui.deleteSession"
	KeyCommandClearHistory  = "ui.clearHistory"
	KeyCommandRefresh       = "ui.refresh"
	KeyCommandCopyReply     = "ui.copyReply"
	KeyCommandDismiss       = "ui.dismiss"
	KeyCommandQuit          = "ui.quit"
)

var defaultKeybindingByCommand = map[string][]string{
	KeyCommandSend:          {"enter"},
	KeyCommandNewSession:    {"ctrl+n"},
	KeyCommandPrevSession:   {"ctrl+up", "alt+k"},
	KeyCommandNextSession:   {"ctrl+down", "alt+j"},
	KeyCommandDeleteSession: {"ctrl+d"},
	KeyCommandClearHistory:  {"ctrl+l"},
	KeyCommandRefresh:       {"ctrl+r"},
	KeyCommandCopyReply:     {"ctrl+y"},
	KeyCommandDismiss:       {"esc"},
	KeyCommandQuit:          {"ctrl+c"},
}

// Keybindings maps UI commands to key strings as bubbletea reports them.
// An override replaces every default key of its command.
type Keybindings struct {
	byCommand map[string][]string
	byKey     map[string]string
}

func DefaultKeybindings() *Keybindings {
	return NewKeybindings(nil)
}

func NewKeybindings(overrides map[string]string) *Keybindings {
	byCommand := make(map[string][]string, len(defaultKeybindingByCommand))
	for command, keys := range defaultKeybindingByCommand {
		byCommand[command] = append([]string(nil), keys...)
	}
	for command, key := range overrides {
		command = strings.TrimSpace(command)
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, ok := defaultKeybindingByCommand[command]; !ok {
			continue
		}
		byCommand[command] = []string{key}
	}
	byKey := map[string]string{}
	for _, command := range KnownKeybindingCommands() {
		for _, key := range byCommand[command] {
			// First command in sorted order keeps a contested key.
			if _, taken := byKey[key]; !taken {
				byKey[key] = command
			}
		}
	}
	return &Keybindings{byCommand: byCommand, byKey: byKey}
}

// LoadKeybindings reads overrides from a JSON file holding either an object
// of command to key or an array of {"command","key"} entries. A missing or
// empty file yields the defaults.
func LoadKeybindings(path string) (*Keybindings, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultKeybindings(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultKeybindings(), nil
		}
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return DefaultKeybindings(), nil
	}
	overrides, err := parseKeybindingOverrides(data)
	if err != nil {
		return nil, err
	}
	return NewKeybindings(overrides), nil
}

func parseKeybindingOverrides(data []byte) (map[string]string, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("keybindings file is not valid JSON")
	}
	parsed := gjson.ParseBytes(data)
	out := map[string]string{}
	switch {
	case parsed.IsArray():
		parsed.ForEach(func(_, entry gjson.Result) bool {
			command := strings.TrimSpace(entry.Get("command").String())
			key := strings.TrimSpace(entry.Get("key").String())
			if command != "" && key != "" {
				out[command] = key
			}
			return true
		})
	case parsed.IsObject():
		parsed.ForEach(func(command, key gjson.Result) bool {
			if key.Type == gjson.String {
				out[strings.TrimSpace(command.String())] = strings.TrimSpace(key.String())
			}
			return true
		})
	default:
		return nil, errors.New("keybindings must be a JSON object or array")
	}
	return out, nil
}

func KnownKeybindingCommands() []string {
	commands := make([]string, 0, len(defaultKeybindingByCommand))
	for command := range defaultKeybindingByCommand {
		commands = append(commands, command)
	}
	sort.Strings(commands)
	return commands
}

// KeyFor returns the primary key of command, used in the help line.
func (k *Keybindings) KeyFor(command string) string {
	if k != nil {
		if keys := k.byCommand[command]; len(keys) > 0 {
			return keys[0]
		}
	}
	if keys := defaultKeybindingByCommand[command]; len(keys) > 0 {
		return keys[0]
	}
	return ""
}

// Bindings returns every command with its keys, comma separated.
func (k *Keybindings) Bindings() map[string]string {
	out := make(map[string]string, len(defaultKeybindingByCommand))
	for _, command := range KnownKeybindingCommands() {
		keys := defaultKeybindingByCommand[command]
		if k != nil {
			keys = k.byCommand[command]
		}
		out[command] = strings.Join(keys, ",")
	}
	return out
}

// Command resolves a key press to its command, or "" when unbound.
func (k *Keybindings) Command(msg tea.KeyMsg) string {
	if k == nil {
		return ""
	}
	return k.byKey[msg.String()]
}
