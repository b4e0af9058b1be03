package config

import (
	"os"
	"path/filepath"
)

const appDirName = ".lexchat"

// DataDir returns the base data directory for lexchat.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, appDirName), nil
}

// ConfigPath returns the path to the TOML configuration file.
func ConfigPath() (string, error) {
	return dataPath("config.toml")
}

// CredentialsPath returns the default path of the identity credentials file.
func CredentialsPath() (string, error) {
	return dataPath("credentials.json")
}

// CacheDBPath returns the default local cache database path for a backend.
func CacheDBPath(backend string) (string, error) {
	switch backend {
	case CacheBackendSQLite:
		return dataPath("cache.sqlite")
	case CacheBackendFile:
		return dataPath("cache")
	default:
		return dataPath("cache.db")
	}
}

// LogPath returns the file the terminal UI logs to.
func LogPath() (string, error) {
	return dataPath("lexchat.log")
}

// KeybindingsPath returns the JSON file holding terminal UI key overrides.
func KeybindingsPath() (string, error) {
	return dataPath("keybindings.json")
}

// ReplHistoryPath returns the line history file of the chat REPL.
func ReplHistoryPath() (string, error) {
	return dataPath("repl_history")
}

func dataPath(name string) (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, name), nil
}
