package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

const (
	defaultBaseURL        = "http://127.0.0.1:8000"
	defaultRequestTimeout = 60
	defaultDedupWindowMS  = 2000
	defaultLogLevel       = "info"

	CacheBackendBbolt  = "bbolt"
	CacheBackendSQLite = "sqlite"
	CacheBackendFile   = "file"
	CacheBackendNone   = "none"

	EnvToken  = "LEXCHAT_TOKEN"
	EnvUserID = "LEXCHAT_USER_ID"
)

type Config struct {
	API      APIConfig      `toml:"api"`
	Identity IdentityConfig `toml:"identity"`
	Cache    CacheConfig    `toml:"cache"`
	Chat     ChatConfig     `toml:"chat"`
	Logging  LoggingConfig  `toml:"logging"`
}

type APIConfig struct {
	BaseURL               string `toml:"base_url"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	UserType              string `toml:"user_type"`
}

type IdentityConfig struct {
	CredentialsPath string `toml:"credentials_path"`
	Token           string `toml:"token"`
	UserID          string `toml:"user_id"`
}

type CacheConfig struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

type ChatConfig struct {
	DedupWindowMS int `toml:"dedup_window_ms"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:               defaultBaseURL,
			RequestTimeoutSeconds: defaultRequestTimeout,
		},
		Cache: CacheConfig{
			Backend: CacheBackendBbolt,
		},
		Chat: ChatConfig{
			DedupWindowMS: defaultDedupWindowMS,
		},
		Logging: LoggingConfig{
			Level:  defaultLogLevel,
			Format: "console",
		},
	}
}

func Load() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	return loadFromPath(path)
}

func (c Config) BaseURL() string {
	url := strings.TrimSpace(c.API.BaseURL)
	if url == "" {
		return defaultBaseURL
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	return strings.TrimRight(url, "/")
}

func (c Config) RequestTimeout() time.Duration {
	if c.API.RequestTimeoutSeconds <= 0 {
		return defaultRequestTimeout * time.Second
	}
	return time.Duration(c.API.RequestTimeoutSeconds) * time.Second
}

func (c Config) UserType() string {
	return strings.TrimSpace(c.API.UserType)
}

func (c Config) Token() string {
	if token := strings.TrimSpace(os.Getenv(EnvToken)); token != "" {
		return token
	}
	return strings.TrimSpace(c.Identity.Token)
}

func (c Config) UserID() string {
	if id := strings.TrimSpace(os.Getenv(EnvUserID)); id != "" {
		return id
	}
	return strings.TrimSpace(c.Identity.UserID)
}

func (c Config) CredentialsPath() (string, error) {
	path := strings.TrimSpace(c.Identity.CredentialsPath)
	if path == "" {
		return CredentialsPath()
	}
	return resolveConfigPath(path)
}

func (c Config) CacheBackend() string {
	switch strings.ToLower(strings.TrimSpace(c.Cache.Backend)) {
	case CacheBackendSQLite:
		return CacheBackendSQLite
	case CacheBackendFile, "json":
		return CacheBackendFile
	case CacheBackendNone, "off", "disabled":
		return CacheBackendNone
	default:
		return CacheBackendBbolt
	}
}

func (c Config) CachePath() (string, error) {
	path := strings.TrimSpace(c.Cache.Path)
	if path == "" {
		return CacheDBPath(c.CacheBackend())
	}
	return resolveConfigPath(path)
}

func (c Config) DedupWindow() time.Duration {
	if c.Chat.DedupWindowMS <= 0 {
		return defaultDedupWindowMS * time.Millisecond
	}
	return time.Duration(c.Chat.DedupWindowMS) * time.Millisecond
}

func (c Config) LogLevel() string {
	level := strings.TrimSpace(c.Logging.Level)
	if level == "" {
		return defaultLogLevel
	}
	return level
}

func (c Config) LogFormat() string {
	if strings.EqualFold(strings.TrimSpace(c.Logging.Format), "json") {
		return "json"
	}
	return "console"
}

func loadFromPath(path string) (Config, error) {
	cfg := DefaultConfig()
	if err := readTOML(path, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "reading config %s", path)
	}
	return cfg, nil
}

func readTOML(path string, out any) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	return toml.Unmarshal(data, out)
}

func resolveConfigPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("path is required")
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[2:]), nil
	}
	if filepath.IsAbs(path) {
		return path, nil
	}
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, path), nil
}
