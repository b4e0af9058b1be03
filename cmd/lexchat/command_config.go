package main

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"lexchat/internal/config"
	"lexchat/internal/ui"
)

type ConfigCommand struct {
	stdout io.Writer
	stderr io.Writer
}

type configOutput struct {
	ConfigPath      string            `json:"config_path,omitempty" toml:"config_path,omitempty" yaml:"config_path,omitempty"`
	KeybindingsPath string            `json:"keybindings_path,omitempty" toml:"keybindings_path,omitempty" yaml:"keybindings_path,omitempty"`
	API             apiConfigOut      `json:"api" toml:"api" yaml:"api"`
	Identity        identityConfigOut `json:"identity" toml:"identity" yaml:"identity"`
	Cache           cacheConfigOut    `json:"cache" toml:"cache" yaml:"cache"`
	Chat            chatConfigOut     `json:"chat" toml:"chat" yaml:"chat"`
	Logging         loggingConfigOut  `json:"logging" toml:"logging" yaml:"logging"`
	Keybindings     map[string]string `json:"keybindings,omitempty" toml:"keybindings,omitempty" yaml:"keybindings,omitempty"`
}

type apiConfigOut struct {
	BaseURL               string `json:"base_url" toml:"base_url" yaml:"base_url"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds" toml:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	UserType              string `json:"user_type,omitempty" toml:"user_type,omitempty" yaml:"user_type,omitempty"`
}

// identityConfigOut never carries the token itself.
type identityConfigOut struct {
	CredentialsPath string `json:"credentials_path" toml:"credentials_path" yaml:"credentials_path"`
	UserID          string `json:"user_id,omitempty" toml:"user_id,omitempty" yaml:"user_id,omitempty"`
	TokenConfigured bool   `json:"token_configured" toml:"token_configured" yaml:"token_configured"`
}

type cacheConfigOut struct {
	Backend string `json:"backend" toml:"backend" yaml:"backend"`
	Path    string `json:"path,omitempty" toml:"path,omitempty" yaml:"path,omitempty"`
}

type chatConfigOut struct {
	DedupWindowMS int64 `json:"dedup_window_ms" toml:"dedup_window_ms" yaml:"dedup_window_ms"`
}

type loggingConfigOut struct {
	Level  string `json:"level" toml:"level" yaml:"level"`
	Format string `json:"format" toml:"format" yaml:"format"`
}

func NewConfigCommand(stdout, stderr io.Writer) *ConfigCommand {
	return &ConfigCommand{stdout: stdout, stderr: stderr}
}

func (c *ConfigCommand) Command() *cobra.Command {
	var (
		defaults bool
		format   string
	)
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration (or the defaults)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := resolveConfigFormat(format)
			if err != nil {
				return err
			}
			payload, err := buildConfigOutput(defaults)
			if err != nil {
				return err
			}
			return writeConfigOutput(c.stdout, resolved, payload)
		},
	}
	cmd.Flags().BoolVar(&defaults, "default", false, "print default config values")
	cmd.Flags().StringVar(&format, "format", outputFormatJSON, "output format: json|toml|yaml")
	return cmd
}

func (c *ConfigCommand) Run(args []string) error {
	return runCommand(c.Command(), args, c.stdout, c.stderr)
}

func resolveConfigFormat(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", outputFormatJSON:
		return outputFormatJSON, nil
	case outputFormatTOML:
		return outputFormatTOML, nil
	case outputFormatYAML, "yml":
		return outputFormatYAML, nil
	default:
		return "", errors.New("unsupported format")
	}
}

func buildConfigOutput(defaults bool) (configOutput, error) {
	configPath, err := config.ConfigPath()
	if err != nil {
		return configOutput{}, err
	}
	keybindingsPath, err := config.KeybindingsPath()
	if err != nil {
		return configOutput{}, err
	}
	var cfg config.Config
	var bindings *ui.Keybindings
	if defaults {
		cfg = config.DefaultConfig()
		bindings = ui.DefaultKeybindings()
	} else {
		cfg, err = config.Load()
		if err != nil {
			return configOutput{}, err
		}
		bindings, err = ui.LoadKeybindings(keybindingsPath)
		if err != nil {
			return configOutput{}, err
		}
	}
	credentialsPath, err := cfg.CredentialsPath()
	if err != nil {
		return configOutput{}, err
	}
	out := configOutput{
		ConfigPath:      configPath,
		KeybindingsPath: keybindingsPath,
		API: apiConfigOut{
			BaseURL:               cfg.BaseURL(),
			RequestTimeoutSeconds: int(cfg.RequestTimeout().Seconds()),
			UserType:              cfg.UserType(),
		},
		Identity: identityConfigOut{
			CredentialsPath: credentialsPath,
			UserID:          cfg.UserID(),
			TokenConfigured: cfg.Token() != "",
		},
		Cache: cacheConfigOut{
			Backend: cfg.CacheBackend(),
		},
		Chat: chatConfigOut{
			DedupWindowMS: cfg.DedupWindow().Milliseconds(),
		},
		Logging: loggingConfigOut{
			Level:  cfg.LogLevel(),
			Format: cfg.LogFormat(),
		},
		Keybindings: bindings.Bindings(),
	}
	if out.Cache.Backend != config.CacheBackendNone {
		path, err := cfg.CachePath()
		if err != nil {
			return configOutput{}, err
		}
		out.Cache.Path = path
	}
	return out, nil
}

func writeConfigOutput(out io.Writer, format string, payload any) error {
	switch format {
	case outputFormatJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(payload)
	case outputFormatTOML:
		data, err := toml.Marshal(payload)
		if err != nil {
			return err
		}
		if len(data) == 0 || data[len(data)-1] != '\n' {
			data = append(data, '\n')
		}
		_, err = out.Write(data)
		return err
	case outputFormatYAML:
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)
		if err := encoder.Encode(payload); err != nil {
			return err
		}
		return encoder.Close()
	default:
		return errors.New("unsupported format")
	}
}
