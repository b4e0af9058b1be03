package main

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"lexchat/internal/chat"
	"lexchat/internal/config"
	"lexchat/internal/logging"
	"lexchat/internal/ui"
)

type uiRunner func(ctx context.Context, engine *chat.Engine, opts ui.Options) error

func runTerminalUI(ctx context.Context, engine *chat.Engine, opts ui.Options) error {
	return ui.Run(ctx, engine, opts)
}

type UICommand struct {
	stderr             io.Writer
	newRuntime         runtimeFactory
	runUI              uiRunner
	configureUILogging func() io.Writer
}

func NewUICommand(stderr io.Writer, newRuntime runtimeFactory, runUI uiRunner, configureUILogging func() io.Writer) *UICommand {
	return &UICommand{
		stderr:             stderr,
		newRuntime:         newRuntime,
		runUI:              runUI,
		configureUILogging: configureUILogging,
	}
}

func (c *UICommand) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Run the terminal UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logOut := io.Discard
			if c.configureUILogging != nil {
				logOut = c.configureUILogging()
			}
			return withRuntime(c.newRuntime, logOut, func(rt *chatRuntime) error {
				ctx := cmd.Context()
				rt.engine.Restore(ctx)
				keys, err := loadKeybindings()
				if err != nil {
					rt.logger.Warn("keybindings ignored", logging.F("error", err))
					keys = ui.DefaultKeybindings()
				}
				return c.runUI(ctx, rt.engine, ui.Options{Keybindings: keys, Logger: rt.logger})
			})
		},
	}
}

func (c *UICommand) Run(args []string) error {
	return runCommand(c.Command(), args, c.stderr, c.stderr)
}

func loadKeybindings() (*ui.Keybindings, error) {
	path, err := config.KeybindingsPath()
	if err != nil {
		return nil, err
	}
	return ui.LoadKeybindings(path)
}

// configureUILogging sends logs to the data dir so they do not draw over the
// UI. Logging is dropped when the file cannot be opened.
func configureUILogging() io.Writer {
	logPath, err := config.LogPath()
	if err != nil {
		return io.Discard
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
		return io.Discard
	}
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return io.Discard
	}
	return file
}
