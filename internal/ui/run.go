package ui

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"lexchat/internal/chat"
	"lexchat/internal/logging"
)

type Options struct {
	Keybindings *Keybindings
	Logger      logging.Logger
	Input       io.Reader
	Output      io.Writer
}

// Run blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, engine *chat.Engine, opts Options) error {
	model := NewModel(ctx, engine, opts.Keybindings, opts.Logger)
	defer model.unsubscribe()

	programOpts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if opts.Input != nil {
		programOpts = append(programOpts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		programOpts = append(programOpts, tea.WithOutput(opts.Output))
	}
	_, err := tea.NewProgram(model, programOpts...).Run()
	return err
}
