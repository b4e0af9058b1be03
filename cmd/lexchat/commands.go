package main

import (
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

type commandRunner interface {
	Run(args []string) error
	Command() *cobra.Command
}

type commandWiring struct {
	stdout             io.Writer
	stderr             io.Writer
	newRuntime         runtimeFactory
	confirm            confirmFunc
	newPrompter        prompterFactory
	runUI              uiRunner
	configureUILogging func() io.Writer
	version            string
}

func defaultCommandWiring(stdout, stderr io.Writer) commandWiring {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return commandWiring{
		stdout:             stdout,
		stderr:             stderr,
		newRuntime:         newChatRuntime,
		confirm:            surveyConfirm,
		newPrompter:        newReadlinePrompter,
		runUI:              runTerminalUI,
		configureUILogging: configureUILogging,
		version:            buildVersion(),
	}
}

func buildCommands(wiring commandWiring) map[string]commandRunner {
	return map[string]commandRunner{
		"sessions": NewSessionsCommand(wiring.stdout, wiring.stderr, wiring.newRuntime),
		"new":      NewNewSessionCommand(wiring.stdout, wiring.stderr, wiring.newRuntime),
		"rename":   NewRenameCommand(wiring.stdout, wiring.stderr, wiring.newRuntime),
		"rm":       NewRemoveCommand(wiring.stdout, wiring.stderr, wiring.newRuntime, wiring.confirm),
		"clear":    NewClearCommand(wiring.stdout, wiring.stderr, wiring.newRuntime, wiring.confirm),
		"history":  NewHistoryCommand(wiring.stdout, wiring.stderr, wiring.newRuntime),
		"ask":      NewAskCommand(wiring.stdout, wiring.stderr, wiring.newRuntime),
		"upload":   NewUploadCommand(wiring.stdout, wiring.stderr, wiring.newRuntime),
		"chat":     NewChatCommand(wiring.stdout, wiring.stderr, wiring.newRuntime, wiring.newPrompter),
		"ui":       NewUICommand(wiring.stderr, wiring.newRuntime, wiring.runUI, wiring.configureUILogging),
		"signout":  NewSignOutCommand(wiring.stdout, wiring.stderr, wiring.newRuntime),
		"config":   NewConfigCommand(wiring.stdout, wiring.stderr),
		"version":  NewVersionCommand(wiring.stdout, wiring.version),
	}
}

func newRootCommand(wiring commandWiring) *cobra.Command {
	root := &cobra.Command{
		Use:           "lexchat",
		Short:         "Chat with your document assistant from the terminal",
		Version:       wiring.version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(wiring.stdout)
	root.SetErr(wiring.stderr)
	commands := buildCommands(wiring)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		root.AddCommand(commands[name].Command())
	}
	return root
}

// runCommand executes a standalone subcommand with args, the way the root
// command would.
func runCommand(cmd *cobra.Command, args []string, stdout, stderr io.Writer) error {
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return cmd.Execute()
}
