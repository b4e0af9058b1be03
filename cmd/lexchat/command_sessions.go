package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

type SessionsCommand struct {
	stdout     io.Writer
	stderr     io.Writer
	newRuntime runtimeFactory
}

func NewSessionsCommand(stdout, stderr io.Writer, newRuntime runtimeFactory) *SessionsCommand {
	return &SessionsCommand{stdout: stdout, stderr: stderr, newRuntime: newRuntime}
}

func (c *SessionsCommand) Command() *cobra.Command {
	var cached bool
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List chat sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(c.newRuntime, c.stderr, func(rt *chatRuntime) error {
				ctx := cmd.Context()
				rt.engine.Restore(ctx)
				if !cached {
					if _, err := rt.engine.ListSessions(ctx); err != nil {
						return err
					}
				}
				snap := rt.engine.Snapshot()
				printSessions(c.stdout, snap.Sessions, snap.CurrentSessionID)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&cached, "cached", false, "print the locally cached list without contacting the server")
	return cmd
}

func (c *SessionsCommand) Run(args []string) error {
	return runCommand(c.Command(), args, c.stdout, c.stderr)
}

type NewSessionCommand struct {
	stdout     io.Writer
	stderr     io.Writer
	newRuntime runtimeFactory
}

func NewNewSessionCommand(stdout, stderr io.Writer, newRuntime runtimeFactory) *NewSessionCommand {
	return &NewSessionCommand{stdout: stdout, stderr: stderr, newRuntime: newRuntime}
}

func (c *NewSessionCommand) Command() *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a chat session and print its id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(c.newRuntime, c.stderr, func(rt *chatRuntime) error {
				session, err := rt.engine.CreateSession(cmd.Context(), title)
				if err != nil {
					return err
				}
				fmt.Fprintln(c.stdout, session.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "session title (the server picks one when empty)")
	return cmd
}

func (c *NewSessionCommand) Run(args []string) error {
	return runCommand(c.Command(), args, c.stdout, c.stderr)
}

type RenameCommand struct {
	stdout     io.Writer
	stderr     io.Writer
	newRuntime runtimeFactory
}

func NewRenameCommand(stdout, stderr io.Writer, newRuntime runtimeFactory) *RenameCommand {
	return &RenameCommand{stdout: stdout, stderr: stderr, newRuntime: newRuntime}
}

func (c *RenameCommand) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <title...>",
		Short: "Rename a chat session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(c.newRuntime, c.stderr, func(rt *chatRuntime) error {
				ctx := cmd.Context()
				rt.engine.Restore(ctx)
				title, err := rt.engine.RenameSession(ctx, args[0], strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				fmt.Fprintln(c.stdout, title)
				return nil
			})
		},
	}
}

func (c *RenameCommand) Run(args []string) error {
	return runCommand(c.Command(), args, c.stdout, c.stderr)
}

type confirmFunc func(question string) (bool, error)

type RemoveCommand struct {
	stdout     io.Writer
	stderr     io.Writer
	newRuntime runtimeFactory
	confirm    confirmFunc
}

func NewRemoveCommand(stdout, stderr io.Writer, newRuntime runtimeFactory, confirm confirmFunc) *RemoveCommand {
	return &RemoveCommand{stdout: stdout, stderr: stderr, newRuntime: newRuntime, confirm: confirm}
}

func (c *RemoveCommand) Command() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a chat session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			ok, err := confirmUnless(yes, c.confirm, fmt.Sprintf("Delete session %s and its history?", id))
			if err != nil || !ok {
				if err == nil {
					fmt.Fprintln(c.stdout, "aborted")
				}
				return err
			}
			return withRuntime(c.newRuntime, c.stderr, func(rt *chatRuntime) error {
				ctx := cmd.Context()
				rt.engine.Restore(ctx)
				if err := rt.engine.DeleteSession(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(c.stdout, "deleted %s\n", id)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func (c *RemoveCommand) Run(args []string) error {
	return runCommand(c.Command(), args, c.stdout, c.stderr)
}

type ClearCommand struct {
	stdout     io.Writer
	stderr     io.Writer
	newRuntime runtimeFactory
	confirm    confirmFunc
}

func NewClearCommand(stdout, stderr io.Writer, newRuntime runtimeFactory, confirm confirmFunc) *ClearCommand {
	return &ClearCommand{stdout: stdout, stderr: stderr, newRuntime: newRuntime, confirm: confirm}
}

func (c *ClearCommand) Command() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear <id>",
		Short: "Clear the history of a chat session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			ok, err := confirmUnless(yes, c.confirm, fmt.Sprintf("Clear the history of session %s?", id))
			if err != nil || !ok {
				if err == nil {
					fmt.Fprintln(c.stdout, "aborted")
				}
				return err
			}
			return withRuntime(c.newRuntime, c.stderr, func(rt *chatRuntime) error {
				if err := rt.engine.ClearHistory(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(c.stdout, "cleared %s\n", id)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func (c *ClearCommand) Run(args []string) error {
	return runCommand(c.Command(), args, c.stdout, c.stderr)
}

func confirmUnless(skip bool, confirm confirmFunc, question string) (bool, error) {
	if skip || confirm == nil {
		return true, nil
	}
	return confirm(question)
}
