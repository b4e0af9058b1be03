package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"lexchat/internal/chat"
)

type AskCommand struct {
	stdout     io.Writer
	stderr     io.Writer
	newRuntime runtimeFactory
}

func NewAskCommand(stdout, stderr io.Writer, newRuntime runtimeFactory) *AskCommand {
	return &AskCommand{stdout: stdout, stderr: stderr, newRuntime: newRuntime}
}

func (c *AskCommand) Command() *cobra.Command {
	var fresh bool
	cmd := &cobra.Command{
		Use:   "ask <id> <query...>",
		Short: "Send one question to a session and print the reply",
		Long:  "Send one question to a session and print the reply. With --new the id is omitted and a session is created.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if !fresh {
				if len(args) < 2 {
					return errors.New("ask needs a session id and a query (or --new)")
				}
				id, args = args[0], args[1:]
			}
			query := strings.Join(args, " ")
			return withRuntime(c.newRuntime, c.stderr, func(rt *chatRuntime) error {
				ctx := cmd.Context()
				if id != "" {
					if err := rt.engine.SelectSession(ctx, id); err != nil {
						return err
					}
				}
				result := rt.engine.SendText(ctx, query)
				if result.Outcome != chat.SendSent {
					return reportSendFailure(c.stderr, result)
				}
				if fresh {
					fmt.Fprintf(c.stderr, "session %s\n", result.SessionID)
				}
				printMessage(c.stdout, result.Reply)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&fresh, "new", false, "ask in a new session")
	return cmd
}

func (c *AskCommand) Run(args []string) error {
	return runCommand(c.Command(), args, c.stdout, c.stderr)
}
