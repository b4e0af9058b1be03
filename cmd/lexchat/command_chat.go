package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"lexchat/internal/chat"
	"lexchat/internal/config"
)

const replHelp = `Type a question and press enter. Commands:
  /new [title]             start a new session
  /sessions                list sessions
  /switch <id>             switch to another session
  /rename <title>          rename the current session
  /upload <path> [desc]    upload a document into the current session
  /clear                   clear the current session's history
  /delete                  delete the current session
  /help                    show this help
  /quit                    leave
`

type ChatCommand struct {
	stdout      io.Writer
	stderr      io.Writer
	newRuntime  runtimeFactory
	newPrompter prompterFactory
}

func NewChatCommand(stdout, stderr io.Writer, newRuntime runtimeFactory, newPrompter prompterFactory) *ChatCommand {
	return &ChatCommand{stdout: stdout, stderr: stderr, newRuntime: newRuntime, newPrompter: newPrompter}
}

func (c *ChatCommand) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "chat [id]",
		Short: "Chat interactively in a session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			historyPath, err := config.ReplHistoryPath()
			if err != nil {
				historyPath = ""
			}
			prompter, err := c.newPrompter(historyPath)
			if err != nil {
				return err
			}
			defer prompter.Close()
			return withRuntime(c.newRuntime, c.stderr, func(rt *chatRuntime) error {
				ctx := cmd.Context()
				id := rt.engine.Restore(ctx)
				if _, err := rt.engine.ListSessions(ctx); err != nil {
					warnColor.Fprintf(c.stderr, "could not list sessions: %v\n", err)
				}
				if len(args) == 1 {
					id = args[0]
				}
				if id != "" {
					if err := c.switchTo(ctx, rt.engine, id); err != nil {
						return err
					}
				}
				return c.loop(ctx, rt.engine, prompter)
			})
		},
	}
}

func (c *ChatCommand) Run(args []string) error {
	return runCommand(c.Command(), args, c.stdout, c.stderr)
}

func (c *ChatCommand) loop(ctx context.Context, engine *chat.Engine, prompter linePrompter) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := prompter.Readline()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			quit, err := c.runSlash(ctx, engine, line)
			if err != nil {
				fmt.Fprintf(c.stderr, "error: %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}
		c.send(ctx, engine, line)
	}
}

func (c *ChatCommand) send(ctx context.Context, engine *chat.Engine, query string) {
	result := engine.SendText(ctx, query)
	switch result.Outcome {
	case chat.SendSent:
		printSeparator(c.stdout)
		printMessage(c.stdout, result.Reply)
		printSeparator(c.stdout)
	case chat.SendSkipped:
	case chat.SendFailed:
		fmt.Fprintf(c.stderr, "error: %v\n", result.Err)
	default:
		_ = reportSendFailure(c.stderr, result)
	}
}

func (c *ChatCommand) runSlash(ctx context.Context, engine *chat.Engine, line string) (bool, error) {
	fields := strings.Fields(line)
	rest := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
	current := engine.Snapshot().CurrentSessionID
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprint(c.stdout, replHelp)
	case "/new":
		session, err := engine.CreateSession(ctx, rest)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(c.stdout, "started session %s\n", session.ID)
	case "/sessions":
		if _, err := engine.ListSessions(ctx); err != nil {
			return false, err
		}
		snap := engine.Snapshot()
		printSessions(c.stdout, snap.Sessions, snap.CurrentSessionID)
	case "/switch":
		if rest == "" {
			return false, errors.New("usage: /switch <id>")
		}
		return false, c.switchTo(ctx, engine, rest)
	case "/rename":
		if current == "" {
			return false, chat.ErrNoSession
		}
		title, err := engine.RenameSession(ctx, current, rest)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(c.stdout, "renamed to %s\n", title)
	case "/upload":
		if len(fields) < 2 {
			return false, errors.New("usage: /upload <path> [description]")
		}
		result := engine.UploadDocument(ctx, chat.Upload{
			FileName:    fields[1],
			Description: strings.Join(fields[2:], " "),
			Open:        openFile(fields[1]),
		})
		if result.Err != nil {
			return false, result.Err
		}
		documentColor.Fprintf(c.stdout, "[document] %s uploaded\n", result.FileName)
	case "/clear":
		if current == "" {
			return false, chat.ErrNoSession
		}
		if err := engine.ClearHistory(ctx, current); err != nil {
			return false, err
		}
		fmt.Fprintln(c.stdout, "history cleared")
	case "/delete":
		if current == "" {
			return false, chat.ErrNoSession
		}
		if err := engine.DeleteSession(ctx, current); err != nil {
			return false, err
		}
		fmt.Fprintf(c.stdout, "deleted %s\n", current)
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", fields[0])
	}
	return false, nil
}

// switchTo selects id and prints its transcript.
func (c *ChatCommand) switchTo(ctx context.Context, engine *chat.Engine, id string) error {
	if err := engine.SelectSession(ctx, id); err != nil {
		return err
	}
	snap := engine.Snapshot()
	title := id
	if session := snap.CurrentSession(); session != nil && session.Title != "" {
		title = session.Title
	}
	printSeparator(c.stdout)
	fmt.Fprintf(c.stdout, "session %s\n", title)
	for _, msg := range snap.Messages {
		printMessage(c.stdout, msg)
	}
	printSeparator(c.stdout)
	return nil
}
