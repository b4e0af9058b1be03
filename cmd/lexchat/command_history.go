package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"lexchat/internal/types"
)

const (
	outputFormatText = "text"
	outputFormatJSON = "json"
	outputFormatYAML = "yaml"
	outputFormatTOML = "toml"
)

type HistoryCommand struct {
	stdout     io.Writer
	stderr     io.Writer
	newRuntime runtimeFactory
}

func NewHistoryCommand(stdout, stderr io.Writer, newRuntime runtimeFactory) *HistoryCommand {
	return &HistoryCommand{stdout: stdout, stderr: stderr, newRuntime: newRuntime}
}

func (c *HistoryCommand) Command() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Print the transcript of a chat session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(strings.TrimSpace(format))
			switch format {
			case outputFormatText, outputFormatJSON, outputFormatYAML:
			default:
				return fmt.Errorf("unsupported format %q", format)
			}
			return withRuntime(c.newRuntime, c.stderr, func(rt *chatRuntime) error {
				if err := rt.engine.SelectSession(cmd.Context(), args[0]); err != nil {
					return err
				}
				return writeTranscript(c.stdout, format, rt.engine.Snapshot().Messages)
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", outputFormatText, "output format: text|json|yaml")
	return cmd
}

func (c *HistoryCommand) Run(args []string) error {
	return runCommand(c.Command(), args, c.stdout, c.stderr)
}

func writeTranscript(out io.Writer, format string, messages []*types.Message) error {
	switch format {
	case outputFormatJSON:
		if messages == nil {
			messages = []*types.Message{}
		}
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(messages)
	case outputFormatYAML:
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)
		if err := encoder.Encode(messages); err != nil {
			return err
		}
		return encoder.Close()
	default:
		for _, msg := range messages {
			printMessage(out, msg)
		}
		return nil
	}
}
