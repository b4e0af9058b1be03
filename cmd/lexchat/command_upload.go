package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"lexchat/internal/chat"
)

type UploadCommand struct {
	stdout     io.Writer
	stderr     io.Writer
	newRuntime runtimeFactory
}

func NewUploadCommand(stdout, stderr io.Writer, newRuntime runtimeFactory) *UploadCommand {
	return &UploadCommand{stdout: stdout, stderr: stderr, newRuntime: newRuntime}
}

func (c *UploadCommand) Command() *cobra.Command {
	var (
		name        string
		description string
	)
	cmd := &cobra.Command{
		Use:   "upload <id> <file>...",
		Short: "Upload documents into a chat session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, files := args[0], args[1:]
			if name != "" && len(files) > 1 {
				return errors.New("--name applies to a single file")
			}
			uploads := make([]chat.Upload, 0, len(files))
			for _, path := range files {
				uploads = append(uploads, chat.Upload{
					FileName:    path,
					DisplayName: name,
					Description: description,
					Open:        openFile(path),
				})
			}
			return withRuntime(c.newRuntime, c.stderr, func(rt *chatRuntime) error {
				ctx := cmd.Context()
				if err := rt.engine.SelectSession(ctx, id); err != nil {
					return err
				}
				failed := 0
				for _, result := range rt.engine.UploadDocuments(ctx, uploads) {
					if result.Err != nil {
						failed++
						fmt.Fprintf(c.stderr, "%s: %v\n", result.FileName, result.Err)
						continue
					}
					fmt.Fprintf(c.stdout, "uploaded %s (%s)\n", result.FileName, result.Document.ID)
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d uploads failed", failed, len(uploads))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name for a single uploaded file")
	cmd.Flags().StringVar(&description, "description", "", "description stored with the documents")
	return cmd
}

func (c *UploadCommand) Run(args []string) error {
	return runCommand(c.Command(), args, c.stdout, c.stderr)
}

func openFile(path string) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return os.Open(path)
	}
}
