package main

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"text/tabwriter"

	"github.com/buger/goterm"
	"github.com/fatih/color"

	"lexchat/internal/chat"
	"lexchat/internal/ratelimit"
	"lexchat/internal/types"
)

const version = "dev"

var (
	userColor      = color.New(color.Bold)
	assistantColor = color.New(color.FgCyan)
	documentColor  = color.New(color.FgYellow)
	sourceColor    = color.New(color.Faint)
	separatorColor = color.New(color.FgGreen)
	warnColor      = color.New(color.FgRed, color.Bold)
)

var errRateLimited = errors.New("message quota reached")

const timeLayout = "2006-01-02 15:04"

func printSessions(output io.Writer, sessions []*types.ChatSession, currentID string) {
	writer := tabwriter.NewWriter(output, 0, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tTITLE\tUPDATED\tCURRENT")
	for _, session := range sessions {
		if session == nil {
			continue
		}
		updated := "-"
		if stamp := session.UpdatedAt; !stamp.IsZero() {
			updated = stamp.Local().Format(timeLayout)
		} else if !session.CreatedAt.IsZero() {
			updated = session.CreatedAt.Local().Format(timeLayout)
		}
		current := ""
		if session.ID == currentID {
			current = "*"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", session.ID, session.Title, updated, current)
	}
	_ = writer.Flush()
}

func printMessage(output io.Writer, msg *types.Message) {
	if msg == nil {
		return
	}
	switch {
	case msg.Kind == types.MessageKindDocument:
		documentColor.Fprintf(output, "[document] %s\n", msg.Content)
	case msg.Sender == types.SenderUser:
		userColor.Fprintf(output, "> %s\n", msg.Content)
	default:
		assistantColor.Fprintln(output, msg.Content)
		if names := sourceNames(msg.Sources); len(names) > 0 {
			sourceColor.Fprintf(output, "sources: %s\n", strings.Join(names, ", "))
		}
	}
}

func sourceNames(sources []any) []string {
	out := make([]string, 0, len(sources))
	for _, source := range sources {
		switch v := source.(type) {
		case string:
			out = append(out, v)
		case map[string]any:
			for _, key := range []string{"file_name", "filename", "title", "source", "id"} {
				if s, ok := v[key].(string); ok && s != "" {
					out = append(out, s)
					break
				}
			}
		}
	}
	return out
}

func printSeparator(output io.Writer) {
	width := goterm.Width()
	if width <= 0 {
		width = 80
	}
	separatorColor.Fprintln(output, strings.Repeat("-", width))
}

// reportSendFailure prints the failure of a send and returns the error the
// command exits with.
func reportSendFailure(stderr io.Writer, result chat.SendResult) error {
	if result.Outcome == chat.SendRolledBack {
		warnColor.Fprintln(stderr, ratelimit.Summary(result.RateLimit))
		return errRateLimited
	}
	return result.Err
}

func exitOnErr(label string, err error, stderr io.Writer) {
	if err == nil {
		return
	}
	fmt.Fprintf(stderr, "%s error: %v\n", label, err)
	os.Exit(1)
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		var revision string
		var modified string
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				revision = setting.Value
			case "vcs.modified":
				modified = setting.Value
			}
		}
		if revision != "" {
			if modified == "true" {
				return revision + "-dirty"
			}
			return revision
		}
	}

	exe, err := os.Executable()
	if err == nil {
		file, err := os.Open(exe)
		if err == nil {
			defer file.Close()
			hasher := sha256.New()
			if _, err := io.Copy(hasher, file); err == nil {
				sum := hasher.Sum(nil)
				return fmt.Sprintf("bin-%x", sum[:6])
			}
		}
	}

	return version
}
