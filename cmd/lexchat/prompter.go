package main

import (
	"io"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
)

var promptColor = color.New(color.FgGreen, color.Bold)

type linePrompter interface {
	Readline() (string, error)
	Close() error
}

type prompterFactory func(historyPath string) (linePrompter, error)

type readlinePrompter struct {
	rl *readline.Instance
}

func newReadlinePrompter(historyPath string) (linePrompter, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            promptColor.Sprint("> "),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistoryFile:       historyPath,
		HistorySearchFold: true,
	})
	if err != nil {
		return nil, err
	}
	return &readlinePrompter{rl: rl}, nil
}

// Readline returns io.EOF on ctrl+d, or on ctrl+c at an empty prompt.
// ctrl+c with text discards the line.
func (p *readlinePrompter) Readline() (string, error) {
	line, err := p.rl.Readline()
	if err == readline.ErrInterrupt {
		if line == "" {
			return "", io.EOF
		}
		return "", nil
	}
	return line, err
}

func (p *readlinePrompter) Close() error {
	return p.rl.Close()
}
