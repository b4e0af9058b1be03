package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

type SignOutCommand struct {
	stdout     io.Writer
	stderr     io.Writer
	newRuntime runtimeFactory
}

func NewSignOutCommand(stdout, stderr io.Writer, newRuntime runtimeFactory) *SignOutCommand {
	return &SignOutCommand{stdout: stdout, stderr: stderr, newRuntime: newRuntime}
}

func (c *SignOutCommand) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Forget the locally remembered session selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(c.newRuntime, c.stderr, func(rt *chatRuntime) error {
				rt.engine.SignOut(cmd.Context())
				fmt.Fprintln(c.stdout, "signed out")
				return nil
			})
		},
	}
}

func (c *SignOutCommand) Run(args []string) error {
	return runCommand(c.Command(), args, c.stdout, c.stderr)
}

type VersionCommand struct {
	stdout  io.Writer
	version string
}

func NewVersionCommand(stdout io.Writer, version string) *VersionCommand {
	return &VersionCommand{stdout: stdout, version: version}
}

func (c *VersionCommand) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(c.stdout, c.version)
			return nil
		},
	}
}

func (c *VersionCommand) Run(args []string) error {
	return runCommand(c.Command(), args, c.stdout, c.stdout)
}
