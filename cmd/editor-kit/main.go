package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ruminaider/editor-kit/internal/cleanup"
	"github.com/ruminaider/editor-kit/internal/installer"
)

var version = "0.1.0"

func newRootCmd() *cobra.Command {
	f := &cliFlags{}
	cmd := &cobra.Command{
		Use:   "editor-kit",
		Short: "Install shared prompts, rules, agents and MCP servers into your editors",
		Long: "editor-kit copies a kit of prompts, rules, agent definitions and an MCP server registry " +
			"into Claude Code, Cursor, Codex and Gemini CLI, adapting paths and file formats to each.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return nil
			}
			return &installer.UsageError{
				Msg:        fmt.Sprintf("unexpected argument %q", args[0]),
				Suggestion: installer.Suggest(args[0], []string{"version", "help"}),
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, f)
		},
	}
	f.bind(cmd)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &installer.UsageError{Msg: err.Error()}
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "editor-kit %s\n", version)
		},
	})
	return cmd
}

func main() {
	err := newRootCmd().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	cleanup.Run()
	os.Exit(installer.ExitCode(err))
}
