package main

import (
	"context"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/gotwoslash/cmd/twoslash/check"
	"github.com/walteh/gotwoslash/cmd/twoslash/extract"
	"github.com/walteh/gotwoslash/cmd/twoslash/hover"
	"github.com/walteh/gotwoslash/cmd/twoslash/render"
)

func main() {
	if err := run(); err != nil {
		println(err.Error())
		os.Exit(1)
	}
}

func run() error {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		return errors.Errorf("failed to execute command: %w", err)
	}

	return nil
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "twoslash",
		Short:         "annotate markdown code blocks with inferred types and compiler errors",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		rootCmd.Version = "unknown"
	} else {
		rootCmd.Version = info.Main.Version
	}

	cmdVersion := &cobra.Command{
		Use: "raw-version",
		Run: func(cmdz *cobra.Command, args []string) {
			cmdz.Println(rootCmd.Version)
		},
		Hidden: true,
	}

	rootCmd.AddCommand(cmdVersion)

	rootCmd.AddCommand(render.NewRenderCommand())
	rootCmd.AddCommand(extract.NewExtractCommand())
	rootCmd.AddCommand(check.NewCheckCommand())
	rootCmd.AddCommand(hover.NewHoverCommand())

	return rootCmd
}
