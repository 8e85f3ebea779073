package render

import (
	"context"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/gotwoslash/cmd/twoslash/setup"
)

type Handler struct {
	setup.Flags
	path string
}

func NewRenderCommand() *cobra.Command {
	me := &Handler{}

	cmd := &cobra.Command{
		Use:   "render <file.md|->",
		Short: "render a markdown file to html with annotated code blocks",
		Args:  cobra.ExactArgs(1),
	}

	me.Register(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		me.path = args[0]
		return me.Run(me.Logger(cmd.Context()), cmd)
	}

	return cmd
}

func (me *Handler) Run(ctx context.Context, cmd *cobra.Command) error {
	src, err := setup.ReadInput(cmd, me.path)
	if err != nil {
		return err
	}

	pipeline, err := me.Build(ctx)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	if err := pipeline.Extension.Convert(ctx, src, cmd.OutOrStdout()); err != nil {
		return errors.Errorf("rendering %s: %w", me.path, err)
	}

	return nil
}
