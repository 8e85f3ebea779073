package hover

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/gotwoslash/cmd/twoslash/setup"
	"github.com/walteh/gotwoslash/pkg/directive"
	pkg_hover "github.com/walteh/gotwoslash/pkg/hover"
	"github.com/walteh/gotwoslash/pkg/markdown"
)

type Handler struct {
	setup.Flags
	path  string
	block int
	at    []string
}

func NewHoverCommand() *cobra.Command {
	me := &Handler{}

	cmd := &cobra.Command{
		Use:   "hover <file.md|->",
		Short: "print the hover shown at a position of an annotated code block",
		Long: "Each --at moves the pointer to a 1-based line:column of the block's displayed text,\n" +
			"columns counted in bytes as check reports them. The annotation shown after the last\n" +
			"move is printed as markdown.",
		Args: cobra.ExactArgs(1),
	}

	me.Register(cmd)
	cmd.Flags().IntVar(&me.block, "block", 0, "index of the code block in the document")
	cmd.Flags().StringSliceVar(&me.at, "at", nil, "pointer position as line:column, repeatable")
	_ = cmd.MarkFlagRequired("at")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		me.path = args[0]
		return me.Run(me.Logger(cmd.Context()), cmd)
	}

	return cmd
}

func parsePosition(s string) (line, col int, err error) {
	l, c, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, errors.Errorf("invalid position %q: want line:column", s)
	}
	line, err = strconv.Atoi(l)
	if err != nil {
		return 0, 0, errors.Errorf("invalid line number: %w", err)
	}
	col, err = strconv.Atoi(c)
	if err != nil {
		return 0, 0, errors.Errorf("invalid column number: %w", err)
	}
	return line, col, nil
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

	results, err := pipeline.Extension.Extract(ctx, src)
	if err != nil {
		return err
	}

	if me.block < 0 || me.block >= len(results) {
		return errors.Errorf("block %d out of range: document has %d code block(s)", me.block, len(results))
	}

	res := results[me.block]
	if res.Record == nil || res.Record.Failed() {
		return errors.Errorf("block %d has no annotations (%s)", me.block, res.Status)
	}

	view, err := markdown.View(ctx, pipeline.Tokenizer, res.Block, res.Record)
	if err != nil {
		return err
	}

	var tracker pkg_hover.Tracker
	for _, at := range me.at {
		line, col, err := parsePosition(at)
		if err != nil {
			return err
		}
		tracker.Move(res.Record, view.Lines, line-1, col-1)
	}

	_, info, ok := tracker.Current()
	if !ok {
		return errors.Errorf("no annotation at %s", me.at[len(me.at)-1])
	}

	if _, err := fmt.Fprintln(cmd.OutOrStdout(), info.Markdown(directive.NormalizeLanguage(res.Block.Lang))); err != nil {
		return errors.Errorf("writing hover: %w", err)
	}
	return nil
}
