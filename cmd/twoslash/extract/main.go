package extract

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/gotwoslash/cmd/twoslash/setup"
	pkg_extract "github.com/walteh/gotwoslash/pkg/extract"
	"github.com/walteh/gotwoslash/pkg/twoslash"
)

type Handler struct {
	setup.Flags
	path string
}

func NewExtractCommand() *cobra.Command {
	me := &Handler{}

	cmd := &cobra.Command{
		Use:   "extract <file.md|->",
		Short: "print the annotation record of every code block as json",
		Args:  cobra.ExactArgs(1),
	}

	me.Register(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		me.path = args[0]
		return me.Run(me.Logger(cmd.Context()), cmd)
	}

	return cmd
}

type blockOutput struct {
	Index  int                `json:"index"`
	Lang   string             `json:"lang"`
	Meta   string             `json:"meta"`
	Status pkg_extract.Status `json:"status"`
	Record *twoslash.Record   `json:"record,omitempty"`
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

	out := make([]blockOutput, len(results))
	for i, res := range results {
		out[i] = blockOutput{
			Index:  i,
			Lang:   res.Block.Lang,
			Meta:   res.Block.Meta,
			Status: res.Status,
			Record: res.Record,
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return errors.Errorf("writing json: %w", err)
	}

	return nil
}
