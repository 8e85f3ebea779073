package check

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/gotwoslash/cmd/twoslash/setup"
	"github.com/walteh/gotwoslash/pkg/diagnostic"
	"github.com/walteh/gotwoslash/pkg/extract"
	"github.com/walteh/gotwoslash/pkg/finder"
)

type Handler struct {
	setup.Flags
	path     string
	patterns []string
	format   string // text, json
}

func NewCheckCommand() *cobra.Command {
	me := &Handler{}

	cmd := &cobra.Command{
		Use:   "check <file.md|dir|->",
		Short: "report the diagnostics of every annotated code block",
		Args:  cobra.ExactArgs(1),
	}

	me.Register(cmd)
	cmd.Flags().StringVar(&me.format, "format", "text", "output format: text or json")
	cmd.Flags().StringSliceVar(&me.patterns, "pattern", finder.DefaultPatterns, "glob patterns of documents to check when the argument is a directory")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		me.path = args[0]
		return me.Run(me.Logger(cmd.Context()), cmd)
	}

	return cmd
}

type blockDiagnostics struct {
	Document    string          `json:"document"`
	Block       int             `json:"block"`
	Diagnostics json.RawMessage `json:"diagnostics"`
}

func (me *Handler) Run(ctx context.Context, cmd *cobra.Command) error {
	if me.format != "text" && me.format != "json" {
		return errors.Errorf("unknown format %q", me.format)
	}

	documents := []string{me.path}
	if me.path != "-" {
		found, err := finder.NewDefaultFinder(nil).FindDocuments(ctx, me.path, me.patterns)
		if err != nil {
			return errors.Errorf("finding documents: %w", err)
		}
		documents = found
	}

	pipeline, err := me.Build(ctx)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	failed := 0
	jsonOut := []blockDiagnostics{}

	for _, doc := range documents {
		src, err := setup.ReadInput(cmd, doc)
		if err != nil {
			return err
		}

		results, err := pipeline.Extension.Extract(ctx, src)
		if err != nil {
			return err
		}

		for i, res := range results {
			if res.Status == extract.StatusUnavailable {
				zerolog.Ctx(ctx).Warn().Str("document", doc).Int("block", i).Msg("block not checked, no analyzer available")
				continue
			}
			if res.Record == nil {
				continue
			}
			if res.Status == extract.StatusFailed {
				failed++
			}

			diags, err := diagnostic.Generate(res.Record)
			if err != nil {
				return errors.Errorf("generating diagnostics for %s block %d: %w", doc, i, err)
			}

			if me.format == "json" {
				data, err := diagnostic.NewVSCodeFormatter().Format(diags)
				if err != nil {
					return errors.Errorf("formatting diagnostics: %w", err)
				}
				jsonOut = append(jsonOut, blockDiagnostics{Document: doc, Block: i, Diagnostics: data})
				continue
			}

			text, err := (&diagnostic.TextFormatter{Name: fmt.Sprintf("%s#%d", doc, i)}).Format(diags)
			if err != nil {
				return errors.Errorf("formatting diagnostics: %w", err)
			}
			if _, err := cmd.OutOrStdout().Write(text); err != nil {
				return errors.Errorf("writing diagnostics: %w", err)
			}
		}
	}

	if me.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(jsonOut); err != nil {
			return errors.Errorf("writing json: %w", err)
		}
	}

	if failed > 0 {
		return errors.Errorf("%d code block(s) failed analysis", failed)
	}

	return nil
}
