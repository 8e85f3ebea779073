// Package setup holds the flags and wiring shared by every twoslash subcommand.
package setup

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/gotwoslash/pkg/analyzer"
	"github.com/walteh/gotwoslash/pkg/analyzer/rpc"
	"github.com/walteh/gotwoslash/pkg/config"
	"github.com/walteh/gotwoslash/pkg/debug"
	"github.com/walteh/gotwoslash/pkg/extract"
	"github.com/walteh/gotwoslash/pkg/highlight"
	"github.com/walteh/gotwoslash/pkg/markdown"
)

type Flags struct {
	ConfigPath  string
	AnalyzerCmd string
	Debug       bool
}

func (f *Flags) Register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.ConfigPath, "config", "", "path to an .hcl or .yaml config file")
	cmd.Flags().StringVar(&f.AnalyzerCmd, "analyzer-cmd", "", "command line of the analyzer process, overrides the config")
	cmd.Flags().BoolVar(&f.Debug, "debug", false, "enable debug logging")
}

// Logger attaches the command line logger to ctx.
func (f *Flags) Logger(ctx context.Context) context.Context {
	logger := debug.NewLogger(debug.LogOptions{
		Out:   os.Stderr,
		Debug: f.Debug,
		Color: isatty.IsTerminal(os.Stderr.Fd()),
		RunID: xid.New().String(),
	})
	return logger.WithContext(ctx)
}

// Pipeline is a ready markdown extension and the analyzer process behind it.
type Pipeline struct {
	Extension *markdown.Extension
	Tokenizer highlight.Tokenizer
	client    *rpc.Client
}

func (p *Pipeline) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

// Build loads the config and starts the analyzer. A missing or broken analyzer is
// not an error: blocks then render without annotations.
func (f *Flags) Build(ctx context.Context) (*Pipeline, error) {
	var cfg *config.Config
	if f.ConfigPath != "" {
		loaded, err := config.Load(f.ConfigPath)
		if err != nil {
			return nil, errors.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	opts, err := cfg.Options()
	if err != nil {
		return nil, errors.Errorf("reading config: %w", err)
	}

	command := cfg.AnalyzerCommand()
	if f.AnalyzerCmd != "" {
		command = strings.Fields(f.AnalyzerCmd)
	}

	p := &Pipeline{}
	loader := analyzer.NewLoader(func(ctx context.Context) (analyzer.Analyzer, error) {
		if len(command) == 0 {
			return nil, errors.New("no analyzer command configured")
		}
		client, err := rpc.Dial(ctx, command)
		if err != nil {
			return nil, err
		}
		p.client = client
		return client, nil
	})

	handle := loader.Load(ctx)
	zerolog.Ctx(ctx).Debug().Bool("available", handle.Available()).Strs("command", command).Msg("analyzer loaded")

	p.Tokenizer = highlight.NewTreeSitter()
	p.Extension = markdown.New(extract.New(handle, opts), p.Tokenizer)
	return p, nil
}

// ReadInput reads a file, or stdin when path is "-".
func ReadInput(cmd *cobra.Command, path string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, errors.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}
