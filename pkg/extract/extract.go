// Package extract runs the analyzer over opted-in code blocks at build time and
// attaches the resulting annotation record to each of them.
package extract

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/walteh/gotwoslash/pkg/analyzer"
	"github.com/walteh/gotwoslash/pkg/directive"
	"github.com/walteh/gotwoslash/pkg/twoslash"
)

// Block is one fenced code block as the host sees it.
type Block struct {
	Lang   string `json:"lang"`
	Meta   string `json:"meta"`
	Source string `json:"source"`
}

type Status string

const (
	// StatusSkipped blocks are not opted in and pass through untouched.
	StatusSkipped Status = "skipped"
	// StatusUnavailable blocks were opted in but no analyzer could be loaded.
	StatusUnavailable Status = "unavailable"
	StatusProcessed   Status = "processed"
	StatusFailed      Status = "failed"
)

// Result is the outcome for one block. Block.Meta carries the updated meta string;
// Record is nil unless Status is processed or failed.
type Result struct {
	Block  Block            `json:"block"`
	Status Status           `json:"status"`
	Record *twoslash.Record `json:"record,omitempty"`
}

type Options struct {
	// Themes is the language allow-list.
	Themes            []string
	CompilerOptions   map[string]any
	IncludeDefaultLib bool
	// Cache memoizes analyzer results for identical requests.
	Cache       bool
	CacheSize   int
	Concurrency int
	// Timeout bounds a single analyzer call; zero means no limit.
	Timeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		Themes:            directive.DefaultThemes,
		CompilerOptions:   map[string]any{},
		IncludeDefaultLib: true,
		Cache:             true,
		CacheSize:         analyzer.DefaultCacheSize,
		Concurrency:       4,
		Timeout:           30 * time.Second,
	}
}

type Extractor struct {
	handle *analyzer.Handle
	opts   Options
}

// New builds an Extractor over handle. When the handle is unavailable every
// opted-in block passes through with StatusUnavailable.
func New(handle *analyzer.Handle, opts Options) *Extractor {
	if opts.Themes == nil {
		opts.Themes = directive.DefaultThemes
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Cache && handle.Available() {
		handle = analyzer.Ready(analyzer.Cached(handle, opts.CacheSize))
	}
	return &Extractor{handle: handle, opts: opts}
}

// Request builds the analyzer request for a block.
func (e *Extractor) Request(b Block) analyzer.Request {
	return analyzer.Request{
		Code:              b.Source,
		Lang:              directive.NormalizeLanguage(b.Lang),
		CompilerOptions:   analyzer.MergeCompilerOptions(e.opts.CompilerOptions),
		ExpectedErrors:    directive.ExpectedErrors(b.Source),
		IncludeDefaultLib: e.opts.IncludeDefaultLib,
	}
}

// Extract processes one block. A failing analyzer never returns an error here: the
// failure is recorded on the block instead.
func (e *Extractor) Extract(ctx context.Context, b Block) Result {
	if !directive.Eligible(b.Lang, b.Meta, b.Source, e.opts.Themes) {
		return Result{Block: b, Status: StatusSkipped}
	}

	if !e.handle.Available() {
		zerolog.Ctx(ctx).Debug().Err(e.handle.Err()).Msg("analyzer unavailable, leaving block unannotated")
		return Result{Block: b, Status: StatusUnavailable}
	}

	out := b
	out.Meta = directive.MarkMeta(b.Meta, directive.Marker)

	req := e.Request(b)

	callCtx := ctx
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := e.handle.Analyze(callCtx, req)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("lang", req.Lang).Msg("twoslash analysis failed")
		out.Meta = directive.MarkMeta(out.Meta, directive.Failed)
		return Result{Block: out, Status: StatusFailed, Record: twoslash.Failed(b.Source, req.Lang, err)}
	}

	rec := twoslash.Normalize(b.Source, req.Lang, res)
	for _, verr := range multierr.Errors(rec.Validate()) {
		zerolog.Ctx(ctx).Warn().Err(verr).Msg("analyzer returned an inconsistent annotation")
	}

	zerolog.Ctx(ctx).Debug().
		Dur("took", time.Since(start)).
		Int("queries", len(rec.Queries)).
		Int("errors", len(rec.Errors)).
		Msg("block annotated")

	out.Meta = directive.MarkMeta(out.Meta, directive.Processed)
	return Result{Block: out, Status: StatusProcessed, Record: rec}
}

// ExtractAll processes blocks concurrently and returns results in input order. One
// block failing never affects another. The returned error is only set when ctx was
// cancelled.
func (e *Extractor) ExtractAll(ctx context.Context, blocks []Block) ([]Result, error) {
	results := make([]Result, len(blocks))

	var g errgroup.Group
	g.SetLimit(e.opts.Concurrency)

	for i, b := range blocks {
		g.Go(func() error {
			blockCtx := zerolog.Ctx(ctx).With().Int("block", i).Logger().WithContext(ctx)
			results[i] = e.Extract(blockCtx, b)
			return nil
		})
	}

	_ = g.Wait()

	return results, ctx.Err()
}
