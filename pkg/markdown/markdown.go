// Package markdown hosts the extractor and the reconciler inside goldmark: a parser
// transformer annotates fenced code blocks after parsing, and a node renderer
// highlights, reconciles and writes them.
package markdown

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/gotwoslash/pkg/extract"
	"github.com/walteh/gotwoslash/pkg/highlight"
	"github.com/walteh/gotwoslash/pkg/reconcile"
	"github.com/walteh/gotwoslash/pkg/render"
	"github.com/walteh/gotwoslash/pkg/twoslash"
)

// Extension is a goldmark.Extender. It is safe to reuse across documents.
type Extension struct {
	extractor *extract.Extractor
	tokenizer highlight.Tokenizer
	ctx       context.Context
}

var _ goldmark.Extender = (*Extension)(nil)

func New(extractor *extract.Extractor, tokenizer highlight.Tokenizer) *Extension {
	if tokenizer == nil {
		tokenizer = highlight.NewTreeSitter()
	}
	return &Extension{extractor: extractor, tokenizer: tokenizer}
}

// WithContext returns a copy of the extension whose transformer and renderer log to
// and are cancelled by ctx.
func (e *Extension) WithContext(ctx context.Context) *Extension {
	cp := *e
	cp.ctx = ctx
	return &cp
}

func (e *Extension) context() context.Context {
	if e.ctx == nil {
		return context.Background()
	}
	return e.ctx
}

func (e *Extension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithASTTransformers(util.Prioritized(&transformer{ext: e}, 100)))
	m.Renderer().AddOptions(renderer.WithNodeRenderers(util.Prioritized(&codeBlockRenderer{ext: e}, 100)))
}

// Convert renders a markdown document to HTML with every opted-in block annotated.
func (e *Extension) Convert(ctx context.Context, src []byte, w io.Writer) error {
	md := goldmark.New(goldmark.WithExtensions(e.WithContext(ctx)))
	if err := md.Convert(src, w); err != nil {
		return errors.Errorf("converting markdown: %w", err)
	}
	return ctx.Err()
}

// Extract runs only the build-time half over every fenced block of src.
func (e *Extension) Extract(ctx context.Context, src []byte) ([]extract.Result, error) {
	results, err := e.extractor.ExtractAll(ctx, Blocks(src))
	if err != nil {
		return nil, errors.Errorf("extracting blocks: %w", err)
	}
	return results, nil
}

// Blocks lists the fenced code blocks of src in document order.
func Blocks(src []byte) []extract.Block {
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))
	nodes := fencedBlocks(doc)
	blocks := make([]extract.Block, len(nodes))
	for i, n := range nodes {
		blocks[i] = blockOf(n, src)
	}
	return blocks
}

func fencedBlocks(doc ast.Node) []*ast.FencedCodeBlock {
	var out []*ast.FencedCodeBlock
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if fb, ok := n.(*ast.FencedCodeBlock); ok {
			out = append(out, fb)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return out
}

// blockOf splits the info string into the language and the remaining meta.
func blockOf(n *ast.FencedCodeBlock, src []byte) extract.Block {
	var lang, meta string
	if n.Info != nil {
		info := strings.TrimSpace(string(n.Info.Segment.Value(src)))
		lang = string(n.Language(src))
		meta = strings.TrimSpace(strings.TrimPrefix(info, lang))
	}

	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}

	return extract.Block{Lang: lang, Meta: meta, Source: strings.TrimSuffix(buf.String(), "\n")}
}

type transformer struct {
	ext *Extension
}

func (t *transformer) Transform(doc *ast.Document, reader text.Reader, _ parser.Context) {
	ctx := t.ext.context()
	src := reader.Source()

	nodes := fencedBlocks(doc)
	if len(nodes) == 0 {
		return
	}

	blocks := make([]extract.Block, len(nodes))
	for i, n := range nodes {
		blocks[i] = blockOf(n, src)
	}

	results, err := t.ext.extractor.ExtractAll(ctx, blocks)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("extraction interrupted")
	}

	for i, res := range results {
		if res.Record == nil {
			continue
		}
		encoded, err := twoslash.Encode(res.Record)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Int("block", i).Msg("encoding annotation record")
			continue
		}
		nodes[i].SetAttributeString(twoslash.MetaAttribute, []byte(res.Block.Meta))
		nodes[i].SetAttributeString(twoslash.Attribute, []byte(encoded))
	}
}

type codeBlockRenderer struct {
	ext *Extension
}

func (r *codeBlockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCodeBlock)
}

func (r *codeBlockRenderer) renderFencedCodeBlock(w util.BufWriter, src []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	ctx := r.ext.context()
	n := node.(*ast.FencedCodeBlock)
	block := blockOf(n, src)

	if v, ok := n.AttributeString(twoslash.MetaAttribute); ok {
		if meta, ok := v.([]byte); ok {
			block.Meta = string(meta)
		}
	}

	var rec *twoslash.Record
	if v, ok := n.AttributeString(twoslash.Attribute); ok {
		decoded, err := twoslash.Decode(v)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("ignoring unreadable annotation record")
		} else {
			rec = decoded
		}
	}

	view, err := View(ctx, r.ext.tokenizer, block, rec)
	if err != nil {
		return ast.WalkStop, err
	}

	if err := render.Block(ctx, w, view); err != nil {
		return ast.WalkStop, err
	}

	return ast.WalkSkipChildren, nil
}

// View is the render boundary for one block. Blocks that pass the render gate show
// the directive-free text with annotated tokens and failed blocks show it without
// annotations; every other block shows its raw text unchanged.
func View(ctx context.Context, tokenizer highlight.Tokenizer, b extract.Block, rec *twoslash.Record) (render.BlockView, error) {
	view := render.BlockView{Lang: b.Lang, Meta: b.Meta, Record: rec}

	annotate := reconcile.Enabled(b.Meta) && rec != nil && !rec.Failed()

	code := b.Source
	if annotate || rec.Failed() {
		code = rec.DisplayText
	}

	lines, err := tokenizer.Tokenize(ctx, b.Lang, code)
	if err != nil {
		return view, errors.Errorf("tokenizing %s block: %w", b.Lang, err)
	}

	if annotate {
		view.Lines = reconcile.Reconcile(ctx, lines, rec)
	} else {
		view.Lines = reconcile.Reconcile(ctx, lines, nil)
	}

	return view, nil
}
