package markdown_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/gotwoslash/pkg/analyzer"
	"github.com/walteh/gotwoslash/pkg/extract"
	"github.com/walteh/gotwoslash/pkg/highlight"
	"github.com/walteh/gotwoslash/pkg/markdown"
	"github.com/walteh/gotwoslash/pkg/twoslash"
)

func intp(v int) *int { return &v }

const doc = "# Demo\n\n" +
	"```ts twoslash title=\"demo.ts\"\n" +
	"const x = 1;\n" +
	"//    ^?\n" +
	"```\n\n" +
	"```go\n" +
	"x := 1 < 2\n" +
	"```\n\n" +
	"```typescript\n" +
	"const y = 2;\n" +
	"```\n"

func queryAnalyzer() analyzer.Analyzer {
	return analyzer.Func(func(ctx context.Context, req analyzer.Request) (*analyzer.Result, error) {
		if strings.Contains(req.Code, "boom") {
			return nil, errors.New("compiler exploded")
		}
		return &analyzer.Result{
			Queries: []analyzer.Annotation{{Line: intp(0), Start: intp(6), Length: 1, Text: "const x: 1"}},
		}, nil
	})
}

func newExtension(h *analyzer.Handle) *markdown.Extension {
	opts := extract.DefaultOptions()
	opts.Themes = []string{"ts", "typescript"}
	return markdown.New(extract.New(h, opts), highlight.NewTreeSitter())
}

func TestBlocks(t *testing.T) {
	blocks := markdown.Blocks([]byte(doc))

	assert.Equal(t, []extract.Block{
		{Lang: "ts", Meta: `twoslash title="demo.ts"`, Source: "const x = 1;\n//    ^?"},
		{Lang: "go", Meta: "", Source: "x := 1 < 2"},
		{Lang: "typescript", Meta: "", Source: "const y = 2;"},
	}, blocks)
}

func TestConvert(t *testing.T) {
	var buf bytes.Buffer
	err := newExtension(analyzer.Ready(queryAnalyzer())).Convert(context.Background(), []byte(doc), &buf)
	require.NoError(t, err)

	html := buf.String()
	assert.Contains(t, html, "<h1>Demo</h1>")
	assert.Contains(t, html, `<div class="codeBlockTitle">demo.ts</div>`)
	assert.Contains(t, html, `<pre class="codeBlock twoslash-block language-ts">`)
	assert.Contains(t, html, `data-twoslash-query-index="0" data-twoslash-hover="const x: 1">x</span>`)
	assert.NotContains(t, html, "^?", "directive lines are not displayed")

	assert.Contains(t, html, `<pre class="codeBlock language-go">`)
	assert.Contains(t, html, `&lt;`)
	assert.Contains(t, html, `<pre class="codeBlock language-typescript">`)
	assert.Equal(t, 1, strings.Count(html, "data-twoslash-query-index"))
}

func TestConvertUnavailableAnalyzer(t *testing.T) {
	var buf bytes.Buffer
	err := newExtension(analyzer.Unavailable(errors.New("no node"))).Convert(context.Background(), []byte(doc), &buf)
	require.NoError(t, err)

	html := buf.String()
	assert.NotContains(t, html, "twoslash-block")
	assert.NotContains(t, html, "data-twoslash")
	assert.Contains(t, html, "^?", "unannotated blocks keep their raw text")
}

func TestConvertFailedBlock(t *testing.T) {
	src := "```ts twoslash\n// @errors: 2322\nconst boom = 1;\n//    ^?\n```\n\n```ts twoslash\nconst x = 1;\n```\n"

	var buf bytes.Buffer
	err := newExtension(analyzer.Ready(queryAnalyzer())).Convert(context.Background(), []byte(src), &buf)
	require.NoError(t, err)

	html := buf.String()
	assert.Contains(t, html, `data-twoslash-failure="compiler exploded"`)
	assert.Contains(t, html, "boom")
	assert.NotContains(t, html, "^?", "directive lines are stripped from failed blocks")
	assert.NotContains(t, html, "@errors")
	assert.Equal(t, 1, strings.Count(html, "data-twoslash-query-index"), "the healthy block is still annotated")
}

func TestConvertNonASCII(t *testing.T) {
	src := "```ts twoslash\nconst s = \"é\";\n```\n"
	a := analyzer.Func(func(ctx context.Context, req analyzer.Request) (*analyzer.Result, error) {
		return &analyzer.Result{
			Queries: []analyzer.Annotation{{Line: intp(0), Character: intp(11), Length: 1, Text: `"é"`}},
		}, nil
	})

	var buf bytes.Buffer
	err := newExtension(analyzer.Ready(a)).Convert(context.Background(), []byte(src), &buf)
	require.NoError(t, err)

	html := buf.Bytes()
	assert.True(t, utf8.Valid(html), "html is valid utf-8")
	assert.Contains(t, string(html), `data-twoslash-query-index="0"`)
	assert.Contains(t, string(html), `>é</span>`)
}

func TestExtract(t *testing.T) {
	results, err := newExtension(analyzer.Ready(queryAnalyzer())).Extract(context.Background(), []byte(doc))
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, extract.StatusProcessed, results[0].Status)
	assert.Equal(t, `twoslash title="demo.ts" twoslash-processed`, results[0].Block.Meta)
	assert.Equal(t, []twoslash.Query{{Line: 0, Start: 6, Length: 1, Text: "const x: 1"}}, results[0].Record.Queries)
	assert.Equal(t, extract.StatusSkipped, results[1].Status)
	assert.Equal(t, extract.StatusSkipped, results[2].Status)
}

func TestView(t *testing.T) {
	ctx := context.Background()
	rec := twoslash.Normalize("const x = 1;\n//    ^?", "ts", &analyzer.Result{
		Queries: []analyzer.Annotation{{Line: intp(0), Start: intp(6), Length: 1, Text: "const x: 1"}},
	})
	block := extract.Block{Lang: "ts", Meta: "twoslash", Source: rec.SourceText}

	t.Run("gate closed without processed flag", func(t *testing.T) {
		view, err := markdown.View(ctx, highlight.NewTreeSitter(), block, rec)
		require.NoError(t, err)
		require.Len(t, view.Lines, 2)
		for _, line := range view.Lines {
			for _, tok := range line {
				assert.Nil(t, tok.Ref)
			}
		}
	})

	t.Run("gate open", func(t *testing.T) {
		block := block
		block.Meta = "twoslash twoslash-processed"
		view, err := markdown.View(ctx, highlight.NewTreeSitter(), block, rec)
		require.NoError(t, err)
		require.Len(t, view.Lines, 1)

		var tagged []string
		for _, tok := range view.Lines[0] {
			if tok.Ref != nil {
				tagged = append(tagged, tok.Content)
			}
		}
		assert.Equal(t, []string{"x"}, tagged)
	})
}
