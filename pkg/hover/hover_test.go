package hover_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/gotwoslash/pkg/highlight"
	"github.com/walteh/gotwoslash/pkg/hover"
	"github.com/walteh/gotwoslash/pkg/position"
	"github.com/walteh/gotwoslash/pkg/reconcile"
	"github.com/walteh/gotwoslash/pkg/twoslash"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name      string
		info      *hover.Info
		want      []string
		wantRange position.Range
	}{
		{
			name:      "query",
			info:      hover.ForQuery(twoslash.Query{Line: 0, Start: 6, Length: 1, Text: "const x: number"}),
			want:      []string{"const x: number"},
			wantRange: position.Range{Line: 0, Start: 6, End: 7},
		},
		{
			name:      "query with docs",
			info:      hover.ForQuery(twoslash.Query{Line: 2, Start: 0, Length: 3, Text: "function foo(): void", Docs: "  Does foo.\n"}),
			want:      []string{"function foo(): void", "Does foo."},
			wantRange: position.Range{Line: 2, Start: 0, End: 3},
		},
		{
			name:      "error",
			info:      hover.ForError(twoslash.Error{Line: 1, Start: 4, Length: 1, Text: "Cannot find name 'y'.", Code: 2304}),
			want:      []string{"TS2304: Cannot find name 'y'."},
			wantRange: position.Range{Line: 1, Start: 4, End: 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.info.Content)
			assert.Equal(t, tt.wantRange, tt.info.Range)
		})
	}
}

func TestMarkdown(t *testing.T) {
	info := hover.ForQuery(twoslash.Query{Line: 0, Start: 0, Length: 1, Text: "let a: string", Docs: "The a."})
	assert.Equal(t, "```ts\nlet a: string\n```\n\nThe a.", info.Markdown("ts"))
	assert.Equal(t, "let a: string\n\nThe a.", info.String())

	var nilInfo *hover.Info
	assert.Empty(t, nilInfo.Markdown("ts"))
	assert.Empty(t, nilInfo.String())
}

func TestForRef(t *testing.T) {
	rec := &twoslash.Record{
		Queries: []twoslash.Query{{Line: 0, Start: 6, Length: 1, Text: "const x: 1"}},
		Errors:  []twoslash.Error{{Line: 0, Start: 0, Length: 5, Text: "bad", Code: 1005}},
	}

	info, err := hover.ForRef(rec, twoslash.Ref{Kind: twoslash.KindQuery, Index: 0})
	require.NoError(t, err)
	assert.Equal(t, []string{"const x: 1"}, info.Content)

	info, err = hover.ForRef(rec, twoslash.Ref{Kind: twoslash.KindError, Index: 0})
	require.NoError(t, err)
	assert.Equal(t, []string{"TS1005: bad"}, info.Content)

	_, err = hover.ForRef(rec, twoslash.Ref{Kind: twoslash.KindError, Index: 3})
	assert.Error(t, err)

	_, err = hover.ForRef(rec, twoslash.Ref{Kind: "other"})
	assert.Error(t, err)

	_, err = hover.ForRef(nil, twoslash.Ref{Kind: twoslash.KindQuery})
	assert.Error(t, err)
}

func TestTracker(t *testing.T) {
	var tr hover.Tracker

	_, _, ok := tr.Current()
	assert.False(t, ok)

	first := hover.ForQuery(twoslash.Query{Line: 0, Start: 0, Length: 1, Text: "a"})
	second := hover.ForQuery(twoslash.Query{Line: 0, Start: 2, Length: 1, Text: "b"})

	tr.Show(twoslash.Ref{Kind: twoslash.KindQuery, Index: 0}, first)
	tr.Show(twoslash.Ref{Kind: twoslash.KindQuery, Index: 1}, second)

	ref, info, ok := tr.Current()
	require.True(t, ok)
	assert.Equal(t, 1, ref.Index)
	assert.Same(t, second, info)

	tr.Clear()
	_, info, ok = tr.Current()
	assert.False(t, ok)
	assert.Nil(t, info)
}

func TestTrackerMove(t *testing.T) {
	rec := &twoslash.Record{
		DisplayText:   "const x = 1;\nlet y;",
		LineOffsetMap: position.Identity(2),
		Queries:       []twoslash.Query{{Line: 0, Start: 6, Length: 1, Text: "const x: 1"}},
		Errors:        []twoslash.Error{{Line: 1, Start: 4, Length: 1, Text: "Cannot find name 'y'.", Code: 2304}},
	}
	lines := reconcile.Reconcile(context.Background(), highlight.PlainLines(rec.DisplayText), rec)

	tests := []struct {
		name      string
		line, col int
		wantShown bool
		wantRef   twoslash.Ref
		wantText  string
	}{
		{name: "query", line: 0, col: 6, wantShown: true, wantRef: twoslash.Ref{Kind: twoslash.KindQuery, Index: 0}, wantText: "const x: 1"},
		{name: "error replaces query", line: 1, col: 4, wantShown: true, wantRef: twoslash.Ref{Kind: twoslash.KindError, Index: 0}, wantText: "TS2304: Cannot find name 'y'."},
		{name: "plain token clears", line: 0, col: 0},
		{name: "past end of line", line: 0, col: 40},
		{name: "missing line", line: 7, col: 0},
	}

	var tr hover.Tracker
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantShown, tr.Move(rec, lines, tt.line, tt.col))

			ref, info, ok := tr.Current()
			require.Equal(t, tt.wantShown, ok)
			if !tt.wantShown {
				return
			}
			assert.Equal(t, tt.wantRef, ref)
			assert.Equal(t, tt.wantText, info.String())
		})
	}
}
