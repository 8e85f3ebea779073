package position_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/gotwoslash/pkg/position"
)

func TestLineAndColumn(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		offset   int
		wantLine int
		wantCol  int
	}{
		{
			name:     "empty text",
			text:     "",
			offset:   0,
			wantLine: 0,
			wantCol:  0,
		},
		{
			name:     "single line, middle position",
			text:     "const x = 1;",
			offset:   6,
			wantLine: 0,
			wantCol:  6,
		},
		{
			name:     "second line",
			text:     "const x = 1;\nconst y = x;",
			offset:   19,
			wantLine: 1,
			wantCol:  6,
		},
		{
			name:     "right after newline",
			text:     "a\nb",
			offset:   2,
			wantLine: 1,
			wantCol:  0,
		},
		{
			name:     "offset past end is clamped",
			text:     "ab\ncd",
			offset:   99,
			wantLine: 1,
			wantCol:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, col := position.LineAndColumn(tt.text, tt.offset)
			assert.Equal(t, tt.wantLine, line, "line")
			assert.Equal(t, tt.wantCol, col, "column")
		})
	}
}

func TestRangeOverlaps(t *testing.T) {
	r := position.NewRange(0, 6, 1)

	assert.True(t, r.Overlaps(6, 7))
	assert.True(t, r.Overlaps(0, 12))
	assert.False(t, r.Overlaps(0, 6), "touching start does not overlap")
	assert.False(t, r.Overlaps(7, 9), "touching end does not overlap")

	lo, hi := r.Intersect(0, 12)
	assert.Equal(t, 6, lo)
	assert.Equal(t, 7, hi)

	lo, hi = position.Range{Start: 10, End: 4}.Intersect(0, 20)
	assert.Equal(t, lo, hi, "inverted ranges intersect to empty")
}

func TestByteColumn(t *testing.T) {
	tests := []struct {
		name string
		text string
		col  int
		want int
	}{
		{"ascii", "const x = 1;", 6, 6},
		{"start", "é", 0, 0},
		{"after two byte rune", `s = "é";`, 6, 7},
		{"after surrogate pair", `"😀" + x`, 6, 8},
		{"inside surrogate pair", "😀x", 1, 4},
		{"past end keeps excess", "ab", 5, 5},
		{"past end after multibyte", "é", 3, 4},
		{"negative", "abc", -1, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, position.ByteColumn(tt.text, tt.col))
		})
	}
}

func TestLineMap(t *testing.T) {
	m := position.BuildLineMap([]bool{true, false, true, true, false})
	require.Equal(t, position.LineMap{0, 2, 3}, m)
	require.NoError(t, m.Validate())

	for display, source := range m {
		got, ok := m.DisplayLine(source)
		require.True(t, ok)
		assert.Equal(t, display, got)

		back, ok := m.SourceLine(display)
		require.True(t, ok)
		assert.Equal(t, source, back)
	}

	_, ok := m.DisplayLine(1)
	assert.False(t, ok, "stripped lines are unmappable")
	_, ok = m.DisplayLine(4)
	assert.False(t, ok)
	_, ok = m.SourceLine(3)
	assert.False(t, ok)

	assert.Equal(t, position.LineMap{0, 1, 2}, position.Identity(3))
	assert.Error(t, position.LineMap{0, 2, 2}.Validate())
}
