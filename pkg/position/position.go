package position

import (
	"fmt"
	"unicode/utf16"
)

// Range is a half-open byte span [Start, End) on a single line.
type Range struct {
	Line  int
	Start int
	End   int
}

func NewRange(line, start, length int) Range {
	return Range{Line: line, Start: start, End: start + length}
}

func (r Range) Length() int {
	return r.End - r.Start
}

// Overlaps reports whether [start, end) intersects the range. Touching endpoints do not overlap.
func (r Range) Overlaps(start, end int) bool {
	return start < r.End && end > r.Start
}

// Intersect returns the part of the range that falls inside [start, end), clamped so
// that the result is never inverted.
func (r Range) Intersect(start, end int) (int, int) {
	lo := max(r.Start, start)
	hi := min(r.End, end)
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

func (r Range) String() string {
	return fmt.Sprintf("%d:%d-%d", r.Line, r.Start, r.End)
}

// LineAndColumn calculates the zero-based line and column for a byte offset in text.
// Offsets past the end of text are clamped to the end.
func LineAndColumn(text string, offset int) (line, col int) {
	if offset <= 0 {
		return 0, 0
	}
	if offset > len(text) {
		offset = len(text)
	}

	lastNewline := -1
	for i := 0; i < offset; i++ {
		if text[i] == '\n' {
			line++
			lastNewline = i
		}
	}

	return line, offset - lastNewline - 1
}

// ByteColumn converts a column counted in UTF-16 code units, the unit TypeScript
// reports positions in, to a byte offset into text. A column inside a surrogate pair
// moves to the end of that rune. Columns past the end keep their excess so that
// callers can still see the range is out of bounds. Negative columns are returned
// unchanged.
func ByteColumn(text string, col int) int {
	if col < 0 {
		return col
	}
	units := 0
	for i, r := range text {
		if units >= col {
			return i
		}
		units += utf16.RuneLen(r)
	}
	return len(text) + col - units
}
