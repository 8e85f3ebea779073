package position

import (
	"sort"

	"gitlab.com/tozd/go/errors"
)

// LineMap maps a display line index (the slice index) to the source line it came
// from. Values are strictly increasing.
type LineMap []int

// BuildLineMap returns the map for a source whose lines are kept where keep[i] is true.
func BuildLineMap(keep []bool) LineMap {
	m := make(LineMap, 0, len(keep))
	for i, k := range keep {
		if k {
			m = append(m, i)
		}
	}
	return m
}

// Identity returns a map for n lines where nothing was removed.
func Identity(n int) LineMap {
	m := make(LineMap, n)
	for i := range m {
		m[i] = i
	}
	return m
}

// SourceLine returns the source line shown at the given display line.
func (m LineMap) SourceLine(display int) (int, bool) {
	if display < 0 || display >= len(m) {
		return 0, false
	}
	return m[display], true
}

// DisplayLine returns the display line that shows the given source line. The second
// result is false when that source line was stripped.
func (m LineMap) DisplayLine(source int) (int, bool) {
	i := sort.SearchInts(m, source)
	if i < len(m) && m[i] == source {
		return i, true
	}
	return 0, false
}

func (m LineMap) Validate() error {
	for i := 1; i < len(m); i++ {
		if m[i] <= m[i-1] {
			return errors.Errorf("line map not strictly increasing at display line %d (%d <= %d)", i, m[i], m[i-1])
		}
	}
	if len(m) > 0 && m[0] < 0 {
		return errors.Errorf("line map has negative source line %d", m[0])
	}
	return nil
}
