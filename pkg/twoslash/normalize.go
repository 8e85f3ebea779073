package twoslash

import (
	"sort"
	"strings"

	"gitlab.com/tozd/go/errors"
	"go.uber.org/multierr"

	"github.com/walteh/gotwoslash/pkg/analyzer"
	"github.com/walteh/gotwoslash/pkg/directive"
	"github.com/walteh/gotwoslash/pkg/position"
)

const defaultLanguage = "typescript"

// Normalize maps raw analyzer output onto a Record. It is the only place that knows
// about the loose analyzer shape: missing lists become empty, annotations without a
// usable position or with a non-positive length are dropped, and UTF-16 columns
// become byte offsets into the source line.
func Normalize(source, lang string, res *analyzer.Result) *Record {
	rec := newRecord(source, lang)
	if res == nil {
		return rec
	}

	rec.StaticQuickInfos = res.StaticQuickInfos
	rec.Highlights = res.Highlights

	lines := strings.Split(source, "\n")

	for _, raw := range res.Queries {
		line, start, length, ok := locate(source, lines, raw)
		if !ok {
			continue
		}
		rec.Queries = append(rec.Queries, Query{
			Line:   line,
			Start:  start,
			Length: length,
			Text:   raw.Text,
			Docs:   raw.Docs,
		})
	}

	for _, raw := range res.Errors {
		line, start, length, ok := locate(source, lines, raw)
		if !ok {
			continue
		}
		text := raw.Text
		if text == "" {
			text = raw.RenderedMessage
		}
		rec.Errors = append(rec.Errors, Error{
			Line:   line,
			Start:  start,
			Length: length,
			Text:   text,
			Docs:   raw.Docs,
			Code:   raw.Code,
		})
	}

	return rec
}

// Failed builds the error-marked record for a block whose analysis failed.
func Failed(source, lang string, cause error) *Record {
	rec := newRecord(source, lang)
	rec.Failure = "unknown failure"
	if cause != nil {
		rec.Failure = cause.Error()
	}
	return rec
}

func newRecord(source, lang string) *Record {
	if lang == "" {
		lang = defaultLanguage
	}
	display, lines := directive.Strip(source)
	return &Record{
		SourceText:    source,
		DisplayText:   display,
		LineOffsetMap: lines,
		Queries:       []Query{},
		Errors:        []Error{},
		Language:      lang,
	}
}

func locate(source string, lines []string, raw analyzer.Annotation) (line, start, length int, ok bool) {
	if raw.Length <= 0 {
		return 0, 0, 0, false
	}

	if raw.Line == nil {
		if raw.Start == nil {
			return 0, 0, 0, false
		}
		from := position.ByteColumn(source, *raw.Start)
		to := position.ByteColumn(source, *raw.Start+raw.Length)
		line, start = position.LineAndColumn(source, from)
		return line, start, to - from, true
	}

	var col int
	switch {
	case raw.Character != nil:
		col = *raw.Character
	case raw.Offset != nil:
		col = *raw.Offset
	case raw.Start != nil:
		col = *raw.Start
	default:
		return 0, 0, 0, false
	}

	line = *raw.Line
	if line < 0 || line >= len(lines) {
		return line, col, raw.Length, true
	}
	start = position.ByteColumn(lines[line], col)
	return line, start, position.ByteColumn(lines[line], col+raw.Length) - start, true
}

// Validate reports every violated invariant of the record. A record that fails
// validation is still safe to reconcile.
func (r *Record) Validate() error {
	if r == nil {
		return errors.New("nil record")
	}

	var errs error

	if err := r.LineOffsetMap.Validate(); err != nil {
		errs = multierr.Append(errs, err)
	}

	displayLines := 0
	if r.DisplayText != "" || len(r.LineOffsetMap) > 0 {
		displayLines = strings.Count(r.DisplayText, "\n") + 1
	}
	if displayLines != len(r.LineOffsetMap) {
		errs = multierr.Append(errs, errors.Errorf("display text has %d lines but line map has %d entries", displayLines, len(r.LineOffsetMap)))
	}

	sourceLines := strings.Split(r.SourceText, "\n")
	byLine := map[int][]Annotation{}

	for _, a := range r.Annotations() {
		rg := a.Range
		switch {
		case rg.Line < 0 || rg.Line >= len(sourceLines):
			errs = multierr.Append(errs, errors.Errorf("%s %d: line %d out of range", a.Ref.Kind, a.Ref.Index, rg.Line))
			continue
		case rg.Start < 0 || rg.Length() <= 0:
			errs = multierr.Append(errs, errors.Errorf("%s %d: invalid range %s", a.Ref.Kind, a.Ref.Index, rg))
			continue
		case rg.End > len(sourceLines[rg.Line]):
			errs = multierr.Append(errs, errors.Errorf("%s %d: range %s past end of line (%d bytes)", a.Ref.Kind, a.Ref.Index, rg, len(sourceLines[rg.Line])))
			continue
		}
		byLine[rg.Line] = append(byLine[rg.Line], a)
	}

	lines := make([]int, 0, len(byLine))
	for line := range byLine {
		lines = append(lines, line)
	}
	sort.Ints(lines)

	for _, line := range lines {
		anns := byLine[line]
		sort.SliceStable(anns, func(i, j int) bool { return anns[i].Range.Start < anns[j].Range.Start })
		widest := anns[0]
		for _, a := range anns[1:] {
			if a.Range.Start < widest.Range.End {
				errs = multierr.Append(errs, errors.Errorf("%s %d overlaps %s %d on line %d", a.Ref.Kind, a.Ref.Index, widest.Ref.Kind, widest.Ref.Index, line))
			}
			if a.Range.End > widest.Range.End {
				widest = a
			}
		}
	}

	return errs
}
