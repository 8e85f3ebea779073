// Package reconcile maps annotation ranges, computed against the original block
// source, onto the display tokens of the directive-free text.
//
// Every display token that partially overlaps an annotation is split into up to
// three tokens (before, overlap, after). The overlap token carries an extra type and
// a back-reference to the annotation. Token contents are never lost or duplicated:
// the split tokens of one original token always concatenate back to it.
package reconcile

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/walteh/gotwoslash/pkg/directive"
	"github.com/walteh/gotwoslash/pkg/highlight"
	"github.com/walteh/gotwoslash/pkg/position"
	"github.com/walteh/gotwoslash/pkg/twoslash"
)

const (
	// HoverType marks a token that carries a query.
	HoverType = "twoslash-hover"
	// ErrorType marks a token that carries an error.
	ErrorType = "twoslash-error"
)

// Token is a display token with a stable key and an optional annotation reference.
type Token struct {
	Content string        `json:"content"`
	Types   []string      `json:"types"`
	Key     string        `json:"key"`
	Ref     *twoslash.Ref `json:"ref,omitempty"`
}

// Enabled is the render-side gate: the block meta must carry both the opt-in marker
// and the processed flag set by the extractor.
func Enabled(meta string) bool {
	return strings.Contains(meta, directive.Marker) && strings.Contains(meta, directive.Processed)
}

type annotationRange struct {
	position.Range
	ref twoslash.Ref
}

// Reconcile returns the enhanced token lines. A nil record yields the input tokens
// with keys only. A record without a line map is read as having nothing stripped.
func Reconcile(ctx context.Context, lines [][]highlight.Token, rec *twoslash.Record) [][]Token {
	byLine := displayRanges(ctx, rec, len(lines))

	out := make([][]Token, len(lines))
	for i, line := range lines {
		out[i] = splitLine(i, line, byLine[i])
	}
	return out
}

// displayRanges remaps annotations from source lines to display lines, drops the ones
// whose line was stripped and orders each line by start. The sort is stable so ties
// keep record order.
func displayRanges(ctx context.Context, rec *twoslash.Record, displayLines int) map[int][]annotationRange {
	byLine := map[int][]annotationRange{}
	if rec == nil {
		return byLine
	}

	lineMap := rec.LineOffsetMap
	if lineMap == nil {
		lineMap = position.Identity(displayLines)
	}

	bySource := map[int][]annotationRange{}
	for _, a := range rec.Annotations() {
		bySource[a.Range.Line] = append(bySource[a.Range.Line], annotationRange{Range: a.Range, ref: a.Ref})
	}

	for i := range displayLines {
		source, ok := lineMap.SourceLine(i)
		if !ok {
			break
		}
		if ranges, ok := bySource[source]; ok {
			sort.SliceStable(ranges, func(a, b int) bool { return ranges[a].Start < ranges[b].Start })
			byLine[i] = ranges
			delete(bySource, source)
		}
	}

	for _, ranges := range bySource {
		for _, r := range ranges {
			zerolog.Ctx(ctx).Debug().
				Str("kind", string(r.ref.Kind)).
				Int("index", r.ref.Index).
				Int("source_line", r.Line).
				Msg("dropping annotation on a stripped line")
		}
	}

	return byLine
}

// splitLine splits the tokens of display line lineIndex against ranges, which must be
// sorted by start.
//
// When ranges overlap each other the first one in order wins the shared bytes: every
// overlap starts no earlier than the end of the previous one on the same token, so
// no byte is tagged twice.
func splitLine(lineIndex int, tokens []highlight.Token, ranges []annotationRange) []Token {
	out := make([]Token, 0, len(tokens))

	charPosition := 0
	for tokenIndex, token := range tokens {
		tokenStart := charPosition
		tokenEnd := charPosition + len(token.Content)
		charPosition = tokenEnd

		overlapping := overlaps(ranges, tokenStart, tokenEnd)
		if len(overlapping) == 0 {
			out = append(out, Token{
				Content: token.Content,
				Types:   slices.Clone(token.Types),
				Key:     fmt.Sprintf("%d-%d", lineIndex, tokenIndex),
			})
			continue
		}

		slice := func(from, to int) string {
			return token.Content[from-tokenStart : to-tokenStart]
		}

		currentPos := tokenStart
		for _, r := range overlapping {
			lo, hi := r.Intersect(tokenStart, tokenEnd)
			overlapStart := max(runeStartAtOrBefore(token.Content, tokenStart, lo), currentPos)
			overlapEnd := runeStartAtOrAfter(token.Content, tokenStart, hi)
			if overlapStart >= overlapEnd {
				continue
			}

			if currentPos < overlapStart {
				out = append(out, Token{
					Content: slice(currentPos, overlapStart),
					Types:   slices.Clone(token.Types),
					Key:     fmt.Sprintf("%d-%d-before-%d", lineIndex, tokenIndex, currentPos),
				})
			}

			ref := r.ref
			out = append(out, Token{
				Content: slice(overlapStart, overlapEnd),
				Types:   append(slices.Clone(token.Types), tagFor(ref.Kind)),
				Key:     fmt.Sprintf("%d-%d-overlap-%d", lineIndex, tokenIndex, overlapStart),
				Ref:     &ref,
			})

			currentPos = overlapEnd
		}

		if currentPos < tokenEnd {
			out = append(out, Token{
				Content: slice(currentPos, tokenEnd),
				Types:   slices.Clone(token.Types),
				Key:     fmt.Sprintf("%d-%d-after-%d", lineIndex, tokenIndex, currentPos),
			})
		}
	}

	return out
}

// Split points that fall inside a multi-byte rune are widened to cover the whole
// rune so the emitted content stays valid UTF-8.
func runeStartAtOrBefore(content string, base, pos int) int {
	for pos > base && pos-base < len(content) && !utf8.RuneStart(content[pos-base]) {
		pos--
	}
	return pos
}

func runeStartAtOrAfter(content string, base, pos int) int {
	for pos-base < len(content) && !utf8.RuneStart(content[pos-base]) {
		pos++
	}
	return pos
}

func overlaps(ranges []annotationRange, tokenStart, tokenEnd int) []annotationRange {
	var out []annotationRange
	for _, r := range ranges {
		if r.Overlaps(tokenStart, tokenEnd) {
			out = append(out, r)
		}
	}
	return out
}

func tagFor(kind twoslash.Kind) string {
	if kind == twoslash.KindError {
		return ErrorType
	}
	return HoverType
}
