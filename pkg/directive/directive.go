// Package directive recognizes the comment directives that opt a code block into
// twoslash processing and strips them from the text that is shown to readers.
package directive

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/walteh/gotwoslash/pkg/position"
)

const (
	// Marker opts a block in when it appears in the meta or language string.
	Marker = "twoslash"

	// Processed and Failed are appended to a block's meta by the extractor.
	Processed = "twoslash-processed"
	Failed    = "twoslash-error"

	errorsPrefix = "// @errors:"
)

var (
	queryLine  = regexp.MustCompile(`^//\s*\^\?`)
	langSuffix = regexp.MustCompile(`\s+` + Marker + `.*$`)
)

// DefaultThemes is the default allow-list of languages eligible for annotation.
var DefaultThemes = []string{"typescript", "javascript", "jsx", "tsx"}

// NormalizeLanguage lower-cases a language tag and removes a "language-" prefix and
// any trailing " twoslash ..." suffix.
func NormalizeLanguage(lang string) string {
	lang = strings.TrimSpace(strings.ToLower(lang))
	lang = strings.TrimPrefix(lang, "language-")
	lang = langSuffix.ReplaceAllString(lang, "")
	return strings.TrimSpace(lang)
}

// IsQueryLine reports whether a line is an inline query marker such as "//    ^?".
func IsQueryLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed == "^?" || queryLine.MatchString(trimmed)
}

// IsErrorsLine reports whether a line is an "// @errors: ..." directive.
func IsErrorsLine(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), errorsPrefix)
}

// IsDirective reports whether a line is removed from the display text.
func IsDirective(line string) bool {
	return IsQueryLine(line) || IsErrorsLine(line)
}

// HasInlineQuery reports whether any line of source is an inline query marker.
func HasInlineQuery(source string) bool {
	for _, line := range strings.Split(source, "\n") {
		if IsQueryLine(line) {
			return true
		}
	}
	return false
}

// Eligible is the strict opt-in gate: the normalized language must be allowed and
// the marker must be present in the meta, the language string or as an inline query.
func Eligible(lang, meta, source string, themes []string) bool {
	if source == "" {
		return false
	}

	if !slices.Contains(themes, NormalizeLanguage(lang)) {
		return false
	}

	return strings.Contains(meta, Marker) ||
		strings.Contains(lang, Marker) ||
		HasInlineQuery(source)
}

// ExpectedErrors collects the diagnostic codes listed by every "// @errors:" line.
// Entries that are not integers are dropped.
func ExpectedErrors(source string) []int {
	codes := []int{}
	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, errorsPrefix) {
			continue
		}
		for _, entry := range strings.Split(strings.TrimPrefix(trimmed, errorsPrefix), ",") {
			code, err := strconv.Atoi(strings.TrimSpace(entry))
			if err != nil {
				continue
			}
			codes = append(codes, code)
		}
	}
	return codes
}

// Strip removes directive lines and returns the display text together with the map
// from display lines back to source lines.
func Strip(source string) (string, position.LineMap) {
	lines := strings.Split(source, "\n")
	keep := make([]bool, len(lines))
	kept := make([]string, 0, len(lines))
	for i, line := range lines {
		if IsDirective(line) {
			continue
		}
		keep[i] = true
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n"), position.BuildLineMap(keep)
}

// MarkMeta appends flag to meta unless it is already present.
func MarkMeta(meta, flag string) string {
	if HasFlag(meta, flag) {
		return meta
	}
	return strings.TrimSpace(meta + " " + flag)
}

// HasFlag reports whether meta contains flag as a whitespace separated field.
func HasFlag(meta, flag string) bool {
	for _, field := range strings.Fields(meta) {
		if field == flag {
			return true
		}
	}
	return false
}
