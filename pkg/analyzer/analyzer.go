// Package analyzer defines the boundary to the external type analyzer that produces
// twoslash queries and diagnostics for a code block.
package analyzer

import (
	"context"
	"encoding/json"
	"maps"
)

// Analyzer runs the external analysis for one code block.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (*Result, error)
}

// Func adapts a plain function to the Analyzer interface.
type Func func(ctx context.Context, req Request) (*Result, error)

func (f Func) Analyze(ctx context.Context, req Request) (*Result, error) {
	return f(ctx, req)
}

// Request is the call contract: the full block source (directives included), its
// language and the options the analyzer must honor.
type Request struct {
	Code              string         `json:"code"`
	Lang              string         `json:"lang"`
	CompilerOptions   map[string]any `json:"compilerOptions"`
	ExpectedErrors    []int          `json:"expectedErrors"`
	IncludeDefaultLib bool           `json:"includeDefaultLib"`
}

// Result is the raw, loosely shaped answer of an analyzer. Every field is optional;
// twoslash.Normalize turns it into a record.
type Result struct {
	Code             string          `json:"code,omitempty"`
	Queries          []Annotation    `json:"queries,omitempty"`
	Errors           []Annotation    `json:"errors,omitempty"`
	StaticQuickInfos json.RawMessage `json:"staticQuickInfos,omitempty"`
	Highlights       json.RawMessage `json:"highlights,omitempty"`
}

// Annotation is a raw query or error. Analyzers disagree on how they name the column,
// so Character, Offset and Start are all accepted. When Line is absent, Start is read
// as an absolute offset into the source. Columns, offsets and Length count UTF-16
// code units, as the TypeScript language service does.
type Annotation struct {
	Kind            string `json:"kind,omitempty"`
	Line            *int   `json:"line,omitempty"`
	Character       *int   `json:"character,omitempty"`
	Offset          *int   `json:"offset,omitempty"`
	Start           *int   `json:"start,omitempty"`
	Length          int    `json:"length"`
	Text            string `json:"text,omitempty"`
	RenderedMessage string `json:"renderedMessage,omitempty"`
	Docs            string `json:"docs,omitempty"`
	Code            int    `json:"code,omitempty"`
}

// DefaultCompilerOptions returns a fresh copy of the options every request starts from.
func DefaultCompilerOptions() map[string]any {
	return map[string]any{
		"allowJs":                      true,
		"target":                       "esnext",
		"module":                       "esnext",
		"lib":                          []any{"esnext", "dom"},
		"moduleResolution":             "node",
		"strict":                       false,
		"esModuleInterop":              true,
		"skipLibCheck":                 true,
		"declaration":                  false,
		"allowSyntheticDefaultImports": true,
		"isolatedModules":              false,
		"noEmit":                       true,
	}
}

// MergeCompilerOptions shallow merges overrides over the defaults; overrides win per key.
func MergeCompilerOptions(overrides map[string]any) map[string]any {
	merged := DefaultCompilerOptions()
	maps.Copy(merged, overrides)
	return merged
}
