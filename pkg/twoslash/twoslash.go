// Package twoslash holds the annotation record produced for one code block and the
// single function that turns raw analyzer output into it.
package twoslash

import (
	"encoding/json"

	"github.com/walteh/gotwoslash/pkg/position"
)

// Query is a hover annotation: the inferred type of the span at Line:Start.
type Query struct {
	Line   int    `json:"line"`
	Start  int    `json:"start"`
	Length int    `json:"length"`
	Text   string `json:"text"`
	Docs   string `json:"docs,omitempty"`
}

func (q Query) Range() position.Range {
	return position.NewRange(q.Line, q.Start, q.Length)
}

// Error is a diagnostic annotation.
type Error struct {
	Line   int    `json:"line"`
	Start  int    `json:"start"`
	Length int    `json:"length"`
	Text   string `json:"text"`
	Docs   string `json:"docs,omitempty"`
	Code   int    `json:"code"`
}

func (e Error) Range() position.Range {
	return position.NewRange(e.Line, e.Start, e.Length)
}

// Record is the immutable result of extracting one code block. Annotation lines are
// in source coordinates and columns are byte offsets; LineOffsetMap translates lines
// to the display text. StaticQuickInfos and Highlights are passed through from the
// analyzer untouched for renderers that understand them.
type Record struct {
	SourceText       string           `json:"sourceText"`
	DisplayText      string           `json:"displayText"`
	LineOffsetMap    position.LineMap `json:"lineOffsetMap"`
	Queries          []Query          `json:"queries"`
	Errors           []Error          `json:"errors"`
	StaticQuickInfos json.RawMessage  `json:"staticQuickInfos,omitempty"`
	Highlights       json.RawMessage  `json:"highlights,omitempty"`
	Language         string           `json:"lang"`
	Failure          string           `json:"error,omitempty"`
}

// Failed reports whether the record marks a block whose analysis failed.
func (r *Record) Failed() bool {
	return r != nil && r.Failure != ""
}

// Kind tells which annotation list a Ref points into.
type Kind string

const (
	KindQuery Kind = "query"
	KindError Kind = "error"
)

// Ref is a back-reference from a display token to the annotation it carries.
type Ref struct {
	Kind  Kind `json:"kind"`
	Index int  `json:"index"`
}

// QueryAt returns the query a ref points to.
func (r *Record) QueryAt(ref Ref) (Query, bool) {
	if r == nil || ref.Kind != KindQuery || ref.Index < 0 || ref.Index >= len(r.Queries) {
		return Query{}, false
	}
	return r.Queries[ref.Index], true
}

// ErrorAt returns the error a ref points to.
func (r *Record) ErrorAt(ref Ref) (Error, bool) {
	if r == nil || ref.Kind != KindError || ref.Index < 0 || ref.Index >= len(r.Errors) {
		return Error{}, false
	}
	return r.Errors[ref.Index], true
}

// Annotation is a source range with the ref that identifies it.
type Annotation struct {
	Ref   Ref
	Range position.Range
}

// Annotations lists every query then every error, each in record order.
func (r *Record) Annotations() []Annotation {
	if r == nil {
		return nil
	}
	out := make([]Annotation, 0, len(r.Queries)+len(r.Errors))
	for i, q := range r.Queries {
		out = append(out, Annotation{Ref: Ref{Kind: KindQuery, Index: i}, Range: q.Range()})
	}
	for i, e := range r.Errors {
		out = append(out, Annotation{Ref: Ref{Kind: KindError, Index: i}, Range: e.Range()})
	}
	return out
}
