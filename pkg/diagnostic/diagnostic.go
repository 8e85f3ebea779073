package diagnostic

import (
	"encoding/json"
	"fmt"
	"strings"

	"gitlab.com/tozd/go/errors"
	"go.uber.org/multierr"

	"github.com/walteh/gotwoslash/pkg/twoslash"
)

// Diagnostics represents diagnostic information that can be formatted in different ways
type Diagnostics struct {
	Errors   []Diagnostic `json:"errors"`
	Warnings []Diagnostic `json:"warnings"`
	Hints    []Diagnostic `json:"hints"`
}

// Diagnostic is a single message. Lines and columns are 1-based and refer to the
// display text of the block.
type Diagnostic struct {
	Message  string             `json:"message"`
	Line     int                `json:"line"`
	Column   int                `json:"column"`
	EndLine  int                `json:"endLine"`
	EndCol   int                `json:"endCol"`
	Severity DiagnosticSeverity `json:"severity"`
	Code     int                `json:"code,omitempty"`
}

// DiagnosticSeverity represents the severity level of a diagnostic
type DiagnosticSeverity string

const (
	Error   DiagnosticSeverity = "error"
	Warning DiagnosticSeverity = "warning"
	Info    DiagnosticSeverity = "info"
	Hint    DiagnosticSeverity = "hint"
)

// Len is the total number of diagnostics.
func (d *Diagnostics) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Errors) + len(d.Warnings) + len(d.Hints)
}

// Generate reports a record in display coordinates: analyzer errors as errors,
// queries as "Type: ..." hints and record invariant violations as warnings. A failed
// record yields a single error at the start of the block.
func Generate(rec *twoslash.Record) (*Diagnostics, error) {
	if rec == nil {
		return nil, errors.Errorf("record is nil")
	}

	diagnostics := &Diagnostics{
		Errors:   make([]Diagnostic, 0),
		Warnings: make([]Diagnostic, 0),
		Hints:    make([]Diagnostic, 0),
	}

	if rec.Failed() {
		diagnostics.Errors = append(diagnostics.Errors, Diagnostic{
			Message:  fmt.Sprintf("Analysis failed: %s", rec.Failure),
			Line:     1,
			Column:   1,
			EndLine:  1,
			EndCol:   1,
			Severity: Error,
		})
		return diagnostics, nil
	}

	for _, a := range rec.Annotations() {
		line, ok := rec.LineOffsetMap.DisplayLine(a.Range.Line)
		if !ok {
			diagnostics.Warnings = append(diagnostics.Warnings, Diagnostic{
				Message:  fmt.Sprintf("%s %d is on directive line %d and cannot be shown", a.Ref.Kind, a.Ref.Index, a.Range.Line+1),
				Line:     1,
				Column:   1,
				EndLine:  1,
				EndCol:   1,
				Severity: Warning,
			})
			continue
		}

		d := Diagnostic{
			Line:    line + 1,
			Column:  a.Range.Start + 1,
			EndLine: line + 1,
			EndCol:  a.Range.End + 1,
		}

		if e, ok := rec.ErrorAt(a.Ref); ok {
			d.Message = e.Text
			d.Code = e.Code
			d.Severity = Error
			diagnostics.Errors = append(diagnostics.Errors, d)
			continue
		}

		if q, ok := rec.QueryAt(a.Ref); ok {
			d.Message = fmt.Sprintf("Type: %s", q.Text)
			d.Severity = Hint
			diagnostics.Hints = append(diagnostics.Hints, d)
		}
	}

	for _, err := range multierr.Errors(rec.Validate()) {
		diagnostics.Warnings = append(diagnostics.Warnings, Diagnostic{
			Message:  err.Error(),
			Line:     1,
			Column:   1,
			EndLine:  1,
			EndCol:   1,
			Severity: Warning,
		})
	}

	return diagnostics, nil
}

// Formatter formats diagnostics into different output formats
type Formatter interface {
	// Format formats diagnostics into a specific output format
	Format(diagnostics *Diagnostics) ([]byte, error)
}

// VSCodeFormatter formats diagnostics into VSCode-compatible format
type VSCodeFormatter struct{}

func NewVSCodeFormatter() *VSCodeFormatter {
	return &VSCodeFormatter{}
}

type vscodePosition struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

type vscodeRange struct {
	Start vscodePosition `json:"start"`
	End   vscodePosition `json:"end"`
}

type vscodeDiagnostic struct {
	Severity int         `json:"severity"`
	Message  string      `json:"message"`
	Code     int         `json:"code,omitempty"`
	Range    vscodeRange `json:"range"`
}

// Format implements Formatter
func (f *VSCodeFormatter) Format(diagnostics *Diagnostics) ([]byte, error) {
	if diagnostics == nil {
		return nil, errors.Errorf("diagnostics is nil")
	}

	// severity: Error = 1, Warning = 2, Information = 3, Hint = 4
	result := make([]vscodeDiagnostic, 0, diagnostics.Len())
	for _, group := range []struct {
		severity int
		items    []Diagnostic
	}{
		{1, diagnostics.Errors},
		{2, diagnostics.Warnings},
		{4, diagnostics.Hints},
	} {
		for _, d := range group.items {
			result = append(result, vscodeDiagnostic{
				Severity: group.severity,
				Message:  d.Message,
				Code:     d.Code,
				Range: vscodeRange{
					// VSCode is 0-based
					Start: vscodePosition{Line: d.Line - 1, Character: d.Column - 1},
					End:   vscodePosition{Line: d.EndLine - 1, Character: d.EndCol - 1},
				},
			})
		}
	}

	return json.Marshal(result)
}

// TextFormatter writes one "name:line:col: severity: message" line per diagnostic.
type TextFormatter struct {
	Name string
}

// Format implements Formatter
func (f *TextFormatter) Format(diagnostics *Diagnostics) ([]byte, error) {
	if diagnostics == nil {
		return nil, errors.Errorf("diagnostics is nil")
	}

	var sb strings.Builder
	for _, group := range [][]Diagnostic{diagnostics.Errors, diagnostics.Warnings, diagnostics.Hints} {
		for _, d := range group {
			msg := d.Message
			if d.Code != 0 {
				msg = fmt.Sprintf("TS%d: %s", d.Code, msg)
			}
			fmt.Fprintf(&sb, "%s:%d:%d: %s: %s\n", f.Name, d.Line, d.Column, d.Severity, msg)
		}
	}
	return []byte(sb.String()), nil
}
