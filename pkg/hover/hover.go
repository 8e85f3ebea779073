// Package hover provides functionality for generating hover information.
package hover

import (
	"fmt"
	"strings"
	"sync"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/gotwoslash/pkg/position"
	"github.com/walteh/gotwoslash/pkg/reconcile"
	"github.com/walteh/gotwoslash/pkg/twoslash"
)

// Info represents the information to be displayed in a hover tooltip
type Info struct {
	// Content holds the tooltip paragraphs, signature first
	Content []string
	// Range is the source range the hover applies to
	Range position.Range
}

// String joins the content paragraphs with blank lines.
func (i *Info) String() string {
	if i == nil {
		return ""
	}
	return strings.Join(i.Content, "\n\n")
}

// Markdown renders the signature as a fenced block in lang followed by the docs.
func (i *Info) Markdown(lang string) string {
	if i == nil || len(i.Content) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("```" + lang + "\n")
	sb.WriteString(i.Content[0])
	sb.WriteString("\n```")
	for _, para := range i.Content[1:] {
		sb.WriteString("\n\n")
		sb.WriteString(para)
	}
	return sb.String()
}

// ForQuery formats a query: the inferred signature, then its docs if any.
func ForQuery(q twoslash.Query) *Info {
	content := []string{q.Text}
	if docs := strings.TrimSpace(q.Docs); docs != "" {
		content = append(content, docs)
	}
	return &Info{Content: content, Range: q.Range()}
}

// ForError formats a diagnostic as "TS{code}: message".
func ForError(e twoslash.Error) *Info {
	content := []string{fmt.Sprintf("TS%d: %s", e.Code, e.Text)}
	if docs := strings.TrimSpace(e.Docs); docs != "" {
		content = append(content, docs)
	}
	return &Info{Content: content, Range: e.Range()}
}

// ForRef resolves ref against rec and formats the annotation it points to.
func ForRef(rec *twoslash.Record, ref twoslash.Ref) (*Info, error) {
	if rec == nil {
		return nil, errors.New("record cannot be nil")
	}

	switch ref.Kind {
	case twoslash.KindQuery:
		if q, ok := rec.QueryAt(ref); ok {
			return ForQuery(q), nil
		}
	case twoslash.KindError:
		if e, ok := rec.ErrorAt(ref); ok {
			return ForError(e), nil
		}
	default:
		return nil, errors.Errorf("unknown annotation kind %q", ref.Kind)
	}

	return nil, errors.Errorf("%s %d not found in record", ref.Kind, ref.Index)
}

// Tracker holds the annotation currently shown for one block. The last Show wins;
// there is never more than one displayed annotation.
type Tracker struct {
	mu      sync.Mutex
	current *Info
	ref     twoslash.Ref
}

// Show replaces the displayed annotation.
func (t *Tracker) Show(ref twoslash.Ref, info *Info) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ref = ref
	t.current = info
}

// Clear hides the displayed annotation.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ref = twoslash.Ref{}
	t.current = nil
}

// Current returns the displayed annotation, if any.
func (t *Tracker) Current() (twoslash.Ref, *Info, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ref, t.current, t.current != nil
}

// Move points at byte column col of display line line in the reconciled lines of
// rec. An annotated token under the pointer replaces whatever was shown; any other
// position clears the display. It reports whether an annotation is shown afterwards.
func (t *Tracker) Move(rec *twoslash.Record, lines [][]reconcile.Token, line, col int) bool {
	tok, ok := tokenAt(lines, line, col)
	if !ok || tok.Ref == nil {
		t.Clear()
		return false
	}

	info, err := ForRef(rec, *tok.Ref)
	if err != nil {
		t.Clear()
		return false
	}

	t.Show(*tok.Ref, info)
	return true
}

func tokenAt(lines [][]reconcile.Token, line, col int) (reconcile.Token, bool) {
	if line < 0 || line >= len(lines) || col < 0 {
		return reconcile.Token{}, false
	}

	pos := 0
	for _, tok := range lines[line] {
		end := pos + len(tok.Content)
		if col < end {
			return tok, true
		}
		pos = end
	}
	return reconcile.Token{}, false
}
