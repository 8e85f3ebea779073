// Package render writes reconciled token lines as HTML.
package render

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/yuin/goldmark/util"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/gotwoslash/pkg/directive"
	"github.com/walteh/gotwoslash/pkg/hover"
	"github.com/walteh/gotwoslash/pkg/reconcile"
	"github.com/walteh/gotwoslash/pkg/twoslash"
)

const (
	QueryIndexAttribute = "data-twoslash-query-index"
	ErrorIndexAttribute = "data-twoslash-error-index"
	HoverAttribute      = "data-twoslash-hover"
	FailureAttribute    = "data-twoslash-failure"
)

var titleRegex = regexp.MustCompile(`title="([^"]*)"|title='([^']*)'`)

// Title returns the value of a title="..." or title='...' attribute in a block meta
// string.
func Title(meta string) string {
	m := titleRegex.FindStringSubmatch(meta)
	if m == nil {
		return ""
	}
	return m[1] + m[2]
}

// BlockView is everything needed to render one code block.
type BlockView struct {
	Lang   string
	Meta   string
	Lines  [][]reconcile.Token
	Record *twoslash.Record
}

// Block writes v as a <pre> element. Tokens that carry an annotation get the index
// attribute of their kind and the formatted hover text.
func Block(ctx context.Context, w io.Writer, v BlockView) error {
	var sb strings.Builder

	if title := Title(v.Meta); title != "" {
		fmt.Fprintf(&sb, `<div class="codeBlockTitle">%s</div>`, escape(title))
	}

	lang := directive.NormalizeLanguage(v.Lang)
	classes := "codeBlock"
	if reconcile.Enabled(v.Meta) {
		classes += " twoslash-block"
	}
	if lang != "" {
		classes += " language-" + lang
	}

	fmt.Fprintf(&sb, `<pre class="%s"`, escape(classes))
	if v.Record.Failed() {
		fmt.Fprintf(&sb, ` %s="%s"`, FailureAttribute, escape(v.Record.Failure))
	}
	sb.WriteString(`><code class="codeBlockLines">`)

	for _, line := range v.Lines {
		sb.WriteString(`<span class="token-line">`)
		for _, tok := range line {
			writeToken(ctx, &sb, tok, v.Record)
		}
		sb.WriteString("\n</span>")
	}

	sb.WriteString("</code></pre>\n")

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return errors.Errorf("writing code block: %w", err)
	}
	return nil
}

func writeToken(ctx context.Context, sb *strings.Builder, tok reconcile.Token, rec *twoslash.Record) {
	sb.WriteString(`<span class="`)
	sb.WriteString(escape("token " + strings.Join(tok.Types, " ")))
	sb.WriteString(`"`)

	if tok.Ref != nil {
		attr := QueryIndexAttribute
		if tok.Ref.Kind == twoslash.KindError {
			attr = ErrorIndexAttribute
		}
		fmt.Fprintf(sb, ` %s="%s"`, attr, strconv.Itoa(tok.Ref.Index))

		info, err := hover.ForRef(rec, *tok.Ref)
		if err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Str("key", tok.Key).Msg("token references a missing annotation")
		} else {
			fmt.Fprintf(sb, ` %s="%s"`, HoverAttribute, escape(info.String()))
		}
	}

	sb.WriteString(">")
	sb.WriteString(escape(tok.Content))
	sb.WriteString("</span>")
}

func escape(s string) string {
	return string(util.EscapeHTML([]byte(s)))
}
