// Package highlight splits code into display tokens, one slice per line, using
// tree-sitter grammars.
package highlight

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Token is a display token. Concatenating the tokens of a line gives the line back.
type Token struct {
	Content string   `json:"content"`
	Types   []string `json:"types"`
}

const (
	Plain       = "plain"
	Keyword     = "keyword"
	String      = "string"
	Number      = "number"
	Comment     = "comment"
	Punctuation = "punctuation"
	Operator    = "operator"
	ClassName   = "class-name"
	Function    = "function"
	Property    = "property"
	Boolean     = "boolean"
)

// Tokenizer turns code into lines of tokens.
type Tokenizer interface {
	Tokenize(ctx context.Context, lang, code string) ([][]Token, error)
}

// TreeSitter is the default Tokenizer.
type TreeSitter struct {
	langs map[string]*sitter.Language
}

var _ Tokenizer = (*TreeSitter)(nil)

func NewTreeSitter() *TreeSitter {
	ts := typescript.GetLanguage()
	return &TreeSitter{
		langs: map[string]*sitter.Language{
			"typescript": ts,
			"ts":         ts,
			"tsx":        tsx.GetLanguage(),
			"javascript": javascript.GetLanguage(),
			"js":         javascript.GetLanguage(),
			"jsx":        javascript.GetLanguage(),
		},
	}
}

// Tokenize never fails on bad input: languages without a grammar and code that
// cannot be parsed come back as one plain token per line.
func (h *TreeSitter) Tokenize(ctx context.Context, lang, code string) ([][]Token, error) {
	language, ok := h.langs[lang]
	if !ok {
		return PlainLines(code), nil
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(language)

	src := []byte(code)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil || tree == nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("lang", lang).Msg("tree-sitter parse failed, using plain tokens")
		return PlainLines(code), nil
	}
	defer tree.Close()

	spans := make([]span, 0, 64)
	collectLeaves(tree.RootNode(), src, &spans)

	return splitLines(code, fillGaps(len(src), spans)), nil
}

// PlainLines returns one plain token per non-empty line.
func PlainLines(code string) [][]Token {
	lines := strings.Split(code, "\n")
	out := make([][]Token, len(lines))
	for i, line := range lines {
		if line == "" {
			out[i] = []Token{}
			continue
		}
		out[i] = []Token{{Content: line, Types: []string{Plain}}}
	}
	return out
}

type span struct {
	start, end int
	category   string
}

func collectLeaves(node *sitter.Node, src []byte, out *[]span) {
	if node == nil {
		return
	}

	// strings, comments and template literals are highlighted as one unit
	if node.ChildCount() == 0 || isAtomic(node.Type()) {
		start, end := int(node.StartByte()), int(node.EndByte())
		if end > start {
			*out = append(*out, span{start: start, end: end, category: classify(node, src[start:end])})
		}
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		collectLeaves(node.Child(i), src, out)
	}
}

func isAtomic(nodeType string) bool {
	switch nodeType {
	case "string", "comment", "regex", "template_string":
		return true
	}
	return false
}

func classify(node *sitter.Node, text []byte) string {
	nodeType := node.Type()

	switch nodeType {
	case "string", "template_string", "string_fragment", "regex":
		return String
	case "comment":
		return Comment
	case "number":
		return Number
	case "true", "false":
		return Boolean
	case "type_identifier", "predefined_type":
		return ClassName
	case "property_identifier", "shorthand_property_identifier":
		return Property
	}

	if !node.IsNamed() {
		switch {
		case isWord(text):
			return Keyword
		case isPunctuation(nodeType):
			return Punctuation
		default:
			return Operator
		}
	}

	if nodeType == "identifier" {
		if parent := node.Parent(); parent != nil {
			switch parent.Type() {
			case "call_expression", "function_declaration", "method_definition":
				return Function
			}
		}
	}

	return Plain
}

func isWord(text []byte) bool {
	if len(text) == 0 {
		return false
	}
	for _, c := range text {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_') {
			return false
		}
	}
	return true
}

func isPunctuation(nodeType string) bool {
	switch nodeType {
	case "(", ")", "[", "]", "{", "}", ";", ",", ".", ":", "${", "`", "\"", "'":
		return true
	}
	return false
}

// fillGaps covers the whole source: bytes between leaves become plain spans.
// Overlapping leaves are trimmed so spans never share a byte.
func fillGaps(size int, spans []span) []span {
	out := make([]span, 0, len(spans)*2+1)
	pos := 0
	for _, s := range spans {
		if s.end <= pos {
			continue
		}
		if s.start > pos {
			out = append(out, span{start: pos, end: s.start, category: Plain})
		}
		s.start = max(s.start, pos)
		out = append(out, s)
		pos = s.end
	}
	if pos < size {
		out = append(out, span{start: pos, end: size, category: Plain})
	}
	return out
}

// splitLines cuts spans at newlines, dropping the newline bytes themselves.
func splitLines(code string, spans []span) [][]Token {
	lines := [][]Token{{}}
	for _, s := range spans {
		text := code[s.start:s.end]
		for {
			nl := strings.IndexByte(text, '\n')
			part := text
			if nl >= 0 {
				part = text[:nl]
			}
			if part != "" {
				last := len(lines) - 1
				lines[last] = append(lines[last], Token{Content: part, Types: []string{s.category}})
			}
			if nl < 0 {
				break
			}
			lines = append(lines, []Token{})
			text = text[nl+1:]
		}
	}
	return lines
}
