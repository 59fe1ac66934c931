package speech

import (
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// PlainText renders markdown replies as text suitable for a voice
type PlainText struct {
	markdown goldmark.Markdown
}

// NewPlainText creates a renderer with GitHub Flavored Markdown parsing
func NewPlainText() *PlainText {
	return &PlainText{
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Render drops formatting, link targets, raw HTML and code fences. Each
// block ends as a sentence so list items and headings are read with a pause.
func (p *PlainText) Render(md string) string {
	source := []byte(md)
	doc := p.markdown.Parser().Parse(text.NewReader(source))

	var sb strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				sb.Write(node.Segment.Value(source))
				if node.SoftLineBreak() || node.HardLineBreak() {
					sb.WriteByte(' ')
				}
			}
		case *ast.String:
			if entering {
				sb.Write(node.Value)
			}
		case *ast.AutoLink:
			if entering {
				sb.Write(node.Label(source))
			}
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML, *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					sb.Write(seg.Value(source))
				}
				endSentence(&sb)
			}
			return ast.WalkSkipChildren, nil
		}

		if !entering && n.Type() == ast.TypeBlock {
			endSentence(&sb)
		}
		return ast.WalkContinue, nil
	})

	return strings.Join(strings.Fields(sb.String()), " ")
}

// endSentence terminates the text written so far with punctuation
func endSentence(sb *strings.Builder) {
	s := strings.TrimRightFunc(sb.String(), unicode.IsSpace)
	if s == "" {
		return
	}
	sb.Reset()
	sb.WriteString(s)
	if !strings.ContainsRune(".!?:;。！？", lastRune(s)) {
		sb.WriteByte('.')
	}
	sb.WriteByte(' ')
}

func lastRune(s string) rune {
	r := []rune(s)
	return r[len(r)-1]
}
