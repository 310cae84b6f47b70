package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/FadeevMax/test-web-sop/internal/document"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark. Each h1 opens a tab
// and ![alt](src) images become image elements labeled by their alt text.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(src))

	e := newEmitter(titleFromFilename(filename))
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			heading := string(node.Text(src))
			if node.Level == 1 {
				e.setTab(heading)
			}
			e.text(heading, headingStyle(node.Level))
		case *ast.Paragraph:
			markdownInline(node, src, e)
		default:
			e.text(extractText(n, src), "")
		}
	}
	return e.document(), nil
}

// markdownInline emits a paragraph's text, splitting it around images.
func markdownInline(n ast.Node, src []byte, e *emitter) {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if img, ok := c.(*ast.Image); ok {
			e.text(buf.String(), "")
			buf.Reset()
			e.image(string(img.Destination), string(img.Text(src)), nil)
			continue
		}
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
			continue
		}
		buf.WriteString(extractText(c, src))
	}
	e.text(buf.String(), "")
}

// extractText gets the text content of a goldmark AST node.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		} else {
			if buf.Len() > 0 && c.Type() == ast.TypeBlock {
				buf.WriteByte('\n')
			}
			buf.WriteString(extractText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}

func headingStyle(level int) string {
	return "Heading" + string(rune('0'+level))
}
