package parser

import (
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/FadeevMax/test-web-sop/internal/document"
	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files. Heading 1 paragraphs open a new tab,
// inline and anchored drawings become image elements and a Caption
// paragraph labels the image right before it.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	// go-docx needs a ReaderAt+size, so write to temp file.
	tmp, err := os.CreateTemp("", "sopchunk-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("seek temp file: %w", err)
	}

	doc, err := docx.Parse(tmp, size)
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	e := newEmitter(titleFromFilename(filename))
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		style := docxStyle(para)
		level := docxHeadingLevel(style)

		if level == 1 {
			heading := docxParagraphText(para)
			if heading != "" {
				e.setTab(heading)
				e.text(heading, style)
			}
			continue
		}
		if strings.EqualFold(style, "Caption") {
			caption := docxParagraphText(para)
			if !e.labelLastImage(caption) {
				e.text(caption, style)
			}
			continue
		}
		docxParagraph(doc, para, style, e)
	}

	return e.document(), nil
}

// docxParagraph emits the paragraph's text and drawings in run order.
func docxParagraph(doc *docx.Docx, para *docx.Paragraph, style string, e *emitter) {
	var buf strings.Builder
	flush := func() {
		e.text(buf.String(), style)
		buf.Reset()
	}
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			switch v := rc.(type) {
			case *docx.Text:
				buf.WriteString(v.Text)
			case *docx.Drawing:
				embed := drawingEmbed(v)
				if embed == "" {
					continue
				}
				flush()
				ref, data := docxMedia(doc, embed)
				e.image(ref, "", data)
			}
		}
	}
	flush()
}

func drawingEmbed(d *docx.Drawing) string {
	if d.Inline != nil && d.Inline.Graphic != nil {
		return graphicEmbed(d.Inline.Graphic)
	}
	if d.Anchor != nil && d.Anchor.Graphic != nil {
		return graphicEmbed(d.Anchor.Graphic)
	}
	return ""
}

func graphicEmbed(g *docx.AGraphic) string {
	if g.GraphicData == nil || g.GraphicData.Pic == nil || g.GraphicData.Pic.BlipFill == nil {
		return ""
	}
	return g.GraphicData.Pic.BlipFill.Blip.Embed
}

// docxMedia resolves a relationship id to the media part name and bytes.
// Unresolvable ids keep the id as the reference with no binary.
func docxMedia(doc *docx.Docx, embed string) (string, []byte) {
	target, err := doc.ReferTarget(embed)
	if err != nil || target == "" {
		return embed, nil
	}
	m := doc.Media(path.Base(target))
	if m == nil {
		return target, nil
	}
	return target, m.Data
}

func docxStyle(para *docx.Paragraph) string {
	if para.Properties == nil || para.Properties.Style == nil {
		return ""
	}
	return para.Properties.Style.Val
}

func docxHeadingLevel(style string) int {
	s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	if !strings.HasPrefix(s, "heading") || len(s) != len("heading")+1 {
		return 0
	}
	c := s[len(s)-1]
	if c < '1' || c > '6' {
		return 0
	}
	return int(c - '0')
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
