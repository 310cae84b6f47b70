// Package parser extracts an ordered element stream from source documents.
package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/FadeevMax/test-web-sop/internal/document"
)

// Parser converts raw document bytes into a Document.
type Parser interface {
	Parse(r io.Reader, filename string) (*document.Document, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
	".json":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	case ".json":
		return &JSONParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// emitter appends elements in document order with increasing sequence
// indexes. Heading-1 boundaries switch the current tab.
type emitter struct {
	doc *document.Document
	tab string
}

func newEmitter(title string) *emitter {
	return &emitter{doc: &document.Document{
		Title:    title,
		Elements: []document.Element{},
		Media:    map[string][]byte{},
	}}
}

func (e *emitter) next() int {
	return len(e.doc.Elements)
}

func (e *emitter) setTab(name string) {
	e.tab = strings.TrimSpace(name)
}

func (e *emitter) text(s, style string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	e.doc.Elements = append(e.doc.Elements, document.Element{
		Kind:          document.KindText,
		Text:          s,
		TabID:         e.tab,
		SequenceIndex: e.next(),
		Style:         style,
	})
}

func (e *emitter) image(ref, label string, data []byte) {
	if ref == "" {
		return
	}
	e.doc.Elements = append(e.doc.Elements, document.Element{
		Kind:          document.KindImage,
		ImageRef:      ref,
		Label:         strings.TrimSpace(label),
		TabID:         e.tab,
		SequenceIndex: e.next(),
	})
	if data != nil {
		e.doc.Media[ref] = data
	}
}

// labelLastImage attaches a caption to the previous element when it is an
// unlabeled image.
func (e *emitter) labelLastImage(label string) bool {
	n := len(e.doc.Elements)
	if n == 0 {
		return false
	}
	last := &e.doc.Elements[n-1]
	if last.Kind != document.KindImage || last.Label != "" {
		return false
	}
	last.Label = strings.TrimSpace(label)
	return true
}

func (e *emitter) document() *document.Document {
	return e.doc
}
