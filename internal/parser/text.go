package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/FadeevMax/test-web-sop/internal/document"
)

// TextParser handles plain text files. Blank lines separate paragraphs and
// each paragraph becomes one text element. Plain text has no tabs.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	e := newEmitter(titleFromFilename(filename))
	var current strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			e.text(current.String(), "")
			current.Reset()
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	e.text(current.String(), "")

	return e.document(), nil
}
