package parser

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/FadeevMax/test-web-sop/internal/document"
)

// JSONParser reads a pre-extracted element stream:
//
//	{"title": "...", "elements": [{"kind": "text", "text": "...", "tab_id": "...", "sequence_index": 0}, ...]}
//
// Elements are passed through untouched, so malformed streams surface as
// validation errors from the chunk builder.
type JSONParser struct{}

type jsonFixture struct {
	Title    string             `json:"title"`
	Elements []document.Element `json:"elements"`
}

func (p *JSONParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	var f jsonFixture
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode element fixture: %w", err)
	}
	if f.Title == "" {
		f.Title = titleFromFilename(filename)
	}
	if f.Elements == nil {
		f.Elements = []document.Element{}
	}
	return &document.Document{Title: f.Title, Elements: f.Elements, Media: map[string][]byte{}}, nil
}
