package document

import (
	"encoding/json"
	"fmt"
)

// Kind is the closed set of element kinds an extractor can emit.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindText
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindImage:
		return "image"
	}
	return "invalid"
}

func (k Kind) MarshalJSON() ([]byte, error) {
	if k != KindText && k != KindImage {
		return nil, fmt.Errorf("marshal kind: invalid kind %d", k)
	}
	return json.Marshal(k.String())
}

// UnmarshalJSON maps unknown kinds to KindInvalid instead of failing, so that
// validation can report the offending element index.
func (k *Kind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*k = KindInvalid
		return nil
	}
	switch s {
	case "text":
		*k = KindText
	case "image":
		*k = KindImage
	default:
		*k = KindInvalid
	}
	return nil
}

// Element is one visual unit from the source document.
type Element struct {
	Kind          Kind   `json:"kind"`
	Text          string `json:"text,omitempty"`      // text kind only
	ImageRef      string `json:"image_ref,omitempty"` // image kind only, key into Document.Media
	Label         string `json:"label,omitempty"`     // caption adjacent to the image, if any
	TabID         string `json:"tab_id,omitempty"`    // "" when undetermined
	SequenceIndex int    `json:"sequence_index"`
	Style         string `json:"style,omitempty"`
}

// Document is what an extractor produces: the ordered element stream plus the
// image binaries it owns.
type Document struct {
	Title    string            `json:"title"`
	Elements []Element         `json:"elements"`
	Media    map[string][]byte `json:"-"`
}

// ElementRef records one element assigned to a chunk and the context in
// effect right after it was processed.
type ElementRef struct {
	SequenceIndex int
	Kind          Kind
	Context       ContextState
}

// Chunk is the unit of output.
type Chunk struct {
	ID       int               `json:"chunk_id"`
	Text     string            `json:"text"`
	Images   []ImageAttachment `json:"images"`
	Metadata ChunkMetadata     `json:"metadata"`

	// Not serialized.
	TabID     string       `json:"-"`
	Elements  []ElementRef `json:"-"`
	Oversized bool         `json:"-"`
}

// ImageAttachment is an image bound to a chunk.
type ImageAttachment struct {
	Ref         string       `json:"-"`
	Filename    string       `json:"filename"`
	Path        string       `json:"path"`
	Label       *string      `json:"label"`
	Number      int          `json:"number"`
	ContextText string       `json:"context_text"`
	State       Jurisdiction `json:"state"`
	Section     OrderType    `json:"section"`
	Topic       Topic        `json:"topic"`
	Position    Position     `json:"position_in_text"`
}

// ChunkMetadata is derived from a chunk's contents and never mutated directly.
type ChunkMetadata struct {
	States           []Jurisdiction `json:"states"`
	Sections         []OrderType    `json:"sections"`
	Topics           []Topic        `json:"topics"`
	ElementCount     int            `json:"element_count"`
	HasImages        bool           `json:"has_images"`
	ImageCount       int            `json:"image_count"`
	CharCount        int            `json:"char_count"`
	WordCount        int            `json:"word_count"`
	TabSection       *string        `json:"tab_section"`
	ImageMarkerCount int            `json:"image_markers"`
}
