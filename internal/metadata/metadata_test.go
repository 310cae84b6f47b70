package metadata

import (
	"strings"
	"testing"

	"github.com/FadeevMax/test-web-sop/internal/document"
)

func TestAggregate_UnionOfContexts(t *testing.T) {
	c := &document.Chunk{
		ID:    0,
		Text:  "OH RISE pricing\nNJ batteries\n" + Marker(1),
		TabID: "Ohio",
		Elements: []document.ElementRef{
			{Kind: document.KindText, Context: document.ContextState{State: document.StateOH, Section: document.OrderRise, Topic: document.TopicPricing}},
			{Kind: document.KindText, Context: document.ContextState{State: document.StateNJ, Section: document.OrderRise, Topic: document.TopicBatteries}},
			{Kind: document.KindImage, Context: document.ContextState{State: document.StateNJ, Section: document.OrderRise, Topic: document.TopicBatteries}},
		},
		Images: []document.ImageAttachment{
			{Number: 1, State: document.StateNJ, Section: document.OrderRise, Topic: document.TopicBatteries},
		},
	}

	md := Aggregate(c)

	if got := joinCodes(md.States); got != "NJ,OH" {
		t.Errorf("expected states NJ,OH, got %s", got)
	}
	if got := joinCodes(md.Sections); got != "RISE" {
		t.Errorf("expected sections RISE, got %s", got)
	}
	if got := joinCodes(md.Topics); got != "BATTERIES,PRICING" {
		t.Errorf("expected topics BATTERIES,PRICING, got %s", got)
	}
	if md.ElementCount != 3 {
		t.Errorf("expected element_count 3, got %d", md.ElementCount)
	}
	if !md.HasImages || md.ImageCount != 1 || md.ImageMarkerCount != 1 {
		t.Errorf("unexpected image fields: %+v", md)
	}
	if md.CharCount != len([]rune(c.Text)) {
		t.Errorf("expected char_count %d, got %d", len([]rune(c.Text)), md.CharCount)
	}
	if md.WordCount != 6 {
		t.Errorf("expected word_count 6, got %d", md.WordCount)
	}
	if md.TabSection == nil || *md.TabSection != "Ohio" {
		t.Errorf("expected tab_section Ohio, got %v", md.TabSection)
	}
}

func TestAggregate_EmptyChunk(t *testing.T) {
	md := Aggregate(&document.Chunk{})
	if md.States == nil || md.Sections == nil || md.Topics == nil {
		t.Error("expected non-nil empty sets so they serialize as []")
	}
	if md.TabSection != nil {
		t.Errorf("expected nil tab_section, got %q", *md.TabSection)
	}
	if md.CharCount != 0 || md.WordCount != 0 || md.HasImages {
		t.Errorf("unexpected non-zero metadata: %+v", md)
	}
}

func TestCharCount_CountsRunes(t *testing.T) {
	md := Aggregate(&document.Chunk{Text: "café"})
	if md.CharCount != 4 {
		t.Errorf("expected 4 chars, got %d", md.CharCount)
	}
}

func TestMarkerNumbers(t *testing.T) {
	text := "a " + Marker(3) + " b " + Marker(10) + " [IMAGE_PLACEHOLDER_x]"
	nums := MarkerNumbers(text)
	if len(nums) != 2 || nums[0] != 3 || nums[1] != 10 {
		t.Errorf("expected [3 10], got %v", nums)
	}
	if end := LastMarkerEnd(text); end != strings.Index(text, Marker(10))+len(Marker(10)) {
		t.Errorf("unexpected last marker end %d", end)
	}
	if LastMarkerEnd("plain") != -1 {
		t.Error("expected -1 without markers")
	}
}

func TestEscapeMarkers(t *testing.T) {
	if got := EscapeMarkers("see " + Marker(7) + " here"); got != "see (IMAGE_PLACEHOLDER_7) here" {
		t.Errorf("unexpected escape %q", got)
	}
	if got := EscapeMarkers("[IMAGE_PLACEHOLDER_x] plain"); got != "[IMAGE_PLACEHOLDER_x] plain" {
		t.Errorf("expected non-marker text unchanged, got %q", got)
	}
	if ContainsMarker(EscapeMarkers(Marker(1) + Marker(2))) {
		t.Error("expected no markers after escaping")
	}
}

func TestCheck(t *testing.T) {
	ok := &document.Chunk{
		Text:   "x " + Marker(1) + " " + Marker(2),
		Images: []document.ImageAttachment{{Number: 1}, {Number: 2}},
	}
	ok.Metadata = Aggregate(ok)
	if err := Check(ok); err != nil {
		t.Errorf("expected parity, got %v", err)
	}

	missing := &document.Chunk{Text: "x " + Marker(1), Images: []document.ImageAttachment{{Number: 1}, {Number: 2}}}
	missing.Metadata = Aggregate(missing)
	if err := Check(missing); err == nil {
		t.Error("expected error for missing marker")
	}

	swapped := &document.Chunk{Text: Marker(2) + Marker(1), Images: []document.ImageAttachment{{Number: 1}, {Number: 2}}}
	swapped.Metadata = Aggregate(swapped)
	if err := Check(swapped); err == nil {
		t.Error("expected error for out-of-order markers")
	}
}

func TestCheckAll_DuplicateNumbers(t *testing.T) {
	a := document.Chunk{ID: 0, Text: Marker(1), Images: []document.ImageAttachment{{Number: 1}}}
	b := document.Chunk{ID: 1, Text: Marker(1), Images: []document.ImageAttachment{{Number: 1}}}
	a.Metadata = Aggregate(&a)
	b.Metadata = Aggregate(&b)
	if err := CheckAll([]document.Chunk{a, b}); err == nil {
		t.Error("expected duplicate image number to fail")
	}
}

func TestEstimateTokens(t *testing.T) {
	if EstimateTokens("") != 0 {
		t.Error("expected 0 for empty text")
	}
	if EstimateTokens("hi") != 1 {
		t.Errorf("expected 1 for a single word, got %d", EstimateTokens("hi"))
	}
	if got := EstimateTokens(strings.Repeat("word ", 100)); got != 133 {
		t.Errorf("expected 133, got %d", got)
	}
}

func joinCodes[T ~string](codes []T) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}
