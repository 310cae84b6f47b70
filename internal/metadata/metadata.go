// Package metadata derives per-chunk summary metadata. Everything here is a
// pure function of a finalized chunk.
package metadata

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/FadeevMax/test-web-sop/internal/document"
)

var markerRe = regexp.MustCompile(`\[IMAGE_PLACEHOLDER_(\d+)\]`)

// Marker returns the inline placeholder token for image number n.
func Marker(n int) string {
	return "[IMAGE_PLACEHOLDER_" + strconv.Itoa(n) + "]"
}

// MarkerNumbers returns the image numbers of all placeholder tokens in text,
// in order of appearance.
func MarkerNumbers(text string) []int {
	var nums []int
	for _, m := range markerRe.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		nums = append(nums, n)
	}
	return nums
}

// ContainsMarker reports whether text holds any placeholder token.
func ContainsMarker(text string) bool {
	return markerRe.MatchString(text)
}

// EscapeMarkers rewrites placeholder tokens that occur in source text so they
// cannot be mistaken for markers the builder wrote.
func EscapeMarkers(text string) string {
	if !markerRe.MatchString(text) {
		return text
	}
	return markerRe.ReplaceAllString(text, "(IMAGE_PLACEHOLDER_$1)")
}

// LastMarkerEnd returns the byte offset just past the last placeholder token
// in text, or -1 if there is none.
func LastMarkerEnd(text string) int {
	locs := markerRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return -1
	}
	return locs[len(locs)-1][1]
}

// Aggregate recomputes a chunk's metadata from its text, element refs and
// image attachments.
func Aggregate(c *document.Chunk) document.ChunkMetadata {
	states := map[document.Jurisdiction]bool{}
	sections := map[document.OrderType]bool{}
	topics := map[document.Topic]bool{}

	add := func(cs document.ContextState) {
		if cs.State != "" {
			states[cs.State] = true
		}
		if cs.Section != "" {
			sections[cs.Section] = true
		}
		if cs.Topic != "" {
			topics[cs.Topic] = true
		}
	}
	for _, ref := range c.Elements {
		add(ref.Context)
	}
	for _, img := range c.Images {
		add(document.ContextState{State: img.State, Section: img.Section, Topic: img.Topic})
	}

	md := document.ChunkMetadata{
		States:           sortedKeys(states),
		Sections:         sortedKeys(sections),
		Topics:           sortedKeys(topics),
		ElementCount:     len(c.Elements),
		HasImages:        len(c.Images) > 0,
		ImageCount:       len(c.Images),
		CharCount:        utf8.RuneCountInString(c.Text),
		WordCount:        len(strings.Fields(c.Text)),
		ImageMarkerCount: len(MarkerNumbers(c.Text)),
	}
	if c.TabID != "" {
		tab := c.TabID
		md.TabSection = &tab
	}
	return md
}

func sortedKeys[T ~string](set map[T]bool) []T {
	out := make([]T, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Check verifies placeholder/attachment parity: one marker per attachment,
// marker numbers strictly increasing and equal to the attachments' numbers in
// order. A failure means the builder is broken.
func Check(c *document.Chunk) error {
	nums := MarkerNumbers(c.Text)
	if len(nums) != len(c.Images) {
		return fmt.Errorf("chunk %d: %d markers but %d images", c.ID, len(nums), len(c.Images))
	}
	for i, n := range nums {
		if i > 0 && n <= nums[i-1] {
			return fmt.Errorf("chunk %d: marker numbers not increasing at %d", c.ID, i)
		}
		if c.Images[i].Number != n {
			return fmt.Errorf("chunk %d: marker %d does not match image number %d", c.ID, n, c.Images[i].Number)
		}
	}
	if c.Metadata.ImageMarkerCount != len(c.Images) {
		return fmt.Errorf("chunk %d: image_markers %d, images %d", c.ID, c.Metadata.ImageMarkerCount, len(c.Images))
	}
	return nil
}

// CheckAll runs Check over every chunk and verifies that image numbers are
// unique across the whole output.
func CheckAll(chunks []document.Chunk) error {
	seen := map[int]int{}
	for i := range chunks {
		if err := Check(&chunks[i]); err != nil {
			return err
		}
		for _, img := range chunks[i].Images {
			if prev, ok := seen[img.Number]; ok {
				return fmt.Errorf("image number %d used by chunks %d and %d", img.Number, prev, chunks[i].ID)
			}
			seen[img.Number] = chunks[i].ID
		}
	}
	return nil
}
