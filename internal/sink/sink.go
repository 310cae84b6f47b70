// Package sink publishes built chunks and their image binaries.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/FadeevMax/test-web-sop/internal/document"
	"github.com/vmihailenco/msgpack/v5"
)

// Output formats for the chunks file.
const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

// Sink is a publication target for one document's artifacts.
type Sink interface {
	Name() string
	Write(ctx context.Context, a *Artifacts) error
}

// ImageFile is an image binary addressed by its attachment path.
type ImageFile struct {
	Path string
	Data []byte
}

// Artifacts is everything published for one document.
type Artifacts struct {
	DocID       string
	Title       string
	Chunks      []document.Chunk
	Images      []ImageFile
	ChunksFile  string
	GeneratedAt time.Time
}

// Resolve pairs every image attachment with its binary from the document's
// media. Attachments without a binary are returned as missing refs and left
// out of Images; their chunk entries are kept.
func Resolve(docID string, doc *document.Document, chunks []document.Chunk, chunksFile string) (*Artifacts, []string) {
	a := &Artifacts{
		DocID:       docID,
		Title:       doc.Title,
		Chunks:      chunks,
		Images:      []ImageFile{},
		ChunksFile:  chunksFile,
		GeneratedAt: time.Now().UTC(),
	}
	var missing []string
	for _, c := range chunks {
		for _, img := range c.Images {
			data, ok := doc.Media[img.Ref]
			if !ok || len(data) == 0 {
				missing = append(missing, img.Ref)
				continue
			}
			a.Images = append(a.Images, ImageFile{Path: img.Path, Data: data})
		}
	}
	return a, missing
}

// EncodeChunks renders the chunk list in the given format. Both formats use
// the JSON field names.
func EncodeChunks(chunks []document.Chunk, format string) ([]byte, error) {
	if chunks == nil {
		chunks = []document.Chunk{}
	}
	switch format {
	case "", FormatJSON:
		return json.MarshalIndent(chunks, "", "  ")
	case FormatMsgpack:
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(chunks); err != nil {
			return nil, fmt.Errorf("encode msgpack: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// ChunksFileName swaps the extension of name to match format.
func ChunksFileName(name, format string) string {
	if format != FormatMsgpack {
		return name
	}
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	return name + ".msgpack"
}

var unsafeKey = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// DocKey turns a title or id into a path-safe document key.
func DocKey(s string) string {
	k := strings.Trim(unsafeKey.ReplaceAllString(strings.TrimSpace(s), "-"), "-.")
	if k == "" {
		return "document"
	}
	return k
}

func contentType(name string) string {
	switch strings.ToLower(name[strings.LastIndex(name, ".")+1:]) {
	case "json":
		return "application/json"
	case "msgpack":
		return "application/msgpack"
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "gif":
		return "image/gif"
	case "svg":
		return "image/svg+xml"
	case "webp":
		return "image/webp"
	}
	return "application/octet-stream"
}
