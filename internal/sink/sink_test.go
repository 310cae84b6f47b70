package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/FadeevMax/test-web-sop/internal/document"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vmihailenco/msgpack/v5"
)

func sampleArtifacts(t *testing.T) *Artifacts {
	t.Helper()
	label := "Price table"
	tab := "Ohio"
	chunks := []document.Chunk{
		{
			ID:   0,
			Text: "OH RISE pricing\n[IMAGE_PLACEHOLDER_1]\n[IMAGE_PLACEHOLDER_2]",
			Images: []document.ImageAttachment{
				{Ref: "media/image1.png", Filename: "image_1.png", Path: "images/image_1.png", Label: &label, Number: 1, State: document.StateOH},
				{Ref: "media/missing.png", Filename: "image_2.png", Path: "images/image_2.png", Number: 2},
			},
			Metadata: document.ChunkMetadata{
				States:     []document.Jurisdiction{document.StateOH},
				Sections:   []document.OrderType{document.OrderRise},
				Topics:     []document.Topic{document.TopicPricing},
				TabSection: &tab,
			},
		},
	}
	doc := &document.Document{
		Title: "Store SOP",
		Media: map[string][]byte{"media/image1.png": []byte("png-bytes")},
	}
	a, missing := Resolve("store-sop", doc, chunks, "semantic_chunks.json")
	if len(missing) != 1 || missing[0] != "media/missing.png" {
		t.Fatalf("expected one missing ref, got %v", missing)
	}
	return a
}

func TestResolve(t *testing.T) {
	a := sampleArtifacts(t)
	if a.DocID != "store-sop" || a.Title != "Store SOP" {
		t.Errorf("unexpected identity %q %q", a.DocID, a.Title)
	}
	if len(a.Images) != 1 || a.Images[0].Path != "images/image_1.png" || string(a.Images[0].Data) != "png-bytes" {
		t.Errorf("unexpected images %+v", a.Images)
	}
	if len(a.Chunks[0].Images) != 2 {
		t.Error("chunk attachments must be kept even when the binary is missing")
	}
	if a.GeneratedAt.IsZero() {
		t.Error("expected generated timestamp")
	}
}

func TestEncodeChunks(t *testing.T) {
	a := sampleArtifacts(t)

	js, err := EncodeChunks(a.Chunks, FormatJSON)
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(js, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := decoded[0]["chunk_id"]; !ok {
		t.Errorf("expected chunk_id field, got %v", decoded[0])
	}

	mp, err := EncodeChunks(a.Chunks, FormatMsgpack)
	if err != nil {
		t.Fatalf("msgpack: %v", err)
	}
	var generic []map[string]any
	if err := msgpack.Unmarshal(mp, &generic); err != nil {
		t.Fatalf("decode msgpack: %v", err)
	}
	if len(generic) != 1 || generic[0]["text"] != a.Chunks[0].Text {
		t.Errorf("expected json field names in msgpack, got %v", generic)
	}

	if _, err := EncodeChunks(nil, "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
	empty, _ := EncodeChunks(nil, FormatJSON)
	if string(empty) != "[]" {
		t.Errorf("expected [] for no chunks, got %s", empty)
	}
}

func TestEncodeChunks_UnsetCodesAgree(t *testing.T) {
	a := sampleArtifacts(t)

	js, err := EncodeChunks(a.Chunks, FormatJSON)
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	mp, err := EncodeChunks(a.Chunks, FormatMsgpack)
	if err != nil {
		t.Fatalf("msgpack: %v", err)
	}

	var fromJSON, fromMsgpack []map[string]any
	if err := json.Unmarshal(js, &fromJSON); err != nil {
		t.Fatalf("unmarshal json: %v", err)
	}
	if err := msgpack.Unmarshal(mp, &fromMsgpack); err != nil {
		t.Fatalf("unmarshal msgpack: %v", err)
	}

	for name, decoded := range map[string][]map[string]any{"json": fromJSON, "msgpack": fromMsgpack} {
		images, ok := decoded[0]["images"].([]any)
		if !ok || len(images) != 2 {
			t.Fatalf("%s: unexpected images %v", name, decoded[0]["images"])
		}
		first := images[0].(map[string]any)
		second := images[1].(map[string]any)
		if first["state"] != "OH" {
			t.Errorf("%s: expected state OH, got %v", name, first["state"])
		}
		for _, key := range []string{"section", "topic"} {
			if v, present := first[key]; !present || v != nil {
				t.Errorf("%s: expected %s to be nil, got %v", name, key, v)
			}
		}
		if second["state"] != nil {
			t.Errorf("%s: expected unset state to be nil, got %v", name, second["state"])
		}
	}

	dec := msgpack.NewDecoder(bytes.NewReader(mp))
	dec.SetCustomStructTag("json")
	var chunks []document.Chunk
	if err := dec.Decode(&chunks); err != nil {
		t.Fatalf("decode chunks: %v", err)
	}
	imgs := chunks[0].Images
	if imgs[0].State != document.StateOH || imgs[0].Section != "" || imgs[1].State != "" {
		t.Errorf("codes did not survive a msgpack round trip: %+v", imgs)
	}
}

func TestChunksFileNameAndDocKey(t *testing.T) {
	if got := ChunksFileName("semantic_chunks.json", FormatMsgpack); got != "semantic_chunks.msgpack" {
		t.Errorf("unexpected msgpack name %q", got)
	}
	if got := ChunksFileName("semantic_chunks.json", FormatJSON); got != "semantic_chunks.json" {
		t.Errorf("unexpected json name %q", got)
	}
	tests := map[string]string{
		"Store SOP (v2)": "Store-SOP-v2",
		"  ../etc ":      "etc",
		"":               "document",
		"1AbC_x-9":       "1AbC_x-9",
	}
	for in, want := range tests {
		if got := DocKey(in); got != want {
			t.Errorf("DocKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFileSink(t *testing.T) {
	dir := t.TempDir()
	a := sampleArtifacts(t)

	s := NewFileSink(dir, FormatJSON)
	if err := s.Write(context.Background(), a); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "store-sop", "semantic_chunks.json"))
	if err != nil {
		t.Fatalf("read chunks: %v", err)
	}
	if !strings.Contains(string(data), `"position_in_text"`) {
		t.Errorf("expected serialized chunks, got %s", data)
	}
	img, err := os.ReadFile(filepath.Join(dir, "store-sop", "images", "image_1.png"))
	if err != nil || string(img) != "png-bytes" {
		t.Errorf("expected image written, got %q err=%v", img, err)
	}

	// Rewriting overwrites in place.
	if err := s.Write(context.Background(), a); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	entries, _ := os.ReadDir(filepath.Join(dir, "store-sop"))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

type fakePutter struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (f *fakePutter) PutFile(_ context.Context, path string, _ []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, path)
	return f.err
}

func TestGitHubSink_ImagesBeforeChunks(t *testing.T) {
	fp := &fakePutter{}
	s := NewGitHubSink(fp, "published", FormatJSON)
	if err := s.Write(context.Background(), sampleArtifacts(t)); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := []string{"published/store-sop/images/image_1.png", "published/store-sop/semantic_chunks.json"}
	if strings.Join(fp.paths, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, fp.paths)
	}

	failing := NewGitHubSink(&fakePutter{err: errors.New("boom")}, "", FormatJSON)
	if err := failing.Write(context.Background(), sampleArtifacts(t)); err == nil {
		t.Error("expected error to propagate")
	}
}

type fakeS3 struct {
	keys  []string
	types []string
	sizes []int
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	var buf bytes.Buffer
	buf.ReadFrom(in.Body)
	f.keys = append(f.keys, *in.Key)
	f.types = append(f.types, *in.ContentType)
	f.sizes = append(f.sizes, buf.Len())
	return &s3.PutObjectOutput{}, nil
}

func TestS3Sink(t *testing.T) {
	fake := &fakeS3{}
	s := NewS3SinkWithClient(fake, "bucket", "sops", FormatMsgpack)
	a := sampleArtifacts(t)
	a.ChunksFile = ChunksFileName(a.ChunksFile, FormatMsgpack)

	if err := s.Write(context.Background(), a); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(fake.keys) != 2 {
		t.Fatalf("expected 2 objects, got %v", fake.keys)
	}
	if fake.keys[0] != "sops/store-sop/images/image_1.png" || fake.types[0] != "image/png" {
		t.Errorf("unexpected image object %s (%s)", fake.keys[0], fake.types[0])
	}
	if fake.keys[1] != "sops/store-sop/semantic_chunks.msgpack" || fake.types[1] != "application/msgpack" {
		t.Errorf("unexpected chunks object %s (%s)", fake.keys[1], fake.types[1])
	}
}

func TestS3Config_Validate(t *testing.T) {
	if err := (&S3Config{}).Validate(); err == nil {
		t.Error("expected error without bucket")
	}
	if err := (&S3Config{Bucket: "b"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// fakeTx records statements; the embedded interface panics on anything else.
type fakeTx struct {
	pgx.Tx
	stmts      []string
	args       [][]any
	committed  bool
	rolledBack bool
	failOn     string
}

func (f *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if f.failOn != "" && strings.Contains(sql, f.failOn) {
		return pgconn.CommandTag{}, errors.New("exec failed")
	}
	f.stmts = append(f.stmts, strings.TrimSpace(sql))
	f.args = append(f.args, args)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	if !f.committed {
		f.rolledBack = true
	}
	return nil
}

type fakeDB struct {
	tx    *fakeTx
	execs []string
}

func (f *fakeDB) Begin(context.Context) (pgx.Tx, error) { return f.tx, nil }

func (f *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func TestPostgresSink_ReplacesDocumentRows(t *testing.T) {
	db := &fakeDB{tx: &fakeTx{}}
	s := NewPostgresSinkWithDB(db)
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if len(db.execs) != 1 || !strings.Contains(db.execs[0], "semantic_chunks") {
		t.Errorf("expected schema statement, got %v", db.execs)
	}

	if err := s.Write(context.Background(), sampleArtifacts(t)); err != nil {
		t.Fatalf("write: %v", err)
	}
	tx := db.tx
	if len(tx.stmts) != 2 {
		t.Fatalf("expected delete + 1 insert, got %d statements", len(tx.stmts))
	}
	if !strings.HasPrefix(tx.stmts[0], "DELETE") || tx.args[0][0] != "store-sop" {
		t.Errorf("expected delete by doc id first, got %q %v", tx.stmts[0], tx.args[0])
	}
	states, ok := tx.args[1][5].([]string)
	if !ok || len(states) != 1 || states[0] != "OH" {
		t.Errorf("expected states [OH], got %v", tx.args[1][5])
	}
	if !tx.committed {
		t.Error("expected commit")
	}
}

func TestPostgresSink_RollsBackOnError(t *testing.T) {
	db := &fakeDB{tx: &fakeTx{failOn: "INSERT"}}
	if err := NewPostgresSinkWithDB(db).Write(context.Background(), sampleArtifacts(t)); err == nil {
		t.Fatal("expected error")
	}
	if db.tx.committed || !db.tx.rolledBack {
		t.Errorf("expected rollback without commit, got committed=%v rolledBack=%v", db.tx.committed, db.tx.rolledBack)
	}
}
