package pipeline

import (
	"testing"
	"time"

	"github.com/FadeevMax/test-web-sop/internal/document"
)

func TestContentHashHex_Consistency(t *testing.T) {
	data := []byte("hello world")
	h1 := ContentHashHex(data)
	h2 := ContentHashHex(data)
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %q and %q", h1, h2)
	}
	// SHA-256 of "hello world" is well-known.
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if h1 != want {
		t.Errorf("expected hash %q, got %q", want, h1)
	}
}

func TestContentHashHex_DifferentInputs(t *testing.T) {
	h1 := ContentHashHex([]byte("aaa"))
	h2 := ContentHashHex([]byte("bbb"))
	if h1 == h2 {
		t.Error("expected different hashes for different inputs")
	}
}

func TestContentHashHex_EmptyInput(t *testing.T) {
	h := ContentHashHex([]byte{})
	// SHA-256 of empty input is well-known.
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if h != want {
		t.Errorf("expected hash %q, got %q", want, h)
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := NewUploadJob("sop", "sop.docx", "", nil)
	if job.ID == "" || job.Status != StatusQueued || job.Source != SourceUpload {
		t.Fatalf("unexpected new job %+v", job.Snapshot())
	}

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusExtracting, "extracting"},
		{StatusChunking, "chunking"},
		{StatusPublishing, "publishing"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJob_DoneClosesOnTerminalStatus(t *testing.T) {
	job := NewSyncJob("", "file-1")
	select {
	case <-job.Done():
		t.Fatal("expected Done open while queued")
	default:
	}
	job.SetStatus(StatusPartial, "done")
	job.SetStatus(StatusFailed, "again")
	select {
	case <-job.Done():
	default:
		t.Fatal("expected Done closed after terminal status")
	}

	literal := &Job{ID: "x", Status: StatusCompleted}
	select {
	case <-literal.Done():
	default:
		t.Fatal("expected Done closed for a job created already terminal")
	}
}

func TestJob_AddError(t *testing.T) {
	job := &Job{ID: "err-test", UpdatedAt: time.Now()}
	job.AddError("sink github: 502")
	job.AddError("notify: timeout")

	snap := job.Snapshot()
	if len(snap.Progress.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Progress.Errors))
	}
	if snap.Progress.Errors[0] != "sink github: 502" {
		t.Errorf("expected first error %q, got %q", "sink github: 502", snap.Progress.Errors[0])
	}
}

func TestJob_SetChunksCountsImages(t *testing.T) {
	job := &Job{ID: "chunks-test"}
	chunks := []document.Chunk{
		{ID: 0, Images: []document.ImageAttachment{{Number: 1}, {Number: 2}}},
		{ID: 1},
	}
	job.SetChunks(chunks, 1)

	snap := job.Snapshot()
	if snap.Progress.TotalChunks != 2 || snap.Progress.TotalImages != 2 || snap.Progress.MissingImages != 1 {
		t.Errorf("unexpected progress %+v", snap.Progress)
	}
	if len(job.Chunks()) != 2 {
		t.Errorf("expected chunks stored, got %d", len(job.Chunks()))
	}
}

func TestJob_SinkResults(t *testing.T) {
	job := &Job{ID: "sink-test"}
	job.AddSinkResult("file", true)
	job.AddSinkResult("s3", false)

	snap := job.Snapshot()
	if len(snap.Progress.SinksWritten) != 1 || snap.Progress.SinksWritten[0] != "file" {
		t.Errorf("unexpected written %v", snap.Progress.SinksWritten)
	}
	if len(snap.Progress.SinksFailed) != 1 || snap.Progress.SinksFailed[0] != "s3" {
		t.Errorf("unexpected failed %v", snap.Progress.SinksFailed)
	}

	// Snapshot slices are copies.
	snap.Progress.SinksWritten[0] = "changed"
	if job.Snapshot().Progress.SinksWritten[0] != "file" {
		t.Error("expected snapshot to be independent of the job")
	}
}

func TestJob_SetSource(t *testing.T) {
	job := NewSyncJob("", "file-1")
	job.SetSource("Store SOP.docx", "Store SOP", []byte("docx"))

	snap := job.Snapshot()
	if snap.Filename != "Store SOP.docx" || snap.Title != "Store SOP" {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if string(job.FileData()) != "docx" {
		t.Errorf("expected file data set, got %q", job.FileData())
	}
}

func TestJob_FileData(t *testing.T) {
	job := &Job{ID: "data-test"}
	data := []byte("file content here")
	job.SetFileData(data)
	got := job.FileData()
	if string(got) != string(data) {
		t.Errorf("expected file data %q, got %q", data, got)
	}
	job.releaseFileData()
	if job.FileData() != nil {
		t.Error("expected file data released")
	}
}

func TestJob_SnapshotSlicesNotNil(t *testing.T) {
	// Snapshot should always return non-nil slices.
	job := &Job{ID: "snap-test", UpdatedAt: time.Now()}
	snap := job.Snapshot()
	if snap.Progress.Errors == nil || snap.Progress.SinksWritten == nil || snap.Progress.SinksFailed == nil {
		t.Error("expected non-nil slices in snapshot")
	}
	if len(snap.Progress.Errors) != 0 {
		t.Errorf("expected empty errors, got %d", len(snap.Progress.Errors))
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := &Job{ID: "store-1", UpdatedAt: time.Now()}
	store.Put(job)

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != "store-1" {
		t.Errorf("expected ID %q, got %q", "store-1", got.ID)
	}
}

func TestJobStore_GetMissing(t *testing.T) {
	store := NewJobStore(time.Hour)
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := &Job{ID: "old", Status: StatusCompleted, UpdatedAt: time.Now()}
	running := &Job{ID: "running", Status: StatusPublishing, UpdatedAt: time.Now()}
	store.Put(expired)
	store.Put(running)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	// Add a fresh job.
	fresh := &Job{ID: "new", Status: StatusCompleted, UpdatedAt: time.Now()}
	store.Put(fresh)

	store.Cleanup()

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("running") == nil {
		t.Error("expected unfinished job to survive cleanup")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
	if store.Len() != 2 {
		t.Errorf("expected 2 jobs left, got %d", store.Len())
	}
}

func TestJobStore_CleanupEmpty(t *testing.T) {
	store := NewJobStore(time.Hour)
	// Should not panic on empty store.
	store.Cleanup()
}
