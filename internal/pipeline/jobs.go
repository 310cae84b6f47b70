package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/FadeevMax/test-web-sop/internal/document"
	"github.com/google/uuid"
)

// JobStatus represents the state of a chunking job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusFetching   JobStatus = "fetching"
	StatusExtracting JobStatus = "extracting"
	StatusChunking   JobStatus = "chunking"
	StatusPublishing JobStatus = "publishing"
	StatusCompleted  JobStatus = "completed"
	StatusPartial    JobStatus = "partial"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions follow.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusPartial || s == StatusFailed
}

// Job sources.
const (
	SourceUpload = "upload"
	SourceDrive  = "drive"
)

// Job tracks the state of a single document run.
type Job struct {
	mu sync.Mutex

	ID     string `json:"job_id"`
	DocID  string `json:"doc_id"`
	Source string `json:"source"`
	FileID string `json:"file_id,omitempty"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`
	Title    string    `json:"title"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	chunks   []document.Chunk
	errors   []string
	done     chan struct{}
}

// Progress tracks processing progress.
type Progress struct {
	TotalElements int      `json:"total_elements"`
	TotalChunks   int      `json:"total_chunks"`
	TotalImages   int      `json:"total_images"`
	MissingImages int      `json:"missing_images"`
	SinksWritten  []string `json:"sinks_written"`
	SinksFailed   []string `json:"sinks_failed"`
	Errors        []string `json:"errors"`
}

// NewUploadJob creates a queued job for an uploaded file. An empty docID is
// derived from the filename later, once the title is known.
func NewUploadJob(docID, filename, title string, data []byte) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		DocID:     docID,
		Source:    SourceUpload,
		Status:    StatusQueued,
		Phase:     "queued",
		Filename:  filename,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		fileData:  data,
		done:      make(chan struct{}),
	}
}

// NewSyncJob creates a queued job that exports fileID from Drive.
func NewSyncJob(docID, fileID string) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		DocID:     docID,
		Source:    SourceDrive,
		FileID:    fileID,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
		done:      make(chan struct{}),
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes finished jobs idle for longer than the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := job.Status.Terminal() && now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically. A terminal status releases Wait.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
	if status.Terminal() && j.done != nil {
		select {
		case <-j.done:
		default:
			close(j.done)
		}
	}
}

// Done is closed once the job reaches a terminal status.
func (j *Job) Done() <-chan struct{} {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.done == nil {
		j.done = make(chan struct{})
		if j.Status.Terminal() {
			close(j.done)
		}
	}
	return j.done
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetSource records what was fetched for a Drive job.
func (j *Job) SetSource(filename, title string, data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Filename = filename
	if j.Title == "" {
		j.Title = title
	}
	j.fileData = data
	j.UpdatedAt = time.Now()
}

// SetTitle records the resolved title and document id.
func (j *Job) SetTitle(title, docID string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Title = title
	j.DocID = docID
	j.UpdatedAt = time.Now()
}

// SetContentHash records the hash of the raw source bytes.
func (j *Job) SetContentHash(h string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ContentHash = h
}

// SetTotalElements records the extracted element count.
func (j *Job) SetTotalElements(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalElements = n
	j.UpdatedAt = time.Now()
}

// SetChunks stores the built chunks and their counts.
func (j *Job) SetChunks(chunks []document.Chunk, missingImages int) {
	images := 0
	for _, c := range chunks {
		images += len(c.Images)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.chunks = chunks
	j.Progress.TotalChunks = len(chunks)
	j.Progress.TotalImages = images
	j.Progress.MissingImages = missingImages
	j.UpdatedAt = time.Now()
}

// Chunks returns the built chunks, or nil before the chunking phase ends.
func (j *Job) Chunks() []document.Chunk {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.chunks
}

// AddSinkResult records whether a sink write succeeded.
func (j *Job) AddSinkResult(name string, ok bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if ok {
		j.Progress.SinksWritten = append(j.Progress.SinksWritten, name)
	} else {
		j.Progress.SinksFailed = append(j.Progress.SinksFailed, name)
	}
	j.UpdatedAt = time.Now()
}

// SetFileData sets the raw file bytes for processing.
func (j *Job) SetFileData(data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = data
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// releaseFileData drops the source bytes once they are no longer needed.
func (j *Job) releaseFileData() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = nil
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	DocID       string    `json:"doc_id"`
	Source      string    `json:"source"`
	FileID      string    `json:"file_id,omitempty"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	Filename    string    `json:"filename"`
	Title       string    `json:"title"`
	Progress    Progress  `json:"progress"`
	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JobSnapshot{
		ID:       j.ID,
		DocID:    j.DocID,
		Source:   j.Source,
		FileID:   j.FileID,
		Status:   j.Status,
		Phase:    j.Phase,
		Filename: j.Filename,
		Title:    j.Title,
		Progress: Progress{
			TotalElements: j.Progress.TotalElements,
			TotalChunks:   j.Progress.TotalChunks,
			TotalImages:   j.Progress.TotalImages,
			MissingImages: j.Progress.MissingImages,
			SinksWritten:  nonNil(j.Progress.SinksWritten),
			SinksFailed:   nonNil(j.Progress.SinksFailed),
			Errors:        nonNil(j.Progress.Errors),
		},
		ContentHash: j.ContentHash,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string(nil), s...)
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
