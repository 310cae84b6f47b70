package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/FadeevMax/test-web-sop/internal/chunker"
	"github.com/FadeevMax/test-web-sop/internal/docsource"
	"github.com/FadeevMax/test-web-sop/internal/metadata"
	"github.com/FadeevMax/test-web-sop/internal/notify"
	"github.com/FadeevMax/test-web-sop/internal/parser"
	"github.com/FadeevMax/test-web-sop/internal/sink"
)

// Fetcher exports a cloud document. *docsource.Client implements it.
type Fetcher interface {
	Export(ctx context.Context, fileID string) (*docsource.Export, error)
}

// WorkerConfig holds the per-run settings shared by all workers.
type WorkerConfig struct {
	ChunksFile         string
	Format             string
	MaxConcurrentStore int
	PDFFallback        bool
}

// Worker processes a single document job.
type Worker struct {
	builder  *chunker.Builder
	sinks    []sink.Sink
	notifier notify.Notifier
	fetcher  Fetcher
	stats    *LatencyStats
	log      *slog.Logger
	cfg      WorkerConfig

	wait func(attempt int) time.Duration
}

func NewWorker(builder *chunker.Builder, sinks []sink.Sink, notifier notify.Notifier, fetcher Fetcher, stats *LatencyStats, log *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.MaxConcurrentStore <= 0 {
		cfg.MaxConcurrentStore = 1
	}
	if cfg.ChunksFile == "" {
		cfg.ChunksFile = "semantic_chunks.json"
	}
	if stats == nil {
		stats = NewLatencyStats(time.Hour)
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if builder == nil {
		builder = chunker.New(chunker.Config{}, nil, log)
	}
	return &Worker{
		builder:  builder,
		sinks:    sinks,
		notifier: notifier,
		fetcher:  fetcher,
		stats:    stats,
		log:      log,
		cfg:      cfg,
		wait:     Backoff,
	}
}

// Process runs the full pipeline for a job and leaves it in a terminal status.
func (w *Worker) Process(ctx context.Context, job *Job) {
	start := time.Now()
	log := w.log.With("job_id", job.ID, "source", job.Source)

	fail := func(phase string, err error) {
		log.Error(phase+" failed", "error", err)
		job.AddError(fmt.Sprintf("%s: %s", phase, err))
		job.SetStatus(StatusFailed, phase)
	}

	// Phase 1: Fetch
	if job.Source == SourceDrive {
		job.SetStatus(StatusFetching, "fetching")
		if w.fetcher == nil {
			fail("fetching", fmt.Errorf("no document source configured"))
			return
		}
		var exp *docsource.Export
		err := withRetry(ctx, w.wait, func(attempt int, err error) {
			log.Warn("retryable fetch error", "attempt", attempt, "error", err)
		}, func() error {
			var err error
			exp, err = w.fetcher.Export(ctx, job.FileID)
			return err
		})
		if err != nil {
			fail("fetching", err)
			return
		}
		job.SetSource(exp.Filename(), exp.Name, exp.Data)
		log.Info("exported document", "name", exp.Name, "bytes", len(exp.Data))
	}

	// Phase 2: Extract
	job.SetStatus(StatusExtracting, "extracting")
	data := job.FileData()
	job.SetContentHash(ContentHashHex(data))

	p, err := parser.ForFile(job.Filename)
	if err != nil {
		fail("extracting", err)
		return
	}
	if pp, ok := p.(*parser.PDFParser); ok {
		pp.FallbackPdftotext = w.cfg.PDFFallback
	}
	doc, err := p.Parse(bytes.NewReader(data), job.Filename)
	if err != nil {
		fail("extracting", err)
		return
	}
	job.releaseFileData()

	snap := job.Snapshot()
	if snap.Title != "" {
		doc.Title = snap.Title
	}
	docID := snap.DocID
	if docID == "" {
		docID = sink.DocKey(doc.Title)
	}
	job.SetTitle(doc.Title, docID)
	log = log.With("doc_id", docID)
	job.SetTotalElements(len(doc.Elements))

	// Phase 3: Build
	job.SetStatus(StatusChunking, "chunking")
	chunks, err := w.builder.Build(doc.Elements)
	if err != nil {
		fail("chunking", err)
		return
	}
	if err := metadata.CheckAll(chunks); err != nil {
		fail("chunking", fmt.Errorf("placeholder check: %w", err))
		return
	}

	chunksFile := sink.ChunksFileName(w.cfg.ChunksFile, w.cfg.Format)
	art, missing := sink.Resolve(docID, doc, chunks, chunksFile)
	for _, ref := range missing {
		log.Warn("image binary missing", "image_ref", ref)
		job.AddError(fmt.Sprintf("image %s: no binary", ref))
	}
	job.SetChunks(chunks, len(missing))

	tokens := 0
	for _, c := range chunks {
		tokens += metadata.EstimateTokens(c.Text)
	}
	log.Info("chunked document",
		"elements", len(doc.Elements), "chunks", len(chunks),
		"images", len(art.Images), "est_tokens", tokens)

	if len(w.sinks) == 0 {
		job.SetStatus(StatusCompleted, "done")
		return
	}

	// Phase 4: Publish to every sink with bounded concurrency.
	job.SetStatus(StatusPublishing, "publishing")
	type sinkResult struct {
		name string
		err  error
	}
	results := make(chan sinkResult, len(w.sinks))
	sem := make(chan struct{}, w.cfg.MaxConcurrentStore)

	for _, s := range w.sinks {
		sem <- struct{}{}
		go func(s sink.Sink) {
			defer func() { <-sem }()
			t0 := time.Now()
			err := withRetry(ctx, w.wait, func(attempt int, err error) {
				log.Warn("retryable sink error", "sink", s.Name(), "attempt", attempt, "error", err)
			}, func() error {
				return s.Write(ctx, art)
			})
			w.stats.Record(s.Name(), time.Since(t0).Milliseconds(), err == nil)
			results <- sinkResult{name: s.Name(), err: err}
		}(s)
	}

	var written []string
	for range w.sinks {
		r := <-results
		job.AddSinkResult(r.name, r.err == nil)
		if r.err != nil {
			log.Error("sink write failed", "sink", r.name, "error", r.err)
			job.AddError(fmt.Sprintf("sink %s: %s", r.name, r.err))
			continue
		}
		written = append(written, r.name)
	}
	sort.Strings(written)

	var status JobStatus
	switch {
	case len(written) == len(w.sinks):
		status = StatusCompleted
	case len(written) > 0:
		status = StatusPartial
	default:
		job.SetStatus(StatusFailed, "publishing")
		return
	}
	log.Info("published chunks", "sinks", written, "status", status)

	// Phase 5: Notify
	if w.notifier != nil {
		ev := notify.NewEvent(job.ID, docID, doc.Title, string(status), written, len(chunks), len(art.Images), time.Since(start))
		if err := w.notifier.Publish(ctx, ev); err != nil {
			log.Warn("notify failed", "error", err)
			job.AddError(fmt.Sprintf("notify: %s", err))
		}
	}

	job.SetStatus(status, "done")
}

// Stats returns the sink latency tracker.
func (w *Worker) Stats() *LatencyStats {
	return w.stats
}
