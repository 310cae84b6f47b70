package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/FadeevMax/test-web-sop/internal/chunker"
	"github.com/FadeevMax/test-web-sop/internal/config"
	"github.com/FadeevMax/test-web-sop/internal/notify"
	"github.com/FadeevMax/test-web-sop/internal/sink"
)

// Deps are the collaborators a pipeline runs against. Notifier and Fetcher
// may be nil.
type Deps struct {
	Builder  *chunker.Builder
	Sinks    []sink.Sink
	Notifier notify.Notifier
	Fetcher  Fetcher
}

// Orchestrator manages the chunking pipeline.
type Orchestrator struct {
	jobs   *JobStore
	queue  chan *Job
	worker *Worker
	log    *slog.Logger
	cfg    config.Config

	syncMu   sync.Mutex
	lastSync *Job

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg config.Config, deps Deps, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:  NewJobStore(cfg.JobTTL),
		queue: make(chan *Job, cfg.MaxQueueSize),
		worker: NewWorker(deps.Builder, deps.Sinks, deps.Notifier, deps.Fetcher, NewLatencyStats(time.Hour), log, WorkerConfig{
			ChunksFile:         cfg.ChunksFile,
			Format:             cfg.OutputFormat,
			MaxConcurrentStore: cfg.MaxConcurrentStore,
			PDFFallback:        cfg.PDFFallbackPdftotext,
		}),
		log: log,
		cfg: cfg,
	}
}

// Start launches worker goroutines, the job store cleanup and, when
// configured, the periodic Google Doc sync.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					o.worker.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()

	if o.cfg.SyncInterval > 0 && o.cfg.GoogleDocID != "" {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.log.Info("periodic sync enabled", "doc", o.cfg.GoogleDocID, "interval", o.cfg.SyncInterval)
			ticker := time.NewTicker(o.cfg.SyncInterval)
			defer ticker.Stop()
			for {
				select {
				case <-workerCtx.Done():
					return
				case <-ticker.C:
					if _, err := o.SubmitSync("", o.cfg.GoogleDocID); err != nil {
						o.log.Warn("periodic sync skipped", "error", err)
					}
				}
			}
		}()
	}
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.AddError("queue full")
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// SubmitSync queues a Drive export of fileID. Only one sync job runs at a
// time; a request while one is pending returns that job and an error.
func (o *Orchestrator) SubmitSync(docID, fileID string) (*Job, error) {
	o.syncMu.Lock()
	defer o.syncMu.Unlock()
	if o.lastSync != nil && !o.lastSync.Snapshot().Status.Terminal() {
		return o.lastSync, fmt.Errorf("sync job %s still running", o.lastSync.ID)
	}
	job := NewSyncJob(docID, fileID)
	if err := o.Submit(job); err != nil {
		return job, err
	}
	o.lastSync = job
	return job, nil
}

// Run processes job synchronously on the caller's goroutine.
func (o *Orchestrator) Run(ctx context.Context, job *Job) JobSnapshot {
	o.jobs.Put(job)
	o.worker.Process(ctx, job)
	return job.Snapshot()
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Stats returns per-sink publish latency.
func (o *Orchestrator) Stats() *LatencyStats {
	return o.worker.Stats()
}

// SinkNames lists the configured sinks in publish order.
func (o *Orchestrator) SinkNames() []string {
	names := make([]string, 0, len(o.worker.sinks))
	for _, s := range o.worker.sinks {
		names = append(names, s.Name())
	}
	return names
}
