// Package notify announces published chunk sets to downstream consumers
// such as the retrieval indexer.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// EventChunksPublished is the only event type emitted.
const EventChunksPublished = "chunks_published"

// Event is the payload published after a document's chunks are written.
type Event struct {
	EventType  string   `json:"event_type"`
	JobID      string   `json:"job_id"`
	DocID      string   `json:"doc_id"`
	Title      string   `json:"title"`
	Outcome    string   `json:"outcome"` // completed or partial
	Sinks      []string `json:"sinks"`   // sinks that succeeded
	ChunkCount int      `json:"chunk_count"`
	ImageCount int      `json:"image_count"`
	Timestamp  string   `json:"timestamp"` // RFC 3339
	DurationMs int64    `json:"duration_ms"`
}

// NewEvent fills in the type and timestamp.
func NewEvent(jobID, docID, title, outcome string, sinks []string, chunks, images int, took time.Duration) *Event {
	return &Event{
		EventType:  EventChunksPublished,
		JobID:      jobID,
		DocID:      docID,
		Title:      title,
		Outcome:    outcome,
		Sinks:      sinks,
		ChunkCount: chunks,
		ImageCount: images,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		DurationMs: took.Milliseconds(),
	}
}

// Notifier publishes events to one downstream system. Publish must respect
// context cancellation.
type Notifier interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// Multi fans an event out to several notifiers. One failing notifier does not
// stop the others; their errors are joined.
type Multi struct {
	notifiers []Notifier
	log       *slog.Logger
}

func NewMulti(log *slog.Logger, notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers, log: log}
}

// Len returns the number of configured notifiers.
func (m *Multi) Len() int {
	return len(m.notifiers)
}

func (m *Multi) Publish(ctx context.Context, event *Event) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Publish(ctx, event); err != nil {
			if m.log != nil {
				m.log.Warn("notify failed", "doc_id", event.DocID, "error", err)
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	var errs []error
	for _, n := range m.notifiers {
		errs = append(errs, n.Close())
	}
	return errors.Join(errs...)
}

// backoff is the wait before retry i (1-based): 500ms doubling.
func backoff(i int) time.Duration {
	return time.Duration(1<<uint(i-1)) * 500 * time.Millisecond
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
