// Package ingest turns uploaded resumes and fetched web pages into
// knowledge items, processed asynchronously through the SQLite job queue.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/velikanov/folio/internal/storage"
)

// JobType is the queue type claimed by this worker.
const JobType = "import"

// Payload describes one import job.
type Payload struct {
	// Kind is "resume" for a local PDF or "url" for a web page.
	Kind string `json:"kind"`
	// Source is the PDF path or the page URL.
	Source string `json:"source"`
	// Topic overrides the derived knowledge topic when set.
	Topic string `json:"topic,omitempty"`
}

// JobStore abstracts the queue and knowledge persistence.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	AddKnowledgeItem(k storage.KnowledgeItem) error
}

// Invalidator is notified after a successful import so cached content is
// refreshed. Implemented by content.Catalog.
type Invalidator interface {
	Invalidate()
}

// Worker processes import jobs from the SQLite job queue.
type Worker struct {
	store   JobStore
	catalog Invalidator
	fetcher *Fetcher
	poll    time.Duration
	logger  *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, catalog Invalidator, fetcher *Fetcher, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if fetcher == nil {
		fetcher = NewFetcher(0)
	}
	return &Worker{
		store:   store,
		catalog: catalog,
		fetcher: fetcher,
		poll:    pollInterval,
		logger:  slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single import job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobType})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

// maxDescription caps imported descriptions so a single document cannot
// dominate the assistant's context window.
const maxDescription = 4000

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var payload Payload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	var topic, text string
	var err error
	switch payload.Kind {
	case "resume":
		topic, text, err = ExtractPDF(payload.Source)
	case "url":
		topic, text, err = w.fetcher.ExtractURL(ctx, payload.Source)
	default:
		return fmt.Errorf("unknown import kind %q", payload.Kind)
	}
	if err != nil {
		return fmt.Errorf("extracting %s: %w", payload.Kind, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("no text extracted from %s", payload.Source)
	}
	if len(text) > maxDescription {
		text = text[:maxDescription]
	}
	if payload.Topic != "" {
		topic = payload.Topic
	}
	if topic == "" {
		topic = payload.Source
	}

	item := storage.KnowledgeItem{
		ID:          uuid.NewString(),
		Topic:       topic,
		Description: text,
		Proficiency: 50,
		CreatedAt:   time.Now(),
	}
	if err := w.store.AddKnowledgeItem(item); err != nil {
		return fmt.Errorf("saving knowledge item: %w", err)
	}

	if w.catalog != nil {
		w.catalog.Invalidate()
	}
	w.logger.Info("imported knowledge item", "topic", topic, "chars", len(text))
	return nil
}
