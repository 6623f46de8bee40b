package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/coursemind/api/internal/model"
	"github.com/coursemind/api/internal/pipeline"
)

// JobStore records job lifecycle state. Implemented by service.IngestService.
type JobStore interface {
	MarkProcessing(ctx context.Context, jobID string, attempt int, steps []string) error
	UpdateProgress(ctx context.Context, jobID string, progress int, step string) error
	CompleteJob(ctx context.Context, jobID string, chunkCount int) error
	FailJob(ctx context.Context, jobID, errMsg string) error
	AppendLog(ctx context.Context, jobID string, level model.LogLevel, step, message string, data map[string]interface{}) error
}

// ChunkSink accepts finished chunks. Implemented by store.ChunkStore.
type ChunkSink interface {
	Store(ctx context.Context, chunks []model.CanonicalChunk) ([]model.StoredChunk, error)
}

// Notifier pushes live job events to subscribers. Implemented by the
// websocket hub; may be nil.
type Notifier interface {
	BroadcastProgress(jobID string, progress int, status model.JobStatus, step string)
	BroadcastComplete(jobID string, chunkCount int)
	BroadcastError(jobID, code, message string)
}

// IngestWorker drives one dequeued ingestion job through the content router
// and the selected pipeline. It is the sole writer of terminal job status.
type IngestWorker struct {
	jobs       JobStore
	router     *pipeline.Router
	chunks     ChunkSink
	notifier   Notifier
	maxRetries int
}

// NewIngestWorker creates the job processor backing the queue consumer.
func NewIngestWorker(jobs JobStore, router *pipeline.Router, chunks ChunkSink, notifier Notifier, maxRetries int) *IngestWorker {
	return &IngestWorker{
		jobs:       jobs,
		router:     router,
		chunks:     chunks,
		notifier:   notifier,
		maxRetries: maxRetries,
	}
}

// ProcessTask is the asynq handler for ingestion tasks. A nil return
// acknowledges the task; an error return leaves it to asynq's retry or
// archive handling, so a crash mid-processing results in redelivery.
func (w *IngestWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var job model.IngestionJob
	if err := json.Unmarshal(t.Payload(), &job); err != nil {
		return fmt.Errorf("failed to unmarshal ingestion job: %v: %w", err, asynq.SkipRetry)
	}

	attempt, _ := asynq.GetRetryCount(ctx)
	if max, ok := asynq.GetMaxRetry(ctx); ok {
		// asynq's max retry counts re-deliveries; the attempt budget is one
		// higher.
		return w.Process(ctx, &job, attempt, max+1)
	}
	return w.Process(ctx, &job, attempt, w.maxRetries)
}

// Process runs the per-job algorithm. attempt is the number of prior
// failures; maxRetries bounds them. Returning an error wrapped with
// asynq.SkipRetry marks the failure permanent.
func (w *IngestWorker) Process(ctx context.Context, job *model.IngestionJob, attempt, maxRetries int) error {
	log.Printf("Starting ingestion job %s (type=%s attempt=%d)", job.JobID, job.FileType, attempt+1)

	p, routeErr := w.router.Route(job)
	var steps []string
	if routeErr == nil {
		steps = p.Steps()
	}

	if err := w.jobs.MarkProcessing(ctx, job.JobID, attempt, steps); err != nil {
		// Without a readable status record there is nothing safe to do but
		// let the queue redeliver.
		return fmt.Errorf("failed to mark job %s processing: %w", job.JobID, err)
	}

	if routeErr != nil {
		// Unsupported file type is permanent: fail now, never retry.
		w.failTerminal(ctx, job.JobID, routeErr.Error())
		w.logJob(ctx, job.JobID, model.LogLevelError, "route", routeErr.Error(), nil)
		return fmt.Errorf("%v: %w", routeErr, asynq.SkipRetry)
	}

	result, err := p.Process(ctx, job, func(progress int, step string) {
		if uerr := w.jobs.UpdateProgress(ctx, job.JobID, progress, step); uerr != nil {
			log.Printf("Failed to update progress for job %s: %v", job.JobID, uerr)
		}
		if w.notifier != nil {
			w.notifier.BroadcastProgress(job.JobID, progress, model.JobStatusProcessing, step)
		}
	})
	if err == nil && !result.Success {
		err = errors.New(result.Error)
	}
	if err != nil {
		return w.handleFailure(ctx, job, attempt, maxRetries, err)
	}

	stored, err := w.chunks.Store(ctx, result.Chunks)
	if err != nil {
		// Store failures follow the pipeline retry path.
		return w.handleFailure(ctx, job, attempt, maxRetries, fmt.Errorf("chunk store: %w", err))
	}

	if err := w.jobs.CompleteJob(ctx, job.JobID, len(stored)); err != nil {
		return fmt.Errorf("failed to record completion of job %s: %w", job.JobID, err)
	}
	w.logJob(ctx, job.JobID, model.LogLevelInfo, "", fmt.Sprintf("job completed with %d chunks", len(stored)), nil)
	if w.notifier != nil {
		w.notifier.BroadcastComplete(job.JobID, len(stored))
	}
	log.Printf("Ingestion job %s completed (%d chunks)", job.JobID, len(stored))
	return nil
}

// handleFailure decides retry versus terminal failure based on the attempt
// count. Only exhausted jobs are marked failed; retryable ones keep their
// record open and go back through the queue with backoff.
func (w *IngestWorker) handleFailure(ctx context.Context, job *model.IngestionJob, attempt, maxRetries int, cause error) error {
	if attempt+1 >= maxRetries {
		w.failTerminal(ctx, job.JobID, cause.Error())
		w.logJob(ctx, job.JobID, model.LogLevelError, "", fmt.Sprintf("job failed permanently after %d attempts: %v", attempt+1, cause), nil)
		log.Printf("Ingestion job %s failed permanently: %v", job.JobID, cause)
		return cause
	}

	w.logJob(ctx, job.JobID, model.LogLevelWarn, "", fmt.Sprintf("attempt %d failed, will retry: %v", attempt+1, cause), map[string]interface{}{
		"attempt": attempt + 1,
	})
	log.Printf("Ingestion job %s attempt %d failed, retrying: %v", job.JobID, attempt+1, cause)
	return cause
}

func (w *IngestWorker) failTerminal(ctx context.Context, jobID, errMsg string) {
	if err := w.jobs.FailJob(ctx, jobID, errMsg); err != nil {
		log.Printf("Failed to mark job %s as failed: %v", jobID, err)
	}
	if w.notifier != nil {
		w.notifier.BroadcastError(jobID, "INGEST_FAILED", errMsg)
	}
}

func (w *IngestWorker) logJob(ctx context.Context, jobID string, level model.LogLevel, step, msg string, data map[string]interface{}) {
	if err := w.jobs.AppendLog(ctx, jobID, level, step, msg, data); err != nil {
		log.Printf("Failed to append log for job %s: %v", jobID, err)
	}
}
