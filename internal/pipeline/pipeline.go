package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coursemind/api/internal/client"
	"github.com/coursemind/api/internal/model"
)

// ProgressFunc receives progress updates from a running pipeline. Progress
// is in [0,100]; step names the stage currently executing.
type ProgressFunc func(progress int, step string)

// ContentPipeline converts one modality of raw content into canonical
// chunks. Implementations report progress through the ProgressFunc and never
// write job status themselves; the queue consumer owns terminal transitions.
type ContentPipeline interface {
	// FileType returns the modality this pipeline handles.
	FileType() model.FileType

	// Steps returns the ordered step names of a processing run.
	Steps() []string

	// Initialize performs one-time setup (service warm-up). Safe to call
	// more than once; only the first call does work.
	Initialize(ctx context.Context) error

	// Process runs the extraction-then-chunking flow for one job. A failed
	// run returns a result with Success=false and partial step progress
	// preserved for diagnostics.
	Process(ctx context.Context, job *model.IngestionJob, report ProgressFunc) (*model.ProcessingResult, error)
}

// stepTracker keeps per-step bookkeeping during a pipeline run and folds it
// into a single overall progress figure for the reporter.
type stepTracker struct {
	steps  []model.PipelineStep
	report ProgressFunc
}

func newStepTracker(names []string, report ProgressFunc) *stepTracker {
	steps := make([]model.PipelineStep, len(names))
	for i, name := range names {
		steps[i] = model.PipelineStep{Name: name, Status: model.StepStatusPending}
	}
	return &stepTracker{steps: steps, report: report}
}

func (t *stepTracker) start(i int) {
	now := time.Now()
	t.steps[i].Status = model.StepStatusRunning
	t.steps[i].StartedAt = &now
	t.emit(i)
}

// advance records within-step progress as a fraction of the step's work.
func (t *stepTracker) advance(i int, frac float64) {
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	p := int(frac * 100)
	if p > t.steps[i].Progress {
		t.steps[i].Progress = p
		t.emit(i)
	}
}

func (t *stepTracker) complete(i int) {
	now := time.Now()
	t.steps[i].Status = model.StepStatusCompleted
	t.steps[i].Progress = 100
	t.steps[i].CompletedAt = &now
	t.emit(i)
}

func (t *stepTracker) fail(i int, err error) {
	now := time.Now()
	t.steps[i].Status = model.StepStatusFailed
	t.steps[i].Error = err.Error()
	t.steps[i].CompletedAt = &now
	t.emit(i)
}

// progress is the overall figure: each step contributes an equal share.
func (t *stepTracker) progress() int {
	if len(t.steps) == 0 {
		return 0
	}
	total := 0
	for _, s := range t.steps {
		total += s.Progress
	}
	return total / len(t.steps)
}

func (t *stepTracker) current() string {
	for _, s := range t.steps {
		if s.Status == model.StepStatusRunning || s.Status == model.StepStatusFailed {
			return s.Name
		}
	}
	if len(t.steps) > 0 {
		return t.steps[len(t.steps)-1].Name
	}
	return ""
}

func (t *stepTracker) emit(i int) {
	if t.report != nil {
		t.report(t.progress(), t.steps[i].Name)
	}
}

func (t *stepTracker) snapshot() []model.PipelineStep {
	out := make([]model.PipelineStep, len(t.steps))
	copy(out, t.steps)
	return out
}

// failedResult builds the ProcessingResult for a failed run, keeping the
// partial step progress visible.
func failedResult(t *stepTracker, err error) *model.ProcessingResult {
	return &model.ProcessingResult{
		Success:  false,
		Progress: t.progress(),
		Steps:    t.snapshot(),
		Error:    err.Error(),
	}
}

// resolveContentURL turns a job file path into a URL the extraction service
// can fetch. Absolute URLs pass through; bare keys are presigned against
// object storage.
func resolveContentURL(ctx context.Context, storage client.StorageClient, filePath string) (string, error) {
	if strings.HasPrefix(filePath, "http://") || strings.HasPrefix(filePath, "https://") {
		return filePath, nil
	}
	if storage == nil {
		// Development without object storage: hand the key through as-is.
		return filePath, nil
	}
	url, err := storage.GetSignedURL(ctx, filePath, 0)
	if err != nil {
		return "", fmt.Errorf("failed to sign content URL for %q: %w", filePath, err)
	}
	return url, nil
}

// fileIDFor returns the stable file identity recorded on chunk sources.
func fileIDFor(job *model.IngestionJob) string {
	if id, ok := job.Metadata["fileId"]; ok && id != "" {
		return id
	}
	return job.JobID
}

// chunkMetadata copies the job metadata fields retrieval filters on.
func chunkMetadata(job *model.IngestionJob) map[string]string {
	if len(job.Metadata) == 0 {
		return nil
	}
	meta := make(map[string]string)
	for _, key := range []string{"courseId", "userId", "tags", "title"} {
		if v, ok := job.Metadata[key]; ok && v != "" {
			meta[key] = v
		}
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

// useMock reports whether the pipeline should synthesize extraction output
// instead of calling the extraction service.
func useMock(ex client.Extractor) bool {
	return ex == nil || !ex.IsConfigured()
}

// mockText builds deterministic development text long enough to exercise
// the chunker.
func mockText(seed string, sentences int) string {
	var b strings.Builder
	for i := 0; i < sentences; i++ {
		fmt.Fprintf(&b, "This is sentence %d of the extracted development content for %s, standing in for real material. ", i+1, seed)
	}
	return strings.TrimSpace(b.String())
}
