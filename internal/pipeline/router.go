package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/coursemind/api/internal/model"
)

// ErrUnsupportedFileType means no pipeline is registered for a job's file
// type. Jobs hitting this fail immediately and are never retried.
var ErrUnsupportedFileType = errors.New("unsupported file type")

// Router owns the pipeline registry. The registry is fixed at construction
// so routing decisions stay deterministic.
type Router struct {
	pipelines map[model.FileType]ContentPipeline
}

// NewRouter builds a router over the given pipelines, one per file type.
func NewRouter(pipelines ...ContentPipeline) *Router {
	registry := make(map[model.FileType]ContentPipeline, len(pipelines))
	for _, p := range pipelines {
		registry[p.FileType()] = p
	}
	return &Router{pipelines: registry}
}

// Initialize warms every registered pipeline, failing fast on the first
// initialization error so the consumer never starts half-ready.
func (r *Router) Initialize(ctx context.Context) error {
	for ft, p := range r.pipelines {
		if err := p.Initialize(ctx); err != nil {
			return fmt.Errorf("pipeline %s failed to initialize: %w", ft, err)
		}
	}
	return nil
}

// Route returns the pipeline registered for the job's file type.
func (r *Router) Route(job *model.IngestionJob) (ContentPipeline, error) {
	p, ok := r.pipelines[job.FileType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFileType, job.FileType)
	}
	return p, nil
}
