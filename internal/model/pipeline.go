package model

import "time"

// PipelineStep is transient bookkeeping for one stage of a pipeline run,
// used to derive job progress and the current step name. Not persisted
// independently of the job record.
type PipelineStep struct {
	Name        string     `json:"name"`
	Progress    int        `json:"progress"`
	Status      StepStatus `json:"status"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// ProcessingResult is what a pipeline returns for one job.
type ProcessingResult struct {
	Success    bool             `json:"success"`
	Progress   int              `json:"progress"`
	ChunkCount int              `json:"chunks"`
	Chunks     []CanonicalChunk `json:"-"`
	Steps      []PipelineStep   `json:"steps,omitempty"`
	Error      string           `json:"error,omitempty"`
}
