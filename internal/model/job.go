package model

import "time"

// IngestionJob describes one unit of ingestion work. It is immutable once
// created; the queue message body mirrors this struct.
type IngestionJob struct {
	JobID     string            `json:"jobId"`
	FileType  FileType          `json:"fileType"`
	FilePath  string            `json:"filePath"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	Priority  int               `json:"priority,omitempty"`
}

// Job is the mutable lifecycle record for an ingestion job, keyed by the
// IngestionJob's ID. Status and CompletedAt are written only by the queue
// consumer; progress updates flow through ApplyProgress.
type Job struct {
	ID          string            `json:"id"`
	FileType    FileType          `json:"fileType"`
	FilePath    string            `json:"filePath"`
	Status      JobStatus         `json:"status"`
	Progress    int               `json:"progress"`
	CurrentStep string            `json:"currentStep,omitempty"`
	Steps       []string          `json:"steps,omitempty"`
	Error       *string           `json:"error,omitempty"`
	Attempts    int               `json:"attempts"`
	ChunkCount  int               `json:"chunkCount"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	StartedAt   *time.Time        `json:"startedAt,omitempty"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
}

// ApplyProgress records a progress update. Progress is monotonically
// non-decreasing while the job is in flight, and updates against a terminal
// job are ignored. Returns true if the record changed.
func (j *Job) ApplyProgress(progress int, step string) bool {
	if j.Status.Terminal() {
		return false
	}
	if progress > 100 {
		progress = 100
	}
	changed := false
	if progress > j.Progress {
		j.Progress = progress
		changed = true
	}
	if step != "" && step != j.CurrentStep {
		j.CurrentStep = step
		changed = true
	}
	return changed
}

// JobLogEntry is one append-only diagnostic entry for a job.
type JobLogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     LogLevel               `json:"level"`
	Message   string                 `json:"message"`
	Step      string                 `json:"step,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}
