package model

import "time"

// IngestURLRequest is the JSON body of POST /api/ingest when the content is
// referenced by URL rather than uploaded directly.
type IngestURLRequest struct {
	FileURL  string            `json:"fileUrl" validate:"required,url"`
	FileType string            `json:"fileType" validate:"required"`
	Title    string            `json:"title,omitempty"`
	CourseID string            `json:"courseId,omitempty"`
	Tags     []string          `json:"tags,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Priority int               `json:"priority,omitempty" validate:"omitempty,min=0,max=10"`
}

// IngestResponse acknowledges an enqueued ingestion job.
type IngestResponse struct {
	JobID     string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// StatusResponse is the body of GET /api/status/:jobId.
type StatusResponse struct {
	JobID       string     `json:"jobId"`
	FileType    FileType   `json:"fileType"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"currentStep,omitempty"`
	Steps       []string   `json:"steps,omitempty"`
	Error       *string    `json:"error,omitempty"`
	Attempts    int        `json:"attempts"`
	ChunkCount  int        `json:"chunkCount"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// LogsResponse is the body of GET /api/status/:jobId/logs.
type LogsResponse struct {
	JobID string        `json:"jobId"`
	Logs  []JobLogEntry `json:"logs"`
}
