package model

// File types (ingestion modalities)
type FileType string

const (
	FileTypeVideo    FileType = "video"
	FileTypeAudio    FileType = "audio"
	FileTypeDocument FileType = "document"
	FileTypeImage    FileType = "image"
	FileTypeUnknown  FileType = "unknown"
)

var ValidFileTypes = []FileType{
	FileTypeVideo, FileTypeAudio, FileTypeDocument, FileTypeImage,
}

// ParseFileType maps a raw string to a FileType. Anything unrecognized
// becomes FileTypeUnknown so the router can reject it explicitly.
func ParseFileType(s string) FileType {
	for _, ft := range ValidFileTypes {
		if s == string(ft) {
			return ft
		}
	}
	return FileTypeUnknown
}

// Job status
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Pipeline step status
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
)

// Job log levels
type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Stream chunk types for streaming query responses
type StreamChunkType string

const (
	StreamChunkStatus  StreamChunkType = "status"
	StreamChunkSources StreamChunkType = "sources"
	StreamChunkAnswer  StreamChunkType = "answer"
	StreamChunkDone    StreamChunkType = "done"
)
