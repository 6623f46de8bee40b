package model

import "time"

// QueryRequest is the body of POST /api/query.
type QueryRequest struct {
	Question string        `json:"question" validate:"required,min=1,max=2000"`
	JobIDs   []string      `json:"jobIds,omitempty"`
	Filters  *QueryFilters `json:"filters,omitempty"`
	Options  *QueryOptions `json:"options,omitempty"`
}

// QueryFilters scopes retrieval to a subset of stored chunks.
type QueryFilters struct {
	Modalities []FileType `json:"modalities,omitempty"`
	JobIDs     []string   `json:"jobIds,omitempty"`
	CourseID   string     `json:"courseId,omitempty"`
	UserID     string     `json:"userId,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
	From       *time.Time `json:"from,omitempty"`
	To         *time.Time `json:"to,omitempty"`
}

// QueryOptions tunes a single query call.
type QueryOptions struct {
	StreamResponse bool `json:"streamResponse,omitempty"`
	MaxResults     int  `json:"maxResults,omitempty"`
}

// QuerySource is one retrieved chunk cited in an answer.
type QuerySource struct {
	ChunkID    string     `json:"chunkId"`
	Snippet    string     `json:"snippet"`
	Score      float64    `json:"score"`
	Modality   FileType   `json:"modality"`
	SourceInfo SourceInfo `json:"sourceInfo"`
}

// QueryResult is the non-streaming query response.
type QueryResult struct {
	Answer         string        `json:"answer"`
	Sources        []QuerySource `json:"sources"`
	Confidence     float64       `json:"confidence"`
	ProcessingTime float64       `json:"processingTime"` // milliseconds
}

// StreamChunk is one event in a streamed query response. A stream is an
// ordered, finite sequence terminating in exactly one done event.
type StreamChunk struct {
	Type    StreamChunkType `json:"type"`
	Content interface{}     `json:"content,omitempty"`
}

// Summary is derived from a completed job's stored chunks.
type Summary struct {
	JobID       string    `json:"jobId"`
	Summary     string    `json:"summary"`
	ChunkCount  int       `json:"chunkCount"`
	GeneratedAt time.Time `json:"generatedAt"`
}
