package model

import "time"

// SourceInfo locates a chunk within its original file. Page is set for
// documents, Timestamp (seconds) for video/audio.
type SourceInfo struct {
	FileID    string   `json:"fileId"`
	JobID     string   `json:"jobId"`
	Page      *int     `json:"page,omitempty"`
	Timestamp *float64 `json:"timestamp,omitempty"`
}

// CanonicalChunk is the normalized, modality-agnostic unit of retrievable
// text produced by ingestion. Immutable after creation except for the later
// addition of Embedding by the chunk store.
type CanonicalChunk struct {
	ChunkID       string            `json:"chunkId"`
	Text          string            `json:"text"`
	Modality      FileType          `json:"modality"`
	Source        SourceInfo        `json:"source"`
	VisualContext string            `json:"visualContext,omitempty"`
	Confidence    float64           `json:"confidence"`
	Embedding     []float32         `json:"embedding,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// ClampConfidence bounds Confidence to [0,1].
func (c *CanonicalChunk) ClampConfidence() {
	if c.Confidence < 0 {
		c.Confidence = 0
	}
	if c.Confidence > 1 {
		c.Confidence = 1
	}
}

// StoredChunk is a CanonicalChunk accepted by the chunk store. Score is
// populated only on query results.
type StoredChunk struct {
	CanonicalChunk
	VectorID string    `json:"vectorId"`
	StoredAt time.Time `json:"storedAt"`
	Score    float64   `json:"score,omitempty"`
}
