package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coursemind/api/internal/client"
	"github.com/coursemind/api/internal/config"
	"github.com/coursemind/api/internal/model"
)

const (
	summaryRetention = 24 * time.Hour
	summaryMaxChunks = 40
)

var ErrJobNotCompleted = errors.New("job not completed")

// JobChunkLister exposes a job's stored chunks. Implemented by
// store.ChunkStore.
type JobChunkLister interface {
	JobChunks(ctx context.Context, jobID string) ([]model.StoredChunk, error)
}

// SummaryService derives a prose summary from a completed job's stored
// chunks. Summaries are generated once and cached.
type SummaryService struct {
	redis     *redis.Client
	ingest    *IngestService
	chunks    JobChunkLister
	generator client.Generator
	prompts   config.PromptConfig
}

func NewSummaryService(redisClient *redis.Client, ingest *IngestService, chunks JobChunkLister, generator client.Generator, prompts config.PromptConfig) *SummaryService {
	return &SummaryService{
		redis:     redisClient,
		ingest:    ingest,
		chunks:    chunks,
		generator: generator,
		prompts:   prompts,
	}
}

// Summarize returns the summary for a completed job, generating and caching
// it on first request.
func (s *SummaryService) Summarize(ctx context.Context, jobID string) (*model.Summary, error) {
	status, err := s.ingest.GetStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if status.Status != model.JobStatusCompleted {
		return nil, ErrJobNotCompleted
	}

	key := "summary:" + jobID
	if cached, err := s.redis.Get(ctx, key).Bytes(); err == nil {
		var summary model.Summary
		if err := json.Unmarshal(cached, &summary); err == nil {
			return &summary, nil
		}
	}

	chunks, err := s.chunks.JobChunks(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("job has no stored chunks")
	}

	// Order by position in the source so the summary follows the material.
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunkOrder(&chunks[i]) < chunkOrder(&chunks[j])
	})
	if len(chunks) > summaryMaxChunks {
		chunks = chunks[:summaryMaxChunks]
	}

	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Text
	}
	prompt := resolveTemplate(s.prompts.SummaryTemplate, map[string]string{
		"context": strings.Join(parts, "\n\n"),
	})

	text, err := s.generator.Generate(ctx, s.prompts.AnswerSystem, prompt)
	if err != nil {
		return nil, fmt.Errorf("summary generation failed: %w", err)
	}

	summary := &model.Summary{
		JobID:       jobID,
		Summary:     text,
		ChunkCount:  len(chunks),
		GeneratedAt: time.Now(),
	}
	if data, err := json.Marshal(summary); err == nil {
		s.redis.Set(ctx, key, data, summaryRetention)
	}
	return summary, nil
}

func chunkOrder(c *model.StoredChunk) float64 {
	switch {
	case c.Source.Page != nil:
		return float64(*c.Source.Page)
	case c.Source.Timestamp != nil:
		return *c.Source.Timestamp
	default:
		return 0
	}
}
