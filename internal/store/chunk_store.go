package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/redis/go-redis/v9"

	"github.com/coursemind/api/internal/client"
	"github.com/coursemind/api/internal/model"
)

const (
	chunkKeyPrefix = "chunk:"
	jobIndexPrefix = "chunkindex:job:"
	globalIndexKey = "chunkindex:all"
	chunkRetention = 0 // no TTL; chunk retention is an external policy
	defaultTopK    = 5
)

// ChunkStore persists canonical chunks into redis and serves similarity
// queries over them. Embeddings are computed on store through a bounded
// worker pool. Vector IDs derive deterministically from chunk IDs, so
// re-submitting a chunk after a retried job overwrites rather than
// duplicates (last-write-wins).
type ChunkStore struct {
	redis    *redis.Client
	embedder client.Embedder
	pool     *ants.Pool
}

// NewChunkStore creates a chunk store with an embedding pool of the given
// size.
func NewChunkStore(redisClient *redis.Client, embedder client.Embedder, poolSize int) (*ChunkStore, error) {
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding pool: %w", err)
	}
	return &ChunkStore{redis: redisClient, embedder: embedder, pool: pool}, nil
}

// Close releases the embedding pool.
func (s *ChunkStore) Close() {
	s.pool.Release()
}

// Store embeds and persists the given chunks, returning the stored records.
func (s *ChunkStore) Store(ctx context.Context, chunks []model.CanonicalChunk) ([]model.StoredChunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	if err := s.embedAll(ctx, chunks); err != nil {
		return nil, err
	}

	now := time.Now()
	stored := make([]model.StoredChunk, len(chunks))
	pipe := s.redis.TxPipeline()
	for i, chunk := range chunks {
		stored[i] = model.StoredChunk{
			CanonicalChunk: chunk,
			VectorID:       "vec:" + chunk.ChunkID,
			StoredAt:       now,
		}
		data, err := json.Marshal(&stored[i])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal chunk %s: %w", chunk.ChunkID, err)
		}
		pipe.Set(ctx, chunkKeyPrefix+chunk.ChunkID, data, chunkRetention)
		pipe.SAdd(ctx, jobIndexPrefix+chunk.Source.JobID, chunk.ChunkID)
		pipe.SAdd(ctx, globalIndexKey, chunk.ChunkID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to persist chunks: %w", err)
	}
	return stored, nil
}

// embedAll fills in missing embeddings, one chunk per pool task.
func (s *ChunkStore) embedAll(ctx context.Context, chunks []model.CanonicalChunk) error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i := range chunks {
		if len(chunks[i].Embedding) > 0 {
			continue
		}
		i := i
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			vec, err := s.embedder.EmbedText(ctx, chunks[i].Text)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("failed to embed chunk %s: %w", chunks[i].ChunkID, err)
				}
				return
			}
			chunks[i].Embedding = vec
		})
		if err != nil {
			wg.Done()
			return fmt.Errorf("embedding pool rejected task: %w", err)
		}
	}
	wg.Wait()
	return firstErr
}

// Query returns the topK stored chunks ranked by cosine similarity against
// the query embedding, after applying filters.
func (s *ChunkStore) Query(ctx context.Context, filters *model.QueryFilters, embedding []float32, topK int) ([]model.StoredChunk, error) {
	if topK <= 0 {
		topK = defaultTopK
	}

	candidates, err := s.loadCandidates(ctx, filters)
	if err != nil {
		return nil, err
	}

	matched := candidates[:0]
	for _, c := range candidates {
		if matchesFilters(&c, filters) {
			c.Score = cosineSimilarity(embedding, c.Embedding)
			matched = append(matched, c)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Score > matched[j].Score
	})
	if len(matched) > topK {
		matched = matched[:topK]
	}
	return matched, nil
}

// JobChunks returns all stored chunks produced by one job.
func (s *ChunkStore) JobChunks(ctx context.Context, jobID string) ([]model.StoredChunk, error) {
	ids, err := s.redis.SMembers(ctx, jobIndexPrefix+jobID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read job chunk index: %w", err)
	}
	return s.loadChunks(ctx, ids)
}

func (s *ChunkStore) loadCandidates(ctx context.Context, filters *model.QueryFilters) ([]model.StoredChunk, error) {
	// Job-scoped queries read only the per-job index sets; everything else
	// scans the global index.
	var ids []string
	if filters != nil && len(filters.JobIDs) > 0 {
		keys := make([]string, len(filters.JobIDs))
		for i, jobID := range filters.JobIDs {
			keys[i] = jobIndexPrefix + jobID
		}
		union, err := s.redis.SUnion(ctx, keys...).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read chunk indexes: %w", err)
		}
		ids = union
	} else {
		all, err := s.redis.SMembers(ctx, globalIndexKey).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read chunk index: %w", err)
		}
		ids = all
	}
	return s.loadChunks(ctx, ids)
}

func (s *ChunkStore) loadChunks(ctx context.Context, ids []string) ([]model.StoredChunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = chunkKeyPrefix + id
	}
	values, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}

	chunks := make([]model.StoredChunk, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // index entry with no backing record
		}
		var c model.StoredChunk
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			continue
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// matchesFilters applies every non-empty filter field; all must match.
func matchesFilters(c *model.StoredChunk, f *model.QueryFilters) bool {
	if f == nil {
		return true
	}
	if len(f.Modalities) > 0 {
		found := false
		for _, m := range f.Modalities {
			if c.Modality == m {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.JobIDs) > 0 {
		found := false
		for _, id := range f.JobIDs {
			if c.Source.JobID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.CourseID != "" && c.Metadata["courseId"] != f.CourseID {
		return false
	}
	if f.UserID != "" && c.Metadata["userId"] != f.UserID {
		return false
	}
	if len(f.Tags) > 0 {
		chunkTags := strings.Split(c.Metadata["tags"], ",")
		tagSet := make(map[string]bool, len(chunkTags))
		for _, t := range chunkTags {
			tagSet[strings.TrimSpace(t)] = true
		}
		for _, want := range f.Tags {
			if !tagSet[want] {
				return false
			}
		}
	}
	if f.From != nil && c.StoredAt.Before(*f.From) {
		return false
	}
	if f.To != nil && c.StoredAt.After(*f.To) {
		return false
	}
	return true
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched or empty vectors score zero.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
