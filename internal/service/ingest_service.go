package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/coursemind/api/internal/config"
	"github.com/coursemind/api/internal/model"
	"github.com/coursemind/api/internal/worker"
)

const jobRetention = 7 * 24 * time.Hour

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobTerminal = errors.New("job already in terminal state")
)

// IngestService owns job lifecycle state: the job record, its append-only
// log, and the enqueue into the work queue. It enforces the status state
// machine: progress never decreases, and completed/failed are terminal.
type IngestService struct {
	redis       *redis.Client
	asynqClient *asynq.Client
	cfg         config.PipelineConfig
}

func NewIngestService(redisClient *redis.Client, asynqClient *asynq.Client, cfg config.PipelineConfig) *IngestService {
	return &IngestService{
		redis:       redisClient,
		asynqClient: asynqClient,
		cfg:         cfg,
	}
}

// CreateJob validates and enqueues a new ingestion job. Unknown file types
// are accepted here and rejected by the router, so the job record carries
// the failure reason.
func (s *IngestService) CreateJob(ctx context.Context, fileType, filePath string, metadata map[string]string, priority int) (*model.IngestResponse, error) {
	if filePath == "" {
		return nil, fmt.Errorf("filePath is required")
	}

	now := time.Now()
	ingestion := &model.IngestionJob{
		JobID:     uuid.New().String(),
		FileType:  model.ParseFileType(fileType),
		FilePath:  filePath,
		Metadata:  metadata,
		CreatedAt: now,
		Priority:  priority,
	}

	job := &model.Job{
		ID:        ingestion.JobID,
		FileType:  ingestion.FileType,
		FilePath:  filePath,
		Status:    model.JobStatusQueued,
		Progress:  0,
		Metadata:  metadata,
		CreatedAt: now,
	}
	if err := s.saveJob(ctx, job); err != nil {
		return nil, err
	}
	_ = s.AppendLog(ctx, job.ID, model.LogLevelInfo, "", fmt.Sprintf("job queued (type=%s)", ingestion.FileType), nil)

	payload, err := json.Marshal(ingestion)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job payload: %w", err)
	}

	// asynq retries are re-deliveries; the attempt budget is MaxRetries.
	maxRetry := s.cfg.MaxRetries - 1
	if maxRetry < 0 {
		maxRetry = 0
	}
	task := asynq.NewTask(worker.TaskTypeIngest, payload)
	opts := []asynq.Option{
		asynq.Queue(worker.QueueIngest),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(time.Duration(s.cfg.Timeout) * time.Second),
	}
	if _, err := s.asynqClient.EnqueueContext(ctx, task, opts...); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	return &model.IngestResponse{
		JobID:     job.ID,
		Status:    model.JobStatusQueued,
		CreatedAt: now,
	}, nil
}

// GetStatus returns the current status of a job.
func (s *IngestService) GetStatus(ctx context.Context, jobID string) (*model.StatusResponse, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &model.StatusResponse{
		JobID:       job.ID,
		FileType:    job.FileType,
		Status:      job.Status,
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
		Steps:       job.Steps,
		Error:       job.Error,
		Attempts:    job.Attempts,
		ChunkCount:  job.ChunkCount,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}, nil
}

// GetLogs returns a job's append-only log entries, oldest first.
func (s *IngestService) GetLogs(ctx context.Context, jobID string) ([]model.JobLogEntry, error) {
	if _, err := s.getJob(ctx, jobID); err != nil {
		return nil, err
	}
	raw, err := s.redis.LRange(ctx, logKey(jobID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read job log: %w", err)
	}
	logs := make([]model.JobLogEntry, 0, len(raw))
	for _, r := range raw {
		var entry model.JobLogEntry
		if err := json.Unmarshal([]byte(r), &entry); err != nil {
			continue
		}
		logs = append(logs, entry)
	}
	return logs, nil
}

// MarkProcessing records the start of a processing attempt (called by the
// worker). Terminal jobs are left untouched.
func (s *IngestService) MarkProcessing(ctx context.Context, jobID string, attempt int, steps []string) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return ErrJobTerminal
	}

	job.Status = model.JobStatusProcessing
	job.Attempts = attempt + 1
	if len(steps) > 0 {
		job.Steps = steps
	}
	if job.StartedAt == nil {
		now := time.Now()
		job.StartedAt = &now
	}
	if err := s.saveJob(ctx, job); err != nil {
		return err
	}
	return s.AppendLog(ctx, jobID, model.LogLevelInfo, "", fmt.Sprintf("processing attempt %d started", attempt+1), nil)
}

// UpdateProgress records pipeline progress (called by the worker on behalf
// of the active pipeline). Progress is monotonic; terminal jobs ignore
// updates.
func (s *IngestService) UpdateProgress(ctx context.Context, jobID string, progress int, step string) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.ApplyProgress(progress, step) {
		return nil
	}
	return s.saveJob(ctx, job)
}

// CompleteJob marks a job completed. No transition is permitted afterwards.
func (s *IngestService) CompleteJob(ctx context.Context, jobID string, chunkCount int) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return ErrJobTerminal
	}

	now := time.Now()
	job.Status = model.JobStatusCompleted
	job.Progress = 100
	job.ChunkCount = chunkCount
	job.CompletedAt = &now
	return s.saveJob(ctx, job)
}

// FailJob marks a job permanently failed with its last concrete cause.
func (s *IngestService) FailJob(ctx context.Context, jobID, errMsg string) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return ErrJobTerminal
	}

	now := time.Now()
	job.Status = model.JobStatusFailed
	job.Error = &errMsg
	job.CompletedAt = &now
	return s.saveJob(ctx, job)
}

// AppendLog appends one entry to a job's log. Entries are never mutated.
func (s *IngestService) AppendLog(ctx context.Context, jobID string, level model.LogLevel, step, message string, data map[string]interface{}) error {
	entry := model.JobLogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
		Step:      step,
		Data:      data,
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	key := logKey(jobID)
	if err := s.redis.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("failed to append job log: %w", err)
	}
	s.redis.Expire(ctx, key, jobRetention)
	return nil
}

func (s *IngestService) saveJob(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, jobKey(job.ID), data, jobRetention).Err()
}

func (s *IngestService) getJob(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func jobKey(jobID string) string {
	return "job:" + strings.TrimSpace(jobID)
}

func logKey(jobID string) string {
	return "joblog:" + strings.TrimSpace(jobID)
}
