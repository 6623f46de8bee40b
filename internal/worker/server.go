package worker

import (
	"log"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/coursemind/api/internal/config"
)

// TaskTypeIngest is the asynq task type for ingestion jobs.
const TaskTypeIngest = "ingest:process"

// QueueIngest is the queue ingestion tasks are enqueued on.
const QueueIngest = "ingest"

// Server is the queue consumer: a bounded pool of workers pulling ingestion
// jobs from the external queue. Start begins consumption; Stop drains
// in-flight jobs up to the shutdown timeout, after which still-running jobs
// are abandoned to the queue's redelivery mechanism.
type Server struct {
	srv *asynq.Server
	mux *asynq.ServeMux
}

// NewServer builds the consumer around the given worker.
func NewServer(cfg *config.Config, w *IngestWorker) *Server {
	policy := RetryPolicy{
		Base: time.Duration(cfg.Pipeline.BaseRetryWait) * time.Second,
		Max:  time.Duration(cfg.Pipeline.MaxRetryWait) * time.Second,
	}

	logLevel := asynq.InfoLevel
	switch strings.ToLower(cfg.Server.LogLevel) {
	case "debug":
		logLevel = asynq.DebugLevel
	case "warn":
		logLevel = asynq.WarnLevel
	case "error":
		logLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Worker.PoolSize,
			Queues: map[string]int{
				QueueIngest: 10,
			},
			RetryDelayFunc: func(n int, err error, t *asynq.Task) time.Duration {
				return policy.Delay(n)
			},
			ShutdownTimeout: time.Duration(cfg.Worker.ShutdownTimeout) * time.Second,
			LogLevel:        logLevel,
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeIngest, w.ProcessTask)

	return &Server{srv: srv, mux: mux}
}

// Start launches the worker pool without blocking.
func (s *Server) Start() error {
	return s.srv.Start(s.mux)
}

// Stop signals workers to finish in-flight jobs and stops accepting new
// ones, returning once workers drain or the shutdown timeout elapses.
func (s *Server) Stop() {
	log.Println("Stopping ingestion workers...")
	s.srv.Shutdown()
}
