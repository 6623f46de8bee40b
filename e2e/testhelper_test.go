package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/coursemind/api/internal/client"
	"github.com/coursemind/api/internal/config"
	"github.com/coursemind/api/internal/handler"
	"github.com/coursemind/api/internal/middleware"
	"github.com/coursemind/api/internal/model"
	"github.com/coursemind/api/internal/service"
	"github.com/coursemind/api/internal/store"
)

const testJWTSecret = "test-secret-for-e2e"

// testApp holds all components needed for testing.
type testApp struct {
	app    *fiber.App
	ingest *service.IngestService
	chunks *store.ChunkStore
	llm    *client.LLMClient
	redis  *redis.Client
}

// setupApp creates a Fiber app identical to main.go but with unconfigured
// external clients, which puts every service in mock/fallback mode.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	// Redis (localhost — must be running)
	redisClient := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // use DB 15 for tests to avoid collision
	})

	// Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr: "localhost:6379",
		DB:   15,
	})
	t.Cleanup(func() { asynqClient.Close() })

	validate := validator.New()

	// External clients — no API key / service URL, so mock behavior throughout
	llmClient, err := client.NewLLMClient(&config.LLMConfig{})
	if err != nil {
		t.Fatalf("failed to create LLM client: %v", err)
	}

	chunkStore, err := store.NewChunkStore(redisClient, llmClient, 2)
	if err != nil {
		t.Fatalf("failed to create chunk store: %v", err)
	}
	t.Cleanup(chunkStore.Close)

	pipelineCfg := config.PipelineConfig{
		MaxRetries:  3,
		Timeout:     60,
		ChunkSize:   500,
		OverlapSize: 100,
	}
	prompts := config.PromptConfig{
		AnswerSystem:    "You are a study assistant.",
		AnswerTemplate:  "Material:\n{{context}}\n\nQuestion: {{question}}",
		SummaryTemplate: "Summarize:\n{{context}}",
	}

	// Services
	ingestService := service.NewIngestService(redisClient, asynqClient, pipelineCfg)
	queryService := service.NewQueryService(chunkStore, llmClient, llmClient, prompts)
	summaryService := service.NewSummaryService(redisClient, ingestService, chunkStore, llmClient, prompts)

	// Handlers (nil storage: URL ingestion only)
	ingestHandler := handler.NewIngestHandler(ingestService, nil, validate)
	statusHandler := handler.NewStatusHandler(ingestService)
	queryHandler := handler.NewQueryHandler(queryService, validate)
	summaryHandler := handler.NewSummaryHandler(summaryService)

	// Auth middleware and rate limiter
	authMiddleware := middleware.NewAuthMiddleware(testJWTSecret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 200 * 1024 * 1024,
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"llm":     false,
				"extract": false,
				"storage": false,
				"redis":   redisClient.Ping(c.Context()).Err() == nil,
			},
		})
	})

	// API routes (authenticated). Very high rate limits so tests never block.
	api := app.Group("/api", authMiddleware.Authenticate())

	api.Post("/ingest", rateLimiter.IngestLimit(100000), ingestHandler.Ingest)

	status := api.Group("/status", rateLimiter.StatusLimit(100000))
	status.Get("/:jobId", statusHandler.GetStatus)
	status.Get("/:jobId/logs", statusHandler.GetLogs)

	api.Post("/query", rateLimiter.QueryLimit(100000), queryHandler.Query)
	api.Get("/summary/:jobId", rateLimiter.QueryLimit(100000), summaryHandler.GetSummary)

	return &testApp{
		app:    app,
		ingest: ingestService,
		chunks: chunkStore,
		llm:    llmClient,
		redis:  redisClient,
	}
}

// generateToken creates an HMAC JWT token for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	token, err := middleware.NewAuthMiddleware(testJWTSecret).GenerateToken("test-user-123", "test@example.com")
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return token
}

// seedChunks stores ready-made chunks for a job directly, standing in for a
// completed ingestion run.
func seedChunks(t *testing.T, ta *testApp, jobID string, texts []string) {
	t.Helper()
	page := 1
	chunks := make([]model.CanonicalChunk, len(texts))
	for i, text := range texts {
		p := page + i
		chunks[i] = model.CanonicalChunk{
			ChunkID:    jobID + "-chunk-" + string(rune('a'+i)),
			Text:       text,
			Modality:   model.FileTypeDocument,
			Source:     model.SourceInfo{FileID: "file-" + jobID, JobID: jobID, Page: &p},
			Confidence: 0.9,
		}
	}
	if _, err := ta.chunks.Store(context.Background(), chunks); err != nil {
		t.Fatalf("failed to seed chunks: %v", err)
	}
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}
