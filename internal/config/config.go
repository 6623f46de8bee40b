package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Worker    WorkerConfig
	Pipeline  PipelineConfig
	LLM       LLMConfig
	Extract   ExtractConfig
	Storage   StorageConfig
	Prompts   PromptConfig
	Gateway   GatewayConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	IngestPerHour int
	QueryPerMin   int
	StatusPerMin  int
}

type WorkerConfig struct {
	PoolSize        int
	ShutdownTimeout int // seconds
}

// PipelineConfig is shared by all pipeline instances of a router.
// ChunkSize and OverlapSize are measured in characters (runes).
type PipelineConfig struct {
	MaxRetries    int
	Timeout       int // seconds, per processing attempt
	ChunkSize     int
	OverlapSize   int
	BaseRetryWait int // seconds, backoff base delay
	MaxRetryWait  int // seconds, backoff cap
}

type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	EmbedPoolSize  int
}

type ExtractConfig struct {
	ServiceURL string
	Timeout    int // seconds
}

type StorageConfig struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

// PromptConfig carries the generation prompt templates. Templates are opaque
// parameterized strings with {{context}} and {{question}} placeholders,
// resolved once per request at the generation call site.
type PromptConfig struct {
	AnswerSystem    string
	AnswerTemplate  string
	SummaryTemplate string
}

type GatewayConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("LLM_API_KEY")
	readSecret("STORAGE_ACCOUNT_ID")
	readSecret("STORAGE_ACCESS_KEY_ID")
	readSecret("STORAGE_SECRET_ACCESS_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.api_domain", "API_DOMAIN")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("worker.pool_size", "WORKER_POOL_SIZE")
	_ = viper.BindEnv("worker.shutdown_timeout", "WORKER_SHUTDOWN_TIMEOUT")
	_ = viper.BindEnv("pipeline.max_retries", "PIPELINE_MAX_RETRIES")
	_ = viper.BindEnv("pipeline.timeout", "PIPELINE_TIMEOUT")
	_ = viper.BindEnv("pipeline.chunk_size", "PIPELINE_CHUNK_SIZE")
	_ = viper.BindEnv("pipeline.overlap_size", "PIPELINE_OVERLAP_SIZE")
	_ = viper.BindEnv("pipeline.base_retry_wait", "PIPELINE_BASE_RETRY_WAIT")
	_ = viper.BindEnv("pipeline.max_retry_wait", "PIPELINE_MAX_RETRY_WAIT")
	_ = viper.BindEnv("llm.api_key", "LLM_API_KEY")
	_ = viper.BindEnv("llm.base_url", "LLM_BASE_URL")
	_ = viper.BindEnv("llm.model", "LLM_MODEL")
	_ = viper.BindEnv("llm.embedding_model", "LLM_EMBEDDING_MODEL")
	_ = viper.BindEnv("llm.embed_pool_size", "LLM_EMBED_POOL_SIZE")
	_ = viper.BindEnv("extract.service_url", "EXTRACT_SERVICE_URL")
	_ = viper.BindEnv("extract.timeout", "EXTRACT_SERVICE_TIMEOUT")
	_ = viper.BindEnv("storage.account_id", "STORAGE_ACCOUNT_ID")
	_ = viper.BindEnv("storage.access_key_id", "STORAGE_ACCESS_KEY_ID")
	_ = viper.BindEnv("storage.secret_access_key", "STORAGE_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("storage.bucket_name", "STORAGE_BUCKET_NAME")
	_ = viper.BindEnv("storage.public_url", "STORAGE_PUBLIC_URL")
	_ = viper.BindEnv("gateway.enabled", "GATEWAY_ENABLED")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("ratelimit.ingest_per_hour", 50)
	viper.SetDefault("ratelimit.query_per_min", 30)
	viper.SetDefault("ratelimit.status_per_min", 120)

	// Worker defaults
	viper.SetDefault("worker.pool_size", 8)
	viper.SetDefault("worker.shutdown_timeout", 30)

	// Pipeline defaults
	viper.SetDefault("pipeline.max_retries", 3)
	viper.SetDefault("pipeline.timeout", 600)
	viper.SetDefault("pipeline.chunk_size", 500)
	viper.SetDefault("pipeline.overlap_size", 100)
	viper.SetDefault("pipeline.base_retry_wait", 5)
	viper.SetDefault("pipeline.max_retry_wait", 300)

	// LLM defaults
	viper.SetDefault("llm.base_url", "https://api.openai.com/v1")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.embedding_model", "text-embedding-3-small")
	viper.SetDefault("llm.embed_pool_size", 4)

	// Extraction service defaults
	viper.SetDefault("extract.service_url", "http://localhost:8086")
	viper.SetDefault("extract.timeout", 300)

	// Prompt defaults
	viper.SetDefault("prompts.answer_system",
		"You are a study assistant. Answer strictly from the provided course material. If the material does not contain the answer, say so.")
	viper.SetDefault("prompts.answer_template",
		"Course material:\n{{context}}\n\nQuestion: {{question}}\n\nAnswer using only the material above, citing pages or timestamps where relevant.")
	viper.SetDefault("prompts.summary_template",
		"Summarize the following course material in a few concise paragraphs:\n\n{{context}}")

	// Gateway defaults
	viper.SetDefault("gateway.enabled", false)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			ApiDomain: viper.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			IngestPerHour: viper.GetInt("ratelimit.ingest_per_hour"),
			QueryPerMin:   viper.GetInt("ratelimit.query_per_min"),
			StatusPerMin:  viper.GetInt("ratelimit.status_per_min"),
		},
		Worker: WorkerConfig{
			PoolSize:        viper.GetInt("worker.pool_size"),
			ShutdownTimeout: viper.GetInt("worker.shutdown_timeout"),
		},
		Pipeline: PipelineConfig{
			MaxRetries:    viper.GetInt("pipeline.max_retries"),
			Timeout:       viper.GetInt("pipeline.timeout"),
			ChunkSize:     viper.GetInt("pipeline.chunk_size"),
			OverlapSize:   viper.GetInt("pipeline.overlap_size"),
			BaseRetryWait: viper.GetInt("pipeline.base_retry_wait"),
			MaxRetryWait:  viper.GetInt("pipeline.max_retry_wait"),
		},
		LLM: LLMConfig{
			APIKey:         viper.GetString("llm.api_key"),
			BaseURL:        viper.GetString("llm.base_url"),
			Model:          viper.GetString("llm.model"),
			EmbeddingModel: viper.GetString("llm.embedding_model"),
			EmbedPoolSize:  viper.GetInt("llm.embed_pool_size"),
		},
		Extract: ExtractConfig{
			ServiceURL: viper.GetString("extract.service_url"),
			Timeout:    viper.GetInt("extract.timeout"),
		},
		Storage: StorageConfig{
			AccountID:       viper.GetString("storage.account_id"),
			AccessKeyID:     viper.GetString("storage.access_key_id"),
			SecretAccessKey: viper.GetString("storage.secret_access_key"),
			BucketName:      viper.GetString("storage.bucket_name"),
			PublicURL:       viper.GetString("storage.public_url"),
		},
		Prompts: PromptConfig{
			AnswerSystem:    viper.GetString("prompts.answer_system"),
			AnswerTemplate:  viper.GetString("prompts.answer_template"),
			SummaryTemplate: viper.GetString("prompts.summary_template"),
		},
		Gateway: GatewayConfig{
			Enabled: viper.GetBool("gateway.enabled"),
		},
	}

	return cfg, nil
}
