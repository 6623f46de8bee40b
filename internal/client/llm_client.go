package client

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/coursemind/api/internal/config"
)

const mockEmbeddingDim = 384

// Embedder turns text into vectors for similarity search.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces answer text from a composed prompt. GenerateStream
// forwards incremental output through fn as it arrives; fn returning an
// error aborts generation.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
	GenerateStream(ctx context.Context, system, prompt string, fn func(ctx context.Context, chunk []byte) error) (string, error)
}

// LLMClient wraps an OpenAI-compatible endpoint for embeddings and
// generation. When no API key is configured it falls back to deterministic
// mock behavior so the rest of the system works in development.
type LLMClient struct {
	llm        *openai.LLM
	configured bool
}

// NewLLMClient creates a client for the configured LLM endpoint.
func NewLLMClient(cfg *config.LLMConfig) (*LLMClient, error) {
	if cfg.APIKey == "" {
		return &LLMClient{}, nil
	}

	llm, err := openai.New(
		openai.WithToken(cfg.APIKey),
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to init LLM client: %w", err)
	}

	return &LLMClient{llm: llm, configured: true}, nil
}

// IsConfigured returns true if a real endpoint is wired up.
func (c *LLMClient) IsConfigured() bool {
	return c.configured
}

// EmbedText generates an embedding for a single text.
func (c *LLMClient) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedTexts generates embeddings for a batch of texts, in input order.
func (c *LLMClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if !c.configured {
		vecs := make([][]float32, len(texts))
		for i, t := range texts {
			vecs[i] = deterministicVector(t, mockEmbeddingDim)
		}
		return vecs, nil
	}

	vecs, err := c.llm.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vecs), len(texts))
	}
	return vecs, nil
}

// Generate produces a complete answer for the prompt.
func (c *LLMClient) Generate(ctx context.Context, system, prompt string) (string, error) {
	if !c.configured {
		return mockAnswer(prompt), nil
	}

	resp, err := c.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, system),
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	})
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("generation returned no choices")
	}
	return resp.Choices[0].Content, nil
}

// GenerateStream produces an answer incrementally through fn and returns the
// full text once generation finishes.
func (c *LLMClient) GenerateStream(ctx context.Context, system, prompt string, fn func(ctx context.Context, chunk []byte) error) (string, error) {
	if !c.configured {
		answer := mockAnswer(prompt)
		for _, word := range strings.SplitAfter(answer, " ") {
			if err := fn(ctx, []byte(word)); err != nil {
				return "", err
			}
		}
		return answer, nil
	}

	resp, err := c.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, system),
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}, llms.WithStreamingFunc(fn))
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("generation returned no choices")
	}
	return resp.Choices[0].Content, nil
}

// deterministicVector derives a unit-length vector from the text hash so
// mock-mode retrieval rankings are stable across runs.
func deterministicVector(text string, dim int) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, dim)
	var norm float32
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		v := float32(int64(seed>>32)) / float32(1<<31)
		vec[i] = v
		norm += v * v
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(float64(norm)))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}

func mockAnswer(prompt string) string {
	return fmt.Sprintf("[mock answer] Based on the retrieved material, here is a summary response to your question. (prompt length: %d chars)", len(prompt))
}
