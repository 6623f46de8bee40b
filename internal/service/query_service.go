package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coursemind/api/internal/client"
	"github.com/coursemind/api/internal/config"
	"github.com/coursemind/api/internal/model"
)

const (
	defaultMaxResults = 5
	maxMaxResults     = 20
	snippetLength     = 240
)

// ChunkQuerier is the retrieval side of the chunk store contract.
type ChunkQuerier interface {
	Query(ctx context.Context, filters *model.QueryFilters, embedding []float32, topK int) ([]model.StoredChunk, error)
}

// QueryService answers questions from stored chunks: embed the question,
// retrieve the most relevant chunks, compose a prompt, and generate an
// answer, either whole or as an ordered event stream.
type QueryService struct {
	chunks    ChunkQuerier
	embedder  client.Embedder
	generator client.Generator
	prompts   config.PromptConfig
}

func NewQueryService(chunks ChunkQuerier, embedder client.Embedder, generator client.Generator, prompts config.PromptConfig) *QueryService {
	return &QueryService{
		chunks:    chunks,
		embedder:  embedder,
		generator: generator,
		prompts:   prompts,
	}
}

// Query answers a question in one shot.
func (s *QueryService) Query(ctx context.Context, req *model.QueryRequest) (*model.QueryResult, error) {
	started := time.Now()

	sources, prompt, err := s.retrieve(ctx, req)
	if err != nil {
		return nil, err
	}

	answer, err := s.generator.Generate(ctx, s.prompts.AnswerSystem, prompt)
	if err != nil {
		return nil, fmt.Errorf("answer generation failed: %w", err)
	}

	return &model.QueryResult{
		Answer:         answer,
		Sources:        sources,
		Confidence:     aggregateConfidence(sources),
		ProcessingTime: float64(time.Since(started).Milliseconds()),
	}, nil
}

// QueryStream answers a question as an ordered event stream: zero or more
// status events, exactly one sources event, one or more answer events, and
// exactly one terminal done event. Cancelling ctx stops generation promptly;
// the channel is closed after done.
func (s *QueryService) QueryStream(ctx context.Context, req *model.QueryRequest) <-chan model.StreamChunk {
	events := make(chan model.StreamChunk, 8)

	go func() {
		defer close(events)

		emit := func(e model.StreamChunk) bool {
			select {
			case events <- e:
				return true
			case <-ctx.Done():
				return false
			}
		}
		done := func() {
			// done must go out even when the consumer is slow; only a
			// cancelled context may swallow it.
			emit(model.StreamChunk{Type: model.StreamChunkDone})
		}

		if !emit(model.StreamChunk{Type: model.StreamChunkStatus, Content: "Searching your course material..."}) {
			return
		}

		sources, prompt, err := s.retrieve(ctx, req)
		if err != nil {
			emit(model.StreamChunk{Type: model.StreamChunkStatus, Content: "query failed: " + err.Error()})
			done()
			return
		}

		if !emit(model.StreamChunk{Type: model.StreamChunkSources, Content: sources}) {
			return
		}
		if !emit(model.StreamChunk{Type: model.StreamChunkStatus, Content: "Generating answer..."}) {
			return
		}

		_, err = s.generator.GenerateStream(ctx, s.prompts.AnswerSystem, prompt, func(cbCtx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			if !emit(model.StreamChunk{Type: model.StreamChunkAnswer, Content: string(chunk)}) {
				return ctx.Err()
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			emit(model.StreamChunk{Type: model.StreamChunkStatus, Content: "generation failed: " + err.Error()})
		}
		done()
	}()

	return events
}

// retrieve resolves filters, embeds the question, ranks stored chunks, and
// composes the generation prompt.
func (s *QueryService) retrieve(ctx context.Context, req *model.QueryRequest) ([]model.QuerySource, string, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, "", fmt.Errorf("question must not be empty")
	}

	filters := req.Filters
	if filters == nil {
		filters = &model.QueryFilters{}
	}
	// Top-level jobIds are shorthand for the filter field.
	if len(req.JobIDs) > 0 && len(filters.JobIDs) == 0 {
		filters.JobIDs = req.JobIDs
	}

	topK := defaultMaxResults
	if req.Options != nil && req.Options.MaxResults > 0 {
		topK = req.Options.MaxResults
		if topK > maxMaxResults {
			topK = maxMaxResults
		}
	}

	embedding, err := s.embedder.EmbedText(ctx, question)
	if err != nil {
		return nil, "", fmt.Errorf("question embedding failed: %w", err)
	}

	chunks, err := s.chunks.Query(ctx, filters, embedding, topK)
	if err != nil {
		return nil, "", fmt.Errorf("retrieval failed: %w", err)
	}

	sources := make([]model.QuerySource, len(chunks))
	var contextParts []string
	for i, c := range chunks {
		sources[i] = model.QuerySource{
			ChunkID:    c.ChunkID,
			Snippet:    snippet(c.Text),
			Score:      c.Score,
			Modality:   c.Modality,
			SourceInfo: c.Source,
		}
		contextParts = append(contextParts, formatChunkContext(&c))
	}

	prompt := resolveTemplate(s.prompts.AnswerTemplate, map[string]string{
		"context":  strings.Join(contextParts, "\n\n"),
		"question": question,
	})
	return sources, prompt, nil
}

// formatChunkContext renders one retrieved chunk for the prompt, keeping
// its source locator so the model can cite it.
func formatChunkContext(c *model.StoredChunk) string {
	var loc string
	switch {
	case c.Source.Page != nil:
		loc = fmt.Sprintf("page %d", *c.Source.Page)
	case c.Source.Timestamp != nil:
		loc = fmt.Sprintf("at %s", formatTimestamp(*c.Source.Timestamp))
	default:
		loc = string(c.Modality)
	}
	text := c.Text
	if c.VisualContext != "" {
		text += "\n[visual: " + c.VisualContext + "]"
	}
	return fmt.Sprintf("[%s, %s]\n%s", c.Source.FileID, loc, text)
}

func formatTimestamp(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

// aggregateConfidence is the mean source relevance score, clamped to [0,1].
func aggregateConfidence(sources []model.QuerySource) float64 {
	if len(sources) == 0 {
		return 0
	}
	var sum float64
	for _, s := range sources {
		sum += s.Score
	}
	c := sum / float64(len(sources))
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return c
}

func snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= snippetLength {
		return text
	}
	return string(runes[:snippetLength]) + "..."
}

// resolveTemplate substitutes {{name}} placeholders in an opaque template
// string.
func resolveTemplate(tmpl string, vars map[string]string) string {
	out := tmpl
	for name, value := range vars {
		out = strings.ReplaceAll(out, "{{"+name+"}}", value)
	}
	return out
}
