package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/coursemind/api/internal/client"
	"github.com/coursemind/api/internal/config"
	"github.com/coursemind/api/internal/model"
)

var documentSteps = []string{"fetch", "extract", "chunk"}

// DocumentPipeline converts page-oriented files (PDF, slides, text) into
// canonical chunks, one extraction unit per page.
type DocumentPipeline struct {
	cfg       config.PipelineConfig
	extractor client.Extractor
	storage   client.StorageClient

	initOnce sync.Once
	initErr  error
}

func NewDocumentPipeline(cfg config.PipelineConfig, extractor client.Extractor, storage client.StorageClient) *DocumentPipeline {
	return &DocumentPipeline{cfg: cfg, extractor: extractor, storage: storage}
}

func (p *DocumentPipeline) FileType() model.FileType { return model.FileTypeDocument }

func (p *DocumentPipeline) Steps() []string { return documentSteps }

// Initialize warms the extraction service connection. Idempotent.
func (p *DocumentPipeline) Initialize(ctx context.Context) error {
	p.initOnce.Do(func() {
		if useMock(p.extractor) {
			return
		}
		if err := p.extractor.HealthCheck(ctx); err != nil {
			p.initErr = fmt.Errorf("document pipeline: %w", err)
		}
	})
	return p.initErr
}

func (p *DocumentPipeline) Process(ctx context.Context, job *model.IngestionJob, report ProgressFunc) (*model.ProcessingResult, error) {
	t := newStepTracker(documentSteps, report)

	t.start(0)
	contentURL, err := resolveContentURL(ctx, p.storage, job.FilePath)
	if err != nil {
		t.fail(0, err)
		return failedResult(t, err), nil
	}
	t.complete(0)

	t.start(1)
	pages, err := p.extractPages(ctx, job, contentURL)
	if err != nil {
		t.fail(1, err)
		return failedResult(t, err), nil
	}
	if len(pages) == 0 {
		err := fmt.Errorf("no pages extracted from %s", job.FilePath)
		t.fail(1, err)
		return failedResult(t, err), nil
	}
	t.complete(1)

	t.start(2)
	fileID := fileIDFor(job)
	meta := chunkMetadata(job)
	var chunks []model.CanonicalChunk
	for i, page := range pages {
		pageNum := page.Number
		for _, text := range splitText(page.Text, p.cfg.ChunkSize, p.cfg.OverlapSize) {
			n := pageNum
			chunk := model.CanonicalChunk{
				ChunkID:    uuid.New().String(),
				Text:       text,
				Modality:   model.FileTypeDocument,
				Source:     model.SourceInfo{FileID: fileID, JobID: job.JobID, Page: &n},
				Confidence: page.Confidence,
				Metadata:   meta,
			}
			chunk.ClampConfidence()
			chunks = append(chunks, chunk)
		}
		t.advance(2, float64(i+1)/float64(len(pages)))
	}
	t.complete(2)

	return &model.ProcessingResult{
		Success:    true,
		Progress:   100,
		ChunkCount: len(chunks),
		Chunks:     chunks,
		Steps:      t.snapshot(),
	}, nil
}

func (p *DocumentPipeline) extractPages(ctx context.Context, job *model.IngestionJob, contentURL string) ([]client.ExtractedPage, error) {
	if useMock(p.extractor) {
		return mockPages(job.FilePath), nil
	}
	resp, err := p.extractor.ExtractDocument(ctx, &client.DocumentExtractRequest{FileURL: contentURL})
	if err != nil {
		return nil, fmt.Errorf("document extraction failed: %w", err)
	}
	return resp.Pages, nil
}

func mockPages(seed string) []client.ExtractedPage {
	pages := make([]client.ExtractedPage, 3)
	for i := range pages {
		pages[i] = client.ExtractedPage{
			Number:     i + 1,
			Text:       mockText(fmt.Sprintf("%s#page%d", seed, i+1), 12),
			Confidence: 0.95,
		}
	}
	return pages
}
