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

var mediaSteps = []string{"fetch", "transcribe", "chunk"}

// MediaPipeline converts time-based content (video, audio) into canonical
// chunks, one extraction unit per transcript segment. Video runs additionally
// request visual scene descriptions.
type MediaPipeline struct {
	fileType  model.FileType
	cfg       config.PipelineConfig
	extractor client.Extractor
	storage   client.StorageClient

	initOnce sync.Once
	initErr  error
}

func NewVideoPipeline(cfg config.PipelineConfig, extractor client.Extractor, storage client.StorageClient) *MediaPipeline {
	return &MediaPipeline{fileType: model.FileTypeVideo, cfg: cfg, extractor: extractor, storage: storage}
}

func NewAudioPipeline(cfg config.PipelineConfig, extractor client.Extractor, storage client.StorageClient) *MediaPipeline {
	return &MediaPipeline{fileType: model.FileTypeAudio, cfg: cfg, extractor: extractor, storage: storage}
}

func (p *MediaPipeline) FileType() model.FileType { return p.fileType }

func (p *MediaPipeline) Steps() []string { return mediaSteps }

// Initialize warms the extraction service connection. Idempotent.
func (p *MediaPipeline) Initialize(ctx context.Context) error {
	p.initOnce.Do(func() {
		if useMock(p.extractor) {
			return
		}
		if err := p.extractor.HealthCheck(ctx); err != nil {
			p.initErr = fmt.Errorf("%s pipeline: %w", p.fileType, err)
		}
	})
	return p.initErr
}

func (p *MediaPipeline) Process(ctx context.Context, job *model.IngestionJob, report ProgressFunc) (*model.ProcessingResult, error) {
	t := newStepTracker(mediaSteps, report)

	t.start(0)
	contentURL, err := resolveContentURL(ctx, p.storage, job.FilePath)
	if err != nil {
		t.fail(0, err)
		return failedResult(t, err), nil
	}
	t.complete(0)

	t.start(1)
	segments, err := p.extractSegments(ctx, job, contentURL)
	if err != nil {
		t.fail(1, err)
		return failedResult(t, err), nil
	}
	if len(segments) == 0 {
		err := fmt.Errorf("no transcript segments extracted from %s", job.FilePath)
		t.fail(1, err)
		return failedResult(t, err), nil
	}
	t.complete(1)

	t.start(2)
	fileID := fileIDFor(job)
	meta := chunkMetadata(job)
	var chunks []model.CanonicalChunk
	for i, seg := range segments {
		start := seg.Start
		for _, text := range splitText(seg.Text, p.cfg.ChunkSize, p.cfg.OverlapSize) {
			ts := start
			chunk := model.CanonicalChunk{
				ChunkID:       uuid.New().String(),
				Text:          text,
				Modality:      p.fileType,
				Source:        model.SourceInfo{FileID: fileID, JobID: job.JobID, Timestamp: &ts},
				VisualContext: seg.Visual,
				Confidence:    seg.Confidence,
				Metadata:      meta,
			}
			chunk.ClampConfidence()
			chunks = append(chunks, chunk)
		}
		t.advance(2, float64(i+1)/float64(len(segments)))
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

func (p *MediaPipeline) extractSegments(ctx context.Context, job *model.IngestionJob, contentURL string) ([]client.ExtractedSegment, error) {
	if useMock(p.extractor) {
		return mockSegments(job.FilePath, p.fileType == model.FileTypeVideo), nil
	}
	resp, err := p.extractor.ExtractMedia(ctx, &client.MediaExtractRequest{
		FileURL:    contentURL,
		WithVisual: p.fileType == model.FileTypeVideo,
	})
	if err != nil {
		return nil, fmt.Errorf("media extraction failed: %w", err)
	}
	return resp.Segments, nil
}

func mockSegments(seed string, withVisual bool) []client.ExtractedSegment {
	segments := make([]client.ExtractedSegment, 4)
	for i := range segments {
		segments[i] = client.ExtractedSegment{
			Start:      float64(i * 30),
			End:        float64((i + 1) * 30),
			Text:       mockText(fmt.Sprintf("%s#segment%d", seed, i+1), 6),
			Confidence: 0.9,
		}
		if withVisual {
			segments[i].Visual = fmt.Sprintf("Lecture slide %d is visible on screen.", i+1)
		}
	}
	return segments
}
