package pipeline

import (
	"context"
	"testing"

	"github.com/coursemind/api/internal/model"
)

// All pipeline tests run with a nil extractor, which puts the pipelines in
// mock extraction mode. The chunking and provenance logic under test is the
// same either way.

func testJob(fileType model.FileType) *model.IngestionJob {
	return &model.IngestionJob{
		JobID:    "job-123",
		FileType: fileType,
		FilePath: "https://example.com/lecture.bin",
		Metadata: map[string]string{
			"courseId": "course-7",
			"title":    "Week 3 Lecture",
		},
	}
}

func assertChunkInvariants(t *testing.T, chunks []model.CanonicalChunk, modality model.FileType) {
	t.Helper()
	if len(chunks) == 0 {
		t.Fatal("no chunks produced")
	}
	seen := make(map[string]bool)
	for i, c := range chunks {
		if c.ChunkID == "" {
			t.Errorf("chunk %d has no ID", i)
		}
		if seen[c.ChunkID] {
			t.Errorf("duplicate chunk ID %s", c.ChunkID)
		}
		seen[c.ChunkID] = true
		if c.Text == "" {
			t.Errorf("chunk %d has empty text", i)
		}
		if c.Modality != modality {
			t.Errorf("chunk %d modality = %s, want %s", i, c.Modality, modality)
		}
		if c.Source.JobID != "job-123" {
			t.Errorf("chunk %d jobId = %q", i, c.Source.JobID)
		}
		if c.Confidence < 0 || c.Confidence > 1 {
			t.Errorf("chunk %d confidence %v out of range", i, c.Confidence)
		}
		if c.Metadata["courseId"] != "course-7" {
			t.Errorf("chunk %d lost courseId metadata", i)
		}
	}
}

func TestDocumentPipelineProcess(t *testing.T) {
	p := NewDocumentPipeline(testPipelineConfig(), nil, nil)
	if err := p.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	var reports []int
	result, err := p.Process(context.Background(), testJob(model.FileTypeDocument), func(progress int, step string) {
		reports = append(reports, progress)
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !result.Success {
		t.Fatalf("Process failed: %s", result.Error)
	}
	if result.Progress != 100 {
		t.Errorf("final progress = %d, want 100", result.Progress)
	}
	if result.ChunkCount != len(result.Chunks) {
		t.Errorf("ChunkCount = %d but %d chunks", result.ChunkCount, len(result.Chunks))
	}

	assertChunkInvariants(t, result.Chunks, model.FileTypeDocument)

	// Mock extraction yields 3 pages; every chunk must carry its page number.
	pages := make(map[int]bool)
	for _, c := range result.Chunks {
		if c.Source.Page == nil {
			t.Fatal("document chunk has no page number")
		}
		pages[*c.Source.Page] = true
	}
	if len(pages) != 3 {
		t.Errorf("chunks span %d pages, want 3", len(pages))
	}

	// Progress reports never go backwards.
	for i := 1; i < len(reports); i++ {
		if reports[i] < reports[i-1] {
			t.Fatalf("progress regressed: %v", reports)
		}
	}
}

func TestMediaPipelineTimestamps(t *testing.T) {
	p := NewAudioPipeline(testPipelineConfig(), nil, nil)
	result, err := p.Process(context.Background(), testJob(model.FileTypeAudio), nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !result.Success {
		t.Fatalf("Process failed: %s", result.Error)
	}

	assertChunkInvariants(t, result.Chunks, model.FileTypeAudio)

	for _, c := range result.Chunks {
		if c.Source.Timestamp == nil {
			t.Fatal("media chunk has no timestamp")
		}
		if *c.Source.Timestamp < 0 {
			t.Errorf("negative timestamp %v", *c.Source.Timestamp)
		}
		if c.VisualContext != "" {
			t.Error("audio chunk carries visual context")
		}
	}
}

func TestVideoPipelineAttachesVisualContext(t *testing.T) {
	p := NewVideoPipeline(testPipelineConfig(), nil, nil)
	result, err := p.Process(context.Background(), testJob(model.FileTypeVideo), nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	assertChunkInvariants(t, result.Chunks, model.FileTypeVideo)

	withVisual := 0
	for _, c := range result.Chunks {
		if c.VisualContext != "" {
			withVisual++
		}
	}
	if withVisual == 0 {
		t.Error("no video chunk carries visual context")
	}
}

func TestImagePipelineRegions(t *testing.T) {
	p := NewImagePipeline(testPipelineConfig(), nil, nil)
	result, err := p.Process(context.Background(), testJob(model.FileTypeImage), nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	assertChunkInvariants(t, result.Chunks, model.FileTypeImage)

	for _, c := range result.Chunks {
		if c.VisualContext == "" {
			t.Error("image chunk missing scene description")
		}
	}
}

func TestPipelineStepsMatchDeclaration(t *testing.T) {
	p := NewDocumentPipeline(testPipelineConfig(), nil, nil)
	result, err := p.Process(context.Background(), testJob(model.FileTypeDocument), nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	declared := p.Steps()
	if len(result.Steps) != len(declared) {
		t.Fatalf("result has %d steps, declared %d", len(result.Steps), len(declared))
	}
	for i, s := range result.Steps {
		if s.Name != declared[i] {
			t.Errorf("step %d = %q, want %q", i, s.Name, declared[i])
		}
		if s.Status != model.StepStatusCompleted {
			t.Errorf("step %q status = %s, want completed", s.Name, s.Status)
		}
	}
}

func TestFileIDPrefersMetadata(t *testing.T) {
	job := testJob(model.FileTypeDocument)
	job.Metadata["fileId"] = "file-42"

	p := NewDocumentPipeline(testPipelineConfig(), nil, nil)
	result, err := p.Process(context.Background(), job, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	for _, c := range result.Chunks {
		if c.Source.FileID != "file-42" {
			t.Fatalf("chunk fileId = %q, want file-42", c.Source.FileID)
		}
	}
}
