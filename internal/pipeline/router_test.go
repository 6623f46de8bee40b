package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/coursemind/api/internal/config"
	"github.com/coursemind/api/internal/model"
)

// countingPipeline records invocations so routing tests can assert nothing ran.
type countingPipeline struct {
	fileType  model.FileType
	initCalls int
	procCalls int
	initErr   error
}

func (p *countingPipeline) FileType() model.FileType { return p.fileType }
func (p *countingPipeline) Steps() []string          { return []string{"fetch", "extract", "chunk"} }

func (p *countingPipeline) Initialize(ctx context.Context) error {
	p.initCalls++
	return p.initErr
}

func (p *countingPipeline) Process(ctx context.Context, job *model.IngestionJob, report ProgressFunc) (*model.ProcessingResult, error) {
	p.procCalls++
	return &model.ProcessingResult{Success: true, Progress: 100}, nil
}

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		MaxRetries:  3,
		ChunkSize:   500,
		OverlapSize: 100,
	}
}

func TestRouterRoutesByFileType(t *testing.T) {
	doc := &countingPipeline{fileType: model.FileTypeDocument}
	vid := &countingPipeline{fileType: model.FileTypeVideo}
	r := NewRouter(doc, vid)

	p, err := r.Route(&model.IngestionJob{JobID: "j1", FileType: model.FileTypeVideo})
	if err != nil {
		t.Fatalf("Route returned error: %v", err)
	}
	if p.FileType() != model.FileTypeVideo {
		t.Errorf("routed to %s, want video", p.FileType())
	}
}

func TestRouterIsDeterministic(t *testing.T) {
	r := NewRouter(
		&countingPipeline{fileType: model.FileTypeDocument},
		&countingPipeline{fileType: model.FileTypeAudio},
	)
	job := &model.IngestionJob{JobID: "j1", FileType: model.FileTypeAudio}

	first, err := r.Route(job)
	if err != nil {
		t.Fatalf("Route returned error: %v", err)
	}
	for i := 0; i < 10; i++ {
		p, err := r.Route(job)
		if err != nil {
			t.Fatalf("Route returned error on repeat: %v", err)
		}
		if p != first {
			t.Fatal("Route returned a different pipeline for the same job")
		}
	}
}

func TestRouterRejectsUnknownFileType(t *testing.T) {
	doc := &countingPipeline{fileType: model.FileTypeDocument}
	r := NewRouter(doc)

	_, err := r.Route(&model.IngestionJob{JobID: "j1", FileType: model.FileTypeUnknown})
	if !errors.Is(err, ErrUnsupportedFileType) {
		t.Fatalf("expected ErrUnsupportedFileType, got %v", err)
	}
	if doc.procCalls != 0 {
		t.Errorf("pipeline was invoked %d times for an unroutable job", doc.procCalls)
	}
}

func TestRouterInitializeFailsFast(t *testing.T) {
	bad := &countingPipeline{fileType: model.FileTypeImage, initErr: errors.New("service unreachable")}
	r := NewRouter(bad)

	if err := r.Initialize(context.Background()); err == nil {
		t.Fatal("expected initialization error to propagate")
	}
}

func TestRouterInitializesAllPipelines(t *testing.T) {
	doc := &countingPipeline{fileType: model.FileTypeDocument}
	img := &countingPipeline{fileType: model.FileTypeImage}
	r := NewRouter(doc, img)

	if err := r.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
	if doc.initCalls != 1 || img.initCalls != 1 {
		t.Errorf("init calls = %d/%d, want 1/1", doc.initCalls, img.initCalls)
	}
}
