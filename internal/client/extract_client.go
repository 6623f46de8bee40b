package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coursemind/api/internal/config"
)

// Extractor defines the interface for content extraction operations
// (OCR, transcription, visual description) provided by the extraction
// microservice.
type Extractor interface {
	ExtractDocument(ctx context.Context, req *DocumentExtractRequest) (*DocumentExtractResponse, error)
	ExtractMedia(ctx context.Context, req *MediaExtractRequest) (*MediaExtractResponse, error)
	ExtractImage(ctx context.Context, req *ImageExtractRequest) (*ImageExtractResponse, error)
	HealthCheck(ctx context.Context) error
	IsConfigured() bool
}

// ExtractClient implements Extractor for the extraction microservice
type ExtractClient struct {
	httpClient *http.Client
	baseURL    string
}

// DocumentExtractRequest asks for per-page text extraction
type DocumentExtractRequest struct {
	FileURL string `json:"file_url"`
}

// ExtractedPage is one page of extracted document text
type ExtractedPage struct {
	Number     int     `json:"number"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// DocumentExtractResponse carries the extracted pages in order
type DocumentExtractResponse struct {
	Pages []ExtractedPage `json:"pages"`
}

// MediaExtractRequest asks for time-stamped transcript segments.
// WithVisual requests scene descriptions alongside the transcript.
type MediaExtractRequest struct {
	FileURL    string `json:"file_url"`
	WithVisual bool   `json:"with_visual,omitempty"`
}

// ExtractedSegment is one time-stamped transcript segment
type ExtractedSegment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Visual     string  `json:"visual,omitempty"`
}

// MediaExtractResponse carries transcript segments in timestamp order
type MediaExtractResponse struct {
	Segments []ExtractedSegment `json:"segments"`
}

// ImageExtractRequest asks for detected text regions and a description
type ImageExtractRequest struct {
	FileURL string `json:"file_url"`
}

// ExtractedRegion is one detected region of an image
type ExtractedRegion struct {
	Label      string  `json:"label,omitempty"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// ImageExtractResponse carries detected regions and an overall description
type ImageExtractResponse struct {
	Regions     []ExtractedRegion `json:"regions"`
	Description string            `json:"description,omitempty"`
}

// NewExtractClient creates a client for the extraction microservice
func NewExtractClient(cfg *config.ExtractConfig) *ExtractClient {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout == 0 {
		timeout = 300 * time.Second
	}
	return &ExtractClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.ServiceURL,
	}
}

// IsConfigured returns true if a service URL is set
func (c *ExtractClient) IsConfigured() bool {
	return c.baseURL != ""
}

// ExtractDocument extracts per-page text from a document file
func (c *ExtractClient) ExtractDocument(ctx context.Context, req *DocumentExtractRequest) (*DocumentExtractResponse, error) {
	var resp DocumentExtractResponse
	if err := c.post(ctx, "/extract/document", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExtractMedia extracts time-stamped transcript segments from video or audio
func (c *ExtractClient) ExtractMedia(ctx context.Context, req *MediaExtractRequest) (*MediaExtractResponse, error) {
	var resp MediaExtractResponse
	if err := c.post(ctx, "/extract/media", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExtractImage extracts text regions and a description from an image
func (c *ExtractClient) ExtractImage(ctx context.Context, req *ImageExtractRequest) (*ImageExtractResponse, error) {
	var resp ImageExtractResponse
	if err := c.post(ctx, "/extract/image", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HealthCheck verifies the extraction service is reachable
func (c *ExtractClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("extraction service unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("extraction service unhealthy (status %d)", resp.StatusCode)
	}
	return nil
}

func (c *ExtractClient) post(ctx context.Context, path string, body, out interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("extraction service error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
