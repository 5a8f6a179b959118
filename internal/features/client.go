package features

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/media-curator/media-curator/internal/store"
)

const defaultAnalyzerURL = "http://localhost:8000"

// AnalyzerClient implements Provider against the analyzer sidecar.
type AnalyzerClient struct {
	baseURL string
	client  *http.Client
}

// NewAnalyzerClient creates a client for the analyzer sidecar.
func NewAnalyzerClient(baseURL string) *AnalyzerClient {
	if baseURL == "" {
		baseURL = defaultAnalyzerURL
	}
	return &AnalyzerClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		// Video analysis runs transcription and keyframe passes, so the
		// timeout is generous
		client: &http.Client{Timeout: 10 * time.Minute},
	}
}

// writeFilePart adds one file to a multipart form. The part carries an
// explicit Content-Type header based on magic byte detection.
func writeFilePart(writer *multipart.Writer, field, filename string, data []byte) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", detectMIMEType(data))
	part, err := writer.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("failed to write media data: %w", err)
	}
	return nil
}

// post sends a request body to an endpoint and returns the response
// body, treating any non-200 status as an error.
func (c *AnalyzerClient) post(ctx context.Context, endpoint, contentType string, payload io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analyzer error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// postMultipart constructs a multipart form with the file data and posts
// it to the given endpoint.
func (c *AnalyzerClient) postMultipart(ctx context.Context, endpoint string, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writeFilePart(writer, "file", "media.bin", data); err != nil {
		return nil, err
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return c.post(ctx, endpoint, writer.FormDataContentType(), &buf)
}

func (c *AnalyzerClient) AnalyzeMedia(ctx context.Context, data []byte, mediaType store.MediaType) (*Analysis, error) {
	endpoint := "/analyze/image"
	if mediaType == store.MediaTypeVideo {
		endpoint = "/analyze/video"
	}

	body, err := c.postMultipart(ctx, endpoint, data)
	if err != nil {
		return nil, err
	}

	var analysis Analysis
	if err := json.Unmarshal(body, &analysis); err != nil {
		return nil, fmt.Errorf("failed to parse analyzer response: %w", err)
	}

	if len(analysis.Embedding) == 0 {
		return nil, errors.New("analyzer returned empty embedding")
	}

	return &analysis, nil
}

// AnalyzeBatch sends a whole ingestion buffer as one request, so the
// analyzer can batch its model inference. The response carries one
// analysis per input, in order.
func (c *AnalyzerClient) AnalyzeBatch(ctx context.Context, items []MediaPayload) ([]*Analysis, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for i, item := range items {
		if err := writeFilePart(writer, "files", fmt.Sprintf("media-%d.bin", i), item.Data); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	body, err := c.post(ctx, "/analyze/batch", writer.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}

	var analyses []*Analysis
	if err := json.Unmarshal(body, &analyses); err != nil {
		return nil, fmt.Errorf("failed to parse analyzer response: %w", err)
	}

	if len(analyses) != len(items) {
		return nil, fmt.Errorf("analyzer returned %d results for %d inputs", len(analyses), len(items))
	}
	for i, a := range analyses {
		if a == nil || len(a.Embedding) == 0 {
			return nil, fmt.Errorf("analyzer returned empty embedding for input %d", i)
		}
	}

	return analyses, nil
}

type textEmbeddingRequest struct {
	Text string `json:"text"`
}

type textEmbeddingResponse struct {
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
}

func (c *AnalyzerClient) TextEmbedding(ctx context.Context, text string) ([]float32, error) {
	reqBody, err := json.Marshal(textEmbeddingRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	body, err := c.post(ctx, "/embed/text", "application/json", bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}

	var embResp textEmbeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(embResp.Embedding) == 0 {
		return nil, errors.New("empty embedding returned")
	}

	return embResp.Embedding, nil
}

// detectMIMEType detects the MIME type from media file magic bytes.
func detectMIMEType(data []byte) string {
	if len(data) < 12 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// BMP: 42 4D
	if data[0] == 0x42 && data[1] == 0x4D {
		return "image/bmp"
	}
	// WebP: 52 49 46 46 ... 57 45 42 50
	if data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	// MP4/MOV: ftyp box at offset 4
	if data[4] == 0x66 && data[5] == 0x74 && data[6] == 0x79 && data[7] == 0x70 {
		return "video/mp4"
	}
	// Matroska/WebM: 1A 45 DF A3
	if data[0] == 0x1A && data[1] == 0x45 && data[2] == 0xDF && data[3] == 0xA3 {
		return "video/webm"
	}
	// AVI: 52 49 46 46 ... 41 56 49 20
	if data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x41 && data[9] == 0x56 && data[10] == 0x49 && data[11] == 0x20 {
		return "video/x-msvideo"
	}
	return "application/octet-stream"
}
