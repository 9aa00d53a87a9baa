package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"strings"
)

const (
	defaultEmbedderURL = "http://localhost:8002"
	defaultEmbedderDim = 512
)

// AdaFaceClient talks to an AdaFace recognition sidecar over HTTP. It accepts
// an aligned face crop and returns a fixed-dimension identity embedding.
// Pixel normalization (range, mean/std) happens inside the sidecar.
type AdaFaceClient struct {
	baseURL string
	dim     int
	client  *http.Client
}

// NewAdaFaceClient creates an embedder client for the given base URL.
// dim is the embedding dimension the service is expected to return;
// zero means the default 512.
func NewAdaFaceClient(baseURL string, dim int) *AdaFaceClient {
	if baseURL == "" {
		baseURL = defaultEmbedderURL
	}
	if dim <= 0 {
		dim = defaultEmbedderDim
	}
	return &AdaFaceClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		dim:     dim,
		client:  &http.Client{},
	}
}

// embedResponse represents the response from the embedding endpoint.
type embedResponse struct {
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}

// Dim returns the embedding dimension this client is configured for.
func (c *AdaFaceClient) Dim() int {
	return c.dim
}

// EmbedFace encodes the crop as JPEG and posts it to the embedding service.
// Failures are reported as ErrEmbeddingFailed; the caller drops the face and
// keeps processing the rest of the frame.
func (c *AdaFaceClient) EmbedFace(ctx context.Context, crop image.Image) ([]float32, error) {
	var img bytes.Buffer
	if err := jpeg.Encode(&img, crop, &jpeg.Options{Quality: 95}); err != nil {
		return nil, fmt.Errorf("%w: encoding crop: %v", ErrEmbeddingFailed, err)
	}

	body, err := postMultipartImage(ctx, c.client, c.baseURL+"/embed/face", img.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	var resp embedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: parsing response: %v", ErrEmbeddingFailed, err)
	}

	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmbeddingFailed, "empty embedding returned")
	}
	if len(resp.Embedding) != c.dim {
		return nil, fmt.Errorf("%w: expected %d dimensions, got %d", ErrEmbeddingFailed, c.dim, len(resp.Embedding))
	}

	return resp.Embedding, nil
}
