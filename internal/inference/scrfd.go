package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

const defaultDetectorURL = "http://localhost:8001"

// SCRFDClient talks to an SCRFD face detection sidecar over HTTP.
// The sidecar accepts a multipart image upload and returns detected faces
// with bounding boxes, 5-point landmarks and detection scores.
type SCRFDClient struct {
	baseURL string
	client  *http.Client
}

// NewSCRFDClient creates a detector client for the given base URL.
func NewSCRFDClient(baseURL string) *SCRFDClient {
	if baseURL == "" {
		baseURL = defaultDetectorURL
	}
	return &SCRFDClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
	}
}

// detectResponse represents the response from the detection endpoint.
type detectResponse struct {
	FacesCount int            `json:"faces_count"`
	Faces      []detectedFace `json:"faces"`
	Model      string         `json:"model"`
}

type detectedFace struct {
	BBox      []float64   `json:"bbox"` // [x1, y1, x2, y2]
	Keypoints [][]float64 `json:"kps"`  // 5 x [x, y]
	DetScore  float64     `json:"det_score"`
}

// DetectFaces encodes the frame as JPEG and posts it to the detection service.
// Any transport or service failure is reported as ErrDetectionUnavailable so
// the caller can skip the frame and continue.
func (c *SCRFDClient) DetectFaces(ctx context.Context, frame image.Image) ([]FaceRegion, error) {
	var img bytes.Buffer
	if err := jpeg.Encode(&img, frame, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	body, err := postMultipartImage(ctx, c.client, c.baseURL+"/detect/faces", img.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetectionUnavailable, err)
	}

	var resp detectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: parsing response: %v", ErrDetectionUnavailable, err)
	}

	regions := make([]FaceRegion, 0, len(resp.Faces))
	for _, face := range resp.Faces {
		if len(face.BBox) != 4 {
			continue
		}
		region := FaceRegion{
			BBox:       [4]float64{face.BBox[0], face.BBox[1], face.BBox[2], face.BBox[3]},
			Confidence: face.DetScore,
		}
		for i := 0; i < 5 && i < len(face.Keypoints); i++ {
			if len(face.Keypoints[i]) == 2 {
				region.Keypoints[i] = Keypoint{X: face.Keypoints[i][0], Y: face.Keypoints[i][1]}
			}
		}
		regions = append(regions, region)
	}

	return regions, nil
}

// postMultipartImage constructs a multipart form with the image data and posts
// it to the given endpoint.
func postMultipartImage(ctx context.Context, client *http.Client, url string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "image.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}
