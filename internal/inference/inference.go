package inference

import (
	"context"
	"errors"
	"image"
)

// ErrDetectionUnavailable is returned when the face detection service cannot
// be reached. The affected frame is skipped; the pipeline keeps running.
var ErrDetectionUnavailable = errors.New("face detection service unavailable")

// ErrEmbeddingFailed is returned when the embedding service rejects a crop
// (wrong size, undecodable image). Only the affected face is dropped.
var ErrEmbeddingFailed = errors.New("face embedding failed")

// Keypoint is a single facial landmark in frame pixel coordinates.
type Keypoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FaceRegion is one detected face within a frame. Coordinates are pixels in
// the source frame. Regions live only for the duration of one frame's
// processing and are never persisted.
type FaceRegion struct {
	BBox       [4]float64  `json:"bbox"` // [x1, y1, x2, y2]
	Keypoints  [5]Keypoint `json:"keypoints"`
	Confidence float64     `json:"confidence"` // detection score in [0, 1]
}

// Width returns the bbox width in pixels.
func (r FaceRegion) Width() float64 {
	return r.BBox[2] - r.BBox[0]
}

// Height returns the bbox height in pixels.
func (r FaceRegion) Height() float64 {
	return r.BBox[3] - r.BBox[1]
}

// Detector finds faces in a frame. Implementations are expected to be
// slow/blocking (remote model inference) and must be safe for concurrent use.
// The returned regions are in no guaranteed order.
type Detector interface {
	DetectFaces(ctx context.Context, frame image.Image) ([]FaceRegion, error)
}

// Embedder computes a fixed-dimension identity embedding for a prepared face
// crop. Pixel range and mean/std normalization are the implementation's
// contract with its model, not the caller's concern.
type Embedder interface {
	EmbedFace(ctx context.Context, crop image.Image) ([]float32, error)
	Dim() int
}
