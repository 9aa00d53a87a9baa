// Package pipeline sequences detection, quality gating, embedding and
// gallery matching for each frame, under a real-time latency budget.
//
// Failures are scoped to the narrowest unit that can fail: a bad crop drops
// one face, an unreachable detector skips one frame, and nothing short of a
// store write error on the enrollment path ever propagates upward.
package pipeline

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/kozaktomas/facerec/internal/gallery"
	"github.com/kozaktomas/facerec/internal/inference"
	"github.com/kozaktomas/facerec/internal/quality"
)

// Frame is one unit of work: a decoded image plus an opaque source
// reference (file name, camera id + timestamp).
type Frame struct {
	SourceRef string
	Image     image.Image
}

// StageTimings records wall-clock duration per stage for one frame,
// aggregated across all face regions in the frame. It is a structured
// record so callers can compute throughput statistics; formatting is theirs.
type StageTimings struct {
	Detect  time.Duration `json:"detect"`
	Quality time.Duration `json:"quality"`
	Embed   time.Duration `json:"embed"`
	Search  time.Duration `json:"search"`
	Total   time.Duration `json:"total"`
}

// FaceMatch is the outcome for one accepted face region.
type FaceMatch struct {
	Region    inference.FaceRegion `json:"region"`
	Sharpness float64              `json:"sharpness"`
	Result    gallery.MatchResult  `json:"result"`
}

// FrameResult aggregates the per-face outcomes for one frame, in detection
// order. FailureReason is set only for frame-level failures (detector
// unreachable); the frame then carries no matches.
type FrameResult struct {
	SourceRef     string       `json:"source_ref"`
	Matches       []FaceMatch  `json:"matches"`
	DetectedFaces int          `json:"detected_faces"`
	RejectedBlur  int          `json:"rejected_blur"`
	FailedEmbeds  int          `json:"failed_embeds"`
	FailedMatches int          `json:"failed_matches"`
	Timings       StageTimings `json:"timings"`
	FailureReason string       `json:"failure_reason,omitempty"`
}

// TopK is how many gallery candidates a face query requests. The matcher
// only needs the best one; the rest feed diagnostics.
const TopK = 5

// Enrollment-side errors. The recognition path never returns these; it
// records per-face failures in the FrameResult instead.
var (
	ErrNoFace     = errors.New("no face detected in image")
	ErrBlurryFace = errors.New("face crop rejected by blur gate")
)

// Pipeline runs the per-frame recognition sequence. It holds no per-frame
// state, so one Pipeline serves any number of concurrent frames.
type Pipeline struct {
	detector inference.Detector
	embedder inference.Embedder
	gate     *quality.Gate
	gal      *gallery.Gallery
}

// New assembles a pipeline from its stages.
func New(detector inference.Detector, embedder inference.Embedder, gate *quality.Gate, gal *gallery.Gallery) *Pipeline {
	return &Pipeline{
		detector: detector,
		embedder: embedder,
		gate:     gate,
		gal:      gal,
	}
}

// EmbedBestFace runs the enrollment-side stages on one image: detect, pick
// the highest-confidence region, gate, embed. Unlike ProcessFrame it returns
// errors, because an enrollment caller needs to know why an image yielded no
// embedding.
func (p *Pipeline) EmbedBestFace(ctx context.Context, img image.Image) ([]float32, inference.FaceRegion, error) {
	regions, err := p.detector.DetectFaces(ctx, img)
	if err != nil {
		return nil, inference.FaceRegion{}, err
	}
	if len(regions) == 0 {
		return nil, inference.FaceRegion{}, ErrNoFace
	}

	best := regions[0]
	for _, region := range regions[1:] {
		if region.Confidence > best.Confidence {
			best = region
		}
	}

	crop := quality.CropRegion(img, best)
	if accepted, _ := p.gate.Check(crop); !accepted {
		return nil, best, ErrBlurryFace
	}

	embedding, err := p.embedder.EmbedFace(ctx, quality.PrepareCrop(crop))
	if err != nil {
		return nil, best, err
	}
	return embedding, best, nil
}

// ProcessFrame runs one frame through the full sequence and returns its
// result. The error cases inside a frame never surface as an error return;
// they are recorded in the result so the caller can keep feeding frames.
func (p *Pipeline) ProcessFrame(ctx context.Context, frame Frame) FrameResult {
	result := FrameResult{SourceRef: frame.SourceRef}
	start := time.Now()
	defer func() {
		result.Timings.Total = time.Since(start)
	}()

	detectStart := time.Now()
	regions, err := p.detector.DetectFaces(ctx, frame.Image)
	result.Timings.Detect = time.Since(detectStart)
	if err != nil {
		// Frame-scoped failure: skip this frame, keep the pipeline running.
		result.FailureReason = err.Error()
		return result
	}
	result.DetectedFaces = len(regions)

	for _, region := range regions {
		qualityStart := time.Now()
		crop := quality.CropRegion(frame.Image, region)
		accepted, score := p.gate.Check(crop)
		result.Timings.Quality += time.Since(qualityStart)
		if !accepted {
			result.RejectedBlur++
			continue
		}

		embedStart := time.Now()
		embedding, err := p.embedder.EmbedFace(ctx, quality.PrepareCrop(crop))
		result.Timings.Embed += time.Since(embedStart)
		if err != nil {
			// Region-scoped failure: drop this face only.
			result.FailedEmbeds++
			continue
		}

		searchStart := time.Now()
		match, _, err := p.gal.Match(ctx, embedding, TopK)
		result.Timings.Search += time.Since(searchStart)
		if err != nil {
			result.FailedMatches++
			continue
		}

		result.Matches = append(result.Matches, FaceMatch{
			Region:    region,
			Sharpness: score,
			Result:    match,
		})
	}

	return result
}
