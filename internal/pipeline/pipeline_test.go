package pipeline

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/kozaktomas/facerec/internal/gallery"
	"github.com/kozaktomas/facerec/internal/gallery/index"
	"github.com/kozaktomas/facerec/internal/inference"
	"github.com/kozaktomas/facerec/internal/quality"
)

// newTestGate sits between a flat crop (variance 0) and a checkerboard.
func newTestGate() *quality.Gate {
	return quality.NewGate(50)
}

// fakeDetector returns a fixed region list or a fixed error.
type fakeDetector struct {
	regions []inference.FaceRegion
	err     error
}

func (d *fakeDetector) DetectFaces(ctx context.Context, frame image.Image) ([]inference.FaceRegion, error) {
	return d.regions, d.err
}

// fakeEmbedder returns a fixed vector, failing on selected call numbers.
type fakeEmbedder struct {
	dim       int
	embedding []float32
	failCalls map[int]bool
	calls     atomic.Int32
}

func (e *fakeEmbedder) EmbedFace(ctx context.Context, crop image.Image) ([]float32, error) {
	call := int(e.calls.Add(1))
	if e.failCalls[call] {
		return nil, fmt.Errorf("%w: malformed crop", inference.ErrEmbeddingFailed)
	}
	return e.embedding, nil
}

func (e *fakeEmbedder) Dim() int { return e.dim }

func testGallery(t *testing.T) *gallery.Gallery {
	t.Helper()

	store, err := gallery.OpenFileStore(filepath.Join(t.TempDir(), "gallery.log"), 0)
	if err != nil {
		t.Fatalf("OpenFileStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	idx, err := index.NewFlat(4)
	if err != nil {
		t.Fatalf("NewFlat() error = %v", err)
	}
	g, err := gallery.Open(context.Background(), store, idx, gallery.Matcher{CosineThreshold: 0.45})
	if err != nil {
		t.Fatalf("gallery.Open() error = %v", err)
	}
	return g
}

// testFrame builds a 90x30 frame with three 30x30 zones: sharp, flat, sharp.
// The flat zone fails the blur gate; the sharp ones pass.
func testFrame() image.Image {
	img := image.NewGray(image.Rect(0, 0, 90, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 90; x++ {
			zone := x / 30
			switch {
			case zone == 1:
				img.SetGray(x, y, color.Gray{Y: 128}) // flat: blurred
			case (x+y)%2 == 0:
				img.SetGray(x, y, color.Gray{Y: 255}) // checkerboard: sharp
			}
		}
	}
	return img
}

func region(x1, x2 float64) inference.FaceRegion {
	return inference.FaceRegion{BBox: [4]float64{x1, 0, x2, 30}, Confidence: 0.9}
}

func TestProcessFrameScopedFailures(t *testing.T) {
	gal := testGallery(t)
	ctx := context.Background()

	if _, err := gal.Enroll(ctx, []float32{1, 0, 0, 0}, "alice", ""); err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}

	detector := &fakeDetector{regions: []inference.FaceRegion{
		region(0, 30),  // sharp, embeds fine
		region(30, 60), // flat, rejected by the quality gate
		region(60, 90), // sharp, embedding fails (call 2)
	}}
	embedder := &fakeEmbedder{
		dim:       4,
		embedding: []float32{1, 0, 0, 0},
		failCalls: map[int]bool{2: true},
	}

	p := New(detector, embedder, newTestGate(), gal)
	result := p.ProcessFrame(ctx, Frame{SourceRef: "frame-1", Image: testFrame()})

	if result.FailureReason != "" {
		t.Fatalf("unexpected frame failure: %s", result.FailureReason)
	}
	if result.DetectedFaces != 3 {
		t.Errorf("DetectedFaces = %d; want 3", result.DetectedFaces)
	}
	if result.RejectedBlur != 1 {
		t.Errorf("RejectedBlur = %d; want 1", result.RejectedBlur)
	}
	if result.FailedEmbeds != 1 {
		t.Errorf("FailedEmbeds = %d; want 1", result.FailedEmbeds)
	}
	if len(result.Matches) != 1 {
		t.Fatalf("got %d matches; want exactly 1", len(result.Matches))
	}
	if !result.Matches[0].Result.Matched || result.Matches[0].Result.IdentityLabel != "alice" {
		t.Errorf("match = %+v; want alice", result.Matches[0].Result)
	}
	if result.Timings.Total <= 0 {
		t.Error("total timing not recorded")
	}
}

func TestProcessFrameDetectorDown(t *testing.T) {
	gal := testGallery(t)

	detector := &fakeDetector{err: inference.ErrDetectionUnavailable}
	embedder := &fakeEmbedder{dim: 4, embedding: []float32{1, 0, 0, 0}}

	p := New(detector, embedder, newTestGate(), gal)
	result := p.ProcessFrame(context.Background(), Frame{SourceRef: "frame-1", Image: testFrame()})

	if result.FailureReason == "" {
		t.Error("frame-level failure reason not recorded")
	}
	if len(result.Matches) != 0 {
		t.Errorf("failed frame produced %d matches", len(result.Matches))
	}
	if result.Timings.Detect <= 0 {
		t.Error("detect timing not recorded for failed frame")
	}
}

func TestRunProcessesAllFrames(t *testing.T) {
	gal := testGallery(t)
	ctx := context.Background()

	detector := &fakeDetector{regions: []inference.FaceRegion{region(0, 30)}}
	embedder := &fakeEmbedder{dim: 4, embedding: []float32{1, 0, 0, 0}}
	p := New(detector, embedder, newTestGate(), gal)

	const n = 20
	frames := make(chan Frame, n)
	for i := 0; i < n; i++ {
		frames <- Frame{SourceRef: fmt.Sprintf("frame-%d", i), Image: testFrame()}
	}
	close(frames)

	seen := make(map[string]bool)
	for result := range p.Run(ctx, frames, 3) {
		if result.FailureReason != "" {
			t.Errorf("frame %s failed: %s", result.SourceRef, result.FailureReason)
		}
		seen[result.SourceRef] = true
	}

	if len(seen) != n {
		t.Errorf("processed %d distinct frames; want %d", len(seen), n)
	}
}

func TestEmbedBestFace(t *testing.T) {
	gal := testGallery(t)
	ctx := context.Background()

	embedder := &fakeEmbedder{dim: 4, embedding: []float32{1, 0, 0, 0}}

	t.Run("picks highest confidence region", func(t *testing.T) {
		weak := region(0, 30)
		weak.Confidence = 0.3
		strong := region(60, 90)
		strong.Confidence = 0.95
		detector := &fakeDetector{regions: []inference.FaceRegion{weak, strong}}

		p := New(detector, embedder, newTestGate(), gal)
		embedding, best, err := p.EmbedBestFace(ctx, testFrame())
		if err != nil {
			t.Fatalf("EmbedBestFace() error = %v", err)
		}
		if best.Confidence != 0.95 {
			t.Errorf("picked region with confidence %v; want 0.95", best.Confidence)
		}
		if len(embedding) != 4 {
			t.Errorf("embedding dim = %d; want 4", len(embedding))
		}
	})

	t.Run("no face", func(t *testing.T) {
		p := New(&fakeDetector{}, embedder, newTestGate(), gal)
		if _, _, err := p.EmbedBestFace(ctx, testFrame()); err != ErrNoFace {
			t.Errorf("error = %v; want ErrNoFace", err)
		}
	})

	t.Run("blurry face", func(t *testing.T) {
		detector := &fakeDetector{regions: []inference.FaceRegion{region(30, 60)}} // flat zone
		p := New(detector, embedder, newTestGate(), gal)
		if _, _, err := p.EmbedBestFace(ctx, testFrame()); err != ErrBlurryFace {
			t.Errorf("error = %v; want ErrBlurryFace", err)
		}
	})
}

func TestRunCancel(t *testing.T) {
	gal := testGallery(t)

	detector := &fakeDetector{regions: []inference.FaceRegion{region(0, 30)}}
	embedder := &fakeEmbedder{dim: 4, embedding: []float32{1, 0, 0, 0}}
	p := New(detector, embedder, newTestGate(), gal)

	ctx, cancel := context.WithCancel(context.Background())
	frames := make(chan Frame) // never closed, never fed
	results := p.Run(ctx, frames, 2)

	cancel()

	// The result channel must close even though the source never ends.
	for range results {
	}
}
