package quality

import (
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/kozaktomas/facerec/internal/inference"
)

// flatImage is a uniform gray image: zero Laplacian response everywhere.
func flatImage(size int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetGray(x, y, color.Gray{Y: 128})
		}
	}
	return img
}

// noisyImage has random per-pixel intensity: strong Laplacian response.
func noisyImage(size int, seed int64) *image.Gray {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(rng.Intn(256))})
		}
	}
	return img
}

// checkerImage alternates black and white pixels: maximal sharpness.
func checkerImage(size int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x+y)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func TestLaplacianVariance(t *testing.T) {
	if v := LaplacianVariance(flatImage(32)); v != 0 {
		t.Errorf("flat image variance = %v; want 0", v)
	}

	flat := LaplacianVariance(flatImage(32))
	noisy := LaplacianVariance(noisyImage(32, 1))
	checker := LaplacianVariance(checkerImage(32))

	if noisy <= flat {
		t.Errorf("noisy (%v) should score above flat (%v)", noisy, flat)
	}
	if checker <= noisy {
		t.Errorf("checkerboard (%v) should score above noise (%v)", checker, noisy)
	}

	// Degenerate crops score zero instead of panicking.
	if v := LaplacianVariance(image.NewGray(image.Rect(0, 0, 2, 2))); v != 0 {
		t.Errorf("tiny image variance = %v; want 0", v)
	}
}

func TestGateCheck(t *testing.T) {
	sharp := checkerImage(32)
	blurred := flatImage(32)

	gate := NewGate(100)

	if ok, score := gate.Check(sharp); !ok {
		t.Errorf("sharp crop rejected with score %v", score)
	}
	if ok, score := gate.Check(blurred); ok {
		t.Errorf("blurred crop accepted with score %v", score)
	}
}

func TestGateThresholdMonotonic(t *testing.T) {
	// Raising the threshold must never grow the accepted set.
	crops := []image.Image{
		flatImage(32),
		noisyImage(32, 1),
		noisyImage(32, 2),
		checkerImage(32),
	}

	accepted := func(threshold float64) int {
		gate := NewGate(threshold)
		count := 0
		for _, crop := range crops {
			if ok, _ := gate.Check(crop); ok {
				count++
			}
		}
		return count
	}

	prev := accepted(0)
	for _, threshold := range []float64{10, 100, 1000, 1e6} {
		cur := accepted(threshold)
		if cur > prev {
			t.Errorf("raising threshold to %v grew accepted set from %d to %d", threshold, prev, cur)
		}
		prev = cur
	}
}

func TestCropRegion(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 100, 80))

	tests := []struct {
		name   string
		bbox   [4]float64
		wantSq bool
		empty  bool
	}{
		{name: "inside frame", bbox: [4]float64{10, 10, 50, 50}, wantSq: true},
		{name: "tall box becomes square", bbox: [4]float64{20, 10, 40, 60}, wantSq: true},
		{name: "clamped at edge", bbox: [4]float64{80, 60, 120, 100}},
		{name: "fully outside", bbox: [4]float64{200, 200, 300, 300}, empty: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crop := CropRegion(frame, inference.FaceRegion{BBox: tt.bbox})
			bounds := crop.Bounds()
			if tt.empty {
				if bounds.Dx() != 0 || bounds.Dy() != 0 {
					t.Errorf("out-of-frame bbox produced %dx%d crop", bounds.Dx(), bounds.Dy())
				}
				return
			}
			if bounds.Dx() == 0 || bounds.Dy() == 0 {
				t.Fatalf("empty crop for bbox %v", tt.bbox)
			}
			if tt.wantSq && bounds.Dx() != bounds.Dy() {
				t.Errorf("crop %dx%d not square", bounds.Dx(), bounds.Dy())
			}
		})
	}
}

func TestPrepareCrop(t *testing.T) {
	crop := PrepareCrop(checkerImage(40))
	bounds := crop.Bounds()
	if bounds.Dx() != EmbedderInputSize || bounds.Dy() != EmbedderInputSize {
		t.Errorf("PrepareCrop() size = %dx%d; want %dx%d",
			bounds.Dx(), bounds.Dy(), EmbedderInputSize, EmbedderInputSize)
	}
}
