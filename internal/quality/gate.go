// Package quality rejects face crops that are too blurred to embed reliably.
//
// Sharpness is measured as the variance of a Laplacian-filtered grayscale
// crop. The acceptance threshold depends on the detector precision profile:
// full-precision models report higher baseline sharpness than reduced
// precision ones, so the threshold is configuration, never a constant.
package quality

import "image"

// Gate filters face crops by sharpness. It is stateless across frames.
type Gate struct {
	// BlurThreshold is the minimum Laplacian variance for a crop to be
	// accepted. Higher values drop more blurred faces but also more true
	// faces.
	BlurThreshold float64
}

// NewGate creates a quality gate with the given blur threshold.
func NewGate(blurThreshold float64) *Gate {
	return &Gate{BlurThreshold: blurThreshold}
}

// Check scores the crop and reports whether it passes the gate.
// The returned score is the Laplacian variance, useful for diagnostics.
func (g *Gate) Check(crop image.Image) (accepted bool, score float64) {
	score = LaplacianVariance(Grayscale(crop))
	return score >= g.BlurThreshold, score
}

// LaplacianVariance computes the variance of the 4-connected Laplacian over
// the interior pixels of a grayscale image. Blurred images have a flat
// Laplacian response and therefore low variance.
func LaplacianVariance(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w < 3 || h < 3 {
		return 0
	}

	at := func(x, y int) float64 {
		return float64(gray.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
	}

	n := (w - 2) * (h - 2)
	responses := make([]float64, 0, n)
	var sum float64
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			// Kernel: [0 1 0; 1 -4 1; 0 1 0]
			v := at(x-1, y) + at(x+1, y) + at(x, y-1) + at(x, y+1) - 4*at(x, y)
			responses = append(responses, v)
			sum += v
		}
	}

	mean := sum / float64(n)
	var variance float64
	for _, v := range responses {
		d := v - mean
		variance += d * d
	}
	return variance / float64(n)
}
