package quality

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/kozaktomas/facerec/internal/inference"
)

// EmbedderInputSize is the square crop size the recognition model expects.
const EmbedderInputSize = 112

// CropRegion extracts the face region from the frame, expanded to a square
// and clamped to the frame bounds. The result is a copy; mutating it does not
// touch the source frame.
func CropRegion(frame image.Image, region inference.FaceRegion) *image.RGBA {
	bounds := frame.Bounds()

	x1 := int(region.BBox[0])
	y1 := int(region.BBox[1])
	x2 := int(region.BBox[2])
	y2 := int(region.BBox[3])

	// Expand the shorter side so the crop is square and keeps the face centered.
	w := x2 - x1
	h := y2 - y1
	if w < h {
		pad := (h - w) / 2
		x1 -= pad
		x2 = x1 + h
	} else if h < w {
		pad := (w - h) / 2
		y1 -= pad
		y2 = y1 + w
	}

	// Clamp to frame bounds.
	if x1 < bounds.Min.X {
		x1 = bounds.Min.X
	}
	if y1 < bounds.Min.Y {
		y1 = bounds.Min.Y
	}
	if x2 > bounds.Max.X {
		x2 = bounds.Max.X
	}
	if y2 > bounds.Max.Y {
		y2 = bounds.Max.Y
	}
	if x2 <= x1 || y2 <= y1 {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}

	rect := image.Rect(x1, y1, x2, y2)
	crop := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(crop, crop.Bounds(), frame, rect.Min, draw.Src)
	return crop
}

// PrepareCrop resizes a face crop to the embedder input size. Pixel range and
// mean/std normalization are the embedder's contract, not done here.
func PrepareCrop(crop image.Image) *image.RGBA {
	resized := image.NewRGBA(image.Rect(0, 0, EmbedderInputSize, EmbedderInputSize))
	draw.CatmullRom.Scale(resized, resized.Bounds(), crop, crop.Bounds(), draw.Over, nil)
	return resized
}

// Grayscale converts an image to 8-bit grayscale.
func Grayscale(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(gray, gray.Bounds(), img, bounds.Min, draw.Src)
	return gray
}
