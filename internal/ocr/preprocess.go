package ocr

import (
	"image"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/segment"
	"github.com/disintegration/imaging"
)

// PreprocessOptions tunes image cleanup before recognition.
type PreprocessOptions struct {
	MinWidth  int     // frames narrower than this are upscaled, default 1600
	Contrast  float64 // -1..1, default 0.3
	Binarize  bool
	Threshold uint8 // binarization level, default 140
}

func (o PreprocessOptions) withDefaults() PreprocessOptions {
	if o.MinWidth <= 0 {
		o.MinWidth = 1600
	}
	if o.Contrast == 0 {
		o.Contrast = 0.3
	}
	if o.Threshold == 0 {
		o.Threshold = 140
	}
	return o
}

// Preprocess converts a camera frame into something tesseract reads well:
// grayscale, upscaled when small, contrast boosted and optionally
// thresholded to black and white.
func Preprocess(img image.Image, opts PreprocessOptions) image.Image {
	opts = opts.withDefaults()

	gray := imaging.Grayscale(img)
	if w := gray.Bounds().Dx(); w > 0 && w < opts.MinWidth {
		gray = imaging.Resize(gray, opts.MinWidth, 0, imaging.Lanczos)
	}

	var out image.Image = adjust.Contrast(gray, opts.Contrast)
	if opts.Binarize {
		out = segment.Threshold(out, opts.Threshold)
	}
	return out
}
