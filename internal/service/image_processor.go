package service

import (
	"fmt"

	"github.com/h2non/bimg"
)

// ImageProcessor normalises menu photos before OCR.
// It uses bimg (Go bindings for libvips), a C library that's extremely fast
// at image manipulation. The trade-off: requires libvips as a system dependency.
type ImageProcessor struct {
	maxDimension int
}

// NewImageProcessor creates a processor that keeps the longest edge at or
// below maxDimension pixels. Zero disables downscaling.
func NewImageProcessor(maxDimension int) *ImageProcessor {
	return &ImageProcessor{maxDimension: maxDimension}
}

// PrepareForOCR rotates the photo upright using its EXIF orientation, shrinks
// oversized phone photos, and re-encodes anything that isn't JPEG or PNG
// (HEIC from iPhones, WebP, TIFF...) as JPEG, the one format every OCR engine
// accepts.
//
// Bytes bimg can't identify are returned untouched so the OCR provider gets
// to report what's wrong with them.
func (p *ImageProcessor) PrepareForOCR(data []byte) ([]byte, error) {
	imgType := bimg.DetermineImageType(data)
	if imgType == bimg.UNKNOWN {
		return data, nil
	}

	img := bimg.NewImage(data)
	size, err := img.Size()
	if err != nil {
		return data, nil
	}

	// bimg.Options is a struct with many fields: Go's alternative to
	// builder patterns. You set only the fields you need.
	opts := bimg.Options{Interpretation: bimg.InterpretationSRGB}
	changed := false

	if p.maxDimension > 0 && max(size.Width, size.Height) > p.maxDimension {
		// Setting one side lets bimg derive the other from the aspect ratio.
		if size.Width >= size.Height {
			opts.Width = p.maxDimension
		} else {
			opts.Height = p.maxDimension
		}
		changed = true
	}

	if imgType != bimg.JPEG && imgType != bimg.PNG {
		opts.Type = bimg.JPEG
		opts.Quality = 90
		changed = true
	}

	// Orientation 1 means "already upright"; anything above needs a rotate/flip.
	if meta, err := img.Metadata(); err == nil && meta.Orientation > 1 {
		changed = true
	}

	if !changed {
		return data, nil
	}

	out, err := img.Process(opts)
	if err != nil {
		return nil, fmt.Errorf("preparing %s image for OCR: %w", bimg.ImageTypeName(imgType), err)
	}
	return out, nil
}
