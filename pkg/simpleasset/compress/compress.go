// Package compress provides image Compressor implementations for the
// ingestion pipeline.
package compress

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// Image re-encodes image payloads with github.com/disintegration/imaging:
// EXIF orientation is normalized during decode, the image is fit into the
// requested bounding box without upscaling, and the output is encoded by
// extension at the requested quality.
type Image struct{}

// NewImage creates the imaging-backed compressor.
func NewImage() simpleasset.Compressor {
	return &Image{}
}

// Compress implements simpleasset.Compressor.
func (c *Image) Compress(content []byte, extension string, opts simpleasset.CompressParams) ([]byte, error) {
	format, err := imaging.FormatFromExtension(extension)
	if err != nil {
		return nil, fmt.Errorf("unsupported image format %q: %w", extension, err)
	}

	img, err := imaging.Decode(bytes.NewReader(content), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	if opts.MaxWidth > 0 && opts.MaxHeight > 0 {
		bounds := img.Bounds()
		if bounds.Dx() > opts.MaxWidth || bounds.Dy() > opts.MaxHeight {
			img = imaging.Fit(img, opts.MaxWidth, opts.MaxHeight, imaging.Lanczos)
		}
	}

	var encodeOpts []imaging.EncodeOption
	if opts.Quality > 0 {
		encodeOpts = append(encodeOpts, imaging.JPEGQuality(opts.Quality))
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, encodeOpts...); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return buf.Bytes(), nil
}

// Noop passes content through untouched. Useful for tests and for callers
// that store originals verbatim.
type Noop struct{}

// NewNoop creates the pass-through compressor.
func NewNoop() simpleasset.Compressor {
	return &Noop{}
}

// Compress implements simpleasset.Compressor.
func (c *Noop) Compress(content []byte, extension string, opts simpleasset.CompressParams) ([]byte, error) {
	return content, nil
}
