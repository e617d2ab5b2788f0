package mediatool

import (
	"fmt"

	"github.com/h2non/bimg"
)

// ImageCompression is the AVIF compression algorithm.
type ImageCompression string

const (
	CompressionHEVC ImageCompression = "hevc"
	CompressionAVC  ImageCompression = "avc"
	CompressionJPEG ImageCompression = "jpeg"
	CompressionAV1  ImageCompression = "av1"
)

// ConvertTarget is the output format and its parameters (spec §4.4).
//
// BitDepth is intentionally not a field here: bimg's Options struct has no
// bit-depth knob for any encoder (libvips' heifsave bitdepth parameter isn't
// surfaced by the Go binding), so there is nothing to validate or apply it
// against. See DESIGN.md.
type ConvertTarget struct {
	Format      string           // "avif" or "jpeg"
	Quality     int              // 1..100
	Lossless    bool             // AVIF only
	Compression ImageCompression // AVIF only
	Scale       *float64         // optional uniform scale
}

// heifCompression maps an ImageCompression to libvips' VipsForeignHeifCompression
// enum, which bimg.Options.Compression passes straight through to heifsave.
var heifCompression = map[ImageCompression]int{
	CompressionHEVC: 1,
	CompressionAVC:  2,
	CompressionJPEG: 3,
	CompressionAV1:  4,
}

// Validate enforces the ranges spec.md §4.4 documents for ConvertTarget.
func (t ConvertTarget) Validate() error {
	if t.Quality < 1 || t.Quality > 100 {
		return fmt.Errorf("mediatool: quality %d out of range [1,100]", t.Quality)
	}
	if t.Format == "avif" {
		if _, ok := heifCompression[t.Compression]; !ok {
			return fmt.Errorf("mediatool: unknown avif compression %q", t.Compression)
		}
	}
	return nil
}

// ImageConverter produces alternate encodings of an image asset.
type ImageConverter struct{}

// Convert processes src into target's format, returning the encoded bytes
// and the new size iff scaling occurred (nil size otherwise).
func (c *ImageConverter) Convert(src []byte, target ConvertTarget) ([]byte, *Size, error) {
	if err := target.Validate(); err != nil {
		return nil, nil, err
	}

	opts := bimg.Options{Quality: target.Quality}
	var newSize *Size

	if target.Scale != nil {
		img := bimg.NewImage(src)
		srcSize, err := img.Size()
		if err != nil {
			return nil, nil, fmt.Errorf("mediatool: image converter: source size: %w", err)
		}
		w := int(float64(srcSize.Width) * *target.Scale)
		if w < 1 {
			w = 1
		}
		opts.Width = w
		newSize = &Size{} // filled in after Process, below
	}

	switch target.Format {
	case "jpeg":
		opts.Type = bimg.JPEG
	case "avif":
		opts.Type = bimg.AVIF
		opts.Lossless = target.Lossless
		opts.Compression = heifCompression[target.Compression]
	default:
		return nil, nil, fmt.Errorf("mediatool: image converter: unknown format %q", target.Format)
	}

	buf, err := bimg.NewImage(src).Process(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("mediatool: image converter: process %s: %w", target.Format, err)
	}

	if newSize != nil {
		actual, err := bimg.NewImage(buf).Size()
		if err != nil {
			return nil, nil, fmt.Errorf("mediatool: image converter: actual size: %w", err)
		}
		newSize.Width, newSize.Height = actual.Width, actual.Height
	}

	return buf, newSize, nil
}
