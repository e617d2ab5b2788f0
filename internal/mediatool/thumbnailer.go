// Package mediatool wraps the image library, ffmpeg, ffprobe, shaka
// packager, and MPD generator behind typed adapters, all parameterized by an
// explicit tool binary path (empty string meaning "resolve from PATH").
// Grounded on the teacher's bimg usage in internal/utils/imaging/process.go
// and the subprocess style of internal/processors/video_helpers.go,
// generalized to the adapter contracts of SPEC_FULL.md §4.4.
package mediatool

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/h2non/bimg"

	"server/internal/proccontrol"
)

// OutDimension selects how Thumbnailer fits the output.
type OutDimension struct {
	Width  int
	Height int
	Crop   bool // Crop{width,height}; false means KeepAspect{width}
}

// Size is a pixel dimension pair.
type Size struct {
	Width  int
	Height int
}

// ThumbnailOutput requests one encoded thumbnail output.
type ThumbnailOutput struct {
	Format  string // "webp" or "avif"
	Quality int
}

// Thumbnailer generates square/aspect-preserving thumbnails from an image,
// or from a video's first-frame snapshot.
type Thumbnailer struct {
	FFmpegPath string
}

// GenerateThumbnail processes src (the encoded bytes of an image file) into
// each requested output, returning the size of the first output and the
// encoded buffers keyed by format. For a video asset, call VideoSnapshot
// first to write a single-frame JPEG and pass that file's bytes here.
func (t *Thumbnailer) GenerateThumbnail(src []byte, dim OutDimension, outputs []ThumbnailOutput) (Size, map[string][]byte, error) {
	img := bimg.NewImage(src)
	srcSize, err := img.Size()
	if err != nil {
		return Size{}, nil, fmt.Errorf("mediatool: thumbnailer: source size: %w", err)
	}
	if srcSize.Width == 0 || srcSize.Height == 0 {
		return Size{}, nil, fmt.Errorf("mediatool: thumbnailer: invalid source size")
	}

	opts := bimg.Options{
		Width:   dim.Width,
		Height:  dim.Height,
		Crop:    dim.Crop,
		Gravity: bimg.GravitySmart,
		Enlarge: false,
	}
	if !dim.Crop {
		opts.Height = 0
	}

	results := make(map[string][]byte, len(outputs))
	for _, out := range outputs {
		o := opts
		o.Quality = out.Quality
		switch out.Format {
		case "webp":
			o.Type = bimg.WEBP
		case "avif":
			// AVIF output via libvips' heif save path, exposed through
			// bimg's generic Type option (additive use of the teacher's
			// existing libvips binding, not a new dependency — see
			// DESIGN.md).
			o.Type = bimg.AVIF
		default:
			return Size{}, nil, fmt.Errorf("mediatool: thumbnailer: unknown format %q", out.Format)
		}
		buf, err := img.Process(o)
		if err != nil {
			return Size{}, nil, fmt.Errorf("mediatool: thumbnailer: process %s: %w", out.Format, err)
		}
		results[out.Format] = buf
	}

	actual, err := bimg.NewImage(results[outputs[0].Format]).Size()
	if err != nil {
		return Size{}, nil, fmt.Errorf("mediatool: thumbnailer: actual size: %w", err)
	}
	return Size{Width: actual.Width, Height: actual.Height}, results, nil
}

// VideoSnapshot writes the first frame of a video to outPath as a JPEG via
// ffmpeg, under Process Control so Pause/Resume/Cancel still
// apply to long probes on slow storage.
func (t *Thumbnailer) VideoSnapshot(ctx context.Context, inPath, outPath string, ctl *proccontrol.Handle) error {
	bin := t.FFmpegPath
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, bin,
		"-nostdin", "-y", "-hide_banner",
		"-i", inPath,
		"-vframes", "1", "-q:v", "2",
		outPath,
	)
	var ctlCh <-chan proccontrol.ControlMsg
	if ctl != nil {
		ctlCh = ctl.Chan()
	}
	res := proccontrol.Run(ctx, cmd, ctlCh)
	if !res.Success() {
		return fmt.Errorf("mediatool: ffmpeg snapshot failed: outcome=%v exit=%d: %w", res.Outcome, res.ExitCode, res.Err)
	}
	return nil
}
