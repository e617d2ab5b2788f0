package mediatool

import (
	"context"
	"fmt"
	"os"

	"server/internal/blobstore"
	"server/internal/proccontrol"
)

// FFmpegOutput is the result of a completed ffmpeg transcode step: a local
// file ready to be handed to shaka packager. Its only constructor is
// FFmpegIntoShaka.RunFFmpegStage, so RunShakaStage cannot be called
// before the ffmpeg stage has actually produced output — reproducing the
// original's type-state pattern without Rust's ownership types.
type FFmpegOutput struct {
	localPath string
	cleanup   func()
}

// Close removes the intermediate local file.
func (o *FFmpegOutput) Close() {
	if o.cleanup != nil {
		o.cleanup()
	}
}

// FFmpegIntoShaka transcodes a source file with ffmpeg into a temporary
// local file, then packages that file with shaka packager. Used for the
// "transcode then package" path (spec §4.4).
type FFmpegIntoShaka struct {
	FFmpeg  *FFmpeg
	Shaka   *ShakaPackager
}

// RunFFmpegStage produces an FFmpegOutput; the caller must Close it once
// RunShakaStage has completed (success or failure).
func (o *FFmpegIntoShaka) RunFFmpegStage(ctx context.Context, pre []string, input string, post []string, ctl *proccontrol.Handle) (*FFmpegOutput, error) {
	tmp, err := os.CreateTemp("", "ffmpeg-out-*.mp4")
	if err != nil {
		return nil, fmt.Errorf("mediatool: ffmpeg-into-shaka: create temp output: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	os.Remove(tmpPath) // ffmpeg must create it itself via -y

	if err := o.FFmpeg.RunLocal(ctx, pre, input, post, tmpPath, ctl); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("mediatool: ffmpeg-into-shaka: ffmpeg stage: %w", err)
	}
	return &FFmpegOutput{localPath: tmpPath, cleanup: func() { os.Remove(tmpPath) }}, nil
}

// RunShakaStage packages a completed FFmpegOutput.
func (o *FFmpegIntoShaka) RunShakaStage(ctx context.Context, storage blobstore.Storage, out *FFmpegOutput, streamType StreamType, outputKey string, ctl *proccontrol.Handle) error {
	if err := o.Shaka.Run(ctx, storage, out.localPath, streamType, outputKey, ctl); err != nil {
		return fmt.Errorf("mediatool: ffmpeg-into-shaka: shaka stage: %w", err)
	}
	return nil
}

// ShakaOutput is the result of a completed shaka packaging step, ready to be
// handed to a second ffmpeg invocation (e.g. remuxing a packaged segment).
type ShakaOutput struct {
	localPath string
}

// ShakaIntoFFmpeg packages a source with shaka packager into a local file,
// then runs ffmpeg against that output. Used for the "package then
// transcode" path (spec §4.4).
type ShakaIntoFFmpeg struct {
	Shaka  *ShakaPackager
	FFmpeg *FFmpeg
}

// RunShakaStage packages input and returns a handle to its local output.
func (o *ShakaIntoFFmpeg) RunShakaStage(ctx context.Context, storage blobstore.Storage, input string, streamType StreamType, intermediateKey string, ctl *proccontrol.Handle) (*ShakaOutput, error) {
	if err := o.Shaka.Run(ctx, storage, input, streamType, intermediateKey, ctl); err != nil {
		return nil, fmt.Errorf("mediatool: shaka-into-ffmpeg: shaka stage: %w", err)
	}
	local, ok, err := storage.LocalPath(ctx, intermediateKey)
	if err != nil || !ok {
		return nil, fmt.Errorf("mediatool: shaka-into-ffmpeg: intermediate output not local: %w", err)
	}
	return &ShakaOutput{localPath: local}, nil
}

// RunFFmpegStage runs ffmpeg against a completed ShakaOutput.
func (o *ShakaIntoFFmpeg) RunFFmpegStage(ctx context.Context, out *ShakaOutput, pre []string, post []string, outputPath string, ctl *proccontrol.Handle) error {
	if err := o.FFmpeg.RunLocal(ctx, pre, out.localPath, post, outputPath, ctl); err != nil {
		return fmt.Errorf("mediatool: shaka-into-ffmpeg: ffmpeg stage: %w", err)
	}
	return nil
}
