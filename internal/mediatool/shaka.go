package mediatool

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"

	"server/internal/blobstore"
	"server/internal/proccontrol"
)

// StreamType selects which stream shaka packager extracts.
type StreamType string

const (
	StreamVideo StreamType = "video"
	StreamAudio StreamType = "audio"
)

// ShakaPackager produces an mp4 segment and a co-located .media_info
// sidecar, grounded on the original's processing/video/shaka.rs invocation
// contract (spec §4.4, §6).
type ShakaPackager struct {
	Path string
}

func (s *ShakaPackager) bin() string {
	if s.Path == "" {
		return "packager"
	}
	return s.Path
}

// Run packages input as streamType into a command-output file allocated
// from storage at outputKey. Both the mp4 and its .media_info sidecar are
// staged through command-output handles (outputKey and
// outputKey+".media_info"), then flushed together on success.
func (s *ShakaPackager) Run(ctx context.Context, storage blobstore.Storage, input string, streamType StreamType, outputKey string, ctl *proccontrol.Handle) error {
	cof, err := storage.NewCommandOut(ctx, outputKey)
	if err != nil {
		return fmt.Errorf("mediatool: shaka: allocate command-out: %w", err)
	}
	infoCof, err := storage.NewCommandOut(ctx, outputKey+".media_info")
	if err != nil {
		return fmt.Errorf("mediatool: shaka: allocate media-info command-out: %w", err)
	}

	outDir := filepath.Dir(cof.Path())
	outName := filepath.Base(cof.Path())

	cmd := exec.CommandContext(ctx, s.bin(),
		fmt.Sprintf("in=%s,stream=%s,output=%s", input, streamType, outName),
		"--output_media_info",
	)
	cmd.Dir = outDir

	var ctlCh <-chan proccontrol.ControlMsg
	if ctl != nil {
		ctlCh = ctl.Chan()
	}
	res := proccontrol.Run(ctx, cmd, ctlCh)
	if !res.Success() {
		_ = cof.Discard()
		_ = infoCof.Discard()
		return fmt.Errorf("mediatool: shaka packager failed (outcome=%v exit=%d): %s", res.Outcome, res.ExitCode, string(res.Output))
	}
	if err := cof.FlushToStorage(ctx); err != nil {
		return fmt.Errorf("mediatool: shaka: flush output: %w", err)
	}
	if err := infoCof.FlushToStorage(ctx); err != nil {
		return fmt.Errorf("mediatool: shaka: flush media-info: %w", err)
	}
	return nil
}
