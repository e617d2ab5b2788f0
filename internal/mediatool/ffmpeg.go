package mediatool

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"server/internal/proccontrol"
)

// VideoCodec selects the target video codec family for a Transcode.
type VideoCodec string

const (
	VideoCodecAVC VideoCodec = "avc"
	VideoCodecAV1 VideoCodec = "av1"
)

// AudioCodec selects the target audio codec for a Transcode (spec §4.4).
// Naming follows the straightforward reading of spec.md §4.4, not the
// original source's inverted AAC/OPUS mapping — see DESIGN.md Open
// Question 2.
type AudioCodec string

const (
	AudioCodecAAC  AudioCodec = "aac"
	AudioCodecOpus AudioCodec = "opus"
	AudioCodecFLAC AudioCodec = "flac"
	AudioCodecMP3  AudioCodec = "mp3"
)

// ProduceVideo is either Copy or Transcode with codec-specific parameters.
type ProduceVideo struct {
	Copy bool

	Codec       VideoCodec
	CRF         int
	Preset      string
	Tune        string // AVC only, optional
	MaxBitrateK int    // optional, 0 means unset
	FastDecode  bool   // AV1 only

	// ScaleWidth/ScaleHeight: exactly one non-zero selects
	// "-vf scale=W:-2" or "-vf scale=-2:H"; both zero means no scale filter.
	ScaleWidth  int
	ScaleHeight int
}

// ProduceAudio is either Copy or Transcode to one of the four codecs.
type ProduceAudio struct {
	Copy  bool
	Codec AudioCodec
}

// FFmpeg wraps the ffmpeg binary; RunLocal takes the pre-input and
// post-input flags per call and runs the binary under Process Control.
type FFmpeg struct {
	Path string
}

func (f *FFmpeg) bin() string {
	if f.Path == "" {
		return "ffmpeg"
	}
	return f.Path
}

// VideoArgs composes the "-c:v ..." flag sequence for ProduceVideo, per
// spec.md §4.4.
func VideoArgs(pv ProduceVideo) []string {
	if pv.Copy {
		return []string{"-c:v", "copy"}
	}

	var args []string
	switch pv.Codec {
	case VideoCodecAVC:
		args = append(args, "-c:v", "libx264", "-crf", strconv.Itoa(pv.CRF), "-preset", pv.Preset)
		if pv.Tune != "" {
			args = append(args, "-tune", pv.Tune)
		}
		if pv.MaxBitrateK > 0 {
			args = append(args, "-maxrate", fmt.Sprintf("%dk", pv.MaxBitrateK))
		}
	case VideoCodecAV1:
		args = append(args, "-c:v", "libsvtav1", "-crf", strconv.Itoa(pv.CRF))
		if pv.Preset != "" {
			args = append(args, "-preset", pv.Preset)
		}
		if pv.MaxBitrateK > 0 {
			args = append(args, "-maxrate", fmt.Sprintf("%dk", pv.MaxBitrateK))
		}
		if pv.FastDecode {
			args = append(args, "-svtav1-params", "fast-decode=1")
		}
	}

	if pv.ScaleWidth > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:-2", pv.ScaleWidth))
	} else if pv.ScaleHeight > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=-2:%d", pv.ScaleHeight))
	}
	return args
}

// AudioArgs composes the "-c:a ..." flag sequence for ProduceAudio.
func AudioArgs(pa ProduceAudio) []string {
	if pa.Copy {
		return []string{"-c:a", "copy"}
	}
	var codec string
	switch pa.Codec {
	case AudioCodecOpus:
		codec = "libopus"
	case AudioCodecAAC:
		codec = "aac"
	case AudioCodecFLAC:
		codec = "flac"
	case AudioCodecMP3:
		codec = "libmp3lame"
	}
	return []string{"-c:a", codec}
}

// RunLocal invokes ffmpeg: "-nostdin -y -hide_banner <pre> -i <input> <post> <output>"
// (spec §6, media-tool invocation contracts).
func (f *FFmpeg) RunLocal(ctx context.Context, pre []string, input string, post []string, output string, ctl *proccontrol.Handle) error {
	args := []string{"-nostdin", "-y", "-hide_banner"}
	args = append(args, pre...)
	args = append(args, "-i", input)
	args = append(args, post...)
	args = append(args, output)

	cmd := exec.CommandContext(ctx, f.bin(), args...)
	var ctlCh <-chan proccontrol.ControlMsg
	if ctl != nil {
		ctlCh = ctl.Chan()
	}
	res := proccontrol.Run(ctx, cmd, ctlCh)
	if res.Outcome == proccontrol.TerminatedBySignal {
		return fmt.Errorf("mediatool: ffmpeg terminated by signal %s: %w", res.Signal, res.Err)
	}
	if !res.Success() {
		return fmt.Errorf("mediatool: ffmpeg exited %d: %s", res.ExitCode, string(res.Output))
	}
	return nil
}
