package mediatool

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
)

// VideoStreamInfo is the probed video stream (spec §4.4).
type VideoStreamInfo struct {
	Codec    string
	Width    int
	Height   int
	Bitrate  int64
	Rotation int // degrees, 0 if absent
}

// AudioStreamInfo is the probed audio stream, if present.
type AudioStreamInfo struct {
	Codec      string
	SampleRate int
	Bitrate    int64
	Channels   int
}

// ProbeResult is FFProbe's parsed output.
type ProbeResult struct {
	Video VideoStreamInfo
	Audio *AudioStreamInfo
}

// FFProbe wraps the ffprobe binary, grounded on the teacher's
// internal/processors/video_helpers.go getVideoInfo.
type FFProbe struct {
	Path string
}

func (p *FFProbe) bin() string {
	if p.Path == "" {
		return "ffprobe"
	}
	return p.Path
}

type probeJSON struct {
	Streams []struct {
		CodecType     string `json:"codec_type"`
		CodecName     string `json:"codec_name"`
		Width         int    `json:"width"`
		Height        int    `json:"height"`
		BitRate       string `json:"bit_rate"`
		SampleRate    string `json:"sample_rate"`
		Channels      int    `json:"channels"`
		Tags          struct {
			Rotate string `json:"rotate"`
		} `json:"tags"`
		SideDataList []struct {
			Rotation int `json:"rotation"`
		} `json:"side_data_list"`
	} `json:"streams"`
}

// Probe runs ffprobe with JSON output and parses the first stream of each
// requested type.
func (p *FFProbe) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	cmd := exec.CommandContext(ctx, p.bin(),
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("mediatool: ffprobe failed: %w", err)
	}

	var parsed probeJSON
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("mediatool: parse ffprobe json: %w", err)
	}

	result := &ProbeResult{}
	haveVideo := false
	for _, s := range parsed.Streams {
		switch s.CodecType {
		case "video":
			if haveVideo {
				continue
			}
			haveVideo = true
			result.Video = VideoStreamInfo{
				Codec:  s.CodecName,
				Width:  s.Width,
				Height: s.Height,
			}
			if s.BitRate != "" {
				if br, err := strconv.ParseInt(s.BitRate, 10, 64); err == nil {
					result.Video.Bitrate = br
				}
			}
			if s.Tags.Rotate != "" {
				if deg, err := strconv.Atoi(s.Tags.Rotate); err == nil {
					result.Video.Rotation = deg
				}
			}
			for _, sd := range s.SideDataList {
				if sd.Rotation != 0 {
					result.Video.Rotation = sd.Rotation
				}
			}
		case "audio":
			if result.Audio != nil {
				continue
			}
			audio := AudioStreamInfo{Codec: s.CodecName, Channels: s.Channels}
			if s.SampleRate != "" {
				if sr, err := strconv.Atoi(s.SampleRate); err == nil {
					audio.SampleRate = sr
				}
			}
			if s.BitRate != "" {
				if br, err := strconv.ParseInt(s.BitRate, 10, 64); err == nil {
					audio.Bitrate = br
				}
			}
			result.Audio = &audio
		}
	}
	if !haveVideo {
		return nil, fmt.Errorf("mediatool: ffprobe: no video stream in %s", path)
	}
	return result, nil
}

// NormalizeRotation swaps width/height when rotation is an odd multiple of
// 90 degrees (spec §4.9 step 3). Non-cardinal rotations return an error —
// DESIGN.md Open Question 4 resolves the spec's undecided behavior as
// "reject".
func NormalizeRotation(width, height, rotationDeg int) (w, h int, err error) {
	norm := ((rotationDeg % 360) + 360) % 360
	switch norm {
	case 0, 180:
		return width, height, nil
	case 90, 270:
		return height, width, nil
	default:
		return 0, 0, fmt.Errorf("mediatool: non-cardinal rotation %d degrees is rejected", rotationDeg)
	}
}
