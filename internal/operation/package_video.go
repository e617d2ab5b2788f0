package operation

import (
	"context"
	"fmt"

	"server/internal/blobstore"
	"server/internal/catalog"
	"server/internal/catalog/model"
	"server/internal/mediatool"
)

// VideoReprPlan is either "package the original file as-is" (codec already
// acceptable) or "transcode to a target" (spec §4.5).
type VideoReprPlan struct {
	PackageOriginal bool
	Target          mediatool.ProduceVideo
	CodecName       string // informational: resulting codec name for the catalog row
	OutputKey       string // "dash/<asset>/<codec>/<WxH>.mp4"
}

// AudioReprPlan mirrors VideoReprPlan for the audio stream.
type AudioReprPlan struct {
	PackageOriginal bool
	Target          mediatool.ProduceAudio
	CodecName       string
	OutputKey       string
}

// PackageVideo plans DASH packaging for a video asset: zero, one, or both
// of CreateVideoRepr/CreateAudioRepr, plus a full MPD regeneration against
// the existing representations (so a new rung or the original's manifest
// is consistent with everything previously derived).
type PackageVideo struct {
	AssetID              int64
	SourcePath           string
	CreateVideoRepr      *VideoReprPlan
	CreateAudioRepr      *AudioReprPlan
	ExistingMediaInfoKeys []string
	MpdOutputKey         string
}

// PackageVideoResult carries per-leg outcomes.
type PackageVideoResult struct {
	VideoRepr    *model.VideoRepresentation
	VideoFailed  bool
	VideoErr     error
	AudioRepr    *model.AudioRepresentation
	AudioFailed  bool
	AudioErr     error
	MpdGenerated bool
	MpdErr       error
}

// VideoDeps bundles the adapters and storage SideEffect needs.
type VideoDeps struct {
	Storage  blobstore.Storage
	FFmpeg   *mediatool.FFmpeg
	Shaka    *mediatool.ShakaPackager
	Mpd      *mediatool.MpdGenerator
	Probe    *mediatool.FFProbe
}

// SideEffect produces the requested representations and regenerates the MPD
// manifest over the full representation set. No catalog writes happen here.
func (op PackageVideo) SideEffect(ctx context.Context, deps VideoDeps) PackageVideoResult {
	var result PackageVideoResult
	var newMediaInfoKeys []string

	if op.CreateVideoRepr != nil {
		mediaInfoKey := op.CreateVideoRepr.OutputKey + ".media_info"
		if op.CreateVideoRepr.PackageOriginal {
			if err := deps.Shaka.Run(ctx, deps.Storage, op.SourcePath, mediatool.StreamVideo, op.CreateVideoRepr.OutputKey, nil); err != nil {
				result.VideoFailed = true
				result.VideoErr = fmt.Errorf("operation: package video: shaka original: %w", err)
			}
		} else {
			orch := mediatool.FFmpegIntoShaka{FFmpeg: deps.FFmpeg, Shaka: deps.Shaka}
			out, err := orch.RunFFmpegStage(ctx, mediatool.VideoArgs(op.CreateVideoRepr.Target), op.SourcePath, nil, nil)
			if err != nil {
				result.VideoFailed = true
				result.VideoErr = fmt.Errorf("operation: package video: transcode: %w", err)
			} else {
				defer out.Close()
				if err := orch.RunShakaStage(ctx, deps.Storage, out, mediatool.StreamVideo, op.CreateVideoRepr.OutputKey, nil); err != nil {
					result.VideoFailed = true
					result.VideoErr = fmt.Errorf("operation: package video: shaka transcoded: %w", err)
				}
			}
		}
		if !result.VideoFailed {
			probe, err := deps.Probe.Probe(ctx, op.SourcePath)
			width, height, bitrate := 0, 0, int64(0)
			if err == nil {
				width, height, bitrate = probe.Video.Width, probe.Video.Height, probe.Video.Bitrate
			}
			result.VideoRepr = &model.VideoRepresentation{
				AssetID:      op.AssetID,
				CodecName:    op.CreateVideoRepr.CodecName,
				Width:        int64(width),
				Height:       int64(height),
				Bitrate:      bitrate,
				FileKey:      op.CreateVideoRepr.OutputKey,
				MediaInfoKey: mediaInfoKey,
			}
			newMediaInfoKeys = append(newMediaInfoKeys, mediaInfoKey)
		}
	}

	if op.CreateAudioRepr != nil {
		mediaInfoKey := op.CreateAudioRepr.OutputKey + ".media_info"
		if op.CreateAudioRepr.PackageOriginal {
			if err := deps.Shaka.Run(ctx, deps.Storage, op.SourcePath, mediatool.StreamAudio, op.CreateAudioRepr.OutputKey, nil); err != nil {
				result.AudioFailed = true
				result.AudioErr = fmt.Errorf("operation: package video: shaka audio original: %w", err)
			}
		} else {
			orch := mediatool.FFmpegIntoShaka{FFmpeg: deps.FFmpeg, Shaka: deps.Shaka}
			out, err := orch.RunFFmpegStage(ctx, mediatool.AudioArgs(op.CreateAudioRepr.Target), op.SourcePath, nil, nil)
			if err != nil {
				result.AudioFailed = true
				result.AudioErr = fmt.Errorf("operation: package video: transcode audio: %w", err)
			} else {
				defer out.Close()
				if err := orch.RunShakaStage(ctx, deps.Storage, out, mediatool.StreamAudio, op.CreateAudioRepr.OutputKey, nil); err != nil {
					result.AudioFailed = true
					result.AudioErr = fmt.Errorf("operation: package video: shaka audio transcoded: %w", err)
				}
			}
		}
		if !result.AudioFailed {
			result.AudioRepr = &model.AudioRepresentation{
				AssetID:      op.AssetID,
				CodecName:    op.CreateAudioRepr.CodecName,
				FileKey:      op.CreateAudioRepr.OutputKey,
				MediaInfoKey: mediaInfoKey,
			}
			newMediaInfoKeys = append(newMediaInfoKeys, mediaInfoKey)
		}
	}

	allKeys := append(append([]string{}, op.ExistingMediaInfoKeys...), newMediaInfoKeys...)
	if len(allKeys) > 0 {
		if err := deps.Mpd.Run(ctx, deps.Storage, allKeys, op.MpdOutputKey, nil); err != nil {
			result.MpdErr = fmt.Errorf("operation: package video: mpd generator: %w", err)
		} else {
			result.MpdGenerated = true
		}
	}

	return result
}

// Apply inserts whichever representation rows succeeded and flips has_dash
// true only when the manifest was (re)generated and neither requested leg
// failed (spec §3 Invariant 5). Idempotent: a retried Apply checks
// VideoRepresentationExists/AudioRepresentationExists by file_key first and
// skips an insert already present, so a crash-retried apply doesn't
// double-insert a representation row.
func (op PackageVideo) Apply(ctx context.Context, repo catalog.Repository, hash []byte, result PackageVideoResult) error {
	if result.VideoRepr != nil {
		exists, err := repo.VideoRepresentationExists(ctx, op.AssetID, result.VideoRepr.FileKey)
		if err != nil {
			return fmt.Errorf("operation: package video: check existing video representation: %w", err)
		}
		if !exists {
			if err := repo.InsertVideoRepresentation(ctx, result.VideoRepr); err != nil {
				return fmt.Errorf("operation: package video: insert video representation: %w", err)
			}
		}
	}
	if result.AudioRepr != nil {
		exists, err := repo.AudioRepresentationExists(ctx, op.AssetID, result.AudioRepr.FileKey)
		if err != nil {
			return fmt.Errorf("operation: package video: check existing audio representation: %w", err)
		}
		if !exists {
			if err := repo.InsertAudioRepresentation(ctx, result.AudioRepr); err != nil {
				return fmt.Errorf("operation: package video: insert audio representation: %w", err)
			}
		}
	}

	anyFailed := result.VideoFailed || result.AudioFailed || result.MpdErr != nil
	if anyFailed {
		if err := repo.RecordFailedJob(ctx, model.FailedJobShaka, op.AssetID, hash); err != nil {
			return fmt.Errorf("operation: package video: record failure: %w", err)
		}
		return nil
	}

	if err := repo.ClearFailedJob(ctx, model.FailedJobShaka, op.AssetID); err != nil {
		return fmt.Errorf("operation: package video: clear failure: %w", err)
	}

	if result.MpdGenerated {
		if err := repo.SetHasDash(ctx, op.AssetID, true); err != nil {
			return fmt.Errorf("operation: package video: set has_dash: %w", err)
		}
	}
	return nil
}
