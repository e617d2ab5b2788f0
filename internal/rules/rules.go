// Package rules is the pure function from catalog state to the set of
// pending derivation operations for an asset (spec §4.6). It is the only
// component that decides *what* work is needed; the Scheduler only routes
// what this package plans.
package rules

import (
	"context"
	"fmt"

	"server/internal/catalog"
	"server/internal/catalog/model"
	"server/internal/lumiconfig"
	"server/internal/mediatool"
	"server/internal/operation"
)

// PlannedOperation is a tagged union of the three operation kinds the rule
// engine plans; CreateAlbumThumbnail is not among them (album covers are
// requested through Scheduler.RequestAlbumThumbnail). Exactly one field is
// non-nil.
type PlannedOperation struct {
	Thumbnail    *operation.CreateThumbnail
	ConvertImage *operation.ConvertImage
	PackageVideo *operation.PackageVideo
}

// PlanForAsset computes every operation currently pending for one asset,
// checking the FailedJob table for the asset's current hash on every rule so
// a previously-failed derivation is not re-planned until the file changes
// (spec §4.6, closing sentence).
func PlanForAsset(ctx context.Context, repo catalog.Repository, cfg *lumiconfig.Config, asset model.Asset) ([]PlannedOperation, error) {
	var plans []PlannedOperation

	thumbPlan, err := planThumbnail(ctx, repo, asset)
	if err != nil {
		return nil, err
	}
	if thumbPlan != nil {
		plans = append(plans, PlannedOperation{Thumbnail: thumbPlan})
	}

	if asset.Kind == model.AssetKindImage {
		convPlans, err := planImageConversion(ctx, repo, cfg, asset)
		if err != nil {
			return nil, err
		}
		plans = append(plans, convPlans...)
	}

	if asset.Kind == model.AssetKindVideo {
		videoPlan, err := planVideoPackaging(ctx, repo, cfg, asset)
		if err != nil {
			return nil, err
		}
		if videoPlan != nil {
			plans = append(plans, PlannedOperation{PackageVideo: videoPlan})
		}
	}

	return plans, nil
}

func planThumbnail(ctx context.Context, repo catalog.Repository, asset model.Asset) (*operation.CreateThumbnail, error) {
	if asset.ThumbSmallSquareWebP && asset.ThumbSmallSquareAVIF &&
		asset.ThumbLargeOrigAspectWebP && asset.ThumbLargeOrigAspectAVIF {
		return nil, nil
	}
	failed, err := repo.FailedJobExists(ctx, model.FailedJobThumbnail, asset.ID, asset.Hash)
	if err != nil {
		return nil, fmt.Errorf("rules: thumbnail failed-job check for asset %d: %w", asset.ID, err)
	}
	if failed {
		return nil, nil
	}
	path, err := repo.AssetPathOnDisk(ctx, asset.ID)
	if err != nil {
		return nil, fmt.Errorf("rules: asset path for %d: %w", asset.ID, err)
	}
	return &operation.CreateThumbnail{AssetID: asset.ID, SourcePath: path, IsVideo: asset.IsVideo()}, nil
}

// imageConversionTargets is the fixed set of alternate image encodings every
// image asset is derived into: AVIF at quality 60 and JPEG at quality 85.
// The set is not read from lumiconfig.Config.
func imageConversionTargets() []mediatool.ConvertTarget {
	return []mediatool.ConvertTarget{
		{Format: "avif", Quality: 60, Compression: mediatool.CompressionAV1},
		{Format: "jpeg", Quality: 85},
	}
}

func planImageConversion(ctx context.Context, repo catalog.Repository, cfg *lumiconfig.Config, asset model.Asset) ([]PlannedOperation, error) {
	failed, err := repo.FailedJobExists(ctx, model.FailedJobImageConvert, asset.ID, asset.Hash)
	if err != nil {
		return nil, fmt.Errorf("rules: image-convert failed-job check for asset %d: %w", asset.ID, err)
	}
	if failed {
		return nil, nil
	}

	var plans []PlannedOperation
	for _, target := range imageConversionTargets() {
		exists, err := repo.ImageRepresentationExists(ctx, asset.ID, target.Format)
		if err != nil {
			return nil, fmt.Errorf("rules: image representation exists for asset %d: %w", asset.ID, err)
		}
		if exists {
			continue
		}
		path, err := repo.AssetPathOnDisk(ctx, asset.ID)
		if err != nil {
			return nil, fmt.Errorf("rules: asset path for %d: %w", asset.ID, err)
		}
		outputKey := fmt.Sprintf("imagerepr/%d/%s.%s", asset.ID, target.Format, target.Format)
		plans = append(plans, PlannedOperation{ConvertImage: &operation.ConvertImage{
			AssetID: asset.ID, SourcePath: path, Target: target, OutputKey: outputKey,
		}})
	}
	return plans, nil
}

// planVideoPackaging implements the three-tier precedence of spec §4.6:
//  1. acceptable original, no DASH → PackageOriginalFile for both streams.
//  2. no acceptable representation at all → transcode-to-default.
//  3. missing specific ladder rungs → transcode the missing rungs, highest
//     first.
//
// This function itself only ever resolves one asset's own catalog rows; the
// "globally" part of spec §4.6 (re-evaluating as the acceptable-codec set or
// ladder configuration changes, not just on indexing) comes from the caller:
// scheduler.Scheduler.globalSweep periodically calls VideosMissingDash,
// VideosWithoutAcceptableRepresentation, and VideosMissingLadderRungs to find
// candidate assets and re-runs each of them through this same function.
func planVideoPackaging(ctx context.Context, repo catalog.Repository, cfg *lumiconfig.Config, asset model.Asset) (*operation.PackageVideo, error) {
	failed, err := repo.FailedJobExists(ctx, model.FailedJobShaka, asset.ID, asset.Hash)
	if err != nil {
		return nil, fmt.Errorf("rules: shaka failed-job check for asset %d: %w", asset.ID, err)
	}
	if failed {
		return nil, nil
	}

	videoAcceptable, audioAcceptable, err := repo.AcceptableCodecs(ctx)
	if err != nil {
		return nil, fmt.Errorf("rules: acceptable codecs: %w", err)
	}

	videoReps, err := repo.VideoRepresentationsForAsset(ctx, asset.ID)
	if err != nil {
		return nil, fmt.Errorf("rules: video representations for asset %d: %w", asset.ID, err)
	}
	audioReps, err := repo.AudioRepresentationsForAsset(ctx, asset.ID)
	if err != nil {
		return nil, fmt.Errorf("rules: audio representations for asset %d: %w", asset.ID, err)
	}

	path, err := repo.AssetPathOnDisk(ctx, asset.ID)
	if err != nil {
		return nil, fmt.Errorf("rules: asset path for %d: %w", asset.ID, err)
	}

	existingMediaInfoKeys := make([]string, 0, len(videoReps)+len(audioReps))
	for _, r := range videoReps {
		existingMediaInfoKeys = append(existingMediaInfoKeys, r.MediaInfoKey)
	}
	for _, r := range audioReps {
		existingMediaInfoKeys = append(existingMediaInfoKeys, r.MediaInfoKey)
	}

	mpdKey := fmt.Sprintf("dash/%d/stream.mpd", asset.ID)

	// Tier 1: acceptable original, not yet packaged at all.
	if !asset.HasDash && contains(videoAcceptable, asset.VideoCodec) && contains(audioAcceptable, asset.AudioCodec) &&
		len(videoReps) == 0 && len(audioReps) == 0 {
		return &operation.PackageVideo{
			AssetID:    asset.ID,
			SourcePath: path,
			CreateVideoRepr: &operation.VideoReprPlan{
				PackageOriginal: true, CodecName: asset.VideoCodec,
				OutputKey: fmt.Sprintf("dash/%d/%s/%dx%d.mp4", asset.ID, asset.VideoCodec, asset.Width, asset.Height),
			},
			CreateAudioRepr: &operation.AudioReprPlan{
				PackageOriginal: true, CodecName: asset.AudioCodec,
				OutputKey: fmt.Sprintf("dash/%d/audio/%dx%d.mp4", asset.ID, asset.Width, asset.Height),
			},
			ExistingMediaInfoKeys: existingMediaInfoKeys,
			MpdOutputKey:          mpdKey,
		}, nil
	}

	// Tier 2: no acceptable representation at all → default transcode.
	hasAcceptableVideoRep := false
	for _, r := range videoReps {
		if contains(videoAcceptable, r.CodecName) {
			hasAcceptableVideoRep = true
			break
		}
	}
	if !hasAcceptableVideoRep && !contains(videoAcceptable, asset.VideoCodec) {
		var audioRepr *operation.AudioReprPlan
		if contains([]string{"aac", "opus", "mp3"}, asset.AudioCodec) {
			audioRepr = &operation.AudioReprPlan{
				PackageOriginal: true, CodecName: asset.AudioCodec,
				OutputKey: fmt.Sprintf("dash/%d/audio/default.mp4", asset.ID),
			}
		} else {
			audioRepr = &operation.AudioReprPlan{
				Target:    mediatool.ProduceAudio{Codec: mediatool.AudioCodecOpus},
				CodecName: "opus",
				OutputKey: fmt.Sprintf("dash/%d/audio/default.mp4", asset.ID),
			}
		}
		return &operation.PackageVideo{
			AssetID:    asset.ID,
			SourcePath: path,
			CreateVideoRepr: &operation.VideoReprPlan{
				Target: mediatool.ProduceVideo{
					Codec: mediatool.VideoCodecAV1, CRF: defaultAV1CRF, Preset: "8",
				},
				CodecName: "av1",
				OutputKey: fmt.Sprintf("dash/%d/av1/default.mp4", asset.ID),
			},
			CreateAudioRepr:       audioRepr,
			ExistingMediaInfoKeys: existingMediaInfoKeys,
			MpdOutputKey:          mpdKey,
		}, nil
	}

	// Tier 3: ladder rungs missing, highest first.
	present := make(map[string]bool, len(videoReps))
	for _, r := range videoReps {
		present[r.CodecName] = true
	}
	for _, rung := range cfg.Ladder {
		if present[rung.Name] {
			continue
		}
		return &operation.PackageVideo{
			AssetID:    asset.ID,
			SourcePath: path,
			CreateVideoRepr: &operation.VideoReprPlan{
				Target: mediatool.ProduceVideo{
					Codec: mediatool.VideoCodecAVC, CRF: rung.CRF, Preset: "medium", ScaleHeight: rung.MaxHeight,
				},
				CodecName: rung.Name,
				OutputKey: fmt.Sprintf("dash/%d/%s/rung.mp4", asset.ID, rung.Name),
			},
			ExistingMediaInfoKeys: existingMediaInfoKeys,
			MpdOutputKey:          mpdKey,
		}, nil
	}

	return nil, nil
}

const defaultAV1CRF = 30

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
