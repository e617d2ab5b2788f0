// Package operation implements the three pure steps separated for each
// derivation kind (spec §4.5): plan (computed by the rule engine), side
// effect (heavy work, no catalog writes), and apply (catalog commit through
// catalog.Repository, idempotent; the several repository calls of one Apply
// do not share a transaction). Grounded in structure on the original's
// catalog/operation/*.rs files and in subprocess/bimg idiom on the teacher's
// internal/processors package.
package operation

import (
	"context"
	"fmt"
	"os"

	"server/internal/blobstore"
	"server/internal/catalog"
	"server/internal/catalog/model"
	"server/internal/mediatool"
)

// CreateThumbnail is the plan for deriving both thumbnail types in both
// formats for an asset (spec §4.5, Kinds).
type CreateThumbnail struct {
	AssetID    int64
	SourcePath string
	IsVideo    bool
}

// thumbSpec pairs a thumbnail type with its output dimension and blob key.
type thumbSpec struct {
	Type model.ThumbnailType
	Dim  mediatool.OutDimension
	Key  func(assetID int64, format string) string
}

func thumbSpecs() []thumbSpec {
	return []thumbSpec{
		{
			Type: model.ThumbnailSmallSquare,
			Dim:  mediatool.OutDimension{Width: 200, Height: 200, Crop: true},
			Key:  func(id int64, format string) string { return fmt.Sprintf("thumb/%d/small.%s", id, format) },
		},
		{
			Type: model.ThumbnailLargeOrigAspect,
			Dim:  mediatool.OutDimension{Width: 400, Crop: false},
			Key:  func(id int64, format string) string { return fmt.Sprintf("thumb/%d/large.%s", id, format) },
		},
	}
}

// ThumbnailLeg is the outcome of producing one (type, format) thumbnail.
type ThumbnailLeg struct {
	Type   model.ThumbnailType
	Format string
	Failed bool
	Err    error
}

// CreateThumbnailResult is the side-effect output: per-leg success/failure,
// so Apply can set each thumbnail type's webp/avif flag pair, true only when
// both of that type's legs succeeded (spec §3 Invariant 3, Testable
// Property 2).
type CreateThumbnailResult struct {
	Legs []ThumbnailLeg
}

// SideEffect generates both thumbnail types in both formats. A video asset's
// source is first reduced to a single still frame via ffmpeg.
func (op CreateThumbnail) SideEffect(ctx context.Context, storage blobstore.Storage, thumbnailer *mediatool.Thumbnailer) (CreateThumbnailResult, error) {
	srcPath := op.SourcePath
	if op.IsVideo {
		snap, err := os.CreateTemp("", "thumb-src-*.jpg")
		if err != nil {
			return CreateThumbnailResult{}, fmt.Errorf("operation: create thumbnail: snapshot temp file: %w", err)
		}
		snapPath := snap.Name()
		snap.Close()
		defer os.Remove(snapPath)
		if err := thumbnailer.VideoSnapshot(ctx, op.SourcePath, snapPath, nil); err != nil {
			return CreateThumbnailResult{}, fmt.Errorf("operation: create thumbnail: video snapshot: %w", err)
		}
		srcPath = snapPath
	}

	src, err := os.ReadFile(srcPath)
	if err != nil {
		return CreateThumbnailResult{}, fmt.Errorf("operation: create thumbnail: read source: %w", err)
	}

	var legs []ThumbnailLeg
	for _, spec := range thumbSpecs() {
		_, encoded, err := thumbnailer.GenerateThumbnail(src, spec.Dim, []mediatool.ThumbnailOutput{
			{Format: "webp", Quality: 80},
			{Format: "avif", Quality: 70},
		})
		if err != nil {
			legs = append(legs,
				ThumbnailLeg{Type: spec.Type, Format: "webp", Failed: true, Err: err},
				ThumbnailLeg{Type: spec.Type, Format: "avif", Failed: true, Err: err},
			)
			continue
		}
		for format, buf := range encoded {
			key := spec.Key(op.AssetID, format)
			w, err := storage.OpenWrite(ctx, key)
			if err != nil {
				legs = append(legs, ThumbnailLeg{Type: spec.Type, Format: format, Failed: true, Err: err})
				continue
			}
			if _, err := w.Write(buf); err != nil {
				w.Close()
				legs = append(legs, ThumbnailLeg{Type: spec.Type, Format: format, Failed: true, Err: err})
				continue
			}
			if err := w.Close(); err != nil {
				legs = append(legs, ThumbnailLeg{Type: spec.Type, Format: format, Failed: true, Err: err})
				continue
			}
			legs = append(legs, ThumbnailLeg{Type: spec.Type, Format: format})
		}
	}
	return CreateThumbnailResult{Legs: legs}, nil
}

// Apply flips a type's webp+avif flags as one atomic pair — both true only if
// both legs of that thumbnail type succeeded, otherwise both false — and
// records a FailedThumbnailJob if any leg failed (spec §8 Testable Property
// 2: "after a failure of either leg, neither is true"). Idempotent:
// re-applying the same result sets the same flags again.
func (op CreateThumbnail) Apply(ctx context.Context, repo catalog.Repository, hash []byte, result CreateThumbnailResult) error {
	anyFailed := false
	type pairState struct {
		seen bool
		ok   bool
	}
	pairs := map[model.ThumbnailType]*pairState{}
	for _, leg := range result.Legs {
		p, ok := pairs[leg.Type]
		if !ok {
			p = &pairState{ok: true}
			pairs[leg.Type] = p
		}
		p.seen = true
		if leg.Failed {
			p.ok = false
			anyFailed = true
		}
	}

	get := func(typ model.ThumbnailType) *bool {
		p, ok := pairs[typ]
		if !ok || !p.seen {
			return nil
		}
		v := p.ok
		return &v
	}

	smallSquare := get(model.ThumbnailSmallSquare)
	largeOrigAspect := get(model.ThumbnailLargeOrigAspect)
	if err := repo.SetThumbnailFlags(ctx, op.AssetID,
		smallSquare, smallSquare,
		largeOrigAspect, largeOrigAspect,
	); err != nil {
		return fmt.Errorf("operation: create thumbnail: apply flags: %w", err)
	}

	if anyFailed {
		if err := repo.RecordFailedJob(ctx, model.FailedJobThumbnail, op.AssetID, hash); err != nil {
			return fmt.Errorf("operation: create thumbnail: record failure: %w", err)
		}
	} else {
		if err := repo.ClearFailedJob(ctx, model.FailedJobThumbnail, op.AssetID); err != nil {
			return fmt.Errorf("operation: create thumbnail: clear failure: %w", err)
		}
	}
	return nil
}
