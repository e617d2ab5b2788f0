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

// CreateAlbumThumbnail plans a cover thumbnail for an album pinned to a
// specific member asset (spec §4.5 Kinds).
type CreateAlbumThumbnail struct {
	AlbumID    int64
	AssetID    int64
	SourcePath string
	Size       mediatool.OutDimension
	OutputKey  string // "albumthumb/<album>/<asset>.webp"
}

// CreateAlbumThumbnailResult is the side-effect output.
type CreateAlbumThumbnailResult struct {
	Failed bool
	Err    error
}

// SideEffect produces a single WEBP cover thumbnail.
func (op CreateAlbumThumbnail) SideEffect(ctx context.Context, storage blobstore.Storage, thumbnailer *mediatool.Thumbnailer) CreateAlbumThumbnailResult {
	src, err := os.ReadFile(op.SourcePath)
	if err != nil {
		return CreateAlbumThumbnailResult{Failed: true, Err: fmt.Errorf("operation: create album thumbnail: read source: %w", err)}
	}
	_, encoded, err := thumbnailer.GenerateThumbnail(src, op.Size, []mediatool.ThumbnailOutput{{Format: "webp", Quality: 80}})
	if err != nil {
		return CreateAlbumThumbnailResult{Failed: true, Err: fmt.Errorf("operation: create album thumbnail: generate: %w", err)}
	}
	w, err := storage.OpenWrite(ctx, op.OutputKey)
	if err != nil {
		return CreateAlbumThumbnailResult{Failed: true, Err: fmt.Errorf("operation: create album thumbnail: open write: %w", err)}
	}
	if _, err := w.Write(encoded["webp"]); err != nil {
		w.Close()
		return CreateAlbumThumbnailResult{Failed: true, Err: fmt.Errorf("operation: create album thumbnail: write: %w", err)}
	}
	if err := w.Close(); err != nil {
		return CreateAlbumThumbnailResult{Failed: true, Err: fmt.Errorf("operation: create album thumbnail: close: %w", err)}
	}
	return CreateAlbumThumbnailResult{}
}

// Apply sets the album's thumbnail row on success. Album thumbnail failures
// are not tracked in FailedJob (the spec's per-kind FailedJob tables are
// keyed by derivation kind and asset content hash). A failed album cover is
// not retried automatically: the rule engine never plans album thumbnails,
// so only a new Scheduler.RequestAlbumThumbnail call schedules it again.
func (op CreateAlbumThumbnail) Apply(ctx context.Context, repo catalog.Repository, result CreateAlbumThumbnailResult) error {
	if result.Failed {
		return nil
	}
	t := &model.AlbumThumbnail{
		AlbumID:    op.AlbumID,
		AssetID:    op.AssetID,
		Format:     "webp",
		StorageKey: op.OutputKey,
	}
	if err := repo.SetAlbumThumbnail(ctx, t); err != nil {
		return fmt.Errorf("operation: create album thumbnail: apply: %w", err)
	}
	return nil
}
