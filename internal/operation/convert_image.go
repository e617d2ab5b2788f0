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

// ConvertImage plans an alternate encoding of an image asset (spec §4.5
// Kinds). output_key's extension is implied by target.Format.
type ConvertImage struct {
	AssetID    int64
	SourcePath string
	Target     mediatool.ConvertTarget
	OutputKey  string
}

// ConvertImageResult carries the produced size (only set when Target.Scale
// was non-nil) and file size written to storage.
type ConvertImageResult struct {
	Width    int
	Height   int
	FileSize int64
	Failed   bool
	Err      error
}

// SideEffect converts the source image and writes it to storage under
// OutputKey.
func (op ConvertImage) SideEffect(ctx context.Context, storage blobstore.Storage, converter *mediatool.ImageConverter) ConvertImageResult {
	src, err := os.ReadFile(op.SourcePath)
	if err != nil {
		return ConvertImageResult{Failed: true, Err: fmt.Errorf("operation: convert image: read source: %w", err)}
	}

	encoded, newSize, err := converter.Convert(src, op.Target)
	if err != nil {
		return ConvertImageResult{Failed: true, Err: fmt.Errorf("operation: convert image: convert: %w", err)}
	}

	w, err := storage.OpenWrite(ctx, op.OutputKey)
	if err != nil {
		return ConvertImageResult{Failed: true, Err: fmt.Errorf("operation: convert image: open write: %w", err)}
	}
	if _, err := w.Write(encoded); err != nil {
		w.Close()
		return ConvertImageResult{Failed: true, Err: fmt.Errorf("operation: convert image: write: %w", err)}
	}
	if err := w.Close(); err != nil {
		return ConvertImageResult{Failed: true, Err: fmt.Errorf("operation: convert image: close: %w", err)}
	}

	res := ConvertImageResult{FileSize: int64(len(encoded))}
	if newSize != nil {
		res.Width, res.Height = newSize.Width, newSize.Height
	}
	return res
}

// Apply inserts the ImageRepresentation row on success, or records a
// FailedJob on failure. Idempotent: a retried Apply for a representation
// already present (e.g. after a crash between SideEffect and Apply on a
// prior attempt) finds the row via ImageRepresentationExists and skips the
// insert instead of erroring or double-inserting (spec §4.5, "applying a
// completed operation twice must produce the same catalog state").
func (op ConvertImage) Apply(ctx context.Context, repo catalog.Repository, hash []byte, result ConvertImageResult) error {
	if result.Failed {
		if err := repo.RecordFailedJob(ctx, model.FailedJobImageConvert, op.AssetID, hash); err != nil {
			return fmt.Errorf("operation: convert image: record failure: %w", err)
		}
		return nil
	}

	exists, err := repo.ImageRepresentationExists(ctx, op.AssetID, op.Target.Format)
	if err != nil {
		return fmt.Errorf("operation: convert image: check existing representation: %w", err)
	}
	if !exists {
		rep := &model.ImageRepresentation{
			AssetID:    op.AssetID,
			Format:     op.Target.Format,
			Width:      result.Width,
			Height:     result.Height,
			FileSize:   result.FileSize,
			StorageKey: op.OutputKey,
		}
		if err := repo.InsertImageRepresentation(ctx, rep); err != nil {
			return fmt.Errorf("operation: convert image: insert representation: %w", err)
		}
	}
	if err := repo.ClearFailedJob(ctx, model.FailedJobImageConvert, op.AssetID); err != nil {
		return fmt.Errorf("operation: convert image: clear failure: %w", err)
	}
	return nil
}
