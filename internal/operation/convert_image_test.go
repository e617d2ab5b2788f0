package operation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"server/internal/catalog/model"
	"server/internal/mediatool"
)

type convertImageFakeRepo struct {
	fakeRepo
	existingFormat string
	inserted       []model.ImageRepresentation
}

func (f *convertImageFakeRepo) ImageRepresentationExists(ctx context.Context, assetID int64, format string) (bool, error) {
	return format == f.existingFormat, nil
}

func (f *convertImageFakeRepo) InsertImageRepresentation(ctx context.Context, r *model.ImageRepresentation) error {
	f.inserted = append(f.inserted, *r)
	return nil
}

func TestConvertImageApplyInsertsOnFirstRun(t *testing.T) {
	op := ConvertImage{AssetID: 1, Target: mediatool.ConvertTarget{Format: "avif"}, OutputKey: "k"}
	repo := &convertImageFakeRepo{}

	require.NoError(t, op.Apply(context.Background(), repo, []byte{1}, ConvertImageResult{Width: 10, Height: 20}))
	require.Len(t, repo.inserted, 1)
	assert.Equal(t, []model.FailedJobKind{model.FailedJobImageConvert}, repo.clearedKinds)
}

func TestConvertImageApplyIsIdempotentOnRetry(t *testing.T) {
	op := ConvertImage{AssetID: 1, Target: mediatool.ConvertTarget{Format: "avif"}, OutputKey: "k"}
	repo := &convertImageFakeRepo{existingFormat: "avif"}

	require.NoError(t, op.Apply(context.Background(), repo, []byte{1}, ConvertImageResult{Width: 10, Height: 20}))
	assert.Empty(t, repo.inserted)
	assert.Equal(t, []model.FailedJobKind{model.FailedJobImageConvert}, repo.clearedKinds)
}
