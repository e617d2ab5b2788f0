package operation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"server/internal/catalog"
	"server/internal/catalog/model"
)

// fakeRepo embeds catalog.Repository (nil) so it satisfies the interface
// while only overriding the methods a given test exercises — panics if a
// test reaches an unimplemented method, which is the point.
type fakeRepo struct {
	catalog.Repository
	flagCalls   []map[string]*bool
	failedKinds []model.FailedJobKind
	clearedKinds []model.FailedJobKind
}

func (f *fakeRepo) SetThumbnailFlags(ctx context.Context, assetID int64, smallWebP, smallAVIF, largeWebP, largeAVIF *bool) error {
	f.flagCalls = append(f.flagCalls, map[string]*bool{
		"small_webp": smallWebP, "small_avif": smallAVIF, "large_webp": largeWebP, "large_avif": largeAVIF,
	})
	return nil
}

func (f *fakeRepo) RecordFailedJob(ctx context.Context, kind model.FailedJobKind, assetID int64, hash []byte) error {
	f.failedKinds = append(f.failedKinds, kind)
	return nil
}

func (f *fakeRepo) ClearFailedJob(ctx context.Context, kind model.FailedJobKind, assetID int64) error {
	f.clearedKinds = append(f.clearedKinds, kind)
	return nil
}

func TestCreateThumbnailApplyAllSucceed(t *testing.T) {
	op := CreateThumbnail{AssetID: 1}
	result := CreateThumbnailResult{Legs: []ThumbnailLeg{
		{Type: model.ThumbnailSmallSquare, Format: "webp"},
		{Type: model.ThumbnailSmallSquare, Format: "avif"},
		{Type: model.ThumbnailLargeOrigAspect, Format: "webp"},
		{Type: model.ThumbnailLargeOrigAspect, Format: "avif"},
	}}

	repo := &fakeRepo{}
	require.NoError(t, op.Apply(context.Background(), repo, []byte{1, 2}, result))

	require.Len(t, repo.flagCalls, 1)
	for _, v := range repo.flagCalls[0] {
		require.NotNil(t, v)
		assert.True(t, *v)
	}
	assert.Empty(t, repo.failedKinds)
	assert.Equal(t, []model.FailedJobKind{model.FailedJobThumbnail}, repo.clearedKinds)
}

func TestCreateThumbnailApplyOneLegFails(t *testing.T) {
	op := CreateThumbnail{AssetID: 1}
	result := CreateThumbnailResult{Legs: []ThumbnailLeg{
		{Type: model.ThumbnailSmallSquare, Format: "webp"},
		{Type: model.ThumbnailSmallSquare, Format: "avif", Failed: true},
		{Type: model.ThumbnailLargeOrigAspect, Format: "webp"},
		{Type: model.ThumbnailLargeOrigAspect, Format: "avif"},
	}}

	repo := &fakeRepo{}
	require.NoError(t, op.Apply(context.Background(), repo, []byte{1, 2}, result))

	flags := repo.flagCalls[0]
	assert.False(t, *flags["small_webp"])
	assert.False(t, *flags["small_avif"])
	assert.True(t, *flags["large_webp"])
	assert.True(t, *flags["large_avif"])
	assert.Equal(t, []model.FailedJobKind{model.FailedJobThumbnail}, repo.failedKinds)
	assert.Empty(t, repo.clearedKinds)
}
