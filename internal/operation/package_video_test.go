package operation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"server/internal/catalog/model"
)

type packageVideoFakeRepo struct {
	fakeRepo
	existingVideoKey string
	existingAudioKey string
	insertedVideo    []model.VideoRepresentation
	insertedAudio    []model.AudioRepresentation
	hasDashCalls     []bool
}

func (f *packageVideoFakeRepo) VideoRepresentationExists(ctx context.Context, assetID int64, fileKey string) (bool, error) {
	return fileKey == f.existingVideoKey, nil
}

func (f *packageVideoFakeRepo) AudioRepresentationExists(ctx context.Context, assetID int64, fileKey string) (bool, error) {
	return fileKey == f.existingAudioKey, nil
}

func (f *packageVideoFakeRepo) InsertVideoRepresentation(ctx context.Context, r *model.VideoRepresentation) error {
	f.insertedVideo = append(f.insertedVideo, *r)
	return nil
}

func (f *packageVideoFakeRepo) InsertAudioRepresentation(ctx context.Context, r *model.AudioRepresentation) error {
	f.insertedAudio = append(f.insertedAudio, *r)
	return nil
}

func (f *packageVideoFakeRepo) SetHasDash(ctx context.Context, assetID int64, hasDash bool) error {
	f.hasDashCalls = append(f.hasDashCalls, hasDash)
	return nil
}

func TestPackageVideoApplyInsertsOnFirstRun(t *testing.T) {
	op := PackageVideo{AssetID: 1}
	result := PackageVideoResult{
		VideoRepr:    &model.VideoRepresentation{AssetID: 1, FileKey: "dash/1/h264/1080p.mp4"},
		AudioRepr:    &model.AudioRepresentation{AssetID: 1, FileKey: "dash/1/aac/audio.mp4"},
		MpdGenerated: true,
	}
	repo := &packageVideoFakeRepo{}

	require.NoError(t, op.Apply(context.Background(), repo, []byte{1}, result))
	require.Len(t, repo.insertedVideo, 1)
	require.Len(t, repo.insertedAudio, 1)
	assert.Equal(t, []bool{true}, repo.hasDashCalls)
}

func TestPackageVideoApplyIsIdempotentOnRetry(t *testing.T) {
	op := PackageVideo{AssetID: 1}
	result := PackageVideoResult{
		VideoRepr:    &model.VideoRepresentation{AssetID: 1, FileKey: "dash/1/h264/1080p.mp4"},
		AudioRepr:    &model.AudioRepresentation{AssetID: 1, FileKey: "dash/1/aac/audio.mp4"},
		MpdGenerated: true,
	}
	repo := &packageVideoFakeRepo{
		existingVideoKey: "dash/1/h264/1080p.mp4",
		existingAudioKey: "dash/1/aac/audio.mp4",
	}

	require.NoError(t, op.Apply(context.Background(), repo, []byte{1}, result))
	assert.Empty(t, repo.insertedVideo)
	assert.Empty(t, repo.insertedAudio)
	assert.Equal(t, []bool{true}, repo.hasDashCalls)
}
