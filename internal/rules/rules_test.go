package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"server/internal/catalog"
	"server/internal/catalog/model"
	"server/internal/lumiconfig"
)

// fakeRepo supplies canned answers for the handful of Repository methods the
// rule engine calls, embedding catalog.Repository (nil) to satisfy the rest.
type fakeRepo struct {
	catalog.Repository

	path               string
	failedThumb        bool
	failedConvert      bool
	failedShaka        bool
	imageReprExists    map[string]bool
	acceptableVideo    []string
	acceptableAudio    []string
	videoReps          []model.VideoRepresentation
	audioReps          []model.AudioRepresentation
}

func (f *fakeRepo) AssetPathOnDisk(ctx context.Context, id int64) (string, error) {
	return f.path, nil
}

func (f *fakeRepo) FailedJobExists(ctx context.Context, kind model.FailedJobKind, assetID int64, hash []byte) (bool, error) {
	switch kind {
	case model.FailedJobThumbnail:
		return f.failedThumb, nil
	case model.FailedJobImageConvert:
		return f.failedConvert, nil
	case model.FailedJobShaka:
		return f.failedShaka, nil
	}
	return false, nil
}

func (f *fakeRepo) ImageRepresentationExists(ctx context.Context, assetID int64, format string) (bool, error) {
	return f.imageReprExists[format], nil
}

func (f *fakeRepo) AcceptableCodecs(ctx context.Context) ([]string, []string, error) {
	return f.acceptableVideo, f.acceptableAudio, nil
}

func (f *fakeRepo) VideoRepresentationsForAsset(ctx context.Context, assetID int64) ([]model.VideoRepresentation, error) {
	return f.videoReps, nil
}

func (f *fakeRepo) AudioRepresentationsForAsset(ctx context.Context, assetID int64) ([]model.AudioRepresentation, error) {
	return f.audioReps, nil
}

func testConfig() *lumiconfig.Config {
	return &lumiconfig.Config{
		Ladder: []lumiconfig.LadderRung{
			{Name: "1080p", MaxHeight: 1080, CRF: 23},
			{Name: "720p", MaxHeight: 720, CRF: 25},
		},
	}
}

func TestPlanThumbnailSkippedWhenAllFlagsSet(t *testing.T) {
	repo := &fakeRepo{path: "/roots/a.jpg", acceptableVideo: []string{}, acceptableAudio: []string{}}
	asset := model.Asset{
		ID: 1, Kind: model.AssetKindImage,
		ThumbSmallSquareWebP: true, ThumbSmallSquareAVIF: true,
		ThumbLargeOrigAspectWebP: true, ThumbLargeOrigAspectAVIF: true,
	}
	plans, err := PlanForAsset(context.Background(), repo, testConfig(), asset)
	require.NoError(t, err)
	for _, p := range plans {
		assert.Nil(t, p.Thumbnail)
	}
}

func TestPlanThumbnailSkippedOnRecordedFailure(t *testing.T) {
	repo := &fakeRepo{path: "/roots/a.jpg", failedThumb: true}
	asset := model.Asset{ID: 1, Kind: model.AssetKindImage}
	plans, err := PlanForAsset(context.Background(), repo, testConfig(), asset)
	require.NoError(t, err)
	for _, p := range plans {
		assert.Nil(t, p.Thumbnail)
	}
}

func TestPlanImageConversionSkipsExistingFormats(t *testing.T) {
	repo := &fakeRepo{
		path:            "/roots/a.jpg",
		imageReprExists: map[string]bool{"avif": true},
	}
	asset := model.Asset{
		ID: 1, Kind: model.AssetKindImage,
		ThumbSmallSquareWebP: true, ThumbSmallSquareAVIF: true,
		ThumbLargeOrigAspectWebP: true, ThumbLargeOrigAspectAVIF: true,
	}
	plans, err := PlanForAsset(context.Background(), repo, testConfig(), asset)
	require.NoError(t, err)

	var formats []string
	for _, p := range plans {
		if p.ConvertImage != nil {
			formats = append(formats, p.ConvertImage.Target.Format)
		}
	}
	assert.Equal(t, []string{"jpeg"}, formats)
}

func TestPlanVideoPackagingTierOnePackagesOriginal(t *testing.T) {
	repo := &fakeRepo{
		path:            "/roots/v.mp4",
		acceptableVideo: []string{"h264"},
		acceptableAudio: []string{"aac"},
	}
	asset := model.Asset{
		ID: 2, Kind: model.AssetKindVideo,
		ThumbSmallSquareWebP: true, ThumbSmallSquareAVIF: true,
		ThumbLargeOrigAspectWebP: true, ThumbLargeOrigAspectAVIF: true,
		VideoCodec: "h264", AudioCodec: "aac", HasDash: false,
	}
	plans, err := PlanForAsset(context.Background(), repo, testConfig(), asset)
	require.NoError(t, err)

	var pv *PlannedOperation
	for i := range plans {
		if plans[i].PackageVideo != nil {
			pv = &plans[i]
		}
	}
	require.NotNil(t, pv)
	assert.True(t, pv.PackageVideo.CreateVideoRepr.PackageOriginal)
	assert.True(t, pv.PackageVideo.CreateAudioRepr.PackageOriginal)
}

func TestPlanVideoPackagingTierTwoTranscodesUnacceptable(t *testing.T) {
	repo := &fakeRepo{
		path:            "/roots/v.mp4",
		acceptableVideo: []string{"h264"},
		acceptableAudio: []string{"aac"},
	}
	asset := model.Asset{
		ID: 2, Kind: model.AssetKindVideo,
		ThumbSmallSquareWebP: true, ThumbSmallSquareAVIF: true,
		ThumbLargeOrigAspectWebP: true, ThumbLargeOrigAspectAVIF: true,
		VideoCodec: "mpeg2", AudioCodec: "pcm", HasDash: false,
	}
	plans, err := PlanForAsset(context.Background(), repo, testConfig(), asset)
	require.NoError(t, err)

	var pv *PlannedOperation
	for i := range plans {
		if plans[i].PackageVideo != nil {
			pv = &plans[i]
		}
	}
	require.NotNil(t, pv)
	assert.False(t, pv.PackageVideo.CreateVideoRepr.PackageOriginal)
	assert.Equal(t, "av1", pv.PackageVideo.CreateVideoRepr.CodecName)
	assert.False(t, pv.PackageVideo.CreateAudioRepr.PackageOriginal)
	assert.Equal(t, "opus", pv.PackageVideo.CreateAudioRepr.CodecName)
}

func TestPlanVideoPackagingTierThreeMissingRungHighestFirst(t *testing.T) {
	repo := &fakeRepo{
		path:            "/roots/v.mp4",
		acceptableVideo: []string{"h264"},
		acceptableAudio: []string{"aac"},
		videoReps: []model.VideoRepresentation{
			{CodecName: "h264"}, // satisfies tier 2's acceptable-rep check
		},
	}
	asset := model.Asset{
		ID: 2, Kind: model.AssetKindVideo,
		ThumbSmallSquareWebP: true, ThumbSmallSquareAVIF: true,
		ThumbLargeOrigAspectWebP: true, ThumbLargeOrigAspectAVIF: true,
		VideoCodec: "h264", AudioCodec: "aac", HasDash: true,
	}
	plans, err := PlanForAsset(context.Background(), repo, testConfig(), asset)
	require.NoError(t, err)

	var pv *PlannedOperation
	for i := range plans {
		if plans[i].PackageVideo != nil {
			pv = &plans[i]
		}
	}
	require.NotNil(t, pv)
	assert.Equal(t, "1080p", pv.PackageVideo.CreateVideoRepr.CodecName)
}
