// Package catalog defines the typed repository API the Rule Engine,
// Operation Layer, and Indexer use to read and mutate the catalog store.
// Grounded on the teacher's internal/repository interface style
// (AssetRepository in internal/repository/asset_repo.go), generalized to the
// entities and rule-driving queries of SPEC_FULL.md §3/§4.2/§4.6.
package catalog

import (
	"context"

	"server/internal/catalog/model"
)

// Repository is the short, typed API every component above the catalog
// depends on. The concrete implementation (gormcat.Repo) runs every
// multi-row mutation inside a transaction.
type Repository interface {
	// Asset CRUD and projections.
	InsertAsset(ctx context.Context, a *model.Asset) error
	AssetByID(ctx context.Context, id int64) (*model.Asset, error)
	AssetByRootAndPath(ctx context.Context, rootID int64, relativePath string) (*model.Asset, error)
	AssetByRootAndHash(ctx context.Context, rootID int64, hash []byte) (*model.Asset, error)
	InsertDuplicateAsset(ctx context.Context, d *model.DuplicateAsset) error
	AssetPathOnDisk(ctx context.Context, id int64) (string, error)
	AssetThumbnails(ctx context.Context, id int64) (model.Asset, error)
	SetThumbnailFlags(ctx context.Context, assetID int64, smallWebP, smallAVIF, largeWebP, largeAVIF *bool) error
	SetRotationCorrection(ctx context.Context, assetID int64, degrees int) error
	SetHasDash(ctx context.Context, assetID int64, hasDash bool) error
	SetTimezone(ctx context.Context, assetID int64, kind model.TimestampKind, offsetMinutes *int) error

	// AssetRoot.
	InsertAssetRoot(ctx context.Context, r *model.AssetRoot) error
	AssetRoots(ctx context.Context) ([]model.AssetRoot, error)
	AssetRootByID(ctx context.Context, id int64) (*model.AssetRoot, error)

	// Representation inserts.
	InsertImageRepresentation(ctx context.Context, r *model.ImageRepresentation) error
	InsertVideoRepresentation(ctx context.Context, r *model.VideoRepresentation) error
	InsertAudioRepresentation(ctx context.Context, r *model.AudioRepresentation) error
	VideoRepresentationsForAsset(ctx context.Context, assetID int64) ([]model.VideoRepresentation, error)
	AudioRepresentationsForAsset(ctx context.Context, assetID int64) ([]model.AudioRepresentation, error)
	ImageRepresentationExists(ctx context.Context, assetID int64, format string) (bool, error)
	VideoRepresentationExists(ctx context.Context, assetID int64, fileKey string) (bool, error)
	AudioRepresentationExists(ctx context.Context, assetID int64, fileKey string) (bool, error)

	// Album/timeline composition.
	InsertAlbum(ctx context.Context, al *model.Album) error
	AppendAlbumItem(ctx context.Context, item *model.AlbumItem) error
	SetAlbumThumbnail(ctx context.Context, t *model.AlbumThumbnail) error
	InsertTimelineGroup(ctx context.Context, g *model.TimelineGroup) error
	AddTimelineGroupItem(ctx context.Context, groupID, assetID int64) error

	// Codec acceptability sets.
	SetAcceptableCodecs(ctx context.Context, video, audio []string) error
	AcceptableCodecs(ctx context.Context) (video, audio []string, err error)

	// FailedJob records.
	RecordFailedJob(ctx context.Context, kind model.FailedJobKind, assetID int64, hash []byte) error
	ClearFailedJob(ctx context.Context, kind model.FailedJobKind, assetID int64) error
	FailedJobExists(ctx context.Context, kind model.FailedJobKind, assetID int64, hash []byte) (bool, error)

	// Rule-engine-driving queries (SPEC_FULL.md §4.6).
	VideosMissingDash(ctx context.Context, acceptableVideo, acceptableAudio []string) ([]model.Asset, error)
	VideosWithoutAcceptableRepresentation(ctx context.Context, acceptableVideo []string) ([]model.Asset, error)
	VideosMissingLadderRungs(ctx context.Context, rungNames []string) (map[int64][]string, error)
	AssetsMissingThumbnails(ctx context.Context) ([]model.Asset, error)
	AssetsMissingImageRepresentation(ctx context.Context, format string) ([]model.Asset, error)
}
