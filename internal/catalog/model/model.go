// Package model defines the catalog's GORM-backed entity types, grounded on
// the teacher's internal/models conventions (gorm tags, TableName methods,
// Value/Scan for JSON-ish fields) and generalized to the data model in
// SPEC_FULL.md §3.
package model

import "time"

// AssetKind is the asset's media kind.
type AssetKind string

const (
	AssetKindImage AssetKind = "image"
	AssetKindVideo AssetKind = "video"
)

// ThumbnailType distinguishes the two thumbnail shapes the rule engine
// tracks per asset.
type ThumbnailType string

const (
	ThumbnailSmallSquare    ThumbnailType = "small_square"
	ThumbnailLargeOrigAspect ThumbnailType = "large_orig_aspect"
)

// ThumbnailFormat is one of the two codecs thumbnails are encoded in.
type ThumbnailFormat string

const (
	ThumbnailFormatWebP ThumbnailFormat = "webp"
	ThumbnailFormatAVIF ThumbnailFormat = "avif"
)

// TimestampKind is the discriminant of the timezone-certainty sum type
// (spec §3). Stored alongside a nullable offset in minutes east of UTC.
type TimestampKind int

const (
	TzCertain TimestampKind = iota
	UtcCertain
	TzSetByUser
	TzInferredLocation
	TzGuessedLocal
	NoTimestamp
)

// AssetRoot is an absolute path on disk that owns Assets discovered beneath
// it.
type AssetRoot struct {
	ID   int64  `gorm:"primaryKey"`
	Path string `gorm:"type:text;not null;uniqueIndex"`
	Name string `gorm:"type:text"`
}

func (AssetRoot) TableName() string { return "asset_roots" }

// Asset is the central catalog entity: one discovered media file.
type Asset struct {
	ID             int64     `gorm:"primaryKey"`
	RootID         int64     `gorm:"not null;uniqueIndex:idx_root_relpath,priority:1"`
	RelativePath   string    `gorm:"type:text;not null;uniqueIndex:idx_root_relpath,priority:2"`
	Kind           AssetKind `gorm:"type:varchar(10);not null;index"`
	FileType       string    `gorm:"type:varchar(64);not null"`
	Hash           []byte    `gorm:"type:bytea;not null;index"` // 8-byte little-endian u64, spec §3
	Width          int       `gorm:"not null"`
	Height         int       `gorm:"not null"`
	RotationDeg    int       `gorm:"not null;default:0"`

	TimestampKind   TimestampKind `gorm:"not null"`
	TimezoneOffsetM *int          `gorm:"column:timezone_offset_minutes"`
	TakenAtMillis   int64         `gorm:"not null"`
	AddedAtMillis   int64         `gorm:"not null"`

	ThumbSmallSquareWebP     bool `gorm:"not null;default:false"`
	ThumbSmallSquareAVIF     bool `gorm:"not null;default:false"`
	ThumbLargeOrigAspectWebP bool `gorm:"not null;default:false"`
	ThumbLargeOrigAspectAVIF bool `gorm:"not null;default:false"`

	GPSLatitudeFixed  *int64 `gorm:"column:gps_latitude_fixed"`  // value * 10^8
	GPSLongitudeFixed *int64 `gorm:"column:gps_longitude_fixed"` // value * 10^8
	ExifBlob          []byte `gorm:"type:bytea"`

	// Video-only fields.
	VideoCodec    string `gorm:"type:varchar(32)"`
	VideoBitrate  int64
	AudioCodec    string `gorm:"type:varchar(32)"`
	HasDash       bool   `gorm:"not null;default:false"`

	// Image-only field.
	ImageFormat string `gorm:"type:varchar(32)"`
}

func (Asset) TableName() string { return "assets" }

// IsVideo reports whether this asset is a video, per its Kind.
func (a Asset) IsVideo() bool { return a.Kind == AssetKindVideo }

// TakenAt converts the stored epoch-millis timestamp to a time.Time.
func (a Asset) TakenAt() time.Time {
	return time.UnixMilli(a.TakenAtMillis).UTC()
}

// DuplicateAsset records a file whose content hash matches an existing
// Asset under the same root (spec §3 Invariant 2).
type DuplicateAsset struct {
	ID              int64 `gorm:"primaryKey"`
	RootID          int64 `gorm:"not null;index"`
	RelativePath    string `gorm:"type:text;not null"`
	CanonicalAssetID int64 `gorm:"not null;index"`
	Hash            []byte `gorm:"type:bytea;not null"`
	AddedAtMillis   int64  `gorm:"not null"`
}

func (DuplicateAsset) TableName() string { return "duplicate_assets" }

// ImageRepresentation is an alternate encoding of an image Asset.
type ImageRepresentation struct {
	ID        int64  `gorm:"primaryKey"`
	AssetID   int64  `gorm:"not null;index"`
	Format    string `gorm:"type:varchar(32);not null"`
	Width     int    `gorm:"not null"`
	Height    int    `gorm:"not null"`
	FileSize  int64  `gorm:"not null"`
	StorageKey string `gorm:"type:text;not null"`
}

func (ImageRepresentation) TableName() string { return "image_representations" }

// VideoRepresentation is an alternate packaged encoding of a video Asset.
type VideoRepresentation struct {
	ID           int64  `gorm:"primaryKey"`
	AssetID      int64  `gorm:"not null;index"`
	CodecName    string `gorm:"type:varchar(32);not null"`
	Width        int64  `gorm:"not null"`
	Height       int64  `gorm:"not null"`
	Bitrate      int64  `gorm:"not null"`
	FileKey      string `gorm:"type:text;not null"`
	MediaInfoKey string `gorm:"type:text;not null"`
}

func (VideoRepresentation) TableName() string { return "video_representations" }

// AudioRepresentation is a packaged audio stream for a video Asset.
type AudioRepresentation struct {
	ID           int64  `gorm:"primaryKey"`
	AssetID      int64  `gorm:"not null;index"`
	CodecName    string `gorm:"type:varchar(32);not null"`
	FileKey      string `gorm:"type:text;not null"`
	MediaInfoKey string `gorm:"type:text;not null"`
}

func (AudioRepresentation) TableName() string { return "audio_representations" }

// Album is a user-curated ordered collection of assets and text items.
type Album struct {
	ID          int64     `gorm:"primaryKey"`
	Name        string    `gorm:"type:text;not null"`
	Description string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	ChangedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Album) TableName() string { return "albums" }

// AlbumItem is one ordered member of an Album: either an asset reference or
// free text, never both.
type AlbumItem struct {
	ID      int64  `gorm:"primaryKey"`
	AlbumID int64  `gorm:"not null;index"`
	Position int   `gorm:"not null"`
	AssetID *int64 `gorm:"index"`
	Text    *string `gorm:"type:text"`
}

func (AlbumItem) TableName() string { return "album_items" }

// AlbumThumbnail pins an Album's cover to a specific member Asset.
type AlbumThumbnail struct {
	AlbumID int64  `gorm:"primaryKey"`
	AssetID int64  `gorm:"primaryKey"`
	Format  string `gorm:"type:varchar(32);not null"`
	StorageKey string `gorm:"type:text;not null"`
}

func (AlbumThumbnail) TableName() string { return "album_thumbnails" }

// TimelineGroup is a named cluster of assets with a display date.
type TimelineGroup struct {
	ID              int64     `gorm:"primaryKey"`
	Name            string    `gorm:"type:text;not null"`
	DisplayAtMillis int64     `gorm:"not null"`
}

func (TimelineGroup) TableName() string { return "timeline_groups" }

// TimelineGroupItem joins a TimelineGroup to its member Assets.
type TimelineGroupItem struct {
	TimelineGroupID int64 `gorm:"primaryKey"`
	AssetID         int64 `gorm:"primaryKey"`
}

func (TimelineGroupItem) TableName() string { return "timeline_group_items" }

// AcceptableVideoCodec and AcceptableAudioCodec are configured sets of codec
// names considered web-ready without transcoding (spec §3).
type AcceptableVideoCodec struct {
	CodecName string `gorm:"primaryKey;type:varchar(32)"`
}

func (AcceptableVideoCodec) TableName() string { return "acceptable_video_codecs" }

type AcceptableAudioCodec struct {
	CodecName string `gorm:"primaryKey;type:varchar(32)"`
}

func (AcceptableAudioCodec) TableName() string { return "acceptable_audio_codecs" }

// FailedJobKind identifies which derivation kind a FailedJob row belongs to.
type FailedJobKind string

const (
	FailedJobThumbnail    FailedJobKind = "thumbnail"
	FailedJobImageConvert FailedJobKind = "image_convert"
	FailedJobFFmpeg       FailedJobKind = "ffmpeg"
	FailedJobShaka        FailedJobKind = "shaka_packager"
)

// FailedJob records that a derivation kind failed for an asset at a
// specific content hash, so the rule engine can skip re-planning the same
// failure until the file changes (spec §3, §4.6).
type FailedJob struct {
	ID            int64         `gorm:"primaryKey"`
	Kind          FailedJobKind `gorm:"type:varchar(32);not null;index:idx_failed_job_lookup,priority:1"`
	AssetID       int64         `gorm:"not null;index:idx_failed_job_lookup,priority:2"`
	Hash          []byte        `gorm:"type:bytea;not null"`
	FailedAtMillis int64        `gorm:"not null"`
}

func (FailedJob) TableName() string { return "failed_jobs" }

// All returns every model this catalog migrates, used by Connect's
// AutoMigrate call.
func All() []interface{} {
	return []interface{}{
		&AssetRoot{},
		&Asset{},
		&DuplicateAsset{},
		&ImageRepresentation{},
		&VideoRepresentation{},
		&AudioRepresentation{},
		&Album{},
		&AlbumItem{},
		&AlbumThumbnail{},
		&TimelineGroup{},
		&TimelineGroupItem{},
		&AcceptableVideoCodec{},
		&AcceptableAudioCodec{},
		&FailedJob{},
	}
}
