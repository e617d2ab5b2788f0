package gormcat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"server/internal/catalog"
	"server/internal/catalog/model"
)

// Repo is the GORM-backed catalog.Repository implementation.
type Repo struct {
	db *gorm.DB
}

// New wraps an already-connected *gorm.DB (see Connect) as a
// catalog.Repository.
func New(db *gorm.DB) catalog.Repository {
	return &Repo{db: db}
}

func (r *Repo) InsertAsset(ctx context.Context, a *model.Asset) error {
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("catalog: insert asset: %w", err)
	}
	return nil
}

func (r *Repo) AssetByID(ctx context.Context, id int64) (*model.Asset, error) {
	var a model.Asset
	if err := r.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, fmt.Errorf("catalog: asset %d: %w", id, err)
	}
	return &a, nil
}

func (r *Repo) AssetByRootAndPath(ctx context.Context, rootID int64, relativePath string) (*model.Asset, error) {
	var a model.Asset
	err := r.db.WithContext(ctx).
		Where("root_id = ? AND relative_path = ?", rootID, relativePath).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: asset by path: %w", err)
	}
	return &a, nil
}

func (r *Repo) AssetByRootAndHash(ctx context.Context, rootID int64, hash []byte) (*model.Asset, error) {
	var a model.Asset
	err := r.db.WithContext(ctx).
		Where("root_id = ? AND hash = ?", rootID, hash).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: asset by hash: %w", err)
	}
	return &a, nil
}

func (r *Repo) InsertDuplicateAsset(ctx context.Context, d *model.DuplicateAsset) error {
	if err := r.db.WithContext(ctx).Create(d).Error; err != nil {
		return fmt.Errorf("catalog: insert duplicate asset: %w", err)
	}
	return nil
}

func (r *Repo) AssetPathOnDisk(ctx context.Context, id int64) (string, error) {
	var a model.Asset
	var root model.AssetRoot
	if err := r.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return "", fmt.Errorf("catalog: asset %d: %w", id, err)
	}
	if err := r.db.WithContext(ctx).First(&root, a.RootID).Error; err != nil {
		return "", fmt.Errorf("catalog: asset root %d: %w", a.RootID, err)
	}
	return root.Path + "/" + a.RelativePath, nil
}

func (r *Repo) AssetThumbnails(ctx context.Context, id int64) (model.Asset, error) {
	var a model.Asset
	if err := r.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return model.Asset{}, fmt.Errorf("catalog: asset %d: %w", id, err)
	}
	return a, nil
}

func (r *Repo) SetThumbnailFlags(ctx context.Context, assetID int64, smallWebP, smallAVIF, largeWebP, largeAVIF *bool) error {
	updates := map[string]interface{}{}
	if smallWebP != nil {
		updates["thumb_small_square_web_p"] = *smallWebP
	}
	if smallAVIF != nil {
		updates["thumb_small_square_avif"] = *smallAVIF
	}
	if largeWebP != nil {
		updates["thumb_large_orig_aspect_web_p"] = *largeWebP
	}
	if largeAVIF != nil {
		updates["thumb_large_orig_aspect_avif"] = *largeAVIF
	}
	if len(updates) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Model(&model.Asset{}).Where("id = ?", assetID).Updates(updates).Error; err != nil {
		return fmt.Errorf("catalog: set thumbnail flags for asset %d: %w", assetID, err)
	}
	return nil
}

func (r *Repo) SetRotationCorrection(ctx context.Context, assetID int64, degrees int) error {
	if err := r.db.WithContext(ctx).Model(&model.Asset{}).Where("id = ?", assetID).
		Update("rotation_deg", degrees).Error; err != nil {
		return fmt.Errorf("catalog: set rotation for asset %d: %w", assetID, err)
	}
	return nil
}

func (r *Repo) SetHasDash(ctx context.Context, assetID int64, hasDash bool) error {
	if err := r.db.WithContext(ctx).Model(&model.Asset{}).Where("id = ?", assetID).
		Update("has_dash", hasDash).Error; err != nil {
		return fmt.Errorf("catalog: set has_dash for asset %d: %w", assetID, err)
	}
	return nil
}

func (r *Repo) SetTimezone(ctx context.Context, assetID int64, kind model.TimestampKind, offsetMinutes *int) error {
	if err := r.db.WithContext(ctx).Model(&model.Asset{}).Where("id = ?", assetID).
		Updates(map[string]interface{}{
			"timestamp_kind":           kind,
			"timezone_offset_minutes":  offsetMinutes,
		}).Error; err != nil {
		return fmt.Errorf("catalog: set timezone for asset %d: %w", assetID, err)
	}
	return nil
}

func (r *Repo) InsertAssetRoot(ctx context.Context, root *model.AssetRoot) error {
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoNothing: true,
	}).Create(root).Error; err != nil {
		return fmt.Errorf("catalog: insert asset root: %w", err)
	}
	return nil
}

func (r *Repo) AssetRoots(ctx context.Context) ([]model.AssetRoot, error) {
	var roots []model.AssetRoot
	if err := r.db.WithContext(ctx).Find(&roots).Error; err != nil {
		return nil, fmt.Errorf("catalog: list asset roots: %w", err)
	}
	return roots, nil
}

func (r *Repo) AssetRootByID(ctx context.Context, id int64) (*model.AssetRoot, error) {
	var root model.AssetRoot
	if err := r.db.WithContext(ctx).First(&root, id).Error; err != nil {
		return nil, fmt.Errorf("catalog: asset root %d: %w", id, err)
	}
	return &root, nil
}

func (r *Repo) InsertImageRepresentation(ctx context.Context, rep *model.ImageRepresentation) error {
	if err := r.db.WithContext(ctx).Create(rep).Error; err != nil {
		return fmt.Errorf("catalog: insert image representation: %w", err)
	}
	return nil
}

func (r *Repo) InsertVideoRepresentation(ctx context.Context, rep *model.VideoRepresentation) error {
	if err := r.db.WithContext(ctx).Create(rep).Error; err != nil {
		return fmt.Errorf("catalog: insert video representation: %w", err)
	}
	return nil
}

func (r *Repo) InsertAudioRepresentation(ctx context.Context, rep *model.AudioRepresentation) error {
	if err := r.db.WithContext(ctx).Create(rep).Error; err != nil {
		return fmt.Errorf("catalog: insert audio representation: %w", err)
	}
	return nil
}

func (r *Repo) VideoRepresentationsForAsset(ctx context.Context, assetID int64) ([]model.VideoRepresentation, error) {
	var reps []model.VideoRepresentation
	if err := r.db.WithContext(ctx).Where("asset_id = ?", assetID).Find(&reps).Error; err != nil {
		return nil, fmt.Errorf("catalog: video representations for asset %d: %w", assetID, err)
	}
	return reps, nil
}

func (r *Repo) AudioRepresentationsForAsset(ctx context.Context, assetID int64) ([]model.AudioRepresentation, error) {
	var reps []model.AudioRepresentation
	if err := r.db.WithContext(ctx).Where("asset_id = ?", assetID).Find(&reps).Error; err != nil {
		return nil, fmt.Errorf("catalog: audio representations for asset %d: %w", assetID, err)
	}
	return reps, nil
}

func (r *Repo) ImageRepresentationExists(ctx context.Context, assetID int64, format string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.ImageRepresentation{}).
		Where("asset_id = ? AND format = ?", assetID, format).Count(&count).Error; err != nil {
		return false, fmt.Errorf("catalog: image representation exists for asset %d: %w", assetID, err)
	}
	return count > 0, nil
}

// VideoRepresentationExists and AudioRepresentationExists back the Apply-level
// idempotency guard (spec §4.5): a retried Apply after a crash must not
// double-insert a representation row for a file_key already written.
func (r *Repo) VideoRepresentationExists(ctx context.Context, assetID int64, fileKey string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.VideoRepresentation{}).
		Where("asset_id = ? AND file_key = ?", assetID, fileKey).Count(&count).Error; err != nil {
		return false, fmt.Errorf("catalog: video representation exists for asset %d: %w", assetID, err)
	}
	return count > 0, nil
}

func (r *Repo) AudioRepresentationExists(ctx context.Context, assetID int64, fileKey string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.AudioRepresentation{}).
		Where("asset_id = ? AND file_key = ?", assetID, fileKey).Count(&count).Error; err != nil {
		return false, fmt.Errorf("catalog: audio representation exists for asset %d: %w", assetID, err)
	}
	return count > 0, nil
}

func (r *Repo) InsertAlbum(ctx context.Context, al *model.Album) error {
	now := time.Now()
	al.CreatedAt, al.ChangedAt = now, now
	if err := r.db.WithContext(ctx).Create(al).Error; err != nil {
		return fmt.Errorf("catalog: insert album: %w", err)
	}
	return nil
}

func (r *Repo) AppendAlbumItem(ctx context.Context, item *model.AlbumItem) error {
	if (item.AssetID == nil) == (item.Text == nil) {
		return fmt.Errorf("catalog: album item must have exactly one of asset or text")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(item).Error; err != nil {
			return fmt.Errorf("catalog: append album item: %w", err)
		}
		if err := tx.Model(&model.Album{}).Where("id = ?", item.AlbumID).
			Update("changed_at", time.Now()).Error; err != nil {
			return fmt.Errorf("catalog: touch album %d: %w", item.AlbumID, err)
		}
		return nil
	})
}

func (r *Repo) SetAlbumThumbnail(ctx context.Context, t *model.AlbumThumbnail) error {
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "album_id"}, {Name: "asset_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"format", "storage_key"}),
	}).Create(t).Error; err != nil {
		return fmt.Errorf("catalog: set album thumbnail: %w", err)
	}
	return nil
}

func (r *Repo) InsertTimelineGroup(ctx context.Context, g *model.TimelineGroup) error {
	if err := r.db.WithContext(ctx).Create(g).Error; err != nil {
		return fmt.Errorf("catalog: insert timeline group: %w", err)
	}
	return nil
}

func (r *Repo) AddTimelineGroupItem(ctx context.Context, groupID, assetID int64) error {
	item := model.TimelineGroupItem{TimelineGroupID: groupID, AssetID: assetID}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&item).Error; err != nil {
		return fmt.Errorf("catalog: add timeline group item: %w", err)
	}
	return nil
}

func (r *Repo) SetAcceptableCodecs(ctx context.Context, video, audio []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&model.AcceptableVideoCodec{}).Error; err != nil {
			return fmt.Errorf("catalog: clear acceptable video codecs: %w", err)
		}
		if err := tx.Where("1 = 1").Delete(&model.AcceptableAudioCodec{}).Error; err != nil {
			return fmt.Errorf("catalog: clear acceptable audio codecs: %w", err)
		}
		for _, name := range video {
			if err := tx.Create(&model.AcceptableVideoCodec{CodecName: name}).Error; err != nil {
				return fmt.Errorf("catalog: insert acceptable video codec %s: %w", name, err)
			}
		}
		for _, name := range audio {
			if err := tx.Create(&model.AcceptableAudioCodec{CodecName: name}).Error; err != nil {
				return fmt.Errorf("catalog: insert acceptable audio codec %s: %w", name, err)
			}
		}
		return nil
	})
}

func (r *Repo) AcceptableCodecs(ctx context.Context) (video, audio []string, err error) {
	var videoRows []model.AcceptableVideoCodec
	if err = r.db.WithContext(ctx).Find(&videoRows).Error; err != nil {
		return nil, nil, fmt.Errorf("catalog: list acceptable video codecs: %w", err)
	}
	var audioRows []model.AcceptableAudioCodec
	if err = r.db.WithContext(ctx).Find(&audioRows).Error; err != nil {
		return nil, nil, fmt.Errorf("catalog: list acceptable audio codecs: %w", err)
	}
	for _, v := range videoRows {
		video = append(video, v.CodecName)
	}
	for _, a := range audioRows {
		audio = append(audio, a.CodecName)
	}
	return video, audio, nil
}

func (r *Repo) RecordFailedJob(ctx context.Context, kind model.FailedJobKind, assetID int64, hash []byte) error {
	row := model.FailedJob{
		Kind:           kind,
		AssetID:        assetID,
		Hash:           hash,
		FailedAtMillis: time.Now().UnixMilli(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("catalog: record failed job %s for asset %d: %w", kind, assetID, err)
	}
	return nil
}

func (r *Repo) ClearFailedJob(ctx context.Context, kind model.FailedJobKind, assetID int64) error {
	if err := r.db.WithContext(ctx).
		Where("kind = ? AND asset_id = ?", kind, assetID).
		Delete(&model.FailedJob{}).Error; err != nil {
		return fmt.Errorf("catalog: clear failed job %s for asset %d: %w", kind, assetID, err)
	}
	return nil
}

func (r *Repo) FailedJobExists(ctx context.Context, kind model.FailedJobKind, assetID int64, hash []byte) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.FailedJob{}).
		Where("kind = ? AND asset_id = ? AND hash = ?", kind, assetID, hash).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("catalog: failed job exists %s for asset %d: %w", kind, assetID, err)
	}
	return count > 0, nil
}

func (r *Repo) VideosMissingDash(ctx context.Context, acceptableVideo, acceptableAudio []string) ([]model.Asset, error) {
	var assets []model.Asset
	err := r.db.WithContext(ctx).
		Where("kind = ? AND has_dash = false AND video_codec IN ? AND audio_codec IN ?",
			model.AssetKindVideo, acceptableVideo, acceptableAudio).
		Find(&assets).Error
	if err != nil {
		return nil, fmt.Errorf("catalog: videos missing dash: %w", err)
	}
	return assets, nil
}

func (r *Repo) VideosWithoutAcceptableRepresentation(ctx context.Context, acceptableVideo []string) ([]model.Asset, error) {
	var assets []model.Asset
	err := r.db.WithContext(ctx).
		Where("kind = ? AND video_codec NOT IN ?", model.AssetKindVideo, acceptableVideo).
		Where("id NOT IN (SELECT asset_id FROM video_representations WHERE codec_name IN ?)", acceptableVideo).
		Find(&assets).Error
	if err != nil {
		return nil, fmt.Errorf("catalog: videos without acceptable representation: %w", err)
	}
	return assets, nil
}

func (r *Repo) VideosMissingLadderRungs(ctx context.Context, rungNames []string) (map[int64][]string, error) {
	var assets []model.Asset
	if err := r.db.WithContext(ctx).Where("kind = ?", model.AssetKindVideo).Find(&assets).Error; err != nil {
		return nil, fmt.Errorf("catalog: videos for ladder check: %w", err)
	}
	result := make(map[int64][]string)
	for _, a := range assets {
		var reps []model.VideoRepresentation
		if err := r.db.WithContext(ctx).Where("asset_id = ?", a.ID).Find(&reps).Error; err != nil {
			return nil, fmt.Errorf("catalog: representations for asset %d: %w", a.ID, err)
		}
		present := make(map[string]bool, len(reps))
		for _, rep := range reps {
			present[rep.CodecName] = true
		}
		var missing []string
		for _, rung := range rungNames {
			if !present[rung] {
				missing = append(missing, rung)
			}
		}
		if len(missing) > 0 {
			result[a.ID] = missing
		}
	}
	return result, nil
}

func (r *Repo) AssetsMissingThumbnails(ctx context.Context) ([]model.Asset, error) {
	var assets []model.Asset
	err := r.db.WithContext(ctx).
		Where("NOT (thumb_small_square_web_p AND thumb_small_square_avif AND thumb_large_orig_aspect_web_p AND thumb_large_orig_aspect_avif)").
		Find(&assets).Error
	if err != nil {
		return nil, fmt.Errorf("catalog: assets missing thumbnails: %w", err)
	}
	return assets, nil
}

func (r *Repo) AssetsMissingImageRepresentation(ctx context.Context, format string) ([]model.Asset, error) {
	var assets []model.Asset
	err := r.db.WithContext(ctx).
		Where("kind = ?", model.AssetKindImage).
		Where("id NOT IN (SELECT asset_id FROM image_representations WHERE format = ?)", format).
		Find(&assets).Error
	if err != nil {
		return nil, fmt.Errorf("catalog: assets missing image representation %s: %w", format, err)
	}
	return assets, nil
}
