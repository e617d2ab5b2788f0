package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"server/internal/catalog"
	"server/internal/catalog/model"
	"server/internal/mediatool"
)

func TestClassifyByExtension(t *testing.T) {
	kind, ok := classify(".JPG")
	require.True(t, ok)
	assert.Equal(t, model.AssetKindImage, kind)

	kind, ok = classify(".mkv")
	require.True(t, ok)
	assert.Equal(t, model.AssetKindVideo, kind)

	_, ok = classify(".txt")
	assert.False(t, ok)
}

func TestHashFileDeterministic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	h1, err := hashFile(path)
	require.NoError(t, err)
	h2, err := hashFile(path)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 8)
}

type indexerFakeRepo struct {
	catalog.Repository
	inserted []model.Asset
	byHash   map[string]*model.Asset
	dups     []model.DuplicateAsset
}

func (r *indexerFakeRepo) AssetByRootAndPath(ctx context.Context, rootID int64, relativePath string) (*model.Asset, error) {
	return nil, assetNotFound{}
}

func (r *indexerFakeRepo) AssetByRootAndHash(ctx context.Context, rootID int64, hash []byte) (*model.Asset, error) {
	if a, ok := r.byHash[string(hash)]; ok {
		return a, nil
	}
	return nil, assetNotFound{}
}

func (r *indexerFakeRepo) InsertAsset(ctx context.Context, a *model.Asset) error {
	a.ID = int64(len(r.inserted) + 1)
	r.inserted = append(r.inserted, *a)
	if r.byHash == nil {
		r.byHash = map[string]*model.Asset{}
	}
	r.byHash[string(a.Hash)] = a
	return nil
}

func (r *indexerFakeRepo) InsertDuplicateAsset(ctx context.Context, d *model.DuplicateAsset) error {
	r.dups = append(r.dups, *d)
	return nil
}

type assetNotFound struct{}

func (assetNotFound) Error() string { return "not found" }

func TestIndexFileInsertsImageAsset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.png")
	// Minimal valid 1x1 PNG.
	pngBytes := []byte{
		0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
		0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
		0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x02, 0x00, 0x00, 0x00, 0x90, 0x77, 0x53,
		0xde, 0x00, 0x00, 0x00, 0x0c, 0x49, 0x44, 0x41,
		0x54, 0x08, 0xd7, 0x63, 0xf8, 0xcf, 0xc0, 0x00,
		0x00, 0x03, 0x01, 0x01, 0x00, 0x18, 0xdd, 0x8d,
		0xb0, 0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4e,
		0x44, 0xae, 0x42, 0x60, 0x82,
	}
	require.NoError(t, os.WriteFile(path, pngBytes, 0o644))

	repo := &indexerFakeRepo{}
	ix := New(zap.NewNop(), repo, nil, nil, nil)

	root := model.AssetRoot{ID: 1, Path: dir}
	info, err := os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, ix.indexFile(context.Background(), root, path, info))
	require.Len(t, repo.inserted, 1)
	assert.Equal(t, model.AssetKindImage, repo.inserted[0].Kind)
	assert.Equal(t, 1, repo.inserted[0].Width)
	assert.Equal(t, 1, repo.inserted[0].Height)
	assert.Equal(t, model.NoTimestamp, repo.inserted[0].TimestampKind)
}

func TestDeriveTimestampExplicitOffsetIsCertain(t *testing.T) {
	kind, offset, takenAt, ok := deriveTimestamp(mediatool.ExifData{
		DateTimeOriginal:   "2024:06:15 10:30:00",
		OffsetTimeOriginal: "+02:00",
	})
	require.True(t, ok)
	assert.Equal(t, model.TzCertain, kind)
	require.NotNil(t, offset)
	assert.Equal(t, 120, *offset)
	assert.Equal(t, 2024, time.UnixMilli(takenAt).UTC().Year())
}

func TestDeriveTimestampGPSDateTimeIsUTCCertain(t *testing.T) {
	kind, offset, _, ok := deriveTimestamp(mediatool.ExifData{
		GPSDateTime: "2024:06:15 08:30:00Z",
	})
	require.True(t, ok)
	assert.Equal(t, model.UtcCertain, kind)
	assert.Nil(t, offset)
}

func TestDeriveTimestampLocalOnlyIsGuessed(t *testing.T) {
	kind, offset, _, ok := deriveTimestamp(mediatool.ExifData{
		DateTimeOriginal: "2024:06:15 10:30:00",
	})
	require.True(t, ok)
	assert.Equal(t, model.TzGuessedLocal, kind)
	assert.NotNil(t, offset)
}

func TestDeriveTimestampMissingIsFalse(t *testing.T) {
	_, _, _, ok := deriveTimestamp(mediatool.ExifData{})
	assert.False(t, ok)
}
