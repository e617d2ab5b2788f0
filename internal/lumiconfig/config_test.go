package lumiconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lumilio.toml")
	doc := `
[[AssetDirs]]
path = "/photos"
name = "main"

[DataDir]
path = "/data"

[BinPaths]
ffmpeg = "/usr/local/bin/ffmpeg"
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/photos", cfg.AssetDirs[0].Path)
	assert.Equal(t, "main", cfg.AssetDirs[0].Name)
	assert.Equal(t, "/data", cfg.DataDir.Path)
	assert.Equal(t, "/usr/local/bin/ffmpeg", cfg.BinPaths.FFmpegPath())
	assert.Equal(t, "ffprobe", cfg.BinPaths.FFprobePath())
	assert.NotEmpty(t, cfg.Ladder)
	assert.Contains(t, cfg.AcceptableCodecs.Video, "h264")
}

func TestLoadRequiresAssetDirs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lumilio.toml")
	require.NoError(t, os.WriteFile(path, []byte(`[DataDir]
path = "/data"
`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
