// Package lumiconfig loads the TOML configuration describing asset roots,
// the data directory, and external tool binary paths.
package lumiconfig

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// AssetDir is one configured root the indexer walks.
type AssetDir struct {
	Path string `toml:"path"`
	Name string `toml:"name,omitempty"`
}

// DataDir is where derived blobs (thumbnails, representations, DASH output)
// are written by LocalFileStorage.
type DataDir struct {
	Path string `toml:"path"`
	Name string `toml:"name,omitempty"`
}

// BinPaths overrides the external tool binaries. An empty field means
// "resolve the default name from PATH".
type BinPaths struct {
	MpdGenerator  string `toml:"mpd_generator,omitempty"`
	ShakaPackager string `toml:"shaka_packager,omitempty"`
	FFmpeg        string `toml:"ffmpeg,omitempty"`
	FFprobe       string `toml:"ffprobe,omitempty"`
	Exiftool      string `toml:"exiftool,omitempty"`
}

// LadderRung describes one rung of the configured video quality ladder, ordered
// highest-first by the caller.
type LadderRung struct {
	Name      string `toml:"name"`
	MaxHeight int    `toml:"max_height"`
	CRF       int    `toml:"crf"`
}

// AcceptableCodecs are the codec names considered "web-ready" without
// transcoding.
type AcceptableCodecs struct {
	Video []string `toml:"video"`
	Audio []string `toml:"audio"`
}

// Config is the root TOML document. AssetDirs, DataDir and BinPaths match
// the original implementation's serde renames; Ladder, AcceptableCodecs and
// SweepIntervalSeconds are additions of this repository.
type Config struct {
	AssetDirs        []AssetDir       `toml:"AssetDirs"`
	DataDir          DataDir          `toml:"DataDir"`
	BinPaths         BinPaths         `toml:"BinPaths"`
	Ladder           []LadderRung     `toml:"Ladder,omitempty"`
	AcceptableCodecs AcceptableCodecs `toml:"AcceptableCodecs,omitempty"`
	// SweepIntervalSeconds is how often the Scheduler re-evaluates the global
	// video-packaging precedence (spec.md §4.6: "evaluated globally, not
	// per-asset") instead of only reacting to newly indexed assets. Zero uses
	// the default.
	SweepIntervalSeconds int `toml:"SweepIntervalSeconds,omitempty"`
}

// SweepInterval is the configured (or default) period between global sweeps.
func (c *Config) SweepInterval() time.Duration {
	if c.SweepIntervalSeconds <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// Load reads and parses the TOML configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if len(cfg.AssetDirs) == 0 {
		return nil, fmt.Errorf("config %s: AssetDirs must not be empty", path)
	}
	if cfg.DataDir.Path == "" {
		return nil, fmt.Errorf("config %s: DataDir.path is required", path)
	}
	if len(cfg.Ladder) == 0 {
		cfg.Ladder = defaultLadder()
	}
	if len(cfg.AcceptableCodecs.Video) == 0 {
		cfg.AcceptableCodecs.Video = []string{"h264", "hevc", "vp9", "av1"}
	}
	if len(cfg.AcceptableCodecs.Audio) == 0 {
		cfg.AcceptableCodecs.Audio = []string{"aac", "opus", "mp3"}
	}
	return &cfg, nil
}

func defaultLadder() []LadderRung {
	return []LadderRung{
		{Name: "1080p", MaxHeight: 1080, CRF: 23},
		{Name: "720p", MaxHeight: 720, CRF: 25},
		{Name: "480p", MaxHeight: 480, CRF: 28},
	}
}

// resolve returns a configured binary path, falling back to the bare name
// so exec.LookPath finds it on PATH.
func (b BinPaths) resolve(configured, fallback string) string {
	if configured != "" {
		return configured
	}
	return fallback
}

func (b BinPaths) FFmpegPath() string        { return b.resolve(b.FFmpeg, "ffmpeg") }
func (b BinPaths) FFprobePath() string       { return b.resolve(b.FFprobe, "ffprobe") }
func (b BinPaths) ShakaPackagerPath() string { return b.resolve(b.ShakaPackager, "packager") }
func (b BinPaths) MpdGeneratorPath() string  { return b.resolve(b.MpdGenerator, "mpd_generator") }
func (b BinPaths) ExiftoolPath() string      { return b.resolve(b.Exiftool, "exiftool") }
