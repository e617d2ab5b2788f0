package mediatool

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// ExifData is the subset of exiftool's output the Indexer needs to derive
// timestamp certainty and GPS position (spec §3, §4.9 step 5).
type ExifData struct {
	// DateTimeOriginal is exiftool's raw "YYYY:MM:DD HH:MM:SS" local
	// datetime, empty if absent.
	DateTimeOriginal string
	// OffsetTimeOriginal is the explicit UTC offset tag ("+02:00"), empty if
	// the file carries no explicit offset.
	OffsetTimeOriginal string
	// GPSDateTime is exiftool's composite UTC timestamp derived from the GPS
	// track ("YYYY:MM:DD HH:MM:SSZ"), empty if the file has no GPS fix.
	GPSDateTime string
	// GPSLatitude/GPSLongitude are signed decimal degrees; nil if absent.
	GPSLatitude  *float64
	GPSLongitude *float64
	// Raw is the full exiftool JSON record, stored verbatim as the asset's
	// ExifBlob (spec §3 "raw exif blob").
	Raw []byte
}

// Exiftool wraps the exiftool binary, grounded on the same os/exec +
// JSON-output idiom as FFProbe (internal/mediatool/ffprobe.go); exiftool has
// no equivalent in the teacher, which never extracted structured metadata
// beyond what bimg/ffprobe return.
type Exiftool struct {
	Path string
}

func (e *Exiftool) bin() string {
	if e.Path == "" {
		return "exiftool"
	}
	return e.Path
}

type exiftoolRecord struct {
	DateTimeOriginal   string      `json:"DateTimeOriginal"`
	CreateDate         string      `json:"CreateDate"`
	OffsetTimeOriginal string      `json:"OffsetTimeOriginal"`
	OffsetTime         string      `json:"OffsetTime"`
	GPSDateTime        string      `json:"GPSDateTime"`
	GPSLatitude        json.Number `json:"GPSLatitude"`
	GPSLongitude       json.Number `json:"GPSLongitude"`
}

// Extract runs exiftool with JSON output on one file and parses the tags the
// Indexer needs. A file with no readable EXIF (e.g. a GIF) returns an
// ExifData with empty date and GPS fields (Raw still holds the tool's
// output) and no error — indexing falls back to NoTimestamp in that case,
// not a skipped file, since an indexing error is reserved for unreadable
// files (spec §7).
func (e *Exiftool) Extract(ctx context.Context, path string) (ExifData, error) {
	cmd := exec.CommandContext(ctx, e.bin(), "-j", "-n", path)
	out, err := cmd.Output()
	if err != nil {
		return ExifData{}, fmt.Errorf("mediatool: exiftool failed: %w", err)
	}

	var records []exiftoolRecord
	if err := json.Unmarshal(out, &records); err != nil {
		return ExifData{}, fmt.Errorf("mediatool: parse exiftool json: %w", err)
	}
	if len(records) == 0 {
		return ExifData{}, nil
	}
	rec := records[0]

	data := ExifData{Raw: out}
	data.DateTimeOriginal = rec.DateTimeOriginal
	if data.DateTimeOriginal == "" {
		data.DateTimeOriginal = rec.CreateDate
	}
	data.OffsetTimeOriginal = strings.TrimSpace(rec.OffsetTimeOriginal)
	if data.OffsetTimeOriginal == "" {
		data.OffsetTimeOriginal = strings.TrimSpace(rec.OffsetTime)
	}
	data.GPSDateTime = strings.TrimSpace(rec.GPSDateTime)
	if lat, err := rec.GPSLatitude.Float64(); err == nil && rec.GPSLatitude != "" {
		data.GPSLatitude = &lat
	}
	if lon, err := rec.GPSLongitude.Float64(); err == nil && rec.GPSLongitude != "" {
		data.GPSLongitude = &lon
	}
	return data, nil
}
