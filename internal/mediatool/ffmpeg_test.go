package mediatool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVideoArgsAVC(t *testing.T) {
	args := VideoArgs(ProduceVideo{
		Codec: VideoCodecAVC, CRF: 23, Preset: "medium", Tune: "film",
		MaxBitrateK: 4000, ScaleWidth: 1280,
	})
	assert.Equal(t, []string{
		"-c:v", "libx264", "-crf", "23", "-preset", "medium",
		"-tune", "film", "-maxrate", "4000k",
		"-vf", "scale=1280:-2",
	}, args)
}

func TestVideoArgsAV1FastDecode(t *testing.T) {
	args := VideoArgs(ProduceVideo{
		Codec: VideoCodecAV1, CRF: 30, FastDecode: true, ScaleHeight: 720,
	})
	assert.Equal(t, []string{
		"-c:v", "libsvtav1", "-crf", "30",
		"-svtav1-params", "fast-decode=1",
		"-vf", "scale=-2:720",
	}, args)
}

func TestVideoArgsCopy(t *testing.T) {
	assert.Equal(t, []string{"-c:v", "copy"}, VideoArgs(ProduceVideo{Copy: true}))
}

func TestAudioArgsMapping(t *testing.T) {
	assert.Equal(t, []string{"-c:a", "aac"}, AudioArgs(ProduceAudio{Codec: AudioCodecAAC}))
	assert.Equal(t, []string{"-c:a", "libopus"}, AudioArgs(ProduceAudio{Codec: AudioCodecOpus}))
	assert.Equal(t, []string{"-c:a", "flac"}, AudioArgs(ProduceAudio{Codec: AudioCodecFLAC}))
	assert.Equal(t, []string{"-c:a", "libmp3lame"}, AudioArgs(ProduceAudio{Codec: AudioCodecMP3}))
	assert.Equal(t, []string{"-c:a", "copy"}, AudioArgs(ProduceAudio{Copy: true}))
}

func TestNormalizeRotation(t *testing.T) {
	w, h, err := NormalizeRotation(1920, 1080, 90)
	assert.NoError(t, err)
	assert.Equal(t, 1080, w)
	assert.Equal(t, 1920, h)

	w, h, err = NormalizeRotation(1920, 1080, 180)
	assert.NoError(t, err)
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)

	_, _, err = NormalizeRotation(1920, 1080, 45)
	assert.Error(t, err)
}
