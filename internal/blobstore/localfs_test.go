package blobstore

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFileStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalFileStorage(t.TempDir())
	require.NoError(t, err)

	w, err := s.OpenWrite(ctx, "thumb/1/small.webp")
	require.NoError(t, err)
	_, err = io.Copy(w, strings.NewReader("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	exists, err := s.Exists(ctx, "thumb/1/small.webp")
	require.NoError(t, err)
	assert.True(t, exists)

	r, err := s.OpenRead(ctx, "thumb/1/small.webp")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	require.NoError(t, r.Close())
}

func TestLocalFileStorageCreateNewIsExclusive(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalFileStorage(t.TempDir())
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	successes := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w, err := s.OpenWrite(ctx, "contended-key")
			if err == nil {
				successes[i] = true
				w.Close()
			}
		}(i)
	}
	wg.Wait()

	count := 0
	for _, ok := range successes {
		if ok {
			count++
		}
	}
	assert.Equal(t, 1, count, "exactly one concurrent OpenWrite should succeed")
}

func TestCommandOutFileDiscard(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalFileStorage(t.TempDir())
	require.NoError(t, err)

	cof, err := s.NewCommandOut(ctx, "dash/1/h264/1920x1080.mp4")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(cof.Path(), []byte("partial"), 0o644))
	require.NoError(t, cof.Discard())

	exists, err := s.Exists(ctx, "dash/1/h264/1920x1080.mp4")
	require.NoError(t, err)
	assert.False(t, exists)
}
