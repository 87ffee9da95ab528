package thumbnail

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchbay-dev/patchbay/pkg/imagestore"
	"github.com/patchbay-dev/patchbay/pkg/models"
)

func newTestImages(t *testing.T) *imagestore.Store {
	t.Helper()
	images := imagestore.New(t.TempDir())
	require.NoError(t, images.EnsureLayout())
	return images
}

// writeThumbnailer creates a stand-in thumbnailer script: it appends to
// counterFile, then copies source to target. The short sleep widens the
// window in which concurrent callers would race without the lock.
func writeThumbnailer(t *testing.T, counterFile string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "thumbnailer.sh")
	body := fmt.Sprintf("#!/bin/sh\necho run >> %q\nsleep 0.1\ncp \"$1\" \"$2\"\n", counterFile)
	require.NoError(t, os.WriteFile(path, []byte(body), 0755))
	return path
}

func countRuns(t *testing.T, counterFile string) int {
	t.Helper()
	data, err := os.ReadFile(counterFile)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	return strings.Count(string(data), "\n")
}

func addImage(t *testing.T, images *imagestore.Store, content string) string {
	t.Helper()
	u := uuid.NewString()
	_, err := images.SaveUpload(strings.NewReader(content), u, "source.png")
	require.NoError(t, err)
	return u
}

func TestThumbnail(t *testing.T) {
	t.Run("GeneratesOnFirstRequest", func(t *testing.T) {
		images := newTestImages(t)
		counter := filepath.Join(images.Root(), "runs")
		svc := NewService(images, writeThumbnailer(t, counter), nil)
		u := addImage(t, images, "pixels")

		path, err := svc.Thumbnail(context.Background(), u, 200)
		require.NoError(t, err)
		assert.Equal(t, images.ThumbnailPath(u, 200), path)
		assert.True(t, imagestore.Exists(path))
		assert.Equal(t, 1, countRuns(t, counter))

		// The lock sentinel must not survive the request.
		assert.False(t, imagestore.Exists(path+".lock"))
	})

	t.Run("SecondRequestIsServedFromDisk", func(t *testing.T) {
		images := newTestImages(t)
		counter := filepath.Join(images.Root(), "runs")
		svc := NewService(images, writeThumbnailer(t, counter), nil)
		u := addImage(t, images, "pixels")

		_, err := svc.Thumbnail(context.Background(), u, 200)
		require.NoError(t, err)
		_, err = svc.Thumbnail(context.Background(), u, 200)
		require.NoError(t, err)
		assert.Equal(t, 1, countRuns(t, counter))
	})

	t.Run("DistinctWidthsAreDistinctTargets", func(t *testing.T) {
		images := newTestImages(t)
		counter := filepath.Join(images.Root(), "runs")
		svc := NewService(images, writeThumbnailer(t, counter), nil)
		u := addImage(t, images, "pixels")

		a, err := svc.Thumbnail(context.Background(), u, 100)
		require.NoError(t, err)
		b, err := svc.Thumbnail(context.Background(), u, 200)
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
		assert.Equal(t, 2, countRuns(t, counter))
	})

	t.Run("WidthBounds", func(t *testing.T) {
		images := newTestImages(t)
		svc := NewService(images, "/bin/false", nil)
		u := addImage(t, images, "pixels")

		for _, w := range []int{0, -1, 4097} {
			_, err := svc.Thumbnail(context.Background(), u, w)
			assert.ErrorIs(t, err, models.ErrInvalidWidth, "width %d", w)
		}

		// Bounds themselves are valid widths as far as validation goes;
		// generation then fails because /bin/false is not a thumbnailer.
		_, err := svc.Thumbnail(context.Background(), u, 4096)
		assert.ErrorIs(t, err, models.ErrExecFailed)
	})

	t.Run("UnknownUUIDFails", func(t *testing.T) {
		images := newTestImages(t)
		svc := NewService(images, "/bin/false", nil)

		_, err := svc.Thumbnail(context.Background(), uuid.NewString(), 200)
		assert.ErrorIs(t, err, models.ErrImageNotFound)
	})

	t.Run("MalformedUUIDFails", func(t *testing.T) {
		images := newTestImages(t)
		svc := NewService(images, "/bin/false", nil)

		_, err := svc.Thumbnail(context.Background(), "../etc/passwd", 200)
		assert.ErrorIs(t, err, models.ErrInvalidUUID)
	})

	t.Run("ThumbnailerFailureReleasesLock", func(t *testing.T) {
		images := newTestImages(t)
		svc := NewService(images, "/bin/false", nil)
		u := addImage(t, images, "pixels")

		_, err := svc.Thumbnail(context.Background(), u, 200)
		assert.ErrorIs(t, err, models.ErrExecFailed)
		assert.False(t, imagestore.Exists(images.ThumbnailPath(u, 200)+".lock"))

		// A retry with a working thumbnailer succeeds: the failed attempt
		// left no lock behind.
		counter := filepath.Join(images.Root(), "runs")
		retry := NewService(images, writeThumbnailer(t, counter), nil)
		_, err = retry.Thumbnail(context.Background(), u, 200)
		require.NoError(t, err)
	})
}

func TestThumbnailConcurrency(t *testing.T) {
	t.Run("ConcurrentIdenticalRequestsGenerateOnce", func(t *testing.T) {
		images := newTestImages(t)
		counter := filepath.Join(images.Root(), "runs")
		svc := NewService(images, writeThumbnailer(t, counter), nil)
		u := addImage(t, images, "pixels")

		const workers = 8
		paths := make([]string, workers)
		errs := make([]error, workers)

		var wg sync.WaitGroup
		wg.Add(workers)
		for i := 0; i < workers; i++ {
			go func(i int) {
				defer wg.Done()
				paths[i], errs[i] = svc.Thumbnail(context.Background(), u, 300)
			}(i)
		}
		wg.Wait()

		want, err := os.ReadFile(images.ThumbnailPath(u, 300))
		require.NoError(t, err)
		for i := 0; i < workers; i++ {
			require.NoError(t, errs[i])
			got, err := os.ReadFile(paths[i])
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}

		assert.Equal(t, 1, countRuns(t, counter), "thumbnailer must run exactly once")
	})
}
