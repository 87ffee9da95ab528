// Package thumbnail produces downscaled JPEG previews on demand, with
// exclusive single-writer semantics per (image, width) target.
package thumbnail

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/patchbay-dev/patchbay/internal/logger"
	"github.com/patchbay-dev/patchbay/pkg/imagestore"
	"github.com/patchbay-dev/patchbay/pkg/metrics"
	"github.com/patchbay-dev/patchbay/pkg/models"
)

// Width bounds accepted by the service.
const (
	MinWidth = 1
	MaxWidth = 4096
)

// maxHeight is the permissive height constraint passed to the
// thumbnailer so only the width binds and aspect ratio is preserved.
const maxHeight = 100000

// Service generates thumbnails under thumbnails/<uuid>_w<width>.jpg.
//
// Generation is serialized per target by an exclusive advisory lock on
// <target>.lock; distinct targets progress in parallel. Existing
// thumbnails are never regenerated or deleted.
type Service struct {
	images  *imagestore.Store
	command string
	metrics *metrics.ThumbnailMetrics
}

// NewService creates a Service invoking the given external thumbnailer
// binary.
func NewService(images *imagestore.Store, command string, m *metrics.ThumbnailMetrics) *Service {
	return &Service{images: images, command: command, metrics: m}
}

// Thumbnail returns the path of the JPEG thumbnail for (uuid, width),
// generating it if absent.
//
// Check-lock-check: the fast path returns an existing target without
// locking; otherwise the per-target lock is taken and existence is
// re-checked before invoking the thumbnailer, because another worker may
// have produced the file while we waited.
func (s *Service) Thumbnail(ctx context.Context, uuid string, width int) (string, error) {
	if width < MinWidth || width > MaxWidth {
		return "", fmt.Errorf("width %d out of range [%d, %d]: %w",
			width, MinWidth, MaxWidth, models.ErrInvalidWidth)
	}

	source, err := s.images.Resolve(uuid)
	if err != nil {
		return "", err
	}

	target := s.images.ThumbnailPath(uuid, width)
	if imagestore.Exists(target) {
		s.metrics.RecordRequest("cached")
		return target, nil
	}

	unlock, err := s.lockTarget(target)
	if err != nil {
		s.metrics.RecordRequest("error")
		return "", err
	}
	defer unlock()

	if imagestore.Exists(target) {
		s.metrics.RecordRequest("cached")
		return target, nil
	}

	if err := s.generate(ctx, source, target, width); err != nil {
		s.metrics.RecordRequest("error")
		return "", err
	}

	s.metrics.RecordRequest("generated")
	return target, nil
}

// lockTarget takes an exclusive advisory lock on <target>.lock and
// returns a function that releases the lock and removes the sentinel.
func (s *Service) lockTarget(target string) (func(), error) {
	lockPath := target + ".lock"
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create lock file %s: %w", lockPath, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to lock %s: %w", lockPath, err)
	}

	return func() {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		_ = f.Close()
		_ = os.Remove(lockPath)
	}, nil
}

// generate runs the external thumbnailer. Success requires exit code 0
// and the target present on disk.
func (s *Service) generate(ctx context.Context, source, target string, width int) error {
	start := time.Now()
	argv := []string{s.command, source, target, strconv.Itoa(width), strconv.Itoa(maxHeight)}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	out, err := cmd.CombinedOutput()
	s.metrics.RecordGeneration(time.Since(start))

	if err != nil {
		_ = s.images.RemoveIfPresent(target)
		logger.ErrorCtx(ctx, "Thumbnailer failed",
			logger.KeyCommand, s.command,
			logger.KeyPath, target,
			logger.KeyError, err,
			"output", strings.TrimSpace(string(out)))
		return fmt.Errorf("thumbnailer %s: %v: %w", s.command, err, models.ErrExecFailed)
	}
	if !imagestore.Exists(target) {
		logger.ErrorCtx(ctx, "Thumbnailer exited 0 but produced no file",
			logger.KeyCommand, s.command,
			logger.KeyPath, target)
		return fmt.Errorf("thumbnailer %s produced no file: %w", s.command, models.ErrExecFailed)
	}

	logger.DebugCtx(ctx, "Thumbnail generated",
		logger.KeyPath, target,
		logger.KeyWidth, width,
		logger.KeyDurationMs, logger.Duration(start))
	return nil
}
