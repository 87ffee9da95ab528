// Package imagestore owns the on-disk image tree: original uploads at the
// root, derived pipeline outputs under cached_images/, thumbnails under
// thumbnails/. Files are named <uuid><.ext>; the base UUID is the content
// handle everywhere else in the system.
package imagestore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/patchbay-dev/patchbay/pkg/bufpool"
)

// Subdirectory names inside the image store root.
const (
	CachedDirName    = "cached_images"
	ThumbnailDirName = "thumbnails"
)

// Store locates and writes files in the image store tree.
//
// Store takes no locks. Derived files are written once under a fresh UUID
// and never rewritten in place, so concurrent deletion races are benign as
// long as consumers re-check existence at point of use.
type Store struct {
	root string
}

// New creates a Store rooted at the given directory.
func New(root string) *Store {
	return &Store{root: root}
}

// EnsureLayout creates the root and its subdirectories.
func (s *Store) EnsureLayout() error {
	for _, dir := range []string{s.root, s.CachedDir(), s.ThumbnailDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create image store directory %s: %w", dir, err)
		}
	}
	return nil
}

// Root returns the image store root directory.
func (s *Store) Root() string {
	return s.root
}

// CachedDir returns the directory holding derived pipeline outputs.
func (s *Store) CachedDir() string {
	return filepath.Join(s.root, CachedDirName)
}

// ThumbnailDir returns the directory holding generated thumbnails.
func (s *Store) ThumbnailDir() string {
	return filepath.Join(s.root, ThumbnailDirName)
}

// CachedPath returns the path a derived output for the given UUID is
// written to. Derived outputs are always PNG.
func (s *Store) CachedPath(uuid string) string {
	return filepath.Join(s.CachedDir(), uuid+".png")
}

// ThumbnailPath returns the target path for a (uuid, width) thumbnail.
func (s *Store) ThumbnailPath(uuid string, width int) string {
	return filepath.Join(s.ThumbnailDir(), fmt.Sprintf("%s_w%d.jpg", uuid, width))
}

// SaveUpload streams an uploaded file into the store root as
// <uuid><ext>, where ext is taken from the original filename (may be
// empty). Returns the path written.
func (s *Store) SaveUpload(r io.Reader, uuid, originalFilename string) (string, error) {
	ext := filepath.Ext(originalFilename)
	path := filepath.Join(s.root, uuid+ext)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}

	buf := bufpool.Get(bufpool.DefaultSmallSize)
	defer bufpool.Put(buf)

	if _, err := io.CopyBuffer(f, r, buf); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to write upload file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to close upload file: %w", err)
	}

	return path, nil
}

// RemoveIfPresent deletes a file, treating "already gone" as success.
// The invalidation controller and the self-heal path both rely on
// deletion being idempotent.
func (s *Store) RemoveIfPresent(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// matchesUUID reports whether a directory entry basename belongs to the
// given UUID: exactly the UUID, or the UUID followed by a dot and an
// extension.
func matchesUUID(name, uuid string) bool {
	if name == uuid {
		return true
	}
	return strings.HasPrefix(name, uuid+".")
}
