package imagestore

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/patchbay-dev/patchbay/pkg/models"
)

// canonicalUUID matches the canonical hyphenated text form of an image
// UUID. Anything else is rejected before touching the filesystem, which
// also keeps path traversal out of the store.
var canonicalUUID = regexp.MustCompile(`^[0-9a-f-]{36}$`)

// ValidUUID reports whether s is in canonical image UUID form.
func ValidUUID(s string) bool {
	return canonicalUUID.MatchString(s)
}

// Resolve locates the file for a UUID, searching the originals in the
// store root first, then cached_images/. The first entry whose basename is
// the UUID or the UUID plus an extension wins. The search is non-recursive
// beyond those two directories.
//
// No lock is taken; callers that need stability under concurrent deletion
// must re-check existence immediately before use.
func (s *Store) Resolve(uuid string) (string, error) {
	if !ValidUUID(uuid) {
		return "", fmt.Errorf("resolve %q: %w", uuid, models.ErrInvalidUUID)
	}

	for _, dir := range []string{s.root, s.CachedDir()} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", fmt.Errorf("failed to read %s: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if matchesUUID(entry.Name(), uuid) {
				return filepath.Join(dir, entry.Name()), nil
			}
		}
	}

	return "", fmt.Errorf("resolve %q: %w", uuid, models.ErrImageNotFound)
}

// Exists re-checks that a previously resolved path is still present.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
