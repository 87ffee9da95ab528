package store

import (
	"context"
	"time"

	"github.com/patchbay-dev/patchbay/pkg/models"
)

// ============================================
// CACHE INDEX OPERATIONS
// ============================================
//
// All operations are single statements. Correctness under concurrent
// evaluations does not need multi-statement transactions: double deletion
// is idempotent and duplicate inserts for the same key are tolerated (the
// latest row wins on lookup).

// LookupCache finds the cache row for a key triple, newest first so a
// concurrent duplicate execution converges on the latest insert.
func (s *GORMStore) LookupCache(ctx context.Context, idblock uint, parametersJSON, inputUUIDsJSON string) (*models.CacheEntry, error) {
	var entry models.CacheEntry
	err := s.db.WithContext(ctx).
		Where("idblock = ? AND parameters_json = ? AND input_uuids_json = ?",
			idblock, parametersJSON, inputUUIDsJSON).
		Order("creation_timestamp DESC").
		First(&entry).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrCacheEntryNotFound)
	}
	return &entry, nil
}

// InsertCache records a successful execution. The output file must already
// exist on disk when this is called.
func (s *GORMStore) InsertCache(ctx context.Context, entry *models.CacheEntry) error {
	if entry.CreationTimestamp.IsZero() {
		entry.CreationTimestamp = time.Now()
	}
	return s.db.WithContext(ctx).Create(entry).Error
}

// DeleteCacheByUUID removes a cache row. Used by the self-heal path when
// the row's file has vanished; deleting an already-deleted row is fine.
func (s *GORMStore) DeleteCacheByUUID(ctx context.Context, uuid string) error {
	return deleteByField[models.CacheEntry](s.db, ctx, "uuid", uuid)
}

// ListCacheUUIDsForBlocks returns the output UUIDs of every cache row
// belonging to any of the given block instances.
func (s *GORMStore) ListCacheUUIDsForBlocks(ctx context.Context, blockIDs []uint) ([]string, error) {
	if len(blockIDs) == 0 {
		return nil, nil
	}
	var uuids []string
	err := s.db.WithContext(ctx).
		Model(&models.CacheEntry{}).
		Where("idblock IN ?", blockIDs).
		Pluck("uuid", &uuids).Error
	if err != nil {
		return nil, err
	}
	return uuids, nil
}

// DeleteCacheForBlocks removes every cache row of the given block
// instances. The invalidation controller calls this after deleting the
// physical files so no row can resolve to a surviving stale file.
func (s *GORMStore) DeleteCacheForBlocks(ctx context.Context, blockIDs []uint) error {
	if len(blockIDs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Where("idblock IN ?", blockIDs).
		Delete(&models.CacheEntry{}).Error
}

// LatestCacheForBlock returns the most recent cache row for a block
// instance, used by the block image preview endpoint.
func (s *GORMStore) LatestCacheForBlock(ctx context.Context, idblock uint) (*models.CacheEntry, error) {
	var entry models.CacheEntry
	err := s.db.WithContext(ctx).
		Where("idblock = ?", idblock).
		Order("creation_timestamp DESC").
		First(&entry).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrCacheEntryNotFound)
	}
	return &entry, nil
}
