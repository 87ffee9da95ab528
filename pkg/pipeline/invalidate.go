package pipeline

import (
	"context"

	"github.com/patchbay-dev/patchbay/internal/logger"
	"github.com/patchbay-dev/patchbay/pkg/imagestore"
	"github.com/patchbay-dev/patchbay/pkg/metrics"
	"github.com/patchbay-dev/patchbay/pkg/models"
	"github.com/patchbay-dev/patchbay/pkg/store"
)

// Invalidator flips block enabled flags and destroys the cached outputs
// of the downstream closure when a block is disabled.
type Invalidator struct {
	store   *store.GORMStore
	images  *imagestore.Store
	metrics *metrics.PipelineMetrics
}

// NewInvalidator creates an Invalidator over the given store and image
// tree.
func NewInvalidator(st *store.GORMStore, images *imagestore.Store, m *metrics.PipelineMetrics) *Invalidator {
	return &Invalidator{store: st, images: images, metrics: m}
}

// ToggleEnabled flips a block's enabled flag and returns the new state.
//
// Disabling invalidates downstream: every cache row belonging to the
// block's downstream closure (the block included) has its physical file
// deleted, then the rows themselves are removed so no row can resolve to
// a surviving stale file. Enabling invalidates nothing.
func (inv *Invalidator) ToggleEnabled(ctx context.Context, blockID uint) (bool, error) {
	block, err := inv.store.GetBlock(ctx, blockID)
	if err != nil {
		return false, err
	}

	newState := !block.IsEnabled()
	if err := inv.store.SetBlockEnabled(ctx, blockID, newState); err != nil {
		return false, err
	}

	if !newState {
		if err := inv.invalidateDownstream(ctx, block); err != nil {
			return false, err
		}
	}
	return newState, nil
}

// invalidateDownstream deletes the cached outputs of every block reachable
// downstream of the given block, inclusive. One batched fetch of the
// project's blocks feeds the BFS instead of walking the graph row by row.
func (inv *Invalidator) invalidateDownstream(ctx context.Context, block *models.BlockInstance) error {
	blocks, err := inv.store.ListProjectBlocks(ctx, block.IDProject)
	if err != nil {
		return err
	}

	// downstream[A] lists the blocks whose connections reference A.
	downstream := make(map[uint][]uint, len(blocks))
	for _, b := range blocks {
		conns, err := b.ParsedConnections()
		if err != nil {
			return err
		}
		for _, upstream := range conns {
			downstream[upstream] = append(downstream[upstream], b.ID)
		}
	}

	closure := []uint{block.ID}
	seen := map[uint]bool{block.ID: true}
	for queue := []uint{block.ID}; len(queue) > 0; {
		current := queue[0]
		queue = queue[1:]
		for _, next := range downstream[current] {
			if seen[next] {
				continue
			}
			seen[next] = true
			closure = append(closure, next)
			queue = append(queue, next)
		}
	}

	uuids, err := inv.store.ListCacheUUIDsForBlocks(ctx, closure)
	if err != nil {
		return err
	}

	deleted := 0
	for _, u := range uuids {
		path, err := inv.images.Resolve(u)
		if err != nil {
			continue // already gone
		}
		if err := inv.images.RemoveIfPresent(path); err != nil {
			logger.WarnCtx(ctx, "Failed to delete invalidated file",
				logger.KeyImage, u, logger.KeyPath, path, logger.KeyError, err)
			continue
		}
		deleted++
	}

	if err := inv.store.DeleteCacheForBlocks(ctx, closure); err != nil {
		return err
	}

	inv.metrics.RecordInvalidatedFiles(deleted)
	logger.InfoCtx(ctx, "Invalidated downstream cache",
		logger.KeyBlock, block.ID,
		"closure_size", len(closure),
		"files_deleted", deleted)
	return nil
}
