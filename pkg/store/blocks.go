package store

import (
	"context"

	"github.com/patchbay-dev/patchbay/pkg/models"
)

// ============================================
// BLOCK GRAPH OPERATIONS
// ============================================

// GetBlock retrieves a block instance by id.
func (s *GORMStore) GetBlock(ctx context.Context, id uint) (*models.BlockInstance, error) {
	return getByField[models.BlockInstance](s.db, ctx, "id", id, models.ErrBlockNotFound)
}

// GetBlockType retrieves a catalogue entry by id.
func (s *GORMStore) GetBlockType(ctx context.Context, id uint) (*models.BlockType, error) {
	return getByField[models.BlockType](s.db, ctx, "id", id, models.ErrBlockTypeNotFound)
}

// ListBlockTypes returns the whole catalogue ordered by name.
func (s *GORMStore) ListBlockTypes(ctx context.Context) ([]*models.BlockType, error) {
	var types []*models.BlockType
	if err := s.db.WithContext(ctx).Order("name").Find(&types).Error; err != nil {
		return nil, err
	}
	return types, nil
}

// CreateBlockType inserts a catalogue entry.
func (s *GORMStore) CreateBlockType(ctx context.Context, t *models.BlockType) error {
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.ErrBlockTypeExists
		}
		return err
	}
	return nil
}

// CreateBlock inserts a block instance.
func (s *GORMStore) CreateBlock(ctx context.Context, b *models.BlockInstance) error {
	return s.db.WithContext(ctx).Create(b).Error
}

// ListProjectBlocks returns every block instance of a project. The
// invalidation controller feeds this single batched fetch into its BFS
// instead of walking the graph row by row.
func (s *GORMStore) ListProjectBlocks(ctx context.Context, projectID uint) ([]*models.BlockInstance, error) {
	return listByField[models.BlockInstance](s.db, ctx, "idproject", projectID, "id")
}

// TerminalBlock returns the project's unique terminal block: the instance
// whose catalogue row declares no outputs.
func (s *GORMStore) TerminalBlock(ctx context.Context, projectID uint) (*models.BlockInstance, error) {
	var block models.BlockInstance
	err := s.db.WithContext(ctx).
		Joins("JOIN blocks_catalogue ON blocks_catalogue.id = blocks.idblock").
		Where("blocks.idproject = ? AND blocks_catalogue.outputs IS NULL", projectID).
		First(&block).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrTerminalNotFound)
	}
	return &block, nil
}

// SetBlockEnabled updates the enabled flag of a block instance.
func (s *GORMStore) SetBlockEnabled(ctx context.Context, id uint, enabled bool) error {
	result := s.db.WithContext(ctx).
		Model(&models.BlockInstance{}).
		Where("id = ?", id).
		Update("enabled", enabled)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrBlockNotFound
	}
	return nil
}
