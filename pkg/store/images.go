package store

import (
	"context"
	"time"

	"github.com/patchbay-dev/patchbay/pkg/models"
)

// ============================================
// INPUT IMAGE OPERATIONS
// ============================================

// CreateInputImage records a freshly uploaded image. The caller is
// responsible for having written the file to the image store first, so
// that the row never references a missing file.
func (s *GORMStore) CreateInputImage(ctx context.Context, img *models.InputImage) error {
	if img.UploadTimestamp.IsZero() {
		img.UploadTimestamp = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(img).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.ErrInputImageExists
		}
		return err
	}
	return nil
}

// GetInputImageByFilename retrieves the upload record whose original
// filename matches. The Load Image block resolves its filename setting
// through this lookup. When the same name was uploaded more than once the
// newest upload wins.
func (s *GORMStore) GetInputImageByFilename(ctx context.Context, filename string) (*models.InputImage, error) {
	var img models.InputImage
	err := s.db.WithContext(ctx).
		Where("original_filename = ?", filename).
		Order("upload_timestamp DESC").
		First(&img).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrInputImageNotFound)
	}
	return &img, nil
}

// ListInputImages returns all upload records, newest first.
func (s *GORMStore) ListInputImages(ctx context.Context) ([]*models.InputImage, error) {
	var images []*models.InputImage
	err := s.db.WithContext(ctx).Order("upload_timestamp DESC").Find(&images).Error
	if err != nil {
		return nil, err
	}
	return images, nil
}
