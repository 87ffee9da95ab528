package store

import (
	"context"

	"gorm.io/gorm"
)

// Generic GORM helpers shared by the store implementation files. They
// operate on the raw *gorm.DB and handle context propagation and
// not-found error conversion uniformly.

// getByField retrieves a single record of type T by matching field=value.
// gorm.ErrRecordNotFound is converted to the provided notFoundErr for
// consistent domain error mapping.
func getByField[T any](db *gorm.DB, ctx context.Context, field string, value any, notFoundErr error) (*T, error) {
	var result T
	if err := db.WithContext(ctx).Where(field+" = ?", value).First(&result).Error; err != nil {
		return nil, convertNotFoundError(err, notFoundErr)
	}
	return &result, nil
}

// listByField retrieves all records of type T matching field=value,
// optionally ordered. Returns an empty slice on success with no records.
func listByField[T any](db *gorm.DB, ctx context.Context, field string, value any, order string) ([]*T, error) {
	var results []*T
	q := db.WithContext(ctx).Where(field+" = ?", value)
	if order != "" {
		q = q.Order(order)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// deleteByField deletes records of type T matching field=value. Deleting
// nothing is not an error; callers needing idempotent cleanup rely on that.
func deleteByField[T any](db *gorm.DB, ctx context.Context, field string, value any) error {
	var zero T
	return db.WithContext(ctx).Where(field+" = ?", value).Delete(&zero).Error
}
