// Package repository holds gorm helpers shared by the entity stores.
package repository

import (
	"context"
	"errors"
	"fmt"

	pkgerrors "github.com/agora-social/agora/pkg/errors"
	"github.com/agora-social/agora/pkg/pagination"
	"gorm.io/gorm"
)

// Create inserts entity, mapping unique violations to Conflict.
func Create[T any](ctx context.Context, db *gorm.DB, entity *T, what string) error {
	if err := db.WithContext(ctx).Create(entity).Error; err != nil {
		if pkgerrors.IsDuplicateError(err) {
			return pkgerrors.Conflict(what + " already exists")
		}
		return fmt.Errorf("failed to create %s: %w", what, err)
	}
	return nil
}

// FindByID loads one row by primary key.
func FindByID[T any](ctx context.Context, db *gorm.DB, id string, what string) (*T, error) {
	var entity T
	if err := db.WithContext(ctx).First(&entity, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound(what + " not found")
		}
		return nil, fmt.Errorf("failed to get %s: %w", what, err)
	}
	return &entity, nil
}

// FindOne loads the first row matching the scoped query.
func FindOne[T any](ctx context.Context, query *gorm.DB, what string) (*T, error) {
	var entity T
	if err := query.WithContext(ctx).First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound(what + " not found")
		}
		return nil, fmt.Errorf("failed to find %s: %w", what, err)
	}
	return &entity, nil
}

// FindByIDs loads every row whose id is in ids.
func FindByIDs[T any](ctx context.Context, db *gorm.DB, ids []string) ([]T, error) {
	var entities []T
	if len(ids) == 0 {
		return entities, nil
	}
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("failed to list by ids: %w", err)
	}
	return entities, nil
}

// Paginate counts the scoped query and loads one normalized page of it.
// A cursor switches to seek pagination over ascending ids, which are
// time-ordered v7 UUIDs.
func Paginate[T any](ctx context.Context, query *gorm.DB, paging pagination.Paging) ([]T, int64, error) {
	var total int64
	if err := query.Session(&gorm.Session{}).WithContext(ctx).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count: %w", err)
	}

	page := query.Session(&gorm.Session{}).WithContext(ctx).Limit(paging.Limit)
	if paging.Cursor != "" {
		page = page.Where("id > ?", paging.Cursor).Order("id asc")
	} else {
		page = page.Order(paging.OrderClause()).Offset(paging.Offset())
	}

	var entities []T
	err := page.Find(&entities).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list: %w", err)
	}
	return entities, total, nil
}

// Updates applies a column map to the row with id.
func Updates[T any](ctx context.Context, db *gorm.DB, id string, values map[string]interface{}, what string) error {
	var model T
	result := db.WithContext(ctx).Model(&model).Where("id = ?", id).Updates(values)
	if result.Error != nil {
		if pkgerrors.IsDuplicateError(result.Error) {
			return pkgerrors.Conflict(what + " already exists")
		}
		return fmt.Errorf("failed to update %s: %w", what, result.Error)
	}
	if result.RowsAffected == 0 {
		return pkgerrors.NotFound(what + " not found")
	}
	return nil
}

// Delete removes the row with id.
func Delete[T any](ctx context.Context, db *gorm.DB, id string, what string) error {
	var entity T
	result := db.WithContext(ctx).Delete(&entity, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete %s: %w", what, result.Error)
	}
	if result.RowsAffected == 0 {
		return pkgerrors.NotFound(what + " not found")
	}
	return nil
}

// Increment adds step to column in a single UPDATE, so concurrent callers
// never lose an update.
func Increment[T any](ctx context.Context, db *gorm.DB, id, column string, step int, what string) error {
	return updateCounter[T](ctx, db, id, column, gorm.Expr(column+" + ?", step), what)
}

// DecrementClamped subtracts step from column in a single UPDATE and never
// lets the value drop below zero.
func DecrementClamped[T any](ctx context.Context, db *gorm.DB, id, column string, step int, what string) error {
	expr := gorm.Expr("CASE WHEN "+column+" >= ? THEN "+column+" - ? ELSE 0 END", step, step)
	return updateCounter[T](ctx, db, id, column, expr, what)
}

func updateCounter[T any](ctx context.Context, db *gorm.DB, id, column string, expr interface{}, what string) error {
	var model T
	result := db.WithContext(ctx).Model(&model).Where("id = ?", id).UpdateColumn(column, expr)
	if result.Error != nil {
		return fmt.Errorf("failed to update %s.%s: %w", what, column, result.Error)
	}
	if result.RowsAffected == 0 {
		return pkgerrors.NotFound(what + " not found")
	}
	return nil
}
