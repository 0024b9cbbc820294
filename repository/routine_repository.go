package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fortify/core/apperr"
	"fortify/model"

	"gorm.io/gorm"
)

// RoutineGuard inspects a freshly read routine inside the writing transaction and vetoes with an error.
type RoutineGuard func(r *model.Routine) error

// RoutineChanges describes an update. Nil fields are left alone; ReplaceItems swaps the whole item list.
type RoutineChanges struct {
	Name         *string
	Description  *string // empty string clears the description
	ReplaceItems bool
	Items        []model.RoutineItem
}

// RoutineRepository defines routine persistence. Items are always read ordered by position.
type RoutineRepository interface {
	Create(ctx context.Context, routine *model.Routine) error
	GetByID(ctx context.Context, id int64) (*model.Routine, error)
	ListByUser(ctx context.Context, userID int64) ([]*model.Routine, error)
	Update(ctx context.Context, id int64, guard RoutineGuard, changes RoutineChanges) error
	Delete(ctx context.Context, id int64, guard RoutineGuard) error
}

type gormRoutineRepository struct {
	db *gorm.DB
}

// NewGormRoutineRepository creates a RoutineRepository backed by gorm.
func NewGormRoutineRepository(db *gorm.DB) RoutineRepository {
	return &gormRoutineRepository{db: db}
}

func withOrderedItems(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("routine_items.position ASC").Order("routine_items.id ASC")
		}).
		Preload("Items.Rudiment")
}

// Create stores the routine and its items in one transaction.
func (r *gormRoutineRepository) Create(ctx context.Context, routine *model.Routine) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items := routine.Items
		routine.Items = nil
		if err := tx.Omit("User").Create(routine).Error; err != nil {
			return err
		}
		if len(items) > 0 {
			for i := range items {
				items[i].ID = 0
				items[i].RoutineID = routine.ID
			}
			if err := tx.Omit("Rudiment").Create(&items).Error; err != nil {
				return err
			}
		}
		routine.Items = items
		return nil
	})
	if err != nil {
		return translateError(fmt.Errorf("failed to create routine: %w", err))
	}
	return nil
}

// GetByID returns nil when the routine does not exist.
func (r *gormRoutineRepository) GetByID(ctx context.Context, id int64) (*model.Routine, error) {
	var routines []*model.Routine
	err := withOrderedItems(r.db.WithContext(ctx)).
		Where("id = ?", id).
		Limit(1).
		Find(&routines).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load routine %d: %w", id, err)
	}
	if len(routines) == 0 {
		return nil, nil
	}
	return routines[0], nil
}

// ListByUser returns the user's routines newest first.
func (r *gormRoutineRepository) ListByUser(ctx context.Context, userID int64) ([]*model.Routine, error) {
	var routines []*model.Routine
	err := withOrderedItems(r.db.WithContext(ctx)).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&routines).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list routines: %w", err)
	}
	return routines, nil
}

func loadGuarded(tx *gorm.DB, id int64, guard RoutineGuard) (*model.Routine, error) {
	var routine model.Routine
	if err := tx.Where("id = ?", id).Take(&routine).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("routine not found")
		}
		return nil, err
	}
	if guard != nil {
		if err := guard(&routine); err != nil {
			return nil, err
		}
	}
	return &routine, nil
}

// Update applies changes after guard approves the freshly read routine. Replacing items deletes every
// existing item and inserts the new list inside the same transaction.
func (r *gormRoutineRepository) Update(ctx context.Context, id int64, guard RoutineGuard, changes RoutineChanges) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		routine, err := loadGuarded(tx, id, guard)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{"updated_at": time.Now().UTC()}
		if changes.Name != nil {
			updates["name"] = *changes.Name
		}
		if changes.Description != nil {
			if *changes.Description == "" {
				updates["description"] = nil
			} else {
				updates["description"] = *changes.Description
			}
		}
		res := tx.Model(&model.Routine{}).
			Where("id = ? AND user_id = ?", routine.ID, routine.UserID).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("routine not found")
		}

		if !changes.ReplaceItems {
			return nil
		}
		if err := tx.Where("routine_id = ?", routine.ID).Delete(&model.RoutineItem{}).Error; err != nil {
			return err
		}
		if len(changes.Items) == 0 {
			return nil
		}
		items := make([]model.RoutineItem, len(changes.Items))
		copy(items, changes.Items)
		for i := range items {
			items[i].ID = 0
			items[i].RoutineID = routine.ID
		}
		return tx.Omit("Rudiment").Create(&items).Error
	})
	if err != nil {
		return translateError(fmt.Errorf("failed to update routine: %w", err))
	}
	return nil
}

// Delete removes the routine and its items after guard approves the freshly read routine.
func (r *gormRoutineRepository) Delete(ctx context.Context, id int64, guard RoutineGuard) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		routine, err := loadGuarded(tx, id, guard)
		if err != nil {
			return err
		}
		if err := tx.Where("routine_id = ?", routine.ID).Delete(&model.RoutineItem{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ? AND user_id = ?", routine.ID, routine.UserID).Delete(&model.Routine{}).Error
	})
	if err != nil {
		return translateError(fmt.Errorf("failed to delete routine: %w", err))
	}
	return nil
}
