package repository

import (
	"context"
	"errors"
	"fmt"

	"fortify/core/apperr"
	"fortify/model"

	"gorm.io/gorm"
)

// RudimentGuard inspects a freshly read rudiment inside the deleting transaction and vetoes with an error.
type RudimentGuard func(r *model.Rudiment) error

// RudimentRepository defines catalog persistence.
type RudimentRepository interface {
	Create(ctx context.Context, rudiment *model.Rudiment) error
	GetByID(ctx context.Context, id int64) (*model.Rudiment, error)
	ListVisible(ctx context.Context, userID int64) ([]*model.Rudiment, error)
	CountVisible(ctx context.Context, userID int64, ids []int64) (int64, error)
	Delete(ctx context.Context, id int64, guard RudimentGuard) error
	EnsureStandard(ctx context.Context, rudiments []model.Rudiment) (int, error)
}

type gormRudimentRepository struct {
	db *gorm.DB
}

// NewGormRudimentRepository creates a RudimentRepository backed by gorm.
func NewGormRudimentRepository(db *gorm.DB) RudimentRepository {
	return &gormRudimentRepository{db: db}
}

func (r *gormRudimentRepository) Create(ctx context.Context, rudiment *model.Rudiment) error {
	if err := r.db.WithContext(ctx).Create(rudiment).Error; err != nil {
		return translateError(fmt.Errorf("failed to create rudiment: %w", err))
	}
	return nil
}

// GetByID returns nil when the rudiment does not exist.
func (r *gormRudimentRepository) GetByID(ctx context.Context, id int64) (*model.Rudiment, error) {
	var rudiment model.Rudiment
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&rudiment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load rudiment %d: %w", id, err)
	}
	return &rudiment, nil
}

// ListVisible returns standard rudiments first, then the user's own, each group by name.
func (r *gormRudimentRepository) ListVisible(ctx context.Context, userID int64) ([]*model.Rudiment, error) {
	var rudiments []*model.Rudiment
	err := r.db.WithContext(ctx).
		Where("is_standard = ? OR user_id = ?", true, userID).
		Order("is_standard DESC").
		Order("name ASC").
		Order("id ASC").
		Find(&rudiments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list rudiments: %w", err)
	}
	return rudiments, nil
}

// CountVisible counts how many of ids are standard or owned by userID.
func (r *gormRudimentRepository) CountVisible(ctx context.Context, userID int64, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Rudiment{}).
		Where("id IN ?", ids).
		Where("is_standard = ? OR user_id = ?", true, userID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count rudiments: %w", err)
	}
	return count, nil
}

// Delete re-reads the rudiment inside a transaction, lets guard veto, then deletes it.
func (r *gormRudimentRepository) Delete(ctx context.Context, id int64, guard RudimentGuard) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rudiment model.Rudiment
		if err := tx.Where("id = ?", id).Take(&rudiment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("rudiment not found")
			}
			return err
		}
		if guard != nil {
			if err := guard(&rudiment); err != nil {
				return err
			}
		}
		if err := ensureUnreferenced(tx, id); err != nil {
			return err
		}

		res := tx.Where("id = ? AND is_standard = ?", id, false).Delete(&model.Rudiment{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("rudiment not found")
		}
		return nil
	})
	return translateError(err)
}

// ensureUnreferenced refuses to drop a rudiment that the session log or a routine still points at.
// Sessions are immutable and routines must keep at least one contiguous item.
func ensureUnreferenced(tx *gorm.DB, id int64) error {
	var sessions int64
	if err := tx.Model(&model.PracticeSession{}).Where("rudiment_id = ?", id).Count(&sessions).Error; err != nil {
		return fmt.Errorf("failed to count sessions for rudiment %d: %w", id, err)
	}
	if sessions > 0 {
		return apperr.Conflict("rudiment has logged practice sessions", fmt.Errorf("%d sessions reference rudiment %d", sessions, id))
	}

	var items int64
	if err := tx.Model(&model.RoutineItem{}).Where("rudiment_id = ?", id).Count(&items).Error; err != nil {
		return fmt.Errorf("failed to count routine items for rudiment %d: %w", id, err)
	}
	if items > 0 {
		return apperr.Conflict("rudiment is used by a routine", fmt.Errorf("%d routine items reference rudiment %d", items, id))
	}
	return nil
}

// EnsureStandard inserts each standard rudiment that is not already present by name.
func (r *gormRudimentRepository) EnsureStandard(ctx context.Context, rudiments []model.Rudiment) (int, error) {
	created := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range rudiments {
			rudiment := rudiments[i]
			rudiment.IsStandard = true
			rudiment.UserID = nil

			var existing int64
			if err := tx.Model(&model.Rudiment{}).
				Where("name = ? AND is_standard = ?", rudiment.Name, true).
				Count(&existing).Error; err != nil {
				return fmt.Errorf("failed to check %q: %w", rudiment.Name, err)
			}
			if existing > 0 {
				continue
			}
			if err := tx.Create(&rudiment).Error; err != nil {
				return fmt.Errorf("failed to seed %q: %w", rudiment.Name, err)
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}
