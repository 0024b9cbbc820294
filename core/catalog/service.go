// Package catalog manages standard and user-owned rudiments.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"fortify/core/apperr"
	"fortify/logger"
	"fortify/model"
	"fortify/repository"
)

// MaxNameLength bounds rudiment names.
const MaxNameLength = 120

// CreateRudimentInput is the payload for a new custom rudiment.
type CreateRudimentInput struct {
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	Description    *string `json:"description"`
	TempoIncrement int     `json:"tempoIncrement"`
}

type Service struct {
	rudiments repository.RudimentRepository
}

func NewService(rudiments repository.RudimentRepository) *Service {
	return &Service{rudiments: rudiments}
}

// Create adds a custom rudiment owned by ownerID.
func (s *Service) Create(ctx context.Context, ownerID int64, in CreateRudimentInput) (*model.Rudiment, error) {
	var fields apperr.FieldErrors
	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		fields.Add("name", "is required")
	case utf8.RuneCountInString(name) > MaxNameLength:
		fields.Add("name", fmt.Sprintf("must be at most %d characters", MaxNameLength))
	}
	if in.TempoIncrement < 0 {
		fields.Add("tempoIncrement", "must be a positive number")
	}
	if err := fields.Err(); err != nil {
		return nil, err
	}

	increment := in.TempoIncrement
	if increment == 0 {
		increment = model.DefaultTempoIncrement
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = CategoryCustom
	}
	var description *string
	if in.Description != nil {
		if d := strings.TrimSpace(*in.Description); d != "" {
			description = &d
		}
	}

	owner := ownerID
	rudiment := &model.Rudiment{
		Name:           name,
		Category:       category,
		Description:    description,
		TempoIncrement: increment,
		UserID:         &owner,
	}
	if err := s.rudiments.Create(ctx, rudiment); err != nil {
		return nil, err
	}
	logger.Info("[Catalog] 创建自定义练习", logger.Int64("userId", ownerID), logger.Int64("rudimentId", rudiment.ID))
	return rudiment, nil
}

// ListVisible returns the standard set followed by the caller's own rudiments.
func (s *Service) ListVisible(ctx context.Context, userID int64) ([]*model.Rudiment, error) {
	return s.rudiments.ListVisible(ctx, userID)
}

// Delete removes a custom rudiment. Standard rudiments can never be deleted, even by their seeder.
func (s *Service) Delete(ctx context.Context, id, userID int64) error {
	err := s.rudiments.Delete(ctx, id, func(r *model.Rudiment) error {
		if r.IsStandard {
			return apperr.Forbidden("standard rudiments cannot be deleted")
		}
		if !r.OwnedBy(userID) {
			return apperr.Forbidden("you do not own this rudiment")
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("[Catalog] 删除自定义练习", logger.Int64("userId", userID), logger.Int64("rudimentId", id))
	return nil
}

// SeedStandard inserts any missing standard rudiments and reports how many were added.
func (s *Service) SeedStandard(ctx context.Context) (int, error) {
	created, err := s.rudiments.EnsureStandard(ctx, StandardRudiments())
	if err != nil {
		return 0, err
	}
	if created > 0 {
		logger.Info("[Catalog] 标准练习已初始化", logger.Int("created", created))
	}
	return created, nil
}
