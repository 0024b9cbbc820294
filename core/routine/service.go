// Package routine composes ordered practice routines and resolves SMART tempos at read time.
package routine

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

// ItemInput is one drill as submitted by a client. Omitted numeric fields take defaults.
type ItemInput struct {
	RudimentID   FlexInt `json:"rudimentId"`
	Duration     FlexInt `json:"duration"`
	TempoMode    string  `json:"tempoMode"`
	TargetTempo  FlexInt `json:"targetTempo"`
	RestDuration FlexInt `json:"restDuration"`
}

// RoutineInput is the payload for a new routine.
type RoutineInput struct {
	Name        string      `json:"name"`
	Description *string     `json:"description"`
	Items       []ItemInput `json:"items"`
}

// RoutinePatch is a partial update. A non-nil Items replaces every existing item.
type RoutinePatch struct {
	Name        *string      `json:"name"`
	Description *string      `json:"description"`
	Items       *[]ItemInput `json:"items"`
}

// TempoSuggester resolves SMART items.
type TempoSuggester interface {
	SuggestTempo(ctx context.Context, rudimentID, userID int64) (int, error)
}

type Service struct {
	routines  repository.RoutineRepository
	rudiments repository.RudimentRepository
	tempo     TempoSuggester
}

func NewService(routines repository.RoutineRepository, rudiments repository.RudimentRepository, tempo TempoSuggester) *Service {
	return &Service{routines: routines, rudiments: rudiments, tempo: tempo}
}

func validateName(name string, fields *apperr.FieldErrors) string {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		fields.Add("name", "is required")
	case utf8.RuneCountInString(name) > model.MaxRoutineNameLen:
		fields.Add("name", fmt.Sprintf("must be at most %d characters", model.MaxRoutineNameLen))
	}
	return name
}

func normalizeDescription(d *string) *string {
	if d == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*d)
	return &trimmed
}

// buildItems validates and defaults items. Position is the index in the submitted list.
func buildItems(in []ItemInput, fields *apperr.FieldErrors) []model.RoutineItem {
	if len(in) == 0 {
		fields.Add("items", "a routine needs at least one item")
		return nil
	}

	items := make([]model.RoutineItem, 0, len(in))
	for i, item := range in {
		prefix := fmt.Sprintf("items[%d].", i)
		out := model.RoutineItem{
			Position:     i,
			TempoMode:    model.TempoModeManual,
			TargetTempo:  model.DefaultTargetTempo,
			RestDuration: model.DefaultRestDuration,
		}

		switch {
		case item.RudimentID.Invalid:
			fields.Add(prefix+"rudimentId", "must be a number")
		case !item.RudimentID.Set || item.RudimentID.Value <= 0:
			fields.Add(prefix+"rudimentId", "is required")
		default:
			out.RudimentID = int64(item.RudimentID.Value)
		}

		switch {
		case item.Duration.Invalid:
			fields.Add(prefix+"duration", "must be a number")
		case !item.Duration.Set:
			fields.Add(prefix+"duration", "is required")
		case item.Duration.Value <= 0 || item.Duration.Value > model.MaxDuration:
			fields.Add(prefix+"duration", fmt.Sprintf("must be between 1 and %d minutes", model.MaxDuration))
		default:
			out.Duration = item.Duration.Value
		}

		if mode := strings.ToUpper(strings.TrimSpace(item.TempoMode)); mode != "" {
			if !model.TempoMode(mode).Valid() {
				fields.Add(prefix+"tempoMode", "must be MANUAL or SMART")
			} else {
				out.TempoMode = model.TempoMode(mode)
			}
		}

		switch {
		case item.TargetTempo.Invalid:
			fields.Add(prefix+"targetTempo", "must be a number")
		case item.TargetTempo.Set && (item.TargetTempo.Value < model.MinTempo || item.TargetTempo.Value > model.MaxTempo):
			fields.Add(prefix+"targetTempo", fmt.Sprintf("must be between %d and %d BPM", model.MinTempo, model.MaxTempo))
		case item.TargetTempo.Set:
			out.TargetTempo = item.TargetTempo.Value
		}

		switch {
		case item.RestDuration.Invalid:
			fields.Add(prefix+"restDuration", "must be a number")
		case item.RestDuration.Set && item.RestDuration.Value < 0:
			fields.Add(prefix+"restDuration", "must not be negative")
		case item.RestDuration.Set:
			out.RestDuration = item.RestDuration.Value
		}

		items = append(items, out)
	}
	return items
}

// checkVisible rejects items that reference rudiments the owner cannot see.
func (s *Service) checkVisible(ctx context.Context, ownerID int64, items []model.RoutineItem) error {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.RudimentID]; !ok {
			seen[item.RudimentID] = struct{}{}
			ids = append(ids, item.RudimentID)
		}
	}
	count, err := s.rudiments.CountVisible(ctx, ownerID, ids)
	if err != nil {
		return err
	}
	if count != int64(len(ids)) {
		return apperr.Validation("invalid reference", apperr.FieldError{Field: "items", Message: "references a rudiment that does not exist"})
	}
	return nil
}

func ownerGuard(userID int64) repository.RoutineGuard {
	return func(r *model.Routine) error {
		if r.UserID != userID {
			return apperr.Forbidden("you do not own this routine")
		}
		return nil
	}
}

// Create stores a routine and its items in one transaction.
func (s *Service) Create(ctx context.Context, ownerID int64, in RoutineInput) (*model.Routine, error) {
	var fields apperr.FieldErrors
	name := validateName(in.Name, &fields)
	items := buildItems(in.Items, &fields)
	if err := fields.Err(); err != nil {
		return nil, err
	}
	if err := s.checkVisible(ctx, ownerID, items); err != nil {
		return nil, err
	}

	routine := &model.Routine{UserID: ownerID, Name: name, Items: items}
	if d := normalizeDescription(in.Description); d != nil && *d != "" {
		routine.Description = d
	}
	if err := s.routines.Create(ctx, routine); err != nil {
		return nil, err
	}

	logger.Info("[Routine] 创建练习计划", logger.Int64("userId", ownerID), logger.Int64("routineId", routine.ID), logger.Int("items", len(items)))
	return s.routines.GetByID(ctx, routine.ID)
}

// GetAll lists the owner's routines newest first.
func (s *Service) GetAll(ctx context.Context, ownerID int64) ([]*model.Routine, error) {
	routines, err := s.routines.ListByUser(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if routines == nil {
		routines = []*model.Routine{}
	}
	return routines, nil
}

// GetByID returns a routine only to its owner.
func (s *Service) GetByID(ctx context.Context, id, userID int64) (*model.Routine, error) {
	routine, err := s.routines.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if routine == nil {
		return nil, apperr.NotFound("routine not found")
	}
	if routine.UserID != userID {
		return nil, apperr.Forbidden("you do not own this routine")
	}
	return routine, nil
}

// Update applies a patch. Ownership is checked again inside the writing transaction.
func (s *Service) Update(ctx context.Context, id int64, patch RoutinePatch, userID int64) (*model.Routine, error) {
	var (
		fields  apperr.FieldErrors
		changes repository.RoutineChanges
	)
	if patch.Name != nil {
		name := validateName(*patch.Name, &fields)
		changes.Name = &name
	}
	changes.Description = normalizeDescription(patch.Description)
	if patch.Items != nil {
		changes.ReplaceItems = true
		changes.Items = buildItems(*patch.Items, &fields)
	}
	if err := fields.Err(); err != nil {
		return nil, err
	}

	// Missing or foreign routines are reported ahead of reference errors.
	if _, err := s.GetByID(ctx, id, userID); err != nil {
		return nil, err
	}
	if changes.ReplaceItems {
		if err := s.checkVisible(ctx, userID, changes.Items); err != nil {
			return nil, err
		}
	}

	if err := s.routines.Update(ctx, id, ownerGuard(userID), changes); err != nil {
		return nil, err
	}

	logger.Info("[Routine] 更新练习计划", logger.Int64("userId", userID), logger.Int64("routineId", id), logger.Bool("replacedItems", changes.ReplaceItems))
	return s.GetByID(ctx, id, userID)
}

// ResolveSmartTempos returns the routine with every SMART item's target tempo replaced by a fresh
// suggestion. Stored items keep their saved target tempo.
func (s *Service) ResolveSmartTempos(ctx context.Context, id, userID int64) (*model.Routine, error) {
	routine, err := s.GetByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	resolved := *routine
	resolved.Items = make([]model.RoutineItem, len(routine.Items))
	copy(resolved.Items, routine.Items)
	for i := range resolved.Items {
		item := &resolved.Items[i]
		if item.TempoMode != model.TempoModeSmart {
			continue
		}
		suggested, err := s.tempo.SuggestTempo(ctx, item.RudimentID, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve item %d: %w", item.Position, err)
		}
		item.TargetTempo = suggested
	}
	return &resolved, nil
}

// Delete removes a routine and its items.
func (s *Service) Delete(ctx context.Context, id, userID int64) error {
	if err := s.routines.Delete(ctx, id, ownerGuard(userID)); err != nil {
		return err
	}
	logger.Info("[Routine] 删除练习计划", logger.Int64("userId", userID), logger.Int64("routineId", id))
	return nil
}
