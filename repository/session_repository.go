package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fortify/model"

	"gorm.io/gorm"
)

// SessionFilter narrows session listings. Nil or empty fields do not filter.
type SessionFilter struct {
	RudimentID *int64
	Quality    *model.Quality
	From       *time.Time // inclusive
	To         *time.Time // exclusive
	Search     string     // case-insensitive rudiment name substring
}

// MostPracticed is the rudiment a user has logged the most sessions for.
type MostPracticed struct {
	RudimentID int64
	Name       string
	Sessions   int64
}

// SessionRepository defines session log persistence and the rollups read from it.
type SessionRepository interface {
	Create(ctx context.Context, session *model.PracticeSession) error
	Latest(ctx context.Context, userID, rudimentID int64) (*model.PracticeSession, error)
	List(ctx context.Context, userID int64, filter SessionFilter, offset, limit int) ([]*model.PracticeSession, int64, error)
	ListAll(ctx context.Context, userID int64, filter SessionFilter) ([]*model.PracticeSession, error)
	ListDurations(ctx context.Context, userID int64) ([]model.PracticeSession, error)
	TotalDuration(ctx context.Context, userID int64) (int64, error)
	MaxTempo(ctx context.Context, userID int64) (int, error)
	MostPracticed(ctx context.Context, userID int64) (*MostPracticed, error)
}

type gormSessionRepository struct {
	db *gorm.DB
}

// NewGormSessionRepository creates a SessionRepository backed by gorm.
func NewGormSessionRepository(db *gorm.DB) SessionRepository {
	return &gormSessionRepository{db: db}
}

// Create appends a session. An unknown rudiment surfaces as an invalid reference.
func (r *gormSessionRepository) Create(ctx context.Context, session *model.PracticeSession) error {
	if err := r.db.WithContext(ctx).Omit("Rudiment", "User").Create(session).Error; err != nil {
		return translateError(fmt.Errorf("failed to create session: %w", err))
	}
	return nil
}

// Latest returns the user's most recent session for a rudiment, or nil. Equal dates fall back to insertion order.
func (r *gormSessionRepository) Latest(ctx context.Context, userID, rudimentID int64) (*model.PracticeSession, error) {
	var sessions []model.PracticeSession
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND rudiment_id = ?", userID, rudimentID).
		Order("date DESC").
		Order("id DESC").
		Limit(1).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load latest session: %w", err)
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return &sessions[0], nil
}

func (r *gormSessionRepository) filtered(ctx context.Context, userID int64, filter SessionFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&model.PracticeSession{}).
		Where("practice_sessions.user_id = ?", userID)

	if filter.RudimentID != nil {
		q = q.Where("practice_sessions.rudiment_id = ?", *filter.RudimentID)
	}
	if filter.Quality != nil {
		q = q.Where("practice_sessions.quality = ?", *filter.Quality)
	}
	if filter.From != nil {
		q = q.Where("practice_sessions.date >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		q = q.Where("practice_sessions.date < ?", filter.To.UTC())
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		q = q.Joins("JOIN rudiments ON rudiments.id = practice_sessions.rudiment_id").
			Where("LOWER(rudiments.name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	return q
}

// List returns one page of sessions, newest first, plus the total matching count.
func (r *gormSessionRepository) List(ctx context.Context, userID int64, filter SessionFilter, offset, limit int) ([]*model.PracticeSession, int64, error) {
	var total int64
	if err := r.filtered(ctx, userID, filter).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	var sessions []*model.PracticeSession
	err := r.filtered(ctx, userID, filter).
		Preload("Rudiment").
		Order("practice_sessions.date DESC").
		Order("practice_sessions.id DESC").
		Offset(offset).
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, total, nil
}

// ListAll returns every matching session, newest first.
func (r *gormSessionRepository) ListAll(ctx context.Context, userID int64, filter SessionFilter) ([]*model.PracticeSession, error) {
	var sessions []*model.PracticeSession
	err := r.filtered(ctx, userID, filter).
		Preload("Rudiment").
		Order("practice_sessions.date DESC").
		Order("practice_sessions.id DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to export sessions: %w", err)
	}
	return sessions, nil
}

// ListDurations loads only the date and duration of every session the user logged.
func (r *gormSessionRepository) ListDurations(ctx context.Context, userID int64) ([]model.PracticeSession, error) {
	var sessions []model.PracticeSession
	err := r.db.WithContext(ctx).
		Select("date", "duration").
		Where("user_id = ?", userID).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load session durations: %w", err)
	}
	return sessions, nil
}

func (r *gormSessionRepository) TotalDuration(ctx context.Context, userID int64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.PracticeSession{}).
		Select("COALESCE(SUM(duration), 0)").
		Where("user_id = ?", userID).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum durations: %w", err)
	}
	return total, nil
}

func (r *gormSessionRepository) MaxTempo(ctx context.Context, userID int64) (int, error) {
	var fastest int
	err := r.db.WithContext(ctx).Model(&model.PracticeSession{}).
		Select("COALESCE(MAX(tempo), 0)").
		Where("user_id = ?", userID).
		Scan(&fastest).Error
	if err != nil {
		return 0, fmt.Errorf("failed to find fastest tempo: %w", err)
	}
	return fastest, nil
}

// MostPracticed returns nil when the user has no sessions. Ties go to the lowest rudiment id.
func (r *gormSessionRepository) MostPracticed(ctx context.Context, userID int64) (*MostPracticed, error) {
	var rows []MostPracticed
	err := r.db.WithContext(ctx).Table("practice_sessions").
		Select("practice_sessions.rudiment_id AS rudiment_id, rudiments.name AS name, COUNT(*) AS sessions").
		Joins("JOIN rudiments ON rudiments.id = practice_sessions.rudiment_id").
		Where("practice_sessions.user_id = ?", userID).
		Group("practice_sessions.rudiment_id, rudiments.name").
		Order("sessions DESC").
		Order("practice_sessions.rudiment_id ASC").
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find most practiced rudiment: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
