// Package sessionlog records practice sessions and derives exports and history from them.
package sessionlog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"fortify/core/apperr"
	"fortify/events"
	"fortify/logger"
	"fortify/model"
	"fortify/observability"
	"fortify/repository"

	"github.com/google/uuid"
)

// Paging defaults.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

const publishTimeout = 3 * time.Second

// LogSessionInput is the payload for a new practice session.
type LogSessionInput struct {
	RudimentID int64 `json:"rudimentId"`
	Duration   int   `json:"duration"`
	Tempo      int   `json:"tempo"`
	Quality    int   `json:"quality"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// Page is a page of sessions, newest first.
type Page struct {
	Sessions   []*model.PracticeSession `json:"sessions"`
	Pagination Pagination               `json:"pagination"`
}

// StatsInvalidator drops cached dashboard figures for a user.
type StatsInvalidator interface {
	Invalidate(ctx context.Context, userID int64) error
}

// ArchiveStore uploads an export and returns a time-limited download link.
type ArchiveStore interface {
	Upload(ctx context.Context, key, contentType string, body []byte) (url string, expiresAt time.Time, err error)
}

// Archive is a stored export.
type Archive struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ErrArchiveUnavailable is returned when no object store is configured.
var ErrArchiveUnavailable = errors.New("export archive is not configured")

type Service struct {
	sessions  repository.SessionRepository
	rudiments repository.RudimentRepository
	stats     StatsInvalidator
	publisher events.Publisher
	archive   ArchiveStore
	now       func() time.Time
}

// NewService wires the session log. stats, publisher and archive may be nil.
func NewService(
	sessions repository.SessionRepository,
	rudiments repository.RudimentRepository,
	stats StatsInvalidator,
	publisher events.Publisher,
	archive ArchiveStore,
) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		sessions:  sessions,
		rudiments: rudiments,
		stats:     stats,
		publisher: publisher,
		archive:   archive,
		now:       time.Now,
	}
}

func (in LogSessionInput) validate() error {
	var fields apperr.FieldErrors
	if in.RudimentID <= 0 {
		fields.Add("rudimentId", "is required")
	}
	if in.Duration <= 0 || in.Duration > model.MaxDuration {
		fields.Add("duration", fmt.Sprintf("must be between 1 and %d minutes", model.MaxDuration))
	}
	if in.Tempo < model.MinTempo || in.Tempo > model.MaxTempo {
		fields.Add("tempo", fmt.Sprintf("must be between %d and %d BPM", model.MinTempo, model.MaxTempo))
	}
	if !model.Quality(in.Quality).Valid() {
		fields.Add("quality", fmt.Sprintf("must be between %d and %d", model.MinQuality, model.MaxQuality))
	}
	return fields.Err()
}

// LogSession validates and stores a session stamped with the current UTC time.
func (s *Service) LogSession(ctx context.Context, userID int64, in LogSessionInput) (*model.PracticeSession, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	rudiment, err := s.rudiments.GetByID(ctx, in.RudimentID)
	if err != nil {
		return nil, err
	}
	if rudiment == nil || !rudiment.VisibleTo(userID) {
		return nil, apperr.InvalidReference(fmt.Errorf("rudiment %d does not exist", in.RudimentID))
	}

	session := &model.PracticeSession{
		UserID:     userID,
		RudimentID: in.RudimentID,
		Date:       s.now().UTC(),
		Duration:   in.Duration,
		Tempo:      in.Tempo,
		Quality:    model.Quality(in.Quality),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	session.Rudiment = rudiment

	observability.RecordSessionLogged(in.Quality)
	logger.Info("[SessionLog] 练习记录已保存",
		logger.Int64("userId", userID),
		logger.Int64("sessionId", session.ID),
		logger.Int("tempo", session.Tempo),
		logger.Int("quality", in.Quality))

	s.afterLog(ctx, session)
	return session, nil
}

// afterLog runs the side effects of a stored session. Their failures never fail the request.
func (s *Service) afterLog(ctx context.Context, session *model.PracticeSession) {
	if s.stats != nil {
		if err := s.stats.Invalidate(ctx, session.UserID); err != nil {
			logger.Warn("[SessionLog] 清除统计缓存失败", logger.Int64("userId", session.UserID), logger.ErrorField(err))
		}
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	err := s.publisher.PublishSessionLogged(pubCtx, events.SessionLogged{
		SessionID:  session.ID,
		UserID:     session.UserID,
		RudimentID: session.RudimentID,
		Duration:   session.Duration,
		Tempo:      session.Tempo,
		Quality:    int(session.Quality),
		Date:       session.Date,
	})
	if err != nil {
		observability.RecordPublishError(events.EventSessionLogged)
		logger.Warn("[SessionLog] 事件发布失败", logger.Int64("sessionId", session.ID), logger.ErrorField(err))
	}
}

// NormalizePage applies paging defaults: page starts at 1, size defaults to 20 and is capped at 100.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// List returns one page of the user's sessions, newest first, with the rudiment joined.
func (s *Service) List(ctx context.Context, userID int64, filter repository.SessionFilter, page, pageSize int) (*Page, error) {
	page, pageSize = NormalizePage(page, pageSize)

	sessions, total, err := s.sessions.List(ctx, userID, filter, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []*model.PracticeSession{}
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &Page{
		Sessions:   sessions,
		Pagination: Pagination{Page: page, Limit: pageSize, Total: total, TotalPages: totalPages},
	}, nil
}

// Export renders every session matching filter, newest first.
func (s *Service) Export(ctx context.Context, userID int64, format Format, filter repository.SessionFilter) (*ExportFile, error) {
	sessions, err := s.sessions.ListAll(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	return Render(format, sessions, s.now())
}

// ArchiveExport renders an export and stores it in object storage.
func (s *Service) ArchiveExport(ctx context.Context, userID int64, format Format, filter repository.SessionFilter) (*Archive, error) {
	if s.archive == nil {
		return nil, ErrArchiveUnavailable
	}

	file, err := s.Export(ctx, userID, format, filter)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("exports/%d/%s-%s", userID, uuid.NewString(), file.Filename)
	url, expiresAt, err := s.archive.Upload(ctx, key, file.ContentType, file.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to archive export: %w", err)
	}

	logger.Info("[SessionLog] 导出已归档", logger.Int64("userId", userID), logger.String("key", key))
	return &Archive{URL: url, Key: key, ExpiresAt: expiresAt}, nil
}

// ConsistencyHistory returns total minutes per UTC calendar day with at least one session, oldest first.
func (s *Service) ConsistencyHistory(ctx context.Context, userID int64) ([]model.DailyPractice, error) {
	sessions, err := s.sessions.ListDurations(ctx, userID)
	if err != nil {
		return nil, err
	}

	minutes := make(map[string]int)
	for _, session := range sessions {
		minutes[session.Date.UTC().Format(time.DateOnly)] += session.Duration
	}

	history := make([]model.DailyPractice, 0, len(minutes))
	for date, count := range minutes {
		history = append(history, model.DailyPractice{Date: date, Count: count})
	}
	sort.Slice(history, func(i, j int) bool { return history[i].Date < history[j].Date })
	return history, nil
}
