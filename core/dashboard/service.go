// Package dashboard aggregates headline practice statistics from the session log.
package dashboard

import (
	"context"

	"fortify/logger"
	"fortify/model"
	"fortify/observability"
	"fortify/repository"

	"golang.org/x/sync/errgroup"
)

// StatsCache is an optional read-through cache for computed stats.
type StatsCache interface {
	Get(ctx context.Context, userID int64) (*model.DashboardStats, error)
	Set(ctx context.Context, userID int64, stats *model.DashboardStats) error
}

type Service struct {
	sessions repository.SessionRepository
	cache    StatsCache
}

// NewService creates the aggregator. cache may be nil.
func NewService(sessions repository.SessionRepository, cache StatsCache) *Service {
	return &Service{sessions: sessions, cache: cache}
}

// GetStats returns total minutes, fastest tempo and the most practiced rudiment.
// A user without sessions gets zeros and "N/A".
func (s *Service) GetStats(ctx context.Context, userID int64) (*model.DashboardStats, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, userID)
		if err != nil {
			logger.Warn("[Dashboard] 读取统计缓存失败", logger.Int64("userId", userID), logger.ErrorField(err))
		} else {
			observability.RecordCacheLookup(cached != nil)
			if cached != nil {
				return cached, nil
			}
		}
	}

	stats, err := s.compute(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, userID, stats); err != nil {
			logger.Warn("[Dashboard] 写入统计缓存失败", logger.Int64("userId", userID), logger.ErrorField(err))
		}
	}
	return stats, nil
}

func (s *Service) compute(ctx context.Context, userID int64) (*model.DashboardStats, error) {
	var (
		total   int64
		fastest int
		most    *repository.MostPracticed
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = s.sessions.TotalDuration(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		fastest, err = s.sessions.MaxTempo(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		most, err = s.sessions.MostPracticed(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := &model.DashboardStats{
		TotalTime:     total,
		FastestTempo:  fastest,
		MostPracticed: model.NoRudimentPracticed,
	}
	if most != nil {
		stats.MostPracticed = most.Name
	}
	return stats, nil
}
