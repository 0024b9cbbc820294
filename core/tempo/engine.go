// Package tempo recommends the next practice tempo from the most recent session.
package tempo

import (
	"context"
	"fmt"

	"fortify/core/apperr"
	"fortify/model"
	"fortify/observability"
	"fortify/repository"
)

// Adjustment returns the BPM step earned by a quality rating.
func Adjustment(q model.Quality) int {
	switch q {
	case model.QualityFlawless:
		return 5
	case model.QualityGood:
		return 2
	case model.QualitySloppy:
		return -5
	default:
		return 0
	}
}

// Suggest computes the next tempo from the latest session. maxTempo <= 0 means no ceiling.
// A cold start is always ColdStartTempo and the MinTempo floor wins over any ceiling.
func Suggest(last *model.PracticeSession, maxTempo int) int {
	if last == nil {
		return model.ColdStartTempo
	}
	return clamp(last.Tempo+Adjustment(last.Quality), maxTempo)
}

func clamp(candidate, maxTempo int) int {
	if maxTempo > 0 && candidate > maxTempo {
		candidate = maxTempo
	}
	if candidate < model.MinTempo {
		candidate = model.MinTempo
	}
	return candidate
}

// Engine resolves suggestions against stored history. It holds no state between calls.
type Engine struct {
	rudiments repository.RudimentRepository
	sessions  repository.SessionRepository
	maxTempo  int
}

func NewEngine(rudiments repository.RudimentRepository, sessions repository.SessionRepository, maxTempo int) *Engine {
	return &Engine{rudiments: rudiments, sessions: sessions, maxTempo: maxTempo}
}

// SuggestTempo returns the recommended tempo for userID on rudimentID.
// Custom rudiments of other users are reported as missing.
func (e *Engine) SuggestTempo(ctx context.Context, rudimentID, userID int64) (int, error) {
	rudiment, err := e.rudiments.GetByID(ctx, rudimentID)
	if err != nil {
		return 0, fmt.Errorf("failed to load rudiment %d: %w", rudimentID, err)
	}
	if rudiment == nil || !rudiment.VisibleTo(userID) {
		return 0, apperr.NotFound("rudiment not found")
	}

	last, err := e.sessions.Latest(ctx, userID, rudimentID)
	if err != nil {
		return 0, fmt.Errorf("failed to load latest session: %w", err)
	}

	if last == nil {
		observability.RecordTempoSuggestion(observability.SourceColdStart)
	} else {
		observability.RecordTempoSuggestion(observability.SourceProgression)
	}
	return Suggest(last, e.maxTempo), nil
}
