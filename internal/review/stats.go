package review

import (
	"fmt"

	"github.com/studyowl/backend/internal/storage/models"
)

const (
	recentWindow   = 10
	trendThreshold = 5.0
)

const (
	TrendImproving = "improving"
	TrendDeclining = "declining"
	TrendStable    = "stable"
)

// SessionStats aggregates all persisted sessions for a knowledge base.
func (e *Engine) SessionStats(kbID string) (*models.SessionStats, error) {
	sessions, err := e.store.ListReviewSessions(kbID, models.HistoryFilter{})
	if err != nil {
		return nil, fmt.Errorf("list review sessions: %w", err)
	}

	stats := &models.SessionStats{}
	if len(sessions) == 0 {
		return stats, nil
	}

	var sum float64
	for _, s := range sessions {
		sum += s.AverageScore
		if s.AverageScore > stats.MaxAverageScore {
			stats.MaxAverageScore = s.AverageScore
		}
		stats.TotalDurationSec += s.DurationSec
	}
	stats.TotalSessions = len(sessions)
	stats.MeanAverageScore = sum / float64(len(sessions))
	return stats, nil
}

// LearningProgress summarizes answer history: overall average, the average
// of the most recent answers, and a coarse trend. The trend compares the
// older and newer halves of the recent window and only reports movement
// beyond a five-point threshold.
func (e *Engine) LearningProgress(kbID string) (*models.LearningProgress, error) {
	history, err := e.store.QuestionAnswerHistory(kbID, models.HistoryFilter{})
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	progress := &models.LearningProgress{ImprovementTrend: TrendStable}

	sessions, err := e.store.ListReviewSessions(kbID, models.HistoryFilter{})
	if err != nil {
		return nil, fmt.Errorf("list review sessions: %w", err)
	}
	progress.TotalReviewSessions = len(sessions)

	var scores []int
	for _, item := range history {
		if item.Answer.AIScore != nil {
			scores = append(scores, *item.Answer.AIScore)
		}
	}
	if len(scores) == 0 {
		return progress, nil
	}

	progress.TotalQuestionsAnswered = len(scores)
	avg := mean(scores)
	progress.AverageScore = &avg

	// History is newest-first; the recent window is the head.
	recent := scores
	if len(recent) > recentWindow {
		recent = recent[:recentWindow]
	}
	recentAvg := mean(recent)
	progress.RecentAverageScore = &recentAvg

	if len(recent) >= 4 {
		half := len(recent) / 2
		newer := mean(recent[:half])
		older := mean(recent[half:])
		switch {
		case newer-older > trendThreshold:
			progress.ImprovementTrend = TrendImproving
		case older-newer > trendThreshold:
			progress.ImprovementTrend = TrendDeclining
		}
	}

	return progress, nil
}

func mean(scores []int) float64 {
	var sum int
	for _, s := range scores {
		sum += s
	}
	return float64(sum) / float64(len(scores))
}
