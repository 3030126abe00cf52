package health

import (
	"time"

	"github.com/AngelCh415/campaign-health/internal/models"
)

// Split partitions a series into a baseline history and a trailing window.
type Split struct {
	History   []models.DailyMetric
	Window    []models.DailyMetric
	Stage     LifeStage
	AgeDays   int
	AgeSource string // "created_at" or "series_length"
	// Baseline is false when the series is shorter than the configured window.
	Baseline bool
}

// SplitSeries splits days (ascending) and derives the life stage. Age is
// measured against the last metric date, never the wall clock.
func SplitSeries(days []models.DailyMetric, createdAt *time.Time, th Thresholds) Split {
	n := len(days)
	w := th.WindowDays
	if w > n {
		w = n
	}
	s := Split{
		History: days[:n-w],
		Window:  days[n-w:],
	}

	s.AgeDays, s.AgeSource = n, "series_length"
	if createdAt != nil && n > 0 {
		age := days[n-1].Date.DaysSince(models.DayOf(*createdAt))
		if age < 0 {
			age = 0
		}
		s.AgeDays, s.AgeSource = age, "created_at"
	}

	if n < th.WindowDays {
		s.Stage = StageLearning
		return s
	}
	s.Baseline = true
	s.Stage = stageForAge(s.AgeDays, th)
	return s
}

func stageForAge(age int, th Thresholds) LifeStage {
	switch {
	case age <= th.LearningMaxDays:
		return StageLearning
	case age <= th.EarlyMaxDays:
		return StageEarly
	case age <= th.MatureMaxDays:
		return StageMature
	default:
		return StageVeteran
	}
}
