// Package health classifies a campaign's daily metric history into issues and
// a single recommended action. Every call is a pure recomputation: no I/O, no
// state kept between calls, and identical input yields identical output.
package health

import (
	"errors"
	"fmt"
	"math"

	"github.com/AngelCh415/campaign-health/internal/models"
)

var (
	// ErrInsufficientData is returned for an empty series.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrMalformedSeries is returned for negative values, non-finite values or
	// dates that are not strictly ascending.
	ErrMalformedSeries = errors.New("malformed series")
)

type Engine struct {
	th Thresholds
}

// NewEngine validates th and returns an engine applying it.
func NewEngine(th Thresholds) (*Engine, error) {
	if err := th.Validate(); err != nil {
		return nil, err
	}
	return &Engine{th: th}, nil
}

// MustEngine is NewEngine for the default policy.
func MustEngine() *Engine {
	e, err := NewEngine(DefaultThresholds())
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Engine) Thresholds() Thresholds { return e.th }

// Analyze runs the full pipeline over one series. The series is read only.
func (e *Engine) Analyze(series models.CampaignSeries) (Result, error) {
	days := series.Days
	if len(days) == 0 {
		return Result{}, fmt.Errorf("campaign %q: %w", series.Campaign.ID, ErrInsufficientData)
	}
	if err := CheckSeries(days); err != nil {
		return Result{}, fmt.Errorf("campaign %q: %w", series.Campaign.ID, err)
	}

	th := e.th
	totals := models.ComputeTotals(days)

	split := SplitSeries(days, series.Campaign.CreatedAt, th)
	bands := ComputeBands(split, th)
	tags := TagAnomalies(bands, split.Stage, th)
	issues := DetectIssues(days, totals, tags, th)
	hs := ScoreHealth(days, totals, th)
	trend := BuildTrendInfo(days, totals, th)

	rec := Decide(DecisionInput{
		Totals: totals,
		Health: hs,
		Trend:  trend,
		Tags:   tags,
		Stage:  split.Stage,
	}, th)

	res := Result{CampaignID: series.Campaign.ID, Issues: issues, Recommendation: rec}
	rec.Diagnostics = Diagnostics{
		Version: DiagnosticsVersion,
		Input:   snapshotInput(series, totals),
		Processing: ProcessingSnapshot{
			Split:       snapshotSplit(split),
			LifeStage:   split.Stage,
			Sensitivity: th.Sensitivity[split.Stage],
			Bands:       bands,
			Tags:        tags,
		},
		Output: OutputSnapshot{
			Health:     hs,
			Trend:      trend,
			Action:     rec.Action,
			Reason:     rec.Reason,
			IssueTypes: res.IssueTypes(),
		},
	}
	res.Recommendation = rec
	return res, nil
}

// CheckSeries rejects input the engine will not try to repair.
func CheckSeries(days []models.DailyMetric) error {
	for i, d := range days {
		if d.Date.IsZero() {
			return fmt.Errorf("%w: day %d has no date", ErrMalformedSeries, i)
		}
		for _, f := range []struct {
			name string
			v    float64
		}{{"spend", d.Spend}, {"revenue", d.Revenue}, {"frequency", d.Frequency}} {
			if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v < 0 {
				return fmt.Errorf("%w: %s %s=%v", ErrMalformedSeries, d.Date, f.name, f.v)
			}
		}
		if d.Impressions < 0 || d.Clicks < 0 || d.Purchases < 0 {
			return fmt.Errorf("%w: %s has negative counters", ErrMalformedSeries, d.Date)
		}
		if i > 0 && !d.Date.After(days[i-1].Date.Time) {
			return fmt.Errorf("%w: %s does not follow %s", ErrMalformedSeries, d.Date, days[i-1].Date)
		}
	}
	return nil
}
