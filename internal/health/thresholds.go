package health

import (
	"errors"
	"fmt"
)

var ErrInvalidThresholds = errors.New("invalid thresholds")

// Sensitivity gates z-score tagging for one life stage.
type Sensitivity struct {
	Enabled  bool    `yaml:"enabled" json:"enabled"`
	Warning  float64 `yaml:"warning" json:"warning"`
	Critical float64 `yaml:"critical" json:"critical"`
}

// Weights of the health sub-scores. They must sum to 1.
type Weights struct {
	Financial float64 `yaml:"financial" json:"financial"`
	Trend     float64 `yaml:"trend" json:"trend"`
	Creative  float64 `yaml:"creative" json:"creative"`
	Stability float64 `yaml:"stability" json:"stability"`
}

// Thresholds holds every numeric knob of the engine. Money values are in the
// account's settlement currency minor units.
type Thresholds struct {
	// Splitter
	WindowDays      int `yaml:"window_days" json:"window_days"`
	LearningMaxDays int `yaml:"learning_max_days" json:"learning_max_days"`
	EarlyMaxDays    int `yaml:"early_max_days" json:"early_max_days"`
	MatureMaxDays   int `yaml:"mature_max_days" json:"mature_max_days"`

	// Bands and tags
	MinBandSamples int                       `yaml:"min_band_samples" json:"min_band_samples"`
	ZScoreClamp    float64                   `yaml:"z_score_clamp" json:"z_score_clamp"`
	Sensitivity    map[LifeStage]Sensitivity `yaml:"sensitivity" json:"sensitivity"`

	// Absolute issue checks
	ZeroResultSpendFloor float64 `yaml:"zero_result_spend_floor" json:"zero_result_spend_floor"`
	BurnSpendCeiling     float64 `yaml:"burn_spend_ceiling" json:"burn_spend_ceiling"`
	BreakevenROAS        float64 `yaml:"breakeven_roas" json:"breakeven_roas"`

	// Health scorer
	TrailingDays           int     `yaml:"trailing_days" json:"trailing_days"`
	MinScoringDays         int     `yaml:"min_scoring_days" json:"min_scoring_days"`
	ZeroPurchaseSpendFloor float64 `yaml:"zero_purchase_spend_floor" json:"zero_purchase_spend_floor"`
	TrendAlertRatio        float64 `yaml:"trend_alert_ratio" json:"trend_alert_ratio"`
	CPPCapRatio            float64 `yaml:"cpp_cap_ratio" json:"cpp_cap_ratio"`
	CPPCapScore            int     `yaml:"cpp_cap_score" json:"cpp_cap_score"`
	CPPSevereCapRatio      float64 `yaml:"cpp_severe_cap_ratio" json:"cpp_severe_cap_ratio"`
	CPPSevereCapScore      int     `yaml:"cpp_severe_cap_score" json:"cpp_severe_cap_score"`
	Weights                Weights `yaml:"weights" json:"weights"`

	NeutralScore      int    `yaml:"neutral_score" json:"neutral_score"`
	ZeroPurchaseScore int    `yaml:"zero_purchase_score" json:"zero_purchase_score"`
	FinancialScale    Scale  `yaml:"financial_scale" json:"financial_scale"`
	TrendScale        Scale  `yaml:"trend_scale" json:"trend_scale"`
	CreativeScale     Scale  `yaml:"creative_scale" json:"creative_scale"`
	StabilityScale    Scale  `yaml:"stability_scale" json:"stability_scale"`
	FrequencyCaps     []Step `yaml:"frequency_caps" json:"frequency_caps"`

	// Decision policy
	MinAnalysisSpend float64 `yaml:"min_analysis_spend" json:"min_analysis_spend"`
	MinPurchases     int64   `yaml:"min_purchases" json:"min_purchases"`
	StopROAS         float64 `yaml:"stop_roas" json:"stop_roas"`
	ScaleROAS        float64 `yaml:"scale_roas" json:"scale_roas"`
	ScaleHealth      int     `yaml:"scale_health" json:"scale_health"`
	GoodROAS         float64 `yaml:"good_roas" json:"good_roas"`
	GoodHealth       int     `yaml:"good_health" json:"good_health"`
	AdjustHealth     int     `yaml:"adjust_health" json:"adjust_health"`
}

// DefaultThresholds returns the production policy.
func DefaultThresholds() Thresholds {
	return Thresholds{
		WindowDays:      7,
		LearningMaxDays: 3,
		EarlyMaxDays:    7,
		MatureMaxDays:   21,

		MinBandSamples: 3,
		ZScoreClamp:    3,
		Sensitivity: map[LifeStage]Sensitivity{
			StageLearning: {Enabled: false},
			StageEarly:    {Enabled: true, Warning: 1.5, Critical: 2.5},
			StageMature:   {Enabled: true, Warning: 1.0, Critical: 2.0},
			StageVeteran:  {Enabled: true, Warning: 1.0, Critical: 2.0},
		},

		ZeroResultSpendFloor: 500_000,
		BurnSpendCeiling:     1_000_000,
		BreakevenROAS:        1,

		TrailingDays:           3,
		MinScoringDays:         3,
		ZeroPurchaseSpendFloor: 200_000,
		TrendAlertRatio:        0.7,
		CPPCapRatio:            1.5,
		CPPCapScore:            30,
		CPPSevereCapRatio:      2.0,
		CPPSevereCapScore:      15,
		Weights:                Weights{Financial: 0.30, Trend: 0.30, Creative: 0.25, Stability: 0.15},

		NeutralScore:      50,
		ZeroPurchaseScore: 5,
		// trailing ROAS, v >= bound
		FinancialScale: Scale{Steps: []Step{
			{Bound: 5, Score: 100}, {Bound: 4, Score: 90}, {Bound: 3, Score: 80}, {Bound: 2.5, Score: 70},
			{Bound: 2, Score: 55}, {Bound: 1.5, Score: 35}, {Bound: 1, Score: 20},
		}, Else: 10},
		// trailing ROAS / lifetime ROAS, v < bound
		TrendScale: Scale{Steps: []Step{
			{Bound: 0.3, Score: 5}, {Bound: 0.5, Score: 15}, {Bound: 0.7, Score: 30}, {Bound: 0.9, Score: 50},
			{Bound: 1.1, Inclusive: true, Score: 70}, {Bound: 1.3, Inclusive: true, Score: 85},
		}, Else: 95},
		// trailing CTR / lifetime CTR, v >= bound
		CreativeScale: Scale{Steps: []Step{
			{Bound: 1.1, Score: 90}, {Bound: 0.95, Score: 75}, {Bound: 0.85, Score: 55}, {Bound: 0.75, Score: 35},
		}, Else: 15},
		// CPP coefficient of variation, v < bound
		StabilityScale: Scale{Steps: []Step{
			{Bound: 0.15, Score: 90}, {Bound: 0.3, Score: 70}, {Bound: 0.5, Score: 50}, {Bound: 0.7, Score: 30},
		}, Else: 10},
		// latest frequency, v > bound caps creative
		FrequencyCaps: []Step{{Bound: 3, Score: 10}, {Bound: 2.5, Score: 30}, {Bound: 2, Score: 50}},

		MinAnalysisSpend: 500_000,
		MinPurchases:     3,
		StopROAS:         2.0,
		ScaleROAS:        4.0,
		ScaleHealth:      75,
		GoodROAS:         2.5,
		GoodHealth:       60,
		AdjustHealth:     35,
	}
}

// Validate rejects configurations the engine cannot apply consistently.
func (t Thresholds) Validate() error {
	switch {
	case t.WindowDays < 1:
		return fmt.Errorf("%w: window_days must be >= 1", ErrInvalidThresholds)
	case !(t.LearningMaxDays < t.EarlyMaxDays && t.EarlyMaxDays < t.MatureMaxDays):
		return fmt.Errorf("%w: life stage boundaries must increase", ErrInvalidThresholds)
	case t.MinBandSamples < 2:
		return fmt.Errorf("%w: min_band_samples must be >= 2", ErrInvalidThresholds)
	case t.ZScoreClamp <= 0:
		return fmt.Errorf("%w: z_score_clamp must be > 0", ErrInvalidThresholds)
	case t.TrailingDays < 1:
		return fmt.Errorf("%w: trailing_days must be >= 1", ErrInvalidThresholds)
	case t.CPPSevereCapRatio < t.CPPCapRatio:
		return fmt.Errorf("%w: cpp_severe_cap_ratio below cpp_cap_ratio", ErrInvalidThresholds)
	}
	for _, st := range Stages {
		s, ok := t.Sensitivity[st]
		if !ok {
			return fmt.Errorf("%w: missing sensitivity for %s", ErrInvalidThresholds, st)
		}
		if s.Enabled && (s.Warning <= 0 || s.Critical < s.Warning) {
			return fmt.Errorf("%w: sensitivity for %s needs 0 < warning <= critical", ErrInvalidThresholds, st)
		}
	}
	for name, sc := range map[string]Scale{
		"financial_scale": t.FinancialScale,
		"trend_scale":     t.TrendScale,
		"creative_scale":  t.CreativeScale,
		"stability_scale": t.StabilityScale,
	} {
		if len(sc.Steps) == 0 {
			return fmt.Errorf("%w: %s has no steps", ErrInvalidThresholds, name)
		}
	}
	w := t.Weights
	if sum := w.Financial + w.Trend + w.Creative + w.Stability; sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("%w: weights sum to %.3f", ErrInvalidThresholds, sum)
	}
	return nil
}
