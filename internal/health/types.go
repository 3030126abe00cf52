package health

import "github.com/AngelCh415/campaign-health/internal/models"

type LifeStage string

const (
	StageLearning LifeStage = "LEARNING"
	StageEarly    LifeStage = "EARLY"
	StageMature   LifeStage = "MATURE"
	StageVeteran  LifeStage = "VETERAN"
)

var Stages = []LifeStage{StageLearning, StageEarly, StageMature, StageVeteran}

type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

type Action string

const (
	ActionStop   Action = "STOP"
	ActionAdjust Action = "ADJUST"
	ActionWatch  Action = "WATCH"
	ActionGood   Action = "GOOD"
	ActionScale  Action = "SCALE"
)

var Actions = []Action{ActionStop, ActionAdjust, ActionWatch, ActionGood, ActionScale}

type IssueType string

const (
	IssueZeroResultBurn IssueType = "zero_result_burn"
	IssueLosingMoney    IssueType = "losing_money"
	IssueCPPRising      IssueType = "cpp_rising"
	IssueCTRDeclining   IssueType = "ctr_declining"
	IssueROASDeclining  IssueType = "roas_declining"
)

// Band is the moving-average/standard-deviation envelope of one metric.
type Band struct {
	Metric            models.Metric `json:"metric"`
	MovingAverage     float64       `json:"moving_average"`
	StandardDeviation float64       `json:"standard_deviation"`
	WindowAverage     float64       `json:"window_average"`
	ZScore            float64       `json:"z_score"`
	HistorySamples    int           `json:"history_samples"`
	WindowSamples     int           `json:"window_samples"`
	BaselineReady     bool          `json:"baseline_ready"`
	WindowReady       bool          `json:"window_ready"`
	HasZScore         bool          `json:"has_z_score"`
}

type MetricTag struct {
	Metric     models.Metric `json:"metric"`
	Direction  Direction     `json:"direction"`
	Severity   Severity      `json:"severity"`
	Label      string        `json:"label"`
	Detail     string        `json:"detail"`
	ZScore     float64       `json:"z_score"`
	EffectiveZ float64       `json:"effective_z"`
}

// Bad reports whether the tag points in the metric's deteriorating direction.
func (t MetricTag) Bad() bool { return t.EffectiveZ > 0 }

type Issue struct {
	Type     IssueType `json:"type"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
	Detail   string    `json:"detail"`
	Action   string    `json:"action"`
}

type HealthScoreBreakdown struct {
	Financial   int    `json:"financial"`
	Trend       int    `json:"trend"`
	Creative    int    `json:"creative"`
	Stability   int    `json:"stability"`
	Total       int    `json:"total"`
	WindowAlert string `json:"window_alert"`
}

// TrendInfo compares the trailing days against the lifetime aggregates.
// Percent changes are only meaningful when the matching Has* flag is set.
type TrendInfo struct {
	TrailingDays  int     `json:"trailing_days"`
	TrailingCPP   float64 `json:"trailing_cpp"`
	LifetimeCPP   float64 `json:"lifetime_cpp"`
	CPPChangePct  float64 `json:"cpp_change_pct"`
	HasCPP        bool    `json:"has_cpp"`
	TrailingROAS  float64 `json:"trailing_roas"`
	LifetimeROAS  float64 `json:"lifetime_roas"`
	ROASChangePct float64 `json:"roas_change_pct"`
	HasROAS       bool    `json:"has_roas"`
	Summary       string  `json:"summary"`
}

type ActionRecommendation struct {
	Action      Action               `json:"action"`
	Reason      string               `json:"reason"`
	HealthScore int                  `json:"health_score"`
	Health      HealthScoreBreakdown `json:"health"`
	TrendInfo   TrendInfo            `json:"trend_info"`
	WindowAlert string               `json:"window_alert"`
	MetricTags  []MetricTag          `json:"metric_tags"`
	LifeStage   LifeStage            `json:"life_stage"`
	Diagnostics Diagnostics          `json:"diagnostics"`
}

// Result is everything one analysis produces.
type Result struct {
	CampaignID     string               `json:"campaign_id"`
	Issues         []Issue              `json:"issues"`
	Recommendation ActionRecommendation `json:"recommendation"`
}

// IssueTypes lists the issue kinds in insertion order.
func (r Result) IssueTypes() []string {
	out := make([]string, 0, len(r.Issues))
	for _, is := range r.Issues {
		out = append(out, string(is.Type))
	}
	return out
}

// HasCritical reports whether any issue is critical.
func (r Result) HasCritical() bool {
	for _, is := range r.Issues {
		if is.Severity == SeverityCritical {
			return true
		}
	}
	return false
}
