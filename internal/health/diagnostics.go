package health

import "github.com/AngelCh415/campaign-health/internal/models"

// DiagnosticsVersion changes whenever the snapshot layout changes.
const DiagnosticsVersion = "1"

// Diagnostics is a serializable snapshot of one analysis for audit trails,
// downstream summarization and charting.
type Diagnostics struct {
	Version    string             `json:"version"`
	Input      InputSnapshot      `json:"input"`
	Processing ProcessingSnapshot `json:"processing"`
	Output     OutputSnapshot     `json:"output"`
}

type InputSnapshot struct {
	CampaignID  string        `json:"campaign_id"`
	Campaign    string        `json:"campaign"`
	Status      string        `json:"status"`
	Days        int           `json:"days"`
	FirstDate   string        `json:"first_date"`
	LastDate    string        `json:"last_date"`
	CreatedAt   string        `json:"created_at,omitempty"`
	DailyBudget float64       `json:"daily_budget,omitempty"`
	Totals      models.Totals `json:"totals"`
}

type SplitSnapshot struct {
	HistoryDays  int    `json:"history_days"`
	WindowDays   int    `json:"window_days"`
	HistoryStart string `json:"history_start,omitempty"`
	HistoryEnd   string `json:"history_end,omitempty"`
	WindowStart  string `json:"window_start,omitempty"`
	WindowEnd    string `json:"window_end,omitempty"`
	Baseline     bool   `json:"baseline"`
	AgeDays      int    `json:"age_days"`
	AgeSource    string `json:"age_source"`
}

type ProcessingSnapshot struct {
	Split       SplitSnapshot `json:"split"`
	LifeStage   LifeStage     `json:"life_stage"`
	Sensitivity Sensitivity   `json:"sensitivity"`
	Bands       []Band        `json:"bands"`
	Tags        []MetricTag   `json:"tags"`
}

type OutputSnapshot struct {
	Health     HealthScoreBreakdown `json:"health"`
	Trend      TrendInfo            `json:"trend"`
	Action     Action               `json:"action"`
	Reason     string               `json:"reason"`
	IssueTypes []string             `json:"issue_types"`
}

func snapshotSplit(s Split) SplitSnapshot {
	out := SplitSnapshot{
		HistoryDays: len(s.History),
		WindowDays:  len(s.Window),
		Baseline:    s.Baseline,
		AgeDays:     s.AgeDays,
		AgeSource:   s.AgeSource,
	}
	if n := len(s.History); n > 0 {
		out.HistoryStart, out.HistoryEnd = s.History[0].Date.String(), s.History[n-1].Date.String()
	}
	if n := len(s.Window); n > 0 {
		out.WindowStart, out.WindowEnd = s.Window[0].Date.String(), s.Window[n-1].Date.String()
	}
	return out
}

func snapshotInput(series models.CampaignSeries, totals models.Totals) InputSnapshot {
	c := series.Campaign
	in := InputSnapshot{
		CampaignID:  c.ID,
		Campaign:    c.Name,
		Status:      c.Status,
		Days:        len(series.Days),
		DailyBudget: c.DailyBudget,
		Totals:      totals,
	}
	if n := len(series.Days); n > 0 {
		in.FirstDate, in.LastDate = series.Days[0].Date.String(), series.Days[n-1].Date.String()
	}
	if c.CreatedAt != nil {
		in.CreatedAt = models.DayOf(*c.CreatedAt).String()
	}
	return in
}
