package models

import (
	"encoding/json"
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// Date is a calendar day serialized as YYYY-MM-DD.
type Date struct{ time.Time }

func NewDate(y int, m time.Month, d int) Date {
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

// DayOf truncates t to its UTC calendar day.
func DayOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, m, d)
}

func (d Date) String() string { return d.Format(DateLayout) }

func (d Date) AddDays(n int) Date { return Date{d.Time.AddDate(0, 0, n)} }

// DaysSince returns the number of whole days from earlier to d.
func (d Date) DaysSince(earlier Date) int {
	return int(d.Time.Sub(earlier.Time).Hours() / 24)
}

func (d Date) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	p, err := ParseDate(s)
	if err != nil {
		return fmt.Errorf("date %q: %w", s, err)
	}
	*d = p
	return nil
}

func (d Date) MarshalYAML() (any, error) { return d.String(), nil }

type Metric string

const (
	MetricCTR   Metric = "CTR"
	MetricCPP   Metric = "CPP"
	MetricROAS  Metric = "ROAS"
	MetricSpend Metric = "SPEND"
)

// DailyMetric is one calendar day of a single campaign.
type DailyMetric struct {
	Date        Date    `json:"date"`
	Spend       float64 `json:"spend" validate:"gte=0"`
	Impressions int64   `json:"impressions" validate:"gte=0"`
	Clicks      int64   `json:"clicks" validate:"gte=0"`
	Purchases   int64   `json:"purchases" validate:"gte=0"`
	Revenue     float64 `json:"revenue" validate:"gte=0"`
	CTR         float64 `json:"ctr"`
	CPC         float64 `json:"cpc"`
	CPM         float64 `json:"cpm"`
	CPP         float64 `json:"cpp"`
	ROAS        float64 `json:"roas"`
	Frequency   float64 `json:"frequency,omitempty" validate:"gte=0"`
}

// Ratio recomputes a per-day ratio from raw counts. ok is false when the
// denominator is zero, which callers treat as "no signal".
func (d DailyMetric) Ratio(m Metric) (v float64, ok bool) {
	switch m {
	case MetricCTR:
		return ratio(float64(d.Clicks), float64(d.Impressions))
	case MetricCPP:
		return ratio(d.Spend, float64(d.Purchases))
	case MetricROAS:
		return ratio(d.Revenue, d.Spend)
	case MetricSpend:
		return d.Spend, true
	}
	return 0, false
}

// Derive fills the ratio fields; zero denominators leave the ratio at 0.
func Derive(d DailyMetric) DailyMetric {
	d.CTR = safeDiv(float64(d.Clicks), float64(d.Impressions))
	d.CPC = safeDiv(d.Spend, float64(d.Clicks))
	d.CPM = safeDiv(d.Spend*1000, float64(d.Impressions))
	d.CPP = safeDiv(d.Spend, float64(d.Purchases))
	d.ROAS = safeDiv(d.Revenue, d.Spend)
	return d
}

type Campaign struct {
	ID          string     `json:"id" validate:"required"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	DailyBudget float64    `json:"daily_budget,omitempty" validate:"gte=0"`
}

// Totals aggregates a whole series; ratios are 0 when undefined.
type Totals struct {
	Spend       float64 `json:"spend"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Purchases   int64   `json:"purchases"`
	Revenue     float64 `json:"revenue"`
	CPP         float64 `json:"cpp"`
	ROAS        float64 `json:"roas"`
	CTR         float64 `json:"ctr"`
}

func ComputeTotals(days []DailyMetric) Totals {
	var t Totals
	for _, d := range days {
		t.Spend += d.Spend
		t.Impressions += d.Impressions
		t.Clicks += d.Clicks
		t.Purchases += d.Purchases
		t.Revenue += d.Revenue
	}
	t.CPP = safeDiv(t.Spend, float64(t.Purchases))
	t.ROAS = safeDiv(t.Revenue, t.Spend)
	t.CTR = safeDiv(float64(t.Clicks), float64(t.Impressions))
	return t
}

// CampaignSeries is a campaign with its ascending daily history.
type CampaignSeries struct {
	Campaign Campaign      `json:"campaign"`
	Days     []DailyMetric `json:"days" validate:"dive"`
	Totals   Totals        `json:"totals"`
}

func NewSeries(c Campaign, days []DailyMetric) CampaignSeries {
	out := make([]DailyMetric, len(days))
	for i, d := range days {
		out[i] = Derive(d)
	}
	return CampaignSeries{Campaign: c, Days: out, Totals: ComputeTotals(out)}
}

// ReportRow is one exported line: a campaign's day plus its verdict.
type ReportRow struct {
	Date        string   `json:"date"`
	CampaignID  string   `json:"campaign_id"`
	Campaign    string   `json:"campaign"`
	Status      string   `json:"status"`
	Spend       float64  `json:"spend"`
	Revenue     float64  `json:"revenue"`
	Purchases   int64    `json:"purchases"`
	CPP         float64  `json:"cpp"`
	ROAS        float64  `json:"roas"`
	CTR         float64  `json:"ctr"`
	HealthScore int      `json:"health_score"`
	Action      string   `json:"action"`
	LifeStage   string   `json:"life_stage"`
	Issues      []string `json:"issues"`
}

func ratio(a, b float64) (float64, bool) {
	if b == 0 {
		return 0, false
	}
	return a / b, true
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
