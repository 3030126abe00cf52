package health

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/AngelCh415/campaign-health/internal/models"
)

// trailing aggregates the last k days of the series.
func trailing(days []models.DailyMetric, k int) models.Totals {
	if k > len(days) {
		k = len(days)
	}
	return models.ComputeTotals(days[len(days)-k:])
}

// ScoreHealth computes the weighted 0-100 composite. It looks at the trailing
// days against the lifetime totals so a campaign with good lifetime numbers
// but a bad last few days still scores low.
func ScoreHealth(days []models.DailyMetric, lifetime models.Totals, th Thresholds) HealthScoreBreakdown {
	if len(days) < th.MinScoringDays {
		n := th.NeutralScore
		return HealthScoreBreakdown{
			Financial: n, Trend: n, Creative: n, Stability: n, Total: n,
			WindowAlert: fmt.Sprintf("insufficient data: %d day(s) of history, need %d", len(days), th.MinScoringDays),
		}
	}

	recent := trailing(days, th.TrailingDays)
	h := HealthScoreBreakdown{
		Financial: financialScore(recent, th),
		Creative:  creativeScore(recent, lifetime, days[len(days)-1], th),
		Stability: stabilityScore(days, th),
	}
	h.Trend, h.WindowAlert = trendScore(recent, lifetime, th)

	w := th.Weights
	total := float64(h.Financial)*w.Financial + float64(h.Trend)*w.Trend +
		float64(h.Creative)*w.Creative + float64(h.Stability)*w.Stability
	h.Total = clampScore(roundHalfUp(total))
	return h
}

func financialScore(recent models.Totals, th Thresholds) int {
	if recent.Spend == 0 {
		return th.NeutralScore
	}
	score, matched := th.FinancialScale.atLeast(recent.ROAS)
	if !matched && recent.Purchases == 0 && recent.Spend > th.ZeroPurchaseSpendFloor {
		return th.ZeroPurchaseScore
	}
	return score
}

// trendScore maps the trailing/lifetime ROAS ratio and caps the result when
// trailing CPP runs well above lifetime CPP. The alert explains the sharpest
// divergence; a low ROAS ratio wins over the CPP explanation.
func trendScore(recent, lifetime models.Totals, th Thresholds) (int, string) {
	score := th.NeutralScore
	roasRatio, hasROAS := ratioOf(recent.ROAS, lifetime.ROAS, recent.Spend > 0)
	if hasROAS {
		score = th.TrendScale.Below(roasRatio)
	}

	cppRatio, hasCPP := ratioOf(recent.CPP, lifetime.CPP, recent.Purchases > 0 && lifetime.Purchases > 0)
	cppCapped := false
	if hasCPP {
		limit := 0
		switch {
		case cppRatio > th.CPPSevereCapRatio:
			limit, cppCapped = th.CPPSevereCapScore, true
		case cppRatio > th.CPPCapRatio:
			limit, cppCapped = th.CPPCapScore, true
		}
		if cppCapped && score > limit {
			score = limit
		}
	}

	var alert string
	switch {
	case hasROAS && roasRatio < th.TrendAlertRatio:
		alert = fmt.Sprintf("ROAS dropped: last %dd %.2f vs lifetime %.2f (%+.0f%%)",
			th.TrailingDays, recent.ROAS, lifetime.ROAS, (roasRatio-1)*100)
	case cppCapped:
		alert = fmt.Sprintf("CPP spiking: last %dd %.0f vs lifetime %.0f (%+.0f%%)",
			th.TrailingDays, recent.CPP, lifetime.CPP, (cppRatio-1)*100)
	}
	return score, alert
}

func creativeScore(recent, lifetime models.Totals, last models.DailyMetric, th Thresholds) int {
	score := th.NeutralScore
	if r, ok := ratioOf(recent.CTR, lifetime.CTR, recent.Impressions > 0); ok {
		score = th.CreativeScale.AtLeast(r)
	}
	if last.Frequency > 0 {
		if limit, ok := capAbove(th.FrequencyCaps, last.Frequency); ok && score > limit {
			score = limit
		}
	}
	return score
}

// stabilityScore uses the population coefficient of variation of all
// positive CPP observations.
func stabilityScore(days []models.DailyMetric, th Thresholds) int {
	cpp := positive(days, models.MetricCPP)
	if len(cpp) < th.MinBandSamples {
		return th.NeutralScore
	}
	mean, variance := stat.PopMeanVariance(cpp, nil)
	if !(mean > 0) || !finite(variance) {
		return th.NeutralScore
	}
	return th.StabilityScale.Below(math.Sqrt(variance) / mean)
}

// BuildTrendInfo summarizes trailing vs lifetime CPP and ROAS in percent.
func BuildTrendInfo(days []models.DailyMetric, lifetime models.Totals, th Thresholds) TrendInfo {
	recent := trailing(days, th.TrailingDays)
	ti := TrendInfo{
		TrailingDays: th.TrailingDays,
		TrailingCPP:  recent.CPP,
		LifetimeCPP:  lifetime.CPP,
		TrailingROAS: recent.ROAS,
		LifetimeROAS: lifetime.ROAS,
	}
	if r, ok := ratioOf(recent.CPP, lifetime.CPP, recent.Purchases > 0 && lifetime.Purchases > 0); ok {
		ti.HasCPP, ti.CPPChangePct = true, round1((r-1)*100)
	}
	if r, ok := ratioOf(recent.ROAS, lifetime.ROAS, recent.Spend > 0); ok {
		ti.HasROAS, ti.ROASChangePct = true, round1((r-1)*100)
	}

	cpp := "CPP n/a (no recent purchases)"
	if ti.HasCPP {
		cpp = fmt.Sprintf("CPP %.0f vs %.0f (%+.1f%%)", ti.TrailingCPP, ti.LifetimeCPP, ti.CPPChangePct)
	}
	roas := "ROAS n/a (no recent spend)"
	if ti.HasROAS {
		roas = fmt.Sprintf("ROAS %.2f vs %.2f (%+.1f%%)", ti.TrailingROAS, ti.LifetimeROAS, ti.ROASChangePct)
	}
	ti.Summary = fmt.Sprintf("last %dd vs lifetime: %s; %s", th.TrailingDays, cpp, roas)
	return ti
}

// ratioOf divides a by b when the guard holds and both sides carry signal.
func ratioOf(a, b float64, guard bool) (float64, bool) {
	if !guard || !(b > 0) {
		return 0, false
	}
	r := a / b
	if !finite(r) {
		return 0, false
	}
	return r, true
}

// roundHalfUp rounds x.5 upward after dropping float noise below 1e-6, so
// 45.4999999 from weight arithmetic becomes 45.5 and then 46.
func roundHalfUp(x float64) int {
	x = math.Round(x*1e6) / 1e6
	return int(math.Floor(x + 0.5))
}

func round1(x float64) float64 { return math.Round(x*10) / 10 }

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
