package health

import (
	"time"

	"github.com/AngelCh415/campaign-health/internal/models"
)

var day0 = models.NewDate(2025, time.August, 1)

// mkDay builds a derived day with a constant 2% CTR.
func mkDay(i int, spend float64, purchases int64, revenue float64) models.DailyMetric {
	return models.Derive(models.DailyMetric{
		Date:        day0.AddDays(i),
		Spend:       spend,
		Impressions: 10_000,
		Clicks:      200,
		Purchases:   purchases,
		Revenue:     revenue,
	})
}

func mkSeries(days ...models.DailyMetric) models.CampaignSeries {
	return models.NewSeries(models.Campaign{ID: "c-1", Name: "Summer sale", Status: "ACTIVE"}, days)
}

// flatSeries repeats the same day n times.
func flatSeries(n int, spend float64, purchases int64, revenue float64) []models.DailyMetric {
	out := make([]models.DailyMetric, n)
	for i := range out {
		out[i] = mkDay(i, spend, purchases, revenue)
	}
	return out
}

// scenarioA: a stable CPP of about 50k for a week, then three days at 120k.
func scenarioA() models.CampaignSeries {
	spends := []float64{99_000, 100_000, 101_000, 99_000, 100_000, 101_000, 100_000}
	var days []models.DailyMetric
	for i, s := range spends {
		days = append(days, mkDay(i, s, 2, 400_000))
	}
	for i := 7; i < 10; i++ {
		days = append(days, mkDay(i, 120_000, 1, 200_000))
	}
	return mkSeries(days...)
}

// scenarioB: lifetime ROAS 6.0 on 5M spend, trailing three days at ROAS 0.8.
func scenarioB() models.CampaignSeries {
	var days []models.DailyMetric
	for i := 0; i < 17; i++ {
		days = append(days, mkDay(i, 250_000, 10, 29_400_000.0/17))
	}
	for i := 17; i < 20; i++ {
		days = append(days, mkDay(i, 250_000, 3, 200_000))
	}
	return mkSeries(days...)
}

// scenarioC: lifetime ROAS 0.5 with purchases on 1M spend.
func scenarioC() models.CampaignSeries {
	return mkSeries(flatSeries(10, 100_000, 1, 50_000)...)
}
