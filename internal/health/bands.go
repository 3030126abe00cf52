package health

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/AngelCh415/campaign-health/internal/models"
)

// BandMetrics is the band evaluation order. SPEND is banded for charting only.
var BandMetrics = []models.Metric{models.MetricCPP, models.MetricCTR, models.MetricROAS, models.MetricSpend}

// ComputeBands builds one band per metric in BandMetrics order.
func ComputeBands(s Split, th Thresholds) []Band {
	out := make([]Band, 0, len(BandMetrics))
	for _, m := range BandMetrics {
		out = append(out, computeBand(m, s.History, s.Window, th))
	}
	return out
}

func computeBand(m models.Metric, history, window []models.DailyMetric, th Thresholds) Band {
	b := Band{Metric: m}

	hist := positive(history, m)
	b.HistorySamples = len(hist)
	if len(hist) >= th.MinBandSamples {
		b.MovingAverage, b.StandardDeviation = stat.MeanStdDev(hist, nil)
		b.BaselineReady = finite(b.MovingAverage) && finite(b.StandardDeviation)
		if !b.BaselineReady {
			b.MovingAverage, b.StandardDeviation = 0, 0
		}
	}

	win := positive(window, m)
	b.WindowSamples = len(win)
	if len(win) > 0 {
		b.WindowAverage = stat.Mean(win, nil)
		b.WindowReady = finite(b.WindowAverage)
		if !b.WindowReady {
			b.WindowAverage = 0
		}
	}

	if b.BaselineReady && b.WindowReady && b.StandardDeviation > 0 {
		z := (b.WindowAverage - b.MovingAverage) / b.StandardDeviation
		b.ZScore = clamp(z, th.ZScoreClamp)
		b.HasZScore = true
	}
	return b
}

// positive keeps the strictly-positive observations of m. A zero-purchase day
// carries no CPP or ROAS signal and is dropped rather than averaged as 0.
func positive(days []models.DailyMetric, m models.Metric) []float64 {
	out := make([]float64, 0, len(days))
	for _, d := range days {
		v, ok := d.Ratio(m)
		if !ok || !(v > 0) || !finite(v) {
			continue
		}
		if (m == models.MetricCPP || m == models.MetricROAS) && d.Purchases == 0 {
			continue
		}
		out = append(out, v)
	}
	return out
}

func clamp(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// bandFor returns the band of m, if computed.
func bandFor(bands []Band, m models.Metric) (Band, bool) {
	for _, b := range bands {
		if b.Metric == m {
			return b, true
		}
	}
	return Band{}, false
}
