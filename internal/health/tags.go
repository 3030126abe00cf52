package health

import (
	"fmt"
	"math"

	"github.com/AngelCh415/campaign-health/internal/models"
)

// TaggedMetrics is the tagging order; it also fixes the order of band-derived issues.
var TaggedMetrics = []models.Metric{models.MetricCPP, models.MetricCTR, models.MetricROAS}

// worseSign maps a metric's raw z-score onto "positive means deteriorating".
// Cost rising is bad; rates and returns falling are bad.
var worseSign = map[models.Metric]float64{
	models.MetricCPP:  1,
	models.MetricCTR:  -1,
	models.MetricROAS: -1,
}

var tagLabels = map[models.Metric]map[Direction]string{
	models.MetricCPP:  {DirectionUp: "CPP rising", DirectionDown: "CPP falling"},
	models.MetricCTR:  {DirectionUp: "CTR rising", DirectionDown: "CTR declining"},
	models.MetricROAS: {DirectionUp: "ROAS rising", DirectionDown: "ROAS declining"},
}

// TagAnomalies turns bands into directional tags using the stage's sensitivity.
// Stages with tagging disabled produce no tags.
func TagAnomalies(bands []Band, stage LifeStage, th Thresholds) []MetricTag {
	sens, ok := th.Sensitivity[stage]
	if !ok || !sens.Enabled {
		return []MetricTag{}
	}
	tags := make([]MetricTag, 0, len(TaggedMetrics))
	for _, m := range TaggedMetrics {
		b, ok := bandFor(bands, m)
		if !ok || !b.HasZScore || b.ZScore == 0 {
			continue
		}
		if t, ok := tagBand(b, sens); ok {
			tags = append(tags, t)
		}
	}
	return tags
}

func tagBand(b Band, sens Sensitivity) (MetricTag, bool) {
	eff := b.ZScore * worseSign[b.Metric]
	mag := math.Abs(eff)
	if mag < sens.Warning {
		return MetricTag{}, false
	}

	dir := DirectionUp
	if b.ZScore < 0 {
		dir = DirectionDown
	}

	sev := SeverityInfo
	if eff > 0 {
		sev = SeverityWarning
		if mag >= sens.Critical {
			sev = SeverityCritical
		}
	}

	return MetricTag{
		Metric:     b.Metric,
		Direction:  dir,
		Severity:   sev,
		Label:      tagLabels[b.Metric][dir],
		Detail:     fmt.Sprintf("%s window avg %s vs baseline %s (z=%+.2f)", b.Metric, formatMetric(b.Metric, b.WindowAverage), formatMetric(b.Metric, b.MovingAverage), b.ZScore),
		ZScore:     b.ZScore,
		EffectiveZ: eff,
	}, true
}

func formatMetric(m models.Metric, v float64) string {
	switch m {
	case models.MetricCTR:
		return fmt.Sprintf("%.2f%%", v*100)
	case models.MetricROAS:
		return fmt.Sprintf("%.2f", v)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}
