package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/campaign-health/internal/models"
)

func zBand(m models.Metric, z float64) Band {
	return Band{Metric: m, MovingAverage: 100, StandardDeviation: 10, WindowAverage: 100 + 10*z, ZScore: z,
		BaselineReady: true, WindowReady: true, HasZScore: true}
}

func TestTagAnomalies_DirectionAndSeverity(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		name     string
		band     Band
		wantDir  Direction
		wantSev  Severity
		wantBad  bool
		wantText string
	}{
		{"cpp up is bad", zBand(models.MetricCPP, 1.2), DirectionUp, SeverityWarning, true, "CPP rising"},
		{"cpp up critical", zBand(models.MetricCPP, 2.4), DirectionUp, SeverityCritical, true, "CPP rising"},
		{"cpp down is good", zBand(models.MetricCPP, -2.4), DirectionDown, SeverityInfo, false, "CPP falling"},
		{"ctr down is bad", zBand(models.MetricCTR, -1.0), DirectionDown, SeverityWarning, true, "CTR declining"},
		{"ctr up is good", zBand(models.MetricCTR, 3), DirectionUp, SeverityInfo, false, "CTR rising"},
		{"roas down critical", zBand(models.MetricROAS, -3), DirectionDown, SeverityCritical, true, "ROAS declining"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tags := TagAnomalies([]Band{tt.band}, StageMature, th)
			require.Len(t, tags, 1)
			tag := tags[0]
			assert.Equal(t, tt.wantDir, tag.Direction)
			assert.Equal(t, tt.wantSev, tag.Severity)
			assert.Equal(t, tt.wantBad, tag.Bad())
			assert.Equal(t, tt.wantText, tag.Label)
			assert.Equal(t, tt.band.ZScore, tag.ZScore)
			assert.Contains(t, tag.Detail, "baseline")
		})
	}
}

func TestTagAnomalies_StageSensitivity(t *testing.T) {
	th := DefaultThresholds()
	bands := []Band{zBand(models.MetricCPP, 1.2)}

	assert.Empty(t, TagAnomalies(bands, StageLearning, th), "learning disables z tagging")
	assert.Empty(t, TagAnomalies(bands, StageEarly, th), "early widens the warning threshold to 1.5")
	assert.Len(t, TagAnomalies(bands, StageMature, th), 1)
	assert.Len(t, TagAnomalies(bands, StageVeteran, th), 1)

	early := TagAnomalies([]Band{zBand(models.MetricCPP, 2.2)}, StageEarly, th)
	require.Len(t, early, 1)
	assert.Equal(t, SeverityWarning, early[0].Severity, "early needs 2.5 for critical")
}

func TestTagAnomalies_SkipsWeakAndMissing(t *testing.T) {
	th := DefaultThresholds()
	bands := []Band{
		zBand(models.MetricCPP, 0.5),
		{Metric: models.MetricCTR},
		zBand(models.MetricSpend, 3),
		zBand(models.MetricROAS, 0),
	}
	assert.Empty(t, TagAnomalies(bands, StageVeteran, th))
}

func TestTagAnomalies_Order(t *testing.T) {
	th := DefaultThresholds()
	bands := []Band{zBand(models.MetricROAS, -2), zBand(models.MetricCTR, -2), zBand(models.MetricCPP, 2)}

	tags := TagAnomalies(bands, StageMature, th)

	require.Len(t, tags, 3)
	assert.Equal(t, models.MetricCPP, tags[0].Metric)
	assert.Equal(t, models.MetricCTR, tags[1].Metric)
	assert.Equal(t, models.MetricROAS, tags[2].Metric)
}
