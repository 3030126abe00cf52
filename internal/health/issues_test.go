package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/campaign-health/internal/models"
)

func issueTypes(issues []Issue) []IssueType {
	out := make([]IssueType, 0, len(issues))
	for _, is := range issues {
		out = append(out, is.Type)
	}
	return out
}

func TestDetectIssues_ZeroResultBurnOnLatestDay(t *testing.T) {
	th := DefaultThresholds()
	days := append(flatSeries(4, 100_000, 2, 400_000), mkDay(4, 600_000, 0, 0))

	issues := DetectIssues(days, models.ComputeTotals(days), nil, th)

	require.Len(t, issues, 1)
	assert.Equal(t, IssueZeroResultBurn, issues[0].Type)
	assert.Equal(t, SeverityCritical, issues[0].Severity)
	assert.Equal(t, "Stop immediately", issues[0].Action)
	assert.Contains(t, issues[0].Detail, "600000")
}

func TestDetectIssues_ZeroResultBurnOverSeries(t *testing.T) {
	th := DefaultThresholds()
	days := flatSeries(5, 300_000, 0, 0)

	issues := DetectIssues(days, models.ComputeTotals(days), nil, th)

	assert.Equal(t, []IssueType{IssueZeroResultBurn}, issueTypes(issues))
}

func TestDetectIssues_BelowFloorIsQuiet(t *testing.T) {
	th := DefaultThresholds()
	days := append(flatSeries(3, 100_000, 2, 400_000), mkDay(3, 499_999, 0, 0))

	assert.Empty(t, DetectIssues(days, models.ComputeTotals(days), nil, th))
}

func TestDetectIssues_LosingMoneyReportsShortfall(t *testing.T) {
	th := DefaultThresholds()
	days := scenarioC().Days
	totals := models.ComputeTotals(days)

	issues := DetectIssues(days, totals, nil, th)

	require.Len(t, issues, 1)
	assert.Equal(t, IssueLosingMoney, issues[0].Type)
	assert.Contains(t, issues[0].Detail, "shortfall 500000")
	assert.Contains(t, issues[0].Detail, "ROAS 0.50")
}

func TestDetectIssues_OnlyBadTagsBecomeIssues(t *testing.T) {
	th := DefaultThresholds()
	days := flatSeries(10, 100_000, 2, 400_000)
	tags := TagAnomalies([]Band{
		zBand(models.MetricCPP, 2.5),
		zBand(models.MetricCTR, 1.5),
		zBand(models.MetricROAS, -1.1),
	}, StageMature, th)
	require.Len(t, tags, 3)

	issues := DetectIssues(days, models.ComputeTotals(days), tags, th)

	assert.Equal(t, []IssueType{IssueCPPRising, IssueROASDeclining}, issueTypes(issues))
	assert.Equal(t, SeverityCritical, issues[0].Severity)
	assert.Equal(t, SeverityWarning, issues[1].Severity)
	assert.NotEmpty(t, issues[0].Action)
}

func TestDetectIssues_AbsoluteChecksComeFirst(t *testing.T) {
	th := DefaultThresholds()
	days := append(flatSeries(9, 100_000, 1, 50_000), mkDay(9, 700_000, 0, 0))
	tags := TagAnomalies([]Band{zBand(models.MetricCPP, 3)}, StageMature, th)

	issues := DetectIssues(days, models.ComputeTotals(days), tags, th)

	assert.Equal(t, []IssueType{IssueZeroResultBurn, IssueLosingMoney, IssueCPPRising}, issueTypes(issues))
}

// A zero-purchase day is skipped by the bands but still trips the burn check.
func TestZeroPurchaseAsymmetry(t *testing.T) {
	res, err := MustEngine().Analyze(mkSeries(append(flatSeries(9, 100_000, 2, 400_000), mkDay(9, 550_000, 0, 0))...))
	require.NoError(t, err)

	cpp, ok := bandFor(res.Recommendation.Diagnostics.Processing.Bands, models.MetricCPP)
	require.True(t, ok)
	assert.Equal(t, 6, cpp.WindowSamples, "the zero-purchase day adds no CPP sample")
	assert.InDelta(t, 50_000, cpp.WindowAverage, 1e-9)
	assert.Equal(t, IssueZeroResultBurn, res.Issues[0].Type)
}
