package health

import (
	"fmt"

	"github.com/AngelCh415/campaign-health/internal/models"
)

type issueTemplate struct {
	typ     IssueType
	message string
	action  string
}

var tagIssues = map[models.Metric]issueTemplate{
	models.MetricCPP: {
		typ:     IssueCPPRising,
		message: "Cost per purchase is rising",
		action:  "Tighten targeting or lower bids; check the offer and landing page",
	},
	models.MetricCTR: {
		typ:     IssueCTRDeclining,
		message: "Click-through rate is declining",
		action:  "Refresh creatives; the audience is likely fatigued",
	},
	models.MetricROAS: {
		typ:     IssueROASDeclining,
		message: "Return on ad spend is declining",
		action:  "Cut budget until returns recover; review funnel and pricing",
	},
}

// DetectIssues runs the absolute checks, then converts bad-direction tags
// one-to-one into issues.
func DetectIssues(days []models.DailyMetric, totals models.Totals, tags []MetricTag, th Thresholds) []Issue {
	issues := make([]Issue, 0, 2+len(tags))
	if is, ok := zeroResultBurn(days, totals, th); ok {
		issues = append(issues, is)
	}
	if is, ok := losingMoney(totals, th); ok {
		issues = append(issues, is)
	}
	for _, t := range tags {
		if !t.Bad() {
			continue
		}
		tpl, ok := tagIssues[t.Metric]
		if !ok {
			continue
		}
		issues = append(issues, Issue{
			Type:     tpl.typ,
			Severity: t.Severity,
			Message:  tpl.message,
			Detail:   t.Detail,
			Action:   tpl.action,
		})
	}
	return issues
}

// zeroResultBurn counts zero-purchase days, unlike the band calculator which
// skips them: an acute alert cares about money spent without results.
func zeroResultBurn(days []models.DailyMetric, totals models.Totals, th Thresholds) (Issue, bool) {
	if len(days) == 0 {
		return Issue{}, false
	}
	last := days[len(days)-1]
	switch {
	case last.Purchases == 0 && last.Spend >= th.ZeroResultSpendFloor:
		return Issue{
			Type:     IssueZeroResultBurn,
			Severity: SeverityCritical,
			Message:  "Burning money: no purchases on the latest day",
			Detail:   fmt.Sprintf("spent %.0f on %s with 0 purchases", last.Spend, last.Date),
			Action:   "Stop immediately",
		}, true
	case totals.Purchases == 0 && totals.Spend > th.BurnSpendCeiling:
		return Issue{
			Type:     IssueZeroResultBurn,
			Severity: SeverityCritical,
			Message:  "Burning money: no purchases over the whole series",
			Detail:   fmt.Sprintf("spent %.0f over %d days with 0 purchases", totals.Spend, len(days)),
			Action:   "Stop immediately",
		}, true
	}
	return Issue{}, false
}

func losingMoney(totals models.Totals, th Thresholds) (Issue, bool) {
	if totals.Purchases == 0 || totals.Spend == 0 || totals.ROAS >= th.BreakevenROAS {
		return Issue{}, false
	}
	shortfall := totals.Spend - totals.Revenue
	return Issue{
		Type:     IssueLosingMoney,
		Severity: SeverityCritical,
		Message:  "Losing money: revenue does not cover spend",
		Detail:   fmt.Sprintf("spend %.0f, revenue %.0f, shortfall %.0f (ROAS %.2f)", totals.Spend, totals.Revenue, shortfall, totals.ROAS),
		Action:   "Stop or restructure the campaign before spending more",
	}, true
}
