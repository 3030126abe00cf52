package health

import (
	"fmt"
	"strings"

	"github.com/AngelCh415/campaign-health/internal/models"
)

// DecisionInput is everything the policy looks at.
type DecisionInput struct {
	Totals models.Totals
	Health HealthScoreBreakdown
	Trend  TrendInfo
	Tags   []MetricTag
	Stage  LifeStage
}

type rule struct {
	action Action
	match  func(in DecisionInput, th Thresholds) (string, bool)
}

// rules is evaluated top-down; the first match wins.
var rules = []rule{
	{ActionStop, stopRule},
	{ActionScale, scaleRule},
	{ActionGood, goodRule},
	{ActionAdjust, adjustRule},
}

// Decide maps totals and health into one verdict. WATCH is the fallback.
func Decide(in DecisionInput, th Thresholds) ActionRecommendation {
	rec := ActionRecommendation{
		HealthScore: in.Health.Total,
		Health:      in.Health,
		TrendInfo:   in.Trend,
		WindowAlert: in.Health.WindowAlert,
		MetricTags:  in.Tags,
		LifeStage:   in.Stage,
	}
	for _, r := range rules {
		if reason, ok := r.match(in, th); ok {
			rec.Action, rec.Reason = r.action, reason
			return rec
		}
	}
	rec.Action, rec.Reason = ActionWatch, watchReason(in, th)
	return rec
}

func stopRule(in DecisionInput, th Thresholds) (string, bool) {
	t := in.Totals
	if t.Spend > th.BurnSpendCeiling && t.Purchases == 0 {
		return fmt.Sprintf("spent %.0f with zero purchases (limit %.0f)", t.Spend, th.BurnSpendCeiling), true
	}
	if t.Spend >= th.MinAnalysisSpend && t.ROAS < th.StopROAS {
		return fmt.Sprintf("lifetime ROAS %.2f below %.2f after spending %.0f (revenue %.0f)",
			t.ROAS, th.StopROAS, t.Spend, t.Revenue), true
	}
	return "", false
}

func scaleRule(in DecisionInput, th Thresholds) (string, bool) {
	t := in.Totals
	if in.Health.Total >= th.ScaleHealth && t.ROAS >= th.ScaleROAS && t.Spend >= th.MinAnalysisSpend {
		return fmt.Sprintf("health %d and lifetime ROAS %.2f over %.0f spend; room to grow budget",
			in.Health.Total, t.ROAS, t.Spend), true
	}
	return "", false
}

func goodRule(in DecisionInput, th Thresholds) (string, bool) {
	t := in.Totals
	if in.Health.Total >= th.GoodHealth && t.ROAS >= th.GoodROAS {
		return fmt.Sprintf("health %d and lifetime ROAS %.2f are on target", in.Health.Total, t.ROAS), true
	}
	return "", false
}

// adjustRule also catches good lifetime numbers with a bad recent trend.
func adjustRule(in DecisionInput, th Thresholds) (string, bool) {
	t := in.Totals
	switch {
	case in.Health.Total < th.AdjustHealth && t.ROAS >= th.GoodROAS:
		return withEvidence(fmt.Sprintf("lifetime ROAS %.2f holds but health is only %d", t.ROAS, in.Health.Total), in), true
	case in.Health.Total >= th.AdjustHealth:
		return withEvidence(fmt.Sprintf("health %d with lifetime ROAS %.2f needs tuning", in.Health.Total, t.ROAS), in), true
	}
	return "", false
}

func watchReason(in DecisionInput, th Thresholds) string {
	t := in.Totals
	switch {
	case t.Spend == 0:
		return "no spend yet; nothing to judge"
	case t.Spend < th.MinAnalysisSpend:
		return fmt.Sprintf("insufficient data: spent %.0f of the %.0f needed for a verdict", t.Spend, th.MinAnalysisSpend)
	case t.Purchases < th.MinPurchases:
		return fmt.Sprintf("too few purchases: %d of %d needed", t.Purchases, th.MinPurchases)
	case in.Health.WindowAlert != "":
		return in.Health.WindowAlert
	}
	return fmt.Sprintf("health %d below %d; keep watching", in.Health.Total, th.AdjustHealth)
}

// withEvidence appends the window alert and bad-direction tags to a reason.
func withEvidence(reason string, in DecisionInput) string {
	parts := []string{reason}
	if in.Health.WindowAlert != "" {
		parts = append(parts, in.Health.WindowAlert)
	}
	var bad []string
	for _, t := range in.Tags {
		if t.Bad() {
			bad = append(bad, fmt.Sprintf("%s (%s)", t.Label, t.Severity))
		}
	}
	if len(bad) > 0 {
		parts = append(parts, strings.Join(bad, ", "))
	}
	return strings.Join(parts, "; ")
}
