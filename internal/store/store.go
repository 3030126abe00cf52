package store

import (
	"context"
	"errors"
	"sort"

	"github.com/AngelCh415/campaign-health/internal/models"
)

var ErrNotFound = errors.New("campaign not found")

// DailyRow is one stored day tagged with its campaign.
type DailyRow struct {
	CampaignID string `json:"campaign_id"`
	models.DailyMetric
}

// Store keeps campaigns and their daily metrics. Zero from/to dates mean
// unbounded.
type Store interface {
	MarkSeen(ctx context.Context, key string) (bool, error)
	// Unmark releases a key so the next MarkSeen grants it again.
	Unmark(ctx context.Context, key string) error
	UpsertCampaign(ctx context.Context, c models.Campaign) error
	UpsertDaily(ctx context.Context, campaignID string, d models.DailyMetric) error
	Campaign(ctx context.Context, id string) (models.Campaign, error)
	Campaigns(ctx context.Context) ([]models.Campaign, error)
	Series(ctx context.Context, id string, from, to models.Date) (models.CampaignSeries, error)
	Query(ctx context.Context, from, to models.Date, f func(DailyRow) bool) ([]DailyRow, error)
	Ping(ctx context.Context) error
}

func inRange(d, from, to models.Date) bool {
	if !from.IsZero() && d.Before(from.Time) {
		return false
	}
	if !to.IsZero() && d.After(to.Time) {
		return false
	}
	return true
}

// orden determinista
func sortDays(days []models.DailyMetric) {
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date.Time) })
}

func sortRows(rows []DailyRow) {
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date.Time) {
			return rows[i].Date.Before(rows[j].Date.Time)
		}
		return rows[i].CampaignID < rows[j].CampaignID
	})
}

func sortCampaigns(cs []models.Campaign) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].ID < cs[j].ID })
}
