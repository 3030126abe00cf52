package store

import (
	"context"
	"sync"

	"github.com/AngelCh415/campaign-health/internal/models"
)

type MemoryStore struct {
	mu        sync.RWMutex
	campaigns map[string]models.Campaign
	days      map[string]map[string]models.DailyMetric // campaign -> date -> day
	seen      map[string]struct{}                      // idempotencia por-record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		campaigns: make(map[string]models.Campaign),
		days:      make(map[string]map[string]models.DailyMetric),
		seen:      make(map[string]struct{}),
	}
}

func (s *MemoryStore) MarkSeen(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[key]; ok {
		return false, nil
	}
	s.seen[key] = struct{}{}
	return true, nil
}

func (s *MemoryStore) Unmark(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, key)
	return nil
}

func (s *MemoryStore) UpsertCampaign(_ context.Context, c models.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[c.ID] = c
	return nil
}

// UpsertDaily replaces the stored day; a campaign seen only through its
// metrics is registered with its id.
func (s *MemoryStore) UpsertDaily(_ context.Context, campaignID string, d models.DailyMetric) error {
	d = models.Derive(clampDay(d))
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.campaigns[campaignID]; !ok {
		s.campaigns[campaignID] = models.Campaign{ID: campaignID}
	}
	byDate, ok := s.days[campaignID]
	if !ok {
		byDate = make(map[string]models.DailyMetric)
		s.days[campaignID] = byDate
	}
	byDate[d.Date.String()] = d
	return nil
}

func (s *MemoryStore) Campaign(_ context.Context, id string) (models.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.campaigns[id]
	if !ok {
		return models.Campaign{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) Campaigns(_ context.Context) ([]models.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		out = append(out, c)
	}
	sortCampaigns(out)
	return out, nil
}

func (s *MemoryStore) Series(_ context.Context, id string, from, to models.Date) (models.CampaignSeries, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.campaigns[id]
	if !ok {
		return models.CampaignSeries{}, ErrNotFound
	}
	days := make([]models.DailyMetric, 0, len(s.days[id]))
	for _, d := range s.days[id] {
		if inRange(d.Date, from, to) {
			days = append(days, d)
		}
	}
	sortDays(days)
	return models.NewSeries(c, days), nil
}

func (s *MemoryStore) Query(_ context.Context, from, to models.Date, f func(DailyRow) bool) ([]DailyRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []DailyRow{}
	for id, byDate := range s.days {
		for _, d := range byDate {
			if !inRange(d.Date, from, to) {
				continue
			}
			row := DailyRow{CampaignID: id, DailyMetric: d}
			if f == nil || f(row) {
				out = append(out, row)
			}
		}
	}
	sortRows(out)
	return out, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func clampDay(d models.DailyMetric) models.DailyMetric {
	d.Spend = maxf(d.Spend)
	d.Revenue = maxf(d.Revenue)
	d.Frequency = maxf(d.Frequency)
	d.Impressions = max0(d.Impressions)
	d.Clicks = max0(d.Clicks)
	d.Purchases = max0(d.Purchases)
	return d
}

func max0(i int64) int64 {
	if i < 0 {
		return 0
	}
	return i
}
func maxf(f float64) float64 {
	if f < 0 {
		return 0
	}
	return f
}
