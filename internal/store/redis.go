package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AngelCh415/campaign-health/internal/models"
)

const seenTTL = 30 * 24 * time.Hour

// RedisStore keeps one hash of campaigns and one hash of days per campaign,
// all values JSON encoded.
//
//	<prefix>:campaigns        id   -> Campaign
//	<prefix>:days:<id>        date -> DailyMetric
//	<prefix>:seen:<key>       idempotency marker
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ch"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) campaignsKey() string     { return s.prefix + ":campaigns" }
func (s *RedisStore) daysKey(id string) string { return s.prefix + ":days:" + id }
func (s *RedisStore) seenKey(k string) string  { return s.prefix + ":seen:" + k }

func (s *RedisStore) MarkSeen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, s.seenKey(key), 1, seenTTL).Result()
	if err != nil {
		return false, fmt.Errorf("mark seen: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) Unmark(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.seenKey(key)).Err(); err != nil {
		return fmt.Errorf("unmark: %w", err)
	}
	return nil
}

func (s *RedisStore) UpsertCampaign(ctx context.Context, c models.Campaign) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.rdb.HSet(ctx, s.campaignsKey(), c.ID, b).Err()
}

func (s *RedisStore) UpsertDaily(ctx context.Context, campaignID string, d models.DailyMetric) error {
	d = models.Derive(clampDay(d))
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	stub, err := json.Marshal(models.Campaign{ID: campaignID})
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSetNX(ctx, s.campaignsKey(), campaignID, stub)
		p.HSet(ctx, s.daysKey(campaignID), d.Date.String(), b)
		return nil
	})
	return err
}

func (s *RedisStore) Campaign(ctx context.Context, id string) (models.Campaign, error) {
	raw, err := s.rdb.HGet(ctx, s.campaignsKey(), id).Result()
	if errors.Is(err, redis.Nil) {
		return models.Campaign{}, ErrNotFound
	}
	if err != nil {
		return models.Campaign{}, err
	}
	var c models.Campaign
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return models.Campaign{}, fmt.Errorf("decode campaign %q: %w", id, err)
	}
	return c, nil
}

func (s *RedisStore) Campaigns(ctx context.Context) ([]models.Campaign, error) {
	all, err := s.rdb.HGetAll(ctx, s.campaignsKey()).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.Campaign, 0, len(all))
	for id, raw := range all {
		var c models.Campaign
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return nil, fmt.Errorf("decode campaign %q: %w", id, err)
		}
		out = append(out, c)
	}
	sortCampaigns(out)
	return out, nil
}

func (s *RedisStore) days(ctx context.Context, id string, from, to models.Date) ([]models.DailyMetric, error) {
	all, err := s.rdb.HGetAll(ctx, s.daysKey(id)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.DailyMetric, 0, len(all))
	for date, raw := range all {
		var d models.DailyMetric
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", id, date, err)
		}
		if inRange(d.Date, from, to) {
			out = append(out, d)
		}
	}
	sortDays(out)
	return out, nil
}

func (s *RedisStore) Series(ctx context.Context, id string, from, to models.Date) (models.CampaignSeries, error) {
	c, err := s.Campaign(ctx, id)
	if err != nil {
		return models.CampaignSeries{}, err
	}
	days, err := s.days(ctx, id, from, to)
	if err != nil {
		return models.CampaignSeries{}, err
	}
	return models.NewSeries(c, days), nil
}

func (s *RedisStore) Query(ctx context.Context, from, to models.Date, f func(DailyRow) bool) ([]DailyRow, error) {
	ids, err := s.rdb.HKeys(ctx, s.campaignsKey()).Result()
	if err != nil {
		return nil, err
	}
	out := []DailyRow{}
	for _, id := range ids {
		days, err := s.days(ctx, id, from, to)
		if err != nil {
			return nil, err
		}
		for _, d := range days {
			row := DailyRow{CampaignID: id, DailyMetric: d}
			if f == nil || f(row) {
				out = append(out, row)
			}
		}
	}
	sortRows(out)
	return out, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
