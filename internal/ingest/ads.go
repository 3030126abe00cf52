package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/AngelCh415/campaign-health/internal/models"
	"github.com/AngelCh415/campaign-health/internal/utils"
)

// Fetcher is the ads-platform capability the pipeline depends on.
type Fetcher interface {
	Campaigns(ctx context.Context) ([]models.Campaign, error)
	FetchDailyMetrics(ctx context.Context, campaignID string, from, to models.Date) ([]models.DailyMetric, error)
}

type campaignResp struct {
	ID          string  `json:"id" validate:"required"`
	Name        string  `json:"name"`
	Status      string  `json:"status"`
	CreatedTime string  `json:"created_time"`
	DailyBudget float64 `json:"daily_budget" validate:"gte=0"`
}

type insightRow struct {
	DateStart     string  `json:"date_start" validate:"required"`
	Spend         float64 `json:"spend" validate:"gte=0"`
	Impressions   int64   `json:"impressions" validate:"gte=0"`
	Clicks        int64   `json:"clicks" validate:"gte=0"`
	Purchases     int64   `json:"purchases" validate:"gte=0"`
	PurchaseValue float64 `json:"purchase_value" validate:"gte=0"`
	Frequency     float64 `json:"frequency" validate:"gte=0"`
}

type AdsOptions struct {
	BaseURL string
	Token   string
	RPS     float64
	Backoff utils.Backoff
}

// AdsAPI fetches campaigns and daily insights over HTTP. Calls are rate
// limited and go through a circuit breaker.
type AdsAPI struct {
	c       HTTPClient
	base    string
	token   string
	backoff utils.Backoff
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

func NewAdsAPI(c HTTPClient, opts AdsOptions, log zerolog.Logger) *AdsAPI {
	limit := rate.Inf
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
	}
	a := &AdsAPI{
		c:       c,
		base:    strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		backoff: opts.Backoff,
		limiter: rate.NewLimiter(limit, 1),
		log:     log,
	}
	a.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ads-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// 4xx does not count against the breaker
		IsSuccessful: func(err error) bool {
			var se *StatusError
			return err == nil || (errors.As(err, &se) && !se.Retryable())
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit state change")
		},
	})
	return a
}

func (a *AdsAPI) get(ctx context.Context, path string, q url.Values, dst any) error {
	if a.base == "" {
		return errors.New("ads api url not configured")
	}
	u := a.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	_, err := a.cb.Execute(func() (interface{}, error) {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return nil, GetJSONWithRetry(ctx, a.c, a.backoff, u, a.token, dst)
	})
	return err
}

func (a *AdsAPI) Campaigns(ctx context.Context) ([]models.Campaign, error) {
	var resp []campaignResp
	if err := a.get(ctx, "/campaigns", nil, &resp); err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	out := make([]models.Campaign, 0, len(resp))
	for _, r := range resp {
		if err := utils.ValidateStruct(r); err != nil {
			a.log.Warn().Err(err).Str("campaign_id", r.ID).Msg("skipping campaign")
			continue
		}
		c := models.Campaign{
			ID:          strings.TrimSpace(r.ID),
			Name:        strings.TrimSpace(r.Name),
			Status:      strings.ToUpper(coalesce(r.Status, "UNKNOWN")),
			DailyBudget: r.DailyBudget,
		}
		if r.CreatedTime != "" {
			if t, err := parseTimestamp(r.CreatedTime); err == nil {
				c.CreatedAt = &t
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// FetchDailyMetrics returns the campaign's days in [from, to], ascending.
// Rows failing validation are skipped; a repeated date keeps the last row.
func (a *AdsAPI) FetchDailyMetrics(ctx context.Context, campaignID string, from, to models.Date) ([]models.DailyMetric, error) {
	q := url.Values{}
	q.Set("since", from.String())
	q.Set("until", to.String())
	var rows []insightRow
	if err := a.get(ctx, "/campaigns/"+url.PathEscape(campaignID)+"/insights", q, &rows); err != nil {
		return nil, fmt.Errorf("insights %s: %w", campaignID, err)
	}

	byDate := make(map[string]int, len(rows))
	out := make([]models.DailyMetric, 0, len(rows))
	skipped := 0
	for _, r := range rows {
		if err := utils.ValidateStruct(r); err != nil {
			skipped++
			continue
		}
		d, err := models.ParseDate(strings.TrimSpace(r.DateStart))
		if err != nil {
			skipped++
			continue
		}
		m := models.Derive(models.DailyMetric{
			Date:        d,
			Spend:       r.Spend,
			Impressions: r.Impressions,
			Clicks:      r.Clicks,
			Purchases:   r.Purchases,
			Revenue:     r.PurchaseValue,
			Frequency:   r.Frequency,
		})
		if i, ok := byDate[d.String()]; ok {
			out[i] = m
			continue
		}
		byDate[d.String()] = len(out)
		out = append(out, m)
	}
	if skipped > 0 {
		a.log.Warn().Str("campaign_id", campaignID).Int("skipped", skipped).Msg("invalid insight rows")
	}
	sortByDate(out)
	return out, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-0700", models.DateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
