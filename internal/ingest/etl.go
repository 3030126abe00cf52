package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/AngelCh415/campaign-health/internal/config"
	"github.com/AngelCh415/campaign-health/internal/models"
	"github.com/AngelCh415/campaign-health/internal/store"
	"github.com/AngelCh415/campaign-health/internal/utils"
)

var (
	ErrSinkNotConfigured = errors.New("sink not configured")
	ErrUpstream          = errors.New("upstream failure")
)

// Reporter turns stored series into export rows for one day.
type Reporter interface {
	Report(ctx context.Context, date models.Date) ([]models.ReportRow, error)
}

type ETL struct {
	f       Fetcher
	st      store.Store
	rep     Reporter
	c       HTTPClient
	log     zerolog.Logger
	cfg     config.Config
	backoff utils.Backoff
	now     func() time.Time
}

func NewETL(f Fetcher, st store.Store, rep Reporter, c HTTPClient, log zerolog.Logger, cfg config.Config) *ETL {
	return &ETL{
		f: f, st: st, rep: rep, c: c, log: log, cfg: cfg,
		backoff: utils.NewBackoff(200*time.Millisecond, 3),
		now:     time.Now,
	}
}

type RunStats struct {
	Campaigns int      `json:"campaigns"`
	Days      int      `json:"days"`
	Unchanged int      `json:"unchanged"`
	Failed    []string `json:"failed"`
}

// Run pulls campaigns and their daily metrics from since (or the lookback
// window) through today into the store. One failing campaign does not stop
// the others.
func (e *ETL) Run(ctx context.Context, since *time.Time) (RunStats, error) {
	stats := RunStats{Failed: []string{}}
	camps, err := e.f.Campaigns(ctx)
	if err != nil {
		return stats, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	to := models.DayOf(e.now())
	from := to.AddDays(-e.cfg.LookbackDays)
	if since != nil {
		from = models.DayOf(*since)
	}

	for _, c := range camps {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := e.st.UpsertCampaign(ctx, c); err != nil {
			return stats, fmt.Errorf("store campaign %s: %w", c.ID, err)
		}
		stats.Campaigns++

		days, err := e.f.FetchDailyMetrics(ctx, c.ID, from, to)
		if err != nil {
			e.log.Error().Err(err).Str("campaign_id", c.ID).Msg("fetch failed")
			stats.Failed = append(stats.Failed, c.ID)
			continue
		}
		for _, d := range days {
			// idempotencia: same day with the same numbers is skipped
			key := dayKey(c.ID, d)
			fresh, err := e.st.MarkSeen(ctx, key)
			if err != nil {
				return stats, err
			}
			if !fresh {
				stats.Unchanged++
				continue
			}
			if err := e.st.UpsertDaily(ctx, c.ID, d); err != nil {
				// the next run must see the day as new
				err = fmt.Errorf("store %s/%s: %w", c.ID, d.Date, err)
				if uerr := e.st.Unmark(ctx, key); uerr != nil {
					err = errors.Join(err, uerr)
				}
				return stats, err
			}
			stats.Days++
		}
	}

	e.log.Info().
		Int("campaigns", stats.Campaigns).
		Int("days", stats.Days).
		Int("unchanged", stats.Unchanged).
		Int("failed", len(stats.Failed)).
		Msg("ingest complete")

	if len(camps) > 0 && len(stats.Failed) == len(camps) {
		return stats, fmt.Errorf("%w: every campaign fetch failed", ErrUpstream)
	}
	return stats, nil
}

// ExportDay posts the day's report rows to the sink, signed with
// HMAC-SHA256 over the body in X-Signature.
func (e *ETL) ExportDay(ctx context.Context, date time.Time) (int, error) {
	if e.cfg.SinkURL == "" || e.cfg.SinkSecret == "" {
		return 0, ErrSinkNotConfigured
	}
	rows, err := e.rep.Report(ctx, models.DayOf(date))
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return 0, err
	}
	sig := utils.Sign(e.cfg.SinkSecret, b)

	err = e.backoff.Do(ctx, func(int) error {
		return postSigned(ctx, e.c, e.cfg.SinkURL, sig, b)
	})
	if err != nil {
		return 0, fmt.Errorf("%w: export: %v", ErrUpstream, err)
	}
	e.log.Info().Str("date", models.DayOf(date).String()).Int("rows", len(rows)).Msg("export complete")
	return len(rows), nil
}

func postSigned(ctx context.Context, c HTTPClient, url, sig string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return utils.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", sig)
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		se := &StatusError{Code: resp.StatusCode, Body: string(msg)}
		if !se.Retryable() {
			return utils.Permanent(se)
		}
		return se
	}
	return nil
}

func dayKey(campaignID string, d models.DailyMetric) string {
	return fmt.Sprintf("ads|%s|%s|%.4f|%d|%d|%d|%.4f|%.4f",
		campaignID, d.Date, d.Spend, d.Impressions, d.Clicks, d.Purchases, d.Revenue, d.Frequency)
}

func coalesce(s, def string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

func sortByDate(days []models.DailyMetric) {
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date.Time) })
}
