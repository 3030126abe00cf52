package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/AngelCh415/campaign-health/internal/health"
	"github.com/AngelCh415/campaign-health/internal/models"
	"github.com/AngelCh415/campaign-health/internal/notify"
	"github.com/AngelCh415/campaign-health/internal/store"
	"github.com/AngelCh415/campaign-health/internal/utils"
)

var ErrBadQuery = errors.New("bad query")

type Service struct {
	st      store.Store
	eng     *health.Engine
	notify  notify.Notifier
	log     zerolog.Logger
	m       *Metrics
	workers int
}

type Options struct {
	Workers int
	Metrics *Metrics
}

func NewService(st store.Store, eng *health.Engine, n notify.Notifier, log zerolog.Logger, opts Options) *Service {
	if n == nil {
		n = notify.Nop{}
	}
	if opts.Workers < 1 {
		opts.Workers = 4
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	return &Service{st: st, eng: eng, notify: n, log: log, m: opts.Metrics, workers: opts.Workers}
}

func (s *Service) Thresholds() health.Thresholds { return s.eng.Thresholds() }

func (s *Service) Ping(ctx context.Context) error { return s.st.Ping(ctx) }

func (s *Service) Campaigns(ctx context.Context) ([]models.Campaign, error) {
	return s.st.Campaigns(ctx)
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func csvSet(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, p := range strings.Split(s, ",") {
		p = norm(p)
		if p != "" {
			out[p] = struct{}{}
		}
	}
	return out
}

func parseDate(v url.Values, key string) (models.Date, error) {
	q := strings.TrimSpace(v.Get(key))
	if q == "" {
		return models.Date{}, nil
	}
	d, err := models.ParseDate(q)
	if err != nil {
		return models.Date{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", ErrBadQuery, key)
	}
	return d, nil
}

// DailyView is a stored day with rounded ratios for display.
type DailyView struct {
	Date        string  `json:"date"`
	CampaignID  string  `json:"campaign_id"`
	Spend       float64 `json:"spend"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Purchases   int64   `json:"purchases"`
	Revenue     float64 `json:"revenue"`
	CTR         float64 `json:"ctr"`
	CPC         float64 `json:"cpc"`
	CPM         float64 `json:"cpm"`
	CPP         float64 `json:"cpp"`
	ROAS        float64 `json:"roas"`
	Frequency   float64 `json:"frequency,omitempty"`
}

// QueryDaily lists stored days filtered by from, to and a campaign csv,
// ordered by date then campaign, with limit/offset pagination.
func (s *Service) QueryDaily(ctx context.Context, v url.Values) ([]DailyView, error) {
	from, err := parseDate(v, "from")
	if err != nil {
		return nil, err
	}
	to, err := parseDate(v, "to")
	if err != nil {
		return nil, err
	}
	ids := csvSet(v.Get("campaign"))
	limit := atoiDef(v.Get("limit"), 100)
	offset := atoiDef(v.Get("offset"), 0)

	rows, err := s.st.Query(ctx, from, to, func(r store.DailyRow) bool {
		if len(ids) > 0 {
			if _, ok := ids[norm(r.CampaignID)]; !ok {
				return false
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	views := toViews(rows)
	limit, offset = clampLimitOffset(limit, offset, len(views))
	return paginate(views, limit, offset), nil
}

// Daily lists one campaign's days, ascending.
func (s *Service) Daily(ctx context.Context, id string, v url.Values) ([]DailyView, error) {
	from, err := parseDate(v, "from")
	if err != nil {
		return nil, err
	}
	to, err := parseDate(v, "to")
	if err != nil {
		return nil, err
	}
	series, err := s.st.Series(ctx, id, from, to)
	if err != nil {
		return nil, err
	}
	rows := make([]store.DailyRow, 0, len(series.Days))
	for _, d := range series.Days {
		rows = append(rows, store.DailyRow{CampaignID: id, DailyMetric: d})
	}
	views := toViews(rows)
	limit, offset := clampLimitOffset(atoiDef(v.Get("limit"), 0), atoiDef(v.Get("offset"), 0), len(views))
	return paginate(views, limit, offset), nil
}

// Analyze runs the engine on the campaign's full stored history.
func (s *Service) Analyze(ctx context.Context, id string) (health.Result, error) {
	series, err := s.st.Series(ctx, id, models.Date{}, models.Date{})
	if err != nil {
		return health.Result{}, err
	}
	return s.run(series)
}

// AnalyzeSeries validates a caller-supplied series and analyzes it.
func (s *Service) AnalyzeSeries(series models.CampaignSeries) (health.Result, error) {
	if err := utils.ValidateStruct(series); err != nil {
		return health.Result{}, err
	}
	return s.run(models.NewSeries(series.Campaign, series.Days))
}

func (s *Service) run(series models.CampaignSeries) (health.Result, error) {
	start := time.Now()
	res, err := s.eng.Analyze(series)
	s.m.duration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.m.failures.WithLabelValues(failureReason(err)).Inc()
		return health.Result{}, err
	}
	s.m.analyses.WithLabelValues(string(res.Recommendation.Action)).Inc()
	for _, is := range res.Issues {
		s.m.issues.WithLabelValues(string(is.Type)).Inc()
	}
	return res, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, health.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, health.ErrMalformedSeries):
		return "malformed"
	}
	return "other"
}

// Filter narrows a batch by campaign status and by recommended action.
// Empty sets match everything.
type Filter struct {
	Statuses map[string]struct{}
	Actions  map[string]struct{}
}

func ParseFilter(v url.Values) Filter {
	return Filter{Statuses: csvSet(v.Get("status")), Actions: csvSet(v.Get("action"))}
}

type Outcome struct {
	Campaign models.Campaign `json:"campaign"`
	Result   health.Result   `json:"result"`
}

type Failure struct {
	CampaignID string `json:"campaign_id"`
	Error      string `json:"error"`
}

type Batch struct {
	Outcomes []Outcome `json:"outcomes"`
	Failures []Failure `json:"failures"`
}

// AnalyzeAll analyzes every stored campaign concurrently. Per-campaign data
// problems become Failures; store errors abort the batch. Outcomes keep
// campaign id order.
func (s *Service) AnalyzeAll(ctx context.Context, f Filter) (Batch, error) {
	return s.batch(ctx, f, models.Date{})
}

func (s *Service) batch(ctx context.Context, f Filter, asOf models.Date) (Batch, error) {
	camps, err := s.st.Campaigns(ctx)
	if err != nil {
		return Batch{}, err
	}
	selected := make([]models.Campaign, 0, len(camps))
	for _, c := range camps {
		if len(f.Statuses) > 0 {
			if _, ok := f.Statuses[norm(c.Status)]; !ok {
				continue
			}
		}
		selected = append(selected, c)
	}

	type slot struct {
		res health.Result
		err error
	}
	slots := make([]slot, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, c := range selected {
		i, c := i, c
		g.Go(func() error {
			series, err := s.st.Series(gctx, c.ID, models.Date{}, asOf)
			if err != nil {
				return fmt.Errorf("load %s: %w", c.ID, err)
			}
			res, err := s.run(series)
			slots[i] = slot{res: res, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Batch{}, err
	}

	out := Batch{Outcomes: []Outcome{}, Failures: []Failure{}}
	for i, sl := range slots {
		c := selected[i]
		if sl.err != nil {
			out.Failures = append(out.Failures, Failure{CampaignID: c.ID, Error: sl.err.Error()})
			continue
		}
		if len(f.Actions) > 0 {
			if _, ok := f.Actions[norm(string(sl.res.Recommendation.Action))]; !ok {
				continue
			}
		}
		out.Outcomes = append(out.Outcomes, Outcome{Campaign: c, Result: sl.res})
	}
	s.log.Debug().Int("outcomes", len(out.Outcomes)).Int("failures", len(out.Failures)).Msg("batch analyzed")
	return out, nil
}

// Report analyzes each campaign as of date and returns one row per campaign
// that has metrics on that day.
func (s *Service) Report(ctx context.Context, date models.Date) ([]models.ReportRow, error) {
	b, err := s.batch(ctx, Filter{}, date)
	if err != nil {
		return nil, err
	}
	rows := []models.ReportRow{}
	for _, o := range b.Outcomes {
		diag := o.Result.Recommendation.Diagnostics
		if diag.Input.LastDate != date.String() {
			continue
		}
		series, err := s.st.Series(ctx, o.Campaign.ID, date, date)
		if err != nil || len(series.Days) == 0 {
			continue
		}
		d := series.Days[0]
		rec := o.Result.Recommendation
		rows = append(rows, models.ReportRow{
			Date:        date.String(),
			CampaignID:  o.Campaign.ID,
			Campaign:    o.Campaign.Name,
			Status:      o.Campaign.Status,
			Spend:       round2(d.Spend),
			Revenue:     round2(d.Revenue),
			Purchases:   d.Purchases,
			CPP:         round2(d.CPP),
			ROAS:        round2(d.ROAS),
			CTR:         round4(d.CTR),
			HealthScore: rec.HealthScore,
			Action:      string(rec.Action),
			LifeStage:   string(rec.LifeStage),
			Issues:      o.Result.IssueTypes(),
		})
	}
	return rows, nil
}

type SweepStats struct {
	Analyzed int `json:"analyzed"`
	Failed   int `json:"failed"`
	Alerted  int `json:"alerted"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
}

// Sweep analyzes everything and alerts on STOP verdicts and critical issues.
// An alert for the same campaign, last day and action is sent only once;
// a failed send is retried on the next sweep.
func (s *Service) Sweep(ctx context.Context) (SweepStats, error) {
	b, err := s.AnalyzeAll(ctx, Filter{})
	if err != nil {
		return SweepStats{}, err
	}
	stats := SweepStats{Analyzed: len(b.Outcomes), Failed: len(b.Failures)}
	for _, o := range b.Outcomes {
		res := o.Result
		rec := res.Recommendation
		if rec.Action != health.ActionStop && !res.HasCritical() {
			continue
		}
		asOf := rec.Diagnostics.Input.LastDate
		key := fmt.Sprintf("alert|%s|%s|%s", o.Campaign.ID, asOf, rec.Action)
		fresh, err := s.st.MarkSeen(ctx, key)
		if err != nil {
			return stats, err
		}
		if !fresh {
			stats.Skipped++
			continue
		}
		err = s.notify.Notify(ctx, notify.Alert{
			CampaignID:  o.Campaign.ID,
			Campaign:    o.Campaign.Name,
			Action:      string(rec.Action),
			Reason:      rec.Reason,
			HealthScore: rec.HealthScore,
			LifeStage:   string(rec.LifeStage),
			Issues:      res.IssueTypes(),
			Critical:    res.HasCritical(),
			AsOf:        asOf,
		})
		if err != nil {
			s.m.alerts.WithLabelValues("error").Inc()
			s.log.Error().Err(err).Str("campaign_id", o.Campaign.ID).Msg("alert failed")
			stats.Errors++
			// next sweep retries
			if uerr := s.st.Unmark(ctx, key); uerr != nil {
				return stats, uerr
			}
			continue
		}
		s.m.alerts.WithLabelValues("sent").Inc()
		stats.Alerted++
	}
	s.log.Info().
		Int("analyzed", stats.Analyzed).
		Int("alerted", stats.Alerted).
		Int("errors", stats.Errors).
		Msg("sweep complete")
	return stats, nil
}

func toViews(rows []store.DailyRow) []DailyView {
	out := make([]DailyView, 0, len(rows))
	for _, r := range rows {
		out = append(out, DailyView{
			Date:        r.Date.String(),
			CampaignID:  r.CampaignID,
			Spend:       round2(r.Spend),
			Impressions: r.Impressions,
			Clicks:      r.Clicks,
			Purchases:   r.Purchases,
			Revenue:     round2(r.Revenue),
			CTR:         round4(r.CTR),
			CPC:         round2(r.CPC),
			CPM:         round2(r.CPM),
			CPP:         round2(r.CPP),
			ROAS:        round2(r.ROAS),
			Frequency:   round2(r.Frequency),
		})
	}
	return out
}

func paginate[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return []T{}
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}

func atoiDef(s string, d int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return v
}

func clampLimitOffset(limit, offset, n int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = n
	}
	if limit > 1000 {
		limit = 1000
	} // tope sano
	if offset > n {
		offset = n
	}
	return limit, offset
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
func round4(f float64) float64 { return math.Round(f*10000) / 10000 }
