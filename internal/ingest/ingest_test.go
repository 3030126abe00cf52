package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/campaign-health/internal/config"
	"github.com/AngelCh415/campaign-health/internal/models"
	"github.com/AngelCh415/campaign-health/internal/store"
	"github.com/AngelCh415/campaign-health/internal/utils"
)

// fetchURL hace la petición y devuelve el código HTTP
func fetchURL(c HTTPClient, url string) (int, error) {
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	resp, err := c.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func TestHTTPClientHandles500And404(t *testing.T) {
	for _, code := range []int{http.StatusInternalServerError, http.StatusNotFound} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", code)
		}))
		got, err := fetchURL(NewHTTPClient(2*time.Second), srv.URL)
		srv.Close()
		require.NoError(t, err)
		assert.Equal(t, code, got)
	}
}

func TestHTTPClientHandlesTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := fetchURL(NewHTTPClient(50*time.Millisecond), srv.URL)
	assert.Error(t, err)
}

func TestGetJSONWithRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out struct{ OK bool }
	err := GetJSONWithRetry(context.Background(), NewHTTPClient(time.Second), utils.NewBackoff(time.Millisecond, 3), srv.URL, "tok", &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGetJSONWithRetryStopsOn4xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad since", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := GetJSONWithRetry(context.Background(), NewHTTPClient(time.Second), utils.NewBackoff(time.Millisecond, 3), srv.URL, "", &struct{}{})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func adsServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/campaigns", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id":"c-1","name":" Summer ","status":"active","created_time":"2025-07-01T10:00:00+0000","daily_budget":100000},
			{"id":"","name":"broken"},
			{"id":"c-2","name":"Brand"}
		]`))
	})
	mux.HandleFunc("/campaigns/c-1/insights", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2025-08-01", r.URL.Query().Get("since"))
		w.Write([]byte(`[
			{"date_start":"2025-08-02","spend":200,"impressions":1000,"clicks":20,"purchases":2,"purchase_value":800},
			{"date_start":"2025-08-01","spend":100,"impressions":1000,"clicks":10,"purchases":1,"purchase_value":300,"frequency":1.2},
			{"date_start":"2025-08-03","spend":-5},
			{"date_start":"nope","spend":5},
			{"date_start":"2025-08-02","spend":250,"impressions":1000,"clicks":20,"purchases":2,"purchase_value":800}
		]`))
	})
	mux.HandleFunc("/campaigns/c-2/insights", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newAds(url string) *AdsAPI {
	return NewAdsAPI(NewHTTPClient(time.Second), AdsOptions{BaseURL: url, Backoff: utils.NewBackoff(time.Millisecond, 0)}, zerolog.Nop())
}

func TestAdsAPICampaigns(t *testing.T) {
	a := newAds(adsServer(t).URL)

	cs, err := a.Campaigns(context.Background())
	require.NoError(t, err)
	require.Len(t, cs, 2, "campaign without id is skipped")
	assert.Equal(t, "Summer", cs[0].Name)
	assert.Equal(t, "ACTIVE", cs[0].Status)
	require.NotNil(t, cs[0].CreatedAt)
	assert.Equal(t, "2025-07-01", models.DayOf(*cs[0].CreatedAt).String())
	assert.Equal(t, "UNKNOWN", cs[1].Status)
}

func TestAdsAPIFetchDailyMetrics(t *testing.T) {
	a := newAds(adsServer(t).URL)
	from := models.NewDate(2025, time.August, 1)

	days, err := a.FetchDailyMetrics(context.Background(), "c-1", from, from.AddDays(5))
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, "2025-08-01", days[0].Date.String())
	assert.InDelta(t, 3, days[0].ROAS, 1e-9)
	assert.Equal(t, 1.2, days[0].Frequency)
	assert.Equal(t, 250.0, days[1].Spend, "repeated date keeps the last row")
	assert.InDelta(t, 125, days[1].CPP, 1e-9)
}

func TestAdsAPIBreakerOpens(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	a := newAds(srv.URL)

	for i := 0; i < 5; i++ {
		_, err := a.Campaigns(context.Background())
		require.Error(t, err)
	}
	_, err := a.Campaigns(context.Background())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))
}

func TestAdsAPIBreakerIgnores4xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	a := newAds(srv.URL)

	for i := 0; i < 7; i++ {
		_, err := a.Campaigns(context.Background())
		var se *StatusError
		require.ErrorAs(t, err, &se)
	}
}

type fakeFetcher struct {
	camps []models.Campaign
	days  map[string][]models.DailyMetric
	err   map[string]error
}

func (f fakeFetcher) Campaigns(context.Context) ([]models.Campaign, error) { return f.camps, nil }

func (f fakeFetcher) FetchDailyMetrics(_ context.Context, id string, _, _ models.Date) ([]models.DailyMetric, error) {
	if err := f.err[id]; err != nil {
		return nil, err
	}
	return f.days[id], nil
}

type fakeReporter struct{ rows []models.ReportRow }

func (r fakeReporter) Report(context.Context, models.Date) ([]models.ReportRow, error) { return r.rows, nil }

func TestETLRunIsIdempotent(t *testing.T) {
	d0 := models.NewDate(2025, time.August, 1)
	f := fakeFetcher{
		camps: []models.Campaign{{ID: "c-1", Name: "One"}, {ID: "c-2"}},
		days: map[string][]models.DailyMetric{
			"c-1": {{Date: d0, Spend: 100, Purchases: 1}, {Date: d0.AddDays(1), Spend: 200, Purchases: 2}},
		},
		err: map[string]error{"c-2": errors.New("boom")},
	}
	st := store.NewMemoryStore()
	etl := NewETL(f, st, nil, nil, zerolog.Nop(), config.Config{LookbackDays: 30})

	stats, err := etl.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Campaigns)
	assert.Equal(t, 2, stats.Days)
	assert.Equal(t, []string{"c-2"}, stats.Failed)

	stats, err = etl.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, stats.Days)
	assert.Equal(t, 2, stats.Unchanged)

	s, err := st.Series(context.Background(), "c-1", models.Date{}, models.Date{})
	require.NoError(t, err)
	assert.Equal(t, "One", s.Campaign.Name)
	assert.Len(t, s.Days, 2)
}

// flakyStore fails the first UpsertDaily.
type flakyStore struct {
	*store.MemoryStore
	failed bool
}

func (s *flakyStore) UpsertDaily(ctx context.Context, id string, d models.DailyMetric) error {
	if !s.failed {
		s.failed = true
		return errors.New("write timeout")
	}
	return s.MemoryStore.UpsertDaily(ctx, id, d)
}

func TestETLRunRetriesFailedWrite(t *testing.T) {
	d0 := models.NewDate(2025, time.August, 1)
	f := fakeFetcher{
		camps: []models.Campaign{{ID: "c-1"}},
		days:  map[string][]models.DailyMetric{"c-1": {{Date: d0, Spend: 100, Purchases: 1}}},
	}
	st := &flakyStore{MemoryStore: store.NewMemoryStore()}
	etl := NewETL(f, st, nil, nil, zerolog.Nop(), config.Config{LookbackDays: 30})

	_, err := etl.Run(context.Background(), nil)
	assert.ErrorContains(t, err, "write timeout")

	stats, err := etl.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Days)
	assert.Equal(t, 0, stats.Unchanged)

	series, err := st.Series(context.Background(), "c-1", models.Date{}, models.Date{})
	require.NoError(t, err)
	assert.Len(t, series.Days, 1)
}

func TestETLRunPicksUpFrequencyRestatement(t *testing.T) {
	d0 := models.NewDate(2025, time.August, 1)
	day := models.DailyMetric{Date: d0, Spend: 100, Purchases: 1, Frequency: 1.5}
	f := fakeFetcher{
		camps: []models.Campaign{{ID: "c-1"}},
		days:  map[string][]models.DailyMetric{"c-1": {day}},
	}
	st := store.NewMemoryStore()
	etl := NewETL(f, st, nil, nil, zerolog.Nop(), config.Config{LookbackDays: 30})
	_, err := etl.Run(context.Background(), nil)
	require.NoError(t, err)

	day.Frequency = 4.2
	f.days["c-1"] = []models.DailyMetric{day}
	stats, err := etl.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Days)

	series, err := st.Series(context.Background(), "c-1", models.Date{}, models.Date{})
	require.NoError(t, err)
	require.Len(t, series.Days, 1)
	assert.Equal(t, 4.2, series.Days[0].Frequency)
}

func TestETLRunAllFailed(t *testing.T) {
	f := fakeFetcher{
		camps: []models.Campaign{{ID: "c-1"}},
		err:   map[string]error{"c-1": errors.New("down")},
	}
	etl := NewETL(f, store.NewMemoryStore(), nil, nil, zerolog.Nop(), config.Config{LookbackDays: 7})
	_, err := etl.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestExportDaySignsPayload(t *testing.T) {
	const secret = "s3cret"
	var gotSig string
	var gotRows []models.ReportRow
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Signature")
		assert.Equal(t, utils.Sign(secret, body), gotSig)
		assert.NoError(t, json.Unmarshal(body, &gotRows))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer sink.Close()

	rep := fakeReporter{rows: []models.ReportRow{{Date: "2025-08-01", CampaignID: "c-1", Action: "STOP", Issues: []string{"losing_money"}}}}
	etl := NewETL(fakeFetcher{}, store.NewMemoryStore(), rep, NewHTTPClient(time.Second), zerolog.Nop(),
		config.Config{SinkURL: sink.URL, SinkSecret: secret})

	n, err := etl.ExportDay(context.Background(), time.Date(2025, 8, 1, 15, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NotEmpty(t, gotSig)
	require.Len(t, gotRows, 1)
	assert.Equal(t, "STOP", gotRows[0].Action)
}

func TestExportDayErrors(t *testing.T) {
	etl := NewETL(fakeFetcher{}, store.NewMemoryStore(), fakeReporter{}, nil, zerolog.Nop(), config.Config{})
	_, err := etl.ExportDay(context.Background(), time.Now())
	assert.ErrorIs(t, err, ErrSinkNotConfigured)

	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer sink.Close()
	rep := fakeReporter{rows: []models.ReportRow{{CampaignID: "c-1"}}}
	etl = NewETL(fakeFetcher{}, store.NewMemoryStore(), rep, NewHTTPClient(time.Second), zerolog.Nop(),
		config.Config{SinkURL: sink.URL, SinkSecret: "x"})
	_, err = etl.ExportDay(context.Background(), time.Now())
	assert.ErrorIs(t, err, ErrUpstream)
}
