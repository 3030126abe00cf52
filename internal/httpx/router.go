package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/AngelCh415/campaign-health/internal/analysis"
	"github.com/AngelCh415/campaign-health/internal/health"
	"github.com/AngelCh415/campaign-health/internal/ingest"
	"github.com/AngelCh415/campaign-health/internal/logger"
	"github.com/AngelCh415/campaign-health/internal/models"
	"github.com/AngelCh415/campaign-health/internal/store"
	"github.com/AngelCh415/campaign-health/internal/utils"
)

const maxBody = 4 << 20

type Options struct {
	CORSOrigins []string
	Gatherer    prometheus.Gatherer
	HTTPMetrics *utils.HTTPMetrics
}

func NewRouter(log zerolog.Logger, etl *ingest.ETL, svc *analysis.Service, opts Options) http.Handler {
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.HTTPMetrics == nil {
		opts.HTTPMetrics = utils.NewHTTPMetrics(nil)
	}

	mux := chi.NewRouter()
	mux.Use(utils.Recoverer(log))
	mux.Use(utils.RequestID(log))
	mux.Use(utils.Logger(log))
	mux.Use(opts.HTTPMetrics.Instrument)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", utils.RequestIDHeader},
		ExposedHeaders: []string{utils.RequestIDHeader},
		MaxAge:         300,
	}))

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
	mux.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := svc.Ping(ctx); err != nil {
			writeError(w, r, http.StatusServiceUnavailable, err)
			return
		}
		w.WriteHeader(200)
		w.Write([]byte("ready"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))

	mux.Post("/ingest/run", func(w http.ResponseWriter, r *http.Request) {
		var since *time.Time
		if q := r.URL.Query().Get("since"); q != "" {
			d, err := models.ParseDate(q)
			if err != nil {
				writeError(w, r, http.StatusBadRequest, errors.New("since must be YYYY-MM-DD"))
				return
			}
			since = &d.Time
		}
		stats, err := etl.Run(r.Context(), since)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	})

	mux.Post("/export/run", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("date")
		if q == "" {
			writeError(w, r, http.StatusBadRequest, errors.New("date required (YYYY-MM-DD)"))
			return
		}
		d, err := models.ParseDate(q)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, errors.New("bad date"))
			return
		}
		n, err := etl.ExportDay(r.Context(), d.Time)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"exported": n})
	})

	mux.Get("/campaigns", func(w http.ResponseWriter, r *http.Request) {
		camps, err := svc.Campaigns(r.Context())
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, camps)
	})

	mux.Get("/campaigns/{id}/daily", func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.Daily(r.Context(), chi.URLParam(r, "id"), r.URL.Query())
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	})

	mux.Get("/campaigns/{id}/analysis", func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Analyze(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	mux.Get("/daily", func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.QueryDaily(r.Context(), r.URL.Query())
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	})

	mux.Get("/analysis", func(w http.ResponseWriter, r *http.Request) {
		b, err := svc.AnalyzeAll(r.Context(), analysis.ParseFilter(r.URL.Query()))
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	})

	mux.Post("/analyze", func(w http.ResponseWriter, r *http.Request) {
		var series models.CampaignSeries
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&series); err != nil {
			writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
			return
		}
		res, err := svc.AnalyzeSeries(series)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	mux.Post("/sweep", func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Sweep(r.Context())
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	})

	mux.Get("/thresholds", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Thresholds())
	})

	return mux
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, utils.ErrValidation),
		errors.Is(err, health.ErrMalformedSeries),
		errors.Is(err, analysis.ErrBadQuery):
		return http.StatusBadRequest
	case errors.Is(err, health.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ingest.ErrSinkNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, ingest.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= 500 {
		log := logger.From(r.Context(), zerolog.Nop())
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, r, code, err)
}

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, code int, err error) {
	writeJSON(w, code, errorBody{Error: strings.TrimSpace(err.Error()), RequestID: utils.RID(r.Context())})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", " ")
	enc.Encode(v)
}
