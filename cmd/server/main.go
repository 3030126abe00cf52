package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/AngelCh415/campaign-health/internal/analysis"
	"github.com/AngelCh415/campaign-health/internal/config"
	"github.com/AngelCh415/campaign-health/internal/health"
	"github.com/AngelCh415/campaign-health/internal/httpx"
	"github.com/AngelCh415/campaign-health/internal/ingest"
	"github.com/AngelCh415/campaign-health/internal/logger"
	"github.com/AngelCh415/campaign-health/internal/notify"
	"github.com/AngelCh415/campaign-health/internal/store"
	"github.com/AngelCh415/campaign-health/internal/utils"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		boot := logger.New(logger.Options{Service: "campaign-health"})
		boot.Fatal().Err(err).Msg("config")
	}

	log := logger.New(logger.Options{
		Service: "campaign-health",
		Level:   logger.ParseLevel(cfg.LogLevel),
		Format:  cfg.LogFormat,
	})

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("server error")
		os.Exit(1)
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	th, err := config.LoadThresholds(cfg.ThresholdsFile)
	if err != nil {
		return err
	}
	eng, err := health.NewEngine(th)
	if err != nil {
		return err
	}

	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	cl := ingest.NewHTTPClient(cfg.HTTPTimeout())
	ads := ingest.NewAdsAPI(cl, ingest.AdsOptions{
		BaseURL: cfg.AdsURL,
		Token:   cfg.AdsToken,
		RPS:     cfg.AdsRPS,
		Backoff: utils.NewBackoff(200*time.Millisecond, 3),
	}, log)

	var n notify.Notifier = notify.Nop{}
	if cfg.AlertWebhookURL != "" {
		n = notify.NewWebhook(cl, cfg.AlertWebhookURL, cfg.AlertSecret, utils.NewBackoff(500*time.Millisecond, 3), log)
	}

	svc := analysis.NewService(st, eng, n, log, analysis.Options{
		Workers: cfg.AnalysisConcurrency,
		Metrics: analysis.NewMetrics(reg),
	})
	etl := ingest.NewETL(ads, st, svc, cl, log, cfg)

	r := httpx.NewRouter(log, etl, svc, httpx.Options{
		CORSOrigins: cfg.CORSOrigins,
		Gatherer:    reg,
		HTTPMetrics: utils.NewHTTPMetrics(reg),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.StoreBackend).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (store.Store, func(), error) {
	if !strings.EqualFold(cfg.StoreBackend, "redis") {
		return store.NewMemoryStore(), func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	st := store.NewRedisStore(rdb, cfg.RedisPrefix)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := st.Ping(pingCtx); err != nil {
		rdb.Close()
		return nil, nil, err
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("redis connected")
	return st, func() { rdb.Close() }, nil
}
