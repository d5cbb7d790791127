package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/sports-arbitrage-platform/internal/odds-api-simulator/feed"
	simhttp "github.com/radieske/sports-arbitrage-platform/internal/odds-api-simulator/http"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/config"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/logger"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/metrics"
)

// Métricas Prometheus para monitoramento das consultas simuladas
var simRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "odds_sim_requests_total",
	Help: "requisições ao simulador por endpoint e status",
}, []string{"endpoint", "status"})

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfg.ConfigFile != "" {
		if cfg, err = config.LoadFile(cfg.ConfigFile, cfg); err != nil {
			log.Fatal("config file", zap.Error(err))
		}
	}

	prometheus.MustRegister(simRequests)

	f := feed.New(feed.Options{ArbProbability: cfg.SimArbProbability})
	s := simhttp.NewServer(log, f, cfg.OddsAPIKey, cfg.SimQuota)
	s.OnRequest = func(endpoint string, status int) {
		simRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, nil, log)
	defer metricsSrv.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		log.Info("odds api simulator running",
			zap.String("addr", srv.Addr),
			zap.Float64("arb_probability", cfg.SimArbProbability),
			zap.Int("quota", cfg.SimQuota),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("public server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("odds api simulator stopped")
}
