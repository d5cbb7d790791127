package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	arbcache "github.com/radieske/sports-arbitrage-platform/internal/arb-api/cache"
	httpapi "github.com/radieske/sports-arbitrage-platform/internal/arb-api/http"
	"github.com/radieske/sports-arbitrage-platform/internal/arb-api/repo"
	"github.com/radieske/sports-arbitrage-platform/internal/arb-api/sampler"
	"github.com/radieske/sports-arbitrage-platform/internal/arb-api/ws"
	betshttp "github.com/radieske/sports-arbitrage-platform/internal/bets/http"
	"github.com/radieske/sports-arbitrage-platform/internal/bets/producer"
	betsrepo "github.com/radieske/sports-arbitrage-platform/internal/bets/repo"
	portfoliohttp "github.com/radieske/sports-arbitrage-platform/internal/portfolio/http"
	portfoliorepo "github.com/radieske/sports-arbitrage-platform/internal/portfolio/repo"
	"github.com/radieske/sports-arbitrage-platform/internal/settings"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/auth"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/cache"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/config"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/db"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/kafka"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/logger"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/metrics"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/oddsapi"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/ratelimit"
)

func main() {
	// carrega config
	cfg := config.Load()

	// inicia logger
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	if cfg.ConfigFile != "" {
		if cfg, err = config.LoadFile(cfg.ConfigFile, cfg); err != nil {
			log.Fatal("config file", zap.Error(err))
		}
	}

	log.Info("starting service", zap.String("service", cfg.ServiceName), zap.String("env", cfg.Env))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// conecta com db Postgres e aplica as migrations
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()
	applied, err := db.Migrate(ctx, pg, "migrations")
	if err != nil {
		log.Fatal("migrations failed", zap.Error(err))
	}
	log.Info("postgres connected", zap.Strings("migrations_applied", applied))

	// conecta com cache Redis
	redisClient, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("redis connected")

	if cfg.Env == "local" || cfg.Env == "dev" {
		if err := kafka.EnsureTopics(ctx, cfg.KafkaBrokers, cfg.TopicBetPlaced); err != nil {
			log.Warn("ensure kafka topics", zap.Error(err))
		}
	}
	placedWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetPlaced)
	defer placedWriter.Close()

	// cliente da API de odds com dedup em memória + L2 no Redis
	odds, l1 := oddsapi.FromConfig(cfg, redisClient, log)
	l1.Start(ctx, cfg.Cache.SweepInterval)
	prometheus.MustRegister(metrics.NewCacheCollector(l1.Stats))

	store := repo.NewReadRepo(pg)
	opps := arbcache.NewOpportunities(redisClient, store, cfg.OpportunityTTL, log)
	loader := settings.NewLoader(settings.NewPostgres(pg), settings.Defaults(cfg), log)
	bets := betsrepo.NewPostgres(pg)
	portfolios := portfoliorepo.NewPostgres(pg)

	hub := ws.NewHub(allowOrigin(cfg.CORSOrigins), log)
	ws.StartRedisSubscriber(ctx, redisClient, cfg.RedisPubSubChannel, hub, log)

	go sampler.New(store, odds, opps, log).Run(ctx, cfg.MetricsSampleInterval)

	if cfg.AdminAPIToken == "" {
		log.Warn("ADMIN_API_TOKEN not set, admin endpoints only reachable with admin api keys")
	}

	api := &httpapi.API{
		Log:      log,
		Odds:     odds,
		Opps:     opps,
		Store:    store,
		Bets:     bets,
		Settings: loader,
		Auth:     auth.NewAuthenticator(store, cfg.AdminAPIToken, log),
		Limiter:  ratelimit.New(redisClient, log),
		Rules: httpapi.Rules{
			PreAuth: ratelimit.Rule{Name: "preauth", Limit: cfg.RateLimit.PreAuthPerMinute, Window: time.Minute},
			Public:  ratelimit.Rule{Name: "public", Limit: cfg.RateLimit.PublicPerMinute, Window: time.Minute},
			Auth:    ratelimit.Rule{Name: "auth", Limit: cfg.RateLimit.AuthPerMinute, Window: time.Minute},
			Admin:   ratelimit.Rule{Name: "admin", Limit: cfg.RateLimit.AdminPerMinute, Window: time.Minute},
		},
		WS:          hub.HandleWS,
		Portfolio:   portfoliohttp.NewServer(log, portfolios).Router(),
		BetsAPI:     betshttp.NewServer(log, bets, opps, odds, portfolios, producer.NewKafkaPublisher(placedWriter), cfg.Detection.Regions).Router(),
		CORSOrigins: cfg.CORSOrigins,
		Subscribers: hub.Subscribers,
	}

	// sobe servidor de métricas e health
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, metrics.Checks(map[string]metrics.HealthFunc{
		"postgres": pg.PingContext,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}), log)
	defer metricsSrv.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("arb-api listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
}

// allowOrigin aplica a mesma lista do CORS ao upgrade do WebSocket
func allowOrigin(origins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, "*") || slices.Contains(origins, origin)
	}
}
