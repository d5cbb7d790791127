package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/sports-arbitrage-platform/internal/odds-poller/publisher"
	"github.com/radieske/sports-arbitrage-platform/internal/odds-poller/service"
	"github.com/radieske/sports-arbitrage-platform/internal/settings"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/cache"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/config"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/db"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/kafka"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/logger"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/metrics"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/oddsapi"
	"github.com/radieske/sports-arbitrage-platform/pkg/contracts/events"
)

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

	log.Info("Kafka brokers", zap.String("brokers", cfg.KafkaBrokers))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Settings editáveis pelo admin ficam no Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()
	loader := settings.NewLoader(settings.NewPostgres(pg), settings.Defaults(cfg), log)

	// Redis é o L2 compartilhado com o arb-api; sem ele o poller segue só com o L1
	redisClient, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Warn("redis unavailable, odds cache is local only", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}
	odds, l1 := oddsapi.FromConfig(cfg, redisClient, log)
	l1.Start(ctx, cfg.Cache.SweepInterval)
	prometheus.MustRegister(metrics.NewCacheCollector(l1.Stats))

	if cfg.Env == "local" || cfg.Env == "dev" {
		if err := kafka.EnsureTopics(ctx, cfg.KafkaBrokers, cfg.TopicOpportunities); err != nil {
			log.Warn("ensure kafka topics", zap.Error(err))
		}
	}
	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicOpportunities)
	defer writer.Close()

	cycleDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "odds_poller_cycle_duration_seconds",
		Help:    "duração de cada rodada de polling",
		Buckets: prometheus.DefBuckets,
	})
	cycles := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "odds_poller_cycles_total", Help: "rodadas por resultado"}, []string{"result"})
	published := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_poller_published_total", Help: "oportunidades publicadas no Kafka"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "odds_poller_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(cycleDuration, cycles, published, errorsBy)

	poller := &service.Poller{
		Log:       log,
		Odds:      odds,
		Settings:  loader,
		Publisher: publisher.NewKafkaPublisher(writer, log),
		MinQuota:  cfg.MinQuotaReserve,
		OnCycle: func(d time.Duration, res service.CycleResult) {
			cycleDuration.Observe(d.Seconds())
			result := "ok"
			if res.Skipped != "" {
				result = res.Skipped
			}
			cycles.WithLabelValues(result).Inc()
			published.Add(float64(res.Published))
		},
		OnDetected: func(o events.Opportunity) {
			metrics.OpportunitiesDetected.WithLabelValues(o.SportKey, o.Market).Inc()
		},
		OnError: func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	srv := metrics.StartMetricsServer(cfg.MetricsPort, metrics.Checks(map[string]metrics.HealthFunc{
		"postgres": pg.PingContext,
	}), log)
	defer srv.Close()

	log.Info("odds-poller started",
		zap.String("odds_api", cfg.OddsAPIBaseURL),
		zap.Strings("sports", cfg.Detection.Sports),
		zap.Duration("interval", cfg.PollInterval),
	)
	poller.Run(ctx)
	log.Info("odds-poller stopped")
}
