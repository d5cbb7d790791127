package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/sports-arbitrage-platform/internal/bet-settlement/settler"
	betsrepo "github.com/radieske/sports-arbitrage-platform/internal/bets/repo"
	"github.com/radieske/sports-arbitrage-platform/internal/bets/producer"
	portfoliorepo "github.com/radieske/sports-arbitrage-platform/internal/portfolio/repo"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/cache"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/config"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/db"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/kafka"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/logger"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/metrics"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/oddsapi"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/retry"
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

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Conexão com banco de dados Postgres para apostas e carteiras
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	redisClient, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Warn("redis unavailable, scores cache is local only", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}
	scores, l1 := oddsapi.FromConfig(cfg, redisClient, log)
	l1.Start(ctx, cfg.Cache.SweepInterval)

	if cfg.Env == "local" || cfg.Env == "dev" {
		if err := kafka.EnsureTopics(ctx, cfg.KafkaBrokers, cfg.TopicBetSettled, cfg.TopicBetSettlementDLQ); err != nil {
			log.Warn("ensure kafka topics", zap.Error(err))
		}
	}

	// Kafka producer: publica bet_settled e, opcionalmente, envia para DLQ
	settledWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSettled)
	defer settledWriter.Close()

	var dlq kafka.Publisher
	if cfg.TopicBetSettlementDLQ != "" {
		dlqWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSettlementDLQ)
		defer dlqWriter.Close()
		dlq = dlqWriter
	}

	settledBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_bets_total", Help: "apostas encerradas por status"}, []string{"status"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_errors_total", Help: "erros por estágio"}, []string{"stage"})
	cycleDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "settlement_cycle_duration_seconds",
		Help:    "duração de cada rodada de liquidação",
		Buckets: prometheus.DefBuckets,
	})
	prometheus.MustRegister(settledBy, errorsBy, cycleDuration)

	s := &settler.Settler{
		Log:       log,
		Bets:      betsrepo.NewPostgres(pg),
		Wallet:    portfoliorepo.NewPostgres(pg),
		Scores:    scores,
		Publisher: producer.NewKafkaPublisher(settledWriter),
		DLQ:       dlq,
		Retry:     retry.NewPolicy(3, 500*time.Millisecond),
		OnCycle:   func(d time.Duration, _ settler.Result) { cycleDuration.Observe(d.Seconds()) },
		OnSettled: func(status string) { settledBy.WithLabelValues(status).Inc() },
		OnError:   func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	srv := metrics.StartMetricsServer(cfg.MetricsPort, metrics.Checks(map[string]metrics.HealthFunc{
		"postgres": pg.PingContext,
	}), log)
	defer srv.Close()

	log.Info("bet-settlement-worker started",
		zap.String("publish", cfg.TopicBetSettled),
		zap.String("dlq", cfg.TopicBetSettlementDLQ),
		zap.Duration("interval", cfg.SettleInterval),
	)

	s.Run(ctx, cfg.SettleInterval)
	log.Info("bet-settlement-worker stopped")
}
