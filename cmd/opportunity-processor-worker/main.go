package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/sports-arbitrage-platform/internal/opportunity-processor/cache"
	"github.com/radieske/sports-arbitrage-platform/internal/opportunity-processor/consumer"
	"github.com/radieske/sports-arbitrage-platform/internal/opportunity-processor/pubsub"
	"github.com/radieske/sports-arbitrage-platform/internal/opportunity-processor/repository"
	sharedcache "github.com/radieske/sports-arbitrage-platform/internal/shared/cache"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/config"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/db"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/kafka"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/logger"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/metrics"
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

	// Inicializa dependências: Postgres e Redis
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	rcache := cache.NewRedisCache(redisClient, cfg.OpportunityTTL)
	repo := repository.NewPostgresRepo(pg)

	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicOpportunities, cfg.OpportunityConsumerGrp)
	defer reader.Close()

	// Métricas Prometheus para monitoramento do processamento
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "opp_proc_messages_consumed_total", Help: "mensagens consumidas"})
	cached := prometheus.NewCounter(prometheus.CounterOpts{Name: "opp_proc_cache_sets_total", Help: "sets no cache"})
	persist := prometheus.NewCounter(prometheus.CounterOpts{Name: "opp_proc_db_writes_total", Help: "escritas no banco (upsert+history)"})
	pruned := prometheus.NewCounter(prometheus.CounterOpts{Name: "opp_proc_pruned_total", Help: "oportunidades expiradas removidas do Redis"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "opp_proc_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, cached, persist, pruned, errorsBy)

	// Broadcast das oportunidades para o WebSocket do arb-api
	broadcaster := pubsub.NewBroadcaster(redisClient, cfg.RedisPubSubChannel)

	proc := &consumer.Processor{
		Log:        log,
		Reader:     reader,
		Repo:       repo,
		Cache:      rcache,
		OnConsumed: func() { consumed.Inc() },
		OnCached:   func() { cached.Inc() },
		OnPersist:  func() { persist.Inc() },
		OnError:    func(stage string) { errorsBy.WithLabelValues(stage).Inc() },

		OnAfterPersist: func(o events.Opportunity) {
			if err := broadcaster.Opportunity(context.Background(), o); err != nil {
				errorsBy.WithLabelValues("broadcast").Inc()
				log.Warn("ws broadcast publish failed", zap.Error(err))
			}
		},
	}

	srv := metrics.StartMetricsServer(cfg.MetricsPort, metrics.Checks(map[string]metrics.HealthFunc{
		"postgres": pg.PingContext,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}), log)
	defer srv.Close()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Tira do conjunto atual o que não foi redetectado dentro do TTL
	go func() {
		t := time.NewTicker(cfg.OpportunityTTL / 2)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n, err := rcache.Prune(ctx)
				if err != nil && ctx.Err() == nil {
					errorsBy.WithLabelValues("prune").Inc()
					log.Warn("prune current opportunities", zap.Error(err))
				}
				pruned.Add(float64(n))
			}
		}
	}()

	log.Info("opportunity-processor started",
		zap.String("topic", cfg.TopicOpportunities),
		zap.String("group", cfg.OpportunityConsumerGrp),
	)
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("opportunity-processor stopped")
}
