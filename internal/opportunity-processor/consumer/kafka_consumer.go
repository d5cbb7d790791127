package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/sports-arbitrage-platform/internal/shared/kafka"
	"github.com/radieske/sports-arbitrage-platform/pkg/contracts/events"
)

// MessageReader é satisfeito por *kafka.Reader
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type Cache interface {
	SetCurrent(ctx context.Context, o events.Opportunity) error
}

type Repo interface {
	UpsertCurrent(ctx context.Context, o events.Opportunity) error
	InsertHistory(ctx context.Context, o events.Opportunity) error
}

var errInvalid = errors.New("invalid opportunity")

// Processor consome oportunidades do Kafka, atualiza o Redis e persiste no banco
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa
type Processor struct {
	Log    *zap.Logger
	Reader MessageReader
	Repo   Repo
	Cache  Cache

	OnConsumed func()       // métricas (counter++)
	OnCached   func()       // métricas
	OnPersist  func()       // métricas
	OnError    func(string) // métricas por fase

	// chamado após persistir (broadcast via Redis Pub/Sub)
	OnAfterPersist func(events.Opportunity)
}

// Run inicia o loop principal de consumo
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.fail("read")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		_ = p.Handle(ctx, m)
	}
}

// Handle processa uma mensagem; falha no Redis não impede a persistência
func (p *Processor) Handle(ctx context.Context, m kafka.Message) error {
	if p.OnConsumed != nil {
		p.OnConsumed()
	}

	var o events.Opportunity
	if err := json.Unmarshal(m.Value, &o); err != nil {
		p.Log.Warn("invalid message", zap.Error(err))
		p.fail("decode")
		return err
	}
	if o.ID == "" || o.SportKey == "" || len(o.Legs) < 2 {
		p.Log.Warn("invalid opportunity", zap.String("id", o.ID))
		p.fail("validate")
		return errInvalid
	}
	if o.DetectedAt.IsZero() {
		o.DetectedAt = m.Time
	}

	if err := p.Cache.SetCurrent(ctx, o); err != nil {
		p.Log.Warn("redis set failed", zap.String("id", o.ID), zap.Error(err))
		p.fail("cache")
	} else if p.OnCached != nil {
		p.OnCached()
	}

	if err := p.Repo.UpsertCurrent(ctx, o); err != nil {
		p.Log.Warn("db upsert failed", zap.String("id", o.ID), zap.Error(err))
		p.fail("db_upsert")
		return err
	}
	if err := p.Repo.InsertHistory(ctx, o); err != nil {
		p.Log.Warn("db insert history failed", zap.String("id", o.ID), zap.Error(err))
		p.fail("db_history")
		return err
	}
	if p.OnPersist != nil {
		p.OnPersist()
	}
	if p.OnAfterPersist != nil {
		p.OnAfterPersist(o)
	}
	return nil
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}
