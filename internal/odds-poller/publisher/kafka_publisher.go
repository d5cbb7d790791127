package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/radieske/sports-arbitrage-platform/internal/shared/kafka"
	"github.com/radieske/sports-arbitrage-platform/pkg/contracts/events"
)

// KafkaPublisher envia oportunidades detectadas para o tópico de arbitragem
type KafkaPublisher struct {
	writer kafka.Publisher
	log    *zap.Logger
}

func NewKafkaPublisher(w kafka.Publisher, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, log: log}
}

// PublishAll serializa as oportunidades e envia num único lote.
// A chave é o ID da oportunidade, então a mesma arbitragem cai sempre na mesma partição.
func (p *KafkaPublisher) PublishAll(ctx context.Context, opps []events.Opportunity) (int, error) {
	if len(opps) == 0 {
		return 0, nil
	}
	msgs := make([]kafka.Message, 0, len(opps))
	for _, o := range opps {
		value, err := json.Marshal(o)
		if err != nil {
			return 0, fmt.Errorf("marshal opportunity %s: %w", o.ID, err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(o.ID), Value: value, Time: o.DetectedAt})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.log.Error("failed to publish opportunities", zap.Int("count", len(msgs)), zap.Error(err))
		return 0, err
	}
	p.log.Debug("published opportunities", zap.Int("count", len(msgs)))
	return len(msgs), nil
}
