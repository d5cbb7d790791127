package producer

import (
	"context"
	"time"

	"github.com/radieske/sports-arbitrage-platform/internal/shared/kafka"
	"github.com/radieske/sports-arbitrage-platform/pkg/contracts/events"
)

// KafkaPublisher publica eventos de aposta; a chave é o betID
type KafkaPublisher struct {
	Writer kafka.Publisher
	now    func() time.Time
}

func NewKafkaPublisher(w kafka.Publisher) *KafkaPublisher {
	return &KafkaPublisher{Writer: w, now: time.Now}
}

func (p *KafkaPublisher) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	e.TsUnixMs = p.now().UnixMilli()
	return kafka.Publish(ctx, p.Writer, e.BetID, e)
}

func (p *KafkaPublisher) PublishBetSettled(ctx context.Context, e events.BetSettled) error {
	if e.Ts.IsZero() {
		e.Ts = p.now().UTC()
	}
	return kafka.Publish(ctx, p.Writer, e.BetID, e)
}
