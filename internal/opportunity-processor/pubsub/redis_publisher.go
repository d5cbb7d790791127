package pubsub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/sports-arbitrage-platform/pkg/contracts/events"
)

// TypeOpportunity marca as mensagens de oportunidade no feed WebSocket
const TypeOpportunity = "opportunity"

// WSUpdate é o payload padrão lido pelo ws do arb-api
type WSUpdate struct {
	Type     string `json:"type"`
	SportKey string `json:"sportKey"`
	Payload  any    `json:"payload"`
}

// Broadcaster publica oportunidades persistidas no canal Redis que o
// arb-api repassa aos clientes WebSocket inscritos no esporte
type Broadcaster struct {
	r       *redis.Client
	channel string
	timeout time.Duration
}

func NewBroadcaster(r *redis.Client, channel string) *Broadcaster {
	return &Broadcaster{r: r, channel: channel, timeout: 500 * time.Millisecond}
}

// Opportunity envia a oportunidade; o publish não segura o consumer além do timeout
func (b *Broadcaster) Opportunity(ctx context.Context, o events.Opportunity) error {
	msg, err := json.Marshal(WSUpdate{Type: TypeOpportunity, SportKey: o.SportKey, Payload: o})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.r.Publish(ctx, b.channel, msg).Err()
}
