package cache

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/crylot/internal/crylot"
	"github.com/radieske/crylot/internal/crylot/producer"
	"github.com/radieske/crylot/pkg/contracts/events"
)

// Publisher é o subconjunto do cliente Redis usado para pub/sub
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type RedisPublisher struct{ r *redis.Client }

func NewRedisPublisher(r *redis.Client) *RedisPublisher { return &RedisPublisher{r: r} }

func (p *RedisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.r.Publish(ctx, channel, payload).Err()
}

// Broadcaster é um crylot.Observer: atualiza o cache de limites e publica
// limites e resultados nos canais do feed. Falhas só são logadas.
type Broadcaster struct {
	Bounds          *BoundsCache // opcional
	Pub             Publisher
	BoundsChannel   string
	OutcomesChannel string
	Log             *zap.Logger
}

func (b *Broadcaster) Observe(ctx context.Context, ev crylot.Event) {
	switch e := ev.(type) {
	case crylot.BoundsChanged:
		if b.Bounds != nil {
			if err := b.Bounds.Set(ctx, e.Bounds); err != nil {
				b.Log.Warn("bounds cache set", zap.Error(err))
			}
		}
		b.publish(ctx, b.BoundsChannel, events.BoundsChanged{
			MinBetWei: e.Bounds.MinBet.String(),
			MaxBetWei: e.Bounds.MaxBet.String(),
			By:        e.By.Hex(),
		})
	case crylot.BetResolved:
		b.publish(ctx, b.OutcomesChannel, producer.ResolvedEvent(e.Outcome))
	}
}

func (b *Broadcaster) publish(ctx context.Context, channel string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := b.Pub.Publish(ctx, channel, payload); err != nil {
		b.Log.Warn("redis publish", zap.String("channel", channel), zap.Error(err))
	}
}
