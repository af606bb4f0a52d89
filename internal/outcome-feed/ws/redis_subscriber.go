package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/crylot/pkg/contracts/events"
)

// Recorder guarda os resultados para consulta posterior (opcional)
type Recorder interface {
	Record(ev events.BetResolved)
}

// Feed liga os canais Redis do contrato ao hub
type Feed struct {
	Hub             *Hub
	Recent          Recorder
	OutcomesChannel string
	BoundsChannel   string
	Log             *zap.Logger
}

// Dispatch converte uma mensagem de pub/sub em updates do hub. Resultados vão
// para o tópico geral e para o tópico do jogador.
func (f *Feed) Dispatch(channel string, payload []byte) error {
	switch channel {
	case f.OutcomesChannel:
		var ev events.BetResolved
		if err := json.Unmarshal(payload, &ev); err != nil {
			return err
		}
		if f.Recent != nil {
			f.Recent.Record(ev)
		}
		f.Hub.Broadcast(Update{Topic: TopicOutcomes, Kind: "bet_resolved", Payload: ev})
		f.Hub.Broadcast(Update{Topic: ev.Player, Kind: "bet_resolved", Payload: ev})
	case f.BoundsChannel:
		var ev events.BoundsChanged
		if err := json.Unmarshal(payload, &ev); err != nil {
			return err
		}
		f.Hub.Broadcast(Update{Topic: TopicBounds, Kind: "bounds_changed", Payload: ev})
	}
	return nil
}

// StartRedisSubscriber escuta os canais de resultados e limites e repassa
// para os clientes conectados
func (f *Feed) StartRedisSubscriber(ctx context.Context, r *redis.Client) {
	sub := r.Subscribe(ctx, f.OutcomesChannel, f.BoundsChannel)
	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg := <-ch:
				if msg == nil {
					continue
				}
				if err := f.Dispatch(msg.Channel, []byte(msg.Payload)); err != nil {
					f.Log.Warn("ws subscriber unmarshal", zap.String("channel", msg.Channel), zap.Error(err))
				}
			}
		}
	}()
}
