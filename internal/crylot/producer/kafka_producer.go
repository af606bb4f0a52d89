package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/crylot/internal/crylot"
	"github.com/radieske/crylot/pkg/contracts/events"
)

// MessageWriter é o subconjunto de *kafka.Writer usado aqui
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaCoordinator entrega os pedidos de aleatoriedade no tópico
// "randomness_requested". Implementa crylot.Coordinator: se a escrita falhar,
// o bet inteiro é desfeito.
type KafkaCoordinator struct {
	Writer MessageWriter
	log    *zap.Logger
	now    func() time.Time
}

func NewKafkaCoordinator(w MessageWriter, log *zap.Logger) *KafkaCoordinator {
	return &KafkaCoordinator{Writer: w, log: log, now: time.Now}
}

func (p *KafkaCoordinator) RequestRandomWords(ctx context.Context, req crylot.RandomnessRequest) error {
	e := events.RandomnessRequested{
		RequestID:        req.RequestID.String(),
		KeyHash:          req.KeyHash.Hex(),
		SubscriptionID:   req.SubscriptionID,
		Confirmations:    req.Confirmations,
		CallbackGasLimit: req.CallbackGasLimit,
		NumWords:         req.NumWords,
		Consumer:         req.Sender.Hex(),
		Nonce:            req.Nonce,
		Ts:               p.now().UTC(),
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := p.Writer.WriteMessages(ctx, kafka.Message{Key: []byte(e.RequestID), Value: b, Time: e.Ts}); err != nil {
		p.log.Error("failed to publish randomness request", zap.String("requestId", e.RequestID), zap.Error(err))
		return err
	}
	p.log.Debug("randomness requested", zap.String("requestId", e.RequestID))
	return nil
}

// ResultPublisher publica o resultado das apostas ("bet_resolved") e as
// falhas de pagamento ("payout_failed", DLQ)
type ResultPublisher struct {
	Resolved MessageWriter
	Failed   MessageWriter
}

func NewResultPublisher(resolved, failed MessageWriter) *ResultPublisher {
	return &ResultPublisher{Resolved: resolved, Failed: failed}
}

func (p *ResultPublisher) PublishBetResolved(ctx context.Context, e events.BetResolved) error {
	b, _ := json.Marshal(e)
	return p.Resolved.WriteMessages(ctx, kafka.Message{Key: []byte(e.RequestID), Value: b})
}

func (p *ResultPublisher) PublishPayoutFailed(ctx context.Context, e events.PayoutFailed) error {
	b, _ := json.Marshal(e)
	return p.Failed.WriteMessages(ctx, kafka.Message{Key: []byte(e.RequestID), Value: b})
}

// BetPublisher publica as apostas admitidas em "bet_placed" (trilha de auditoria)
type BetPublisher struct {
	Writer MessageWriter
}

func NewBetPublisher(w MessageWriter) *BetPublisher { return &BetPublisher{Writer: w} }

func (p *BetPublisher) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	b, _ := json.Marshal(e)
	return p.Writer.WriteMessages(ctx, kafka.Message{Key: []byte(e.RequestID), Value: b})
}

// ResolvedEvent converte o resultado do contrato para o evento de wire
func ResolvedEvent(o crylot.Outcome) events.BetResolved {
	return events.BetResolved{
		RequestID:    o.RequestID.String(),
		Player:       o.Player.Hex(),
		Guess:        o.Guess,
		Rolled:       o.Rolled,
		Won:          o.Won,
		StakeWei:     o.Stake.String(),
		PayoutWei:    o.Payout.String(),
		PayoutStatus: string(o.PayoutStatus),
		Ts:           o.ResolvedAt,
	}
}
