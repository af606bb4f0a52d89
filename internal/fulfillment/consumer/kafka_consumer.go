package consumer

import (
	"context"
	"encoding/json"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/crylot/internal/crylot"
	"github.com/radieske/crylot/internal/crylot/producer"
	"github.com/radieske/crylot/internal/crylot/vrf"
	"github.com/radieske/crylot/pkg/contracts/events"
)

// MessageReader é o subconjunto de *kafka.Reader usado pelo processor. O
// offset só é confirmado depois de um desfecho definitivo.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// ErrNotResolved marca um fulfillment que continuou falhando por erro interno
// depois das tentativas. A mensagem não é confirmada e volta a ser processada.
var ErrNotResolved = errors.New("fulfillment not resolved")

// Fulfiller é o callback do contrato
type Fulfiller interface {
	FulfillRandomWords(ctx context.Context, sender common.Address, requestID *big.Int, words []*big.Int) (crylot.Outcome, error)
}

// ResultPublisher publica resultados e a DLQ de pagamentos
type ResultPublisher interface {
	PublishBetResolved(ctx context.Context, e events.BetResolved) error
	PublishPayoutFailed(ctx context.Context, e events.PayoutFailed) error
}

// Processor consome "randomness_fulfilled", recupera o signatário da prova e
// entrega as palavras ao contrato em nome dele. Quem não for o coordinator
// configurado é recusado pelo próprio contrato.
type Processor struct {
	Log      *zap.Logger
	Reader   MessageReader
	Contract Fulfiller
	Results  ResultPublisher // opcional

	Retries    int           // tentativas para erros internos (default 3)
	Backoff    time.Duration // base do backoff linear (default 300ms)
	Redelivery time.Duration // espera antes de reprocessar uma mensagem não resolvida (default 5s)

	OnConsumed func()             // métricas (counter++)
	OnResolved func(won bool)     // métricas
	OnError    func(stage string) // métricas por fase
}

// Run inicia o loop principal de consumo. Uma mensagem não resolvida segura a
// partição: é reprocessada até resolver ou até o contexto acabar, e sem commit
// outro consumidor do grupo a recebe de novo após um restart.
func (p *Processor) Run(ctx context.Context) error {
	redelivery := p.Redelivery
	if redelivery <= 0 {
		redelivery = 5 * time.Second
	}
	for {
		m, err := p.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.fail("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if p.OnConsumed != nil {
			p.OnConsumed()
		}
		for p.Handle(ctx, m.Value) != nil {
			p.Log.Warn("redelivering fulfillment", zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(redelivery):
			}
		}
		if err := p.Reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// reentrega depois é inofensiva: o contrato responde UnknownRequest
			p.Log.Warn("kafka commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
			p.fail("commit")
		}
	}
}

// Handle processa uma mensagem. Devolve nil para todo desfecho definitivo,
// inclusive mensagem inválida e rejeição do contrato, que viram log e
// métrica. Só ErrNotResolved pede reprocessamento.
func (p *Processor) Handle(ctx context.Context, raw []byte) error {
	var ev events.RandomnessFulfilled
	if err := json.Unmarshal(raw, &ev); err != nil {
		p.Log.Warn("invalid message", zap.Error(err))
		p.fail("decode")
		return nil
	}
	id, words, sig, err := parse(ev)
	if err != nil {
		p.Log.Warn("invalid fulfillment", zap.String("requestId", ev.RequestID), zap.Error(err))
		p.fail("decode")
		return nil
	}
	signer, err := vrf.RecoverSigner(id, words, sig)
	if err != nil {
		p.Log.Warn("bad fulfillment signature", zap.String("requestId", ev.RequestID), zap.Error(err))
		p.fail("signature")
		return nil
	}

	out, err := p.fulfill(ctx, signer, id, words)
	switch {
	case err == nil:
	case errors.Is(err, crylot.ErrTransferFailed):
		p.fail("payout")
		if p.Results != nil {
			dlq := events.PayoutFailed{
				RequestID: id.String(),
				Player:    out.Player.Hex(),
				PayoutWei: out.Payout.String(),
				Reason:    err.Error(),
				Ts:        time.Now().UTC(),
			}
			if perr := p.Results.PublishPayoutFailed(ctx, dlq); perr != nil {
				p.Log.Error("publish payout_failed", zap.String("requestId", dlq.RequestID), zap.Error(perr))
			}
		}
	default:
		switch crylot.KindOf(err) {
		case crylot.KindUnknownRequest:
			// replay ou duplicata: já resolvida, sem efeito
			p.Log.Info("fulfillment ignored", zap.String("requestId", ev.RequestID), zap.Error(err))
			p.fail("unknown_request")
		case crylot.KindNotCoordinator:
			p.Log.Warn("fulfillment from non-coordinator", zap.String("requestId", ev.RequestID), zap.Stringer("signer", signer))
			p.fail("not_coordinator")
		default:
			p.Log.Error("fulfill failed", zap.String("requestId", ev.RequestID), zap.Error(err))
			p.fail("fulfill")
			return errors.Wrap(ErrNotResolved, err.Error())
		}
		return nil
	}

	if p.OnResolved != nil {
		p.OnResolved(out.Won)
	}
	if p.Results != nil {
		if err := p.Results.PublishBetResolved(ctx, producer.ResolvedEvent(out)); err != nil {
			p.Log.Warn("publish bet_resolved", zap.String("requestId", ev.RequestID), zap.Error(err))
			p.fail("publish")
		}
	}
	return nil
}

// fulfill repete apenas erros internos (ex.: banco fora); rejeições do
// contrato e falha de pagamento não são repetidas aqui
func (p *Processor) fulfill(ctx context.Context, signer common.Address, id *big.Int, words []*big.Int) (crylot.Outcome, error) {
	retries, backoff := p.Retries, p.Backoff
	if retries <= 0 {
		retries = 3
	}
	if backoff <= 0 {
		backoff = 300 * time.Millisecond
	}
	var (
		out crylot.Outcome
		err error
	)
	for i := 0; i <= retries; i++ {
		out, err = p.Contract.FulfillRandomWords(ctx, signer, id, words)
		if err == nil || errors.Is(err, crylot.ErrTransferFailed) || crylot.KindOf(err) != crylot.KindInternal {
			return out, err
		}
		if i < retries {
			select {
			case <-ctx.Done():
				return out, ctx.Err()
			case <-time.After(time.Duration(i+1) * backoff):
			}
		}
	}
	return out, err
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}

func parse(ev events.RandomnessFulfilled) (*big.Int, []*big.Int, []byte, error) {
	id, ok := new(big.Int).SetString(ev.RequestID, 10)
	if !ok {
		return nil, nil, nil, errors.Errorf("bad request id %q", ev.RequestID)
	}
	if len(ev.RandomWords) == 0 {
		return nil, nil, nil, errors.New("no random words")
	}
	words := make([]*big.Int, len(ev.RandomWords))
	for i, s := range ev.RandomWords {
		w, ok := new(big.Int).SetString(s, 10)
		if !ok || w.Sign() < 0 {
			return nil, nil, nil, errors.Errorf("bad random word %q", s)
		}
		words[i] = w
	}
	sig, err := hexutil.Decode(ev.Signature)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "signature")
	}
	return id, words, sig, nil
}
