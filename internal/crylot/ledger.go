package crylot

import (
	"context"
	"math/big"

	"github.com/pkg/errors"
)

// BetLedger guarda uma PendingBet por requestId em aberto
type BetLedger struct{}

// Record insere a aposta. Id repetido é bug do contrato, não erro recuperável:
// o chamador aborta a chamada inteira.
func (BetLedger) Record(ctx context.Context, tx Tx, bet PendingBet) error {
	if err := tx.InsertPending(ctx, bet); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return errors.Wrapf(errDuplicateRequest, "request %s", bet.RequestID)
		}
		return errors.Wrap(err, "insert pending bet")
	}
	return nil
}

// Take remove e retorna a aposta de forma atômica; é o que impede um requestId
// de ser resolvido duas vezes.
func (BetLedger) Take(ctx context.Context, tx Tx, requestID *big.Int) (PendingBet, error) {
	bet, err := tx.TakePending(ctx, requestID)
	if err != nil {
		if KindOf(err) == KindUnknownRequest {
			return PendingBet{}, ErrUnknownRequest
		}
		return PendingBet{}, errors.Wrap(err, "take pending bet")
	}
	return bet, nil
}
