package crylot

import (
	"context"
	"math/big"

	"github.com/pkg/errors"
)

// BetConfig valida e aplica mudanças nos limites de aposta
type BetConfig struct{}

// SetMin aplica um novo mínimo. Não faz clamp: valores inválidos são rejeitados.
func (BetConfig) SetMin(ctx context.Context, tx Tx, newMin *big.Int) (StakeBounds, error) {
	cur, err := tx.Bounds(ctx)
	if err != nil {
		return StakeBounds{}, errors.Wrap(err, "load bounds")
	}
	if newMin == nil || newMin.Sign() <= 0 {
		return StakeBounds{}, ErrMinBetZero
	}
	if newMin.Cmp(cur.MaxBet) > 0 {
		return StakeBounds{}, ErrMinAboveMax
	}
	next := StakeBounds{MinBet: new(big.Int).Set(newMin), MaxBet: cur.MaxBet}
	if err := tx.SetBounds(ctx, next); err != nil {
		return StakeBounds{}, errors.Wrap(err, "save bounds")
	}
	return next.clone(), nil
}

// SetMax aplica um novo máximo, que precisa ser estritamente maior que o mínimo atual
func (BetConfig) SetMax(ctx context.Context, tx Tx, newMax *big.Int) (StakeBounds, error) {
	cur, err := tx.Bounds(ctx)
	if err != nil {
		return StakeBounds{}, errors.Wrap(err, "load bounds")
	}
	if newMax == nil || newMax.Cmp(cur.MinBet) <= 0 {
		return StakeBounds{}, ErrMaxBelowMin
	}
	next := StakeBounds{MinBet: cur.MinBet, MaxBet: new(big.Int).Set(newMax)}
	if err := tx.SetBounds(ctx, next); err != nil {
		return StakeBounds{}, errors.Wrap(err, "save bounds")
	}
	return next.clone(), nil
}

// CheckStake aplica as pré-condições de valor do bet, na ordem: mínimo, depois máximo
func (BetConfig) CheckStake(b StakeBounds, value *big.Int) error {
	if value == nil || value.Cmp(b.MinBet) < 0 {
		return ErrBetTooLow
	}
	if value.Cmp(b.MaxBet) > 0 {
		return ErrBetTooHigh
	}
	return nil
}
