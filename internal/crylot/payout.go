package crylot

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Payer transfere valor nativo do contrato para um jogador.
// ref identifica a transferência e torna a repetição idempotente.
type Payer interface {
	Transfer(ctx context.Context, to common.Address, amount *big.Int, ref string) error
}

// PayoutEngine resolve a aposta: roll = word mod 100 + 1, acerto exato paga 95x
type PayoutEngine struct{}

// Roll mapeia a palavra aleatória no domínio de palpites [GuessMin, GuessMax]
func (PayoutEngine) Roll(word *big.Int) uint64 {
	r := new(big.Int).Mod(word, big.NewInt(GuessMax-GuessMin+1))
	return r.Uint64() + GuessMin
}

// Resolve calcula o resultado. available é o saldo não travado por outras
// apostas pendentes; o prêmio nunca passa disso.
func (e PayoutEngine) Resolve(bet PendingBet, word, available *big.Int) Outcome {
	rolled := e.Roll(word)
	o := Outcome{
		RequestID:    bet.RequestID,
		Player:       bet.Player,
		Guess:        bet.Guess,
		Stake:        new(big.Int).Set(bet.Stake),
		RandomWord:   new(big.Int).Set(word),
		Rolled:       rolled,
		Won:          rolled == bet.Guess,
		Payout:       new(big.Int),
		PayoutStatus: PayoutNone,
	}
	if !o.Won {
		return o
	}

	owed := new(big.Int).Mul(bet.Stake, big.NewInt(PayoutMultiplier))
	if available.Sign() <= 0 {
		owed.SetInt64(0)
	} else if owed.Cmp(available) > 0 {
		owed.Set(available)
	}
	o.Payout = owed
	if owed.Sign() > 0 {
		o.PayoutStatus = PayoutPending
	}
	return o
}

func payoutRef(requestID *big.Int) string {
	return "payout:" + requestID.String()
}
