// Package crylot implementa o contrato de apostas Crylot: admissão de apostas,
// correlação de pedidos de aleatoriedade (VRF), pagamento e configuração
// administrativa dos limites de aposta.
package crylot

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/radieske/crylot/internal/shared/units"
)

const (
	// GuessMin e GuessMax delimitam o domínio de palpites (inclusive)
	GuessMin = 1
	GuessMax = 100

	// PayoutMultiplier é aplicado ao stake em caso de acerto exato.
	// Chance de 1/100 pagando 95x => house edge de 5%.
	PayoutMultiplier = 95

	// Parâmetros do pedido ao coordinator
	RequestConfirmations = 3
	CallbackGasLimit     = 100_000
	NumWords             = 1
)

// Defaults aplicados no deploy
var (
	DefaultMinBet = units.MustEther("0.005")
	DefaultMaxBet = units.MustEther("0.01")
)

// StakeBounds são os limites mínimo e máximo de aposta, em wei
type StakeBounds struct {
	MinBet *big.Int
	MaxBet *big.Int
}

func (b StakeBounds) clone() StakeBounds {
	return StakeBounds{MinBet: new(big.Int).Set(b.MinBet), MaxBet: new(big.Int).Set(b.MaxBet)}
}

// PendingBet é uma aposta admitida aguardando a aleatoriedade
type PendingBet struct {
	RequestID *big.Int
	Player    common.Address
	Guess     uint64
	Stake     *big.Int
	PlacedAt  time.Time
}

// PayoutStatus acompanha a transferência do prêmio
type PayoutStatus string

const (
	PayoutNone    PayoutStatus = "NONE" // aposta perdida, nada a transferir
	PayoutPending PayoutStatus = "PENDING"
	PayoutPaid    PayoutStatus = "PAID"
	PayoutFailed  PayoutStatus = "FAILED"
)

// Outcome é o resultado de uma aposta resolvida
type Outcome struct {
	RequestID    *big.Int
	Player       common.Address
	Guess        uint64
	Stake        *big.Int
	RandomWord   *big.Int
	Rolled       uint64
	Won          bool
	Payout       *big.Int
	PayoutStatus PayoutStatus
	ResolvedAt   time.Time
}

// Params são os parâmetros fixos do contrato (constructor)
type Params struct {
	Address        common.Address // endereço do próprio contrato
	Owner          common.Address
	KeyHash        common.Hash
	Coordinator    common.Address
	SubscriptionID uint64
}
