package crylot

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Event é uma observação emitida após o commit de uma chamada
type Event interface {
	EventName() string
}

type BoundsChanged struct {
	Bounds StakeBounds
	By     common.Address
}

type BetPlaced struct {
	Bet PendingBet
}

type BetResolved struct {
	Outcome Outcome
}

type AdminChanged struct {
	Account common.Address
	Granted bool
	By      common.Address
}

type Funded struct {
	From   common.Address
	Amount *big.Int
}

func (BoundsChanged) EventName() string { return "BoundsChanged" }
func (BetPlaced) EventName() string     { return "BetPlaced" }
func (BetResolved) EventName() string   { return "BetResolved" }
func (AdminChanged) EventName() string  { return "AdminChanged" }
func (Funded) EventName() string        { return "Funded" }

// Observer recebe os eventos do contrato. Não pode falhar a chamada.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// ObserverFunc adapta uma função a Observer
type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) Observe(ctx context.Context, ev Event) { f(ctx, ev) }

// Observers repassa cada evento a todos os observers
type Observers []Observer

func (o Observers) Observe(ctx context.Context, ev Event) {
	for _, obs := range o {
		obs.Observe(ctx, ev)
	}
}
