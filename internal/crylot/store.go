package crylot

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Store abre transações sobre o estado do contrato. Uma transação segura o
// lock do contrato inteiro até Commit/Rollback, serializando as chamadas.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx é a visão transacional do estado. Nada é visível fora da Tx antes do Commit.
type Tx interface {
	// Initialized indica se o deploy já gravou o estado inicial
	Initialized(ctx context.Context) (bool, error)
	Initialize(ctx context.Context, p Params, b StakeBounds) error

	Bounds(ctx context.Context) (StakeBounds, error)
	SetBounds(ctx context.Context, b StakeBounds) error

	Owner(ctx context.Context) (common.Address, error)
	IsAdmin(ctx context.Context, account common.Address) (bool, error)
	SetAdmin(ctx context.Context, account common.Address, granted bool) error

	// NextNonce incrementa e retorna o nonce usado na derivação do requestId
	NextNonce(ctx context.Context) (uint64, error)

	// InsertPending falha com ErrDuplicate se o id já existir
	InsertPending(ctx context.Context, bet PendingBet) error
	// TakePending remove e retorna a aposta; ErrUnknownRequest se não existir
	TakePending(ctx context.Context, requestID *big.Int) (PendingBet, error)
	GetPending(ctx context.Context, requestID *big.Int) (PendingBet, error)
	// LockedStake soma os stakes das apostas pendentes
	LockedStake(ctx context.Context) (*big.Int, error)

	Balance(ctx context.Context) (*big.Int, error)
	AddBalance(ctx context.Context, delta *big.Int) error

	SaveOutcome(ctx context.Context, o Outcome) error
	GetOutcome(ctx context.Context, requestID *big.Int) (Outcome, error)

	Commit() error
	Rollback() error
}

// ErrDuplicate é retornado pelos stores quando um requestId já existe no ledger
var ErrDuplicate = errDuplicateRequest
