package repo

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/radieske/crylot/internal/crylot"
)

// Memory guarda o estado do contrato em memória. Begin segura o mutex até
// Commit/Rollback, então as chamadas ficam serializadas como num bloco.
type Memory struct {
	mu sync.Mutex
	st memState
}

func NewMemory() *Memory {
	return &Memory{st: memState{
		admins:   map[common.Address]bool{},
		pending:  map[string]crylot.PendingBet{},
		outcomes: map[string]crylot.Outcome{},
		balance:  new(big.Int),
	}}
}

type memState struct {
	initialized bool
	params      crylot.Params
	bounds      crylot.StakeBounds
	admins      map[common.Address]bool
	nonce       uint64
	pending     map[string]crylot.PendingBet
	outcomes    map[string]crylot.Outcome
	balance     *big.Int
}

// os valores guardados nunca são mutados, então copiar os mapas basta
func (s memState) clone() memState {
	out := s
	out.admins = make(map[common.Address]bool, len(s.admins))
	for k, v := range s.admins {
		out.admins[k] = v
	}
	out.pending = make(map[string]crylot.PendingBet, len(s.pending))
	for k, v := range s.pending {
		out.pending[k] = v
	}
	out.outcomes = make(map[string]crylot.Outcome, len(s.outcomes))
	for k, v := range s.outcomes {
		out.outcomes[k] = v
	}
	return out
}

func (m *Memory) Begin(ctx context.Context) (crylot.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	return &memTx{m: m, st: m.st.clone()}, nil
}

type memTx struct {
	m    *Memory
	st   memState
	done bool
}

var errTxDone = errors.New("transaction already finished")

func (t *memTx) Commit() error {
	if t.done {
		return errTxDone
	}
	t.m.st = t.st
	t.done = true
	t.m.mu.Unlock()
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.m.mu.Unlock()
	return nil
}

func (t *memTx) Initialized(context.Context) (bool, error) { return t.st.initialized, nil }

func (t *memTx) Initialize(_ context.Context, p crylot.Params, b crylot.StakeBounds) error {
	t.st.initialized = true
	t.st.params = p
	t.st.bounds = crylot.StakeBounds{MinBet: cp(b.MinBet), MaxBet: cp(b.MaxBet)}
	return nil
}

func (t *memTx) Bounds(context.Context) (crylot.StakeBounds, error) {
	if !t.st.initialized {
		return crylot.StakeBounds{}, errNotDeployed
	}
	return crylot.StakeBounds{MinBet: cp(t.st.bounds.MinBet), MaxBet: cp(t.st.bounds.MaxBet)}, nil
}

func (t *memTx) SetBounds(_ context.Context, b crylot.StakeBounds) error {
	t.st.bounds = crylot.StakeBounds{MinBet: cp(b.MinBet), MaxBet: cp(b.MaxBet)}
	return nil
}

func (t *memTx) Owner(context.Context) (common.Address, error) {
	if !t.st.initialized {
		return common.Address{}, errNotDeployed
	}
	return t.st.params.Owner, nil
}

func (t *memTx) IsAdmin(_ context.Context, account common.Address) (bool, error) {
	return t.st.admins[account], nil
}

func (t *memTx) SetAdmin(_ context.Context, account common.Address, granted bool) error {
	if granted {
		t.st.admins[account] = true
	} else {
		delete(t.st.admins, account)
	}
	return nil
}

func (t *memTx) NextNonce(context.Context) (uint64, error) {
	t.st.nonce++
	return t.st.nonce, nil
}

func (t *memTx) InsertPending(_ context.Context, bet crylot.PendingBet) error {
	k := bet.RequestID.String()
	if _, ok := t.st.pending[k]; ok {
		return crylot.ErrDuplicate
	}
	t.st.pending[k] = clonePending(bet)
	return nil
}

func (t *memTx) TakePending(_ context.Context, requestID *big.Int) (crylot.PendingBet, error) {
	k := requestID.String()
	bet, ok := t.st.pending[k]
	if !ok {
		return crylot.PendingBet{}, crylot.ErrUnknownRequest
	}
	delete(t.st.pending, k)
	return clonePending(bet), nil
}

func (t *memTx) GetPending(_ context.Context, requestID *big.Int) (crylot.PendingBet, error) {
	bet, ok := t.st.pending[requestID.String()]
	if !ok {
		return crylot.PendingBet{}, crylot.ErrUnknownRequest
	}
	return clonePending(bet), nil
}

func (t *memTx) LockedStake(context.Context) (*big.Int, error) {
	sum := new(big.Int)
	for _, b := range t.st.pending {
		sum.Add(sum, b.Stake)
	}
	return sum, nil
}

func (t *memTx) Balance(context.Context) (*big.Int, error) { return cp(t.st.balance), nil }

func (t *memTx) AddBalance(_ context.Context, delta *big.Int) error {
	next := new(big.Int).Add(t.st.balance, delta)
	if next.Sign() < 0 {
		return errNegativeBalance
	}
	t.st.balance = next
	return nil
}

func (t *memTx) SaveOutcome(_ context.Context, o crylot.Outcome) error {
	t.st.outcomes[o.RequestID.String()] = cloneOutcome(o)
	return nil
}

func (t *memTx) GetOutcome(_ context.Context, requestID *big.Int) (crylot.Outcome, error) {
	o, ok := t.st.outcomes[requestID.String()]
	if !ok {
		return crylot.Outcome{}, crylot.ErrUnknownRequest
	}
	return cloneOutcome(o), nil
}

func cp(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func clonePending(b crylot.PendingBet) crylot.PendingBet {
	b.RequestID = cp(b.RequestID)
	b.Stake = cp(b.Stake)
	return b
}

func cloneOutcome(o crylot.Outcome) crylot.Outcome {
	o.RequestID = cp(o.RequestID)
	o.Stake = cp(o.Stake)
	o.RandomWord = cp(o.RandomWord)
	o.Payout = cp(o.Payout)
	return o
}
