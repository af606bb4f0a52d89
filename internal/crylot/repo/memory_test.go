package repo

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/crylot/internal/crylot"
)

func deployed(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	tx, err := m.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Initialize(context.Background(),
		crylot.Params{Owner: common.HexToAddress("0xa1")},
		crylot.StakeBounds{MinBet: big.NewInt(5), MaxBet: big.NewInt(10)},
	))
	require.NoError(t, tx.Commit())
	return m
}

func TestMemoryRollbackDiscardsChanges(t *testing.T) {
	ctx := context.Background()
	m := deployed(t)

	tx, err := m.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.AddBalance(ctx, big.NewInt(100)))
	require.NoError(t, tx.InsertPending(ctx, crylot.PendingBet{RequestID: big.NewInt(1), Stake: big.NewInt(100)}))
	_, err = tx.NextNonce(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
	require.NoError(t, tx.Rollback(), "rollback after finish is a no-op")

	tx, err = m.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	bal, err := tx.Balance(ctx)
	require.NoError(t, err)
	assert.Zero(t, bal.Sign())
	_, err = tx.GetPending(ctx, big.NewInt(1))
	assert.ErrorIs(t, err, crylot.ErrUnknownRequest)
	n, err := tx.NextNonce(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestMemoryPendingIsTakenOnce(t *testing.T) {
	ctx := context.Background()
	m := deployed(t)

	tx, err := m.Begin(ctx)
	require.NoError(t, err)
	bet := crylot.PendingBet{RequestID: big.NewInt(9), Guess: 15, Stake: big.NewInt(7)}
	require.NoError(t, tx.InsertPending(ctx, bet))
	assert.ErrorIs(t, tx.InsertPending(ctx, bet), crylot.ErrDuplicate)

	locked, err := tx.LockedStake(ctx)
	require.NoError(t, err)
	assert.Equal(t, "7", locked.String())

	got, err := tx.TakePending(ctx, big.NewInt(9))
	require.NoError(t, err)
	assert.Equal(t, uint64(15), got.Guess)
	_, err = tx.TakePending(ctx, big.NewInt(9))
	assert.ErrorIs(t, err, crylot.ErrUnknownRequest)
	require.NoError(t, tx.Commit())
	assert.Error(t, tx.Commit())
}

func TestMemoryValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	m := deployed(t)

	tx, err := m.Begin(ctx)
	require.NoError(t, err)
	b, err := tx.Bounds(ctx)
	require.NoError(t, err)
	b.MinBet.SetInt64(999)
	again, err := tx.Bounds(ctx)
	require.NoError(t, err)
	assert.Equal(t, "5", again.MinBet.String())
	require.NoError(t, tx.Rollback())
}

func TestMemoryBalanceNeverNegative(t *testing.T) {
	ctx := context.Background()
	m := deployed(t)

	tx, err := m.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	require.NoError(t, tx.AddBalance(ctx, big.NewInt(3)))
	assert.ErrorIs(t, tx.AddBalance(ctx, big.NewInt(-4)), errNegativeBalance)
}

func TestMemoryNotDeployed(t *testing.T) {
	ctx := context.Background()
	tx, err := NewMemory().Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	ok, err := tx.Initialized(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = tx.Bounds(ctx)
	assert.ErrorIs(t, err, errNotDeployed)
}
