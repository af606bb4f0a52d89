package crylot

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollStaysInGuessDomain(t *testing.T) {
	var e PayoutEngine
	cases := map[string]uint64{
		"0":   1,
		"99":  100,
		"100": 1,
		"114": 15,
		// 2^256-1 mod 100 = 35
		"115792089237316195423570985008687907853269984665640564039457584007913129639935": 36,
	}
	for in, want := range cases {
		w, ok := new(big.Int).SetString(in, 10)
		require.True(t, ok)
		assert.Equal(t, want, e.Roll(w), in)
	}
}

func TestResolve(t *testing.T) {
	var e PayoutEngine
	bet := PendingBet{
		RequestID: big.NewInt(7),
		Player:    common.HexToAddress("0xc3"),
		Guess:     15,
		Stake:     big.NewInt(1000),
	}

	t.Run("loss", func(t *testing.T) {
		o := e.Resolve(bet, big.NewInt(15), big.NewInt(1_000_000))
		assert.False(t, o.Won)
		assert.Equal(t, uint64(16), o.Rolled)
		assert.Zero(t, o.Payout.Sign())
		assert.Equal(t, PayoutNone, o.PayoutStatus)
	})

	t.Run("win", func(t *testing.T) {
		o := e.Resolve(bet, big.NewInt(14), big.NewInt(1_000_000))
		assert.True(t, o.Won)
		assert.Equal(t, "95000", o.Payout.String())
		assert.Equal(t, PayoutPending, o.PayoutStatus)
	})

	t.Run("win capped by available", func(t *testing.T) {
		o := e.Resolve(bet, big.NewInt(14), big.NewInt(4000))
		assert.Equal(t, "4000", o.Payout.String())
	})

	t.Run("win with nothing available", func(t *testing.T) {
		o := e.Resolve(bet, big.NewInt(14), big.NewInt(-5))
		assert.True(t, o.Won)
		assert.Zero(t, o.Payout.Sign())
		assert.Equal(t, PayoutNone, o.PayoutStatus)
	})
}

func TestRequestIDIsDeterministicAndNonceBound(t *testing.T) {
	key := common.HexToHash("0x9e1344a1247c8a1785d0a4681a27152bffdb43666ae5bf7d14d24a5efd44bf71")
	addr := common.HexToAddress("0xc1a7")

	a := RequestID(key, addr, 3330, 1)
	assert.Equal(t, a, RequestID(key, addr, 3330, 1))
	assert.NotEqual(t, a, RequestID(key, addr, 3330, 2))
	assert.NotEqual(t, a, RequestID(key, addr, 3331, 1))
	assert.NotEqual(t, a, RequestID(key, common.HexToAddress("0xc1a8"), 3330, 1))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindBetTooLow, KindOf(ErrBetTooLow))
	assert.Equal(t, KindInternal, KindOf(ErrTransferFailed))
	assert.Equal(t, KindInternal, KindOf(nil))
	assert.Equal(t, "NotAuthorized", KindNotAuthorized.String())
}
