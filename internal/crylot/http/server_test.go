package httpapi

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/crylot/internal/crylot"
	"github.com/radieske/crylot/internal/crylot/dto"
	"github.com/radieske/crylot/internal/crylot/repo"
	"github.com/radieske/crylot/internal/crylot/wallet"
	"github.com/radieske/crylot/pkg/contracts/events"
)

var (
	owner       = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	player      = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	coordinator = common.HexToAddress("0x5C210eF41CD1a72de73bF76eC39637bB0d3d7BEE")
)

type nopCoordinator struct{ fail error }

func (c nopCoordinator) RequestRandomWords(context.Context, crylot.RandomnessRequest) error {
	return c.fail
}

type nopPayer struct{}

func (nopPayer) Transfer(context.Context, common.Address, *big.Int, string) error { return nil }

type fakeEscrow struct {
	reserveErr  error
	commitFails int
	commitCalls int
	reserved   []string
	committed  []string
	refunded   []string
}

func (e *fakeEscrow) Reserve(_ context.Context, _ common.Address, _ *big.Int, ref string) (string, error) {
	if e.reserveErr != nil {
		return "", e.reserveErr
	}
	e.reserved = append(e.reserved, ref)
	return "r-" + ref, nil
}

func (e *fakeEscrow) Commit(_ context.Context, _ common.Address, ref string) error {
	e.commitCalls++
	if e.commitCalls <= e.commitFails {
		return errors.New("wallet unavailable")
	}
	e.committed = append(e.committed, ref)
	return nil
}

func (e *fakeEscrow) Refund(_ context.Context, _ common.Address, ref string) error {
	e.refunded = append(e.refunded, ref)
	return nil
}

type fakeBets struct{ placed []events.BetPlaced }

func (f *fakeBets) PublishBetPlaced(_ context.Context, e events.BetPlaced) error {
	f.placed = append(f.placed, e)
	return nil
}

func newAPI(t *testing.T, coord crylot.Coordinator) (*API, *fakeEscrow) {
	t.Helper()
	c, err := crylot.Deploy(context.Background(), repo.NewMemory(), crylot.Params{
		Address:        common.HexToAddress("0xc1a7"),
		Owner:          owner,
		Coordinator:    coordinator,
		SubscriptionID: 3330,
	}, coord, nopPayer{})
	require.NoError(t, err)
	esc := &fakeEscrow{}
	return &API{Contract: c, Escrow: esc, Log: zap.NewNop()}, esc
}

func call(t *testing.T, h http.Handler, method, path string, from *common.Address, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if from != nil {
		req.Header.Set(CallerHeader, from.Hex())
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestGetBounds(t *testing.T) {
	api, _ := newAPI(t, nopCoordinator{})
	h := api.Router()

	rec := call(t, h, http.MethodGet, "/v1/bounds", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	b := decode[dto.BoundsResponse](t, rec)
	assert.Equal(t, "5000000000000000", b.MinBetWei)
	assert.Equal(t, "0.005", b.MinBetEth)
	assert.Equal(t, "0.01", b.MaxBetEth)

	rec = call(t, h, http.MethodGet, "/v1/bounds/max", nil, "")
	assert.Equal(t, "10000000000000000", decode[dto.AmountResponse](t, rec).Wei)
}

func TestSetBounds(t *testing.T) {
	api, _ := newAPI(t, nopCoordinator{})
	h := api.Router()
	stranger := common.HexToAddress("0xb2")

	rec := call(t, h, http.MethodPut, "/v1/bounds/max", &owner, `{"value_eth":"1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = call(t, h, http.MethodPut, "/v1/bounds/min", &owner, `{"value_eth":"0.1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0.1", decode[dto.BoundsResponse](t, rec).MinBetEth)

	rec = call(t, h, http.MethodPut, "/v1/bounds/max", &owner, `{"value_wei":"0"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	e := decode[dto.ErrorResponse](t, rec)
	assert.Equal(t, "InvalidBound", e.Kind)
	assert.Equal(t, "The maximum bet must be higher than the minimum bet", e.Error)

	rec = call(t, h, http.MethodPut, "/v1/bounds/min", &stranger, `{"value_eth":"0.2"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "You are not an admin", decode[dto.ErrorResponse](t, rec).Error)

	rec = call(t, h, http.MethodPut, "/v1/bounds/min", nil, `{"value_eth":"0.2"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceBet(t *testing.T) {
	t.Run("admitted and committed", func(t *testing.T) {
		api, esc := newAPI(t, nopCoordinator{})
		h := api.Router()

		rec := call(t, h, http.MethodPost, "/v1/bets", &player, `{"guess":15,"value_eth":"0.01"}`)
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
		out := decode[dto.PlaceBetResponse](t, rec)
		assert.Equal(t, "PENDING_RANDOMNESS", out.Status)
		require.Len(t, esc.committed, 1)
		assert.Equal(t, out.ReservedRef, esc.committed[0])
		assert.Empty(t, esc.refunded)

		rec = call(t, h, http.MethodGet, "/v1/bets/"+out.RequestID, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		bet := decode[dto.BetResponse](t, rec)
		assert.Equal(t, uint64(15), bet.Guess)
		assert.Equal(t, player.Hex(), bet.Player)
		assert.Equal(t, "PENDING_RANDOMNESS", bet.Status)
	})

	t.Run("admitted bet is published", func(t *testing.T) {
		api, _ := newAPI(t, nopCoordinator{})
		pub := &fakeBets{}
		api.Events = pub

		rec := call(t, api.Router(), http.MethodPost, "/v1/bets", &player, `{"guess":7,"value_wei":"5000000000000000"}`)
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
		out := decode[dto.PlaceBetResponse](t, rec)
		require.Len(t, pub.placed, 1)
		assert.Equal(t, out.RequestID, pub.placed[0].RequestID)
		assert.Equal(t, out.ReservedRef, pub.placed[0].ReservedRef)
		assert.Equal(t, "5000000000000000", pub.placed[0].StakeWei)
		assert.Equal(t, uint64(7), pub.placed[0].Guess)

		// rejeitado não é publicado
		call(t, api.Router(), http.MethodPost, "/v1/bets", &player, `{"guess":7,"value_wei":"1"}`)
		assert.Len(t, pub.placed, 1)
	})

	t.Run("too low is refunded", func(t *testing.T) {
		api, esc := newAPI(t, nopCoordinator{})
		rec := call(t, api.Router(), http.MethodPost, "/v1/bets", &player, `{"guess":15,"value_wei":"0"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		e := decode[dto.ErrorResponse](t, rec)
		assert.Equal(t, "BetTooLow", e.Kind)
		assert.Equal(t, "The bet must be higher or equal than min bet", e.Error)
		assert.Len(t, esc.refunded, 1)
		assert.Empty(t, esc.committed)
	})

	t.Run("too high", func(t *testing.T) {
		api, _ := newAPI(t, nopCoordinator{})
		rec := call(t, api.Router(), http.MethodPost, "/v1/bets", &player, `{"guess":15,"value_eth":"0.1"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "BetTooHigh", decode[dto.ErrorResponse](t, rec).Kind)
	})

	t.Run("coordinator down", func(t *testing.T) {
		api, esc := newAPI(t, nopCoordinator{fail: errors.New("broker down")})
		rec := call(t, api.Router(), http.MethodPost, "/v1/bets", &player, `{"guess":15,"value_eth":"0.01"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "internal error", decode[dto.ErrorResponse](t, rec).Error)
		assert.Len(t, esc.refunded, 1)
	})

	t.Run("wallet without funds", func(t *testing.T) {
		api, esc := newAPI(t, nopCoordinator{})
		esc.reserveErr = wallet.ErrInsufficientFunds
		rec := call(t, api.Router(), http.MethodPost, "/v1/bets", &player, `{"guess":15,"value_eth":"0.01"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("bad input", func(t *testing.T) {
		api, _ := newAPI(t, nopCoordinator{})
		h := api.Router()
		assert.Equal(t, http.StatusBadRequest, call(t, h, http.MethodPost, "/v1/bets", nil, `{"guess":15,"value_eth":"0.01"}`).Code)
		assert.Equal(t, http.StatusBadRequest, call(t, h, http.MethodPost, "/v1/bets", &player, `{"guess":15}`).Code)
		assert.Equal(t, http.StatusBadRequest, call(t, h, http.MethodPost, "/v1/bets", &player, `{"guess":15,"value_eth":"-1"}`).Code)
	})
}

func TestResolvedBetIsReported(t *testing.T) {
	api, _ := newAPI(t, nopCoordinator{})
	h := api.Router()
	ctx := context.Background()

	id, err := api.Contract.Bet(ctx, player, 15, big.NewInt(5_000_000_000_000_000))
	require.NoError(t, err)
	_, err = api.Contract.FulfillRandomWords(ctx, coordinator, id, []*big.Int{big.NewInt(50)})
	require.NoError(t, err)

	rec := call(t, h, http.MethodGet, "/v1/bets/"+id.String(), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	bet := decode[dto.BetResponse](t, rec)
	assert.Equal(t, "RESOLVED", bet.Status)
	assert.Equal(t, uint64(51), bet.Rolled)
	require.NotNil(t, bet.Won)
	assert.False(t, *bet.Won)
	assert.Equal(t, "NONE", bet.PayoutStatus)

	assert.Equal(t, http.StatusNotFound, call(t, h, http.MethodGet, "/v1/bets/123", nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, call(t, h, http.MethodGet, "/v1/bets/abc", nil, "").Code)
}

func TestAdmins(t *testing.T) {
	api, _ := newAPI(t, nopCoordinator{})
	h := api.Router()
	admin := common.HexToAddress("0xb2")

	rec := call(t, h, http.MethodPost, "/v1/admins", &owner, `{"address":"`+admin.Hex()+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = call(t, h, http.MethodGet, "/v1/admins/"+admin.Hex(), nil, "")
	assert.True(t, decode[dto.AdminResponse](t, rec).Admin)

	rec = call(t, h, http.MethodDelete, "/v1/admins/"+owner.Hex(), &admin, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "The owner cannot be revoked", decode[dto.ErrorResponse](t, rec).Error)

	rec = call(t, h, http.MethodDelete, "/v1/admins/"+admin.Hex(), &owner, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, h, http.MethodPost, "/v1/payouts/1/retry", &owner, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFundGoesThroughWallet(t *testing.T) {
	t.Run("reserves and commits the deposit", func(t *testing.T) {
		api, esc := newAPI(t, nopCoordinator{})
		h := api.Router()
		rec := call(t, h, http.MethodPost, "/v1/fund", &player, `{"value_eth":"2.5"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2.5", decode[dto.AmountResponse](t, rec).Eth)
		require.Len(t, esc.reserved, 1)
		assert.True(t, strings.HasPrefix(esc.reserved[0], "fund:"))
		assert.Equal(t, esc.reserved, esc.committed)
		assert.Empty(t, esc.refunded)
	})

	t.Run("wallet without funds leaves the balance untouched", func(t *testing.T) {
		api, esc := newAPI(t, nopCoordinator{})
		esc.reserveErr = errors.Wrap(wallet.ErrInsufficientFunds, "reserve")
		h := api.Router()
		rec := call(t, h, http.MethodPost, "/v1/fund", &player, `{"value_eth":"1000000"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)

		rec = call(t, h, http.MethodGet, "/v1/balance", nil, "")
		assert.Equal(t, "0", decode[dto.AmountResponse](t, rec).Wei)
	})

	t.Run("rejected deposit is refunded", func(t *testing.T) {
		api, esc := newAPI(t, nopCoordinator{})
		h := api.Router()
		rec := call(t, h, http.MethodPost, "/v1/fund", &owner, `{"value_wei":"0"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.Len(t, esc.reserved, 1)
		assert.Equal(t, esc.reserved, esc.refunded)
		assert.Empty(t, esc.committed)
	})
}

func TestCommitRetriesAfterAdmission(t *testing.T) {
	prev := commitBackoff
	commitBackoff = 0
	t.Cleanup(func() { commitBackoff = prev })

	api, esc := newAPI(t, nopCoordinator{})
	esc.commitFails = 2
	h := api.Router()
	rec := call(t, h, http.MethodPost, "/v1/bets", &player, `{"guess":7,"value_eth":"0.005"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 3, esc.commitCalls)
	assert.Equal(t, esc.reserved, esc.committed)

	api, esc = newAPI(t, nopCoordinator{})
	esc.commitFails = commitAttempts + 1
	rec = call(t, api.Router(), http.MethodPost, "/v1/bets", &player, `{"guess":7,"value_eth":"0.005"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, commitAttempts, esc.commitCalls)
	assert.Empty(t, esc.committed)
}

type staticCache struct{ b crylot.StakeBounds }

func (c staticCache) Get(context.Context) (crylot.StakeBounds, bool, error) { return c.b, true, nil }

func TestBoundsServedFromCache(t *testing.T) {
	api, _ := newAPI(t, nopCoordinator{})
	api.Cache = staticCache{crylot.StakeBounds{MinBet: big.NewInt(1), MaxBet: big.NewInt(2)}}

	rec := call(t, api.Router(), http.MethodGet, "/v1/bounds", nil, "")
	assert.Equal(t, "1", decode[dto.BoundsResponse](t, rec).MinBetWei)
}
