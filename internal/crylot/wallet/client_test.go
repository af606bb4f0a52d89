package wallet

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/crylot/internal/wallet-service/dto"
)

var player = common.HexToAddress("0x00000000000000000000000000000000000000c3")

func TestTransferPostsDepositWithRef(t *testing.T) {
	var got dto.DepositRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wallet/deposit", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	err := New(srv.URL).Transfer(context.Background(), player, big.NewInt(950), "payout:7")
	require.NoError(t, err)
	assert.Equal(t, player.Hex(), got.Address)
	assert.Equal(t, "950", got.AmountWei)
	assert.Equal(t, "payout:7", got.ExternalRef)
}

func TestReserve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req dto.ReserveRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.AmountWei == "1000" {
			w.WriteHeader(http.StatusConflict)
			return
		}
		_ = json.NewEncoder(w).Encode(dto.ReservationResponse{ReservationID: "r-1", Status: "PENDING"})
	}))
	defer srv.Close()
	c := New(srv.URL)

	id, err := c.Reserve(context.Background(), player, big.NewInt(10), "bet:a")
	require.NoError(t, err)
	assert.Equal(t, "r-1", id)

	_, err = c.Reserve(context.Background(), player, big.NewInt(1000), "bet:b")
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestServerErrorsSurface(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"db down"}`))
	}))
	defer srv.Close()

	err := New(srv.URL).Refund(context.Background(), player, "bet:a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}
