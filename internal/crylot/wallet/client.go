// Package wallet é o cliente HTTP do wallet-service usado pelo crylot-service:
// reserva o stake do jogador antes do bet e credita prêmios (Payer).
package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/radieske/crylot/internal/wallet-service/dto"
)

// ErrInsufficientFunds é devolvido quando a reserva é recusada por saldo
var ErrInsufficientFunds = errors.New("wallet: insufficient funds")

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(base string) *Client {
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 2 * time.Second},
	}
}

// Reserve bloqueia amount na carteira do jogador sob externalRef
func (c *Client) Reserve(ctx context.Context, player common.Address, amount *big.Int, externalRef string) (string, error) {
	var out dto.ReservationResponse
	err := c.post(ctx, "/wallet/reserve", dto.ReserveRequest{
		Address:     player.Hex(),
		AmountWei:   amount.String(),
		ExternalRef: externalRef,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.ReservationID, nil
}

func (c *Client) Commit(ctx context.Context, player common.Address, externalRef string) error {
	return c.post(ctx, "/wallet/commit", dto.CommitRequest{Address: player.Hex(), ExternalRef: externalRef}, nil)
}

func (c *Client) Refund(ctx context.Context, player common.Address, externalRef string) error {
	return c.post(ctx, "/wallet/refund", dto.RefundRequest{Address: player.Hex(), ExternalRef: externalRef}, nil)
}

// Transfer credita o prêmio. A ref torna a chamada idempotente no wallet-service.
func (c *Client) Transfer(ctx context.Context, to common.Address, amount *big.Int, ref string) error {
	return c.post(ctx, "/wallet/deposit", dto.DepositRequest{
		Address:     to.Hex(),
		AmountWei:   amount.String(),
		ExternalRef: ref,
	}, nil)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, _ := json.Marshal(in)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return errors.Wrapf(err, "wallet %s", path)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusConflict {
		return ErrInsufficientFunds
	}
	if res.StatusCode >= 300 {
		var e dto.ErrorResponse
		_ = json.NewDecoder(res.Body).Decode(&e)
		return fmt.Errorf("wallet %s http %d: %s", path, res.StatusCode, e.Error)
	}
	if out == nil {
		return nil
	}
	return errors.Wrapf(json.NewDecoder(res.Body).Decode(out), "wallet %s decode", path)
}
