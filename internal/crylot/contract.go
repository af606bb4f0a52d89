package crylot

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Contract compõe os componentes e expõe os entry points do Crylot.
// Cada método roda numa única transação do Store: qualquer erro desfaz tudo.
type Contract struct {
	store    Store
	params   Params
	log      *zap.Logger
	access   Authorizer
	config   BetConfig
	ledger   BetLedger
	gateway  *RandomnessGateway
	engine   PayoutEngine
	payer    Payer
	observer Observer
	now      func() time.Time
}

// Option ajusta o Contract no deploy
type Option func(*Contract)

func WithLogger(l *zap.Logger) Option { return func(c *Contract) { c.log = l } }
func WithObserver(o Observer) Option { return func(c *Contract) { c.observer = o } }
func WithClock(now func() time.Time) Option { return func(c *Contract) { c.now = now } }
func WithAuthorizer(a Authorizer) Option { return func(c *Contract) { c.access = a } }

// Deploy inicializa o estado (owner, limites default) se ainda não existir e
// retorna o contrato pronto. Um deploy repetido sobre o mesmo store reaproveita o estado.
func Deploy(ctx context.Context, store Store, p Params, coord Coordinator, payer Payer, opts ...Option) (*Contract, error) {
	c := &Contract{
		store:    store,
		params:   p,
		log:      zap.NewNop(),
		access:   AccessControl{},
		gateway:  NewRandomnessGateway(p, coord),
		payer:    payer,
		observer: Observers(nil),
		now:      time.Now,
	}
	for _, fn := range opts {
		fn(c)
	}

	err := c.withTx(ctx, func(tx Tx) error {
		ok, err := tx.Initialized(ctx)
		if err != nil {
			return errors.Wrap(err, "check initialized")
		}
		if ok {
			return nil
		}
		return tx.Initialize(ctx, p, StakeBounds{
			MinBet: new(big.Int).Set(DefaultMinBet),
			MaxBet: new(big.Int).Set(DefaultMaxBet),
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "deploy")
	}

	c.log.Info("contract deployed",
		zap.Stringer("address", p.Address),
		zap.Stringer("owner", p.Owner),
		zap.Stringer("coordinator", p.Coordinator),
		zap.Uint64("subscriptionId", p.SubscriptionID),
	)
	return c, nil
}

func (c *Contract) Params() Params { return c.params }

func (c *Contract) withTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := c.store.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "commit")
}

// ---------- Leituras ----------

func (c *Contract) Bounds(ctx context.Context) (StakeBounds, error) {
	var out StakeBounds
	err := c.withTx(ctx, func(tx Tx) error {
		b, err := tx.Bounds(ctx)
		out = b
		return err
	})
	if err != nil {
		return StakeBounds{}, err
	}
	return out.clone(), nil
}

func (c *Contract) GetMinBet(ctx context.Context) (*big.Int, error) {
	b, err := c.Bounds(ctx)
	if err != nil {
		return nil, err
	}
	return b.MinBet, nil
}

func (c *Contract) GetMaxBet(ctx context.Context) (*big.Int, error) {
	b, err := c.Bounds(ctx)
	if err != nil {
		return nil, err
	}
	return b.MaxBet, nil
}

func (c *Contract) Balance(ctx context.Context) (*big.Int, error) {
	var out *big.Int
	err := c.withTx(ctx, func(tx Tx) error {
		b, err := tx.Balance(ctx)
		out = b
		return err
	})
	return out, err
}

func (c *Contract) IsAdmin(ctx context.Context, account common.Address) (bool, error) {
	var ok bool
	err := c.withTx(ctx, func(tx Tx) error {
		return c.access.RequireAdmin(ctx, tx, account)
	})
	switch {
	case err == nil:
		ok = true
	case errors.Is(err, ErrNotAuthorized):
		err = nil
	}
	return ok, err
}

func (c *Contract) PendingBet(ctx context.Context, requestID *big.Int) (PendingBet, error) {
	var out PendingBet
	err := c.withTx(ctx, func(tx Tx) error {
		b, err := tx.GetPending(ctx, requestID)
		out = b
		return err
	})
	return out, err
}

func (c *Contract) Outcome(ctx context.Context, requestID *big.Int) (Outcome, error) {
	var out Outcome
	err := c.withTx(ctx, func(tx Tx) error {
		o, err := tx.GetOutcome(ctx, requestID)
		out = o
		return err
	})
	return out, err
}

// ---------- Configuração (admin) ----------

func (c *Contract) SetMinBet(ctx context.Context, caller common.Address, newMin *big.Int) error {
	var next StakeBounds
	err := c.withTx(ctx, func(tx Tx) error {
		if err := c.access.RequireAdmin(ctx, tx, caller); err != nil {
			return err
		}
		b, err := c.config.SetMin(ctx, tx, newMin)
		next = b
		return err
	})
	if err != nil {
		c.log.Info("setMinBet rejected", zap.Stringer("caller", caller), zap.Error(err))
		return err
	}
	c.log.Info("min bet changed", zap.Stringer("caller", caller), zap.String("minBet", next.MinBet.String()))
	c.observer.Observe(ctx, BoundsChanged{Bounds: next, By: caller})
	return nil
}

func (c *Contract) SetMaxBet(ctx context.Context, caller common.Address, newMax *big.Int) error {
	var next StakeBounds
	err := c.withTx(ctx, func(tx Tx) error {
		if err := c.access.RequireAdmin(ctx, tx, caller); err != nil {
			return err
		}
		b, err := c.config.SetMax(ctx, tx, newMax)
		next = b
		return err
	})
	if err != nil {
		c.log.Info("setMaxBet rejected", zap.Stringer("caller", caller), zap.Error(err))
		return err
	}
	c.log.Info("max bet changed", zap.Stringer("caller", caller), zap.String("maxBet", next.MaxBet.String()))
	c.observer.Observe(ctx, BoundsChanged{Bounds: next, By: caller})
	return nil
}

func (c *Contract) GrantAdmin(ctx context.Context, caller, account common.Address) error {
	err := c.withTx(ctx, func(tx Tx) error {
		if err := c.access.RequireAdmin(ctx, tx, caller); err != nil {
			return err
		}
		return tx.SetAdmin(ctx, account, true)
	})
	if err != nil {
		return err
	}
	c.observer.Observe(ctx, AdminChanged{Account: account, Granted: true, By: caller})
	return nil
}

// RevokeAdmin remove um admin concedido. O owner não pode ser revogado.
func (c *Contract) RevokeAdmin(ctx context.Context, caller, account common.Address) error {
	err := c.withTx(ctx, func(tx Tx) error {
		if err := c.access.RequireAdmin(ctx, tx, caller); err != nil {
			return err
		}
		owner, err := tx.Owner(ctx)
		if err != nil {
			return err
		}
		if account == owner {
			return ErrOwnerRevoke
		}
		return tx.SetAdmin(ctx, account, false)
	})
	if err != nil {
		return err
	}
	c.observer.Observe(ctx, AdminChanged{Account: account, Granted: false, By: caller})
	return nil
}

// Fund adiciona valor nativo ao saldo da casa (receive payable)
func (c *Contract) Fund(ctx context.Context, from common.Address, value *big.Int) error {
	if value == nil || value.Sign() <= 0 {
		return ErrInvalidAmount
	}
	err := c.withTx(ctx, func(tx Tx) error {
		return tx.AddBalance(ctx, value)
	})
	if err != nil {
		return err
	}
	c.observer.Observe(ctx, Funded{From: from, Amount: new(big.Int).Set(value)})
	return nil
}

// ---------- Bet ----------

// Bet admite a aposta: valida valor e palpite, escrow do stake, registra no
// ledger e pede aleatoriedade ao coordinator. Se o pedido falhar nada é gravado.
// Retorna o requestId; o resultado só sai no fulfillment.
func (c *Contract) Bet(ctx context.Context, player common.Address, guess uint64, value *big.Int) (*big.Int, error) {
	var bet PendingBet
	err := c.withTx(ctx, func(tx Tx) error {
		b, err := tx.Bounds(ctx)
		if err != nil {
			return errors.Wrap(err, "load bounds")
		}
		if err := c.config.CheckStake(b, value); err != nil {
			return err
		}
		if guess < GuessMin || guess > GuessMax {
			return ErrInvalidGuess
		}

		if err := tx.AddBalance(ctx, value); err != nil {
			return errors.Wrap(err, "escrow stake")
		}

		req, err := c.gateway.Prepare(ctx, tx)
		if err != nil {
			return err
		}
		bet = PendingBet{
			RequestID: req.RequestID,
			Player:    player,
			Guess:     guess,
			Stake:     new(big.Int).Set(value),
			PlacedAt:  c.now().UTC(),
		}
		if err := c.ledger.Record(ctx, tx, bet); err != nil {
			if errors.Is(err, errDuplicateRequest) {
				c.log.DPanic("ledger invariant violated", zap.String("requestId", req.RequestID.String()), zap.Error(err))
			}
			return err
		}

		// por último: se o coordinator recusar, o rollback desfaz escrow e ledger
		return c.gateway.Send(ctx, req)
	})
	if err != nil {
		c.log.Info("bet rejected",
			zap.Stringer("player", player),
			zap.Uint64("guess", guess),
			zap.String("value", amountString(value)),
			zap.String("reason", KindOf(err).String()),
			zap.Error(err),
		)
		return nil, err
	}

	c.log.Info("bet admitted",
		zap.String("requestId", bet.RequestID.String()),
		zap.Stringer("player", player),
		zap.Uint64("guess", guess),
		zap.String("stake", bet.Stake.String()),
	)
	c.observer.Observe(ctx, BetPlaced{Bet: bet})
	return new(big.Int).Set(bet.RequestID), nil
}

// ---------- Fulfillment (callback do coordinator) ----------

// FulfillRandomWords é o callback do oráculo. Só o coordinator configurado pode
// chamar; um requestId desconhecido ou já resolvido retorna ErrUnknownRequest
// sem efeito financeiro. A entrada do ledger sai antes da transferência: uma falha
// de transferência volta como ErrTransferFailed e fica registrada como FAILED.
func (c *Contract) FulfillRandomWords(ctx context.Context, sender common.Address, requestID *big.Int, words []*big.Int) (Outcome, error) {
	if err := c.gateway.CheckSender(sender); err != nil {
		c.log.Warn("fulfillment from non-coordinator", zap.Stringer("sender", sender))
		return Outcome{}, err
	}
	if requestID == nil || len(words) == 0 || words[0] == nil {
		return Outcome{}, errors.New("fulfillment without request id or random words")
	}

	var out Outcome
	err := c.withTx(ctx, func(tx Tx) error {
		bet, err := c.ledger.Take(ctx, tx, requestID)
		if err != nil {
			return err
		}

		// saldo disponível = saldo total - stakes ainda travados por outras apostas
		balance, err := tx.Balance(ctx)
		if err != nil {
			return errors.Wrap(err, "load balance")
		}
		locked, err := tx.LockedStake(ctx)
		if err != nil {
			return errors.Wrap(err, "load locked stake")
		}
		available := new(big.Int).Sub(balance, locked)

		out = c.engine.Resolve(bet, words[0], available)
		out.ResolvedAt = c.now().UTC()
		if out.Payout.Sign() > 0 {
			if err := tx.AddBalance(ctx, new(big.Int).Neg(out.Payout)); err != nil {
				return errors.Wrap(err, "debit payout")
			}
		}
		return tx.SaveOutcome(ctx, out)
	})
	if err != nil {
		if KindOf(err) == KindUnknownRequest {
			c.log.Warn("fulfillment for unknown request", zap.String("requestId", requestID.String()))
		}
		return Outcome{}, err
	}

	c.log.Info("bet resolved",
		zap.String("requestId", requestID.String()),
		zap.Stringer("player", out.Player),
		zap.Uint64("guess", out.Guess),
		zap.Uint64("rolled", out.Rolled),
		zap.Bool("won", out.Won),
		zap.String("payout", out.Payout.String()),
	)

	if out.PayoutStatus == PayoutPending {
		out, err = c.transfer(ctx, out)
	}
	c.observer.Observe(ctx, BetResolved{Outcome: out})
	return out, err
}

// RetryPayout repete uma transferência FAILED (ou PENDING interrompida). A ref
// do Payer é a mesma, então uma transferência que já tinha passado não duplica.
func (c *Contract) RetryPayout(ctx context.Context, caller common.Address, requestID *big.Int) (Outcome, error) {
	var o Outcome
	err := c.withTx(ctx, func(tx Tx) error {
		if err := c.access.RequireAdmin(ctx, tx, caller); err != nil {
			return err
		}
		got, err := tx.GetOutcome(ctx, requestID)
		if err != nil {
			return err
		}
		if got.PayoutStatus != PayoutFailed && got.PayoutStatus != PayoutPending {
			return ErrNoFailedPayout
		}
		o = got
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	out, err := c.transfer(ctx, o)
	c.observer.Observe(ctx, BetResolved{Outcome: out})
	return out, err
}

func (c *Contract) transfer(ctx context.Context, o Outcome) (Outcome, error) {
	terr := c.payer.Transfer(ctx, o.Player, o.Payout, payoutRef(o.RequestID))
	o.PayoutStatus = PayoutPaid
	if terr != nil {
		o.PayoutStatus = PayoutFailed
		c.log.Error("payout transfer failed",
			zap.String("requestId", o.RequestID.String()),
			zap.Stringer("player", o.Player),
			zap.String("payout", o.Payout.String()),
			zap.Error(terr),
		)
	}

	if err := c.withTx(ctx, func(tx Tx) error { return tx.SaveOutcome(ctx, o) }); err != nil {
		c.log.Error("save payout status", zap.String("requestId", o.RequestID.String()), zap.Error(err))
		if terr == nil {
			return o, err
		}
	}
	if terr != nil {
		return o, errors.Wrapf(ErrTransferFailed, "request %s: %v", o.RequestID, terr)
	}
	return o, nil
}

func amountString(v *big.Int) string {
	if v == nil {
		return "<nil>"
	}
	return v.String()
}
