package repo

import (
	"context"
	"database/sql"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/radieske/crylot/internal/crylot"
)

// chave do advisory lock que serializa as chamadas ao contrato
const contractLockKey = 0x6372796c6f74 // "crylot"

// Postgres implementa o estado do contrato em banco Postgres
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do store do contrato
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// Begin abre a transação e pega o advisory lock do contrato.
// O lock é liberado no commit/rollback.
func (p *Postgres) Begin(ctx context.Context) (crylot.Tx, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, contractLockKey); err != nil {
		_ = tx.Rollback()
		return nil, errors.Wrap(err, "lock contract")
	}
	return &pgTx{tx: tx}, nil
}

type pgTx struct{ tx *sql.Tx }

func (t *pgTx) Commit() error   { return t.tx.Commit() }
func (t *pgTx) Rollback() error { return t.tx.Rollback() }

func (t *pgTx) Initialized(ctx context.Context) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM crylot_state WHERE id=1`).Scan(&n)
	return n == 1, err
}

func (t *pgTx) Initialize(ctx context.Context, p crylot.Params, b crylot.StakeBounds) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO crylot_state (id, contract_address, owner_address, key_hash, coordinator, subscription_id, min_bet, max_bet)
		VALUES (1,$1,$2,$3,$4,$5,$6::numeric,$7::numeric)`,
		p.Address.Hex(), p.Owner.Hex(), p.KeyHash.Hex(), p.Coordinator.Hex(), p.SubscriptionID,
		b.MinBet.String(), b.MaxBet.String(),
	)
	return err
}

func (t *pgTx) Bounds(ctx context.Context) (crylot.StakeBounds, error) {
	var minS, maxS string
	if err := t.tx.QueryRowContext(ctx, `SELECT min_bet::text, max_bet::text FROM crylot_state WHERE id=1`).Scan(&minS, &maxS); err != nil {
		return crylot.StakeBounds{}, notDeployed(err)
	}
	minV, err := parseNumeric(minS)
	if err != nil {
		return crylot.StakeBounds{}, err
	}
	maxV, err := parseNumeric(maxS)
	if err != nil {
		return crylot.StakeBounds{}, err
	}
	return crylot.StakeBounds{MinBet: minV, MaxBet: maxV}, nil
}

func (t *pgTx) SetBounds(ctx context.Context, b crylot.StakeBounds) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE crylot_state SET min_bet=$1::numeric, max_bet=$2::numeric, updated_at=NOW() WHERE id=1`,
		b.MinBet.String(), b.MaxBet.String())
	return err
}

func (t *pgTx) Owner(ctx context.Context) (common.Address, error) {
	var owner string
	if err := t.tx.QueryRowContext(ctx, `SELECT owner_address FROM crylot_state WHERE id=1`).Scan(&owner); err != nil {
		return common.Address{}, notDeployed(err)
	}
	return common.HexToAddress(owner), nil
}

func (t *pgTx) IsAdmin(ctx context.Context, account common.Address) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM crylot_admins WHERE address=$1`, account.Hex()).Scan(&n)
	return n > 0, err
}

func (t *pgTx) SetAdmin(ctx context.Context, account common.Address, granted bool) error {
	if granted {
		_, err := t.tx.ExecContext(ctx, `INSERT INTO crylot_admins(address) VALUES($1) ON CONFLICT (address) DO NOTHING`, account.Hex())
		return err
	}
	_, err := t.tx.ExecContext(ctx, `DELETE FROM crylot_admins WHERE address=$1`, account.Hex())
	return err
}

func (t *pgTx) NextNonce(ctx context.Context) (uint64, error) {
	var n uint64
	err := t.tx.QueryRowContext(ctx, `UPDATE crylot_state SET nonce = nonce + 1 WHERE id=1 RETURNING nonce`).Scan(&n)
	return n, notDeployed(err)
}

func (t *pgTx) InsertPending(ctx context.Context, bet crylot.PendingBet) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO crylot_pending_bets (request_id, player, guess, stake, placed_at)
		VALUES ($1::numeric,$2,$3,$4::numeric,$5)`,
		bet.RequestID.String(), bet.Player.Hex(), bet.Guess, bet.Stake.String(), bet.PlacedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
		return crylot.ErrDuplicate
	}
	return err
}

// TakePending usa DELETE ... RETURNING: remover e ler numa única instrução
func (t *pgTx) TakePending(ctx context.Context, requestID *big.Int) (crylot.PendingBet, error) {
	row := t.tx.QueryRowContext(ctx, `
		DELETE FROM crylot_pending_bets WHERE request_id=$1::numeric
		RETURNING player, guess, stake::text, placed_at`, requestID.String())
	return scanPending(row, requestID)
}

func (t *pgTx) GetPending(ctx context.Context, requestID *big.Int) (crylot.PendingBet, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT player, guess, stake::text, placed_at FROM crylot_pending_bets WHERE request_id=$1::numeric`,
		requestID.String())
	return scanPending(row, requestID)
}

func scanPending(row *sql.Row, requestID *big.Int) (crylot.PendingBet, error) {
	var (
		player string
		guess  uint64
		stake  string
		at     time.Time
	)
	if err := row.Scan(&player, &guess, &stake, &at); err != nil {
		if err == sql.ErrNoRows {
			return crylot.PendingBet{}, crylot.ErrUnknownRequest
		}
		return crylot.PendingBet{}, err
	}
	st, err := parseNumeric(stake)
	if err != nil {
		return crylot.PendingBet{}, err
	}
	return crylot.PendingBet{
		RequestID: new(big.Int).Set(requestID),
		Player:    common.HexToAddress(player),
		Guess:     guess,
		Stake:     st,
		PlacedAt:  at,
	}, nil
}

func (t *pgTx) LockedStake(ctx context.Context) (*big.Int, error) {
	var s string
	if err := t.tx.QueryRowContext(ctx, `SELECT COALESCE(SUM(stake),0)::text FROM crylot_pending_bets`).Scan(&s); err != nil {
		return nil, err
	}
	return parseNumeric(s)
}

func (t *pgTx) Balance(ctx context.Context) (*big.Int, error) {
	var s string
	if err := t.tx.QueryRowContext(ctx, `SELECT balance::text FROM crylot_state WHERE id=1`).Scan(&s); err != nil {
		return nil, notDeployed(err)
	}
	return parseNumeric(s)
}

func (t *pgTx) AddBalance(ctx context.Context, delta *big.Int) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE crylot_state SET balance = balance + $1::numeric, updated_at=NOW()
		WHERE id=1 AND balance + $1::numeric >= 0`, delta.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errNegativeBalance
	}
	return nil
}

func (t *pgTx) SaveOutcome(ctx context.Context, o crylot.Outcome) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO crylot_outcomes
		  (request_id, player, guess, stake, random_word, rolled, won, payout, payout_status, resolved_at)
		VALUES
		  ($1::numeric,$2,$3,$4::numeric,$5::numeric,$6,$7,$8::numeric,$9,$10)
		ON CONFLICT (request_id) DO UPDATE SET
		  payout        = EXCLUDED.payout,
		  payout_status = EXCLUDED.payout_status`,
		o.RequestID.String(), o.Player.Hex(), o.Guess, o.Stake.String(), o.RandomWord.String(),
		o.Rolled, o.Won, o.Payout.String(), string(o.PayoutStatus), o.ResolvedAt,
	)
	return err
}

func (t *pgTx) GetOutcome(ctx context.Context, requestID *big.Int) (crylot.Outcome, error) {
	var (
		o                           crylot.Outcome
		player, stake, word, payout string
		status                      string
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT player, guess, stake::text, random_word::text, rolled, won, payout::text, payout_status, resolved_at
		FROM crylot_outcomes WHERE request_id=$1::numeric`, requestID.String()).
		Scan(&player, &o.Guess, &stake, &word, &o.Rolled, &o.Won, &payout, &status, &o.ResolvedAt)
	if err == sql.ErrNoRows {
		return crylot.Outcome{}, crylot.ErrUnknownRequest
	}
	if err != nil {
		return crylot.Outcome{}, err
	}

	o.RequestID = new(big.Int).Set(requestID)
	o.Player = common.HexToAddress(player)
	o.PayoutStatus = crylot.PayoutStatus(status)
	if o.Stake, err = parseNumeric(stake); err != nil {
		return crylot.Outcome{}, err
	}
	if o.RandomWord, err = parseNumeric(word); err != nil {
		return crylot.Outcome{}, err
	}
	if o.Payout, err = parseNumeric(payout); err != nil {
		return crylot.Outcome{}, err
	}
	return o, nil
}

func parseNumeric(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.Errorf("invalid numeric %q", s)
	}
	return v, nil
}

func notDeployed(err error) error {
	if err == sql.ErrNoRows {
		return errNotDeployed
	}
	return err
}
