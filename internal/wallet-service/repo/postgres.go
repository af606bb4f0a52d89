package repo

import (
	"context"
	"database/sql"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Postgres implementa operações de carteira em banco. Saldos em wei (NUMERIC).
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("not found")
)

// GetOrCreateWallet retorna o walletId e saldo de um endereço, criando a carteira se não existir
func (p *Postgres) GetOrCreateWallet(ctx context.Context, address string) (walletID string, balance *big.Int, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", nil, err
	}
	defer tx.Rollback()

	walletID, err = ensureWallet(ctx, tx, address)
	if err != nil {
		return "", nil, err
	}
	balance, err = balanceOf(ctx, tx, walletID)
	if err != nil {
		return "", nil, err
	}
	if err = tx.Commit(); err != nil {
		return "", nil, err
	}
	return walletID, balance, nil
}

// Deposit credita a carteira (criando se preciso) e registra no ledger.
// Com externalRef, um segundo crédito com a mesma ref não tem efeito: é assim
// que o pagamento de prêmios fica idempotente.
func (p *Postgres) Deposit(ctx context.Context, address string, amount *big.Int, externalRef string) (walletID string, newBalance *big.Int, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", nil, err
	}
	defer tx.Rollback()

	if walletID, err = ensureWallet(ctx, tx, address); err != nil {
		return "", nil, err
	}
	if _, err = tx.ExecContext(ctx, `SELECT 1 FROM wallets WHERE id=$1 FOR UPDATE`, walletID); err != nil {
		return "", nil, err
	}

	credited := true
	if externalRef != "" {
		var exists int
		err = tx.QueryRowContext(ctx,
			`SELECT 1 FROM wallet_ledger WHERE wallet_id=$1 AND operation_type='CREDIT' AND external_ref=$2`,
			walletID, externalRef).Scan(&exists)
		switch {
		case err == nil:
			credited = false // já creditado
		case errors.Is(err, sql.ErrNoRows):
			err = nil
		default:
			return "", nil, err
		}
	}

	if credited {
		if _, err = tx.ExecContext(ctx,
			`UPDATE wallets SET balance_wei = balance_wei + $1::numeric, version = version + 1 WHERE id=$2`,
			amount.String(), walletID); err != nil {
			return "", nil, err
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO wallet_ledger(wallet_id, operation_type, amount_wei, description, external_ref)
			 VALUES($1,'CREDIT',$2::numeric,$3,NULLIF($4,''))`,
			walletID, amount.String(), "deposit:"+externalRef, externalRef); err != nil {
			return "", nil, err
		}
	}

	if newBalance, err = balanceOf(ctx, tx, walletID); err != nil {
		return "", nil, err
	}
	if err = tx.Commit(); err != nil {
		return "", nil, err
	}
	return walletID, newBalance, nil
}

// Reserve cria uma reserva PENDING e debita saldo (bloqueio)
// Garante idempotência por (wallet_id, external_ref)
func (p *Postgres) Reserve(ctx context.Context, address string, amount *big.Int, externalRef string) (reservationID string, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var walletID string
	if err = tx.QueryRowContext(ctx, `SELECT id FROM wallets WHERE address=$1 FOR UPDATE`, address).Scan(&walletID); err != nil {
		return "", err
	}

	// Idempotência: verifica se já existe reserva para o mesmo external_ref
	var exists string
	err = tx.QueryRowContext(ctx, `SELECT id FROM wallet_reservations WHERE wallet_id=$1 AND external_ref=$2`, walletID, externalRef).Scan(&exists)
	if err == nil {
		return exists, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	balance, err := balanceOf(ctx, tx, walletID)
	if err != nil {
		return "", err
	}
	if balance.Cmp(amount) < 0 {
		return "", ErrInsufficientFunds
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE wallets SET balance_wei = balance_wei - $1::numeric, version = version + 1 WHERE id=$2`,
		amount.String(), walletID); err != nil {
		return "", err
	}

	reservationID = uuid.New().String()
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO wallet_reservations(id, wallet_id, external_ref, amount_wei, status) VALUES($1,$2,$3,$4::numeric,'PENDING')`,
		reservationID, walletID, externalRef, amount.String()); err != nil {
		return "", err
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO wallet_ledger(wallet_id, operation_type, amount_wei, description, external_ref) VALUES($1,'RESERVE',$2::numeric,$3,$4)`,
		walletID, amount.String(), "reserve:"+externalRef, externalRef); err != nil {
		return "", err
	}

	if err = tx.Commit(); err != nil {
		return "", err
	}
	return reservationID, nil
}

// Commit efetiva uma reserva. Idempotente: se não estiver PENDING, não faz nada.
func (p *Postgres) Commit(ctx context.Context, address, externalRef string) error {
	return p.settle(ctx, address, externalRef, "COMMITTED")
}

// Refund desfaz uma reserva PENDING devolvendo o saldo. Idempotente.
func (p *Postgres) Refund(ctx context.Context, address, externalRef string) error {
	return p.settle(ctx, address, externalRef, "REFUNDED")
}

func (p *Postgres) settle(ctx context.Context, address, externalRef, status string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var walletID, resID, current, amount string
	if err = tx.QueryRowContext(ctx, `
		SELECT wr.id, wr.wallet_id, wr.amount_wei::text, wr.status
		FROM wallet_reservations wr
		JOIN wallets w ON w.id = wr.wallet_id
		WHERE w.address=$1 AND wr.external_ref=$2
		FOR UPDATE`, address, externalRef).Scan(&resID, &walletID, &amount, &current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if current != "PENDING" {
		return nil
	}

	op := "DEBIT"
	if status == "REFUNDED" {
		op = "REFUND"
		if _, err = tx.ExecContext(ctx,
			`UPDATE wallets SET balance_wei = balance_wei + $1::numeric, version = version + 1 WHERE id=$2`,
			amount, walletID); err != nil {
			return err
		}
	}
	if _, err = tx.ExecContext(ctx, `UPDATE wallet_reservations SET status=$1 WHERE id=$2`, status, resID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO wallet_ledger(wallet_id, operation_type, amount_wei, description, external_ref) VALUES($1,$2,$3::numeric,$4,$5)`,
		walletID, op, amount, strings.ToLower(op)+":"+externalRef, externalRef); err != nil {
		return err
	}
	return tx.Commit()
}

func ensureWallet(ctx context.Context, tx *sql.Tx, address string) (string, error) {
	id := uuid.New().String()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO wallets(id, address, balance_wei, version) VALUES($1,$2,0,1) ON CONFLICT (address) DO NOTHING`,
		id, address); err != nil {
		return "", err
	}
	var walletID string
	err := tx.QueryRowContext(ctx, `SELECT id FROM wallets WHERE address=$1`, address).Scan(&walletID)
	return walletID, err
}

func balanceOf(ctx context.Context, tx *sql.Tx, walletID string) (*big.Int, error) {
	var s string
	if err := tx.QueryRowContext(ctx, `SELECT balance_wei::text FROM wallets WHERE id=$1`, walletID).Scan(&s); err != nil {
		return nil, err
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.Errorf("bad balance %q", s)
	}
	return v, nil
}
