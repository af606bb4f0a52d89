package repo

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS wallets (
	id          UUID PRIMARY KEY,
	address     TEXT NOT NULL UNIQUE,
	balance_wei NUMERIC(78,0) NOT NULL DEFAULT 0 CHECK (balance_wei >= 0),
	version     BIGINT NOT NULL DEFAULT 1,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS wallet_reservations (
	id           UUID PRIMARY KEY,
	wallet_id    UUID NOT NULL REFERENCES wallets(id),
	external_ref TEXT NOT NULL,
	amount_wei   NUMERIC(78,0) NOT NULL,
	status       TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (wallet_id, external_ref)
);

CREATE TABLE IF NOT EXISTS wallet_ledger (
	id             BIGSERIAL PRIMARY KEY,
	wallet_id      UUID NOT NULL REFERENCES wallets(id),
	operation_type TEXT NOT NULL,
	amount_wei     NUMERIC(78,0) NOT NULL,
	description    TEXT NOT NULL,
	external_ref   TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS wallet_ledger_credit_ref
	ON wallet_ledger(wallet_id, external_ref) WHERE operation_type = 'CREDIT' AND external_ref IS NOT NULL;
`

// Migrate cria as tabelas da carteira se não existirem
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return errors.Wrap(err, "wallet migrate")
}
