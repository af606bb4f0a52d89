package repo

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// Tabelas do contrato. Valores em wei como NUMERIC(78,0) (cabe um uint256).
var schema = []string{
	`CREATE TABLE IF NOT EXISTS crylot_state (
		id               SMALLINT PRIMARY KEY CHECK (id = 1),
		contract_address TEXT NOT NULL,
		owner_address    TEXT NOT NULL,
		key_hash         TEXT NOT NULL,
		coordinator      TEXT NOT NULL,
		subscription_id  BIGINT NOT NULL,
		min_bet          NUMERIC(78,0) NOT NULL,
		max_bet          NUMERIC(78,0) NOT NULL,
		nonce            BIGINT NOT NULL DEFAULT 0,
		balance          NUMERIC(78,0) NOT NULL DEFAULT 0,
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (min_bet > 0 AND max_bet >= min_bet),
		CHECK (balance >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS crylot_admins (
		address    TEXT PRIMARY KEY,
		granted_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS crylot_pending_bets (
		request_id NUMERIC(78,0) PRIMARY KEY,
		player     TEXT NOT NULL,
		guess      INTEGER NOT NULL,
		stake      NUMERIC(78,0) NOT NULL,
		placed_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS crylot_outcomes (
		request_id    NUMERIC(78,0) PRIMARY KEY,
		player        TEXT NOT NULL,
		guess         INTEGER NOT NULL,
		stake         NUMERIC(78,0) NOT NULL,
		random_word   NUMERIC(78,0) NOT NULL,
		rolled        INTEGER NOT NULL,
		won           BOOLEAN NOT NULL,
		payout        NUMERIC(78,0) NOT NULL,
		payout_status TEXT NOT NULL,
		resolved_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS crylot_outcomes_player_idx ON crylot_outcomes (player)`,
}

// Migrate cria as tabelas se ainda não existirem
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "migrate crylot schema")
		}
	}
	return nil
}
