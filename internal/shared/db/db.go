package db

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

// Pool controla o pool do database/sql. Zero usa os defaults abaixo.
type Pool struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
}

var defaultPool = Pool{MaxOpen: 20, MaxIdle: 5, MaxLifetime: 30 * time.Minute}

// ConnectPostgres abre o pool e só retorna depois de um ping bem sucedido.
// As chamadas ao contrato seguram uma conexão durante o advisory lock, então
// o pool precisa de folga para as leituras concorrentes.
func ConnectPostgres(ctx context.Context, dsn string, pool ...Pool) (*sql.DB, error) {
	p := defaultPool
	if len(pool) > 0 {
		p = pool[0]
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	db.SetMaxOpenConns(p.MaxOpen)
	db.SetMaxIdleConns(p.MaxIdle)
	db.SetConnMaxLifetime(p.MaxLifetime)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}

	return db, nil
}
