// Package bootstrap monta o contrato a partir da configuração do serviço.
// Usado pelo crylot-service e pelo fulfillment-worker.
package bootstrap

import (
	"context"
	"database/sql"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/radieske/crylot/internal/crylot"
	"github.com/radieske/crylot/internal/crylot/repo"
	"github.com/radieske/crylot/internal/shared/config"
	"github.com/radieske/crylot/internal/shared/db"
	"github.com/radieske/crylot/internal/shared/metrics"
)

// Params converte a config nos parâmetros de deploy do contrato
func Params(cfg config.Config) (crylot.Params, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return crylot.Params{}, errors.Errorf("invalid CONTRACT_ADDRESS %q", cfg.ContractAddress)
	}
	if !common.IsHexAddress(cfg.OwnerAddress) {
		return crylot.Params{}, errors.Errorf("invalid OWNER_ADDRESS %q", cfg.OwnerAddress)
	}
	if cfg.Network.VRFCoordinator == (common.Address{}) {
		return crylot.Params{}, errors.Errorf("network %s has no vrf coordinator", cfg.Network.Name)
	}
	return crylot.Params{
		Address:        common.HexToAddress(cfg.ContractAddress),
		Owner:          common.HexToAddress(cfg.OwnerAddress),
		KeyHash:        cfg.Network.KeyHash,
		Coordinator:    cfg.Network.VRFCoordinator,
		SubscriptionID: cfg.Network.SubscriptionID,
	}, nil
}

// Store é o store aberto junto com o que o main precisa para fechar e checar saúde
type Store struct {
	crylot.Store
	Health metrics.HealthFunc
	db     *sql.DB
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// OpenStore abre o store indicado em STORE_DRIVER. "memory" só serve para
// rodar tudo num processo só (dev/testes): o estado não é compartilhado.
func OpenStore(ctx context.Context, cfg config.Config) (*Store, error) {
	switch cfg.StoreDriver {
	case "memory":
		return &Store{Store: repo.NewMemory(), Health: func(context.Context) error { return nil }}, nil
	case "postgres", "":
		pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := repo.Migrate(ctx, pg); err != nil {
			_ = pg.Close()
			return nil, err
		}
		return &Store{Store: repo.NewPostgres(pg), Health: pg.PingContext, db: pg}, nil
	default:
		return nil, errors.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
