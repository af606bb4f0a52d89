package crylot

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Authorizer é a checagem de capacidade composta nas operações privilegiadas
type Authorizer interface {
	RequireAdmin(ctx context.Context, tx Tx, caller common.Address) error
}

// AccessControl autoriza o owner e os admins concedidos
type AccessControl struct{}

// RequireAdmin falha com ErrNotAuthorized se o caller não for owner nem admin.
// Não altera estado.
func (AccessControl) RequireAdmin(ctx context.Context, tx Tx, caller common.Address) error {
	owner, err := tx.Owner(ctx)
	if err != nil {
		return errors.Wrap(err, "load owner")
	}
	if caller == owner {
		return nil
	}
	ok, err := tx.IsAdmin(ctx, caller)
	if err != nil {
		return errors.Wrap(err, "load admin")
	}
	if !ok {
		return ErrNotAuthorized
	}
	return nil
}
