package repo

import "github.com/pkg/errors"

var (
	errNotDeployed     = errors.New("contract not deployed")
	errNegativeBalance = errors.New("contract balance would become negative")
)
