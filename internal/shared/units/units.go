// Package units converte valores em ether (decimal) para wei e vice-versa.
package units

import (
	"math/big"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// EtherDecimals é a quantidade de casas decimais do ether
const EtherDecimals = 18

// ParseEther converte "0.005" em wei. Rejeita negativos e frações menores que 1 wei.
func ParseEther(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid ether amount %q", s)
	}
	if d.IsNegative() {
		return nil, errors.Errorf("negative amount %q", s)
	}
	wei := d.Shift(EtherDecimals)
	if !wei.IsInteger() {
		return nil, errors.Errorf("amount %q has more than %d decimals", s, EtherDecimals)
	}
	return wei.BigInt(), nil
}

// MustEther é ParseEther para constantes conhecidas
func MustEther(s string) *big.Int {
	v, err := ParseEther(s)
	if err != nil {
		panic(err)
	}
	return v
}

// FormatEther formata wei como ether sem zeros à direita ("0.005")
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -EtherDecimals).String()
}

// ParseWei aceita um inteiro decimal em wei
func ParseWei(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, errors.Errorf("invalid wei amount %q", s)
	}
	if v.Sign() < 0 {
		return nil, errors.Errorf("negative amount %q", s)
	}
	return v, nil
}
