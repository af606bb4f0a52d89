// Package vrf implementa a prova do coordinator: palavras derivadas de uma
// semente e assinadas com a chave secp256k1 do coordinator.
package vrf

import (
	"crypto/ecdsa"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

var ErrBadSignature = errors.New("vrf: invalid signature")

// Digest = keccak256(requestId ‖ word_0 ‖ ... ‖ word_n), cada valor em 32 bytes
func Digest(requestID *big.Int, words []*big.Int) []byte {
	parts := make([][]byte, 0, len(words)+1)
	parts = append(parts, math.U256Bytes(new(big.Int).Set(requestID)))
	for _, w := range words {
		parts = append(parts, math.U256Bytes(new(big.Int).Set(w)))
	}
	return crypto.Keccak256(parts...)
}

// DeriveWords gera n palavras de 256 bits a partir de seed e requestId.
// Determinístico: a mesma semente sempre dá as mesmas palavras.
func DeriveWords(seed []byte, requestID *big.Int, n uint32) []*big.Int {
	out := make([]*big.Int, n)
	id := math.U256Bytes(new(big.Int).Set(requestID))
	for i := uint32(0); i < n; i++ {
		idx := math.U256Bytes(new(big.Int).SetUint64(uint64(i)))
		out[i] = new(big.Int).SetBytes(crypto.Keccak256(seed, id, idx))
	}
	return out
}

// Sign assina o digest do fulfillment com a chave do coordinator
func Sign(key *ecdsa.PrivateKey, requestID *big.Int, words []*big.Int) ([]byte, error) {
	sig, err := crypto.Sign(Digest(requestID, words), key)
	if err != nil {
		return nil, errors.Wrap(err, "vrf sign")
	}
	return sig, nil
}

// RecoverSigner devolve o endereço que assinou o fulfillment
func RecoverSigner(requestID *big.Int, words []*big.Int, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrBadSignature
	}
	pub, err := crypto.SigToPub(Digest(requestID, words), sig)
	if err != nil {
		return common.Address{}, errors.Wrap(ErrBadSignature, err.Error())
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// LoadKey lê uma chave privada em hex (com ou sem 0x)
func LoadKey(hexKey string) (*ecdsa.PrivateKey, error) {
	k, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "load coordinator key")
	}
	return k, nil
}

// Address é o endereço do coordinator para a chave
func Address(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}
