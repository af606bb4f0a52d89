// Package callerauth autentica o chamador na borda. O cliente assina
// keccak256(method, path, timestamp, keccak256(body)) com a chave da conta e
// o gateway recupera o endereço com secp256k1. Os serviços internos confiam
// no X-Caller-Address que o gateway repassa.
package callerauth

import (
	"bytes"
	"crypto/ecdsa"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	AddressHeader   = "X-Caller-Address"
	SignatureHeader = "X-Caller-Signature"
	TimestampHeader = "X-Caller-Timestamp"

	DefaultMaxSkew = 5 * time.Minute
	maxBody        = 1 << 20
)

var (
	ErrBadSignature = errors.New("callerauth: invalid signature")
	ErrStale        = errors.New("callerauth: timestamp outside window")
	ErrMismatch     = errors.New("callerauth: claimed address does not match signer")
)

// Digest é o hash que o chamador assina
func Digest(method, path string, ts int64, body []byte) []byte {
	return crypto.Keccak256(
		[]byte(method),
		[]byte{'\n'},
		[]byte(path),
		[]byte{'\n'},
		[]byte(strconv.FormatInt(ts, 10)),
		[]byte{'\n'},
		crypto.Keccak256(body),
	)
}

// Sign preenche os três headers de autenticação. path é o RequestURI que o
// gateway vai receber.
func Sign(req *http.Request, key *ecdsa.PrivateKey, body []byte, now time.Time) error {
	ts := now.Unix()
	sig, err := crypto.Sign(Digest(req.Method, req.URL.RequestURI(), ts, body), key)
	if err != nil {
		return errors.Wrap(err, "sign request")
	}
	req.Header.Set(AddressHeader, crypto.PubkeyToAddress(key.PublicKey).Hex())
	req.Header.Set(TimestampHeader, strconv.FormatInt(ts, 10))
	req.Header.Set(SignatureHeader, hexutil.Encode(sig))
	return nil
}

// Verify recupera o signer de uma requisição assinada
func Verify(r *http.Request, body []byte, now time.Time, maxSkew time.Duration) (common.Address, error) {
	ts, err := strconv.ParseInt(r.Header.Get(TimestampHeader), 10, 64)
	if err != nil {
		return common.Address{}, errors.Wrap(ErrBadSignature, "timestamp")
	}
	if d := now.Sub(time.Unix(ts, 0)); d > maxSkew || d < -maxSkew {
		return common.Address{}, ErrStale
	}
	sig, err := hexutil.Decode(r.Header.Get(SignatureHeader))
	if err != nil || len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrBadSignature
	}
	pub, err := crypto.SigToPub(Digest(r.Method, r.URL.RequestURI(), ts, body), sig)
	if err != nil {
		return common.Address{}, errors.Wrap(ErrBadSignature, err.Error())
	}
	signer := crypto.PubkeyToAddress(*pub)
	if claimed := r.Header.Get(AddressHeader); claimed != "" {
		if !common.IsHexAddress(claimed) || common.HexToAddress(claimed) != signer {
			return common.Address{}, ErrMismatch
		}
	}
	return signer, nil
}

// Middleware remove qualquer X-Caller-Address vindo do cliente e só o recoloca
// com o endereço recuperado da assinatura. Requisição sem assinatura segue
// anônima; assinatura inválida recebe 401.
type Middleware struct {
	Log     *zap.Logger
	MaxSkew time.Duration
	Now     func() time.Time
}

func (m Middleware) Wrap(next http.Handler) http.Handler {
	skew := m.MaxSkew
	if skew <= 0 {
		skew = DefaultMaxSkew
	}
	now := m.Now
	if now == nil {
		now = time.Now
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(SignatureHeader) == "" {
			r.Header.Del(AddressHeader)
			r.Header.Del(TimestampHeader)
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
		if err != nil {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		signer, err := Verify(r, body, now(), skew)
		r.Header.Del(SignatureHeader)
		r.Header.Del(TimestampHeader)
		r.Header.Del(AddressHeader)
		if err != nil {
			if m.Log != nil {
				m.Log.Info("caller auth rejected", zap.String("path", r.URL.Path), zap.Error(err))
			}
			http.Error(w, "invalid caller signature", http.StatusUnauthorized)
			return
		}
		r.Header.Set(AddressHeader, signer.Hex())
		next.ServeHTTP(w, r)
	})
}
