// Package simulator faz o papel do coordinator VRF em desenvolvimento: consome
// os pedidos, espera as confirmações, deriva as palavras e publica o
// fulfillment assinado.
package simulator

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/json"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/crylot/internal/crylot/vrf"
	"github.com/radieske/crylot/pkg/contracts/events"
)

// MaxRandomWords limita numWords por pedido
const MaxRandomWords = 256

var (
	ErrUnknownKeyHash      = errors.New("unknown key hash")
	ErrSubscriptionUnknown = errors.New("subscription not funded")
	ErrTooManyWords        = errors.New("numWords out of range")
)

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Simulator responde pedidos de aleatoriedade
type Simulator struct {
	Log     *zap.Logger
	Key     *ecdsa.PrivateKey
	KeyHash common.Hash     // key hash aceito
	Subs    map[uint64]bool // subscriptions com saldo
	Reader  MessageReader
	Writer  MessageWriter

	// BlockTime simula o tempo de cada confirmação (0 responde na hora)
	BlockTime time.Duration
	// Seed gera a entropia de cada resposta; default crypto/rand
	Seed func() ([]byte, error)
	// Concurrency limita os pedidos esperando confirmações ao mesmo tempo (default 64)
	Concurrency int

	OnFulfilled func()
	OnRejected  func(reason string)
}

// Run consome "randomness_requested" até o contexto acabar. Cada pedido espera
// as próprias confirmações em paralelo, então a latência não cresce com a fila.
func (s *Simulator) Run(ctx context.Context) error {
	n := s.Concurrency
	if n <= 0 {
		n = 64
	}
	sem := make(chan struct{}, n)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		m, err := s.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.Log.Warn("kafka read failed", zap.Error(err))
			time.Sleep(500 * time.Millisecond)
			continue
		}
		var req events.RandomnessRequested
		if err := json.Unmarshal(m.Value, &req); err != nil {
			s.Log.Warn("invalid message", zap.Error(err))
			s.reject("decode")
			continue
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := s.Fulfill(ctx, req); err != nil {
				s.Log.Warn("request not fulfilled", zap.String("requestId", req.RequestID), zap.Error(err))
			}
		}()
	}
}

// Fulfill valida o pedido e publica a resposta. Pedidos recusados ficam sem
// resposta, como no coordinator real; a aposta continua pendente.
func (s *Simulator) Fulfill(ctx context.Context, req events.RandomnessRequested) error {
	if common.HexToHash(req.KeyHash) != s.KeyHash {
		s.reject("key_hash")
		return ErrUnknownKeyHash
	}
	if !s.Subs[req.SubscriptionID] {
		s.reject("subscription")
		return errors.Wrapf(ErrSubscriptionUnknown, "sub %d", req.SubscriptionID)
	}
	if req.NumWords == 0 || req.NumWords > MaxRandomWords {
		s.reject("num_words")
		return ErrTooManyWords
	}
	id, ok := new(big.Int).SetString(req.RequestID, 10)
	if !ok {
		s.reject("decode")
		return errors.Errorf("bad request id %q", req.RequestID)
	}

	if s.BlockTime > 0 && req.Confirmations > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(req.Confirmations) * s.BlockTime):
		}
	}

	seed, err := s.seed()
	if err != nil {
		return err
	}
	words := vrf.DeriveWords(seed, id, req.NumWords)
	sig, err := vrf.Sign(s.Key, id, words)
	if err != nil {
		return err
	}

	out := events.RandomnessFulfilled{
		RequestID:   req.RequestID,
		RandomWords: make([]string, len(words)),
		Signature:   hexutil.Encode(sig),
		Coordinator: vrf.Address(s.Key).Hex(),
		Ts:          time.Now().UTC(),
	}
	for i, w := range words {
		out.RandomWords[i] = w.String()
	}
	b, _ := json.Marshal(out)
	if err := s.Writer.WriteMessages(ctx, kafka.Message{Key: []byte(req.RequestID), Value: b}); err != nil {
		return errors.Wrap(err, "publish fulfillment")
	}
	s.Log.Debug("randomness fulfilled", zap.String("requestId", req.RequestID))
	if s.OnFulfilled != nil {
		s.OnFulfilled()
	}
	return nil
}

func (s *Simulator) seed() ([]byte, error) {
	if s.Seed != nil {
		return s.Seed()
	}
	b := make([]byte, 32)
	_, err := rand.Read(b)
	return b, err
}

func (s *Simulator) reject(reason string) {
	if s.OnRejected != nil {
		s.OnRejected(reason)
	}
}
