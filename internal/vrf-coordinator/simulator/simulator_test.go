package simulator

import (
	"context"
	"encoding/json"
	"math/big"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/crylot/internal/crylot/vrf"
	"github.com/radieske/crylot/pkg/contracts/events"
)

type sink struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (s *sink) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msgs...)
	return nil
}

func (s *sink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

// queue entrega as mensagens e depois bloqueia até o contexto acabar
type queue struct{ msgs chan kafka.Message }

func (q queue) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-q.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

var keyHash = common.HexToHash("0x9e1344a1247c8a1785d0a4681a27152bffdb43666ae5bf7d14d24a5efd44bf71")

func newSim(t *testing.T) (*Simulator, *sink, map[string]int) {
	t.Helper()
	key, err := vrf.LoadKey("0x8f2a55949038a9610f50fb23b5883af3b4ecb3c3bb792cbcefbd1542c692be63")
	require.NoError(t, err)
	out := &sink{}
	rejected := map[string]int{}
	return &Simulator{
		Log:        zap.NewNop(),
		Key:        key,
		KeyHash:    keyHash,
		Subs:       map[uint64]bool{3330: true},
		Writer:     out,
		Seed:       func() ([]byte, error) { return []byte("fixed"), nil },
		OnRejected: func(r string) { rejected[r]++ },
	}, out, rejected
}

func request() events.RandomnessRequested {
	return events.RandomnessRequested{
		RequestID:      "77",
		KeyHash:        keyHash.Hex(),
		SubscriptionID: 3330,
		Confirmations:  3,
		NumWords:       1,
	}
}

func TestFulfillPublishesSignedWords(t *testing.T) {
	sim, out, _ := newSim(t)
	require.NoError(t, sim.Fulfill(context.Background(), request()))
	require.Len(t, out.msgs, 1)

	var ev events.RandomnessFulfilled
	require.NoError(t, json.Unmarshal(out.msgs[0].Value, &ev))
	require.Len(t, ev.RandomWords, 1)

	want := vrf.DeriveWords([]byte("fixed"), big.NewInt(77), 1)[0]
	assert.Equal(t, want.String(), ev.RandomWords[0])

	sig, err := hexutil.Decode(ev.Signature)
	require.NoError(t, err)
	signer, err := vrf.RecoverSigner(big.NewInt(77), []*big.Int{want}, sig)
	require.NoError(t, err)
	assert.Equal(t, vrf.Address(sim.Key), signer)
	assert.Equal(t, signer.Hex(), ev.Coordinator)
}

func TestFulfillRejects(t *testing.T) {
	sim, out, rejected := newSim(t)
	ctx := context.Background()

	r := request()
	r.SubscriptionID = 1
	assert.ErrorIs(t, sim.Fulfill(ctx, r), ErrSubscriptionUnknown)

	r = request()
	r.KeyHash = common.HexToHash("0x01").Hex()
	assert.ErrorIs(t, sim.Fulfill(ctx, r), ErrUnknownKeyHash)

	r = request()
	r.NumWords = MaxRandomWords + 1
	assert.ErrorIs(t, sim.Fulfill(ctx, r), ErrTooManyWords)

	assert.Empty(t, out.msgs)
	assert.Equal(t, map[string]int{"subscription": 1, "key_hash": 1, "num_words": 1}, rejected)
}

func TestRunWaitsConfirmationsInParallel(t *testing.T) {
	s, out, _ := newSim(t)
	s.BlockTime = 20 * time.Millisecond // 3 confirmações = 60ms por pedido

	q := queue{msgs: make(chan kafka.Message, 10)}
	for i := 0; i < 10; i++ {
		req := request()
		req.RequestID = strconv.Itoa(100 + i)
		b, err := json.Marshal(req)
		require.NoError(t, err)
		q.msgs <- kafka.Message{Value: b}
	}
	s.Reader = q

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	start := time.Now()
	go func() { done <- s.Run(ctx) }()

	// em série seriam 600ms
	require.Eventually(t, func() bool { return out.count() == 10 }, 400*time.Millisecond, 5*time.Millisecond)
	assert.Less(t, time.Since(start), 400*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRunBoundsInFlightRequests(t *testing.T) {
	s, out, _ := newSim(t)
	s.BlockTime = 20 * time.Millisecond
	s.Concurrency = 1

	q := queue{msgs: make(chan kafka.Message, 3)}
	for i := 0; i < 3; i++ {
		req := request()
		req.RequestID = strconv.Itoa(200 + i)
		b, err := json.Marshal(req)
		require.NoError(t, err)
		q.msgs <- kafka.Message{Value: b}
	}
	s.Reader = q

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	start := time.Now()
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return out.count() == 3 }, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 180*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
