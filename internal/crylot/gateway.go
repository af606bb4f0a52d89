package crylot

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// RandomnessRequest é o pedido enviado ao coordinator
type RandomnessRequest struct {
	RequestID        *big.Int
	KeyHash          common.Hash
	SubscriptionID   uint64
	Confirmations    uint16
	CallbackGasLimit uint32
	NumWords         uint32
	Sender           common.Address // contrato consumidor
	Nonce            uint64
}

// Coordinator entrega pedidos ao oráculo externo. Um erro aqui aborta o bet.
type Coordinator interface {
	RequestRandomWords(ctx context.Context, req RandomnessRequest) error
}

// RandomnessGateway deriva requestIds e restringe o callback ao coordinator
type RandomnessGateway struct {
	params Params
	coord  Coordinator
}

func NewRandomnessGateway(p Params, c Coordinator) *RandomnessGateway {
	return &RandomnessGateway{params: p, coord: c}
}

// Prepare consome um nonce e monta o pedido. Nada é enviado ainda.
func (g *RandomnessGateway) Prepare(ctx context.Context, tx Tx) (RandomnessRequest, error) {
	nonce, err := tx.NextNonce(ctx)
	if err != nil {
		return RandomnessRequest{}, errors.Wrap(err, "next nonce")
	}
	return RandomnessRequest{
		RequestID:        RequestID(g.params.KeyHash, g.params.Address, g.params.SubscriptionID, nonce),
		KeyHash:          g.params.KeyHash,
		SubscriptionID:   g.params.SubscriptionID,
		Confirmations:    RequestConfirmations,
		CallbackGasLimit: CallbackGasLimit,
		NumWords:         NumWords,
		Sender:           g.params.Address,
		Nonce:            nonce,
	}, nil
}

// Send entrega o pedido ao coordinator
func (g *RandomnessGateway) Send(ctx context.Context, req RandomnessRequest) error {
	if err := g.coord.RequestRandomWords(ctx, req); err != nil {
		return errors.Wrapf(err, "request randomness %s", req.RequestID)
	}
	return nil
}

// CheckSender aceita apenas o coordinator configurado
func (g *RandomnessGateway) CheckSender(sender common.Address) error {
	if sender != g.params.Coordinator {
		return ErrNotCoordinator
	}
	return nil
}

// RequestID = keccak256(keyHash ‖ sender ‖ subId ‖ nonce), cada campo em 32 bytes.
// O nonce é monotônico, então ids nunca se repetem.
func RequestID(keyHash common.Hash, sender common.Address, subID, nonce uint64) *big.Int {
	h := crypto.Keccak256(
		keyHash.Bytes(),
		common.LeftPadBytes(sender.Bytes(), 32),
		math.U256Bytes(new(big.Int).SetUint64(subID)),
		math.U256Bytes(new(big.Int).SetUint64(nonce)),
	)
	return new(big.Int).SetBytes(h)
}
