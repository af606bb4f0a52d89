package events

import "time"

// Evento publicado no tópico "randomness_requested" quando um bet é admitido.
// Valores uint256 trafegam como string decimal.
type RandomnessRequested struct {
	RequestID        string    `json:"request_id"`
	KeyHash          string    `json:"key_hash"`
	SubscriptionID   uint64    `json:"subscription_id"`
	Confirmations    uint16    `json:"request_confirmations"`
	CallbackGasLimit uint32    `json:"callback_gas_limit"`
	NumWords         uint32    `json:"num_words"`
	Consumer         string    `json:"consumer"` // endereço do contrato
	Nonce            uint64    `json:"nonce"`
	Ts               time.Time `json:"ts"`
}

// Evento publicado pelo coordinator no tópico "randomness_fulfilled".
// Signature é secp256k1 (65 bytes, hex) sobre keccak256(requestId ‖ words...).
type RandomnessFulfilled struct {
	RequestID   string    `json:"request_id"`
	RandomWords []string  `json:"random_words"`
	Signature   string    `json:"signature"`
	Coordinator string    `json:"coordinator"` // informativo, o worker recupera pela assinatura
	Ts          time.Time `json:"ts"`
}
