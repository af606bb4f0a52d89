package events

import "time"

// Evento emitido pelo fulfillment-worker após resolver uma aposta.
// Também vai para o canal redis "crylot_outcomes" que alimenta o feed.
type BetResolved struct {
	RequestID    string    `json:"request_id"`
	Player       string    `json:"player"`
	Guess        uint64    `json:"guess"`
	Rolled       uint64    `json:"rolled"`
	Won          bool      `json:"won"`
	StakeWei     string    `json:"stake_wei"`
	PayoutWei    string    `json:"payout_wei"`
	PayoutStatus string    `json:"payout_status"` // "NONE" | "PENDING" | "PAID" | "FAILED"
	Ts           time.Time `json:"ts"`
}

// PayoutFailed vai para o tópico "payout_failed" (DLQ) para retry manual
type PayoutFailed struct {
	RequestID string    `json:"request_id"`
	Player    string    `json:"player"`
	PayoutWei string    `json:"payout_wei"`
	Reason    string    `json:"reason"`
	Ts        time.Time `json:"ts"`
}
