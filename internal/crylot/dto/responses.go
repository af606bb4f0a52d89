package dto

import "time"

type BoundsResponse struct {
	MinBetWei string `json:"min_bet_wei"`
	MaxBetWei string `json:"max_bet_wei"`
	MinBetEth string `json:"min_bet_eth"`
	MaxBetEth string `json:"max_bet_eth"`
}

type AmountResponse struct {
	Wei string `json:"wei"`
	Eth string `json:"eth"`
}

type PlaceBetResponse struct {
	RequestID   string `json:"request_id"`
	ReservedRef string `json:"reserved_ref,omitempty"`
	Status      string `json:"status"` // "PENDING_RANDOMNESS"
}

// BetResponse descreve uma aposta pendente ou já resolvida
type BetResponse struct {
	RequestID    string     `json:"request_id"`
	Player       string     `json:"player"`
	Guess        uint64     `json:"guess"`
	StakeWei     string     `json:"stake_wei"`
	Status       string     `json:"status"` // "PENDING_RANDOMNESS" | "RESOLVED"
	Rolled       uint64     `json:"rolled,omitempty"`
	Won          *bool      `json:"won,omitempty"`
	PayoutWei    string     `json:"payout_wei,omitempty"`
	PayoutStatus string     `json:"payout_status,omitempty"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}

type AdminResponse struct {
	Address string `json:"address"`
	Admin   bool   `json:"admin"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}
