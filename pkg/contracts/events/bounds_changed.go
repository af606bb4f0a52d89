package events

import "time"

// Publicado no canal redis "crylot_bounds" a cada setMinBet/setMaxBet
type BoundsChanged struct {
	MinBetWei string    `json:"min_bet_wei"`
	MaxBetWei string    `json:"max_bet_wei"`
	By        string    `json:"by"`
	Ts        time.Time `json:"ts"`
}
