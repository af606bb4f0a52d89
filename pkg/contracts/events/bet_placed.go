package events

type BetPlaced struct {
	RequestID   string `json:"request_id"`
	Player      string `json:"player"`
	Guess       uint64 `json:"guess"`
	StakeWei    string `json:"stake_wei"`
	ReservedRef string `json:"reserved_ref"` // external_ref usado na reserva da carteira
	TsUnixMs    int64  `json:"ts_unix_ms"`
}
