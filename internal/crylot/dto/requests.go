package dto

// AmountRequest aceita o valor em wei ou em ether ("0.005"); wei tem prioridade
type AmountRequest struct {
	ValueWei string `json:"value_wei,omitempty"`
	ValueEth string `json:"value_eth,omitempty"`
}

type PlaceBetRequest struct {
	Guess uint64 `json:"guess"`
	AmountRequest
}

type AdminRequest struct {
	Address string `json:"address"`
}
