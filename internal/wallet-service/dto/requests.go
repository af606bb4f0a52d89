package dto

// Valores em wei trafegam como string decimal (uint256 não cabe em int64)

type DepositRequest struct {
	Address     string `json:"address"`
	AmountWei   string `json:"amount_wei"`
	ExternalRef string `json:"external_ref,omitempty"` // repetir a mesma ref não credita de novo
}

type ReserveRequest struct {
	Address     string `json:"address"`
	AmountWei   string `json:"amount_wei"`
	ExternalRef string `json:"external_ref"` // ex: bet:<uuid>
}

type CommitRequest struct {
	Address     string `json:"address"`
	ExternalRef string `json:"external_ref"`
}

type RefundRequest struct {
	Address     string `json:"address"`
	ExternalRef string `json:"external_ref"`
}
