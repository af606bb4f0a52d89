package dto

type WalletResponse struct {
	Address    string `json:"address"`
	WalletID   string `json:"walletId"`
	BalanceWei string `json:"balance_wei"`
}

type ReservationResponse struct {
	ReservationID string `json:"reservation_id"`
	Status        string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
