package ws

// ClientMsg representa uma mensagem recebida do cliente WebSocket
type ClientMsg struct {
	Type  string `json:"type"`  // subscribe | unsubscribe | ping
	Topic string `json:"topic"` // "outcomes", "bounds" ou o endereço de um jogador
}

// Update é o envelope enviado aos clientes
type Update struct {
	Topic   string `json:"topic"`
	Kind    string `json:"kind"` // "bet_resolved" | "bounds_changed"
	Payload any    `json:"payload"`
}

const (
	TopicOutcomes = "outcomes"
	TopicBounds   = "bounds"
)
