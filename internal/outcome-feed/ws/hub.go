package ws

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
)

// conn serializa as escritas: o gorilla não aceita escritores concorrentes
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(2 * time.Second))
	return c.ws.WriteMessage(websocket.TextMessage, b)
}

// Hub gerencia conexões WebSocket e assinaturas por tópico
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	// tópico -> conexões
	subs map[string]map[*conn]struct{}

	OnConnect    func()
	OnDisconnect func()
	OnSent       func()
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS)
func NewHub(allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*conn]struct{}),
	}
}

// normalize aceita endereço em qualquer caixa como tópico do jogador
func normalize(topic string) string {
	if common.IsHexAddress(topic) {
		return common.HexToAddress(topic).Hex()
	}
	return strings.ToLower(topic)
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &conn{ws: ws}
	defer ws.Close()
	if h.OnConnect != nil {
		h.OnConnect()
	}

	for {
		var msg ClientMsg
		if err := ws.ReadJSON(&msg); err != nil {
			break
		}
		topic := normalize(msg.Topic)
		switch msg.Type {
		case "subscribe":
			if topic == "" {
				continue
			}
			h.mu.Lock()
			if _, ok := h.subs[topic]; !ok {
				h.subs[topic] = make(map[*conn]struct{})
			}
			h.subs[topic][c] = struct{}{}
			h.mu.Unlock()
			b, _ := json.Marshal(map[string]string{"type": "subscribed", "topic": topic})
			_ = c.write(b)
		case "unsubscribe":
			h.mu.Lock()
			if m, ok := h.subs[topic]; ok {
				delete(m, c)
				if len(m) == 0 {
					delete(h.subs, topic)
				}
			}
			h.mu.Unlock()
		case "ping":
			_ = c.write([]byte(`{"type":"pong"}`))
		}
	}

	// Remove a conexão de todas as assinaturas ao desconectar
	h.mu.Lock()
	for t, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, t)
		}
	}
	h.mu.Unlock()
	if h.OnDisconnect != nil {
		h.OnDisconnect()
	}
}

// Broadcast envia a atualização para os inscritos no tópico
func (h *Hub) Broadcast(u Update) {
	u.Topic = normalize(u.Topic)
	h.mu.RLock()
	conns := make([]*conn, 0, len(h.subs[u.Topic]))
	for c := range h.subs[u.Topic] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	if len(conns) == 0 {
		return
	}

	b, _ := json.Marshal(u)
	for _, c := range conns {
		if err := c.write(b); err == nil && h.OnSent != nil {
			h.OnSent()
		}
	}
}
