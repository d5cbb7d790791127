package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 5 * time.Second

// client serializa escritas; gorilla/websocket não aceita writers concorrentes
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(v []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, v)
}

func (c *client) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.write(b)
}

// Hub gerencia conexões WebSocket e assinaturas por esporte
// subs: mapeia sport key para o conjunto de clientes inscritos
type Hub struct {
	upgrader websocket.Upgrader
	log      *zap.Logger
	mu       sync.RWMutex
	subs     map[string]map[*client]struct{}
}

func NewHub(allowOrigin func(r *http.Request) bool, log *zap.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		log:      log,
		subs:     make(map[string]map[*client]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão
// Cada cliente pode se inscrever em vários esportes
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	c := &client{conn: conn}

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			if msg.Sport == "" {
				_ = c.writeJSON(map[string]string{"type": "error", "error": "sport required"})
				continue
			}
			h.subscribe(msg.Sport, c)
			_ = c.writeJSON(map[string]string{"type": "subscribed", "sport": msg.Sport})
		case "unsubscribe":
			h.unsubscribe(msg.Sport, c)
			_ = c.writeJSON(map[string]string{"type": "unsubscribed", "sport": msg.Sport})
		case "ping":
			_ = c.writeJSON(map[string]string{"type": "pong"})
		default:
			_ = c.writeJSON(map[string]string{"type": "error", "error": "unknown message type"})
		}
	}

	// Remove o cliente de todas as assinaturas ao desconectar
	h.mu.Lock()
	for sport, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, sport)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) subscribe(sport string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sport]; !ok {
		h.subs[sport] = make(map[*client]struct{})
	}
	h.subs[sport][c] = struct{}{}
}

func (h *Hub) unsubscribe(sport string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.subs[sport]; ok {
		delete(m, c)
		if len(m) == 0 {
			delete(h.subs, sport)
		}
	}
}

// Subscribers conta conexões distintas inscritas
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := map[*client]struct{}{}
	for _, set := range h.subs {
		for c := range set {
			seen[c] = struct{}{}
		}
	}
	return len(seen)
}

// Broadcast envia a atualização aos inscritos no esporte e aos inscritos em "*"
func (h *Hub) Broadcast(update OpportunityUpdate) {
	h.mu.RLock()
	targets := make(map[*client]struct{})
	for _, key := range []string{update.SportKey, AllSports} {
		for c := range h.subs[key] {
			targets[c] = struct{}{}
		}
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	b, err := json.Marshal(update)
	if err != nil {
		return
	}
	for c := range targets {
		if err := c.write(b); err != nil {
			h.log.Debug("ws write failed", zap.Error(err))
		}
	}
}
