package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/live-odds-sync/pkg/contracts/events"
)

// sendBuffer é o número de mensagens pendentes antes de derrubar um cliente lento
const sendBuffer = 64

// Hub gerencia as conexões WebSocket da UI.
// Sem assinaturas o cliente recebe todos os lotes; com subscribe recebe só
// as partidas escolhidas. Estados de conexão vão para todos.
type Hub struct {
	upgrader websocket.Upgrader
	log      *zap.Logger

	// Current, se definido, é enviado ao cliente logo após o upgrade
	Current func() events.ConnectionState

	mu      sync.RWMutex
	clients map[string]*client
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	mu      sync.Mutex
	matches map[int]struct{}
	closed  bool
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS)
func NewHub(allowOrigin func(r *http.Request) bool, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		log:      log,
		clients:  make(map[string]*client),
	}
}

// Len devolve o número de clientes conectados
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{
		id:      uuid.NewString(),
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		matches: make(map[int]struct{}),
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writeLoop()
	}()

	if h.Current != nil {
		c.enqueue(mustJSON(ServerMsg{Type: TypeConnection, State: statePayload(h.Current())}))
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.log.Debug("ws client connected", zap.String("client_id", c.id))

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			c.mu.Lock()
			c.matches[msg.MatchID] = struct{}{}
			c.mu.Unlock()
		case "unsubscribe":
			c.mu.Lock()
			delete(c.matches, msg.MatchID)
			c.mu.Unlock()
		case "ping":
			c.enqueue(mustJSON(ServerMsg{Type: TypePong}))
		}
	}

	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	c.close()
	<-done
	_ = conn.Close()
	h.log.Debug("ws client disconnected", zap.String("client_id", c.id))
}

// BroadcastBatch envia o lote filtrado pelas assinaturas de cada cliente
func (h *Hub) BroadcastBatch(b events.OddsBatch) {
	var all []byte
	for _, c := range h.snapshot() {
		changes, odds, filtered := c.filter(b)
		if len(changes) == 0 {
			continue
		}
		if !filtered {
			if all == nil {
				all = mustJSON(ServerMsg{Type: TypeBatch, BatchID: b.BatchID, Changes: b.Changes, Odds: b.Odds})
			}
			h.deliver(c, all)
			continue
		}
		h.deliver(c, mustJSON(ServerMsg{Type: TypeBatch, BatchID: b.BatchID, Changes: changes, Odds: odds}))
	}
}

// BroadcastState envia a transição de conexão para todos os clientes
func (h *Hub) BroadcastState(st events.ConnectionState) {
	msg := mustJSON(ServerMsg{Type: TypeConnection, State: statePayload(st)})
	for _, c := range h.snapshot() {
		h.deliver(c, msg)
	}
}

// Run repassa lotes e estados até ctx encerrar ou os canais fecharem
func (h *Hub) Run(ctx context.Context, batches <-chan events.OddsBatch, states <-chan events.ConnectionState) {
	for batches != nil || states != nil {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-batches:
			if !ok {
				batches = nil
				continue
			}
			h.BroadcastBatch(b)
		case st, ok := <-states:
			if !ok {
				states = nil
				continue
			}
			h.BroadcastState(st)
		}
	}
}

func (h *Hub) snapshot() []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

// deliver derruba o cliente cujo buffer encheu
func (h *Hub) deliver(c *client, msg []byte) {
	if c.enqueue(msg) {
		return
	}
	h.log.Warn("ws client too slow, dropping", zap.String("client_id", c.id))
	_ = c.conn.Close()
}

func (c *client) filter(b events.OddsBatch) ([]events.ChangeResult, []events.Odds, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.matches) == 0 {
		return b.Changes, b.Odds, false
	}
	var changes []events.ChangeResult
	for _, ch := range b.Changes {
		if _, ok := c.matches[ch.MatchID]; ok {
			changes = append(changes, ch)
		}
	}
	var odds []events.Odds
	for _, o := range b.Odds {
		if _, ok := c.matches[o.MatchID]; ok {
			odds = append(odds, o)
		}
	}
	return changes, odds, true
}

func (c *client) enqueue(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// writeLoop é o único escritor da conexão
func (c *client) writeLoop() {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			_ = c.conn.Close()
			for range c.send {
			}
			return
		}
	}
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
