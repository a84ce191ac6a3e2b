package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const writeWait = 2 * time.Second

// Metrics agrupa os instrumentos do simulador
type Metrics struct {
	Connections  prometheus.Gauge
	MessagesSent prometheus.Counter
	Refused      prometheus.Counter
}

// NewMetrics cria e registra as métricas em reg (nil = não registra)
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "supplier_ws_connections",
			Help: "Clientes WebSocket conectados",
		}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "supplier_ws_messages_sent_total",
			Help: "Total de mensagens WS enviadas",
		}),
		Refused: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "supplier_ws_refused_total",
			Help: "Upgrades WS recusados pelo modo de falha",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Connections, m.MessagesSent, m.Refused)
	}
	return m
}

type clientConn struct {
	id   string
	conn *websocket.Conn
}

// hub mantém os clientes conectados e faz o broadcast das odds
type hub struct {
	mu      sync.Mutex
	clients map[string]*clientConn
	log     *zap.Logger
	m       *Metrics
}

func newHub(log *zap.Logger, m *Metrics) *hub {
	return &hub{
		clients: make(map[string]*clientConn),
		log:     log,
		m:       m,
	}
}

func (h *hub) add(conn *websocket.Conn) *clientConn {
	c := &clientConn{id: uuid.NewString(), conn: conn}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.m.Connections.Inc()
	h.log.Info("ws client connected", zap.String("client_id", c.id))
	return c
}

func (h *hub) remove(id string) {
	h.mu.Lock()
	_, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()
	if ok {
		h.m.Connections.Dec()
		h.log.Info("ws client disconnected", zap.String("client_id", id))
	}
}

func (h *hub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// broadcast serializa uma vez e escreve em todos; o lock garante um único escritor por conexão
func (h *hub) broadcast(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		h.log.Error("marshal broadcast", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Warn("ws write failed", zap.String("client_id", id), zap.Error(err))
			_ = c.conn.Close()
			continue
		}
		h.m.MessagesSent.Inc()
	}
}

// dropAll fecha todas as conexões sem close frame, simulando queda de rede.
// A remoção acontece na goroutine de leitura de cada cliente.
func (h *hub) dropAll() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		_ = c.conn.Close()
	}
	return len(h.clients)
}
