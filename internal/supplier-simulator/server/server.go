// Package server expõe o fornecedor simulado: REST de bulk, WS de odds e controles de falha.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/live-odds-sync/internal/odds-sync/source"
	"github.com/radieske/live-odds-sync/internal/supplier-simulator/feed"
	"github.com/radieske/live-odds-sync/pkg/contracts/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server serve o catálogo e transmite as variações do feed
type Server struct {
	feed     *feed.Generator
	hub      *hub
	log      *zap.Logger
	refuse   atomic.Bool
	failREST atomic.Bool
}

// New cria o servidor; refuse liga o modo de recusa de upgrades WS
func New(g *feed.Generator, m *Metrics, log *zap.Logger, refuse bool) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = NewMetrics(nil)
	}
	s := &Server{
		feed: g,
		hub:  newHub(log, m),
		log:  log,
	}
	s.refuse.Store(refuse)
	return s
}

// SetRefuse liga/desliga a recusa de novas conexões WS
func (s *Server) SetRefuse(on bool) { s.refuse.Store(on) }

// SetFailREST faz os endpoints de bulk responderem 503
func (s *Server) SetFailREST(on bool) { s.failREST.Store(on) }

// Clients devolve o número de clientes WS conectados
func (s *Server) Clients() int { return s.hub.len() }

// DropAll derruba todas as conexões WS
func (s *Server) DropAll() int { return s.hub.dropAll() }

// Run aplica um Tick do feed a cada interval e envia cada odds como mensagem própria
func (s *Server) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Broadcast(s.feed.Tick())
		}
	}
}

// Broadcast envia as atualizações para todos os clientes
func (s *Server) Broadcast(updates []events.Odds) {
	if s.hub.len() == 0 {
		return
	}
	for _, u := range updates {
		s.hub.broadcast(u)
	}
}

// Router monta as rotas públicas do simulador
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get(source.PathMatches, s.handleMatches)
	r.Get(source.PathOdds, s.handleOdds)
	r.Get("/ws", s.handleWS)

	// controles de falha para demonstrar backoff/reconexão
	r.Post("/v1/supplier/fail/ws", s.handleToggle(s.SetRefuse))
	r.Post("/v1/supplier/fail/rest", s.handleToggle(s.SetFailREST))
	r.Post("/v1/supplier/drop", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]int{"dropped": s.DropAll()})
	})
	return r
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	if s.failREST.Load() {
		http.Error(w, "supplier unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.feed.Matches())
}

func (s *Server) handleOdds(w http.ResponseWriter, r *http.Request) {
	if s.failREST.Load() {
		http.Error(w, "supplier unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.feed.Odds())
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.refuse.Load() {
		s.hub.m.Refused.Inc()
		http.Error(w, "supplier refusing connections", http.StatusServiceUnavailable)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	c := s.hub.add(conn)

	// lê e descarta mensagens do cliente; o erro de leitura encerra o cliente
	go func() {
		defer func() {
			s.hub.remove(c.id)
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// ?on=true|false (padrão true)
func (s *Server) handleToggle(set func(bool)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		on := true
		if v := r.URL.Query().Get("on"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				http.Error(w, "invalid on", http.StatusBadRequest)
				return
			}
			on = b
		}
		set(on)
		writeJSON(w, http.StatusOK, map[string]bool{"on": on})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
