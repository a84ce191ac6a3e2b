package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/radieske/live-odds-sync/internal/odds-sync/service"
	"github.com/radieske/live-odds-sync/internal/odds-sync/store"
	"github.com/radieske/live-odds-sync/pkg/contracts/events"
)

// DefaultPageSize é o limite padrão de /v1/matches
const DefaultPageSize = 50

// Core é o que a API consome da fachada de sincronização
type Core interface {
	Count() int
	Row(i int) (store.Row, bool)
	Odds(matchID int) (events.Odds, bool)
	ViewState() service.ViewState
	ConnectionState() events.ConnectionState
	StartStreaming(ctx context.Context) error
	StopStreaming()
	Retry(ctx context.Context) error
}

// API expõe a visão ao vivo para a UI
type API struct {
	Core Core
	// WS trata /ws quando definido (ws.Hub.HandleWS)
	WS http.HandlerFunc
	// SimulateLoss derruba o stream sem intenção do usuário (demo)
	SimulateLoss func()
}

// StateResponse é o corpo de GET /v1/state
type StateResponse struct {
	View       service.ViewStatus     `json:"view"`
	Message    string                 `json:"message,omitempty"`
	Connection events.ConnectionState `json:"connection"`
	StatusText string                 `json:"statusText"`
	Count      int                    `json:"count"`
}

// PageResponse é o corpo de GET /v1/matches
type PageResponse struct {
	Offset int         `json:"offset"`
	Limit  int         `json:"limit"`
	Total  int         `json:"total"`
	Rows   []store.Row `json:"rows"`
}

// Router retorna o roteador HTTP com os endpoints REST
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/matches", a.listMatches)           // página de linhas
	r.Get("/v1/matches/{index}", a.getRow)        // linha por posição
	r.Get("/v1/odds/{matchId}", a.getOdds)        // odds por partida
	r.Get("/v1/state", a.getState)                // view + conexão
	r.Post("/v1/reload", a.reload)                // retry do carregamento
	r.Post("/v1/stream/connect", a.connect)       // conexão manual
	r.Post("/v1/stream/disconnect", a.disconnect) // desconexão manual
	if a.SimulateLoss != nil {
		r.Post("/v1/stream/simulate-loss", a.simulateLoss)
	}
	if a.WS != nil {
		r.Get("/ws", a.WS)
	}
	return r
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string, def int) (int, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (a *API) listMatches(w http.ResponseWriter, r *http.Request) {
	offset, ok := queryInt(r, "offset", 0)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	limit, ok := queryInt(r, "limit", DefaultPageSize)
	if !ok || limit == 0 {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	total := a.Core.Count()
	rows := make([]store.Row, 0, min(limit, max(total-offset, 0)))
	for i := offset; i < total && len(rows) < limit; i++ {
		row, ok := a.Core.Row(i)
		if !ok {
			break // store foi substituído durante a leitura
		}
		rows = append(rows, row)
	}
	writeJSON(w, http.StatusOK, PageResponse{Offset: offset, Limit: limit, Total: total, Rows: rows})
}

func (a *API) getRow(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid index")
		return
	}
	row, ok := a.Core.Row(i)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (a *API) getOdds(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "matchId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid match id")
		return
	}
	o, ok := a.Core.Odds(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (a *API) getState(w http.ResponseWriter, r *http.Request) {
	view := a.Core.ViewState()
	conn := a.Core.ConnectionState()
	writeJSON(w, http.StatusOK, StateResponse{
		View:       view.Status,
		Message:    view.Message,
		Connection: conn,
		StatusText: conn.DisplayText(),
		Count:      a.Core.Count(),
	})
}

func (a *API) reload(w http.ResponseWriter, r *http.Request) {
	if err := a.Core.Retry(r.Context()); err != nil {
		// a mensagem já foi traduzida para a UI no ViewState
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": a.Core.ViewState().Message})
		return
	}
	a.getState(w, r)
}

func (a *API) connect(w http.ResponseWriter, r *http.Request) {
	// falha inicial fica a cargo do backoff; o estado atual vai na resposta
	_ = a.Core.StartStreaming(r.Context())
	a.getState(w, r)
}

func (a *API) disconnect(w http.ResponseWriter, r *http.Request) {
	a.Core.StopStreaming()
	a.getState(w, r)
}

func (a *API) simulateLoss(w http.ResponseWriter, r *http.Request) {
	a.SimulateLoss()
	w.WriteHeader(http.StatusAccepted)
}
