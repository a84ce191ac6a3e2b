package ws

import (
	"github.com/radieske/live-odds-sync/pkg/contracts/events"
)

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
type ClientMsg struct {
	Type    string `json:"type"`
	MatchID int    `json:"matchId"` // requerido em subscribe/unsubscribe
}

// Tipos de mensagem enviadas ao cliente
const (
	TypeBatch      = "batch"
	TypeConnection = "connection"
	TypePong       = "pong"
)

// ServerMsg é o envelope enviado ao cliente
type ServerMsg struct {
	Type    string                `json:"type"`
	BatchID string                `json:"batchId,omitempty"`
	Changes []events.ChangeResult `json:"changes,omitempty"`
	Odds    []events.Odds         `json:"odds,omitempty"`
	State   *StatePayload         `json:"state,omitempty"`
}

// StatePayload é o estado da conexão no formato da UI
type StatePayload struct {
	Status        events.ConnectionStatus `json:"status"`
	Attempt       int                     `json:"attempt"`
	NextRetryInMs int64                   `json:"nextRetryInMs"`
	Text          string                  `json:"text"`
}

func statePayload(st events.ConnectionState) *StatePayload {
	return &StatePayload{
		Status:        st.Status,
		Attempt:       st.Attempt,
		NextRetryInMs: st.NextRetryIn.Milliseconds(),
		Text:          st.DisplayText(),
	}
}
