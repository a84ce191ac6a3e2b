package events

import (
	"fmt"
	"time"
)

// ConnectionStatus identifica o estado da conexão com o stream
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusReconnecting ConnectionStatus = "reconnecting"
)

// ConnectionState é o estado publicado pelo supervisor de conexão.
// Apenas reconnecting carrega Attempt/NextRetryIn; nos demais ficam zerados,
// então a comparação com == compara também o payload.
type ConnectionState struct {
	Status      ConnectionStatus `json:"status"`
	Attempt     int              `json:"attempt,omitempty"`
	NextRetryIn time.Duration    `json:"next_retry_in,omitempty"`
}

// Disconnected é o estado inicial e o terminal após desconexão ou desistência
func Disconnected() ConnectionState { return ConnectionState{Status: StatusDisconnected} }

// Connecting indica uma tentativa de conexão em andamento
func Connecting() ConnectionState { return ConnectionState{Status: StatusConnecting} }

// Connected indica o stream ativo
func Connected() ConnectionState { return ConnectionState{Status: StatusConnected} }

// Reconnecting cria o estado de reconexão; valores negativos são normalizados para zero
func Reconnecting(attempt int, nextRetryIn time.Duration) ConnectionState {
	if attempt < 0 {
		attempt = 0
	}
	if nextRetryIn < 0 {
		nextRetryIn = 0
	}
	return ConnectionState{Status: StatusReconnecting, Attempt: attempt, NextRetryIn: nextRetryIn}
}

func (s ConnectionState) IsConnected() bool    { return s.Status == StatusConnected }
func (s ConnectionState) IsReconnecting() bool { return s.Status == StatusReconnecting }

// IsDisconnected trata o valor zero como desconectado
func (s ConnectionState) IsDisconnected() bool {
	return s.Status == StatusDisconnected || s.Status == ""
}

// DisplayText devolve o texto exibido no indicador de status
func (s ConnectionState) DisplayText() string {
	switch s.Status {
	case StatusConnecting:
		return "Connecting..."
	case StatusConnected:
		return "Connected"
	case StatusReconnecting:
		return fmt.Sprintf("Reconnecting in %ds...", int(s.NextRetryIn/time.Second))
	default:
		return "Disconnected"
	}
}

func (s ConnectionState) String() string {
	if s.Status == StatusReconnecting {
		return fmt.Sprintf("reconnecting(attempt=%d, next_retry_in=%s)", s.Attempt, s.NextRetryIn)
	}
	if s.Status == "" {
		return string(StatusDisconnected)
	}
	return string(s.Status)
}
