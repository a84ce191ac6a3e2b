// Package stream consome o feed WebSocket do fornecedor e publica as odds
// recebidas e as transições de conexão. A política de reconexão vem do
// reconnect.Supervisor; este pacote fornece apenas o transporte.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/live-odds-sync/internal/odds-sync/reconnect"
	"github.com/radieske/live-odds-sync/internal/shared/notify"
	"github.com/radieske/live-odds-sync/pkg/contracts/events"
)

var errStale = errors.New("stream: connection superseded")

// WSSource mantém no máximo uma conexão com o fornecedor
type WSSource struct {
	URL    string
	Dialer *websocket.Dialer
	log    *zap.Logger

	sup    *reconnect.Supervisor
	states *notify.Hub[events.ConnectionState]
	odds   *notify.Hub[events.Odds]

	OnMessage func() // métricas: mensagem recebida

	// ctl serializa o par (epoch, supervisor) entre Connect, Disconnect e o
	// início da reconexão; nunca é usado pelos callbacks do supervisor
	ctl sync.Mutex

	// mu nunca é mantido durante chamadas ao supervisor
	mu    sync.Mutex
	state events.ConnectionState
	conn  *websocket.Conn
	epoch uint64 // muda a cada Connect/Disconnect

	// supEpoch marca o epoch em que o loop atual de reconexão foi iniciado
	supEpoch uint64
}

// NewWSSource cria a fonte desconectada com a política de reconexão informada
func NewWSSource(url string, policy reconnect.Config, log *zap.Logger) *WSSource {
	if log == nil {
		log = zap.NewNop()
	}
	s := &WSSource{
		URL:    url,
		Dialer: websocket.DefaultDialer,
		log:    log,
		states: notify.New[events.ConnectionState](),
		odds:   notify.New[events.Odds](),
		state:  events.Disconnected(),
	}
	// supEpoch começa diferente de epoch: nenhum loop ativo
	s.supEpoch = ^uint64(0)
	s.sup = reconnect.New(policy, s.attempt, s.onSupervisorState, log.Named("reconnect"))
	return s
}

// Supervisor expõe o supervisor (para métricas e testes)
func (s *WSSource) Supervisor() *reconnect.Supervisor { return s.sup }

// State devolve o estado atual da conexão
func (s *WSSource) State() events.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SubscribeStates assina as transições de conexão, em ordem
func (s *WSSource) SubscribeStates() (<-chan events.ConnectionState, func()) {
	return s.states.Subscribe()
}

// SubscribeOdds assina as odds recebidas do fornecedor, em ordem de chegada
func (s *WSSource) SubscribeOdds() (<-chan events.Odds, func()) {
	return s.odds.Subscribe()
}

// Connect conecta apenas a partir de disconnected; nos demais estados é no-op.
// Se a primeira conexão falhar, o loop de backoff assume.
func (s *WSSource) Connect(ctx context.Context) error {
	if !s.State().IsDisconnected() {
		return nil
	}
	s.ctl.Lock()
	// contador zerado após um give-up anterior
	s.sup.Reset()

	s.mu.Lock()
	if !s.state.IsDisconnected() {
		s.mu.Unlock()
		s.ctl.Unlock()
		return nil
	}
	s.epoch++
	epoch := s.epoch
	s.setStateLocked(events.Connecting())
	s.mu.Unlock()
	s.ctl.Unlock()

	if t := s.sup.Config().AttemptTimeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	err := s.dial(ctx, epoch, true)
	if err == nil || errors.Is(err, errStale) {
		return nil
	}

	s.log.Warn("initial connect failed", zap.String("url", s.URL), zap.Error(err))
	s.startReconnecting(epoch)
	return err
}

// Disconnect encerra a conexão por pedido do usuário: cancela backoff e
// contagem regressiva, zera o contador e termina em disconnected.
func (s *WSSource) Disconnect() {
	s.ctl.Lock()
	s.mu.Lock()
	s.epoch++
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	// depois do epoch++ nenhuma perda de conexão reinicia o loop
	s.sup.Reset()
	s.ctl.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect"))
		_ = conn.Close()
	}

	s.mu.Lock()
	s.setStateLocked(events.Disconnected())
	s.mu.Unlock()
	s.log.Info("disconnected by user")
}

// SimulateConnectionLoss derruba o transporte sem intenção do usuário,
// o que dispara o loop de reconexão.
func (s *WSSource) SimulateConnectionLoss() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}
	s.log.Info("simulating connection loss")
	_ = conn.Close()
}

// Close desconecta e encerra os streams de assinantes
func (s *WSSource) Close() {
	s.Disconnect()
	s.states.Close()
	s.odds.Close()
}

// attempt é a AttemptFunc do supervisor. Só disca para o epoch em que o loop
// foi iniciado; um loop invalidado por Disconnect nunca instala conexão.
func (s *WSSource) attempt(ctx context.Context) bool {
	s.mu.Lock()
	epoch := s.supEpoch
	stale := epoch != s.epoch
	s.mu.Unlock()
	if stale {
		return false
	}

	if err := s.dial(ctx, epoch, false); err != nil {
		s.log.Debug("reconnect dial failed", zap.Error(err))
		return false
	}
	return true
}

// onSupervisorState ignora transições de loops já invalidados por Disconnect
func (s *WSSource) onSupervisorState(st events.ConnectionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.supEpoch != s.epoch {
		return
	}
	s.setStateLocked(st)
}

func (s *WSSource) startReconnecting(epoch uint64) {
	s.ctl.Lock()
	defer s.ctl.Unlock()

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	s.supEpoch = epoch
	s.mu.Unlock()

	s.sup.StartReconnecting()
}

// dial instala a conexão se o epoch ainda for o mesmo. announce publica
// connected junto com a instalação (no caminho de reconexão quem publica é o supervisor).
func (s *WSSource) dial(ctx context.Context, epoch uint64, announce bool) error {
	conn, _, err := s.Dialer.DialContext(ctx, s.URL, nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		_ = conn.Close()
		return errStale
	}
	s.conn = conn
	if announce {
		s.setStateLocked(events.Connected())
	}
	s.mu.Unlock()

	s.log.Info("connected to supplier WS", zap.String("url", s.URL))
	go s.readLoop(conn, epoch)
	return nil
}

// readLoop lê até a conexão cair; perda sem intenção do usuário inicia o backoff
func (s *WSSource) readLoop(conn *websocket.Conn, epoch uint64) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			lost := s.conn == conn && s.epoch == epoch
			if lost {
				s.conn = nil
			}
			s.mu.Unlock()
			_ = conn.Close()

			if !lost {
				return
			}
			s.log.Warn("connection lost", zap.Error(err))
			s.startReconnecting(epoch)
			return
		}

		if s.OnMessage != nil {
			s.OnMessage()
		}
		s.publish(message)
	}
}

// publish aceita um objeto de odds ou uma lista deles
func (s *WSSource) publish(message []byte) {
	message = bytes.TrimSpace(message)
	if len(message) > 0 && message[0] == '[' {
		var list []events.Odds
		if err := json.Unmarshal(message, &list); err != nil {
			s.log.Warn("invalid message", zap.Error(err))
			return
		}
		for _, o := range list {
			s.odds.Publish(o)
		}
		return
	}

	var o events.Odds
	if err := json.Unmarshal(message, &o); err != nil {
		s.log.Warn("invalid message", zap.Error(err))
		return
	}
	s.odds.Publish(o)
}

func (s *WSSource) setStateLocked(st events.ConnectionState) {
	if s.state == st {
		return
	}
	s.state = st
	s.states.Publish(st)
}
