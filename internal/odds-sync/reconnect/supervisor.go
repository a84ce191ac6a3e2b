// Package reconnect supervisiona a reconexão do stream com backoff exponencial.
//
// O supervisor não conhece o transporte: ele chama a AttemptFunc injetada e
// publica as transições pelo StateFunc. No máximo um loop de backoff fica ativo;
// iniciar um novo cancela (e aguarda) o anterior junto com sua contagem regressiva.
package reconnect

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/live-odds-sync/pkg/contracts/events"
)

// AttemptFunc tenta restabelecer o transporte; true = conectado
type AttemptFunc func(ctx context.Context) bool

// StateFunc recebe as transições de estado em ordem
type StateFunc func(events.ConnectionState)

// Supervisor controla o loop de reconexão
type Supervisor struct {
	cfg       Config
	attemptFn AttemptFunc
	onState   StateFunc
	log       *zap.Logger

	OnAttempt func(success bool) // métricas (opcional)

	// ctrl serializa Start/Cancel; nunca é usado pelo loop
	ctrl sync.Mutex

	mu      sync.Mutex
	attempt int
	cancel  context.CancelFunc
	done    chan struct{}
}

// New cria o supervisor. attempt e onState são obrigatórios.
func New(cfg Config, attempt AttemptFunc, onState StateFunc, log *zap.Logger) *Supervisor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Supervisor{
		cfg:       cfg,
		attemptFn: attempt,
		onState:   onState,
		log:       log,
	}
}

// Config devolve a política em uso
func (s *Supervisor) Config() Config { return s.cfg }

// Attempt devolve o contador de tentativas atual
func (s *Supervisor) Attempt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt
}

// Running indica se há um loop de backoff ativo
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// StartReconnecting cancela qualquer loop em andamento e inicia um novo a
// partir do contador atual. Não deve ser chamado de dentro dos callbacks.
func (s *Supervisor) StartReconnecting() {
	s.ctrl.Lock()
	defer s.ctrl.Unlock()

	s.stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	attempt := s.attempt
	s.mu.Unlock()

	s.log.Info("reconnection started", zap.Int("attempt", attempt))
	go s.loop(ctx, done)
}

// Cancel interrompe o loop e a contagem regressiva e só retorna depois que
// ambos terminaram; nenhuma transição é publicada depois disso.
// O estado terminal fica a cargo de quem cancela.
func (s *Supervisor) Cancel() {
	s.ctrl.Lock()
	defer s.ctrl.Unlock()
	s.stop()
}

// Reset cancela o loop e zera o contador de tentativas
func (s *Supervisor) Reset() {
	s.ctrl.Lock()
	defer s.ctrl.Unlock()
	s.stop()
	s.mu.Lock()
	s.attempt = 0
	s.mu.Unlock()
}

// stop exige ctrl travado
func (s *Supervisor) stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Supervisor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for ctx.Err() == nil {
		attempt := s.Attempt()
		if s.cfg.MaxAttempts > 0 && attempt >= s.cfg.MaxAttempts {
			s.log.Warn("reconnection attempts exhausted", zap.Int("attempts", attempt))
			s.onState(events.Disconnected())
			return
		}

		delay := s.cfg.Delay(attempt)
		s.onState(events.Reconnecting(attempt, delay))

		if !s.wait(ctx, attempt, delay) {
			return
		}

		s.onState(events.Connecting())
		ok := s.try(ctx, attempt)
		if ctx.Err() != nil {
			return
		}
		if ok {
			s.mu.Lock()
			s.attempt = 0
			s.mu.Unlock()
			s.log.Info("reconnected", zap.Int("attempt", attempt))
			s.onState(events.Connected())
			return
		}

		s.mu.Lock()
		s.attempt++
		s.mu.Unlock()
	}
}

// wait dorme pelo atraso enquanto a contagem regressiva roda numa goroutine filha.
// A contagem é encerrada e aguardada antes de retornar, então nenhum
// reconnecting atrasado chega depois do connecting.
func (s *Supervisor) wait(ctx context.Context, attempt int, delay time.Duration) bool {
	cdCtx, cdCancel := context.WithCancel(ctx)
	cdDone := make(chan struct{})
	go s.countdown(cdCtx, cdDone, attempt, delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	var fired bool
	select {
	case <-ctx.Done():
	case <-timer.C:
		fired = true
	}

	cdCancel()
	<-cdDone
	return fired && ctx.Err() == nil
}

func (s *Supervisor) countdown(ctx context.Context, done chan struct{}, attempt int, delay time.Duration) {
	defer close(done)

	tick := s.cfg.CountdownTick
	if tick <= 0 {
		return
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	remaining := delay
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		remaining -= tick
		if remaining <= 0 || ctx.Err() != nil {
			return
		}
		s.onState(events.Reconnecting(attempt, remaining))
	}
}

func (s *Supervisor) try(ctx context.Context, attempt int) bool {
	actx := ctx
	if s.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, s.cfg.AttemptTimeout)
		defer cancel()
	}

	start := time.Now()
	ok := s.attemptFn(actx)
	if s.OnAttempt != nil {
		s.OnAttempt(ok)
	}
	if !ok {
		s.log.Warn("reconnect attempt failed",
			zap.Int("attempt", attempt),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	return ok
}
