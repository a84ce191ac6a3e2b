// Package service é a fachada do núcleo de sincronização: carregamento
// cache-first, stream ao vivo via batcher e streams assináveis para a UI.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/live-odds-sync/internal/odds-sync/batcher"
	"github.com/radieske/live-odds-sync/internal/odds-sync/source"
	"github.com/radieske/live-odds-sync/internal/odds-sync/statecache"
	"github.com/radieske/live-odds-sync/internal/odds-sync/store"
	"github.com/radieske/live-odds-sync/internal/shared/notify"
	"github.com/radieske/live-odds-sync/pkg/contracts/events"
)

// BulkSource fornece o carregamento inicial
type BulkSource interface {
	FetchMatches(ctx context.Context) ([]events.Match, error)
	FetchOdds(ctx context.Context) ([]events.Odds, error)
}

// StreamSource é o transporte ao vivo (ver stream.WSSource)
type StreamSource interface {
	Connect(ctx context.Context) error
	Disconnect()
	State() events.ConnectionState
	SubscribeStates() (<-chan events.ConnectionState, func())
	SubscribeOdds() (<-chan events.Odds, func())
}

// BatchSink recebe cada lote aplicado (Kafka, Redis Pub/Sub...)
type BatchSink interface {
	PublishBatch(ctx context.Context, b events.OddsBatch) error
}

// Config do serviço
type Config struct {
	BatchWindow  time.Duration
	FetchTimeout time.Duration
	SinkTimeout  time.Duration
}

// Service orquestra store, cache, fontes e batcher
type Service struct {
	log    *zap.Logger
	cfg    Config
	store  *store.Store
	cache  statecache.Cache
	bulk   BulkSource
	stream StreamSource
	sinks  []BatchSink

	batcher *batcher.Batcher

	states    *notify.Hub[events.ConnectionState]
	batches   *notify.Hub[[]events.ChangeResult]
	envelopes *notify.Hub[events.OddsBatch]

	mu      sync.Mutex
	view    ViewState
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	sinkWg  sync.WaitGroup
}

// Option configura o Service
type Option func(*Service)

// WithBatchSink adiciona um destino para os lotes aplicados
func WithBatchSink(sink BatchSink) Option {
	return func(s *Service) {
		if sink != nil {
			s.sinks = append(s.sinks, sink)
		}
	}
}

// WithLogger define o logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// New monta a fachada. O cache é injetado: não existe instância global.
func New(cfg Config, st *store.Store, cache statecache.Cache, bulk BulkSource, stream StreamSource, opts ...Option) *Service {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = 5 * time.Second
	}
	s := &Service{
		log:       zap.NewNop(),
		cfg:       cfg,
		store:     st,
		cache:     cache,
		bulk:      bulk,
		stream:    stream,
		states:    notify.New[events.ConnectionState](),
		batches:   notify.New[[]events.ChangeResult](),
		envelopes: notify.New[events.OddsBatch](),
		view:      ViewState{Status: ViewIdle},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.batcher = batcher.New(st, s.onBatch, cfg.BatchWindow, s.log.Named("batcher"))
	return s
}

// Batcher expõe o batcher para ligar métricas
func (s *Service) Batcher() *batcher.Batcher { return s.batcher }

// Start liga o pipeline ao vivo: odds do stream -> batcher -> store -> assinantes.
// Deve ser chamado uma vez, antes de LoadOrFetch.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	odds, unsubOdds := s.stream.SubscribeOdds()
	states, unsubStates := s.stream.SubscribeStates()

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		defer unsubOdds()
		if err := s.batcher.Run(ctx, odds); err != nil && ctx.Err() == nil {
			s.log.Error("batcher stopped", zap.Error(err))
		}
	}()
	go func() {
		defer s.wg.Done()
		defer unsubStates()
		for {
			select {
			case <-ctx.Done():
				return
			case st, ok := <-states:
				if !ok {
					return
				}
				s.states.Publish(st)
			}
		}
	}()

	// os sinks leem até o canal fechar (Close), então o último lote chega a eles
	for _, sink := range s.sinks {
		ch, unsub := s.envelopes.Subscribe()
		s.sinkWg.Add(1)
		go func(sink BatchSink) {
			defer s.sinkWg.Done()
			defer unsub()
			s.drainSink(sink, ch)
		}(sink)
	}
}

func (s *Service) drainSink(sink BatchSink, ch <-chan events.OddsBatch) {
	for b := range ch {
		pctx, cancel := context.WithTimeout(context.Background(), s.cfg.SinkTimeout)
		if err := sink.PublishBatch(pctx, b); err != nil {
			s.log.Warn("batch sink failed", zap.String("batch_id", b.BatchID), zap.Error(err))
		}
		cancel()
	}
}

// LoadOrFetch restaura do cache quando houver snapshot; senão busca partidas e
// odds em paralelo. Falha nas odds é absorvida; falha nas partidas vira
// ViewError com mensagem legível. Em seguida inicia o stream.
func (s *Service) LoadOrFetch(ctx context.Context) error {
	s.setView(ViewState{Status: ViewLoading})

	if s.restoreFromCache(ctx) {
		s.setView(viewFor(s.store.Count()))
		s.startStreaming(ctx)
		return nil
	}

	matches, odds, err := s.fetch(ctx)
	if err != nil {
		apiErr := source.Classify(err)
		s.log.Error("bulk fetch failed", zap.String("kind", string(apiErr.Kind)), zap.Error(err))
		s.setView(ViewState{Status: ViewError, Message: apiErr.UserMessage()})
		return apiErr
	}

	s.store.Bootstrap(matches, odds)
	s.setView(viewFor(s.store.Count()))
	if err := s.CacheCurrentState(ctx); err != nil {
		s.log.Warn("cache current state failed", zap.Error(err))
	}
	s.startStreaming(ctx)
	return nil
}

// Retry repete o carregamento (após ViewError)
func (s *Service) Retry(ctx context.Context) error {
	return s.LoadOrFetch(ctx)
}

func (s *Service) restoreFromCache(ctx context.Context) bool {
	snap, ok, err := s.cache.Get(ctx)
	if err != nil {
		s.log.Warn("snapshot cache read failed", zap.Error(err))
		return false
	}
	if !ok || snap.Count() == 0 {
		s.log.Debug("snapshot cache miss")
		return false
	}
	s.store.Restore(snap)
	s.log.Info("restored from snapshot cache",
		zap.Int("matches", snap.Count()),
		zap.Duration("age", snap.Age()),
	)
	return true
}

func (s *Service) fetch(ctx context.Context) ([]events.Match, []events.Odds, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	var matches []events.Match
	var odds []events.Odds

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := s.bulk.FetchMatches(gctx)
		if err != nil {
			return err
		}
		matches = m
		return nil
	})
	g.Go(func() error {
		o, err := s.bulk.FetchOdds(gctx)
		if err != nil {
			// partidas carregam mesmo sem odds
			s.log.Warn("odds fetch failed, loading matches without odds", zap.Error(err))
			return nil
		}
		odds = o
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return matches, odds, nil
}

// CacheCurrentState grava o snapshot atual no cache. Store vazio não
// sobrescreve um snapshot existente.
func (s *Service) CacheCurrentState(ctx context.Context) error {
	if s.store.Count() == 0 {
		return nil
	}
	snap := s.store.Snapshot()
	if err := s.cache.Put(ctx, snap); err != nil {
		return err
	}
	s.log.Debug("snapshot cached", zap.Int("matches", snap.Count()))
	return nil
}

// StartStreaming conecta somente quando o stream está desconectado
func (s *Service) StartStreaming(ctx context.Context) error {
	if !s.stream.State().IsDisconnected() {
		return nil
	}
	return s.stream.Connect(ctx)
}

func (s *Service) startStreaming(ctx context.Context) {
	if err := s.StartStreaming(ctx); err != nil {
		// o backoff do stream já assumiu
		s.log.Warn("stream connect failed", zap.Error(err))
	}
}

// StopStreaming desconecta e cancela qualquer backoff em andamento
func (s *Service) StopStreaming() {
	s.stream.Disconnect()
}

// Close para o stream, drena o batcher e os sinks, grava o snapshot e fecha os streams
func (s *Service) Close(ctx context.Context) error {
	s.StopStreaming()

	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	// o batcher publica a janela pendente antes de sair
	s.wg.Wait()
	s.envelopes.Drain()
	s.sinkWg.Wait()

	err := s.CacheCurrentState(ctx)
	s.states.Close()
	s.batches.Close()
	return err
}

// onBatch é o sink do batcher: roda na goroutine do batcher, então só enfileira
func (s *Service) onBatch(batch []events.ChangeResult) {
	s.batches.Publish(batch)

	if s.envelopes.Len() == 0 {
		return
	}
	env := events.OddsBatch{
		BatchID:   uuid.NewString(),
		Changes:   batch,
		Odds:      make([]events.Odds, 0, len(batch)),
		EmittedAt: time.Now().UTC(),
	}
	for _, c := range batch {
		if o, ok := s.store.Odds(c.MatchID); ok {
			env.Odds = append(env.Odds, o)
		}
	}
	s.envelopes.Publish(env)
}

// SubscribeStates assina as transições de conexão
func (s *Service) SubscribeStates() (<-chan events.ConnectionState, func()) {
	return s.states.Subscribe()
}

// SubscribeBatches assina os lotes de ChangeResult
func (s *Service) SubscribeBatches() (<-chan []events.ChangeResult, func()) {
	return s.batches.Subscribe()
}

// SubscribeOddsBatches assina os lotes com as odds atuais das partidas alteradas
func (s *Service) SubscribeOddsBatches() (<-chan events.OddsBatch, func()) {
	return s.envelopes.Subscribe()
}

// ConnectionState devolve o estado atual do stream
func (s *Service) ConnectionState() events.ConnectionState { return s.stream.State() }

// ViewState devolve o estado de carregamento
func (s *Service) ViewState() ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

func (s *Service) setView(v ViewState) {
	s.mu.Lock()
	s.view = v
	s.mu.Unlock()
}

// Count devolve o número de partidas
func (s *Service) Count() int { return s.store.Count() }

// Row devolve partida e odds na posição i
func (s *Service) Row(i int) (store.Row, bool) { return s.store.Row(i) }

// Odds devolve as odds de uma partida
func (s *Service) Odds(matchID int) (events.Odds, bool) { return s.store.Odds(matchID) }
