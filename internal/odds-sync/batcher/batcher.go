// Package batcher agrupa o firehose de odds em janelas de tempo e entrega
// lotes deduplicados (last-write-wins por partida) ao consumidor.
package batcher

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/live-odds-sync/pkg/contracts/events"
)

// DefaultWindow é a janela padrão de coalescência
const DefaultWindow = 200 * time.Millisecond

// Applier é a única via de mutação usada pelo batcher (store.Store)
type Applier interface {
	ApplyUpdate(o events.Odds) (events.ChangeResult, bool)
}

// Sink recebe cada lote não vazio, em ordem
type Sink func(batch []events.ChangeResult)

// Batcher acumula updates por uma janela fixa e aplica no fechamento.
// Um único goroutine é dono do buffer: a próxima janela só começa a
// acumular depois que o lote anterior foi aplicado e entregue.
type Batcher struct {
	Log    *zap.Logger
	Store  Applier
	Sink   Sink
	Window time.Duration

	OnReceived  func()         // métricas: update bruto recebido
	OnCoalesced func(n int)    // métricas: updates descartados pelo dedup
	OnBatch     func(rows int) // métricas: lote emitido
}

// New cria um batcher com a janela informada (<= 0 usa DefaultWindow)
func New(store Applier, sink Sink, window time.Duration, log *zap.Logger) *Batcher {
	if log == nil {
		log = zap.NewNop()
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Batcher{Log: log, Store: store, Sink: sink, Window: window}
}

// pending guarda o último valor por partida, preservando a ordem de chegada da chave
type pending struct {
	order []int
	last  map[int]events.Odds
	raw   int
}

func newPending() *pending {
	return &pending{last: make(map[int]events.Odds)}
}

func (p *pending) add(o events.Odds) {
	if _, seen := p.last[o.MatchID]; !seen {
		p.order = append(p.order, o.MatchID)
	}
	p.last[o.MatchID] = o
	p.raw++
}

func (p *pending) empty() bool { return p.raw == 0 }

// Run consome in até o canal fechar ou ctx encerrar. O que estiver pendente
// é aplicado e entregue antes de retornar.
func (b *Batcher) Run(ctx context.Context, in <-chan events.Odds) error {
	buf := newPending()

	// janela abre no primeiro update após um flush
	timer := time.NewTimer(b.Window)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			b.flush(buf)
			return ctx.Err()

		case o, ok := <-in:
			if !ok {
				b.flush(buf)
				return nil
			}
			if b.OnReceived != nil {
				b.OnReceived()
			}
			if buf.empty() {
				timer.Reset(b.Window)
			}
			buf.add(o)

		case <-timer.C:
			b.flush(buf)
			buf = newPending()
		}
	}
}

// Flush aplica um conjunto de updates como se fosse uma janela fechada.
// Útil para testes e para drenar um lote já acumulado fora do Run.
func (b *Batcher) Flush(updates []events.Odds) []events.ChangeResult {
	buf := newPending()
	for _, o := range updates {
		buf.add(o)
	}
	return b.flush(buf)
}

func (b *Batcher) flush(buf *pending) []events.ChangeResult {
	if buf.empty() {
		return nil
	}

	batch := make([]events.ChangeResult, 0, len(buf.order))
	for _, id := range buf.order {
		res, ok := b.Store.ApplyUpdate(buf.last[id])
		if !ok {
			continue // partida desconhecida: sem saída
		}
		batch = append(batch, res)
	}

	coalesced := buf.raw - len(buf.order)
	if coalesced > 0 && b.OnCoalesced != nil {
		b.OnCoalesced(coalesced)
	}

	if len(batch) == 0 {
		b.Log.Debug("batch dropped: no known matches", zap.Int("raw", buf.raw))
		return nil
	}

	b.Log.Debug("batch applied",
		zap.Int("raw", buf.raw),
		zap.Int("keys", len(buf.order)),
		zap.Int("rows", len(batch)),
	)
	if b.OnBatch != nil {
		b.OnBatch(len(batch))
	}
	if b.Sink != nil {
		b.Sink(batch)
	}
	return batch
}
