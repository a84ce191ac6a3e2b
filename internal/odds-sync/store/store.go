// Package store mantém o conjunto autoritativo de partidas e odds.
// Todo acesso passa pelo mutex do Store; nenhuma referência interna escapa.
package store

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/live-odds-sync/pkg/contracts/events"
)

// RestoreTarget é o tempo alvo para um restore imperceptível na UI
const RestoreTarget = 100 * time.Millisecond

// Row é uma linha do store: a partida e, se houver, suas odds atuais
type Row struct {
	Index int          `json:"index"`
	Match events.Match `json:"match"`
	Odds  *events.Odds `json:"odds"`
}

// Store é o dono exclusivo de sortedMatches / oddsByID / indexByID
type Store struct {
	mu        sync.RWMutex
	matches   []events.Match
	oddsByID  map[int]events.Odds
	indexByID map[int]int

	log       *zap.Logger
	now       func() time.Time
	OnRestore func(elapsed time.Duration) // métricas (opcional)
}

// Option configura o Store
type Option func(*Store)

// WithLogger define o logger do store
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock substitui o relógio usado no CreatedAt dos snapshots
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New cria um store vazio
func New(opts ...Option) *Store {
	s := &Store{
		oddsByID:  make(map[int]events.Odds),
		indexByID: make(map[int]int),
		log:       zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bootstrap substitui todo o dataset. As partidas são ordenadas por StartTime
// (ordenação estável) e o índice é reconstruído a partir dessa ordem.
// Odds de partidas desconhecidas são descartadas; em chaves repetidas vale a última.
func (s *Store) Bootstrap(matches []events.Match, odds []events.Odds) {
	sorted := append([]events.Match(nil), matches...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTime.Before(sorted[j].StartTime)
	})

	index := make(map[int]int, len(sorted))
	for i, m := range sorted {
		index[m.MatchID] = i
	}

	byID := make(map[int]events.Odds, len(odds))
	dropped := 0
	for _, o := range odds {
		if _, ok := index[o.MatchID]; !ok {
			dropped++
			continue
		}
		byID[o.MatchID] = o
	}

	s.mu.Lock()
	s.matches = sorted
	s.indexByID = index
	s.oddsByID = byID
	s.mu.Unlock()

	s.log.Info("store bootstrapped",
		zap.Int("matches", len(sorted)),
		zap.Int("odds", len(byID)),
		zap.Int("odds_dropped", dropped),
	)
}

// Count devolve o número de partidas
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matches)
}

// Match devolve a partida na posição i; false quando fora de [0, Count)
func (s *Store) Match(i int) (events.Match, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.matches) {
		return events.Match{}, false
	}
	return s.matches[i], true
}

// Odds devolve as odds atuais da partida
func (s *Store) Odds(matchID int) (events.Odds, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.oddsByID[matchID]
	return o, ok
}

// Row devolve a partida e suas odds (se houver) na posição i.
// Partida sem odds é um resultado válido; false só para índice fora da faixa.
func (s *Store) Row(i int) (Row, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.matches) {
		return Row{}, false
	}
	m := s.matches[i]
	row := Row{Index: i, Match: m}
	if o, ok := s.oddsByID[m.MatchID]; ok {
		row.Odds = &o
	}
	return row, true
}

// Index devolve a posição da partida na ordenação atual
func (s *Store) Index(matchID int) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.indexByID[matchID]
	return i, ok
}

// ApplyUpdate é o único caminho de mutação ao vivo. Para partida desconhecida
// devolve false sem alterar nada; caso contrário grava o valor e calcula as
// direções a partir do valor anterior (que pode não existir).
func (s *Store) ApplyUpdate(o events.Odds) (events.ChangeResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.indexByID[o.MatchID]
	if !ok {
		return events.ChangeResult{}, false
	}

	var previous *events.Odds
	if prev, ok := s.oddsByID[o.MatchID]; ok {
		previous = &prev
	}
	s.oddsByID[o.MatchID] = o

	return events.NewChangeResult(row, previous, o), true
}

// AllOdds devolve uma cópia do mapa de odds
func (s *Store) AllOdds() map[int]events.Odds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyOdds(s.oddsByID)
}

// MatchIDs devolve os ids na ordem do store
func (s *Store) MatchIDs() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int, len(s.matches))
	for i, m := range s.matches {
		ids[i] = m.MatchID
	}
	return ids
}

// Snapshot cria uma cópia profunda do estado atual; mutações posteriores não a afetam
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Matches:   s.matches,
		Odds:      s.oddsByID,
		Index:     s.indexByID,
		CreatedAt: s.now(),
	}.Clone()
}

// Restore substitui atomicamente as três estruturas pelo conteúdo do snapshot.
// O snapshot é copiado, então continua imutável para quem o guarda (ex.: cache).
func (s *Store) Restore(snap Snapshot) {
	start := time.Now()
	c := snap.Clone()
	if c.Odds == nil {
		c.Odds = make(map[int]events.Odds)
	}
	if c.Index == nil {
		c.Index = make(map[int]int)
	}

	s.mu.Lock()
	s.matches = c.Matches
	s.oddsByID = c.Odds
	s.indexByID = c.Index
	s.mu.Unlock()

	elapsed := time.Since(start)
	if s.OnRestore != nil {
		s.OnRestore(elapsed)
	}
	fields := []zap.Field{
		zap.Int("matches", len(c.Matches)),
		zap.Duration("elapsed", elapsed),
		zap.Duration("snapshot_age", snap.Age()),
	}
	if elapsed > RestoreTarget {
		s.log.Warn("restore exceeded target", append(fields, zap.Duration("target", RestoreTarget))...)
		return
	}
	s.log.Debug("store restored from snapshot", fields...)
}

// Reset esvazia o store
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches = nil
	s.oddsByID = make(map[int]events.Odds)
	s.indexByID = make(map[int]int)
}
