package store

import (
	"time"

	"github.com/radieske/live-odds-sync/pkg/contracts/events"
)

// Snapshot é uma cópia pontual e independente do estado do Store.
// Matches vem ordenado por StartTime; Index[m.MatchID] == posição em Matches.
type Snapshot struct {
	Matches   []events.Match      `json:"matches"`
	Odds      map[int]events.Odds `json:"odds"`
	Index     map[int]int         `json:"index"`
	CreatedAt time.Time           `json:"created_at"`
}

// Count devolve o número de partidas no snapshot
func (s Snapshot) Count() int { return len(s.Matches) }

// Age devolve há quanto tempo o snapshot foi criado
func (s Snapshot) Age() time.Duration { return time.Since(s.CreatedAt) }

// Clone faz a cópia profunda das três estruturas
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Matches:   append([]events.Match(nil), s.Matches...),
		Odds:      copyOdds(s.Odds),
		Index:     copyIndex(s.Index),
		CreatedAt: s.CreatedAt,
	}
}

func copyOdds(src map[int]events.Odds) map[int]events.Odds {
	dst := make(map[int]events.Odds, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func copyIndex(src map[int]int) map[int]int {
	dst := make(map[int]int, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
