// Package feed gera o catálogo de partidas e as variações de odds do fornecedor simulado.
package feed

import (
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/radieske/live-odds-sync/pkg/contracts/events"
)

const (
	FirstMatchID     = 1001
	DefaultVariation = 0.10
	Margin           = 1.05
	ScheduleHorizon  = 7 * 24 * time.Hour
)

// Teams é o catálogo fixo de nomes usado nas partidas geradas
var Teams = []string{
	"Eagles", "Tigers", "Warriors", "Lions", "Sharks",
	"Panthers", "Wolves", "Bears", "Falcons", "Hawks",
	"Cobras", "Dragons", "Phoenix", "Thunder", "Storm",
	"Titans", "Giants", "Knights", "Spartans", "Vikings",
}

// Generator guarda o estado corrente do fornecedor. Seguro para uso concorrente.
type Generator struct {
	mu      sync.Mutex
	rnd     *rand.Rand
	matches []events.Match
	odds    map[int]events.Odds

	Variation   float64 // amplitude máxima por lado, por atualização
	UpdateRatio float64 // fração das partidas atualizadas em cada Tick
	Missing     map[int]bool
}

// NewGenerator cria n partidas com início em [now, now+7d] e odds iniciais
func NewGenerator(n int, now time.Time, seed int64) *Generator {
	g := &Generator{
		rnd:         rand.New(rand.NewSource(seed)),
		odds:        make(map[int]events.Odds, n),
		Variation:   DefaultVariation,
		UpdateRatio: 0.1,
		Missing:     map[int]bool{},
	}
	for i := 0; i < n; i++ {
		a := g.rnd.Intn(len(Teams))
		b := g.rnd.Intn(len(Teams))
		for b == a {
			b = g.rnd.Intn(len(Teams))
		}
		offset := time.Duration(g.rnd.Int63n(int64(ScheduleHorizon) + 1))
		id := FirstMatchID + i
		g.matches = append(g.matches, events.Match{
			MatchID:   id,
			TeamA:     Teams[a],
			TeamB:     Teams[b],
			StartTime: now.Add(offset).UTC(),
		})
		ta, tb := g.pair()
		g.odds[id] = events.Odds{MatchID: id, TeamAOdds: ta, TeamBOdds: tb}
	}
	return g
}

// Matches devolve as partidas na ordem de geração (não ordenadas por início)
func (g *Generator) Matches() []events.Match {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]events.Match(nil), g.matches...)
}

// Odds devolve as odds atuais por match_id crescente, sem as partidas em Missing
func (g *Generator) Odds() []events.Odds {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]events.Odds, 0, len(g.odds))
	for id, o := range g.odds {
		if g.Missing[id] {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MatchID < out[j].MatchID })
	return out
}

// Tick varia as odds de ceil(UpdateRatio*n) partidas sorteadas (no mínimo uma)
// e devolve os novos valores na ordem do sorteio.
func (g *Generator) Tick() []events.Odds {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := len(g.matches)
	if n == 0 || g.UpdateRatio <= 0 {
		return nil
	}
	k := int(math.Ceil(g.UpdateRatio * float64(n)))
	if k > n {
		k = n
	}

	out := make([]events.Odds, 0, k)
	for _, i := range g.rnd.Perm(n)[:k] {
		id := g.matches[i].MatchID
		cur := g.odds[id]
		next := events.Odds{
			MatchID:   id,
			TeamAOdds: g.vary(cur.TeamAOdds),
			TeamBOdds: g.vary(cur.TeamBOdds),
		}
		g.odds[id] = next
		out = append(out, next)
	}
	return out
}

// par inverso: probabilidade de A em [0.30, 0.70] com margem da casa
func (g *Generator) pair() (float64, float64) {
	pa := 0.30 + g.rnd.Float64()*0.40
	pb := 1 - pa
	return Clamp(1 / pa * Margin), Clamp(1 / pb * Margin)
}

func (g *Generator) vary(v float64) float64 {
	delta := (g.rnd.Float64()*2 - 1) * g.Variation
	return Clamp(v + delta)
}

// Clamp limita v a [MinOdds, MaxOdds] e arredonda para duas casas
func Clamp(v float64) float64 {
	v = math.Min(math.Max(v, events.MinOdds), events.MaxOdds)
	return math.Round(v*100) / 100
}
