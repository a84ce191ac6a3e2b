package events

import "fmt"

// Faixa válida de odds (inclusiva)
const (
	MinOdds = 1.01
	MaxOdds = 99.0
)

// OddsPlaceholder é exibido quando a partida ainda não tem odds
const OddsPlaceholder = "--"

// Odds é o par de cotações de uma partida, publicado a cada atualização do fornecedor.
// A validade não é garantida na construção: use IsValid quando necessário.
type Odds struct {
	MatchID   int     `json:"match_id"`
	TeamAOdds float64 `json:"team_a_odds"`
	TeamBOdds float64 `json:"team_b_odds"`
}

// IsValid indica se as duas cotações estão dentro de [MinOdds, MaxOdds]
func (o Odds) IsValid() bool {
	return inRange(o.TeamAOdds) && inRange(o.TeamBOdds)
}

func inRange(v float64) bool { return v >= MinOdds && v <= MaxOdds }

// FormatOdds formata com duas casas decimais ou devolve o placeholder
func FormatOdds(v *float64) string {
	if v == nil {
		return OddsPlaceholder
	}
	return fmt.Sprintf("%.2f", *v)
}
