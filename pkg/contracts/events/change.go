package events

// ChangeDirection classifica a transição de uma cotação
type ChangeDirection string

const (
	DirectionUp   ChangeDirection = "up"
	DirectionDown ChangeDirection = "down"
	DirectionNone ChangeDirection = "none"
)

// Direction compara o novo valor com o anterior (nil = sem valor anterior)
func Direction(previous *float64, current float64) ChangeDirection {
	if previous == nil {
		return DirectionNone
	}
	switch {
	case current > *previous:
		return DirectionUp
	case current < *previous:
		return DirectionDown
	default:
		return DirectionNone
	}
}

// ChangeResult é o resultado de aplicar uma atualização de odds ao store
type ChangeResult struct {
	RowIndex       int             `json:"row_index"`
	MatchID        int             `json:"match_id"`
	TeamADirection ChangeDirection `json:"team_a_direction"`
	TeamBDirection ChangeDirection `json:"team_b_direction"`
}

// NewChangeResult deriva as direções de previous -> current para cada cotação
func NewChangeResult(rowIndex int, previous *Odds, current Odds) ChangeResult {
	var prevA, prevB *float64
	if previous != nil {
		a, b := previous.TeamAOdds, previous.TeamBOdds
		prevA, prevB = &a, &b
	}
	return ChangeResult{
		RowIndex:       rowIndex,
		MatchID:        current.MatchID,
		TeamADirection: Direction(prevA, current.TeamAOdds),
		TeamBDirection: Direction(prevB, current.TeamBOdds),
	}
}

// HasAnimation é verdadeiro quando alguma das cotações mudou
func (c ChangeResult) HasAnimation() bool {
	return c.TeamADirection != DirectionNone || c.TeamBDirection != DirectionNone
}
