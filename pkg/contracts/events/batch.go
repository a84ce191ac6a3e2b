package events

import "time"

// OddsBatch é o envelope publicado para consumidores externos (Kafka, Redis, WS)
// a cada janela aplicada. Odds traz o valor atual de cada partida alterada.
type OddsBatch struct {
	BatchID   string         `json:"batch_id"`
	Changes   []ChangeResult `json:"changes"`
	Odds      []Odds         `json:"odds"`
	EmittedAt time.Time      `json:"emitted_at"`
}

// Len devolve o número de linhas alteradas
func (b OddsBatch) Len() int { return len(b.Changes) }
