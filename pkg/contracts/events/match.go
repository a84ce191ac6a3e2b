package events

import "time"

// Match representa uma partida acompanhada pelo sync (registro estável, nunca mutado)
type Match struct {
	MatchID   int       `json:"match_id"`
	TeamA     string    `json:"team_a"`
	TeamB     string    `json:"team_b"`
	StartTime time.Time `json:"start_time"`
}
