package source

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/radieske/live-odds-sync/pkg/contracts/events"
)

// Postgres lê o catálogo de partidas e as odds correntes de uma réplica
type Postgres struct {
	DB *sql.DB
}

// NewPostgres cria a fonte a partir de uma conexão aberta (ver shared/db)
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{DB: db}
}

// FetchMatches lista as partidas; a ordem final é definida pelo store
func (r *Postgres) FetchMatches(ctx context.Context) ([]events.Match, error) {
	const q = `
		SELECT match_id, team_a, team_b, start_time
		FROM matches
		ORDER BY start_time, match_id;
	`
	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, Classify(fmt.Errorf("query matches: %w", err))
	}
	defer rows.Close()

	var out []events.Match
	for rows.Next() {
		var m events.Match
		if err := rows.Scan(&m.MatchID, &m.TeamA, &m.TeamB, &m.StartTime); err != nil {
			return nil, &APIError{Kind: KindDecoding, Err: fmt.Errorf("scan match: %w", err)}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify(err)
	}
	return out, nil
}

// FetchOdds lista as odds correntes
func (r *Postgres) FetchOdds(ctx context.Context) ([]events.Odds, error) {
	const q = `
		SELECT match_id, team_a_odds, team_b_odds
		FROM odds_current
		ORDER BY match_id;
	`
	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, Classify(fmt.Errorf("query odds: %w", err))
	}
	defer rows.Close()

	var out []events.Odds
	for rows.Next() {
		var o events.Odds
		if err := rows.Scan(&o.MatchID, &o.TeamAOdds, &o.TeamBOdds); err != nil {
			return nil, &APIError{Kind: KindDecoding, Err: fmt.Errorf("scan odds: %w", err)}
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify(err)
	}
	return out, nil
}
