package stats

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) ApplyRoundOutcome(ctx context.Context, playerID string, outcome RoundOutcome) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO player_stats (player_id, games_played, games_won, times_imposter, times_caught_imposter)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (player_id) DO UPDATE SET
			games_played = player_stats.games_played + EXCLUDED.games_played,
			games_won = player_stats.games_won + EXCLUDED.games_won,
			times_imposter = player_stats.times_imposter + EXCLUDED.times_imposter,
			times_caught_imposter = player_stats.times_caught_imposter + EXCLUDED.times_caught_imposter`,
		playerID, outcome.Played, outcome.Won, outcome.WasImposter, outcome.CaughtAsImposter)
	if err != nil {
		return fmt.Errorf("applying round outcome: %w", err)
	}

	return nil
}

func (s *PostgresStore) Read(ctx context.Context, playerID string) (Counters, error) {
	var c Counters

	row := s.pool.QueryRow(ctx, `
		SELECT games_played, games_won, times_imposter, times_caught_imposter
		FROM player_stats WHERE player_id = $1`, playerID)

	err := row.Scan(&c.GamesPlayed, &c.GamesWon, &c.TimesImposter, &c.TimesCaughtImposter)
	if errors.Is(err, pgx.ErrNoRows) {
		return Counters{}, nil
	}
	if err != nil {
		return Counters{}, fmt.Errorf("reading stats: %w", err)
	}

	return c, nil
}
