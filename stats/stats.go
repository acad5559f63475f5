// Package stats accumulates per-player lifetime counters. Updates are
// best-effort analytics: the game never blocks on them and never rolls back
// when they fail.
package stats

import (
	"context"
	"sync"
)

type Counters struct {
	GamesPlayed         int64 `json:"games_played"`
	GamesWon            int64 `json:"games_won"`
	TimesImposter       int64 `json:"times_imposter"`
	TimesCaughtImposter int64 `json:"times_caught_imposter"`
}

// RoundOutcome holds the counter deltas one finished round contributes for a
// single player.
type RoundOutcome struct {
	Played           int64
	Won              int64
	WasImposter      int64
	CaughtAsImposter int64
}

type Store interface {
	ApplyRoundOutcome(ctx context.Context, playerID string, outcome RoundOutcome) error
	// Read returns zeroed counters for players with no recorded rounds.
	Read(ctx context.Context, playerID string) (Counters, error)
}

// MemoryStore is the in-process Store used when no database is configured.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]Counters
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]Counters)}
}

func (m *MemoryStore) ApplyRoundOutcome(_ context.Context, playerID string, outcome RoundOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.counters[playerID]
	c.GamesPlayed += outcome.Played
	c.GamesWon += outcome.Won
	c.TimesImposter += outcome.WasImposter
	c.TimesCaughtImposter += outcome.CaughtAsImposter
	m.counters[playerID] = c

	return nil
}

func (m *MemoryStore) Read(_ context.Context, playerID string) (Counters, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.counters[playerID], nil
}
