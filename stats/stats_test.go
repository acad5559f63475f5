package stats

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreReadUnknownPlayer(t *testing.T) {
	store := NewMemoryStore()

	counters, err := store.Read(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, Counters{}, counters)
}

func TestMemoryStoreAccumulates(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.ApplyRoundOutcome(ctx, "alice", RoundOutcome{Played: 1, Won: 1}))
	require.NoError(t, store.ApplyRoundOutcome(ctx, "alice", RoundOutcome{Played: 1, WasImposter: 1, CaughtAsImposter: 1}))
	require.NoError(t, store.ApplyRoundOutcome(ctx, "bob", RoundOutcome{Played: 1}))

	counters, err := store.Read(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, Counters{
		GamesPlayed:         2,
		GamesWon:            1,
		TimesImposter:       1,
		TimesCaughtImposter: 1,
	}, counters)

	counters, err = store.Read(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, Counters{GamesPlayed: 1}, counters)
}

func TestMemoryStoreConcurrentUpdates(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const rounds = 100

	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.ApplyRoundOutcome(ctx, "alice", RoundOutcome{Played: 1})
		}()
	}
	wg.Wait()

	counters, err := store.Read(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(rounds), counters.GamesPlayed)
}
