package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partyline/imposter/auth"
)

func testRoom(t *testing.T) *Room {
	t.Helper()

	catalog, err := loadCatalog()
	require.NoError(t, err)

	room := NewRoom("TESTRM", "test room", catalog)
	room.intn = func(n int) int { return 0 }

	return room
}

func ident(id string) auth.Identity {
	return auth.Identity{ID: id, Name: "player " + id}
}

func fillRoom(t *testing.T, room *Room, ids ...string) {
	t.Helper()

	for _, id := range ids {
		require.NoError(t, room.AddPlayer(ident(id)))
	}
}

// startRound moves the room into playing with the given imposter, which must
// be one of the ids already in the room.
func startRound(t *testing.T, room *Room, imposterID string) {
	t.Helper()

	idx := -1
	for i, p := range room.Players {
		if p.Identity.ID == imposterID {
			idx = i
		}
	}
	require.NotEqual(t, -1, idx, "imposter must be a member")

	calls := 0
	room.intn = func(n int) int {
		calls++
		if calls == 1 {
			// word draw
			return 0
		}

		return idx
	}

	require.NoError(t, room.StartGame(room.Players[0].Identity.ID))
	require.Equal(t, imposterID, room.Round.ImposterID)
}

func TestAddPlayerAdmin(t *testing.T) {
	room := testRoom(t)
	fillRoom(t, room, "a", "b", "c")

	assert.True(t, room.IsAdmin("a"))
	assert.False(t, room.IsAdmin("b"))
	assert.False(t, room.IsAdmin("c"))

	assert.ErrorIs(t, room.AddPlayer(ident("a")), ErrAlreadyInRoom)
}

func TestAddPlayerFull(t *testing.T) {
	room := testRoom(t)
	max := 3

	fillRoom(t, room, "a")
	require.Error(t, room.UpdateSettings("b", SettingsPatch{MaxPlayers: &max}))
	require.NoError(t, room.UpdateSettings("a", SettingsPatch{MaxPlayers: &max}))

	fillRoom(t, room, "b", "c")
	assert.ErrorIs(t, room.AddPlayer(ident("d")), ErrRoomFull)
}

func TestAdminReassignment(t *testing.T) {
	room := testRoom(t)
	fillRoom(t, room, "a", "b", "c")

	empty := room.RemovePlayer("a")
	assert.False(t, empty)
	assert.True(t, room.IsAdmin("b"), "earliest-joined remaining player inherits admin")
	assert.False(t, room.IsAdmin("c"))

	room.RemovePlayer("b")
	empty = room.RemovePlayer("c")
	assert.True(t, empty)
}

func TestRemoveNonAdminKeepsAdmin(t *testing.T) {
	room := testRoom(t)
	fillRoom(t, room, "a", "b", "c")

	room.RemovePlayer("b")
	assert.True(t, room.IsAdmin("a"))
	assert.False(t, room.IsAdmin("c"))
}

func TestUpdateSettings(t *testing.T) {
	room := testRoom(t)
	fillRoom(t, room, "a", "b")

	theme := room.catalog.Themes()[0]
	difficulty := "hard"
	roundTime := 120

	require.NoError(t, room.UpdateSettings("a", SettingsPatch{
		Theme:      &theme,
		Difficulty: &difficulty,
		RoundTime:  &roundTime,
	}))
	assert.Equal(t, theme, room.Settings.Theme)
	assert.Equal(t, "hard", room.Settings.Difficulty)
	assert.Equal(t, 120, room.Settings.RoundTime)

	assert.ErrorIs(t, room.UpdateSettings("b", SettingsPatch{RoundTime: &roundTime}), ErrNotAdmin)
}

func TestUpdateSettingsRejectedPatchLeavesSettingsUntouched(t *testing.T) {
	room := testRoom(t)
	fillRoom(t, room, "a")

	before := room.Settings

	badTime := 5
	theme := room.catalog.Themes()[0]
	err := room.UpdateSettings("a", SettingsPatch{Theme: &theme, RoundTime: &badTime})
	assert.ErrorIs(t, err, ErrBadSettings)
	assert.Equal(t, before, room.Settings, "partial patch must not apply")

	badTheme := "no-such-theme"
	assert.ErrorIs(t, room.UpdateSettings("a", SettingsPatch{Theme: &badTheme}), ErrBadSettings)
	assert.Equal(t, before, room.Settings)

	tooFew := 2
	assert.ErrorIs(t, room.UpdateSettings("a", SettingsPatch{MaxPlayers: &tooFew}), ErrBadSettings)
}

func TestUpdateSettingsWrongState(t *testing.T) {
	room := testRoom(t)
	fillRoom(t, room, "a", "b", "c")
	startRound(t, room, "b")

	roundTime := 60
	assert.ErrorIs(t, room.UpdateSettings("a", SettingsPatch{RoundTime: &roundTime}), ErrWrongState)
}

func TestStartGame(t *testing.T) {
	room := testRoom(t)
	fillRoom(t, room, "a", "b")

	assert.ErrorIs(t, room.StartGame("a"), ErrNotEnoughPlayers)
	assert.ErrorIs(t, room.StartGame("b"), ErrNotAdmin)

	fillRoom(t, room, "c")
	require.NoError(t, room.StartGame("a"))

	assert.Equal(t, StatePlaying, room.State)
	assert.NotEmpty(t, room.Round.Word)
	assert.NotNil(t, room.Member(room.Round.ImposterID))
	assert.Equal(t, room.Settings.RoundTime, room.Round.TimeRemaining)

	assert.ErrorIs(t, room.StartGame("a"), ErrWrongState)
}

func TestSkipVotes(t *testing.T) {
	room := testRoom(t)
	fillRoom(t, room, "a", "b", "c", "d", "e")
	startRound(t, room, "c")

	require.Equal(t, 3, room.SkipQuorum())

	reached, err := room.AddSkipVote("a")
	require.NoError(t, err)
	assert.False(t, reached)

	// second vote from the same player does not advance the count
	reached, err = room.AddSkipVote("a")
	require.NoError(t, err)
	assert.False(t, reached)
	assert.Equal(t, 1, len(room.Round.SkipVotes))

	_, err = room.AddSkipVote("b")
	require.NoError(t, err)
	reached, err = room.AddSkipVote("c")
	require.NoError(t, err)
	assert.True(t, reached, "third distinct vote of five players reaches quorum")
}

func TestSkipVoteWrongState(t *testing.T) {
	room := testRoom(t)
	fillRoom(t, room, "a", "b", "c")

	_, err := room.AddSkipVote("a")
	assert.ErrorIs(t, err, ErrWrongState)
}

func TestSkipQuorumShrinksWithDepartures(t *testing.T) {
	room := testRoom(t)
	fillRoom(t, room, "a", "b", "c", "d")
	startRound(t, room, "d")

	reached, err := room.AddSkipVote("a")
	require.NoError(t, err)
	require.False(t, reached)

	// a leaves, taking their skip vote with them; quorum of 3 is now 2
	room.RemovePlayer("a")
	assert.Equal(t, 2, room.SkipQuorum())
	assert.Empty(t, room.Round.SkipVotes)

	_, err = room.AddSkipVote("b")
	require.NoError(t, err)
	reached, err = room.AddSkipVote("c")
	require.NoError(t, err)
	assert.True(t, reached)
}

func TestTickExpiry(t *testing.T) {
	room := testRoom(t)
	fillRoom(t, room, "a", "b", "c")
	roundTime := 10
	require.NoError(t, room.UpdateSettings("a", SettingsPatch{RoundTime: &roundTime}))
	startRound(t, room, "b")

	for i := 0; i < 9; i++ {
		assert.False(t, room.Tick())
	}
	assert.True(t, room.Tick())

	room.BeginVoting()
	assert.Equal(t, StateVoting, room.State)
	assert.Equal(t, votingWindowSeconds, room.Round.TimeRemaining)

	// the countdown does not run during voting
	assert.False(t, room.Tick())
	assert.Equal(t, votingWindowSeconds, room.Round.TimeRemaining)
}

func TestVotingOutcomeImposterCaught(t *testing.T) {
	room := testRoom(t)
	fillRoom(t, room, "a", "b", "c")
	startRound(t, room, "b")
	room.BeginVoting()

	outcome, err := room.AddVote("a", "b")
	require.NoError(t, err)
	assert.Nil(t, outcome, "round ends only once everyone has voted")

	outcome, err = room.AddVote("c", "b")
	require.NoError(t, err)
	assert.Nil(t, outcome)
	assert.Equal(t, StateVoting, room.State, "an incomplete vote never ends the round")

	outcome, err = room.AddVote("b", "a")
	require.NoError(t, err)
	require.NotNil(t, outcome)

	assert.Equal(t, "b", outcome.VotedOutID)
	assert.Equal(t, "b", outcome.ImposterID)
	assert.False(t, outcome.ImposterWon)
	assert.Equal(t, StateEnded, room.State)
	require.Len(t, room.History, 1)
	assert.Equal(t, "b", room.History[0].VotedOutID)
}

func TestVotingOutcomeImposterEscapes(t *testing.T) {
	room := testRoom(t)
	fillRoom(t, room, "a", "b", "c")
	startRound(t, room, "b")
	room.BeginVoting()

	_, err := room.AddVote("a", "c")
	require.NoError(t, err)
	_, err = room.AddVote("b", "c")
	require.NoError(t, err)
	outcome, err := room.AddVote("c", "a")
	require.NoError(t, err)
	require.NotNil(t, outcome)

	assert.Equal(t, "c", outcome.VotedOutID)
	assert.True(t, outcome.ImposterWon)
}

func TestVotingTieBreaksTowardEarliestJoined(t *testing.T) {
	room := testRoom(t)
	fillRoom(t, room, "a", "b", "c", "d")
	startRound(t, room, "d")
	room.BeginVoting()

	// 2-2 tie between b (joined second) and c (joined third)
	_, err := room.AddVote("a", "b")
	require.NoError(t, err)
	_, err = room.AddVote("d", "b")
	require.NoError(t, err)
	_, err = room.AddVote("b", "c")
	require.NoError(t, err)
	outcome, err := room.AddVote("c", "c")
	require.NoError(t, err)
	require.NotNil(t, outcome)

	assert.Equal(t, "b", outcome.VotedOutID)
}

func TestVoteRevision(t *testing.T) {
	room := testRoom(t)
	fillRoom(t, room, "a", "b", "c")
	startRound(t, room, "a")
	room.BeginVoting()

	_, err := room.AddVote("b", "c")
	require.NoError(t, err)
	_, err = room.AddVote("b", "a")
	require.NoError(t, err)
	_, err = room.AddVote("c", "a")
	require.NoError(t, err)
	outcome, err := room.AddVote("a", "b")
	require.NoError(t, err)
	require.NotNil(t, outcome)

	assert.Equal(t, "a", outcome.VotedOutID, "revised vote replaces the original")
	assert.False(t, outcome.ImposterWon)
}

func TestVoteInvalidTarget(t *testing.T) {
	room := testRoom(t)
	fillRoom(t, room, "a", "b", "c")
	startRound(t, room, "a")
	room.BeginVoting()

	_, err := room.AddVote("a", "ghost")
	assert.ErrorIs(t, err, ErrInvalidTarget)
	assert.Empty(t, room.Round.Votes, "rejected vote must not consume the slot")
}

func TestVoteWrongState(t *testing.T) {
	room := testRoom(t)
	fillRoom(t, room, "a", "b", "c")

	_, err := room.AddVote("a", "b")
	assert.ErrorIs(t, err, ErrWrongState)
}

func TestDepartedVoterCompletesRound(t *testing.T) {
	room := testRoom(t)
	fillRoom(t, room, "a", "b", "c", "d")
	startRound(t, room, "b")
	room.BeginVoting()

	_, err := room.AddVote("a", "b")
	require.NoError(t, err)
	_, err = room.AddVote("b", "d")
	require.NoError(t, err)

	// d leaves without voting; the three remaining players have all voted
	// once c casts theirs, and d's never-cast vote cannot hold the round open
	room.RemovePlayer("d")

	outcome, err := room.AddVote("c", "b")
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, "b", outcome.VotedOutID)
	assert.False(t, outcome.ImposterWon)
}

func TestDepartedVotersBallotNotCounted(t *testing.T) {
	room := testRoom(t)
	fillRoom(t, room, "a", "b", "c", "d")
	startRound(t, room, "a")
	room.BeginVoting()

	// d votes for c, then leaves; the stale ballot must not tip the tally
	_, err := room.AddVote("d", "c")
	require.NoError(t, err)
	room.RemovePlayer("d")

	_, err = room.AddVote("a", "b")
	require.NoError(t, err)
	_, err = room.AddVote("c", "b")
	require.NoError(t, err)
	outcome, err := room.AddVote("b", "c")
	require.NoError(t, err)
	require.NotNil(t, outcome)

	assert.Equal(t, "b", outcome.VotedOutID)
}

func TestReset(t *testing.T) {
	room := testRoom(t)
	fillRoom(t, room, "a", "b", "c")
	startRound(t, room, "b")
	room.BeginVoting()

	for _, id := range []string{"a", "b", "c"} {
		_, err := room.AddVote(id, "b")
		require.NoError(t, err)
	}
	require.Equal(t, StateEnded, room.State)

	room.Reset()

	assert.Equal(t, StateWaiting, room.State)
	assert.Len(t, room.Players, 3, "players survive the reset")
	assert.Empty(t, room.Round.Word)
	assert.Empty(t, room.Round.Votes)
	assert.Len(t, room.History, 1, "history survives the reset")

	// the same room can host another round
	room.intn = func(n int) int { return 0 }
	require.NoError(t, room.StartGame("a"))
}

func TestHistoryRecordsEachRound(t *testing.T) {
	room := testRoom(t)
	fillRoom(t, room, "a", "b", "c")

	playRound := func(imposterID, votedOutID string) {
		startRound(t, room, imposterID)
		room.BeginVoting()
		for _, p := range room.Players {
			_, err := room.AddVote(p.Identity.ID, votedOutID)
			require.NoError(t, err)
		}
		room.Reset()
	}

	playRound("b", "b")
	playRound("c", "a")

	want := []RoundRecord{
		{ImposterID: "b", VotedOutID: "b", ImposterWon: false},
		{ImposterID: "c", VotedOutID: "a", ImposterWon: true},
	}

	diff := cmp.Diff(want, room.History,
		cmpopts.IgnoreFields(RoundRecord{}, "Word", "Players", "EndedAt"))
	assert.Empty(t, diff)

	for _, record := range room.History {
		assert.NotEmpty(t, record.Word)
		assert.Len(t, record.Players, 3)
		assert.False(t, record.EndedAt.IsZero())
	}
}

func TestPublicViewHidesSecrets(t *testing.T) {
	room := testRoom(t)
	fillRoom(t, room, "a", "b", "c", "d")
	startRound(t, room, "c")

	_, err := room.AddSkipVote("a")
	require.NoError(t, err)

	view := room.PublicView()
	assert.Equal(t, "TESTRM", view.ID)
	assert.Equal(t, StatePlaying, view.State)
	assert.Len(t, view.Players, 4)
	assert.Equal(t, 1, view.Round.SkipVoteCount)
	assert.Equal(t, 2, view.Round.SkipVoteQuorum)
	assert.Equal(t, room.Settings.RoundTime, view.Round.TimeRemaining)
}
