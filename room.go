// Imposter Room State Machine
//
// One room is one isolated game session. The room cycles through four states:
//
//	waiting → playing → voting → ended → waiting
//
// startGame picks a secret word and one imposter at random; everyone but the
// imposter learns the word. During "playing" a per-second countdown runs, and
// players may cast skip votes; the round moves to "voting" when the countdown
// expires or when ceil(playerCount/2) distinct players have voted to skip.
// During "voting" each player votes for a suspect; once every current player
// has voted, the player with the most votes is voted out and the round ends.
// The imposter wins unless they were the one voted out. A short delay later
// the room returns to "waiting" with players and settings intact.
//
// A Room is owned by its hub goroutine: every method here is called from that
// single goroutine, so the struct carries no lock.

package main

import (
	"math/rand/v2"
	"time"

	"github.com/partyline/imposter/auth"
)

type GameState string

const (
	StateWaiting GameState = "waiting"
	StatePlaying GameState = "playing"
	StateVoting  GameState = "voting"
	StateEnded   GameState = "ended"
)

const (
	minPlayers          = 3
	votingWindowSeconds = 60
	resetDelay          = 10 * time.Second

	defaultMaxPlayers = 8
	defaultRoundTime  = 180
	minRoundTime      = 10
	maxRoundTime      = 600

	maxChatLength = 500
	maxRoomName   = 64
)

type Player struct {
	Identity auth.Identity `json:"identity"`
	IsAdmin  bool          `json:"is_admin"`
}

type Settings struct {
	MaxPlayers int    `json:"max_players"`
	RoundTime  int    `json:"round_time"`
	Theme      string `json:"theme"`
	Difficulty string `json:"difficulty"`
}

// SettingsPatch is a partial settings update; nil fields are left unchanged.
type SettingsPatch struct {
	MaxPlayers *int    `json:"max_players,omitempty"`
	RoundTime  *int    `json:"round_time,omitempty"`
	Theme      *string `json:"theme,omitempty"`
	Difficulty *string `json:"difficulty,omitempty"`
}

type Round struct {
	Word          string
	ImposterID    string
	TimeRemaining int
	SkipVotes     map[string]struct{}
	Votes         map[string]string
	StartedAt     time.Time
}

type RoundRecord struct {
	Word        string    `json:"word"`
	ImposterID  string    `json:"imposter_id"`
	VotedOutID  string    `json:"voted_out_id,omitempty"`
	ImposterWon bool      `json:"imposter_won"`
	Players     []Player  `json:"players"`
	EndedAt     time.Time `json:"ended_at"`
}

// Outcome describes a finished round.
type Outcome struct {
	Word        string
	ImposterID  string
	VotedOutID  string
	ImposterWon bool
	Players     []Player
}

type Room struct {
	ID       string
	Name     string
	State    GameState
	Settings Settings
	Players  []*Player
	Round    Round
	History  []RoundRecord

	catalog *Catalog
	intn    func(n int) int
}

func NewRoom(id, name string, catalog *Catalog) *Room {
	return &Room{
		ID:    id,
		Name:  name,
		State: StateWaiting,
		Settings: Settings{
			MaxPlayers: defaultMaxPlayers,
			RoundTime:  defaultRoundTime,
			Theme:      catalog.DefaultTheme(),
			Difficulty: defaultDifficulty,
		},
		Round:   newRound(),
		catalog: catalog,
		intn:    rand.IntN,
	}
}

func newRound() Round {
	return Round{
		SkipVotes: make(map[string]struct{}),
		Votes:     make(map[string]string),
	}
}

// Member returns the player with the given identity id, or nil.
func (r *Room) Member(id string) *Player {
	for _, p := range r.Players {
		if p.Identity.ID == id {
			return p
		}
	}

	return nil
}

func (r *Room) IsAdmin(id string) bool {
	p := r.Member(id)

	return p != nil && p.IsAdmin
}

// AddPlayer appends a player in join order. The first player in an empty room
// becomes admin.
func (r *Room) AddPlayer(identity auth.Identity) error {
	if len(r.Players) >= r.Settings.MaxPlayers {
		return ErrRoomFull
	}
	if r.Member(identity.ID) != nil {
		return ErrAlreadyInRoom
	}

	r.Players = append(r.Players, &Player{
		Identity: identity,
		IsAdmin:  len(r.Players) == 0,
	})

	return nil
}

// RemovePlayer removes the player if present and reports whether the room is
// now empty. When the admin leaves, the earliest-joined remaining player
// inherits the role. Skip votes from the departed player are discarded; a
// suspect vote they already cast is left behind but no longer counted.
func (r *Room) RemovePlayer(id string) bool {
	idx := -1
	for i, p := range r.Players {
		if p.Identity.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return len(r.Players) == 0
	}

	wasAdmin := r.Players[idx].IsAdmin
	r.Players = append(r.Players[:idx], r.Players[idx+1:]...)
	delete(r.Round.SkipVotes, id)

	if wasAdmin && len(r.Players) > 0 {
		r.Players[0].IsAdmin = true
	}

	return len(r.Players) == 0
}

// UpdateSettings validates the whole patch before mutating anything, so a
// rejected patch leaves settings untouched.
func (r *Room) UpdateSettings(actorID string, patch SettingsPatch) error {
	if !r.IsAdmin(actorID) {
		return ErrNotAdmin
	}
	if r.State != StateWaiting {
		return ErrWrongState
	}

	next := r.Settings
	if patch.MaxPlayers != nil {
		if *patch.MaxPlayers < minPlayers {
			return ErrBadSettings
		}
		next.MaxPlayers = *patch.MaxPlayers
	}
	if patch.RoundTime != nil {
		if *patch.RoundTime < minRoundTime || *patch.RoundTime > maxRoundTime {
			return ErrBadSettings
		}
		next.RoundTime = *patch.RoundTime
	}
	if patch.Theme != nil {
		next.Theme = *patch.Theme
	}
	if patch.Difficulty != nil {
		next.Difficulty = *patch.Difficulty
	}
	if !r.catalog.Validate(next.Theme, next.Difficulty) {
		return ErrBadSettings
	}

	r.Settings = next

	return nil
}

// StartGame moves waiting → playing, drawing the word and the imposter
// uniformly at random.
func (r *Room) StartGame(actorID string) error {
	if !r.IsAdmin(actorID) {
		return ErrNotAdmin
	}
	if r.State != StateWaiting {
		return ErrWrongState
	}
	if len(r.Players) < minPlayers {
		return ErrNotEnoughPlayers
	}

	word, ok := r.catalog.RandomWord(r.Settings.Theme, r.Settings.Difficulty, r.intn)
	if !ok {
		return ErrBadSettings
	}

	r.Round = newRound()
	r.Round.Word = word
	r.Round.ImposterID = r.Players[r.intn(len(r.Players))].Identity.ID
	r.Round.TimeRemaining = r.Settings.RoundTime
	r.Round.StartedAt = time.Now()
	r.State = StatePlaying

	return nil
}

// SkipQuorum is ceil(playerCount / 2).
func (r *Room) SkipQuorum() int {
	return (len(r.Players) + 1) / 2
}

// AddSkipVote records a skip vote (idempotent per player) and reports whether
// quorum has been reached. The caller performs the transition.
func (r *Room) AddSkipVote(id string) (bool, error) {
	if r.State != StatePlaying {
		return false, ErrWrongState
	}

	r.Round.SkipVotes[id] = struct{}{}

	return len(r.Round.SkipVotes) >= r.SkipQuorum(), nil
}

// Tick decrements the countdown by one second and reports whether it expired.
func (r *Room) Tick() bool {
	if r.State != StatePlaying {
		return false
	}

	r.Round.TimeRemaining--

	return r.Round.TimeRemaining <= 0
}

// BeginVoting moves playing → voting and resets the clock to the fixed voting
// window. The countdown does not run during voting; the window is advisory.
func (r *Room) BeginVoting() {
	if r.State != StatePlaying {
		return
	}

	r.State = StateVoting
	r.Round.TimeRemaining = votingWindowSeconds
}

// AddVote records (or overwrites) the voter's suspect. Votes naming someone
// outside the room are rejected and do not consume the voter's slot. Once
// every current player has voted the round ends and the outcome is returned;
// otherwise the result is nil.
func (r *Room) AddVote(voterID, targetID string) (*Outcome, error) {
	if r.State != StateVoting {
		return nil, ErrWrongState
	}
	if r.Member(targetID) == nil {
		return nil, ErrInvalidTarget
	}

	r.Round.Votes[voterID] = targetID

	voted := 0
	for _, p := range r.Players {
		if _, ok := r.Round.Votes[p.Identity.ID]; ok {
			voted++
		}
	}
	if voted < len(r.Players) {
		return nil, nil
	}

	return r.endRound(), nil
}

// endRound tallies votes cast by current players, votes out the target with
// the strictly greatest count (ties break toward the earliest-joined player),
// appends the round to history, and moves to ended.
func (r *Room) endRound() *Outcome {
	counts := make(map[string]int)
	for _, p := range r.Players {
		if target, ok := r.Round.Votes[p.Identity.ID]; ok {
			counts[target]++
		}
	}

	votedOut, best := "", 0
	for _, p := range r.Players {
		if n := counts[p.Identity.ID]; n > best {
			votedOut, best = p.Identity.ID, n
		}
	}

	outcome := &Outcome{
		Word:        r.Round.Word,
		ImposterID:  r.Round.ImposterID,
		VotedOutID:  votedOut,
		ImposterWon: votedOut != r.Round.ImposterID,
		Players:     r.snapshotPlayers(),
	}

	r.State = StateEnded
	r.History = append(r.History, RoundRecord{
		Word:        outcome.Word,
		ImposterID:  outcome.ImposterID,
		VotedOutID:  outcome.VotedOutID,
		ImposterWon: outcome.ImposterWon,
		Players:     outcome.Players,
		EndedAt:     time.Now(),
	})

	return outcome
}

// Reset moves ended → waiting with a fresh round; players and settings are
// kept.
func (r *Room) Reset() {
	r.Round = newRound()
	r.State = StateWaiting
}

func (r *Room) snapshotPlayers() []Player {
	snapshot := make([]Player, 0, len(r.Players))
	for _, p := range r.Players {
		snapshot = append(snapshot, *p)
	}

	return snapshot
}

// RoomView is the public view of a room: the word and the imposter are never
// included, and the round is reduced to aggregate timer and skip-vote info.
type RoomView struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Players  []Player  `json:"players"`
	State    GameState `json:"game_state"`
	Settings Settings  `json:"settings"`
	Round    RoundView `json:"round"`
}

type RoundView struct {
	TimeRemaining  int `json:"time_remaining"`
	SkipVoteCount  int `json:"skip_vote_count"`
	SkipVoteQuorum int `json:"skip_vote_quorum"`
}

func (r *Room) PublicView() RoomView {
	return RoomView{
		ID:       r.ID,
		Name:     r.Name,
		Players:  r.snapshotPlayers(),
		State:    r.State,
		Settings: r.Settings,
		Round: RoundView{
			TimeRemaining:  r.Round.TimeRemaining,
			SkipVoteCount:  len(r.Round.SkipVotes),
			SkipVoteQuorum: r.SkipQuorum(),
		},
	}
}
