/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/partyline/imposter/stats"
)

// hubRequest is a join or leave submitted from a connection's read goroutine;
// reply carries the verdict back so the connection can update its own state.
type hubRequest struct {
	c     *client
	reply chan error
}

type command struct {
	c   *client
	msg ClientMessage
}

// Hub owns one Room. All room mutations happen on the hub's run goroutine,
// serialized through its channels, so members observe broadcasts in the exact
// order commands were processed. Handlers must stay short and non-blocking.
type Hub struct {
	cfg     *Config
	room    *Room
	manager *Manager
	stats   stats.Store

	clients map[*client]bool

	joins      chan hubRequest
	leaves     chan hubRequest
	unregister chan *client
	commands   chan command
	done       chan struct{}

	// Ticker and timer construction is injectable so tests can drive time.
	newTicker func(time.Duration) (<-chan time.Time, func())
	newTimer  func(time.Duration) (<-chan time.Time, func())

	// Countdown for the playing phase; nil channels disable their cases.
	tickC    <-chan time.Time
	stopTick func()

	// Delay before an ended room returns to waiting.
	resetC    <-chan time.Time
	stopReset func()
}

func newHub(cfg *Config, room *Room, manager *Manager, statsStore stats.Store) *Hub {
	return &Hub{
		cfg:        cfg,
		room:       room,
		manager:    manager,
		stats:      statsStore,
		clients:    make(map[*client]bool),
		joins:      make(chan hubRequest),
		leaves:     make(chan hubRequest),
		unregister: make(chan *client, 16),
		commands:   make(chan command, 64),
		done:       make(chan struct{}),
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
		newTimer: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTimer(d)
			return t.C, func() { t.Stop() }
		},
	}
}

func (h *Hub) run() {
	for {
		select {
		case req := <-h.joins:
			req.reply <- h.handleJoin(req.c)

		case req := <-h.leaves:
			empty := h.handleLeave(req.c, "left the room")
			req.reply <- nil
			if empty {
				return
			}

		case c := <-h.unregister:
			if h.handleLeave(c, "disconnected") {
				return
			}

		case cmd := <-h.commands:
			h.handleCommand(cmd)

		case <-h.tickC:
			if h.room.Tick() {
				h.beginVoting()
			} else {
				h.broadcastRoomUpdate()
			}

		case <-h.resetC:
			h.resetC = nil
			h.stopReset = nil
			h.room.Reset()
			h.broadcast(systemChat("the room is ready for a new round"))
			h.broadcastRoomUpdate()
		}
	}
}

func (h *Hub) handleJoin(c *client) error {
	if err := h.room.AddPlayer(*c.identity); err != nil {
		return err
	}

	h.clients[c] = true
	c.trySend(RoomJoinedMessage{Type: "room_joined", RoomID: h.room.ID})
	h.broadcast(systemChat(c.identity.Name + " joined the room"))
	h.broadcastRoomUpdate()

	logf(h.cfg, "ROOMS: %s joined %s (%d players)", c.identity.Name, h.room.ID, len(h.room.Players))

	return nil
}

// handleLeave removes the player and reports whether the room emptied, in
// which case the hub has already torn itself down and run must return.
func (h *Hub) handleLeave(c *client, verb string) bool {
	if !h.clients[c] {
		return false
	}

	delete(h.clients, c)

	if h.room.RemovePlayer(c.identity.ID) {
		h.teardown()
		return true
	}

	h.broadcast(systemChat(c.identity.Name + " " + verb))
	h.broadcastRoomUpdate()

	return false
}

// teardown cancels any pending timers and removes the room from the registry.
// Called exactly once, when the last player leaves.
func (h *Hub) teardown() {
	if h.stopTick != nil {
		h.stopTick()
		h.tickC = nil
		h.stopTick = nil
	}
	if h.stopReset != nil {
		h.stopReset()
		h.resetC = nil
		h.stopReset = nil
	}

	close(h.done)
	h.manager.Remove(h.room.ID)

	logf(h.cfg, "ROOMS: Removed empty room %s", h.room.ID)
}

// handleCommand isolates failures to the single command being processed: a
// panicking handler is logged and answered with an error event, and the hub
// keeps running.
func (h *Hub) handleCommand(cmd command) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().
				Interface("panic", rec).
				Str("room", h.room.ID).
				Str("command", cmd.msg.Type).
				Msg("recovered from command handler")
			cmd.c.sendError("internal error")
		}
	}()

	if !h.clients[cmd.c] {
		cmd.c.sendError(ErrNotInRoom.Error())
		return
	}

	switch cmd.msg.Type {
	case "update_settings":
		h.handleSettings(cmd)
	case "start_game":
		h.handleStartGame(cmd)
	case "skip_vote":
		h.handleSkipVote(cmd)
	case "vote":
		h.handleVote(cmd)
	case "message":
		h.handleChat(cmd)
	default:
		cmd.c.sendError("unknown command: " + cmd.msg.Type)
	}
}

func (h *Hub) handleSettings(cmd command) {
	patch, err := decodeSettingsPatch(cmd.msg.Settings)
	if err != nil {
		cmd.c.sendError(ErrBadSettings.Error())
		return
	}

	if err := h.room.UpdateSettings(cmd.c.identity.ID, patch); err != nil {
		cmd.c.sendError(err.Error())
		return
	}

	h.broadcastRoomUpdate()
}

func (h *Hub) handleStartGame(cmd command) {
	if err := h.room.StartGame(cmd.c.identity.ID); err != nil {
		cmd.c.sendError(err.Error())
		return
	}

	h.tickC, h.stopTick = h.newTicker(time.Second)

	for c := range h.clients {
		msg := GameStartedMessage{
			Type:       "game_started",
			IsImposter: c.identity.ID == h.room.Round.ImposterID,
			TimeLimit:  h.room.Settings.RoundTime,
		}
		if !msg.IsImposter {
			msg.Word = h.room.Round.Word
		}
		c.trySend(msg)
	}

	h.broadcast(systemChat("the game has started"))
	h.broadcastRoomUpdate()

	logf(h.cfg, "GAMES: Started round in %s (%d players)", h.room.ID, len(h.room.Players))
}

func (h *Hub) handleSkipVote(cmd command) {
	reached, err := h.room.AddSkipVote(cmd.c.identity.ID)
	if err != nil {
		cmd.c.sendError(err.Error())
		return
	}

	if reached {
		h.beginVoting()
	} else {
		h.broadcastRoomUpdate()
	}
}

func (h *Hub) beginVoting() {
	if h.stopTick != nil {
		h.stopTick()
		h.tickC = nil
		h.stopTick = nil
	}

	h.room.BeginVoting()
	h.broadcast(VotingPhaseMessage{Type: "voting_phase", Players: h.room.snapshotPlayers()})
	h.broadcastRoomUpdate()
}

func (h *Hub) handleVote(cmd command) {
	outcome, err := h.room.AddVote(cmd.c.identity.ID, cmd.msg.Target)
	if err != nil {
		cmd.c.sendError(err.Error())
		return
	}

	if outcome == nil {
		h.broadcastRoomUpdate()
		return
	}

	h.broadcast(GameEndedMessage{
		Type:        "game_ended",
		Word:        outcome.Word,
		ImposterID:  outcome.ImposterID,
		VotedOutID:  outcome.VotedOutID,
		ImposterWon: outcome.ImposterWon,
	})
	h.broadcastRoomUpdate()
	h.recordOutcome(outcome)

	h.resetC, h.stopReset = h.newTimer(resetDelay)

	logf(h.cfg, "GAMES: Round ended in %s (imposter won: %t)", h.room.ID, outcome.ImposterWon)
}

func (h *Hub) handleChat(cmd command) {
	text := strings.TrimSpace(cmd.msg.Text)
	if text == "" {
		cmd.c.sendError(ErrEmptyMessage.Error())
		return
	}
	if utf8.RuneCountInString(text) > maxChatLength {
		cmd.c.sendError(ErrMessageTooLong.Error())
		return
	}

	h.broadcast(ChatMessage{
		Type:      "chat",
		Sender:    cmd.c.identity.Name,
		Text:      text,
		Timestamp: time.Now(),
		Kind:      "user",
	})
}

// recordOutcome forwards counter deltas to the stats store, fire-and-forget.
// Failures are logged and swallowed; in-memory game state is never affected.
func (h *Hub) recordOutcome(outcome *Outcome) {
	caught := outcome.VotedOutID == outcome.ImposterID

	for _, p := range outcome.Players {
		delta := stats.RoundOutcome{Played: 1}
		if p.Identity.ID == outcome.ImposterID {
			delta.WasImposter = 1
			if caught {
				delta.CaughtAsImposter = 1
			} else {
				delta.Won = 1
			}
		} else if caught {
			delta.Won = 1
		}

		playerID := p.Identity.ID
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := h.stats.ApplyRoundOutcome(ctx, playerID, delta); err != nil {
				logger.Warn().Err(err).Str("player", playerID).Msg("stats update failed")
			}
		}()
	}
}

func (h *Hub) broadcast(msg any) {
	for c := range h.clients {
		c.trySend(msg)
	}
}

func (h *Hub) broadcastRoomUpdate() {
	h.broadcast(RoomUpdateMessage{Type: "room_update", Room: h.room.PublicView()})
}
