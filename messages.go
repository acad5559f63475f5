/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/partyline/imposter/auth"
)

// decodeSettingsPatch parses a partial settings update strictly: unknown keys
// are rejected rather than silently merged.
func decodeSettingsPatch(raw json.RawMessage) (SettingsPatch, error) {
	if len(raw) == 0 {
		return SettingsPatch{}, errors.New("missing settings")
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()

	var patch SettingsPatch
	if err := decoder.Decode(&patch); err != nil {
		return SettingsPatch{}, err
	}

	return patch, nil
}

// ClientMessage is the single inbound envelope; Type selects which optional
// fields are meaningful.
type ClientMessage struct {
	Type     string          `json:"type"`               // "authenticate", "create_room", "join_room", "leave_room", "update_settings", "start_game", "skip_vote", "vote", "message"
	Token    string          `json:"token,omitempty"`    // authenticate
	Name     string          `json:"name,omitempty"`     // create_room
	RoomID   string          `json:"room_id,omitempty"`  // join_room
	Settings json.RawMessage `json:"settings,omitempty"` // update_settings
	Target   string          `json:"target,omitempty"`   // vote
	Text     string          `json:"text,omitempty"`     // message
}

type AuthenticatedMessage struct {
	Type     string        `json:"type"` // "authenticated"
	Identity auth.Identity `json:"identity"`
}

// ErrorMessage covers both "error" and "auth_error".
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type RoomCreatedMessage struct {
	Type   string `json:"type"` // "room_created"
	RoomID string `json:"room_id"`
}

type RoomJoinedMessage struct {
	Type   string `json:"type"` // "room_joined"
	RoomID string `json:"room_id"`
}

type RoomUpdateMessage struct {
	Type string   `json:"type"` // "room_update"
	Room RoomView `json:"room"`
}

type ChatMessage struct {
	Type      string    `json:"type"` // "chat"
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"` // "system" or "user"
}

// GameStartedMessage is sent privately to each player. The imposter gets no
// word and a true flag; everyone else gets the word.
type GameStartedMessage struct {
	Type       string `json:"type"` // "game_started"
	Word       string `json:"word,omitempty"`
	IsImposter bool   `json:"is_imposter"`
	TimeLimit  int    `json:"time_limit_seconds"`
}

type VotingPhaseMessage struct {
	Type    string   `json:"type"` // "voting_phase"
	Players []Player `json:"players"`
}

type GameEndedMessage struct {
	Type        string `json:"type"` // "game_ended"
	Word        string `json:"word"`
	ImposterID  string `json:"imposter_id"`
	VotedOutID  string `json:"voted_out_id,omitempty"`
	ImposterWon bool   `json:"imposter_won"`
}

func systemChat(text string) ChatMessage {
	return ChatMessage{
		Type:      "chat",
		Sender:    "system",
		Text:      text,
		Timestamp: time.Now(),
		Kind:      "system",
	}
}
