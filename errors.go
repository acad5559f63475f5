/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import "errors"

var (
	ErrAlreadyInRoom    = errors.New("already in a room")
	ErrBadSettings      = errors.New("invalid settings")
	ErrEmptyMessage     = errors.New("message is empty")
	ErrInvalidTarget    = errors.New("vote target is not in this room")
	ErrMessageTooLong   = errors.New("message is too long")
	ErrNotAdmin         = errors.New("only the room admin may do that")
	ErrNotEnoughPlayers = errors.New("at least three players are required")
	ErrNotInRoom        = errors.New("not in a room")
	ErrRoomFull         = errors.New("room is full")
	ErrRoomNotFound     = errors.New("room not found")
	ErrWrongState       = errors.New("command not valid in the current game state")
)
