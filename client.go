/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"strings"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/partyline/imposter/auth"
)

// TokenVerifier checks a bearer credential and recovers the identity it
// encodes. Satisfied by auth.Service.
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// client is one websocket connection. The identity and hub fields are owned
// by the connection's read goroutine; the hub never touches them.
type client struct {
	conn     *websocket.Conn
	send     chan any
	closed   chan struct{}
	limiter  *rate.Limiter
	manager  *Manager
	verifier TokenVerifier

	identity *auth.Identity
	hub      *Hub
}

func newClient(conn *websocket.Conn, manager *Manager, verifier TokenVerifier) *client {
	return &client{
		conn:     conn,
		send:     make(chan any, 16),
		closed:   make(chan struct{}),
		limiter:  rate.NewLimiter(rate.Limit(10), 20),
		manager:  manager,
		verifier: verifier,
	}
}

// trySend never blocks: a consumer too slow to drain its buffer has its
// connection closed, which unwinds through the read pump as a disconnect.
func (c *client) trySend(msg any) {
	select {
	case c.send <- msg:
	default:
		if c.conn != nil {
			_ = c.conn.Close()
		}
	}
}

func (c *client) sendError(message string) {
	c.trySend(ErrorMessage{Type: "error", Message: message})
}

func (c *client) readPump(cfg *Config) {
	defer func() {
		if c.hub != nil {
			select {
			case c.hub.unregister <- c:
			case <-c.hub.done:
			}
			c.hub = nil
		}
		_ = c.conn.Close()
		close(c.closed)
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		if !c.limiter.Allow() {
			c.sendError("too many commands, slow down")
			continue
		}

		c.dispatch(cfg, msg)
	}
}

func (c *client) writePump() {
	defer c.conn.Close()

	for {
		select {
		case msg := <-c.send:
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *client) dispatch(cfg *Config, msg ClientMessage) {
	if msg.Type == "authenticate" {
		c.handleAuthenticate(msg)
		return
	}

	if c.identity == nil {
		c.trySend(ErrorMessage{Type: "auth_error", Message: "authenticate first"})
		return
	}

	switch msg.Type {
	case "create_room":
		c.handleCreateRoom(cfg, msg)
	case "join_room":
		c.handleJoinRoom(msg)
	case "leave_room":
		c.handleLeaveRoom()
	default:
		if c.hub == nil {
			c.sendError(ErrNotInRoom.Error())
			return
		}
		select {
		case c.hub.commands <- command{c: c, msg: msg}:
		case <-c.hub.done:
			c.hub = nil
			c.sendError(ErrRoomNotFound.Error())
		}
	}
}

func (c *client) handleAuthenticate(msg ClientMessage) {
	identity, err := c.verifier.Verify(msg.Token)
	if err != nil {
		c.trySend(ErrorMessage{Type: "auth_error", Message: "invalid credential"})
		return
	}

	// Identity is fixed while in a room; re-authentication only takes effect
	// between rooms.
	if c.hub == nil {
		c.identity = &identity
	}

	c.trySend(AuthenticatedMessage{Type: "authenticated", Identity: *c.identity})
}

func (c *client) handleCreateRoom(cfg *Config, msg ClientMessage) {
	if c.hub != nil {
		c.sendError(ErrAlreadyInRoom.Error())
		return
	}

	name := strings.TrimSpace(msg.Name)
	if name == "" {
		name = c.identity.Name + "'s room"
	}
	if len(name) > maxRoomName {
		name = name[:maxRoomName]
	}

	hub := c.manager.CreateRoom(name)
	c.trySend(RoomCreatedMessage{Type: "room_created", RoomID: hub.room.ID})

	logf(cfg, "ROOMS: %s created room %s", c.identity.Name, hub.room.ID)

	c.join(hub)
}

func (c *client) handleJoinRoom(msg ClientMessage) {
	if c.hub != nil {
		c.sendError(ErrAlreadyInRoom.Error())
		return
	}

	hub := c.manager.Get(msg.RoomID)
	if hub == nil {
		c.sendError(ErrRoomNotFound.Error())
		return
	}

	c.join(hub)
}

func (c *client) join(h *Hub) {
	req := hubRequest{c: c, reply: make(chan error, 1)}

	select {
	case h.joins <- req:
	case <-h.done:
		c.sendError(ErrRoomNotFound.Error())
		return
	}

	if err := <-req.reply; err != nil {
		c.sendError(err.Error())
		return
	}

	c.hub = h
}

func (c *client) handleLeaveRoom() {
	if c.hub == nil {
		c.sendError(ErrNotInRoom.Error())
		return
	}

	req := hubRequest{c: c, reply: make(chan error, 1)}

	select {
	case c.hub.leaves <- req:
		<-req.reply
	case <-c.hub.done:
	}

	c.hub = nil
}
