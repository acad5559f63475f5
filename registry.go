/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/partyline/imposter/stats"
)

const (
	roomIDLength = 6
	// Excludes ambiguous characters so codes survive being read out loud.
	roomIDAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// Manager is the process-wide room registry: every hub lives here from
// creation until its room empties out.
type Manager struct {
	cfg   *Config
	stats stats.Store

	catalog *Catalog
	genID   func() string

	mu   sync.Mutex
	hubs map[string]*Hub
}

func newManager(cfg *Config, catalog *Catalog, statsStore stats.Store) *Manager {
	return &Manager{
		cfg:     cfg,
		stats:   statsStore,
		catalog: catalog,
		genID:   randomRoomID,
		hubs:    make(map[string]*Hub),
	}
}

func randomRoomID() string {
	buf := make([]byte, roomIDLength)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}

	out := make([]byte, roomIDLength)
	for i := range out {
		out[i] = roomIDAlphabet[int(buf[i])%len(roomIDAlphabet)]
	}

	return string(out)
}

// CreateRoom generates an id that is not currently live (re-rolling on
// collision), registers a new hub, and starts its goroutine.
func (m *Manager) CreateRoom(name string) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()

	var id string
	for {
		id = m.genID()
		if _, exists := m.hubs[id]; !exists {
			break
		}
	}

	hub := newHub(m.cfg, NewRoom(id, name, m.catalog), m, m.stats)
	m.hubs[id] = hub
	go hub.run()

	return hub
}

// Get looks up a live room by its case-normalized id.
func (m *Manager) Get(id string) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.hubs[strings.ToUpper(strings.TrimSpace(id))]
}

func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.hubs, id)
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.hubs)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func serveWS(cfg *Config, manager *Manager, verifier TokenVerifier) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "WS: Upgrade error from %s: %v", realIP(r), err)

			return
		}

		logf(cfg, "WS: Connection from %s", realIP(r))

		c := newClient(conn, manager, verifier)

		go c.writePump()
		c.readPump(cfg)
	}
}

// serveRoomQR returns a PNG QR code encoding the room's share URL, so a code
// on one phone can pull the whole table into the same room.
func serveRoomQR(cfg *Config, manager *Manager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		roomID := ps.ByName("roomid")
		if manager.Get(roomID) == nil {
			http.Error(w, "room not found", http.StatusNotFound)

			return
		}

		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + strings.TrimSuffix(r.URL.Path, "/qr")

		const qrSize = 320
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)
		_, _ = w.Write(png)
	}
}
