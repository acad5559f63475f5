package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partyline/imposter/auth"
	"github.com/partyline/imposter/stats"
)

func newTestAPI(t *testing.T) (*httprouter.Router, *stats.MemoryStore) {
	t.Helper()

	cfg := &Config{jwtSecret: "test-secret", jwtExpiry: time.Hour}
	svc := auth.NewService(auth.NewMemoryStore(), cfg.jwtSecret, cfg.jwtExpiry)
	statsStore := stats.NewMemoryStore()

	mux := httprouter.New()
	mux.POST("/api/register", serveRegister(cfg, svc))
	mux.POST("/api/login", serveLogin(cfg, svc))
	mux.GET("/api/stats/:id", serveStats(cfg, statsStore))

	return mux, statsStore
}

func postJSON(t *testing.T, mux *httprouter.Router, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	return rec
}

func TestRegisterEndpoint(t *testing.T) {
	mux, _ := newTestAPI(t)

	rec := postJSON(t, mux, "/api/register", `{"username": "alice", "password": "correct horse battery"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["token"])

	rec = postJSON(t, mux, "/api/register", `{"username": "alice", "password": "another password"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = postJSON(t, mux, "/api/register", `{"username": "bob", "password": "short"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, mux, "/api/register", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginEndpoint(t *testing.T) {
	mux, _ := newTestAPI(t)

	rec := postJSON(t, mux, "/api/register", `{"username": "alice", "password": "correct horse battery"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(t, mux, "/api/login", `{"username": "alice", "password": "correct horse battery"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["token"])

	rec = postJSON(t, mux, "/api/login", `{"username": "alice", "password": "wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(t, mux, "/api/login", `{"username": "nobody", "password": "correct horse battery"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStatsEndpoint(t *testing.T) {
	mux, statsStore := newTestAPI(t)

	require.NoError(t, statsStore.ApplyRoundOutcome(t.Context(), "player-1", stats.RoundOutcome{Played: 3, Won: 2}))

	req := httptest.NewRequest(http.MethodGet, "/api/stats/player-1", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var counters stats.Counters
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &counters))
	assert.Equal(t, int64(3), counters.GamesPlayed)
	assert.Equal(t, int64(2), counters.GamesWon)

	// unknown players read as all zeroes rather than 404
	req = httptest.NewRequest(http.MethodGet, "/api/stats/ghost", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &counters))
	assert.Equal(t, stats.Counters{}, counters)
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{port: 8080, jwtSecret: "secret", jwtExpiry: time.Hour}
	}

	require.NoError(t, valid().validate())

	cfg := valid()
	cfg.jwtSecret = ""
	assert.Error(t, cfg.validate())

	cfg = valid()
	cfg.port = 0
	assert.Error(t, cfg.validate())

	cfg = valid()
	cfg.tlsCert = "cert.pem"
	assert.Error(t, cfg.validate(), "tls cert without key must be rejected")

	cfg.tlsKey = "key.pem"
	assert.NoError(t, cfg.validate())

	cfg = valid()
	cfg.jwtExpiry = time.Second
	assert.Error(t, cfg.validate())
}
