/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/partyline/imposter/auth"
	"github.com/partyline/imposter/stats"
)

const timeout time.Duration = 10 * time.Second

func humanReadableSize(bytes int64) string {
	const unit int64 = 1000
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := unit, 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB",
		float64(bytes)/float64(div),
		"kMGTPE"[exp])
}

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Permissions-Policy", "geolocation=(), midi=(), sync-xhr=(), microphone=(), camera=(), magnetometer=(), gyroscope=(), fullscreen=(), payment=()")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'self'")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	} else if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

func writeJSON(cfg *Config, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	securityHeaders(cfg, w)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(cfg *Config, w http.ResponseWriter, status int, message string) {
	writeJSON(cfg, w, status, map[string]string{"error": message})
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func serveRegister(cfg *Config, svc *auth.Service) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(cfg, w, http.StatusBadRequest, "invalid request body")

			return
		}

		token, err := svc.Register(r.Context(), req.Username, req.Password)
		switch {
		case errors.Is(err, auth.ErrDuplicateUsername):
			writeJSONError(cfg, w, http.StatusConflict, err.Error())
		case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrBadUsername):
			writeJSONError(cfg, w, http.StatusBadRequest, err.Error())
		case err != nil:
			logger.Error().Err(err).Msg("registration failed")
			writeJSONError(cfg, w, http.StatusInternalServerError, "registration failed")
		default:
			logf(cfg, "AUTH: Registered %q from %s", strings.TrimSpace(req.Username), realIP(r))
			writeJSON(cfg, w, http.StatusCreated, map[string]string{"token": token})
		}
	}
}

func serveLogin(cfg *Config, svc *auth.Service) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(cfg, w, http.StatusBadRequest, "invalid request body")

			return
		}

		token, err := svc.Login(r.Context(), req.Username, req.Password)
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeJSONError(cfg, w, http.StatusUnauthorized, err.Error())
		case err != nil:
			logger.Error().Err(err).Msg("login failed")
			writeJSONError(cfg, w, http.StatusInternalServerError, "login failed")
		default:
			logf(cfg, "AUTH: Login by %q from %s", strings.TrimSpace(req.Username), realIP(r))
			writeJSON(cfg, w, http.StatusOK, map[string]string{"token": token})
		}
	}
}

func serveStats(cfg *Config, store stats.Store) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		counters, err := store.Read(r.Context(), ps.ByName("id"))
		if err != nil {
			logger.Error().Err(err).Msg("stats read failed")
			writeJSONError(cfg, w, http.StatusInternalServerError, "stats unavailable")

			return
		}

		writeJSON(cfg, w, http.StatusOK, counters)
	}
}

func serveHealthCheck(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)

		_, err := w.Write([]byte("Ok\n"))
		if err != nil {
			errs <- err

			return
		}
	}
}

func serveRobots(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		data := `User-agent: *
Disallow: /`

		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		_, err := w.Write([]byte(data))
		if err != nil {
			errs <- err

			return
		}
	}
}

func serveVersion(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusOK)

		written, err := w.Write([]byte("imposter v" + releaseVersion + "\n"))
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Version page (%s) to %s in %s",
			humanReadableSize(int64(written)),
			realIP(r),
			sinceRounded(startTime),
		)
	}
}

func ServePage(ctx context.Context, cfg *Config, args []string) error {
	setLogLevel(cfg)

	logf(cfg, "START: imposter v%s", releaseVersion)

	catalog, err := loadCatalog()
	if err != nil {
		return err
	}

	var (
		users      auth.UserStore
		statsStore stats.Store
	)

	if cfg.databaseURL != "" {
		if err := runMigrations(cfg.databaseURL); err != nil {
			return err
		}

		pool, err := openPool(ctx, cfg.databaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		users = auth.NewPostgresStore(pool)
		statsStore = stats.NewPostgresStore(pool)

		logf(cfg, "START: Using postgres stores")
	} else {
		users = auth.NewMemoryStore()
		statsStore = stats.NewMemoryStore()

		logf(cfg, "START: Using in-memory stores")
	}

	authSvc := auth.NewService(users, cfg.jwtSecret, cfg.jwtExpiry)
	manager := newManager(cfg, catalog, statsStore)

	mux := httprouter.New()

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           mux,
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
	}

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		logger.Error().Interface("panic", i).Str("path", r.URL.Path).Msg("recovered from handler")
		writeJSONError(cfg, w, http.StatusInternalServerError, "internal server error")
	}

	errs := make(chan error, 64)

	go func() {
		for err := range errs {
			logger.Warn().Err(err).Msg("handler write failed")
		}
	}()

	cfg.prefix = strings.TrimSuffix(cfg.prefix, "/")

	mux.GET(cfg.prefix+"/healthz", serveHealthCheck(cfg, errs))

	mux.GET(cfg.prefix+"/robots.txt", serveRobots(cfg, errs))

	mux.GET(cfg.prefix+"/version", serveVersion(cfg, errs))

	mux.POST(cfg.prefix+"/api/register", serveRegister(cfg, authSvc))

	mux.POST(cfg.prefix+"/api/login", serveLogin(cfg, authSvc))

	mux.GET(cfg.prefix+"/api/stats/:id", serveStats(cfg, statsStore))

	mux.GET(cfg.prefix+"/ws", serveWS(cfg, manager, authSvc))

	mux.GET(cfg.prefix+"/room/:roomid/qr", serveRoomQR(cfg, manager))

	if cfg.profile {
		registerProfileHandlers(cfg, mux)
	}

	go func() {
		var err error
		if cfg.tlsKey != "" && cfg.tlsCert != "" {
			logf(cfg, "SERVE: Listening on %s://%s%s/", cfg.scheme(), srv.Addr, cfg.prefix)
			err = srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			logf(cfg, "SERVE: Listening on %s://%s%s/", cfg.scheme(), srv.Addr, cfg.prefix)
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Printf("%s | ERROR: %v\n", time.Now().Format(logDate), err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	return nil
}
