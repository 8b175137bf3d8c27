package main

import (
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	lmbridge "github.com/Paranoid-AF/lmbridge"
	"github.com/Paranoid-AF/lmbridge/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     sameOrigin,
}

// sameOrigin accepts requests without an Origin header (non-browser
// clients) and browser requests from this host.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// NewRouter builds the HTTP surface:
//
//	GET  /health       liveness probe
//	POST /api/command  one Request in, one Response out
//	GET  /ws           websocket, one session per connection
func NewRouter(sessions *session.Registry) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/api/command", commandHandler(sessions))
	r.Get("/ws", websocketHandler(sessions))

	return r
}

func commandHandler(sessions *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !sameOrigin(r) {
			slog.Warn("rejected cross-origin command", "origin", r.Header.Get("Origin"))
			writeJSON(w, http.StatusForbidden, invalidRequest("", "cross-origin requests are not allowed"))
			return
		}
		if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mt != "application/json" {
			writeJSON(w, http.StatusUnsupportedMediaType, invalidRequest("", "content type must be application/json"))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxLineBytes)

		var req lmbridge.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			slog.Warn("invalid request", "error", err)
			writeJSON(w, http.StatusBadRequest, invalidRequest("", "invalid JSON: "+err.Error()))
			return
		}

		writeJSON(w, http.StatusOK, handleRequest(r.Context(), sessions, &req, ""))
	}
}

// websocketHandler serves one session per connection. The id comes from
// ?session= or is generated; requests naming another session_id are
// routed to that session instead.
func websocketHandler(sessions *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()
		conn.SetReadLimit(maxLineBytes)

		id := sessions.Get(r.URL.Query().Get("session")).ID()
		slog.Info("websocket connected", "session", id)

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					slog.Debug("websocket read failed", "session", id, "error", err)
				}
				break
			}

			resp := handleRaw(r.Context(), sessions, msg, id)
			if err := conn.WriteJSON(resp); err != nil {
				slog.Debug("websocket write failed", "session", id, "error", err)
				break
			}
		}

		slog.Info("websocket disconnected", "session", id)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to write response", "error", err)
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			slog.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
				"remote", r.RemoteAddr,
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
