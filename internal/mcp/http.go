package mcp

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"mt5-bridge/internal/logging"
)

// SessionHeader carries the session id of the streamable HTTP transport.
const SessionHeader = "Mcp-Session-Id"

const maxBodySize = 4 * 1024 * 1024

// SessionIdleTimeout is how long a session survives without requests.
const SessionIdleTimeout = 30 * time.Minute

type httpTransport struct {
	server *Server
	now    func() time.Time
	idle   time.Duration

	mu       sync.Mutex
	sessions map[string]time.Time // id -> last seen
}

func newHTTPTransport(s *Server, now func() time.Time, idle time.Duration) *httpTransport {
	return &httpTransport{server: s, now: now, idle: idle, sessions: make(map[string]time.Time)}
}

// NewHTTPHandler returns the streamable HTTP transport at path. Each response
// is a single JSON document; the server never streams.
func (s *Server) NewHTTPHandler(path string) http.Handler {
	if path == "" {
		path = "/mcp"
	}
	return newHTTPTransport(s, time.Now, SessionIdleTimeout).router(path)
}

func (t *httpTransport) router(path string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post(path, t.handlePost)
	r.Delete(path, t.handleDelete)
	r.Get(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", "POST, DELETE")
		writeError(w, http.StatusMethodNotAllowed, "server does not offer an event stream")
	})
	return r
}

func (t *httpTransport) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeRPC(w, http.StatusBadRequest, &Response{
			JSONRPC: "2.0",
			ID:      json.RawMessage("null"),
			Error:   rpcError(CodeParseError, "Parse error: %v", err),
		})
		return
	}

	ctx := r.Context()
	if id := middleware.GetReqID(ctx); id != "" {
		ctx = logging.WithRequestID(ctx, id)
	} else {
		ctx = logging.WithRequestID(ctx, uuid.NewString())
	}

	if req.Method == "initialize" {
		resp := t.server.Handle(ctx, &req)
		if resp == nil {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		if resp.Error == nil {
			w.Header().Set(SessionHeader, t.open())
		}
		writeRPC(w, http.StatusOK, resp)
		return
	}

	id := r.Header.Get(SessionHeader)
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing "+SessionHeader+" header")
		return
	}
	if !t.touch(id) {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	w.Header().Set(SessionHeader, id)

	resp := t.server.Handle(ctx, &req)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeRPC(w, http.StatusOK, resp)
}

func (t *httpTransport) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing "+SessionHeader+" header")
		return
	}
	t.mu.Lock()
	t.expireLocked()
	_, ok := t.sessions[id]
	delete(t.sessions, id)
	t.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	t.server.log.Info().Str("session", id).Msg("Session closed")
	w.WriteHeader(http.StatusNoContent)
}

func (t *httpTransport) open() string {
	id := uuid.NewString()
	t.mu.Lock()
	t.expireLocked()
	t.sessions[id] = t.now()
	t.mu.Unlock()
	t.server.log.Info().Str("session", id).Msg("Session opened")
	return id
}

func (t *httpTransport) touch(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.expireLocked()
	if _, ok := t.sessions[id]; !ok {
		return false
	}
	t.sessions[id] = t.now()
	return true
}

// expireLocked drops sessions idle for longer than t.idle.
func (t *httpTransport) expireLocked() {
	if t.idle <= 0 {
		return
	}
	cutoff := t.now().Add(-t.idle)
	for id, seen := range t.sessions {
		if seen.Before(cutoff) {
			delete(t.sessions, id)
			t.server.log.Info().Str("session", id).Msg("Session expired")
		}
	}
}

func writeRPC(w http.ResponseWriter, status int, resp *Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
