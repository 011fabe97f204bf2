// Package api serves the terminal tools as a REST API with an OpenAPI
// description.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mt5-bridge/internal/client"
	apperrors "mt5-bridge/internal/errors"
	"mt5-bridge/internal/logging"
	"mt5-bridge/internal/orders"
	"mt5-bridge/internal/security"
	"mt5-bridge/internal/tools"
)

// RequestIDHeader echoes the request id assigned to every API call.
const RequestIDHeader = "X-Request-Id"

const maxBodySize = 1 << 20

// Options configures a Server.
type Options struct {
	Prefix  string
	Title   string
	Version string
	Logger  zerolog.Logger
}

// Server exposes the tool registry over HTTP.
type Server struct {
	client   *client.Client
	registry *tools.Registry
	opts     Options
	log      zerolog.Logger
}

// NewServer creates an API server over registry.
func NewServer(c *client.Client, registry *tools.Registry, opts Options) *Server {
	if opts.Prefix == "" {
		opts.Prefix = "/api/v1"
	}
	opts.Prefix = "/" + strings.Trim(opts.Prefix, "/")
	if opts.Title == "" {
		opts.Title = "MetaTrader 5 Bridge API"
	}
	return &Server{
		client:   c,
		registry: registry,
		opts:     opts,
		log:      opts.Logger.With().Str("component", "api").Logger(),
	}
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID, middleware.RealIP, s.accessLog, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/openapi.json", s.handleOpenAPI)

	r.Route(s.opts.Prefix, func(api chi.Router) {
		for _, route := range Routes {
			api.MethodFunc(route.Method, route.Pattern, s.toolHandler(route))
		}
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := logging.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("request_id", logging.RequestID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	state := "ok"
	if !s.client.IsConnected(r.Context()) {
		status = http.StatusServiceUnavailable
		state = "disconnected"
	}
	body := map[string]interface{}{
		"status":          state,
		"connected":       state == "ok",
		"trading_enabled": !s.client.Access.IsReadOnly(),
		"version":         s.opts.Version,
		"time":            time.Now().UTC().Format(time.RFC3339),
	}
	if s.client.Access.IsReadOnly() {
		blocked := make(map[string]string)
		for _, op := range security.WriteOperations() {
			blocked[string(op)] = security.OperationDescription(op)
		}
		body["blocked_operations"] = blocked
	}
	writeJSON(w, status, body)
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	doc, err := s.OpenAPI()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) toolHandler(route Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := requestParams(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		out, err := s.registry.Call(r.Context(), route.Tool, params)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		status := http.StatusOK
		if out.IsError {
			status = http.StatusUnprocessableEntity
			if res, ok := out.Data.(*orders.Result); ok {
				status = resultStatus(res)
			}
		}
		writeJSON(w, status, payload(out.Data))
	}
}

// requestParams merges the JSON body, the query string and the path
// parameters, later sources overriding earlier ones.
func requestParams(r *http.Request) (map[string]interface{}, error) {
	params := make(map[string]interface{})

	if r.Body != nil && r.Method != http.MethodGet {
		data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		if err != nil {
			return nil, fmt.Errorf("failed to read body: %w", err)
		}
		if len(bytes.TrimSpace(data)) > 0 {
			dec := json.NewDecoder(bytes.NewReader(data))
			dec.UseNumber()
			if err := dec.Decode(&params); err != nil {
				return nil, fmt.Errorf("invalid JSON body: %w", err)
			}
		}
	}

	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		for i, key := range rctx.URLParams.Keys {
			if key == "*" || i >= len(rctx.URLParams.Values) {
				continue
			}
			params[key] = rctx.URLParams.Values[i]
		}
	}
	return params, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrInputValidation), errors.Is(err, apperrors.ErrInvalidTimeframe):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrSymbolNotFound), errors.Is(err, tools.ErrToolNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrReadOnlyMode):
		return http.StatusForbidden
	case errors.Is(err, apperrors.ErrConnection), errors.Is(err, apperrors.ErrNotConnected):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func resultStatus(res *orders.Result) int {
	switch res.Reason {
	case orders.ReasonNotFound:
		return http.StatusNotFound
	case orders.ReasonTradingDisabled:
		return http.StatusForbidden
	case orders.ReasonInvalidRequest, orders.ReasonInvalidSymbol, orders.ReasonInvalidVolume,
		orders.ReasonInvalidPrice, orders.ReasonInvalidStops, orders.ReasonInvalidType,
		orders.ReasonStopLossSide, orders.ReasonInvalidTicket:
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}

// payload keeps empty tables as [] rather than null.
func payload(data interface{}) interface{} {
	if data == nil {
		return []interface{}{}
	}
	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Slice && v.IsNil() {
		return []interface{}{}
	}
	return data
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
