// Package httpserver exposes the relay's HTTP API: session issuance and widget action logging.
package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/dojo-relay/internal/errs"
	"github.com/and161185/dojo-relay/internal/model"
	"github.com/and161185/dojo-relay/internal/server/edge"
	"github.com/and161185/dojo-relay/internal/service"
	"github.com/and161185/dojo-relay/internal/upstream"
)

// Routes served by the relay.
const (
	SessionPath      = "/api/chatkit/session"
	WidgetActionPath = "/api/widget-action"
)

// User-facing messages. These are the only strings a failure may show.
const (
	msgTechnical   = "We're experiencing technical difficulties. Please try again later."
	msgRateLimited = "Too many requests. Please try again later."
	msgUnavailable = "The chat service is temporarily unavailable. Please try again later."
	msgNetwork     = "Unable to reach the chat service. Please try again later."
	msgInvalidJSON = "Request body must be valid JSON"
	msgUserID      = "userId is required"
	msgUnexpected  = "An unexpected error occurred"
)

const defaultMaxBody = 64 << 10

// Server wires services into HTTP handlers.
type Server struct {
	sessions service.SessionService
	actions  service.ActionLogService
	log      *zap.Logger
	maxBody  int64
}

// New constructs the HTTP server handlers with injected services.
func New(sessions service.SessionService, actions service.ActionLogService, log *zap.Logger, maxBody int64) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	return &Server{sessions: sessions, actions: actions, log: log, maxBody: maxBody}
}

// Handler returns the routed handler with request-id, logging and recovery middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+SessionPath, s.CreateSession)
	mux.HandleFunc("POST "+WidgetActionPath, s.LogWidgetAction)
	return chain(mux, RequestID, Logging(s.log), Recover(s.log))
}

// --- Session ---

// CreateSession obtains a ChatKit session for the posted userId.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	// configuration first: a misconfigured relay never reads the body
	if !s.sessions.Configured() {
		s.log.Error("session requested but upstream secret is not configured")
		s.writeFailure(w, errs.ErrConfig)
		return
	}

	userID, err := s.decodeUserID(w, r)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	resp, err := s.sessions.Issue(r.Context(), userID)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}

// decodeUserID distinguishes undecodable bodies (ErrInvalidRequest) from
// decodable bodies without a usable userId (ErrValidation).
func (s *Server) decodeUserID(w http.ResponseWriter, r *http.Request) (string, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %w", errs.ErrInvalidRequest, err)
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("%w: %w", errs.ErrInvalidRequest, err)
	}
	obj, _ := doc.(map[string]any)
	userID, _ := obj["userId"].(string)
	if strings.TrimSpace(userID) == "" {
		return "", errs.ErrValidation
	}
	return userID, nil
}

// sessionFailure is the single translation point from internal errors to
// user-safe categories. Upstream 401 is reported as an internal problem.
func sessionFailure(err error) (int, model.ErrorResponse) {
	var se *upstream.StatusError
	switch {
	case errors.Is(err, errs.ErrConfig):
		return http.StatusInternalServerError, model.ErrorResponse{Error: "Server configuration error", Message: msgTechnical}
	case errors.Is(err, errs.ErrInvalidRequest):
		return http.StatusBadRequest, model.ErrorResponse{Error: "Invalid request", Message: msgInvalidJSON}
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest, model.ErrorResponse{Error: "Validation error", Message: msgUserID}
	case errors.Is(err, errs.ErrUpstreamAuth):
		return http.StatusInternalServerError, model.ErrorResponse{Error: "Authentication error", Message: msgTechnical}
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests, model.ErrorResponse{Error: "Rate limit error", Message: msgRateLimited}
	case errors.Is(err, errs.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable, model.ErrorResponse{Error: "Service unavailable", Message: msgUnavailable}
	case errors.Is(err, errs.ErrUpstream) && errors.As(err, &se):
		text := se.StatusText
		if text == "" {
			text = fmt.Sprintf("status %d", se.Status)
		}
		// only client errors are forwarded; 1xx/3xx cannot carry the error body
		code := se.Status
		if code < 400 || code > 499 {
			code = http.StatusBadGateway
		}
		return code, model.ErrorResponse{Error: "Upstream error", Message: "Failed to create session: " + text}
	case errors.Is(err, errs.ErrNetwork):
		return http.StatusServiceUnavailable, model.ErrorResponse{Error: "Network error", Message: msgNetwork}
	default:
		return http.StatusInternalServerError, model.ErrorResponse{Error: "Internal server error", Message: msgUnexpected}
	}
}

func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	status, body := sessionFailure(err)
	if status >= 500 {
		s.log.Error("session request failed", zap.Int("status", status), zap.Error(err))
	} else {
		s.log.Warn("session request rejected", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, body)
}

// --- Widget actions ---

// LogWidgetAction records a widget action and always acknowledges it.
func (s *Server) LogWidgetAction(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("panic in widget action sink", edge.Panic(r.Context(), WidgetActionPath, rec)...)
			writeJSON(w, http.StatusOK, model.WidgetActionAck{Logged: true})
		}
	}()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		s.log.Warn("widget action body unreadable", zap.Error(err))
	} else {
		s.actions.Record(r.Context(), body)
	}
	writeJSON(w, http.StatusOK, model.WidgetActionAck{Logged: true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
