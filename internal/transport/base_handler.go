package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ancestrio/family-archive/internal"
	"github.com/ancestrio/family-archive/pkg/logger"
)

// BaseHandler provides common functionality for HTTP handlers.
type BaseHandler struct {
	Logger *slog.Logger
}

func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.L()
	}
	return &BaseHandler{Logger: lg}
}

// WriteJSON writes a JSON response.
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

// WriteMessage writes the uniform {message} payload.
func (h *BaseHandler) WriteMessage(w http.ResponseWriter, status int, message string) {
	h.WriteJSON(w, status, map[string]string{"message": message})
}

// WriteError writes an error response as {message} with the given status.
func (h *BaseHandler) WriteError(w http.ResponseWriter, status int, message string) {
	if status >= http.StatusInternalServerError {
		h.Logger.Error("http error", "status", status, "message", message)
	} else {
		h.Logger.Warn("http error", "status", status, "message", message)
	}
	h.WriteJSON(w, status, map[string]string{"message": message})
}

// HandleError maps service errors to the HTTP error contract. AppErrors
// carry their own status; anything else is a generic 500 so diagnostic
// detail stays in the logs.
func (h *BaseHandler) HandleError(w http.ResponseWriter, err error) {
	if appErr, ok := internal.IsAppError(err); ok {
		if appErr.Cause != nil {
			h.Logger.Error("request failed", "status", appErr.StatusCode, "message", appErr.Message, "cause", appErr.Cause)
		}
		h.WriteError(w, appErr.StatusCode, appErr.Message)
		return
	}
	h.Logger.Error("unhandled service error", "error", err)
	h.WriteError(w, http.StatusInternalServerError, "Internal server error")
}

// NoStore marks a response as uncacheable; list endpoints use it so admin
// and owner views never serve stale rows.
func (h *BaseHandler) NoStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
}

// ExtractTokenFromHeader extracts the Bearer token from the Authorization
// header, returning "" when absent or malformed.
func (h *BaseHandler) ExtractTokenFromHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
		return ""
	}
	return authHeader[7:]
}
