package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ancestrio/family-archive/internal"
	"github.com/ancestrio/family-archive/internal/transport"
	"github.com/ancestrio/family-archive/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.L()),
		Service:     svc,
	}
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var dto SignupDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.Service.Signup(dto)
	if err != nil {
		h.Logger.Error("signup failed", "error", err)
		switch {
		case errors.Is(err, ErrEmailTaken):
			h.WriteError(w, http.StatusConflict, "Email already registered")
		default:
			h.handleAuthError(w, err)
		}
		return
	}

	h.WriteJSON(w, http.StatusCreated, resp)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.Service.Authenticate(dto)
	if err != nil {
		h.Logger.Warn("authentication failed", "error", err)
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			h.WriteError(w, http.StatusUnauthorized, "Invalid email or password")
		case errors.Is(err, ErrAccountDisabled):
			h.WriteError(w, http.StatusForbidden, "Account disabled")
		default:
			h.handleAuthError(w, err)
		}
		return
	}

	h.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := h.Service.Logout(user.ID); err != nil {
		h.Logger.Error("logout failed", "error", err, "user_id", user.ID)
		h.HandleError(w, err)
		return
	}

	h.WriteMessage(w, http.StatusOK, "Logged out")
}

func (h *Handler) handleAuthError(w http.ResponseWriter, err error) {
	var validationErr ValidationError
	if errors.As(err, &validationErr) {
		h.WriteError(w, http.StatusBadRequest, validationErr.Msg)
		return
	}
	h.HandleError(w, err)
}

// Me returns the authenticated principal, permissions included, so the
// admin UI can gate its navigation.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	h.NoStore(w)
	h.WriteJSON(w, http.StatusOK, user)
}

// AuthMiddleware is the per-request session guard: verify the bearer
// token, reload the user, reject disabled accounts and stale sessions,
// then attach the user to context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			h.WriteError(w, http.StatusUnauthorized, "No token provided")
			return
		}

		claims, err := h.Service.ValidateAccessToken(token)
		if err != nil {
			h.WriteError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		user, err := h.Service.GetUserWithPermissions(claims.UserID)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				h.WriteError(w, http.StatusUnauthorized, "Invalid token")
				return
			}
			if appErr, ok := internal.IsAppError(err); ok {
				h.WriteError(w, appErr.StatusCode, appErr.Message)
				return
			}
			h.Logger.Error("auth middleware: failed to load user", "error", err, "user_id", claims.UserID)
			h.WriteError(w, http.StatusInternalServerError, "Auth failed")
			return
		}

		if !strings.EqualFold(user.Status, StatusActive) {
			h.WriteError(w, http.StatusForbidden, "Account disabled")
			return
		}

		// Single active session: sid minted at login must still match the
		// stored session token, otherwise a later login superseded it.
		if user.SessionToken == "" || user.SessionToken != claims.SessionID {
			h.WriteError(w, http.StatusUnauthorized, "Session expired")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
	})
}
