package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/readoai/readoai-go/internal/metrics"
	"github.com/readoai/readoai-go/internal/middleware"
	"github.com/readoai/readoai-go/internal/model"
	"github.com/readoai/readoai-go/internal/service"
)

const maxBodyBytes = 1 << 20 // 1MB

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	service *service.AuthService
	metrics *metrics.Metrics
}

// NewAuthHandler creates a new AuthHandler. m may be nil.
func NewAuthHandler(svc *service.AuthService, m *metrics.Metrics) *AuthHandler {
	return &AuthHandler{service: svc, metrics: m}
}

// HandleRegister handles POST /api/auth/register requests.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if !decodeBody(w, r, &req) {
		h.metrics.RecordAuth("register", "bad_request")
		return
	}

	resp, err := h.service.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailTaken):
			h.metrics.RecordAuth("register", "email_taken")
			writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		case service.IsValidationError(err):
			h.metrics.RecordAuth("register", "bad_request")
			writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		default:
			h.serverError(w, "register", err)
		}
		return
	}

	h.metrics.RecordAuth("register", "success")
	writeJSON(w, http.StatusCreated, resp)
}

// HandleLogin handles POST /api/auth/login requests.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if !decodeBody(w, r, &req) {
		h.metrics.RecordAuth("login", "bad_request")
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.metrics.RecordAuth("login", "invalid_credentials")
			writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
			return
		}
		h.serverError(w, "login", err)
		return
	}

	h.metrics.RecordAuth("login", "success")
	writeJSON(w, http.StatusOK, resp)
}

// HandleMe handles GET /api/auth/me requests. It expects middleware.BearerAuth
// to have put the user ID in the request context.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		h.metrics.RecordAuth("me", "unauthorized")
		writeJSON(w, http.StatusUnauthorized, errorResponse(service.ErrUnauthorized.Error()))
		return
	}

	resp, err := h.service.CurrentUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			h.metrics.RecordAuth("me", "unauthorized")
			writeJSON(w, http.StatusUnauthorized, errorResponse(err.Error()))
			return
		}
		h.serverError(w, "me", err)
		return
	}

	h.metrics.RecordAuth("me", "success")
	writeJSON(w, http.StatusOK, resp)
}

// serverError logs the cause and answers with a generic 500.
func (h *AuthHandler) serverError(w http.ResponseWriter, operation string, err error) {
	h.metrics.RecordAuth(operation, "error")
	slog.Error("auth operation failed", "operation", operation, "error", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse("Server error"))
}

// decodeBody decodes a size-limited JSON body into v, writing the error
// response itself when decoding fails.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse("Request body too large"))
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse("Invalid request body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func errorResponse(msg string) model.MessageResponse {
	return model.MessageResponse{Message: msg}
}
