package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/planfit/planfit/internal/telemetry/tracing"
	"github.com/planfit/planfit/pkg"

	log "github.com/sirupsen/logrus"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
	}
}

type LoginRequest struct {
	UserID string `json:"userId"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

// HandleLogin issues a session token for an identity already verified
// upstream. Guest mode needs no login at all, tokenless requests resolve to
// the guest user.
func (handler *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.auth.login")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("login, unmarshal json params: %s", err)
		http.Error(w, "login failed", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.UserID == GuestUserID {
		http.Error(w, "error, invalid user id", http.StatusBadRequest)
		return
	}

	token, err := handler.service.Login(ctx, req.UserID)
	if err != nil {
		log.Errorf("login for user %s: %s", req.UserID, err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	respJson, err := json.Marshal(LoginResponse{Token: token})
	if err != nil {
		log.Errorf("failed to marshal login response: %s", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, http.StatusOK)
}

func (handler *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.auth.logout")
	defer span.End()

	token := r.Header.Get("X-PLANFIT-TOKEN")
	if token == "" {
		http.Error(w, "error, token empty", http.StatusBadRequest)
		return
	}

	if err := handler.service.Logout(ctx, token); err != nil {
		if errors.Is(err, ErrNotLoggedIn) {
			http.Error(w, "not logged in", http.StatusUnauthorized)
			return
		}
		log.Errorf("logout: %s", err)
		http.Error(w, "logout failed", http.StatusInternalServerError)
		return
	}

	pkg.WriteTextResponseOK(w, "logged-out")
}
