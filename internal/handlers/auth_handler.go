package handlers

import (
	"net/http"

	"tecnoroute/internal/models"
	"tecnoroute/internal/services"

	"github.com/rs/zerolog"
)

type AuthHandler struct {
	responder
	userService *services.UserService
	authService *services.AuthService
}

func NewAuthHandler(userService *services.UserService, authService *services.AuthService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		responder:   responder{logger: logger},
		userService: userService,
		authService: authService,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.userService.Register(r.Context(), &req)
	if err != nil {
		h.logger.Warn().Err(err).Str("email", req.Email).Msg("Registration failed")
		h.respondWithServiceError(w, r, err)
		return
	}

	h.respondWithAuth(w, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.userService.Authenticate(r.Context(), &req)
	if err != nil {
		h.logger.Warn().Str("email", req.Email).Msg("Login failed")
		h.respondWithServiceError(w, r, err)
		return
	}

	h.respondWithAuth(w, http.StatusOK, user)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	user, err := h.userService.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	h.respondWithAuth(w, http.StatusOK, user)
}

func (h *AuthHandler) respondWithAuth(w http.ResponseWriter, code int, user *models.User) {
	token, err := h.authService.GenerateToken(user)
	if err != nil {
		h.logger.Error().Err(err).Msg("Token generation failed")
		h.respondWithError(w, http.StatusInternalServerError, "token_generation_failed", "No se pudo generar el token.")
		return
	}

	h.respondWithJSON(w, code, models.AuthResponse{
		User:  user,
		Token: token,
	})
}
