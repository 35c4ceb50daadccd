package handlers

import (
	"net/http"

	"tecnoroute/internal/services"

	"github.com/rs/zerolog"
)

type UserHandler struct {
	responder
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		responder:   responder{logger: logger},
		userService: userService,
	}
}

// GetMe returns the calling user's record.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	user, err := h.userService.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, user)
}
