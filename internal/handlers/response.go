package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"tecnoroute/internal/middleware"
	"tecnoroute/internal/services"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// responder carries the JSON helpers every handler shares. Errors follow
// {"error": code, "detail": message}.
type responder struct {
	logger zerolog.Logger
}

func (h responder) respondWithError(w http.ResponseWriter, code int, errorCode, detail string) {
	h.respondWithJSON(w, code, middleware.ErrorResponse{
		Error:  errorCode,
		Detail: detail,
	})
}

func (h responder) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

// respondWithServiceError maps service sentinels onto HTTP statuses.
func (h responder) respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, services.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, services.ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, services.ErrVersionMismatch):
		status, code = http.StatusPreconditionFailed, "version_mismatch"
	case errors.Is(err, services.ErrAlreadyClaimed):
		status, code = http.StatusConflict, "already_claimed"
	case errors.Is(err, services.ErrDriverBusy):
		status, code = http.StatusConflict, "driver_busy"
	case errors.Is(err, services.ErrNotEditable), errors.Is(err, services.ErrInvalidTransition):
		status, code = http.StatusConflict, "invalid_transition"
	case errors.Is(err, services.ErrInvalidCredentials):
		status, code = http.StatusBadRequest, "authentication_failed"
	case errors.Is(err, services.ErrEmailTaken):
		status, code = http.StatusBadRequest, "email_taken"
	case errors.Is(err, services.ErrInsufficientStock):
		status, code = http.StatusBadRequest, "insufficient_stock"
	case errors.Is(err, services.ErrEmptyCart):
		status, code = http.StatusBadRequest, "empty_cart"
	case errors.Is(err, services.ErrInvalidInput):
		status, code = http.StatusBadRequest, "invalid_request"
	}

	detail := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(r)).
			Str("path", r.URL.Path).
			Msg("Request failed")
		detail = "Ocurrió un error interno."
	}
	h.respondWithError(w, status, code, detail)
}

func (h responder) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "invalid_request", "Cuerpo de la solicitud inválido.")
		return false
	}
	return true
}

func (h responder) pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		h.respondWithError(w, http.StatusBadRequest, "invalid_id", "Identificador inválido.")
		return 0, false
	}
	return id, true
}

func (h responder) claims(w http.ResponseWriter, r *http.Request) (*services.Claims, bool) {
	claims, ok := middleware.GetClaims(r)
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, "not_authenticated", "Usuario no autenticado.")
		return nil, false
	}
	return claims, true
}
