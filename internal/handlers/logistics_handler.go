package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"tecnoroute/internal/models"
	"tecnoroute/internal/services"

	"github.com/rs/zerolog"
)

// ResourceHandler exposes one logistics collection as list/detail endpoints.
type ResourceHandler[T any] struct {
	responder
	collection *services.Collection[T]
}

func NewResourceHandler[T any](collection *services.Collection[T], logger zerolog.Logger) *ResourceHandler[T] {
	return &ResourceHandler[T]{
		responder:  responder{logger: logger},
		collection: collection,
	}
}

func (h *ResourceHandler[T]) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.collection.List(r.Context())
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, items)
}

func (h *ResourceHandler[T]) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	item, err := h.collection.Get(r.Context(), id)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, item)
}

func (h *ResourceHandler[T]) Create(w http.ResponseWriter, r *http.Request) {
	var in T
	if !h.decode(w, r, &in) {
		return
	}
	item, err := h.collection.Create(r.Context(), in)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, item)
}

// Update serves both PUT and PATCH; only the fields present are changed.
func (h *ResourceHandler[T]) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	patch, err := io.ReadAll(r.Body)
	if err != nil || !json.Valid(patch) {
		h.respondWithError(w, http.StatusBadRequest, "invalid_request", "Cuerpo de la solicitud inválido.")
		return
	}
	item, err := h.collection.Update(r.Context(), id, patch)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, item)
}

func (h *ResourceHandler[T]) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.collection.Delete(r.Context(), id); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LogisticsHandler serves the non-CRUD logistics endpoints.
type LogisticsHandler struct {
	responder
	logistics *services.LogisticsService
}

func NewLogisticsHandler(logistics *services.LogisticsService, logger zerolog.Logger) *LogisticsHandler {
	return &LogisticsHandler{
		responder: responder{logger: logger},
		logistics: logistics,
	}
}

func (h *LogisticsHandler) AvailableDrivers(w http.ResponseWriter, r *http.Request) {
	drivers, err := h.logistics.AvailableDrivers(r.Context())
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, drivers)
}

// DriverProfile returns the driver record linked to the caller.
func (h *LogisticsHandler) DriverProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	var (
		driver *models.Driver
		err    error
	)
	if claims.DriverID != nil {
		driver, err = h.logistics.Drivers.Get(r.Context(), *claims.DriverID)
	} else {
		driver, err = h.logistics.DriverByUserID(r.Context(), claims.UserID)
	}
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, driver)
}

func (h *LogisticsHandler) AvailableVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.logistics.AvailableVehicles(r.Context())
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, vehicles)
}

func (h *LogisticsHandler) ActiveRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := h.logistics.ActiveRoutes(r.Context())
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, routes)
}

func (h *LogisticsHandler) ChangeShipmentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Status models.ShipmentStatus `json:"estado"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	shipment, err := h.logistics.ChangeShipmentStatus(r.Context(), id, req.Status)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, shipment)
}

// FindShipment looks a shipment up by ?guia=.
func (h *LogisticsHandler) FindShipment(w http.ResponseWriter, r *http.Request) {
	shipment, err := h.logistics.ShipmentByTrackingNumber(r.Context(), r.URL.Query().Get("guia"))
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, shipment)
}
