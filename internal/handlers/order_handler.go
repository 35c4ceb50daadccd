package handlers

import (
	"net/http"

	"tecnoroute/internal/models"
	"tecnoroute/internal/services"

	"github.com/rs/zerolog"
)

type OrderHandler struct {
	responder
	orders *services.OrderService
}

func NewOrderHandler(orders *services.OrderService, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		responder: responder{logger: logger},
		orders:    orders,
	}
}

// List accepts ?estado= to filter by status.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	orders, err := h.orders.List(r.Context(), claims, r.URL.Query().Get("estado"))
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	var req models.CreateOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	order, err := h.orders.Create(r.Context(), claims, &req)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, order)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	order, err := h.orders.Get(r.Context(), claims, id)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req models.UpdateOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	order, err := h.orders.Update(r.Context(), claims, id, &req)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req models.ChangeStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	order, err := h.orders.ChangeStatus(r.Context(), claims, id, req.Status)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.orders.Delete(r.Context(), claims, id); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandler) Stats(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	stats, err := h.orders.Stats(r.Context(), claims)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, stats)
}

func (h *OrderHandler) Recent(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	orders, err := h.orders.Recent(r.Context(), claims)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, orders)
}
