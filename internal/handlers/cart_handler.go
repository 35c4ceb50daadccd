package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"tecnoroute/internal/models"
	"tecnoroute/internal/services"

	"github.com/rs/zerolog"
)

type CartHandler struct {
	responder
	carts *services.CartService
}

func NewCartHandler(carts *services.CartService, logger zerolog.Logger) *CartHandler {
	return &CartHandler{
		responder: responder{logger: logger},
		carts:     carts,
	}
}

// ifMatch reads the cart version from If-Match. A missing or unparsable
// header means no precondition.
func ifMatch(r *http.Request) int {
	v := strings.TrimPrefix(strings.TrimSpace(r.Header.Get("If-Match")), "W/")
	n, err := strconv.Atoi(strings.Trim(v, `"`))
	if err != nil {
		return 0
	}
	return n
}

func (h *CartHandler) respondWithCart(w http.ResponseWriter, code int, cart *models.Cart) {
	w.Header().Set("ETag", strconv.Quote(strconv.Itoa(cart.Version)))
	h.respondWithJSON(w, code, cart)
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.Get(r.Context(), claims.UserID)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	h.respondWithCart(w, http.StatusOK, cart)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	var req models.AddCartItemRequest
	if !h.decode(w, r, &req) {
		return
	}

	cart, err := h.carts.AddItem(r.Context(), claims.UserID, req.ProductID, req.Quantity, ifMatch(r))
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	h.respondWithCart(w, http.StatusCreated, cart)
}

func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	lineID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req models.UpdateCartItemRequest
	if !h.decode(w, r, &req) {
		return
	}

	cart, err := h.carts.UpdateItem(r.Context(), claims.UserID, lineID, req.Quantity, ifMatch(r))
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	h.respondWithCart(w, http.StatusOK, cart)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	lineID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.RemoveItem(r.Context(), claims.UserID, lineID, ifMatch(r))
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	h.respondWithCart(w, http.StatusOK, cart)
}

func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.Clear(r.Context(), claims.UserID)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	h.respondWithCart(w, http.StatusOK, cart)
}
