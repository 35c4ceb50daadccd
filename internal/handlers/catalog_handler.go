package handlers

import (
	"net/http"

	"tecnoroute/internal/services"

	"github.com/rs/zerolog"
)

type CatalogHandler struct {
	responder
	catalog *services.CatalogService
}

func NewCatalogHandler(catalog *services.CatalogService, logger zerolog.Logger) *CatalogHandler {
	return &CatalogHandler{
		responder: responder{logger: logger},
		catalog:   catalog,
	}
}

// ListProducts accepts ?categoria= and ?search= filters.
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	products, err := h.catalog.ListProducts(r.Context(), q.Get("categoria"), q.Get("search"))
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, products)
}

func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, product)
}

func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, categories)
}
