package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"tecnoroute/internal/models"
	"tecnoroute/internal/store"

	"github.com/rs/zerolog"
)

type CatalogService struct {
	store  store.Store
	logger zerolog.Logger
	mu     sync.Mutex
}

func NewCatalogService(s store.Store, logger zerolog.Logger) *CatalogService {
	return &CatalogService{
		store:  s,
		logger: logger,
	}
}

// ListProducts filters by category name and a case-insensitive search over
// name and description. Empty arguments match everything.
func (s *CatalogService) ListProducts(ctx context.Context, category, search string) ([]models.Product, error) {
	products, err := store.ListAs[models.Product](ctx, s.store, store.KindProducts)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	search = strings.ToLower(strings.TrimSpace(search))
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id int) (*models.Product, error) {
	return store.GetAs[models.Product](ctx, s.store, store.KindProducts, id)
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	return store.ListAs[models.Category](ctx, s.store, store.KindCategories)
}

func (s *CatalogService) CreateCategory(ctx context.Context, c models.Category) (*models.Category, error) {
	if strings.TrimSpace(c.Name) == "" {
		return nil, fmt.Errorf("%w: el nombre es obligatorio", ErrInvalidInput)
	}
	_, err := s.store.Insert(ctx, store.KindCategories, func(id int) ([]byte, error) {
		c.ID = id
		return json.Marshal(c)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, p models.Product) (*models.Product, error) {
	if strings.TrimSpace(p.Name) == "" || p.Price < 0 || p.Stock < 0 {
		return nil, fmt.Errorf("%w: nombre, precio y stock válidos son obligatorios", ErrInvalidInput)
	}
	_, err := s.store.Insert(ctx, store.KindProducts, func(id int) ([]byte, error) {
		p.ID = id
		return json.Marshal(p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ReserveStock checks every line against current stock and decrements all
// of them, or none. It reads and writes through st, normally the order's
// transaction, so a later failure in that transaction returns the stock.
func (s *CatalogService) ReserveStock(ctx context.Context, st store.Store, lines []models.CartLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	products := make([]*models.Product, len(lines))
	for i, l := range lines {
		p, err := store.GetAs[models.Product](ctx, st, store.KindProducts, l.Product.ID)
		if err != nil {
			return fmt.Errorf("producto %d: %w", l.Product.ID, err)
		}
		if p.Stock < l.Quantity {
			return fmt.Errorf("%w: %s", ErrInsufficientStock, p.Name)
		}
		products[i] = p
	}

	for i, p := range products {
		p.Stock -= lines[i].Quantity
		if err := store.PutAs(ctx, st, store.KindProducts, p.ID, p); err != nil {
			s.logger.Error().Err(err).Int("product_id", p.ID).Msg("Failed to update stock")
			return fmt.Errorf("failed to update stock: %w", err)
		}
	}
	return nil
}
