package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"tecnoroute/internal/models"
	"tecnoroute/internal/store"

	"github.com/rs/zerolog"
)

type cartLineRecord struct {
	ID        int `json:"id"`
	ProductID int `json:"producto_id"`
	Quantity  int `json:"cantidad"`
}

type cartRecord struct {
	ID         int              `json:"id"`
	UserID     int              `json:"user_id"`
	Version    int              `json:"version"`
	NextLineID int              `json:"next_line_id"`
	Lines      []cartLineRecord `json:"lines"`
}

func (c *cartRecord) line(lineID int) int {
	for i, l := range c.Lines {
		if l.ID == lineID {
			return i
		}
	}
	return -1
}

// CartService owns one cart per user. Every mutation bumps the version; a
// caller that sends a stale version gets ErrVersionMismatch.
type CartService struct {
	store   store.Store
	catalog *CatalogService
	logger  zerolog.Logger
	mu      sync.Map
}

func NewCartService(s store.Store, catalog *CatalogService, logger zerolog.Logger) *CartService {
	return &CartService{
		store:   s,
		catalog: catalog,
		logger:  logger,
	}
}

func (s *CartService) getMutex(userID int) *sync.Mutex {
	value, _ := s.mu.LoadOrStore(userID, &sync.Mutex{})
	return value.(*sync.Mutex)
}

func (s *CartService) Get(ctx context.Context, userID int) (*models.Cart, error) {
	mu := s.getMutex(userID)
	mu.Lock()
	defer mu.Unlock()

	rec, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, rec)
}

// AddItem merges into an existing line for the same product.
func (s *CartService) AddItem(ctx context.Context, userID, productID, quantity, ifMatch int) (*models.Cart, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: la cantidad debe ser al menos 1", ErrInvalidInput)
	}

	return s.mutate(ctx, userID, ifMatch, func(rec *cartRecord) error {
		product, err := s.catalog.GetProduct(ctx, productID)
		if err != nil {
			return fmt.Errorf("producto %d: %w", productID, err)
		}

		for i, l := range rec.Lines {
			if l.ProductID == productID {
				if l.Quantity+quantity > product.Stock {
					return fmt.Errorf("%w: %s", ErrInsufficientStock, product.Name)
				}
				rec.Lines[i].Quantity += quantity
				return nil
			}
		}

		if quantity > product.Stock {
			return fmt.Errorf("%w: %s", ErrInsufficientStock, product.Name)
		}
		rec.NextLineID++
		rec.Lines = append(rec.Lines, cartLineRecord{ID: rec.NextLineID, ProductID: productID, Quantity: quantity})
		return nil
	})
}

func (s *CartService) UpdateItem(ctx context.Context, userID, lineID, quantity, ifMatch int) (*models.Cart, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: la cantidad debe ser al menos 1", ErrInvalidInput)
	}

	return s.mutate(ctx, userID, ifMatch, func(rec *cartRecord) error {
		i := rec.line(lineID)
		if i < 0 {
			return fmt.Errorf("línea %d: %w", lineID, ErrNotFound)
		}
		product, err := s.catalog.GetProduct(ctx, rec.Lines[i].ProductID)
		if err != nil {
			return err
		}
		if quantity > product.Stock {
			return fmt.Errorf("%w: %s", ErrInsufficientStock, product.Name)
		}
		rec.Lines[i].Quantity = quantity
		return nil
	})
}

func (s *CartService) RemoveItem(ctx context.Context, userID, lineID, ifMatch int) (*models.Cart, error) {
	return s.mutate(ctx, userID, ifMatch, func(rec *cartRecord) error {
		i := rec.line(lineID)
		if i < 0 {
			return fmt.Errorf("línea %d: %w", lineID, ErrNotFound)
		}
		rec.Lines = append(rec.Lines[:i], rec.Lines[i+1:]...)
		return nil
	})
}

func (s *CartService) Clear(ctx context.Context, userID int) (*models.Cart, error) {
	return s.mutate(ctx, userID, 0, func(rec *cartRecord) error {
		rec.Lines = nil
		return nil
	})
}

// Checkout hands the current cart to fn under the user's lock. fn and the
// emptying of the cart share one store transaction: either both persist or
// neither does.
func (s *CartService) Checkout(ctx context.Context, userID int, fn func(tx store.Store, cart *models.Cart) error) error {
	mu := s.getMutex(userID)
	mu.Lock()
	defer mu.Unlock()

	rec, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	cart, err := s.view(ctx, rec)
	if err != nil {
		return err
	}
	if len(cart.Items) == 0 {
		return ErrEmptyCart
	}

	return s.store.Tx(ctx, func(tx store.Store) error {
		if err := fn(tx, cart); err != nil {
			return err
		}
		emptied := *rec
		emptied.Lines = nil
		emptied.Version++
		return s.saveTo(ctx, tx, &emptied)
	})
}

func (s *CartService) mutate(ctx context.Context, userID, ifMatch int, apply func(rec *cartRecord) error) (*models.Cart, error) {
	mu := s.getMutex(userID)
	mu.Lock()
	defer mu.Unlock()

	rec, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ifMatch > 0 && ifMatch != rec.Version {
		s.logger.Warn().
			Int("user_id", userID).
			Int("expected", ifMatch).
			Int("actual", rec.Version).
			Msg("Cart version mismatch")
		return nil, ErrVersionMismatch
	}

	if err := apply(rec); err != nil {
		return nil, err
	}
	rec.Version++
	if err := s.save(ctx, rec); err != nil {
		return nil, err
	}
	return s.view(ctx, rec)
}

func (s *CartService) load(ctx context.Context, userID int) (*cartRecord, error) {
	recs, err := store.FindAs[cartRecord](ctx, s.store, store.KindCarts, "user_id", strconv.Itoa(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if len(recs) > 0 {
		return &recs[0], nil
	}

	rec := &cartRecord{UserID: userID, Version: 1}
	_, err = s.store.Insert(ctx, store.KindCarts, func(id int) ([]byte, error) {
		rec.ID = id
		return json.Marshal(rec)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	s.logger.Debug().Int("user_id", userID).Int("cart_id", rec.ID).Msg("Cart created")
	return rec, nil
}

func (s *CartService) save(ctx context.Context, rec *cartRecord) error {
	return s.saveTo(ctx, s.store, rec)
}

func (s *CartService) saveTo(ctx context.Context, st store.Store, rec *cartRecord) error {
	if err := store.PutAs(ctx, st, store.KindCarts, rec.ID, rec); err != nil {
		s.logger.Error().Err(err).Int("cart_id", rec.ID).Msg("Failed to save cart")
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

// view joins lines with their products. Lines whose product disappeared are
// dropped from the response.
func (s *CartService) view(ctx context.Context, rec *cartRecord) (*models.Cart, error) {
	cart := &models.Cart{ID: rec.ID, Version: rec.Version, Items: []models.CartLine{}}
	for _, l := range rec.Lines {
		p, err := s.catalog.GetProduct(ctx, l.ProductID)
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Warn().Int("product_id", l.ProductID).Msg("Skipping cart line for missing product")
			continue
		}
		if err != nil {
			return nil, err
		}
		cart.Items = append(cart.Items, models.CartLine{ID: l.ID, Product: *p, Quantity: l.Quantity})
		cart.Total += p.Price * float64(l.Quantity)
	}
	return cart, nil
}
