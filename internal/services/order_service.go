package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"tecnoroute/internal/models"
	"tecnoroute/internal/statemachine"
	"tecnoroute/internal/store"

	"github.com/rs/zerolog"
)

const recentOrdersLimit = 5

type statusChange struct {
	OrderID   int                `json:"order_id"`
	From      models.OrderStatus `json:"from"`
	To        models.OrderStatus `json:"to"`
	ChangedBy int                `json:"changed_by"`
	Role      string             `json:"role"`
	CreatedAt time.Time          `json:"created_at"`
}

type OrderService struct {
	store     store.Store
	carts     *CartService
	catalog   *CatalogService
	logistics *LogisticsService
	logger    zerolog.Logger
	// serializes status changes so two drivers cannot claim the same order
	mu sync.Mutex
}

func NewOrderService(s store.Store, carts *CartService, catalog *CatalogService, logistics *LogisticsService, logger zerolog.Logger) *OrderService {
	return &OrderService{
		store:     s,
		carts:     carts,
		catalog:   catalog,
		logistics: logistics,
		logger:    logger,
	}
}

// Create turns the caller's cart into a pending order, reserving stock and
// emptying the cart.
func (s *OrderService) Create(ctx context.Context, p *Claims, req *models.CreateOrderRequest) (*models.Order, error) {
	if strings.TrimSpace(req.ShippingAddress) == "" || strings.TrimSpace(req.ContactPhone) == "" {
		return nil, fmt.Errorf("%w: dirección y teléfono de contacto son obligatorios", ErrInvalidInput)
	}

	var order models.Order
	err := s.carts.Checkout(ctx, p.UserID, func(tx store.Store, cart *models.Cart) error {
		if err := s.catalog.ReserveStock(ctx, tx, cart.Items); err != nil {
			return err
		}

		now := time.Now().UTC()
		items := make([]models.OrderItem, 0, len(cart.Items))
		for _, l := range cart.Items {
			items = append(items, models.OrderItem{
				ProductID: l.Product.ID,
				Name:      l.Product.Name,
				UnitPrice: l.Product.Price,
				Quantity:  l.Quantity,
				Subtotal:  l.Product.Price * float64(l.Quantity),
			})
		}

		_, err := tx.Insert(ctx, store.KindOrders, func(id int) ([]byte, error) {
			order = models.Order{
				ID:              id,
				OrderNumber:     fmt.Sprintf("TR-%06d", id),
				Status:          models.OrderPending,
				Total:           cart.Total,
				ShippingAddress: req.ShippingAddress,
				ContactPhone:    req.ContactPhone,
				Notes:           req.Notes,
				Items:           items,
				ClientID:        p.UserID,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			return json.Marshal(order)
		})
		return err
	})
	if err != nil {
		s.logger.Warn().Err(err).Int("user_id", p.UserID).Msg("Order creation failed")
		return nil, err
	}

	s.logger.Info().
		Int("order_id", order.ID).
		Int("user_id", p.UserID).
		Float64("total", order.Total).
		Msg("Order created")
	return &order, nil
}

// visible decides whether p may see o. Drivers see the unassigned pending
// pool plus the orders they hold.
func visible(p *Claims, o *models.Order) bool {
	switch models.UserRole(p.Role) {
	case models.RoleAdmin:
		return true
	case models.RoleDriver:
		if o.Status == models.OrderPending && o.Driver == nil {
			return true
		}
		return p.DriverID != nil && o.Driver != nil && o.Driver.ID == *p.DriverID
	default:
		return o.ClientID == p.UserID
	}
}

// List returns the orders visible to p, newest first, optionally filtered by
// status.
func (s *OrderService) List(ctx context.Context, p *Claims, status string) ([]models.Order, error) {
	if status != "" && !models.ValidOrderStatus(status) {
		return nil, fmt.Errorf("%w: estado desconocido %q", ErrInvalidInput, status)
	}

	all, err := store.ListAs[models.Order](ctx, s.store, store.KindOrders)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	out := make([]models.Order, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		o := all[i]
		if !visible(p, &o) {
			continue
		}
		if status != "" && string(o.Status) != status {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *OrderService) Get(ctx context.Context, p *Claims, id int) (*models.Order, error) {
	o, err := store.GetAs[models.Order](ctx, s.store, store.KindOrders, id)
	if err != nil {
		return nil, err
	}
	if !visible(p, o) {
		return nil, fmt.Errorf("pedido %d: %w", id, ErrNotFound)
	}
	return o, nil
}

// Update edits delivery details while the order is still pending.
func (s *OrderService) Update(ctx context.Context, p *Claims, id int, req *models.UpdateOrderRequest) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() && o.ClientID != p.UserID {
		return nil, ErrForbidden
	}
	if o.Status != models.OrderPending {
		return nil, ErrNotEditable
	}

	if req.ShippingAddress != nil {
		o.ShippingAddress = *req.ShippingAddress
	}
	if req.ContactPhone != nil {
		o.ContactPhone = *req.ContactPhone
	}
	if req.Notes != nil {
		o.Notes = *req.Notes
	}
	o.UpdatedAt = time.Now().UTC()

	if err := store.PutAs(ctx, s.store, store.KindOrders, id, o); err != nil {
		return nil, err
	}
	return o, nil
}

// ChangeStatus applies a transition allowed for the caller's role. A driver
// moving an order to confirmed claims it; the claim fails when the order is
// already held or the driver already has an active order.
func (s *OrderService) ChangeStatus(ctx context.Context, p *Claims, id int, status string) (*models.Order, error) {
	if !models.ValidOrderStatus(status) {
		return nil, fmt.Errorf("%w: estado desconocido %q", ErrInvalidInput, status)
	}
	to := models.OrderStatus(status)

	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	from := o.Status

	if err := statemachine.CanTransition(from, to, p.Role); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}

	switch {
	case p.IsDriver():
		if err := s.applyDriverChange(ctx, p, o, to); err != nil {
			return nil, err
		}
	case p.Role == string(models.RoleUser):
		if o.ClientID != p.UserID {
			return nil, ErrForbidden
		}
	}
	if to == models.OrderPending {
		o.Driver = nil
	}

	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	if err := store.PutAs(ctx, s.store, store.KindOrders, id, o); err != nil {
		return nil, err
	}
	s.recordChange(ctx, p, o.ID, from, to)

	s.logger.Info().
		Int("order_id", id).
		Str("from", string(from)).
		Str("to", string(to)).
		Int("user_id", p.UserID).
		Msg("Order status changed")
	return o, nil
}

func (s *OrderService) applyDriverChange(ctx context.Context, p *Claims, o *models.Order, to models.OrderStatus) error {
	if p.DriverID == nil {
		return fmt.Errorf("%w: el usuario no tiene perfil de conductor", ErrForbidden)
	}
	driverID := *p.DriverID

	if to != models.OrderConfirmed {
		if o.Driver == nil || o.Driver.ID != driverID {
			return ErrForbidden
		}
		return nil
	}

	if o.Driver != nil {
		return ErrAlreadyClaimed
	}
	all, err := store.ListAs[models.Order](ctx, s.store, store.KindOrders)
	if err != nil {
		return err
	}
	for _, other := range all {
		if other.Driver != nil && other.Driver.ID == driverID && other.Status.Active() {
			return ErrDriverBusy
		}
	}

	info := &models.DriverInfo{ID: driverID, UserID: p.UserID}
	if d, err := s.logistics.Drivers.Get(ctx, driverID); err == nil {
		info.Name = d.Name
		info.Phone = d.Phone
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	o.Driver = info
	return nil
}

func (s *OrderService) recordChange(ctx context.Context, p *Claims, orderID int, from, to models.OrderStatus) {
	change := statusChange{
		OrderID:   orderID,
		From:      from,
		To:        to,
		ChangedBy: p.UserID,
		Role:      p.Role,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.store.Insert(ctx, store.KindHistory, func(int) ([]byte, error) {
		return json.Marshal(change)
	})
	if err != nil {
		s.logger.Error().Err(err).Int("order_id", orderID).Msg("Failed to record status history")
	}
}

func (s *OrderService) Delete(ctx context.Context, p *Claims, id int) error {
	if !p.IsAdmin() {
		return ErrForbidden
	}
	if err := s.store.Delete(ctx, store.KindOrders, id); err != nil {
		return err
	}
	s.logger.Info().Int("order_id", id).Msg("Order deleted")
	return nil
}

// Stats summarizes the orders visible to p. Cancelled orders do not count
// toward revenue.
func (s *OrderService) Stats(ctx context.Context, p *Claims) (*models.OrderStats, error) {
	orders, err := s.List(ctx, p, "")
	if err != nil {
		return nil, err
	}

	stats := &models.OrderStats{ByStatus: map[models.OrderStatus]int{}}
	for _, o := range orders {
		stats.Total++
		stats.ByStatus[o.Status]++
		if o.Status != models.OrderCancelled {
			stats.Revenue += o.Total
		}
	}
	stats.Pending = stats.ByStatus[models.OrderPending]
	stats.Delivered = stats.ByStatus[models.OrderDelivered]
	return stats, nil
}

func (s *OrderService) Recent(ctx context.Context, p *Claims) ([]models.Order, error) {
	orders, err := s.List(ctx, p, "")
	if err != nil {
		return nil, err
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	if len(orders) > recentOrdersLimit {
		orders = orders[:recentOrdersLimit]
	}
	return orders, nil
}
