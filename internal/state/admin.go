package state

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tecnoroute/internal/apiclient"
	"tecnoroute/internal/models"

	"github.com/rs/zerolog"
)

var ErrForbidden = errors.New("solo un administrador puede realizar esta acción")

type Roles interface {
	IsAdmin() bool
}

// DashboardService gathers the admin panel counters.
type DashboardService struct {
	api    *apiclient.Client
	logger zerolog.Logger
}

func NewDashboardService(api *apiclient.Client, logger zerolog.Logger) *DashboardService {
	return &DashboardService{api: api, logger: logger}
}

// Stats issues the independent read-only calls concurrently and fails if any fails.
func (s *DashboardService) Stats(ctx context.Context) (*models.DashboardStats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		stats models.DashboardStats
		wg    sync.WaitGroup
		mu    sync.Mutex
		errs  []error
	)
	run := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
				cancel()
			}
		}()
	}

	run("orders", func() error {
		o, err := s.api.Orders.Stats(ctx)
		if err == nil {
			stats.Orders = *o
		}
		return err
	})
	run("clients", func() error {
		list, err := s.api.Clients.List(ctx, nil)
		stats.Clients = len(list)
		return err
	})
	run("drivers", func() error {
		list, err := s.api.Drivers.List(ctx, nil)
		stats.Drivers = len(list)
		return err
	})
	run("vehicles", func() error {
		list, err := s.api.Vehicles.List(ctx, nil)
		stats.Vehicles = len(list)
		return err
	})
	run("routes", func() error {
		list, err := s.api.Routes.Active(ctx)
		stats.ActiveRoutes = len(list)
		return err
	})
	wg.Wait()

	if len(errs) > 0 {
		s.logger.Error().Errs("errors", errs).Msg("Dashboard stats incomplete")
		return nil, errs[0]
	}
	return &stats, nil
}

var adminCycle = map[models.OrderStatus]models.OrderStatus{
	models.OrderPending:   models.OrderConfirmed,
	models.OrderConfirmed: models.OrderShipped,
	models.OrderShipped:   models.OrderDelivered,
	models.OrderDelivered: models.OrderPending,
	models.OrderCancelled: models.OrderPending,
}

// NextAdminStatus is the manual override cycle used from the admin panel.
// It is the only place the client picks an order status itself.
func NextAdminStatus(s models.OrderStatus) models.OrderStatus {
	if next, ok := adminCycle[s]; ok {
		return next
	}
	return models.OrderPending
}

type OrderAdminService struct {
	api    *apiclient.Client
	roles  Roles
	logger zerolog.Logger
}

func NewOrderAdminService(api *apiclient.Client, roles Roles, logger zerolog.Logger) *OrderAdminService {
	return &OrderAdminService{api: api, roles: roles, logger: logger}
}

func (s *OrderAdminService) List(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	if !s.roles.IsAdmin() {
		return nil, ErrForbidden
	}
	var query map[string][]string
	if status != "" {
		query = map[string][]string{"estado": {string(status)}}
	}
	return s.api.Orders.List(ctx, query)
}

func (s *OrderAdminService) CycleStatus(ctx context.Context, order models.Order) (*models.Order, error) {
	if !s.roles.IsAdmin() {
		return nil, ErrForbidden
	}
	next := NextAdminStatus(order.Status)
	updated, err := s.api.Orders.ChangeStatus(ctx, order.ID, next)
	if err != nil {
		s.logger.Error().Err(err).Int("order_id", order.ID).Str("to", string(next)).Msg("Status override failed")
		return nil, err
	}
	s.logger.Info().Int("order_id", order.ID).Str("from", string(order.Status)).Str("to", string(next)).Msg("Order status overridden")
	return updated, nil
}

func (s *OrderAdminService) Cancel(ctx context.Context, id int) (*models.Order, error) {
	if !s.roles.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.api.Orders.Cancel(ctx, id)
}

func (s *OrderAdminService) Delete(ctx context.Context, id int) error {
	if !s.roles.IsAdmin() {
		return ErrForbidden
	}
	return s.api.Orders.Delete(ctx, id)
}
