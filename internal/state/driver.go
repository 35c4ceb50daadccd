package state

import (
	"context"
	"net/url"
	"sync"
	"time"

	"tecnoroute/internal/models"

	"github.com/rs/zerolog"
)

// DriverIdentity is resolved once per session and used to recognise the
// driver's own orders.
type DriverIdentity struct {
	DriverID int
	UserID   int
	Name     string
}

// Owns matches by driver profile id. The user-id comparison only applies
// when no profile could be resolved, for backends that do not populate it.
func (id DriverIdentity) Owns(o models.Order) bool {
	if o.Driver == nil {
		return false
	}
	if id.DriverID != 0 {
		return o.Driver.ID == id.DriverID
	}
	return id.UserID != 0 && o.Driver.UserID == id.UserID
}

type DriverOrdersBackend interface {
	List(ctx context.Context, query url.Values) ([]models.Order, error)
	ChangeStatus(ctx context.Context, id int, status models.OrderStatus) (*models.Order, error)
}

type DriverProfileSource interface {
	Profile(ctx context.Context) (*models.Driver, error)
}

type SessionUser interface {
	User() *models.User
}

// DriverService keeps the pending pool and the driver's single active
// order. Claims and completions follow the same optimistic-then-reconcile
// discipline as the cart.
type DriverService struct {
	orders   DriverOrdersBackend
	profiles DriverProfileSource
	auth     SessionUser
	logger   zerolog.Logger
	interval time.Duration

	mu       sync.Mutex
	identity *DriverIdentity
	pending  []models.Order
	active   *models.Order
	errMsg   string
	busy     bool
	epoch    uint64
	owner    int
}

func NewDriverService(orders DriverOrdersBackend, profiles DriverProfileSource, auth SessionUser, interval time.Duration, logger zerolog.Logger) *DriverService {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &DriverService{
		orders:   orders,
		profiles: profiles,
		auth:     auth,
		interval: interval,
		logger:   logger,
	}
}

// Start resolves the driver identity and loads both queues.
// A session change while the profile is loading discards the result.
func (s *DriverService) Start(ctx context.Context) error {
	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()

	user := s.auth.User()
	if user == nil {
		return ErrNotAuthenticated
	}

	id := DriverIdentity{UserID: user.ID, Name: user.Username}
	profile, err := s.profiles.Profile(ctx)
	switch {
	case err == nil && profile != nil:
		id.DriverID = profile.ID
		if profile.Name != "" {
			id.Name = profile.Name
		}
	case user.DriverID != nil:
		id.DriverID = *user.DriverID
	default:
		s.logger.Warn().Err(err).Int("user_id", user.ID).Msg("No driver profile, matching orders by user id")
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	s.identity = &id
	s.mu.Unlock()

	return s.Refresh(ctx)
}

func (s *DriverService) Identity() *DriverIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil
	}
	id := *s.identity
	return &id
}

// Refresh reloads the pending pool and the active order from the server.
func (s *DriverService) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.identity == nil {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	id := *s.identity
	epoch := s.epoch
	s.mu.Unlock()

	orders, err := s.orders.List(ctx, nil)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return nil
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Loading driver orders failed")
		s.errMsg = FormatError(err)
		return err
	}

	pending := make([]models.Order, 0)
	var active *models.Order
	for _, o := range orders {
		switch {
		case o.Status == models.OrderPending && o.Driver == nil:
			pending = append(pending, o)
		case active == nil && o.Status.Active() && id.Owns(o):
			cp := o
			active = &cp
		}
	}
	s.pending = pending
	s.active = active
	s.errMsg = ""
	return nil
}

// TakeOrder claims a pending order. It is refused while another order is active.
func (s *DriverService) TakeOrder(ctx context.Context, orderID int) error {
	s.mu.Lock()
	if s.identity == nil {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	if s.active != nil {
		s.mu.Unlock()
		return ErrActiveOrder
	}

	idx := -1
	for i, o := range s.pending {
		if o.ID == orderID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return ErrOrderNotPending
	}

	snapPending := append([]models.Order(nil), s.pending...)
	epoch := s.epoch
	claimed := s.pending[idx]
	claimed.Status = models.OrderConfirmed
	claimed.Driver = &models.DriverInfo{ID: s.identity.DriverID, UserID: s.identity.UserID, Name: s.identity.Name}

	s.pending = append(append([]models.Order(nil), s.pending[:idx]...), s.pending[idx+1:]...)
	s.active = &claimed
	s.busy = true
	s.mu.Unlock()

	_, err := s.orders.ChangeStatus(ctx, orderID, models.OrderConfirmed)

	s.mu.Lock()
	s.busy = false
	if err != nil {
		s.logger.Error().Err(err).Int("order_id", orderID).Msg("Claiming order failed")
		if s.epoch == epoch {
			s.pending = snapPending
			s.active = nil
			s.errMsg = FormatError(err)
		}
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.logger.Info().Int("order_id", orderID).Msg("Order claimed")
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Reconcile after claim failed")
	}
	return nil
}

// CompleteOrder marks the active order delivered and frees the driver.
func (s *DriverService) CompleteOrder(ctx context.Context) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	if s.active == nil {
		s.mu.Unlock()
		return ErrNoActiveOrder
	}
	prev := s.active
	epoch := s.epoch
	s.active = nil
	s.busy = true
	s.mu.Unlock()

	_, err := s.orders.ChangeStatus(ctx, prev.ID, models.OrderDelivered)

	s.mu.Lock()
	s.busy = false
	if err != nil {
		s.logger.Error().Err(err).Int("order_id", prev.ID).Msg("Completing order failed")
		if s.epoch == epoch {
			s.active = prev
			s.errMsg = FormatError(err)
		}
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.logger.Info().Int("order_id", prev.ID).Msg("Order delivered")
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Reload after delivery failed")
	}
	return nil
}

// Run refreshes on every poll interval until ctx is done.
func (s *DriverService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if s.Busy() {
				continue
			}
			if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn().Err(err).Msg("Driver poll failed")
			}
		}
	}
}

// HandleAuthChange drops all driver state when the session ends or passes
// to another user.
func (s *DriverService) HandleAuthChange(user *models.User, authenticated bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner := 0
	if authenticated && user != nil {
		owner = user.ID
	}
	if owner != 0 && owner == s.owner {
		return
	}
	s.owner = owner
	s.epoch++
	s.identity = nil
	s.pending = nil
	s.active = nil
	s.errMsg = ""
}

func (s *DriverService) Pending() []models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Order(nil), s.pending...)
}

func (s *DriverService) Active() *models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	o := *s.active
	return &o
}

// CanClaim is false whenever an order is active or a call is in flight.
func (s *DriverService) CanClaim() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active == nil && !s.busy && s.identity != nil
}

func (s *DriverService) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

func (s *DriverService) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}
