package state

import (
	"context"
	"errors"
	"sync"

	"tecnoroute/internal/apiclient"
	"tecnoroute/internal/models"

	"github.com/rs/zerolog"
)

type CartStatus int

const (
	CartEmpty CartStatus = iota
	CartLoading
	CartReady
	CartError
)

func (s CartStatus) String() string {
	return [...]string{"empty", "loading", "ready", "error"}[s]
}

// CartBackend is the server-side cart resource. *apiclient.CartAPI implements it.
type CartBackend interface {
	Get(ctx context.Context) (*models.Cart, error)
	AddItem(ctx context.Context, productID, quantity, version int) error
	UpdateItem(ctx context.Context, lineID, quantity, version int) error
	RemoveItem(ctx context.Context, lineID, version int) error
	Clear(ctx context.Context) error
}

type Authenticator interface {
	IsAuthenticated() bool
}

// CartService mirrors the server-owned cart. Every mutation is applied
// locally first, sent once to the server, rolled back if the server
// refuses it, and reconciled by reloading the authoritative cart when it
// succeeds. Only one mutation runs at a time.
type CartService struct {
	api    CartBackend
	auth   Authenticator
	logger zerolog.Logger

	mu      sync.Mutex
	items   []models.CartItem
	version int
	status  CartStatus
	errMsg  string
	busy    bool
	// epoch changes whenever the cart is reset locally; results of calls
	// started in an older epoch are dropped.
	epoch uint64
	// owner is the id of the user the items belong to, 0 when signed out.
	owner int
}

func NewCartService(api CartBackend, auth Authenticator, logger zerolog.Logger) *CartService {
	return &CartService{
		api:    api,
		auth:   auth,
		logger: logger,
		status: CartEmpty,
	}
}

// HandleAuthChange is registered as an AuthListener. Losing the session, or
// a different user signing in over it, empties the cart immediately and
// without touching the network.
func (s *CartService) HandleAuthChange(user *models.User, authenticated bool) {
	owner := 0
	if authenticated && user != nil {
		owner = user.ID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if owner != 0 && owner == s.owner {
		return
	}
	s.resetLocked()
	s.owner = owner
}

func (s *CartService) resetLocked() {
	s.epoch++
	s.items = nil
	s.version = 0
	s.status = CartEmpty
	s.errMsg = ""
}

type mutation struct {
	epoch    uint64
	version  int
	snapshot []models.CartItem
	status   CartStatus
}

// begin takes the busy guard and applies fn to the local items.
func (s *CartService) begin(apply func(items []models.CartItem) ([]models.CartItem, error)) (*mutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy {
		return nil, ErrBusy
	}
	m := &mutation{
		epoch:    s.epoch,
		version:  s.version,
		snapshot: cloneItems(s.items),
		status:   s.status,
	}
	next, err := apply(cloneItems(s.items))
	if err != nil {
		s.errMsg = FormatError(err)
		return nil, err
	}
	s.busy = true
	s.items = next
	s.status = CartLoading
	s.errMsg = ""
	return m, nil
}

// finish rolls back or reconciles after the server answered.
func (s *CartService) finish(ctx context.Context, m *mutation, op string, callErr error) bool {
	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	if callErr != nil {
		s.logger.Error().Err(callErr).Str("op", op).Msg("Cart mutation failed")
		s.mu.Lock()
		if s.epoch == m.epoch {
			s.items = m.snapshot
			s.status = m.status
			s.errMsg = FormatError(callErr)
		}
		s.mu.Unlock()

		if errors.Is(callErr, apiclient.ErrConflict) {
			s.reload(ctx, m.epoch)
			s.mu.Lock()
			if s.epoch == m.epoch {
				s.errMsg = MsgConflict
			}
			s.mu.Unlock()
		}
		return false
	}

	s.reload(ctx, m.epoch)
	return true
}

func (s *CartService) AddToCart(ctx context.Context, product models.Product, quantity int) bool {
	if quantity < 1 {
		quantity = 1
	}
	if !s.auth.IsAuthenticated() {
		s.setError(ErrNotAuthenticated)
		return false
	}

	m, err := s.begin(func(items []models.CartItem) ([]models.CartItem, error) {
		for i := range items {
			if items[i].ProductID == product.ID {
				items[i].Quantity += quantity
				return items, nil
			}
		}
		return append(items, models.CartItem{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Image:     product.Image,
			Category:  product.Category,
			Quantity:  quantity,
			Stock:     product.Stock,
		}), nil
	})
	if err != nil {
		return false
	}

	err = s.api.AddItem(ctx, product.ID, quantity, m.version)
	return s.finish(ctx, m, "add", err)
}

func (s *CartService) RemoveFromCart(ctx context.Context, productID int) bool {
	if !s.auth.IsAuthenticated() {
		s.setError(ErrNotAuthenticated)
		return false
	}

	var lineID int
	m, err := s.begin(func(items []models.CartItem) ([]models.CartItem, error) {
		for i := range items {
			if items[i].ProductID == productID {
				lineID = items[i].CartEntryID
				return append(items[:i], items[i+1:]...), nil
			}
		}
		return nil, ErrItemNotFound
	})
	if err != nil {
		return false
	}

	err = s.api.RemoveItem(ctx, lineID, m.version)
	return s.finish(ctx, m, "remove", err)
}

// UpdateQuantity sets a line's quantity; zero or less removes the line.
func (s *CartService) UpdateQuantity(ctx context.Context, productID, quantity int) bool {
	if quantity <= 0 {
		return s.RemoveFromCart(ctx, productID)
	}
	if !s.auth.IsAuthenticated() {
		s.setError(ErrNotAuthenticated)
		return false
	}

	var lineID int
	m, err := s.begin(func(items []models.CartItem) ([]models.CartItem, error) {
		for i := range items {
			if items[i].ProductID == productID {
				lineID = items[i].CartEntryID
				items[i].Quantity = quantity
				return items, nil
			}
		}
		return nil, ErrItemNotFound
	})
	if err != nil {
		return false
	}

	err = s.api.UpdateItem(ctx, lineID, quantity, m.version)
	return s.finish(ctx, m, "update", err)
}

// ClearCart empties the server cart. Emptiness is known, so no reload follows.
func (s *CartService) ClearCart(ctx context.Context) bool {
	if !s.auth.IsAuthenticated() {
		s.setError(ErrNotAuthenticated)
		return false
	}

	m, err := s.begin(func([]models.CartItem) ([]models.CartItem, error) {
		return nil, nil
	})
	if err != nil {
		return false
	}
	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	err = s.api.Clear(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != m.epoch {
		return err == nil
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Clearing cart failed")
		s.items = m.snapshot
		s.status = m.status
		s.errMsg = FormatError(err)
		return false
	}
	s.items = nil
	s.version = 0
	s.status = CartEmpty
	return true
}

// Load replaces the local cart with the server's.
func (s *CartService) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	if !s.auth.IsAuthenticated() {
		s.resetLocked()
		s.mu.Unlock()
		return nil
	}
	s.busy = true
	s.status = CartLoading
	epoch := s.epoch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()
	return s.reload(ctx, epoch)
}

func (s *CartService) reload(ctx context.Context, epoch uint64) error {
	cart, err := s.api.Get(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return nil
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Loading cart failed")
		s.items = nil
		s.version = 0
		s.status = CartError
		s.errMsg = FormatError(err)
		return err
	}

	items := make([]models.CartItem, 0, len(cart.Items))
	for _, line := range cart.Items {
		items = append(items, models.ItemFromLine(line))
	}
	s.items = items
	s.version = cart.Version
	s.errMsg = ""
	if len(items) == 0 {
		s.status = CartEmpty
	} else {
		s.status = CartReady
	}
	return nil
}

func (s *CartService) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg = FormatError(err)
}

// Items returns a copy of the current lines.
func (s *CartService) Items() []models.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.items)
}

// Total is the sum of unit price times quantity.
func (s *CartService) Total() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total float64
	for _, it := range s.items {
		total += it.Subtotal()
	}
	return total
}

// ItemsCount is the sum of quantities, not the number of lines.
func (s *CartService) ItemsCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, it := range s.items {
		count += it.Quantity
	}
	return count
}

func (s *CartService) Status() CartStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *CartService) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

func (s *CartService) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg = ""
}

func (s *CartService) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

func cloneItems(items []models.CartItem) []models.CartItem {
	if items == nil {
		return nil
	}
	out := make([]models.CartItem, len(items))
	copy(out, items)
	return out
}
