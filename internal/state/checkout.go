package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"tecnoroute/internal/apiclient"
	"tecnoroute/internal/models"

	"github.com/rs/zerolog"
)

type CheckoutStep int

const (
	StepShipping CheckoutStep = iota
	StepPayment
	StepSubmitting
	StepComplete
	StepFailed
)

func (s CheckoutStep) String() string {
	return [...]string{"shipping", "payment", "submitting", "complete", "failed"}[s]
}

var ErrEmptyCart = errors.New("el carrito está vacío")

const msgOrderFailed = "No se pudo procesar tu pedido. Intenta nuevamente."

// OrderBackend creates orders from the caller's cart.
type OrderBackend interface {
	CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error)
}

type LiveOrderBackend struct {
	api *apiclient.Client
}

func NewLiveOrderBackend(api *apiclient.Client) *LiveOrderBackend {
	return &LiveOrderBackend{api: api}
}

func (b *LiveOrderBackend) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	return b.api.Orders.Create(ctx, req)
}

// DemoOrderBackend fabricates orders locally. Only for DEMO_MODE.
type DemoOrderBackend struct {
	Cart interface {
		Items() []models.CartItem
		Total() float64
	}
	Now func() time.Time
}

func (b *DemoOrderBackend) CreateOrder(_ context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	now := time.Now()
	if b.Now != nil {
		now = b.Now()
	}
	order := &models.Order{
		ID:              int(now.Unix()),
		OrderNumber:     fmt.Sprintf("TR-%d", now.UnixMilli()),
		Status:          models.OrderPending,
		ShippingAddress: req.ShippingAddress,
		ContactPhone:    req.ContactPhone,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if b.Cart != nil {
		for _, it := range b.Cart.Items() {
			order.Items = append(order.Items, models.OrderItem{
				ProductID: it.ProductID,
				Name:      it.Name,
				UnitPrice: it.UnitPrice,
				Quantity:  it.Quantity,
				Subtotal:  it.Subtotal(),
			})
		}
		order.Total = b.Cart.Total()
	}
	return order, nil
}

// CheckoutCart is the part of the cart the wizard needs.
type CheckoutCart interface {
	ItemsCount() int
	ClearCart(ctx context.Context) bool
}

// CheckoutService drives shipping -> payment -> submit. A failed
// submission stays failed; nothing here turns an error into a success.
type CheckoutService struct {
	orders OrderBackend
	cart   CheckoutCart
	logger zerolog.Logger

	mu     sync.Mutex
	step   CheckoutStep
	form   CheckoutForm
	errs   ValidationErrors
	order  *models.Order
	errMsg string
}

func NewCheckoutService(orders OrderBackend, cart CheckoutCart, logger zerolog.Logger) *CheckoutService {
	return &CheckoutService{orders: orders, cart: cart, logger: logger}
}

func (s *CheckoutService) Step() CheckoutStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

func (s *CheckoutService) Form() CheckoutForm {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form
}

func (s *CheckoutService) SetForm(f CheckoutForm) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.form = f
}

// SetField formats and stores one field as the user types it.
func (s *CheckoutService) SetField(name, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form.SetField(name, value)
}

func (s *CheckoutService) Errors() ValidationErrors {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(ValidationErrors(nil), s.errs...)
}

func (s *CheckoutService) Order() *models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.order == nil {
		return nil
	}
	o := *s.order
	return &o
}

func (s *CheckoutService) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// Next advances from shipping to payment when the shipping fields are valid.
func (s *CheckoutService) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.step != StepShipping {
		return nil
	}
	if errs := s.form.ValidateShipping(); len(errs) > 0 {
		s.errs = errs
		return errs
	}
	s.errs = nil
	s.step = StepPayment
	return nil
}

func (s *CheckoutService) Back() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step == StepPayment || s.step == StepFailed {
		s.step = StepShipping
	}
}

// Retry returns a failed submission to the payment step.
func (s *CheckoutService) Retry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step == StepFailed {
		s.step = StepPayment
		s.errMsg = ""
	}
}

func (s *CheckoutService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step = StepShipping
	s.form = CheckoutForm{}
	s.errs = nil
	s.order = nil
	s.errMsg = ""
}

// Submit validates the full form and, only when it is valid, creates the
// order. On success the cart is cleared and the wizard completes.
func (s *CheckoutService) Submit(ctx context.Context) error {
	s.mu.Lock()
	if s.step == StepSubmitting {
		s.mu.Unlock()
		return ErrBusy
	}
	if s.step == StepComplete {
		s.mu.Unlock()
		return nil
	}
	if errs := s.form.Validate(); len(errs) > 0 {
		s.errs = errs
		if !s.form.ValidateShipping().Has(errs[0].Field) {
			s.step = StepPayment
		} else {
			s.step = StepShipping
		}
		s.mu.Unlock()
		return errs
	}
	if s.cart.ItemsCount() == 0 {
		s.errMsg = ErrEmptyCart.Error()
		s.mu.Unlock()
		return ErrEmptyCart
	}

	s.errs = nil
	s.errMsg = ""
	s.step = StepSubmitting
	req := models.CreateOrderRequest{
		ShippingAddress: s.form.ShippingAddress(),
		ContactPhone:    s.form.Phone,
		Notes:           strings.TrimSpace(s.form.Notes),
	}
	s.mu.Unlock()

	order, err := s.orders.CreateOrder(ctx, req)
	if err != nil {
		s.logger.Error().Err(err).Msg("Order creation failed")
		s.mu.Lock()
		s.step = StepFailed
		s.errMsg = msgOrderFailed
		if detail := FormatError(err); detail != MsgGeneric {
			s.errMsg = msgOrderFailed + " " + detail
		}
		s.mu.Unlock()
		return fmt.Errorf("create order: %w", err)
	}

	s.mu.Lock()
	s.order = order
	s.step = StepComplete
	s.mu.Unlock()
	s.logger.Info().Int("order_id", order.ID).Str("number", order.OrderNumber).Msg("Order created")

	if !s.cart.ClearCart(ctx) {
		s.logger.Warn().Msg("Order created but cart could not be cleared")
	}
	return nil
}

// OrderReference is what the completion screen shows.
func (s *CheckoutService) OrderReference() string {
	o := s.Order()
	if o == nil {
		return ""
	}
	if o.OrderNumber != "" {
		return o.OrderNumber
	}
	return fmt.Sprintf("#%d", o.ID)
}
