package state

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"tecnoroute/internal/apiclient"
	"tecnoroute/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubOrders struct {
	err   error
	calls int
	req   models.CreateOrderRequest
}

func (s *stubOrders) CreateOrder(_ context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	s.calls++
	s.req = req
	if s.err != nil {
		return nil, s.err
	}
	return &models.Order{ID: 12, OrderNumber: "TR-000012", Status: models.OrderPending}, nil
}

type stubCheckoutCart struct {
	count   int
	cleared bool
}

func (c *stubCheckoutCart) ItemsCount() int { return c.count }

func (c *stubCheckoutCart) ClearCart(context.Context) bool {
	c.cleared = true
	c.count = 0
	return true
}

func validForm() CheckoutForm {
	return CheckoutForm{
		FirstName:  "Ana",
		LastName:   "Pérez",
		Email:      "ana@example.com",
		Phone:      "+1 (555) 123-4567",
		Address:    "Calle 1",
		City:       "Lima",
		PostalCode: "15001",
		Notes:      "  timbre roto ",
		CardNumber: "4111 1111 1111 1111",
		CardName:   "ANA PEREZ",
		Expiry:     "12/30",
		CVV:        "123",
	}
}

func newTestCheckout(orders OrderBackend, items int) (*CheckoutService, *stubCheckoutCart) {
	cart := &stubCheckoutCart{count: items}
	return NewCheckoutService(orders, cart, zerolog.Nop()), cart
}

func TestCheckoutService_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("success completes and clears the cart", func(t *testing.T) {
		orders := &stubOrders{}
		co, cart := newTestCheckout(orders, 2)
		co.SetForm(validForm())

		require.NoError(t, co.Submit(ctx))
		assert.Equal(t, StepComplete, co.Step())
		assert.True(t, cart.cleared)
		assert.Equal(t, "TR-000012", co.OrderReference())
		assert.Equal(t, "Calle 1, Lima, 15001", orders.req.ShippingAddress)
		assert.Equal(t, "timbre roto", orders.req.Notes)

		require.NoError(t, co.Submit(ctx))
		assert.Equal(t, 1, orders.calls, "a completed checkout does not resubmit")
	})

	t.Run("invalid payment stays local", func(t *testing.T) {
		orders := &stubOrders{}
		co, _ := newTestCheckout(orders, 1)
		f := validForm()
		f.CardNumber = "4111"
		co.SetForm(f)

		err := co.Submit(ctx)
		var verrs ValidationErrors
		require.True(t, errors.As(err, &verrs))
		assert.ErrorIs(t, err, ErrValidation)
		assert.True(t, verrs.Has("cardNumber"))
		assert.Equal(t, StepPayment, co.Step())
		assert.Zero(t, orders.calls)
	})

	t.Run("invalid shipping returns to the first step", func(t *testing.T) {
		orders := &stubOrders{}
		co, _ := newTestCheckout(orders, 1)
		f := validForm()
		f.FirstName = ""
		f.CVV = ""
		co.SetForm(f)

		require.Error(t, co.Submit(ctx))
		assert.Equal(t, StepShipping, co.Step())
		errs := co.Errors()
		require.NotEmpty(t, errs)
		assert.Equal(t, "firstName", errs[0].Field)
		assert.Equal(t, "El nombre es obligatorio", errs[0].Message)
		assert.Zero(t, orders.calls)
	})

	t.Run("empty cart", func(t *testing.T) {
		orders := &stubOrders{}
		co, _ := newTestCheckout(orders, 0)
		co.SetForm(validForm())

		assert.ErrorIs(t, co.Submit(ctx), ErrEmptyCart)
		assert.Zero(t, orders.calls)
	})

	t.Run("failure is never reported as success", func(t *testing.T) {
		orders := &stubOrders{err: fmt.Errorf("dial: %w", apiclient.ErrNetwork)}
		co, cart := newTestCheckout(orders, 1)
		co.SetForm(validForm())

		assert.Error(t, co.Submit(ctx))
		assert.Equal(t, StepFailed, co.Step())
		assert.Nil(t, co.Order())
		assert.Empty(t, co.OrderReference())
		assert.False(t, cart.cleared)
		assert.Contains(t, co.Error(), msgOrderFailed)
		assert.Contains(t, co.Error(), MsgConnectivity)

		co.Retry()
		assert.Equal(t, StepPayment, co.Step())
		assert.Empty(t, co.Error())
	})

	t.Run("server message is kept", func(t *testing.T) {
		orders := &stubOrders{err: &apiclient.APIError{Status: http.StatusBadRequest, Message: "stock insuficiente"}}
		co, _ := newTestCheckout(orders, 1)
		co.SetForm(validForm())

		assert.Error(t, co.Submit(ctx))
		assert.Equal(t, msgOrderFailed+" stock insuficiente", co.Error())
	})
}

func TestCheckoutService_Steps(t *testing.T) {
	co, _ := newTestCheckout(&stubOrders{}, 1)
	assert.Equal(t, StepShipping, co.Step())

	require.Error(t, co.Next())
	assert.Equal(t, StepShipping, co.Step())

	for _, kv := range [][2]string{
		{"firstName", "Ana"}, {"lastName", "Pérez"}, {"email", "ana@example.com"},
		{"phone", "15551234567"}, {"address", "Calle 1"}, {"city", "Lima"}, {"postalCode", "15001"},
	} {
		require.True(t, co.SetField(kv[0], kv[1]))
	}
	assert.False(t, co.SetField("unknown", "x"))
	assert.Equal(t, "+1 (555) 123-4567", co.Form().Phone)

	require.NoError(t, co.Next())
	assert.Equal(t, StepPayment, co.Step())

	co.Back()
	assert.Equal(t, StepShipping, co.Step())

	co.Reset()
	assert.Equal(t, CheckoutForm{}, co.Form())
}

func TestDemoOrderBackend(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	cart, _ := newTestCart(t)
	require.True(t, cart.AddToCart(context.Background(), headphones, 2))

	b := &DemoOrderBackend{Cart: cart, Now: func() time.Time { return now }}
	order, err := b.CreateOrder(context.Background(), models.CreateOrderRequest{ShippingAddress: "x"})
	require.NoError(t, err)
	assert.Equal(t, "TR-1700000000123", order.OrderNumber)
	assert.InDelta(t, 100.0, order.Total, 0.001)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)
}

func TestFormatters(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string) string
		in   string
		want string
	}{
		{"card groups of four", FormatCardNumber, "4111111111111111", "4111 1111 1111 1111"},
		{"card strips letters", FormatCardNumber, "4111-aa11 11", "4111 1111"},
		{"card caps at sixteen", FormatCardNumber, "41111111111111119999", "4111 1111 1111 1111"},
		{"expiry slash", FormatExpiry, "1230", "12/30"},
		{"expiry partial", FormatExpiry, "1", "1"},
		{"expiry two digits", FormatExpiry, "12", "12/"},
		{"cvv digits", FormatCVV, "12a34", "1234"},
		{"cvv cap", FormatCVV, "123456", "1234"},
		{"phone full", FormatPhone, "15551234567", "+1 (555) 123-4567"},
		{"phone partial", FormatPhone, "1555", "+1 (555)"},
		{"phone short", FormatPhone, "15", "+1 (5"},
		{"phone empty", FormatPhone, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fn(tt.in))
		})
	}
}

func TestCheckoutForm_Validate(t *testing.T) {
	tests := []struct {
		name    string
		edit    func(f *CheckoutForm)
		field   string
		message string
	}{
		{"empty card number", func(f *CheckoutForm) { f.CardNumber = "" }, "cardNumber", "El número de tarjeta es obligatorio"},
		{"short card number", func(f *CheckoutForm) { f.CardNumber = "1234" }, "cardNumber", "El número de tarjeta no es válido"},
		{"card number with letters", func(f *CheckoutForm) { f.CardNumber = "4111 1111 1111 111x" }, "cardNumber", "El número de tarjeta no es válido"},
		{"empty email", func(f *CheckoutForm) { f.Email = "" }, "email", "El email es obligatorio"},
		{"malformed email", func(f *CheckoutForm) { f.Email = "not-an-email" }, "email", "El email no es válido"},
		{"expiry without slash", func(f *CheckoutForm) { f.Expiry = "1230" }, "expiryDate", "Formato de fecha inválido (MM/AA)"},
		{"expiry with long year", func(f *CheckoutForm) { f.Expiry = "12/2030" }, "expiryDate", "Formato de fecha inválido (MM/AA)"},
		{"short cvv", func(f *CheckoutForm) { f.CVV = "12" }, "cvv", "El CVV no es válido"},
		{"cvv with letters", func(f *CheckoutForm) { f.CVV = "12a" }, "cvv", "El CVV no es válido"},
		{"short phone", func(f *CheckoutForm) { f.Phone = "555-1234" }, "phone", "El teléfono debe tener al menos 10 dígitos"},
		{"empty last name", func(f *CheckoutForm) { f.LastName = "" }, "lastName", "El apellido es obligatorio"},
		{"empty postal code", func(f *CheckoutForm) { f.PostalCode = "" }, "postalCode", "El código postal es obligatorio"},
		{"empty card name", func(f *CheckoutForm) { f.CardName = "" }, "cardName", "El nombre en la tarjeta es obligatorio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validForm()
			tt.edit(&form)

			errs := form.Validate()
			require.Len(t, errs, 1)
			assert.Equal(t, tt.field, errs[0].Field)
			assert.Equal(t, tt.message, errs[0].Message)

			orders := &stubOrders{}
			co, _ := newTestCheckout(orders, 1)
			co.SetForm(form)
			err := co.Submit(context.Background())
			assert.ErrorIs(t, err, ErrValidation)
			assert.True(t, co.Errors().Has(tt.field))
			assert.Zero(t, orders.calls, "invalid forms never reach the order API")
		})
	}

	t.Run("empty form reports every required field in order", func(t *testing.T) {
		errs := CheckoutForm{}.Validate()
		require.Len(t, errs, 11)
		assert.Equal(t, "firstName", errs[0].Field)
		assert.Equal(t, "cvv", errs[len(errs)-1].Field)
	})

	assert.Empty(t, validForm().Validate())
}
