package app

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"tecnoroute/internal/config"
	"tecnoroute/internal/models"
	"tecnoroute/internal/router"
	"tecnoroute/internal/services"
	"tecnoroute/internal/session"
	"tecnoroute/internal/state"
	"tecnoroute/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc := services.NewContainer(store.NewMemoryStore(), "test-secret", zerolog.Nop())
	require.NoError(t, svc.Seed(context.Background()))
	srv := httptest.NewServer(router.SetupRouter(svc, router.Options{}, zerolog.Nop()))
	t.Cleanup(srv.Close)
	return srv
}

func newTestApp(t *testing.T, baseURL string) *App {
	t.Helper()
	cfg := config.Config{
		APIBaseURL:         baseURL,
		APITimeout:         5 * time.Second,
		DriverPollInterval: time.Minute,
	}
	a := New(cfg, session.NewMemoryStore(), zerolog.Nop())
	require.NoError(t, a.Auth.Hydrate(context.Background()))
	return a
}

func checkoutForm() state.CheckoutForm {
	return state.CheckoutForm{
		FirstName:  "Ana",
		LastName:   "Pérez",
		Email:      "ana@example.com",
		Phone:      "+1 (555) 123-4567",
		Address:    "Calle 1",
		City:       "Lima",
		PostalCode: "15001",
		CardNumber: "4111 1111 1111 1111",
		CardName:   "ANA PEREZ",
		Expiry:     "12/30",
		CVV:        "123",
	}
}

func addProduct(t *testing.T, a *App, productID, qty int) {
	t.Helper()
	ctx := context.Background()
	p, err := a.API.Products.Get(ctx, productID)
	require.NoError(t, err)
	require.True(t, a.Cart.AddToCart(ctx, *p, qty), a.Cart.Error())
}

func TestCustomerCheckout(t *testing.T) {
	srv := newTestServer(t)
	a := newTestApp(t, srv.URL)
	ctx := context.Background()

	res := a.Login(ctx, "user@tecnoroute.com", "wrong")
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
	assert.False(t, a.Auth.IsAuthenticated())

	res = a.Login(ctx, "user@tecnoroute.com", "user123")
	require.True(t, res.Success, res.Error)
	assert.True(t, a.Auth.IsUser())
	assert.Equal(t, state.CartEmpty, a.Cart.Status())

	addProduct(t, a, 1, 2)
	addProduct(t, a, 1, 1)
	require.Len(t, a.Cart.Items(), 1)
	assert.Equal(t, 3, a.Cart.Items()[0].Quantity)
	assert.NotZero(t, a.Cart.Items()[0].CartEntryID)

	a.Checkout.SetForm(checkoutForm())
	require.NoError(t, a.Checkout.Submit(ctx))
	assert.Equal(t, state.StepComplete, a.Checkout.Step())
	assert.Equal(t, "TR-000001", a.Checkout.OrderReference())
	assert.Empty(t, a.Cart.Items())

	orders, err := a.API.Orders.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, models.OrderPending, orders[0].Status)
	assert.Equal(t, "Calle 1, Lima, 15001", orders[0].ShippingAddress)
}

func TestStaleCartReconciles(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	first := newTestApp(t, srv.URL)
	second := newTestApp(t, srv.URL)
	require.True(t, first.Login(ctx, "user@tecnoroute.com", "user123").Success)
	require.True(t, second.Login(ctx, "user@tecnoroute.com", "user123").Success)

	addProduct(t, first, 1, 1)

	p, err := second.API.Products.Get(ctx, 2)
	require.NoError(t, err)
	assert.False(t, second.Cart.AddToCart(ctx, *p, 1))
	assert.Equal(t, state.MsgConflict, second.Cart.Error())
	require.Len(t, second.Cart.Items(), 1, "reloaded from the server")
	assert.Equal(t, 1, second.Cart.Items()[0].ProductID)

	assert.True(t, second.Cart.AddToCart(ctx, *p, 1))
	assert.Len(t, second.Cart.Items(), 2)
}

func TestDriverTakesAndDelivers(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	customer := newTestApp(t, srv.URL)
	require.True(t, customer.Login(ctx, "user@tecnoroute.com", "user123").Success)
	addProduct(t, customer, 2, 1)
	customer.Checkout.SetForm(checkoutForm())
	require.NoError(t, customer.Checkout.Submit(ctx))
	orderID := customer.Checkout.Order().ID

	driver := newTestApp(t, srv.URL)
	require.True(t, driver.Login(ctx, "conductor@tecnoroute.com", "conductor123").Success)
	assert.True(t, driver.Auth.IsDriver())
	require.NoError(t, driver.Driver.Start(ctx))
	assert.Equal(t, 1, driver.Driver.Identity().DriverID)
	require.Len(t, driver.Driver.Pending(), 1)

	require.NoError(t, driver.Driver.TakeOrder(ctx, orderID))
	require.NotNil(t, driver.Driver.Active())
	assert.Equal(t, models.OrderConfirmed, driver.Driver.Active().Status)
	assert.Empty(t, driver.Driver.Pending())

	require.NoError(t, driver.Driver.CompleteOrder(ctx))
	assert.Nil(t, driver.Driver.Active())

	got, err := customer.API.Orders.Get(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderDelivered, got.Status)
	require.NotNil(t, got.Driver)
	assert.Equal(t, 1, got.Driver.ID)
}

func TestAdminCycleAndDashboard(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	customer := newTestApp(t, srv.URL)
	require.True(t, customer.Login(ctx, "user@tecnoroute.com", "user123").Success)
	addProduct(t, customer, 1, 1)
	customer.Checkout.SetForm(checkoutForm())
	require.NoError(t, customer.Checkout.Submit(ctx))

	_, err := customer.Orders.List(ctx, "")
	assert.ErrorIs(t, err, state.ErrForbidden)

	admin := newTestApp(t, srv.URL)
	require.True(t, admin.Login(ctx, "admin@tecnoroute.com", "admin123").Success)

	orders, err := admin.Orders.List(ctx, models.OrderPending)
	require.NoError(t, err)
	require.Len(t, orders, 1)

	updated, err := admin.Orders.CycleStatus(ctx, orders[0])
	require.NoError(t, err)
	assert.Equal(t, models.OrderConfirmed, updated.Status)

	stats, err := admin.Dashboard.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Orders.Total)
	assert.Equal(t, 1, stats.Drivers)
	assert.Equal(t, 1, stats.ActiveRoutes)
}

func TestRejectedTokenEndsSession(t *testing.T) {
	srv := newTestServer(t)
	a := newTestApp(t, srv.URL)
	ctx := context.Background()

	require.True(t, a.Login(ctx, "user@tecnoroute.com", "user123").Success)
	addProduct(t, a, 1, 1)
	require.Len(t, a.Cart.Items(), 1)

	require.NoError(t, a.Session.Set(ctx, session.KeyToken, "not-a-jwt"))
	p, err := a.API.Products.Get(ctx, 2)
	require.NoError(t, err, "catalog is public")

	assert.False(t, a.Cart.AddToCart(ctx, *p, 1))
	assert.False(t, a.Auth.IsAuthenticated())
	assert.Empty(t, a.Cart.Items())
	assert.Equal(t, state.CartEmpty, a.Cart.Status())

	_, err = a.Session.Get(ctx, session.KeyToken)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestSwitchingUsersDropsTheCart(t *testing.T) {
	srv := newTestServer(t)
	a := newTestApp(t, srv.URL)
	ctx := context.Background()

	require.True(t, a.Login(ctx, "user@tecnoroute.com", "user123").Success)
	addProduct(t, a, 1, 2)
	require.Len(t, a.Cart.Items(), 1)

	require.True(t, a.Login(ctx, "admin@tecnoroute.com", "admin123").Success)
	assert.True(t, a.Auth.IsAdmin())
	assert.Empty(t, a.Cart.Items())
	assert.Zero(t, a.Cart.ItemsCount())
	assert.Equal(t, state.CartEmpty, a.Cart.Status())
}
