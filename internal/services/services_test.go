package services

import (
	"context"
	"errors"
	"testing"

	"tecnoroute/internal/models"
	"tecnoroute/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContainer(t *testing.T) *Container {
	t.Helper()
	c := NewContainer(store.NewMemoryStore(), "test-secret", zerolog.Nop())
	require.NoError(t, c.Seed(context.Background()))
	return c
}

var (
	seededDriverID = 1
	adminClaims    = &Claims{UserID: 1, Role: string(models.RoleAdmin)}
	customerClaims = &Claims{UserID: 2, Role: string(models.RoleUser)}
	driverClaims   = &Claims{UserID: 3, Role: string(models.RoleDriver), DriverID: &seededDriverID}
)

func placeOrder(t *testing.T, c *Container, p *Claims, productID, qty int) *models.Order {
	t.Helper()
	ctx := context.Background()
	_, err := c.Carts.AddItem(ctx, p.UserID, productID, qty, 0)
	require.NoError(t, err)
	order, err := c.Orders.Create(ctx, p, &models.CreateOrderRequest{
		ShippingAddress: "Calle 1, Ciudad, 1000",
		ContactPhone:    "+1 (555) 123-4567",
	})
	require.NoError(t, err)
	return order
}

func TestSeedDemoData(t *testing.T) {
	c := newTestContainer(t)
	ctx := context.Background()

	t.Run("accounts can log in", func(t *testing.T) {
		for _, a := range DemoAccounts {
			u, err := c.Users.Authenticate(ctx, &models.LoginRequest{Email: a.Email, Password: a.Password})
			require.NoError(t, err, a.Email)
			assert.Equal(t, string(a.Role), u.Role)
		}
	})

	t.Run("driver account is linked to its profile", func(t *testing.T) {
		u, err := c.Users.GetUserByID(ctx, 3)
		require.NoError(t, err)
		require.NotNil(t, u.DriverID)

		d, err := c.Logistics.DriverByUserID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, *u.DriverID, d.ID)
	})

	t.Run("second seed is a no-op", func(t *testing.T) {
		require.NoError(t, c.Seed(ctx))
		n, err := c.Users.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, len(DemoAccounts), n)
	})
}

func TestUserService(t *testing.T) {
	c := newTestContainer(t)
	ctx := context.Background()

	u, err := c.Users.Register(ctx, &models.RegisterRequest{Nombre: "Ana", Email: "Ana@Example.com", Password: "secreto1"})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.Equal(t, string(models.RoleUser), u.Role)

	_, err = c.Users.Register(ctx, &models.RegisterRequest{Name: "Otra", Email: "ana@example.com", Password: "secreto1"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = c.Users.Register(ctx, &models.RegisterRequest{Name: "Corta", Email: "c@example.com", Password: "123"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = c.Users.Authenticate(ctx, &models.LoginRequest{Email: "ana@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = c.Users.Authenticate(ctx, &models.LoginRequest{Email: "nadie@example.com", Password: "x"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_TokenRoundTrip(t *testing.T) {
	auth := NewAuthService("secret", zerolog.Nop())
	driverID := 7
	token, err := auth.GenerateToken(&models.User{ID: 3, Email: "c@x.com", Role: "conductor", DriverID: &driverID})
	require.NoError(t, err)

	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, 3, claims.UserID)
	assert.True(t, claims.IsDriver())
	require.NotNil(t, claims.DriverID)
	assert.Equal(t, 7, *claims.DriverID)

	_, err = NewAuthService("other", zerolog.Nop()).ValidateToken(token)
	assert.Error(t, err)
}

func TestCartService(t *testing.T) {
	ctx := context.Background()

	t.Run("adding the same product merges lines", func(t *testing.T) {
		c := newTestContainer(t)
		_, err := c.Carts.AddItem(ctx, 2, 1, 1, 0)
		require.NoError(t, err)
		cart, err := c.Carts.AddItem(ctx, 2, 1, 2, 0)
		require.NoError(t, err)

		require.Len(t, cart.Items, 1)
		assert.Equal(t, 3, cart.Items[0].Quantity)
		assert.InDelta(t, 3*59.99, cart.Total, 0.001)
	})

	t.Run("every mutation bumps the version", func(t *testing.T) {
		c := newTestContainer(t)
		cart, err := c.Carts.Get(ctx, 2)
		require.NoError(t, err)
		v := cart.Version

		cart, err = c.Carts.AddItem(ctx, 2, 1, 1, v)
		require.NoError(t, err)
		assert.Equal(t, v+1, cart.Version)
	})

	t.Run("stale version is rejected", func(t *testing.T) {
		c := newTestContainer(t)
		cart, err := c.Carts.AddItem(ctx, 2, 1, 1, 0)
		require.NoError(t, err)

		_, err = c.Carts.UpdateItem(ctx, 2, cart.Items[0].ID, 2, cart.Version-1)
		assert.ErrorIs(t, err, ErrVersionMismatch)
	})

	t.Run("quantity cannot exceed stock", func(t *testing.T) {
		c := newTestContainer(t)
		_, err := c.Carts.AddItem(ctx, 2, 6, 6, 0)
		assert.ErrorIs(t, err, ErrInsufficientStock)
	})

	t.Run("lines belong to their owner", func(t *testing.T) {
		c := newTestContainer(t)
		cart, err := c.Carts.AddItem(ctx, 2, 1, 1, 0)
		require.NoError(t, err)

		_, err = c.Carts.RemoveItem(ctx, 1, cart.Items[0].ID, 0)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unknown product", func(t *testing.T) {
		c := newTestContainer(t)
		_, err := c.Carts.AddItem(ctx, 2, 999, 1, 0)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestOrderService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("reserves stock and empties the cart", func(t *testing.T) {
		c := newTestContainer(t)
		order := placeOrder(t, c, customerClaims, 6, 2)

		assert.Equal(t, models.OrderPending, order.Status)
		assert.Equal(t, "TR-000001", order.OrderNumber)
		assert.InDelta(t, 2*189.9, order.Total, 0.001)
		assert.Nil(t, order.Driver)

		p, err := c.Catalog.GetProduct(ctx, 6)
		require.NoError(t, err)
		assert.Equal(t, 3, p.Stock)

		cart, err := c.Carts.Get(ctx, customerClaims.UserID)
		require.NoError(t, err)
		assert.Empty(t, cart.Items)
	})

	t.Run("empty cart", func(t *testing.T) {
		c := newTestContainer(t)
		_, err := c.Orders.Create(ctx, customerClaims, &models.CreateOrderRequest{ShippingAddress: "x", ContactPhone: "y"})
		assert.ErrorIs(t, err, ErrEmptyCart)
	})

	t.Run("missing address", func(t *testing.T) {
		c := newTestContainer(t)
		_, err := c.Orders.Create(ctx, customerClaims, &models.CreateOrderRequest{ContactPhone: "y"})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestOrderService_Visibility(t *testing.T) {
	c := newTestContainer(t)
	ctx := context.Background()
	order := placeOrder(t, c, customerClaims, 1, 1)

	other := &Claims{UserID: 42, Role: string(models.RoleUser)}
	_, err := c.Orders.Get(ctx, other, order.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	mine, err := c.Orders.List(ctx, customerClaims, "")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	pool, err := c.Orders.List(ctx, driverClaims, string(models.OrderPending))
	require.NoError(t, err)
	assert.Len(t, pool, 1)

	_, err = c.Orders.List(ctx, adminClaims, "perdido")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestOrderService_DriverClaims(t *testing.T) {
	ctx := context.Background()

	t.Run("claim assigns the driver", func(t *testing.T) {
		c := newTestContainer(t)
		order := placeOrder(t, c, customerClaims, 1, 1)

		claimed, err := c.Orders.ChangeStatus(ctx, driverClaims, order.ID, string(models.OrderConfirmed))
		require.NoError(t, err)
		assert.Equal(t, models.OrderConfirmed, claimed.Status)
		require.NotNil(t, claimed.Driver)
		assert.Equal(t, seededDriverID, claimed.Driver.ID)
		assert.Equal(t, "Conductor Demo", claimed.Driver.Name)

		done, err := c.Orders.ChangeStatus(ctx, driverClaims, order.ID, string(models.OrderDelivered))
		require.NoError(t, err)
		assert.Equal(t, models.OrderDelivered, done.Status)
	})

	t.Run("an order can be claimed once", func(t *testing.T) {
		c := newTestContainer(t)
		order := placeOrder(t, c, customerClaims, 1, 1)
		second, err := c.Logistics.Drivers.Create(ctx, models.Driver{Name: "Otro", License: "L2", Available: true})
		require.NoError(t, err)
		rival := &Claims{UserID: 50, Role: string(models.RoleDriver), DriverID: &second.ID}

		_, err = c.Orders.ChangeStatus(ctx, driverClaims, order.ID, string(models.OrderConfirmed))
		require.NoError(t, err)

		_, err = c.Orders.ChangeStatus(ctx, rival, order.ID, string(models.OrderConfirmed))
		assert.Error(t, err)
	})

	t.Run("a driver holds one active order", func(t *testing.T) {
		c := newTestContainer(t)
		first := placeOrder(t, c, customerClaims, 1, 1)
		second := placeOrder(t, c, customerClaims, 2, 1)

		_, err := c.Orders.ChangeStatus(ctx, driverClaims, first.ID, string(models.OrderConfirmed))
		require.NoError(t, err)
		_, err = c.Orders.ChangeStatus(ctx, driverClaims, second.ID, string(models.OrderConfirmed))
		assert.ErrorIs(t, err, ErrDriverBusy)
	})

	t.Run("driver without profile is refused", func(t *testing.T) {
		c := newTestContainer(t)
		order := placeOrder(t, c, customerClaims, 1, 1)
		noProfile := &Claims{UserID: 60, Role: string(models.RoleDriver)}

		_, err := c.Orders.ChangeStatus(ctx, noProfile, order.ID, string(models.OrderConfirmed))
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestOrderService_CustomerAndAdmin(t *testing.T) {
	ctx := context.Background()
	c := newTestContainer(t)
	order := placeOrder(t, c, customerClaims, 1, 1)

	_, err := c.Orders.ChangeStatus(ctx, customerClaims, order.ID, string(models.OrderConfirmed))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = c.Orders.ChangeStatus(ctx, driverClaims, order.ID, string(models.OrderConfirmed))
	require.NoError(t, err)

	_, err = c.Orders.ChangeStatus(ctx, customerClaims, order.ID, string(models.OrderCancelled))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = c.Orders.Update(ctx, customerClaims, order.ID, &models.UpdateOrderRequest{})
	assert.ErrorIs(t, err, ErrNotEditable)

	for _, next := range []models.OrderStatus{models.OrderShipped, models.OrderDelivered, models.OrderPending} {
		updated, err := c.Orders.ChangeStatus(ctx, adminClaims, order.ID, string(next))
		require.NoError(t, err)
		assert.Equal(t, next, updated.Status)
	}

	reset, err := c.Orders.Get(ctx, adminClaims, order.ID)
	require.NoError(t, err)
	assert.Nil(t, reset.Driver, "a reset order returns to the pool")

	assert.ErrorIs(t, c.Orders.Delete(ctx, customerClaims, order.ID), ErrForbidden)
	require.NoError(t, c.Orders.Delete(ctx, adminClaims, order.ID))
}

func TestOrderService_Stats(t *testing.T) {
	ctx := context.Background()
	c := newTestContainer(t)
	kept := placeOrder(t, c, customerClaims, 1, 1)
	cancelled := placeOrder(t, c, customerClaims, 2, 2)

	_, err := c.Orders.ChangeStatus(ctx, customerClaims, cancelled.ID, string(models.OrderCancelled))
	require.NoError(t, err)

	stats, err := c.Orders.Stats(ctx, adminClaims)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.ByStatus[models.OrderCancelled])
	assert.InDelta(t, kept.Total, stats.Revenue, 0.001)

	recent, err := c.Orders.Recent(ctx, customerClaims)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestLogisticsService(t *testing.T) {
	ctx := context.Background()
	c := newTestContainer(t)

	sh, err := c.Logistics.Shipments.Create(ctx, models.Shipment{Recipient: "Ana", Address: "Calle 1"})
	require.NoError(t, err)
	assert.NotEmpty(t, sh.TrackingNumber)
	assert.Equal(t, models.ShipmentPending, sh.Status)

	found, err := c.Logistics.ShipmentByTrackingNumber(ctx, sh.TrackingNumber)
	require.NoError(t, err)
	assert.Equal(t, sh.ID, found.ID)

	_, err = c.Logistics.ChangeShipmentStatus(ctx, sh.ID, models.ShipmentDelivered)
	require.NoError(t, err)
	_, err = c.Logistics.ChangeShipmentStatus(ctx, sh.ID, models.ShipmentInTransit)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	v, err := c.Logistics.Vehicles.Update(ctx, 1, []byte(`{"disponible": false, "id": 99}`))
	require.NoError(t, err)
	assert.Equal(t, 1, v.ID)
	assert.False(t, v.Available)
	assert.Equal(t, "TR-001", v.Plate)

	available, err := c.Logistics.AvailableVehicles(ctx)
	require.NoError(t, err)
	assert.Empty(t, available)

	_, err = c.Logistics.Clients.Create(ctx, models.Client{Name: "Sin email"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	routes, err := c.Logistics.ActiveRoutes(ctx)
	require.NoError(t, err)
	assert.Len(t, routes, 1)
}

var errDiskFull = errors.New("disk full")

// failingStore rejects writes of *kind, including writes made inside a
// transaction. An empty kind lets everything through.
type failingStore struct {
	store.Store
	kind *string
}

func (f failingStore) Insert(ctx context.Context, kind string, build func(id int) ([]byte, error)) (int, error) {
	if kind == *f.kind {
		return 0, errDiskFull
	}
	return f.Store.Insert(ctx, kind, build)
}

func (f failingStore) Put(ctx context.Context, kind string, id int, body []byte) error {
	if kind == *f.kind {
		return errDiskFull
	}
	return f.Store.Put(ctx, kind, id, body)
}

func (f failingStore) Tx(ctx context.Context, fn func(tx store.Store) error) error {
	return f.Store.Tx(ctx, func(tx store.Store) error {
		return fn(failingStore{Store: tx, kind: f.kind})
	})
}

func TestOrderService_CreateIsAtomic(t *testing.T) {
	req := &models.CreateOrderRequest{ShippingAddress: "Calle 1, Ciudad, 1000", ContactPhone: "+1 (555) 123-4567"}

	for _, kind := range []string{store.KindOrders, store.KindCarts} {
		t.Run(kind+" write fails", func(t *testing.T) {
			ctx := context.Background()
			var failKind string
			c := NewContainer(failingStore{Store: store.NewMemoryStore(), kind: &failKind}, "test-secret", zerolog.Nop())
			require.NoError(t, c.Seed(ctx))
			_, err := c.Carts.AddItem(ctx, customerClaims.UserID, 1, 2, 0)
			require.NoError(t, err)

			failKind = kind
			_, err = c.Orders.Create(ctx, customerClaims, req)
			assert.ErrorIs(t, err, errDiskFull)
			failKind = ""

			p, err := c.Catalog.GetProduct(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, 25, p.Stock, "reserved stock returned")

			cart, err := c.Carts.Get(ctx, customerClaims.UserID)
			require.NoError(t, err)
			require.Len(t, cart.Items, 1)
			assert.Equal(t, 2, cart.Items[0].Quantity)

			orders, err := c.Orders.List(ctx, adminClaims, "")
			require.NoError(t, err)
			assert.Empty(t, orders)

			order, err := c.Orders.Create(ctx, customerClaims, req)
			require.NoError(t, err)
			assert.Equal(t, "TR-000001", order.OrderNumber)

			p, err = c.Catalog.GetProduct(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, 23, p.Stock)
		})
	}
}
