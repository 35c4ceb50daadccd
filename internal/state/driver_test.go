package state

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"tecnoroute/internal/apiclient"
	"tecnoroute/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDriverOrders applies status changes to its own list so a refresh
// after a claim sees the server's view.
type fakeDriverOrders struct {
	mu       sync.Mutex
	orders   []models.Order
	driver   models.DriverInfo
	failNext error
	changes  []models.OrderStatus
}

func (f *fakeDriverOrders) List(context.Context, url.Values) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Order(nil), f.orders...), nil
}

func (f *fakeDriverOrders) ChangeStatus(_ context.Context, id int, status models.OrderStatus) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, status)
	if err := f.failNext; err != nil {
		f.failNext = nil
		return nil, err
	}
	for i := range f.orders {
		if f.orders[i].ID == id {
			f.orders[i].Status = status
			if status == models.OrderConfirmed {
				d := f.driver
				f.orders[i].Driver = &d
			}
			o := f.orders[i]
			return &o, nil
		}
	}
	return nil, &apiclient.APIError{Status: http.StatusNotFound, Message: "no encontrado"}
}

type stubProfiles struct {
	driver *models.Driver
	err    error
}

func (p stubProfiles) Profile(context.Context) (*models.Driver, error) { return p.driver, p.err }

// profileFunc lets a test act while the profile request is in flight.
type profileFunc func(context.Context) (*models.Driver, error)

func (f profileFunc) Profile(ctx context.Context) (*models.Driver, error) { return f(ctx) }

type stubSessionUser struct{ user *models.User }

func (s stubSessionUser) User() *models.User { return s.user }

var driverUser = &models.User{ID: 3, Username: "conductor", Role: string(models.RoleDriver)}

func pendingOrder(id int) models.Order {
	return models.Order{ID: id, OrderNumber: fmt.Sprintf("TR-%06d", id), Status: models.OrderPending}
}

func newTestDriver(t *testing.T, orders ...models.Order) (*DriverService, *fakeDriverOrders) {
	t.Helper()
	api := &fakeDriverOrders{orders: orders, driver: models.DriverInfo{ID: 7, UserID: 3}}
	svc := NewDriverService(api, stubProfiles{driver: &models.Driver{ID: 7, UserID: 3, Name: "Luis"}},
		stubSessionUser{driverUser}, time.Minute, zerolog.Nop())
	require.NoError(t, svc.Start(context.Background()))
	return svc, api
}

func TestDriverService_Start(t *testing.T) {
	ctx := context.Background()

	t.Run("identity comes from the profile", func(t *testing.T) {
		svc, _ := newTestDriver(t)
		id := svc.Identity()
		require.NotNil(t, id)
		assert.Equal(t, 7, id.DriverID)
		assert.Equal(t, "Luis", id.Name)
	})

	t.Run("falls back to the user's driver id", func(t *testing.T) {
		driverID := 4
		user := *driverUser
		user.DriverID = &driverID
		svc := NewDriverService(&fakeDriverOrders{}, stubProfiles{err: errors.New("404")}, stubSessionUser{&user}, time.Minute, zerolog.Nop())
		require.NoError(t, svc.Start(ctx))
		assert.Equal(t, 4, svc.Identity().DriverID)
	})

	t.Run("last resort matches by user id", func(t *testing.T) {
		mine := models.Order{ID: 1, Status: models.OrderShipped, Driver: &models.DriverInfo{UserID: 3}}
		theirs := models.Order{ID: 2, Status: models.OrderShipped, Driver: &models.DriverInfo{UserID: 8}}
		svc := NewDriverService(&fakeDriverOrders{orders: []models.Order{theirs, mine}}, stubProfiles{err: errors.New("404")},
			stubSessionUser{driverUser}, time.Minute, zerolog.Nop())
		require.NoError(t, svc.Start(ctx))
		require.NotNil(t, svc.Active())
		assert.Equal(t, 1, svc.Active().ID)
	})

	t.Run("requires a session", func(t *testing.T) {
		svc := NewDriverService(&fakeDriverOrders{}, stubProfiles{}, stubSessionUser{}, time.Minute, zerolog.Nop())
		assert.ErrorIs(t, svc.Start(ctx), ErrNotAuthenticated)
	})
}

func TestDriverService_Refresh(t *testing.T) {
	assigned := models.Order{ID: 3, Status: models.OrderPending, Driver: &models.DriverInfo{ID: 9}}
	other := models.Order{ID: 4, Status: models.OrderConfirmed, Driver: &models.DriverInfo{ID: 9}}
	mine := models.Order{ID: 5, Status: models.OrderConfirmed, Driver: &models.DriverInfo{ID: 7}}
	done := models.Order{ID: 6, Status: models.OrderDelivered, Driver: &models.DriverInfo{ID: 7}}

	svc, _ := newTestDriver(t, pendingOrder(1), pendingOrder(2), assigned, other, mine, done)

	pending := svc.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, 1, pending[0].ID)
	require.NotNil(t, svc.Active())
	assert.Equal(t, 5, svc.Active().ID)
	assert.False(t, svc.CanClaim())
}

func TestDriverService_TakeOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("claims and reconciles", func(t *testing.T) {
		svc, api := newTestDriver(t, pendingOrder(1), pendingOrder(2))
		assert.True(t, svc.CanClaim())

		require.NoError(t, svc.TakeOrder(ctx, 1))
		require.NotNil(t, svc.Active())
		assert.Equal(t, 1, svc.Active().ID)
		assert.Equal(t, models.OrderConfirmed, svc.Active().Status)
		assert.Len(t, svc.Pending(), 1)
		assert.Equal(t, []models.OrderStatus{models.OrderConfirmed}, api.changes)

		assert.ErrorIs(t, svc.TakeOrder(ctx, 2), ErrActiveOrder)
		assert.Len(t, api.changes, 1, "no call while an order is active")
	})

	t.Run("rolls back when the claim is refused", func(t *testing.T) {
		svc, api := newTestDriver(t, pendingOrder(1))
		api.failNext = &apiclient.APIError{Status: http.StatusConflict, Message: "el pedido ya fue tomado por otro conductor"}

		assert.Error(t, svc.TakeOrder(ctx, 1))
		assert.Nil(t, svc.Active())
		assert.Len(t, svc.Pending(), 1)
		assert.Equal(t, "el pedido ya fue tomado por otro conductor", svc.Error())
		assert.False(t, svc.Busy())
	})

	t.Run("unknown order", func(t *testing.T) {
		svc, _ := newTestDriver(t, pendingOrder(1))
		assert.ErrorIs(t, svc.TakeOrder(ctx, 99), ErrOrderNotPending)
	})
}

func TestDriverService_CompleteOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers the active order", func(t *testing.T) {
		svc, api := newTestDriver(t, pendingOrder(1))
		assert.ErrorIs(t, svc.CompleteOrder(ctx), ErrNoActiveOrder)

		require.NoError(t, svc.TakeOrder(ctx, 1))
		require.NoError(t, svc.CompleteOrder(ctx))
		assert.Nil(t, svc.Active())
		assert.True(t, svc.CanClaim())
		assert.Equal(t, []models.OrderStatus{models.OrderConfirmed, models.OrderDelivered}, api.changes)
	})

	t.Run("failure keeps the order active", func(t *testing.T) {
		svc, api := newTestDriver(t, pendingOrder(1))
		require.NoError(t, svc.TakeOrder(ctx, 1))

		api.failNext = &apiclient.APIError{Status: http.StatusInternalServerError, Message: "fallo"}
		assert.Error(t, svc.CompleteOrder(ctx))
		require.NotNil(t, svc.Active())
		assert.Equal(t, 1, svc.Active().ID)
	})
}

func TestDriverService_SessionLoss(t *testing.T) {
	t.Run("logout clears the queues", func(t *testing.T) {
		svc, _ := newTestDriver(t, pendingOrder(1))
		svc.HandleAuthChange(nil, false)

		assert.Nil(t, svc.Identity())
		assert.Empty(t, svc.Pending())
		assert.False(t, svc.CanClaim())
		assert.ErrorIs(t, svc.TakeOrder(context.Background(), 1), ErrNotAuthenticated)
	})

	t.Run("logout during start discards the identity", func(t *testing.T) {
		api := &fakeDriverOrders{orders: []models.Order{pendingOrder(1)}}
		var svc *DriverService
		profiles := profileFunc(func(context.Context) (*models.Driver, error) {
			svc.HandleAuthChange(nil, false)
			return nil, &apiclient.APIError{Status: http.StatusUnauthorized, Err: apiclient.ErrUnauthorized}
		})
		svc = NewDriverService(api, profiles, stubSessionUser{driverUser}, time.Minute, zerolog.Nop())

		assert.ErrorIs(t, svc.Start(context.Background()), ErrNotAuthenticated)
		assert.Nil(t, svc.Identity())
		assert.Empty(t, svc.Pending())
		assert.False(t, svc.CanClaim())
	})

	t.Run("another user signing in clears the queues", func(t *testing.T) {
		api := &fakeDriverOrders{orders: []models.Order{pendingOrder(1)}}
		svc := NewDriverService(api, stubProfiles{driver: &models.Driver{ID: 7}}, stubSessionUser{driverUser}, time.Minute, zerolog.Nop())
		svc.HandleAuthChange(driverUser, true)
		require.NoError(t, svc.Start(context.Background()))
		svc.HandleAuthChange(driverUser, true)
		require.Len(t, svc.Pending(), 1, "same user keeps the queues")

		svc.HandleAuthChange(&models.User{ID: 1, Role: string(models.RoleAdmin)}, true)
		assert.Nil(t, svc.Identity())
		assert.Empty(t, svc.Pending())
	})
}

func TestDriverService_Run(t *testing.T) {
	api := &fakeDriverOrders{driver: models.DriverInfo{ID: 7}}
	svc := NewDriverService(api, stubProfiles{driver: &models.Driver{ID: 7}}, stubSessionUser{driverUser}, 10*time.Millisecond, zerolog.Nop())
	require.NoError(t, svc.Start(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	api.mu.Lock()
	api.orders = append(api.orders, pendingOrder(1))
	api.mu.Unlock()

	assert.Eventually(t, func() bool { return len(svc.Pending()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
