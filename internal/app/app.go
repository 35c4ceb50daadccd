// Package app assembles the client: session storage, the API gateway and
// the state services, with their cross-wiring done in one place.
package app

import (
	"context"
	"fmt"

	"tecnoroute/internal/apiclient"
	"tecnoroute/internal/config"
	"tecnoroute/internal/models"
	"tecnoroute/internal/session"
	"tecnoroute/internal/state"

	"github.com/rs/zerolog"
)

type App struct {
	Session   session.Store
	API       *apiclient.Client
	Auth      *state.AuthService
	Cart      *state.CartService
	Checkout  *state.CheckoutService
	Driver    *state.DriverService
	Dashboard *state.DashboardService
	Orders    *state.OrderAdminService

	logger  zerolog.Logger
	closers []func() error
}

// New builds the object graph over an existing session store.
func New(cfg config.Config, store session.Store, logger zerolog.Logger) *App {
	a := &App{Session: store, logger: logger}

	a.API = apiclient.New(apiclient.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.APITimeout,
	}, apiclient.SessionTokens{Store: store}, logger)

	var backend state.AuthBackend = state.NewLiveAuthBackend(a.API)
	if cfg.DemoMode {
		backend = &state.FallbackAuthBackend{
			Primary: backend,
			Demo:    state.NewMockAuthBackend(state.DefaultDemoCredentials()),
			Logger:  logger,
		}
	}
	a.Auth = state.NewAuthService(backend, store, logger)

	a.Cart = state.NewCartService(a.API.Cart, a.Auth, logger)
	a.Driver = state.NewDriverService(a.API.Orders, a.API.Drivers, a.Auth, cfg.DriverPollInterval, logger)

	var orders state.OrderBackend = state.NewLiveOrderBackend(a.API)
	if cfg.DemoMode {
		orders = &state.DemoOrderBackend{Cart: a.Cart}
	}
	a.Checkout = state.NewCheckoutService(orders, a.Cart, logger)

	a.Dashboard = state.NewDashboardService(a.API, logger)
	a.Orders = state.NewOrderAdminService(a.API, a.Auth, logger)

	a.Auth.OnChange(a.Cart.HandleAuthChange)
	a.Auth.OnChange(a.Driver.HandleAuthChange)
	a.API.OnUnauthorized(a.Auth.SessionExpired)

	return a
}

// Init opens the configured session backend, builds the app and restores
// any persisted session.
func Init(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*App, error) {
	store, closer, err := OpenSession(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := New(cfg, store, logger)
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	if err := a.Auth.Hydrate(ctx); err != nil {
		a.Dispose()
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}
	return a, nil
}

// OpenSession picks the session backend named by SESSION_BACKEND.
func OpenSession(ctx context.Context, cfg config.Config) (session.Store, func() error, error) {
	switch cfg.SessionBackend {
	case "", "file":
		return session.NewFileStore(cfg.SessionFile), nil, nil
	case "memory":
		return session.NewMemoryStore(), nil, nil
	case "redis":
		rs := session.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword)
		if err := rs.Ping(ctx); err != nil {
			rs.Close()
			return nil, nil, fmt.Errorf("redis session store: %w", err)
		}
		return rs, rs.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}

// Login signs in and pulls the server cart for the new session.
func (a *App) Login(ctx context.Context, email, password string) state.Result {
	res := a.Auth.Login(ctx, email, password)
	if res.Success {
		a.LoadCart(ctx)
	}
	return res
}

func (a *App) Register(ctx context.Context, req models.RegisterRequest) state.Result {
	res := a.Auth.Register(ctx, req)
	if res.Success {
		a.LoadCart(ctx)
	}
	return res
}

// LoadCart refreshes the cart for customers. Failures stay on the cart's
// error state.
func (a *App) LoadCart(ctx context.Context) {
	if !a.Auth.IsUser() {
		return
	}
	if err := a.Cart.Load(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to load cart")
	}
}

// Dispose releases the session backend.
func (a *App) Dispose() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close resource")
		}
	}
	a.closers = nil
}
