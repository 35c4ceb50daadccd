package main

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"tecnoroute/internal/app"
	"tecnoroute/internal/config"
	"tecnoroute/internal/router"
	"tecnoroute/internal/services"
	"tecnoroute/internal/session"
	"tecnoroute/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPanelApp(t *testing.T) (*app.App, config.Config) {
	t.Helper()
	svc := services.NewContainer(store.NewMemoryStore(), "test-secret", zerolog.Nop())
	require.NoError(t, svc.Seed(context.Background()))
	srv := httptest.NewServer(router.SetupRouter(svc, router.Options{}, zerolog.Nop()))
	t.Cleanup(srv.Close)

	cfg := config.Config{
		APIBaseURL:         srv.URL,
		APITimeout:         5 * time.Second,
		DriverPollInterval: 10 * time.Millisecond,
	}
	a := app.New(cfg, session.NewMemoryStore(), zerolog.Nop())
	require.NoError(t, a.Auth.Hydrate(context.Background()))
	return a, cfg
}

func TestDriverPanel(t *testing.T) {
	t.Run("watch ends cleanly when the context is done", func(t *testing.T) {
		a, cfg := newPanelApp(t)
		require.True(t, a.Login(context.Background(), "conductor@tecnoroute.com", "conductor123").Success)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- driverPanel(ctx, a, cfg, []string{"-watch"}) }()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("driver panel did not stop after the context expired")
		}
	})

	t.Run("only drivers can open it", func(t *testing.T) {
		a, cfg := newPanelApp(t)
		require.True(t, a.Login(context.Background(), "user@tecnoroute.com", "user123").Success)
		assert.Error(t, driverPanel(context.Background(), a, cfg, nil))
	})
}
