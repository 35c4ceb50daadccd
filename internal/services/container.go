package services

import (
	"context"

	"tecnoroute/internal/store"

	"github.com/rs/zerolog"
)

// Container wires the demo API services over one store.
type Container struct {
	Auth      *AuthService
	Users     *UserService
	Catalog   *CatalogService
	Carts     *CartService
	Orders    *OrderService
	Logistics *LogisticsService

	logger zerolog.Logger
}

func NewContainer(s store.Store, jwtSecret string, logger zerolog.Logger) *Container {
	catalog := NewCatalogService(s, logger)
	carts := NewCartService(s, catalog, logger)
	logistics := NewLogisticsService(s, logger)

	return &Container{
		Auth:      NewAuthService(jwtSecret, logger),
		Users:     NewUserService(s, logger),
		Catalog:   catalog,
		Carts:     carts,
		Orders:    NewOrderService(s, carts, catalog, logistics, logger),
		Logistics: logistics,
		logger:    logger,
	}
}

func (c *Container) Seed(ctx context.Context) error {
	return SeedDemoData(ctx, c.Users, c.Catalog, c.Logistics, c.logger)
}
