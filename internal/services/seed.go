package services

import (
	"context"
	"fmt"

	"tecnoroute/internal/models"

	"github.com/rs/zerolog"
)

// DemoAccount is a seeded login. Passwords are documented for the demo only.
type DemoAccount struct {
	Name     string
	Email    string
	Password string
	Role     models.UserRole
}

var DemoAccounts = []DemoAccount{
	{Name: "Administrador", Email: "admin@tecnoroute.com", Password: "admin123", Role: models.RoleAdmin},
	{Name: "Usuario Demo", Email: "user@tecnoroute.com", Password: "user123", Role: models.RoleUser},
	{Name: "Conductor Demo", Email: "conductor@tecnoroute.com", Password: "conductor123", Role: models.RoleDriver},
}

var demoCategories = []models.Category{
	{Name: "Electrónica", Description: "Dispositivos y accesorios"},
	{Name: "Hogar", Description: "Artículos para el hogar"},
	{Name: "Oficina", Description: "Material de oficina"},
}

var demoProducts = []models.Product{
	{Name: "Audífonos inalámbricos", Description: "Bluetooth 5.3 con cancelación de ruido", Price: 59.99, Category: "Electrónica", Stock: 25},
	{Name: "Cargador USB-C", Description: "Carga rápida de 65W", Price: 24.5, Category: "Electrónica", Stock: 40},
	{Name: "Lámpara de escritorio", Description: "LED regulable", Price: 32, Category: "Hogar", Stock: 15},
	{Name: "Juego de sartenes", Description: "Antiadherente, 3 piezas", Price: 45.75, Category: "Hogar", Stock: 8},
	{Name: "Cuaderno profesional", Description: "100 hojas cuadriculadas", Price: 3.2, Category: "Oficina", Stock: 200},
	{Name: "Silla ergonómica", Description: "Soporte lumbar ajustable", Price: 189.9, Category: "Oficina", Stock: 5},
}

// SeedDemoData fills an empty store with the demo accounts, a small catalog
// and one driver profile with a vehicle and route. It does nothing when
// users already exist.
func SeedDemoData(ctx context.Context, users *UserService, catalog *CatalogService, logistics *LogisticsService, logger zerolog.Logger) error {
	n, err := users.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if n > 0 {
		logger.Debug().Int("users", n).Msg("Store already seeded")
		return nil
	}

	for _, c := range demoCategories {
		if _, err := catalog.CreateCategory(ctx, c); err != nil {
			return fmt.Errorf("seed category %s: %w", c.Name, err)
		}
	}
	for _, p := range demoProducts {
		if _, err := catalog.CreateProduct(ctx, p); err != nil {
			return fmt.Errorf("seed product %s: %w", p.Name, err)
		}
	}

	for _, a := range DemoAccounts {
		u, err := users.CreateUser(ctx, a.Name, a.Email, a.Password, a.Role, nil)
		if err != nil {
			return fmt.Errorf("seed user %s: %w", a.Email, err)
		}
		if a.Role != models.RoleDriver {
			continue
		}

		d, err := logistics.Drivers.Create(ctx, models.Driver{
			UserID:    u.ID,
			Name:      a.Name,
			License:   "LIC-0001",
			Phone:     "+1 (555) 010-0001",
			Available: true,
		})
		if err != nil {
			return fmt.Errorf("seed driver: %w", err)
		}
		if err := users.LinkDriver(ctx, u.ID, d.ID); err != nil {
			return fmt.Errorf("link driver: %w", err)
		}

		v, err := logistics.Vehicles.Create(ctx, models.Vehicle{Plate: "TR-001", Model: "Furgoneta", Capacity: 1200, Available: true})
		if err != nil {
			return fmt.Errorf("seed vehicle: %w", err)
		}
		_, err = logistics.Routes.Create(ctx, models.Route{
			Name:        "Centro - Norte",
			Origin:      "Almacén central",
			Destination: "Zona norte",
			DistanceKm:  18.5,
			Active:      true,
			DriverID:    &d.ID,
			VehicleID:   &v.ID,
		})
		if err != nil {
			return fmt.Errorf("seed route: %w", err)
		}
	}

	logger.Info().
		Int("users", len(DemoAccounts)).
		Int("products", len(demoProducts)).
		Msg("Demo data seeded")
	return nil
}
