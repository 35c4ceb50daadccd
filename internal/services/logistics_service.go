package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tecnoroute/internal/models"
	"tecnoroute/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Collection is plain CRUD over one document kind.
type Collection[T any] struct {
	store    store.Store
	kind     string
	setID    func(*T, int)
	validate func(*T) error
	logger   zerolog.Logger
}

func NewCollection[T any](s store.Store, kind string, setID func(*T, int), validate func(*T) error, logger zerolog.Logger) *Collection[T] {
	return &Collection[T]{
		store:    s,
		kind:     kind,
		setID:    setID,
		validate: validate,
		logger:   logger.With().Str("kind", kind).Logger(),
	}
}

func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	return store.ListAs[T](ctx, c.store, c.kind)
}

func (c *Collection[T]) Get(ctx context.Context, id int) (*T, error) {
	return store.GetAs[T](ctx, c.store, c.kind, id)
}

func (c *Collection[T]) Create(ctx context.Context, in T) (*T, error) {
	if c.validate != nil {
		if err := c.validate(&in); err != nil {
			return nil, err
		}
	}
	_, err := c.store.Insert(ctx, c.kind, func(id int) ([]byte, error) {
		c.setID(&in, id)
		return json.Marshal(in)
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to create document")
		return nil, fmt.Errorf("failed to create %s: %w", c.kind, err)
	}
	return &in, nil
}

// Update overlays the JSON fields in patch onto the stored document.
func (c *Collection[T]) Update(ctx context.Context, id int, patch json.RawMessage) (*T, error) {
	doc, err := c.store.Get(ctx, c.kind, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(doc.Body, &fields); err != nil {
		return nil, fmt.Errorf("decode %s/%d: %w", c.kind, id, err)
	}
	changes := map[string]json.RawMessage{}
	if err := json.Unmarshal(patch, &changes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	for k, v := range changes {
		if k == "id" {
			continue
		}
		fields[k] = v
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(merged, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if c.validate != nil {
		if err := c.validate(&out); err != nil {
			return nil, err
		}
	}
	if err := store.PutAs(ctx, c.store, c.kind, id, out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Collection[T]) Delete(ctx context.Context, id int) error {
	return c.store.Delete(ctx, c.kind, id)
}

func (c *Collection[T]) Count(ctx context.Context) (int, error) {
	docs, err := c.store.List(ctx, c.kind)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (c *Collection[T]) filter(ctx context.Context, keep func(T) bool) ([]T, error) {
	all, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(all))
	for _, v := range all {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

func required(fields ...string) error {
	for _, f := range fields {
		if strings.TrimSpace(f) == "" {
			return fmt.Errorf("%w: faltan campos obligatorios", ErrInvalidInput)
		}
	}
	return nil
}

// LogisticsService backs the admin resources: clients, drivers, vehicles,
// routes and shipments.
type LogisticsService struct {
	Clients   *Collection[models.Client]
	Drivers   *Collection[models.Driver]
	Vehicles  *Collection[models.Vehicle]
	Routes    *Collection[models.Route]
	Shipments *Collection[models.Shipment]

	store  store.Store
	logger zerolog.Logger
}

func NewLogisticsService(s store.Store, logger zerolog.Logger) *LogisticsService {
	return &LogisticsService{
		Clients: NewCollection(s, store.KindClients,
			func(c *models.Client, id int) {
				c.ID = id
				if c.CreatedAt.IsZero() {
					c.CreatedAt = time.Now().UTC()
				}
			},
			func(c *models.Client) error { return required(c.Name, c.Email) },
			logger),
		Drivers: NewCollection(s, store.KindDrivers,
			func(d *models.Driver, id int) { d.ID = id },
			func(d *models.Driver) error { return required(d.Name, d.License) },
			logger),
		Vehicles: NewCollection(s, store.KindVehicles,
			func(v *models.Vehicle, id int) { v.ID = id },
			func(v *models.Vehicle) error { return required(v.Plate) },
			logger),
		Routes: NewCollection(s, store.KindRoutes,
			func(r *models.Route, id int) { r.ID = id },
			func(r *models.Route) error { return required(r.Name, r.Origin, r.Destination) },
			logger),
		Shipments: NewCollection(s, store.KindShipments,
			func(sh *models.Shipment, id int) {
				sh.ID = id
				if sh.TrackingNumber == "" {
					sh.TrackingNumber = "TRK-" + strings.ToUpper(uuid.NewString()[:8])
				}
				if sh.Status == "" {
					sh.Status = models.ShipmentPending
				}
				if sh.CreatedAt.IsZero() {
					sh.CreatedAt = time.Now().UTC()
				}
			},
			func(sh *models.Shipment) error { return required(sh.Recipient, sh.Address) },
			logger),
		store:  s,
		logger: logger,
	}
}

func (s *LogisticsService) AvailableDrivers(ctx context.Context) ([]models.Driver, error) {
	return s.Drivers.filter(ctx, func(d models.Driver) bool { return d.Available })
}

// DriverByUserID returns the driver profile linked to a user account.
func (s *LogisticsService) DriverByUserID(ctx context.Context, userID int) (*models.Driver, error) {
	drivers, err := store.FindAs[models.Driver](ctx, s.store, store.KindDrivers, "usuario_id", strconv.Itoa(userID))
	if err != nil {
		return nil, err
	}
	if len(drivers) == 0 {
		return nil, fmt.Errorf("conductor para usuario %d: %w", userID, ErrNotFound)
	}
	return &drivers[0], nil
}

func (s *LogisticsService) AvailableVehicles(ctx context.Context) ([]models.Vehicle, error) {
	return s.Vehicles.filter(ctx, func(v models.Vehicle) bool { return v.Available })
}

func (s *LogisticsService) ActiveRoutes(ctx context.Context) ([]models.Route, error) {
	return s.Routes.filter(ctx, func(r models.Route) bool { return r.Active })
}

func (s *LogisticsService) ShipmentByTrackingNumber(ctx context.Context, tracking string) (*models.Shipment, error) {
	if tracking == "" {
		return nil, fmt.Errorf("%w: el número de guía es obligatorio", ErrInvalidInput)
	}
	found, err := store.FindAs[models.Shipment](ctx, s.store, store.KindShipments, "numero_guia", tracking)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("guía %s: %w", tracking, ErrNotFound)
	}
	return &found[0], nil
}

func (s *LogisticsService) ChangeShipmentStatus(ctx context.Context, id int, status models.ShipmentStatus) (*models.Shipment, error) {
	switch status {
	case models.ShipmentPending, models.ShipmentInTransit, models.ShipmentDelivered, models.ShipmentReturned:
	default:
		return nil, fmt.Errorf("%w: estado de envío desconocido %q", ErrInvalidInput, status)
	}

	sh, err := s.Shipments.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sh.Status == models.ShipmentDelivered && status != models.ShipmentDelivered {
		return nil, errors.Join(ErrInvalidTransition, fmt.Errorf("el envío %s ya fue entregado", sh.TrackingNumber))
	}
	sh.Status = status
	if err := store.PutAs(ctx, s.store, store.KindShipments, id, sh); err != nil {
		return nil, err
	}
	s.logger.Info().Int("shipment_id", id).Str("status", string(status)).Msg("Shipment status changed")
	return sh, nil
}
