package models

import "time"

type Client struct {
	ID        int       `json:"id"`
	Name      string    `json:"nombre"`
	Email     string    `json:"email"`
	Phone     string    `json:"telefono"`
	Address   string    `json:"direccion"`
	CreatedAt time.Time `json:"fecha_registro"`
}

type Driver struct {
	ID        int    `json:"id"`
	UserID    int    `json:"usuario_id"`
	Name      string `json:"nombre"`
	License   string `json:"licencia"`
	Phone     string `json:"telefono"`
	Available bool   `json:"disponible"`
}

type Vehicle struct {
	ID        int     `json:"id"`
	Plate     string  `json:"placa"`
	Model     string  `json:"modelo"`
	Capacity  float64 `json:"capacidad"`
	Available bool    `json:"disponible"`
}

type Route struct {
	ID          int     `json:"id"`
	Name        string  `json:"nombre"`
	Origin      string  `json:"origen"`
	Destination string  `json:"destino"`
	DistanceKm  float64 `json:"distancia_km"`
	Active      bool    `json:"activa"`
	DriverID    *int    `json:"conductor_id,omitempty"`
	VehicleID   *int    `json:"vehiculo_id,omitempty"`
}

type ShipmentStatus string

const (
	ShipmentPending   ShipmentStatus = "pendiente"
	ShipmentInTransit ShipmentStatus = "en_transito"
	ShipmentDelivered ShipmentStatus = "entregado"
	ShipmentReturned  ShipmentStatus = "devuelto"
)

type Shipment struct {
	ID             int            `json:"id"`
	TrackingNumber string         `json:"numero_guia"`
	OrderID        *int           `json:"pedido_id,omitempty"`
	RouteID        *int           `json:"ruta_id,omitempty"`
	Status         ShipmentStatus `json:"estado"`
	Recipient      string         `json:"destinatario"`
	Address        string         `json:"direccion"`
	CreatedAt      time.Time      `json:"fecha_creacion"`
}

// Counts returned by the dashboard endpoints.
type DashboardStats struct {
	Orders       OrderStats `json:"pedidos"`
	Clients      int        `json:"clientes"`
	Drivers      int        `json:"conductores"`
	Vehicles     int        `json:"vehiculos"`
	ActiveRoutes int        `json:"rutas_activas"`
}
