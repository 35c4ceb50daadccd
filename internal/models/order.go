package models

import "time"

type OrderStatus string

const (
	OrderPending   OrderStatus = "pendiente"
	OrderConfirmed OrderStatus = "confirmado"
	OrderShipped   OrderStatus = "enviado"
	OrderDelivered OrderStatus = "entregado"
	OrderCancelled OrderStatus = "cancelado"
)

func ValidOrderStatus(s string) bool {
	switch OrderStatus(s) {
	case OrderPending, OrderConfirmed, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// Active reports whether the order is held by a driver and not yet finished.
func (s OrderStatus) Active() bool {
	return s == OrderConfirmed || s == OrderShipped
}

type OrderItem struct {
	ProductID int     `json:"producto_id"`
	Name      string  `json:"nombre"`
	UnitPrice float64 `json:"precio_unitario"`
	Quantity  int     `json:"cantidad"`
	Subtotal  float64 `json:"subtotal"`
}

type DriverInfo struct {
	ID     int    `json:"id"`
	UserID int    `json:"usuario_id"`
	Name   string `json:"nombre,omitempty"`
	Phone  string `json:"telefono,omitempty"`
}

type Order struct {
	ID              int         `json:"id"`
	OrderNumber     string      `json:"numero_pedido"`
	Status          OrderStatus `json:"estado"`
	Total           float64     `json:"total"`
	ShippingAddress string      `json:"direccion_envio"`
	ContactPhone    string      `json:"telefono_contacto"`
	Notes           string      `json:"notas,omitempty"`
	Items           []OrderItem `json:"items"`
	ClientID        int         `json:"cliente_id"`
	Driver          *DriverInfo `json:"conductor_info,omitempty"`
	CreatedAt       time.Time   `json:"fecha_creacion"`
	UpdatedAt       time.Time   `json:"fecha_actualizacion"`
}

type CreateOrderRequest struct {
	ShippingAddress string `json:"direccion_envio"`
	ContactPhone    string `json:"telefono_contacto"`
	Notes           string `json:"notas,omitempty"`
}

type UpdateOrderRequest struct {
	ShippingAddress *string `json:"direccion_envio,omitempty"`
	ContactPhone    *string `json:"telefono_contacto,omitempty"`
	Notes           *string `json:"notas,omitempty"`
}

type ChangeStatusRequest struct {
	Status string `json:"estado"`
}

type OrderStats struct {
	Total     int                 `json:"total"`
	ByStatus  map[OrderStatus]int `json:"por_estado"`
	Revenue   float64             `json:"ingresos"`
	Pending   int                 `json:"pendientes"`
	Delivered int                 `json:"entregados"`
}
