package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"tecnoroute/internal/models"
)

// Resource is the standard CRUD method map over one collection endpoint.
type Resource[T any] struct {
	c    *Client
	base string
}

func NewResource[T any](c *Client, base string) *Resource[T] {
	return &Resource[T]{c: c, base: base}
}

func (r *Resource[T]) List(ctx context.Context, query url.Values) ([]T, error) {
	return r.listAt(ctx, r.base, query)
}

func (r *Resource[T]) listAt(ctx context.Context, path string, query url.Values) ([]T, error) {
	var raw json.RawMessage
	if err := r.c.send(ctx, http.MethodGet, path, query, nil, nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[T](raw)
}

func (r *Resource[T]) Get(ctx context.Context, id int) (*T, error) {
	var out T
	if err := r.c.Do(ctx, http.MethodGet, idPath(r.base, id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Resource[T]) Create(ctx context.Context, in T) (*T, error) {
	var out T
	if err := r.c.Do(ctx, http.MethodPost, r.base, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update sends a partial update; fields is usually a map or a pointer-field struct.
func (r *Resource[T]) Update(ctx context.Context, id int, fields any) (*T, error) {
	var out T
	if err := r.c.Do(ctx, http.MethodPatch, idPath(r.base, id), fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Resource[T]) Delete(ctx context.Context, id int) error {
	return r.c.Do(ctx, http.MethodDelete, idPath(r.base, id), nil, nil)
}

type AuthAPI struct{ c *Client }

func (a *AuthAPI) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	var out models.AuthResponse
	err := a.c.Do(ctx, http.MethodPost, "/api/auth/login/", models.LoginRequest{Email: email, Password: password}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *AuthAPI) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	var out models.AuthResponse
	if err := a.c.Do(ctx, http.MethodPost, "/api/auth/register/", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type CartAPI struct{ c *Client }

const cartPath = "/api/carrito/"

func ifMatch(version int) http.Header {
	if version <= 0 {
		return nil
	}
	h := http.Header{}
	h.Set("If-Match", strconv.Quote(strconv.Itoa(version)))
	return h
}

func (a *CartAPI) Get(ctx context.Context) (*models.Cart, error) {
	var out models.Cart
	if err := a.c.Do(ctx, http.MethodGet, cartPath, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddItem posts a new line. version is the cart version the caller last saw;
// 0 skips the precondition.
func (a *CartAPI) AddItem(ctx context.Context, productID, quantity, version int) error {
	body := models.AddCartItemRequest{ProductID: productID, Quantity: quantity}
	return a.c.send(ctx, http.MethodPost, cartPath, nil, body, ifMatch(version), nil)
}

func (a *CartAPI) UpdateItem(ctx context.Context, lineID, quantity, version int) error {
	body := models.UpdateCartItemRequest{Quantity: quantity}
	return a.c.send(ctx, http.MethodPatch, idPath(cartPath, lineID), nil, body, ifMatch(version), nil)
}

func (a *CartAPI) RemoveItem(ctx context.Context, lineID, version int) error {
	return a.c.send(ctx, http.MethodDelete, idPath(cartPath, lineID), nil, nil, ifMatch(version), nil)
}

func (a *CartAPI) Clear(ctx context.Context) error {
	return a.c.Do(ctx, http.MethodDelete, cartPath+"limpiar/", nil, nil)
}

type OrdersAPI struct{ c *Client }

const ordersPath = "/api/pedidos/"

func (a *OrdersAPI) List(ctx context.Context, query url.Values) ([]models.Order, error) {
	var raw json.RawMessage
	if err := a.c.send(ctx, http.MethodGet, ordersPath, query, nil, nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[models.Order](raw)
}

func (a *OrdersAPI) Get(ctx context.Context, id int) (*models.Order, error) {
	var out models.Order
	if err := a.c.Do(ctx, http.MethodGet, idPath(ordersPath, id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *OrdersAPI) Create(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	var out models.Order
	if err := a.c.Do(ctx, http.MethodPost, ordersPath, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *OrdersAPI) Update(ctx context.Context, id int, req models.UpdateOrderRequest) (*models.Order, error) {
	var out models.Order
	if err := a.c.Do(ctx, http.MethodPatch, idPath(ordersPath, id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *OrdersAPI) Cancel(ctx context.Context, id int) (*models.Order, error) {
	return a.ChangeStatus(ctx, id, models.OrderCancelled)
}

func (a *OrdersAPI) ChangeStatus(ctx context.Context, id int, status models.OrderStatus) (*models.Order, error) {
	var out models.Order
	body := models.ChangeStatusRequest{Status: string(status)}
	if err := a.c.Do(ctx, http.MethodPatch, idPath(ordersPath, id, "cambiar_estado"), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *OrdersAPI) Delete(ctx context.Context, id int) error {
	return a.c.Do(ctx, http.MethodDelete, idPath(ordersPath, id), nil, nil)
}

func (a *OrdersAPI) Stats(ctx context.Context) (*models.OrderStats, error) {
	var out models.OrderStats
	if err := a.c.Do(ctx, http.MethodGet, ordersPath+"estadisticas/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *OrdersAPI) Recent(ctx context.Context) ([]models.Order, error) {
	var raw json.RawMessage
	if err := a.c.Do(ctx, http.MethodGet, ordersPath+"recientes/", nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[models.Order](raw)
}

type ProductsAPI struct{ c *Client }

func (a *ProductsAPI) List(ctx context.Context, category, search string) ([]models.Product, error) {
	query := url.Values{}
	if category != "" {
		query.Set("categoria", category)
	}
	if search != "" {
		query.Set("search", search)
	}
	var raw json.RawMessage
	if err := a.c.send(ctx, http.MethodGet, "/api/productos/", query, nil, nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[models.Product](raw)
}

func (a *ProductsAPI) Get(ctx context.Context, id int) (*models.Product, error) {
	var out models.Product
	if err := a.c.Do(ctx, http.MethodGet, idPath("/api/productos/", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type CategoriesAPI struct{ c *Client }

func (a *CategoriesAPI) List(ctx context.Context) ([]models.Category, error) {
	var raw json.RawMessage
	if err := a.c.Do(ctx, http.MethodGet, "/api/categorias/", nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[models.Category](raw)
}

type DriversAPI struct {
	*Resource[models.Driver]
}

func (a *DriversAPI) Available(ctx context.Context) ([]models.Driver, error) {
	return a.listAt(ctx, a.base+"disponibles/", nil)
}

// Profile returns the driver record linked to the calling user.
func (a *DriversAPI) Profile(ctx context.Context) (*models.Driver, error) {
	var out models.Driver
	if err := a.c.Do(ctx, http.MethodGet, a.base+"perfil/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type VehiclesAPI struct {
	*Resource[models.Vehicle]
}

func (a *VehiclesAPI) Available(ctx context.Context) ([]models.Vehicle, error) {
	return a.listAt(ctx, a.base+"disponibles/", nil)
}

type RoutesAPI struct {
	*Resource[models.Route]
}

func (a *RoutesAPI) Active(ctx context.Context) ([]models.Route, error) {
	return a.listAt(ctx, a.base+"activas/", nil)
}

type ShipmentsAPI struct {
	*Resource[models.Shipment]
}

func (a *ShipmentsAPI) ChangeStatus(ctx context.Context, id int, status models.ShipmentStatus) (*models.Shipment, error) {
	var out models.Shipment
	body := map[string]string{"estado": string(status)}
	if err := a.c.Do(ctx, http.MethodPatch, idPath(a.base, id, "cambiar_estado"), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *ShipmentsAPI) FindByTrackingNumber(ctx context.Context, guide string) (*models.Shipment, error) {
	var out models.Shipment
	query := url.Values{"guia": {guide}}
	if err := a.c.send(ctx, http.MethodGet, a.base+"buscar_por_guia/", query, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
