// Package store persists the demo API's data as JSON documents grouped by kind.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("no encontrado")

const (
	KindUsers      = "users"
	KindCategories = "categories"
	KindProducts   = "products"
	KindCarts      = "carts"
	KindOrders     = "orders"
	KindHistory    = "order_history"
	KindClients    = "clients"
	KindDrivers    = "drivers"
	KindVehicles   = "vehicles"
	KindRoutes     = "routes"
	KindShipments  = "shipments"
)

type Document struct {
	ID   int
	Body json.RawMessage
}

type Store interface {
	// List returns every document of kind ordered by id.
	List(ctx context.Context, kind string) ([]Document, error)
	Get(ctx context.Context, kind string, id int) (Document, error)
	// Find returns documents whose top-level field equals value when both
	// are rendered as text.
	Find(ctx context.Context, kind, field, value string) ([]Document, error)
	// Insert allocates an id and stores the body built for it.
	Insert(ctx context.Context, kind string, build func(id int) ([]byte, error)) (int, error)
	Put(ctx context.Context, kind string, id int, body []byte) error
	Delete(ctx context.Context, kind string, id int) error
	// Tx runs fn against a view of the store. Writes made through tx are
	// kept only if fn returns nil. Calling Tx on tx joins the running
	// transaction.
	Tx(ctx context.Context, fn func(tx Store) error) error
	Close() error
}

func GetAs[T any](ctx context.Context, s Store, kind string, id int) (*T, error) {
	doc, err := s.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(doc.Body, &out); err != nil {
		return nil, fmt.Errorf("decode %s/%d: %w", kind, id, err)
	}
	return &out, nil
}

func ListAs[T any](ctx context.Context, s Store, kind string) ([]T, error) {
	docs, err := s.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](kind, docs)
}

func FindAs[T any](ctx context.Context, s Store, kind, field, value string) ([]T, error) {
	docs, err := s.Find(ctx, kind, field, value)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](kind, docs)
}

func PutAs(ctx context.Context, s Store, kind string, id int, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%d: %w", kind, id, err)
	}
	return s.Put(ctx, kind, id, body)
}

func decodeAll[T any](kind string, docs []Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := json.Unmarshal(d.Body, &v); err != nil {
			return nil, fmt.Errorf("decode %s/%d: %w", kind, d.ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}
