// Package apiclient is the single gateway to the TecnoRoute REST API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tecnoroute/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const DefaultTimeout = 10 * time.Second

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	baseURL        string
	http           *http.Client
	tokens         TokenStore
	logger         zerolog.Logger
	onUnauthorized func()

	Auth       *AuthAPI
	Cart       *CartAPI
	Orders     *OrdersAPI
	Products   *ProductsAPI
	Categories *CategoriesAPI
	Clients    *Resource[models.Client]
	Drivers    *DriversAPI
	Vehicles   *VehiclesAPI
	Routes     *RoutesAPI
	Shipments  *ShipmentsAPI
}

func New(cfg Config, tokens TokenStore, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		logger:  logger,
	}

	c.Auth = &AuthAPI{c: c}
	c.Cart = &CartAPI{c: c}
	c.Orders = &OrdersAPI{c: c}
	c.Products = &ProductsAPI{c: c}
	c.Categories = &CategoriesAPI{c: c}
	c.Clients = NewResource[models.Client](c, "/api/clientes/")
	c.Drivers = &DriversAPI{Resource: NewResource[models.Driver](c, "/api/conductores/")}
	c.Vehicles = &VehiclesAPI{Resource: NewResource[models.Vehicle](c, "/api/vehiculos/")}
	c.Routes = &RoutesAPI{Resource: NewResource[models.Route](c, "/api/rutas/")}
	c.Shipments = &ShipmentsAPI{Resource: NewResource[models.Shipment](c, "/api/envios/")}
	return c
}

// OnUnauthorized registers a hook run after a 401 has evicted the token.
func (c *Client) OnUnauthorized(fn func()) {
	c.onUnauthorized = fn
}

// Do performs one request. There is no retry.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	return c.send(ctx, method, path, nil, body, nil, out)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any, header http.Header, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode %s %s: %v", ErrRequestSetup, method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrRequestSetup, method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	if c.tokens != nil {
		tok, err := c.tokens.Token(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Could not read stored token")
		} else if tok != "" {
			req.Header.Set("Authorization", "Token "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("method", method).Str("path", path).Msg("API request got no response")
		return fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading %s %s: %v", ErrNetwork, method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := newAPIError(method, path, resp.StatusCode, data)
		c.logger.Error().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Str("body", apiErr.Body).
			Msg("API request failed")

		if resp.StatusCode == http.StatusUnauthorized {
			c.evictToken(ctx)
		}
		return apiErr
	}

	if out == nil || len(data) == 0 || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) evictToken(ctx context.Context) {
	if c.tokens != nil {
		if err := c.tokens.EvictToken(context.WithoutCancel(ctx)); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to evict token after 401")
		}
	}
	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}

// decodeList accepts both a bare JSON array and a paginated {"results": [...]} page.
func decodeList[T any](raw json.RawMessage) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}
	if trimmed[0] == '{' {
		var page struct {
			Results []T `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return nil, err
		}
		if page.Results == nil {
			return []T{}, nil
		}
		return page.Results, nil
	}
	var items []T
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func idPath(base string, id int, action ...string) string {
	p := fmt.Sprintf("%s%d/", base, id)
	for _, a := range action {
		p += a + "/"
	}
	return p
}
