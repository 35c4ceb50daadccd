package apiclient

import (
	"context"
	"errors"

	"tecnoroute/internal/session"
)

type TokenStore interface {
	Token(ctx context.Context) (string, error)
	EvictToken(ctx context.Context) error
}

// SessionTokens reads the bearer token from the durable session.
type SessionTokens struct {
	Store session.Store
}

func (s SessionTokens) Token(ctx context.Context) (string, error) {
	tok, err := s.Store.Get(ctx, session.KeyToken)
	if errors.Is(err, session.ErrNotFound) {
		return "", nil
	}
	return tok, err
}

func (s SessionTokens) EvictToken(ctx context.Context) error {
	return s.Store.Delete(ctx, session.KeyToken)
}
