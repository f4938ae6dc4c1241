package token

import (
	"context"
	"time"
)

// Token maps an opaque bearer token to a guest identity.
type Token struct {
	Token       string
	AnonymousID string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

type Repository interface {
	Create(ctx context.Context, token Token) error
	Get(ctx context.Context, token string) (*Token, error)
	Delete(ctx context.Context, token string) error
}
