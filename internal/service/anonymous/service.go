package anonymous

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"storefront-checkout/internal/domain"
	tokenrepo "storefront-checkout/internal/repository/token"

	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Service issues opaque bearer tokens that identify guest shoppers.
type Service struct {
	tokens tokenrepo.Repository
	ttl    time.Duration
	now    func() time.Time
}

func New(tokens tokenrepo.Repository, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Service{
		tokens: tokens,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Issue creates a new guest identity and a token for it.
func (s *Service) Issue(ctx context.Context) (string, domain.GuestShopper, error) {
	token, err := randomToken()
	if err != nil {
		return "", domain.GuestShopper{}, err
	}
	guest := domain.GuestShopper{AnonymousID: uuid.NewString()}
	now := s.now()
	if err := s.tokens.Create(ctx, tokenrepo.Token{
		Token:       token,
		AnonymousID: guest.AnonymousID,
		ExpiresAt:   now.Add(s.ttl),
		CreatedAt:   now,
	}); err != nil {
		return "", domain.GuestShopper{}, fmt.Errorf("store token: %w", err)
	}
	return token, guest, nil
}

// Lookup resolves a token to its guest. Expired tokens are deleted.
func (s *Service) Lookup(ctx context.Context, token string) (domain.GuestShopper, error) {
	if token == "" {
		return domain.GuestShopper{}, ErrInvalidToken
	}
	meta, err := s.tokens.Get(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.GuestShopper{}, ErrInvalidToken
		}
		return domain.GuestShopper{}, fmt.Errorf("load token: %w", err)
	}
	if s.now().After(meta.ExpiresAt) {
		_ = s.tokens.Delete(ctx, token)
		return domain.GuestShopper{}, ErrInvalidToken
	}
	return domain.GuestShopper{AnonymousID: meta.AnonymousID}, nil
}

func (s *Service) TTLSeconds() int {
	return int(s.ttl.Seconds())
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
