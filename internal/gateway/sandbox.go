package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"storefront-checkout/internal/domain"

	"github.com/google/uuid"
)

// ErrSandboxFailure is returned by scripted failures.
var ErrSandboxFailure = errors.New("sandbox gateway failure")

// Sandbox is an in-process gateway for development and tests. It records an
// authorization before applying latency, so a caller that times out and
// retries with the same key gets the authorization the first call created.
type Sandbox struct {
	mu          sync.Mutex
	byKey       map[string]string
	auths       map[string]domain.PaymentAuthorization
	latency     time.Duration
	failures    int
	createCalls int
	now         func() time.Time
}

type SandboxOption func(*Sandbox)

func WithLatency(d time.Duration) SandboxOption {
	return func(s *Sandbox) { s.latency = d }
}

func NewSandbox(opts ...SandboxOption) *Sandbox {
	s := &Sandbox{
		byKey: make(map[string]string),
		auths: make(map[string]domain.PaymentAuthorization),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sandbox) CreateAuthorization(ctx context.Context, req AuthorizationRequest) (domain.PaymentAuthorization, error) {
	if err := req.validate(); err != nil {
		return domain.PaymentAuthorization{}, err
	}

	s.mu.Lock()
	s.createCalls++
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return domain.PaymentAuthorization{}, ErrSandboxFailure
	}
	auth, ok := s.lookupLocked(req.IdempotencyKey)
	if !ok {
		handle := "pi_" + uuid.NewString()
		auth = domain.PaymentAuthorization{
			HandleID:       handle,
			ClientSecret:   handle + "_secret_" + uuid.NewString(),
			AmountMinor:    req.AmountMinor,
			Currency:       req.Currency,
			Status:         domain.AuthorizationCreated,
			IdempotencyKey: req.IdempotencyKey,
			CreatedAt:      s.now(),
		}
		s.byKey[req.IdempotencyKey] = handle
		s.auths[handle] = auth
	}
	latency := s.latency
	s.mu.Unlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return domain.PaymentAuthorization{}, ctx.Err()
		case <-timer.C:
		}
	}
	return auth, nil
}

func (s *Sandbox) GetStatus(ctx context.Context, handleID string) (domain.AuthorizationStatus, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	auth, ok := s.auths[handleID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return auth.Status, nil
}

// SetStatus scripts the processor-side status of an authorization.
func (s *Sandbox) SetStatus(handleID string, status domain.AuthorizationStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if auth, ok := s.auths[handleID]; ok {
		auth.Status = status
		s.auths[handleID] = auth
	}
}

// FailNext makes the next n create calls fail before reaching the processor.
func (s *Sandbox) FailNext(n int) {
	s.mu.Lock()
	s.failures = n
	s.mu.Unlock()
}

func (s *Sandbox) SetLatency(d time.Duration) {
	s.mu.Lock()
	s.latency = d
	s.mu.Unlock()
}

// CreateCalls counts create requests received, including failed ones.
func (s *Sandbox) CreateCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createCalls
}

// Authorizations counts distinct authorizations issued.
func (s *Sandbox) Authorizations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.auths)
}

func (s *Sandbox) lookupLocked(key string) (domain.PaymentAuthorization, bool) {
	handle, ok := s.byKey[key]
	if !ok {
		return domain.PaymentAuthorization{}, false
	}
	return s.auths[handle], true
}
