package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront-checkout/internal/domain"

	"github.com/go-redis/redis/v8"
)

const cartField = "cart"

type redisRepo struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis stores each cart as a JSON blob in a hash keyed by session. The
// key expires ttl after the last write; zero disables expiry.
func NewRedis(client *redis.Client, ttl time.Duration) Store {
	return &redisRepo{client: client, ttl: ttl}
}

// NewRedisClient accepts either a redis:// URL or a bare host:port.
func NewRedisClient(addr string) *redis.Client {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		opts = &redis.Options{
			Addr:         addr,
			MinIdleConns: 1,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
		}
	}
	return redis.NewClient(opts)
}

func redisKey(sessionKey string) string {
	return "cart:" + sessionKey
}

func (r *redisRepo) Load(ctx context.Context, sessionKey string) (*domain.Cart, error) {
	val, err := r.client.HGet(ctx, redisKey(sessionKey), cartField).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis hget: %w", err)
	}
	var cart domain.Cart
	if err := json.Unmarshal(val, &cart); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	cart.SessionKey = sessionKey
	if cart.Lines == nil {
		cart.Lines = []domain.CartLine{}
	}
	return &cart, nil
}

func (r *redisRepo) Save(ctx context.Context, cart *domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	key := redisKey(cart.SessionKey)
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, cartField, data)
		if r.ttl > 0 {
			p.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

func (r *redisRepo) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.client.Ping(pingCtx).Err()
}
