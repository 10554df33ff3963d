package shared

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// FormNonceField is the hidden form field carrying a one-time submission nonce.
const FormNonceField = "form_nonce"

// SubmitGuard rejects repeated submissions by claiming keys in Redis.
type SubmitGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSubmitGuard constructs a guard whose claims expire after ttl.
func NewSubmitGuard(client *redis.Client, ttl time.Duration) *SubmitGuard {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &SubmitGuard{client: client, ttl: ttl}
}

// Claim marks key as taken. A key already claimed yields ErrDuplicateSubmit.
func (g *SubmitGuard) Claim(ctx context.Context, key string) error {
	if g == nil || g.client == nil {
		return nil
	}
	if key == "" {
		return errors.New("submit guard: key required")
	}
	ok, err := g.client.SetNX(ctx, g.redisKey(key), time.Now().UTC().Format(time.RFC3339Nano), g.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrDuplicateSubmit
	}
	return nil
}

// Release frees key so it can be claimed again.
func (g *SubmitGuard) Release(ctx context.Context, key string) error {
	if g == nil || g.client == nil || key == "" {
		return nil
	}
	return g.client.Del(ctx, g.redisKey(key)).Err()
}

func (g *SubmitGuard) redisKey(key string) string {
	return "submit:" + key
}

// NewFormNonce returns a fresh nonce for a rendered form.
func NewFormNonce() string {
	return uuid.NewString()
}
