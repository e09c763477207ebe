package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/crm-backend/pkg/redis"
)

// DefaultScope namespaces billing webhook keys in Redis.
const DefaultScope = "stripe-webhook"

// IdempotencyGuard remembers which provider events were already processed so
// that retried deliveries are acknowledged without being applied twice.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	scope = strings.TrimSpace(scope)
	if scope == "" {
		scope = DefaultScope
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// CheckAndMark claims eventID. It reports true when the event was already
// claimed by an earlier delivery.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	key, err := g.key(eventID)
	if err != nil {
		return false, err
	}
	set, err := g.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Delete releases eventID so the provider's next retry is processed.
func (g *IdempotencyGuard) Delete(ctx context.Context, eventID string) error {
	key, err := g.key(eventID)
	if err != nil {
		return err
	}
	if err := g.store.Del(ctx, key); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

func (g *IdempotencyGuard) key(eventID string) (string, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey(g.scope, eventID), nil
}
