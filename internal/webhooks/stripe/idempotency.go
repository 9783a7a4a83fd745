package stripewebhook

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/tradelines-backend/pkg/redis"
)

const guardScope = "stripe-webhook"

// DeliveryGuard remembers handled event ids so redeliveries short-circuit
// before touching orders. It is an optimisation: order transitions are
// conditional updates and stay correct without it.
type DeliveryGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

func NewDeliveryGuard(store redis.IdempotencyStore, ttl time.Duration) (*DeliveryGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	return &DeliveryGuard{store: store, ttl: ttl}, nil
}

// Claim reports whether the caller is the first to handle eventID.
func (g *DeliveryGuard) Claim(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	return g.store.SetNX(ctx, g.store.IdempotencyKey(guardScope, eventID), "1", g.ttl)
}

// Release forgets eventID so the gateway's retry is handled again.
func (g *DeliveryGuard) Release(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	return g.store.Del(ctx, g.store.IdempotencyKey(guardScope, eventID))
}
