package insights

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const defaultGuardTTL = 15 * time.Minute

// RunGuard rate-limits insight generation per org through a Redis SetNX
// lease. A nil client disables the guard entirely.
type RunGuard struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

func NewRunGuard(client goredis.UniversalClient, ttl time.Duration) *RunGuard {
	if ttl <= 0 {
		ttl = defaultGuardTTL
	}
	return &RunGuard{client: client, ttl: ttl}
}

// TryAcquire claims the org's run slot. It returns false when a run
// happened within the TTL. The lease is never released early; it expires.
func (g *RunGuard) TryAcquire(ctx context.Context, orgID string) (bool, error) {
	if g == nil || g.client == nil {
		return true, nil
	}
	ok, err := g.client.SetNX(ctx, "insights:run:"+orgID, time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire insight run guard: %w", err)
	}
	return ok, nil
}
