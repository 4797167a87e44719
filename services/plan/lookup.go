package plan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bulkprice/pkg/rediskey"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

//go:generate mockgen -source=lookup.go -destination=mock_lookup.go -package=plan

// Lookup resolves the tenant's current plan tier. It is consulted at
// submission time and again by the executor before a schedule is applied.
type Lookup interface {
	CurrentTier(ctx context.Context, tenantID string) (Tier, error)
}

// DatabaseLookup reads tenant_plans, optionally through a redis cache.
// Tenants without a recorded plan are Free. Concurrent misses for the same
// tenant share one database read.
type DatabaseLookup struct {
	repo   Repository
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
	group  singleflight.Group
}

func NewDatabaseLookup(repo Repository, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *DatabaseLookup {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DatabaseLookup{repo: repo, rdb: rdb, ttl: ttl, logger: logger}
}

func (l *DatabaseLookup) CurrentTier(ctx context.Context, tenantID string) (Tier, error) {
	key := rediskey.BuildTenantPlanKey(tenantID)

	if l.cacheEnabled() {
		cached, err := l.rdb.Get(ctx, key).Result()
		switch {
		case err == nil:
			if tier := Tier(cached); tier.String() != "" {
				return tier, nil
			}
		case !errors.Is(err, redis.Nil):
			l.logger.Warn("plan cache read failed", zap.String("tenant_id", tenantID), zap.Error(err))
		}
	}

	v, err, _ := l.group.Do(tenantID, func() (any, error) {
		p, err := l.repo.Get(ctx, tenantID)
		if err != nil {
			return nil, fmt.Errorf("load tenant plan: %w", err)
		}

		tier := TierFree
		if p != nil && p.Tier.String() != "" {
			tier = p.Tier
		}

		if l.cacheEnabled() {
			if err := l.rdb.Set(ctx, key, string(tier), l.ttl).Err(); err != nil {
				l.logger.Warn("plan cache write failed", zap.String("tenant_id", tenantID), zap.Error(err))
			}
		}
		return tier, nil
	})
	if err != nil {
		return "", err
	}
	return v.(Tier), nil
}

// SetPlan records the billing plan name for a tenant and drops the cached tier.
func (l *DatabaseLookup) SetPlan(ctx context.Context, tenantID, planName string) (*TenantPlan, error) {
	p := &TenantPlan{
		TenantID:  tenantID,
		Tier:      ParseTier(planName),
		PlanName:  planName,
		UpdatedAt: time.Now().UTC(),
	}

	if err := l.repo.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("save tenant plan: %w", err)
	}

	if l.cacheEnabled() {
		if err := l.rdb.Del(ctx, rediskey.BuildTenantPlanKey(tenantID)).Err(); err != nil {
			l.logger.Warn("plan cache invalidation failed", zap.String("tenant_id", tenantID), zap.Error(err))
		}
	}

	l.logger.Info("tenant plan updated",
		zap.String("tenant_id", tenantID),
		zap.String("plan_name", planName),
		zap.String("tier", string(p.Tier)),
	)

	return p, nil
}

func (l *DatabaseLookup) cacheEnabled() bool {
	return l.rdb != nil && l.ttl > 0
}
