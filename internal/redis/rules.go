package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"ridecore/internal/domain"
)

// RuleCacheTTL bounds how long edited pricing tables take to show up.
const RuleCacheTTL = 60 * time.Second

const (
	fareRulesPrefix    = "cache:fare_rules:"
	distanceRewardsKey = "cache:distance_rewards"
)

// RuleCache caches pricing tables in Redis as JSON.
type RuleCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRuleCache creates a RuleCache. A zero ttl uses RuleCacheTTL.
func NewRuleCache(client *redis.Client, ttl time.Duration) *RuleCache {
	if ttl <= 0 {
		ttl = RuleCacheTTL
	}
	return &RuleCache{client: client, ttl: ttl}
}

// GetFareRules returns the cached bands of tier. A miss returns (nil, false, nil).
func (c *RuleCache) GetFareRules(ctx context.Context, tier domain.VehicleTier) ([]domain.FareRule, bool, error) {
	var rules []domain.FareRule
	ok, err := c.get(ctx, fareRulesPrefix+string(tier), &rules)
	return rules, ok, err
}

// SetFareRules caches the bands of tier.
func (c *RuleCache) SetFareRules(ctx context.Context, tier domain.VehicleTier, rules []domain.FareRule) error {
	return c.set(ctx, fareRulesPrefix+string(tier), rules)
}

// GetDistanceRewards returns the cached reward table.
func (c *RuleCache) GetDistanceRewards(ctx context.Context) ([]domain.DistanceReward, bool, error) {
	var rewards []domain.DistanceReward
	ok, err := c.get(ctx, distanceRewardsKey, &rewards)
	return rewards, ok, err
}

// SetDistanceRewards caches the reward table.
func (c *RuleCache) SetDistanceRewards(ctx context.Context, rewards []domain.DistanceReward) error {
	return c.set(ctx, distanceRewardsKey, rewards)
}

func (c *RuleCache) get(ctx context.Context, key string, dst any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RuleCache) set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}
