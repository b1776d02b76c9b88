package service

import (
	"context"
	"log/slog"

	"ridecore/internal/domain"
	"ridecore/internal/pricing"
	"ridecore/internal/redis"
	"ridecore/internal/repository"
)

// RuleSource reads pricing tables through the Redis rule cache.
// Cache failures fall back to the database and are only logged.
type RuleSource struct {
	repo   repository.RuleRepository
	cache  redis.RuleCacheInterface
	logger *slog.Logger
}

// NewRuleSource creates a RuleSource. cache may be nil.
func NewRuleSource(repo repository.RuleRepository, cache redis.RuleCacheInterface, logger *slog.Logger) *RuleSource {
	return &RuleSource{repo: repo, cache: cache, logger: logger}
}

// FareRules returns the fare bands of a tier.
func (s *RuleSource) FareRules(ctx context.Context, tier domain.VehicleTier) ([]domain.FareRule, error) {
	if s.cache != nil {
		rules, ok, err := s.cache.GetFareRules(ctx, tier)
		if err != nil {
			s.logger.Warn("fare rule cache read failed", "tier", tier, "error", err)
		} else if ok {
			return rules, nil
		}
	}

	rules, err := s.repo.ListFareRules(ctx, tier)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetFareRules(ctx, tier, rules); err != nil {
			s.logger.Warn("fare rule cache write failed", "tier", tier, "error", err)
		}
	}
	return rules, nil
}

// DistanceRewards returns every distance reward.
func (s *RuleSource) DistanceRewards(ctx context.Context) ([]domain.DistanceReward, error) {
	if s.cache != nil {
		rewards, ok, err := s.cache.GetDistanceRewards(ctx)
		if err != nil {
			s.logger.Warn("reward cache read failed", "error", err)
		} else if ok {
			return rewards, nil
		}
	}

	rewards, err := s.repo.ListDistanceRewards(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetDistanceRewards(ctx, rewards); err != nil {
			s.logger.Warn("reward cache write failed", "error", err)
		}
	}
	return rewards, nil
}

// FareService computes fare breakdowns.
type FareService struct {
	rules *RuleSource
	calc  pricing.Calculator
}

// NewFareService creates a new FareService. When strict is false a missing
// fare band yields a zero fare instead of ErrNoFareRule.
func NewFareService(rules *RuleSource, strict bool) *FareService {
	return &FareService{rules: rules, calc: pricing.Calculator{Strict: strict}}
}

// Quote returns the fare of a ride of distanceKm in tier.
func (s *FareService) Quote(ctx context.Context, tier domain.VehicleTier, distanceKm float64) (domain.FareBreakdown, error) {
	rules, err := s.rules.FareRules(ctx, tier)
	if err != nil {
		return domain.FareBreakdown{}, err
	}
	return s.calc.Calculate(rules, tier, distanceKm)
}
