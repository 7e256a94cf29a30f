package application

import (
	"context"
	"fmt"

	"github.com/viralforge/appointment-payments/internal/domain"
)

// FetchRates returns the validated rate rows for a billing tuple, cache first.
// Cache errors degrade to an uncached database read.
func (s *Service) FetchRates(ctx context.Context, tuple domain.RateTuple) (domain.RateCollection, error) {
	if err := tuple.Validate(); err != nil {
		return domain.RateCollection{}, err
	}
	generation := ""
	if s.rateCache != nil {
		cached, err := s.rateCache.Get(ctx, tuple)
		if err == nil && cached != nil {
			return *cached, nil
		}
		if err == nil {
			generation, err = s.rateCache.Generation(ctx, tuple)
		}
		if err != nil {
			appLogger().WarnContext(ctx, "rate cache read failed",
				"operation", "fetch_rates",
				"outcome", "degraded",
				"rate_tuple", tuple.Key(),
				"error", err,
			)
			generation = ""
		}
	}

	rows, err := s.rates.ListByTuple(ctx, tuple)
	if err != nil {
		return domain.RateCollection{}, fmt.Errorf("list rates: %w", err)
	}
	rates, err := domain.NewRateCollection(tuple, rows)
	if err != nil {
		return domain.RateCollection{}, err
	}
	// Rows are cached only under the generation read before the database was,
	// so an invalidation in between leaves the cache empty.
	if s.rateCache != nil && generation != "" {
		stored, err := s.rateCache.SetIfGeneration(ctx, rates, generation, s.cfg.RateCacheTTL)
		if err != nil {
			appLogger().WarnContext(ctx, "rate cache write failed",
				"operation", "fetch_rates",
				"outcome", "degraded",
				"rate_tuple", tuple.Key(),
				"error", err,
			)
		} else if !stored {
			appLogger().DebugContext(ctx, "rate cache fill skipped",
				"operation", "fetch_rates",
				"outcome", "stale",
				"rate_tuple", tuple.Key(),
			)
		}
	}
	return rates, nil
}

// UpdateRate persists a rate row and drops the cached collection for its tuple.
// An invalidation failure is returned so callers never assume fresh prices.
func (s *Service) UpdateRate(ctx context.Context, rate domain.Rate) error {
	if err := rate.Validate(); err != nil {
		return err
	}
	if err := s.rates.Upsert(ctx, rate); err != nil {
		return fmt.Errorf("upsert rate: %w", err)
	}
	return s.InvalidateRates(ctx, ptr(rate.Tuple()))
}

// InvalidateRates drops one tuple, or every cached tuple when tuple is nil.
func (s *Service) InvalidateRates(ctx context.Context, tuple *domain.RateTuple) error {
	if s.rateCache == nil {
		return nil
	}
	if tuple == nil {
		if err := s.rateCache.DeleteAll(ctx); err != nil {
			return fmt.Errorf("invalidate rate cache: %w", err)
		}
		return nil
	}
	if err := s.rateCache.Delete(ctx, *tuple); err != nil {
		return fmt.Errorf("invalidate rates %s: %w", tuple.Key(), err)
	}
	return nil
}

func ptr[T any](v T) *T { return &v }
