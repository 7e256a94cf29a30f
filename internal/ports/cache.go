package ports

import (
	"context"
	"time"

	"github.com/viralforge/appointment-payments/internal/domain"
)

// RateCache keeps validated rate collections close to the pricing path.
// Get returns (nil, nil) on a miss.
//
// Every Delete or DeleteAll advances the generation of the tuples it drops.
// A reader takes the generation before loading rows and fills the cache with
// SetIfGeneration, so rows read before an invalidation are never cached after it.
type RateCache interface {
	Get(ctx context.Context, tuple domain.RateTuple) (*domain.RateCollection, error)
	Generation(ctx context.Context, tuple domain.RateTuple) (string, error)
	SetIfGeneration(ctx context.Context, rates domain.RateCollection, generation string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, tuple domain.RateTuple) error
	DeleteAll(ctx context.Context) error
}
