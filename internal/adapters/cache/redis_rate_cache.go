package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/viralforge/appointment-payments/internal/domain"
)

// All rate keys share one hash slot so the fill script can read generations
// and write the row key atomically on a cluster.
const (
	rateKeyPrefix = "{payments:rates}:row:"
	rateGenPrefix = "{payments:rates}:gen:"
	rateGenAll    = "{payments:rates}:gen"
)

// fillRates writes KEYS[3] only while the global and tuple generations still
// read as ARGV[1].
var fillRates = redis.NewScript(`
local current = (redis.call('GET', KEYS[1]) or '0') .. '.' .. (redis.call('GET', KEYS[2]) or '0')
if current ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[3], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[3], ARGV[2])
end
return 1
`)

// RedisRateCache stores validated rate collections as JSON strings keyed by billing tuple.
type RedisRateCache struct {
	client redis.UniversalClient
}

func NewRedisRateCache(client redis.UniversalClient) *RedisRateCache {
	return &RedisRateCache{client: client}
}

func rateKey(tuple domain.RateTuple) string {
	return rateKeyPrefix + tuple.Key()
}

func rateGenKey(tuple domain.RateTuple) string {
	return rateGenPrefix + tuple.Key()
}

func generationToken(global, tuple any) string {
	part := func(v any) string {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
		return "0"
	}
	return part(global) + "." + part(tuple)
}

func (c *RedisRateCache) Get(ctx context.Context, tuple domain.RateTuple) (*domain.RateCollection, error) {
	raw, err := c.client.Get(ctx, rateKey(tuple)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rows []domain.Rate
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode cached rates: %w", err)
	}
	// Re-validate so a stale or hand-edited entry is never priced from.
	rates, err := domain.NewRateCollection(tuple, rows)
	if err != nil {
		return nil, fmt.Errorf("cached rates for %s: %w", tuple.Key(), err)
	}
	return &rates, nil
}

func (c *RedisRateCache) Generation(ctx context.Context, tuple domain.RateTuple) (string, error) {
	vals, err := c.client.MGet(ctx, rateGenAll, rateGenKey(tuple)).Result()
	if err != nil {
		return "", err
	}
	return generationToken(vals[0], vals[1]), nil
}

func (c *RedisRateCache) SetIfGeneration(ctx context.Context, rates domain.RateCollection, generation string, ttl time.Duration) (bool, error) {
	raw, err := json.Marshal(rates.Rows)
	if err != nil {
		return false, fmt.Errorf("encode rates: %w", err)
	}
	keys := []string{rateGenAll, rateGenKey(rates.Tuple), rateKey(rates.Tuple)}
	stored, err := fillRates.Run(ctx, c.client, keys, generation, raw, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return stored == 1, nil
}

// Delete advances the tuple generation and drops the row in one transaction.
func (c *RedisRateCache) Delete(ctx context.Context, tuple domain.RateTuple) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, rateGenKey(tuple))
		pipe.Del(ctx, rateKey(tuple))
		return nil
	})
	return err
}

// DeleteAll advances the global generation, then scans the row key space in
// pages and unlinks every match.
func (c *RedisRateCache) DeleteAll(ctx context.Context) error {
	if err := c.client.Incr(ctx, rateGenAll).Err(); err != nil {
		return err
	}
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, rateKeyPrefix+"*", 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Unlink(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
