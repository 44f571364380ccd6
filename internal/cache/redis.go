package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Domenick1991/parking/config"
	"github.com/Domenick1991/parking/internal/domain"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseLease deletes the lease only while it still carries our token.
var releaseLease = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type RedisCache struct {
	client          *redis.Client
	availabilityTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, availabilityTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:          redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		availabilityTTL: availabilityTTL,
	}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// GetAvailability returns the cached page for the current generation, or
// nil on a miss. The generation it read is returned either way; a page
// loaded after the call must be stored under it.
func (c *RedisCache) GetAvailability(ctx context.Context, q domain.AvailabilityQuery) (*domain.SlotPage, int64, error) {
	gen, err := c.client.Get(ctx, availabilityGenerationKey()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, errors.Wrap(err, "get availability generation")
	}
	data, err := c.client.Get(ctx, availabilityKey(gen, q)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, gen, nil
		}
		return nil, gen, errors.Wrap(err, "get availability")
	}

	var page domain.SlotPage
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, gen, errors.Wrap(err, "decode availability")
	}
	return &page, gen, nil
}

// SetAvailability stores page under generation gen. If a write has bumped
// the generation since gen was read, the entry is never served.
func (c *RedisCache) SetAvailability(ctx context.Context, q domain.AvailabilityQuery, gen int64, page *domain.SlotPage) error {
	payload, err := json.Marshal(page)
	if err != nil {
		return errors.Wrap(err, "encode availability")
	}
	return errors.Wrap(c.client.Set(ctx, availabilityKey(gen, q), payload, c.availabilityTTL).Err(), "set availability")
}

// InvalidateAvailability bumps the generation so every cached page is
// skipped; stale entries expire on their own TTL.
func (c *RedisCache) InvalidateAvailability(ctx context.Context) error {
	return errors.Wrap(c.client.Incr(ctx, availabilityGenerationKey()).Err(), "bump availability generation")
}

func (c *RedisCache) AcquireSlotLease(ctx context.Context, slotID int64, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, slotLeaseKey(slotID), token, ttl).Result()
	if err != nil {
		return "", false, errors.Wrap(err, "set slot lease")
	}
	return token, ok, nil
}

func (c *RedisCache) ReleaseSlotLease(ctx context.Context, slotID int64, token string) error {
	return errors.Wrap(releaseLease.Run(ctx, c.client, []string{slotLeaseKey(slotID)}, token).Err(), "release slot lease")
}

func availabilityKey(gen int64, q domain.AvailabilityQuery) string {
	return fmt.Sprintf("cache:availability:%d:%s", gen, q.Key())
}

func availabilityGenerationKey() string {
	return "cache:availability:generation"
}

func slotLeaseKey(slotID int64) string {
	return fmt.Sprintf("lock:slot:%d", slotID)
}
