package slotlock

import (
	"context"
	"time"

	"github.com/Domenick1991/parking/internal/repository"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Leases is the distributed lease store, implemented by cache.RedisCache.
type Leases interface {
	AcquireSlotLease(ctx context.Context, slotID int64, ttl time.Duration) (token string, ok bool, err error)
	ReleaseSlotLease(ctx context.Context, slotID int64, token string) error
}

// RedisLocker takes a cross-instance lease on the slot before entering the
// wrapped locker. Waiting callers poll until the lease is free; a slot that
// does not exist is rejected before any lease is requested.
type RedisLocker struct {
	next          Locker
	slots         repository.SlotRepository
	leases        Leases
	ttl           time.Duration
	retryInterval time.Duration
	log           *zap.Logger
}

func NewRedisLocker(next Locker, slots repository.SlotRepository, leases Leases, ttl, retryInterval time.Duration, log *zap.Logger) *RedisLocker {
	if log == nil {
		log = zap.NewNop()
	}
	if retryInterval <= 0 {
		retryInterval = 25 * time.Millisecond
	}
	return &RedisLocker{
		next:          next,
		slots:         slots,
		leases:        leases,
		ttl:           ttl,
		retryInterval: retryInterval,
		log:           log,
	}
}

func (l *RedisLocker) WithExclusiveSlot(ctx context.Context, slotID int64, fn Func) error {
	if _, err := l.slots.GetByID(ctx, slotID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return slotNotFound()
		}
		return errors.Wrap(err, "load slot")
	}

	token, err := l.acquire(ctx, slotID)
	if err != nil {
		return err
	}
	defer func() {
		if err := l.leases.ReleaseSlotLease(context.WithoutCancel(ctx), slotID, token); err != nil {
			l.log.Warn("release slot lease", zap.Int64("slot_id", slotID), zap.Error(err))
		}
	}()

	return l.next.WithExclusiveSlot(ctx, slotID, fn)
}

func (l *RedisLocker) acquire(ctx context.Context, slotID int64) (string, error) {
	ticker := time.NewTicker(l.retryInterval)
	defer ticker.Stop()

	for {
		token, ok, err := l.leases.AcquireSlotLease(ctx, slotID, l.ttl)
		if err != nil {
			return "", errors.Wrap(err, "acquire slot lease")
		}
		if ok {
			return token, nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return "", errors.Wrap(ctx.Err(), "wait for slot lease")
		}
	}
}

var _ Locker = (*RedisLocker)(nil)
