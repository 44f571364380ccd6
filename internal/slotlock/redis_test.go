package slotlock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Domenick1991/parking/config"
	"github.com/Domenick1991/parking/internal/cache"
	"github.com/Domenick1991/parking/internal/domain"
	"github.com/Domenick1991/parking/internal/repository"
	"github.com/alicebob/miniredis/v2"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockLeases struct {
	mock.Mock
}

func (m *MockLeases) AcquireSlotLease(ctx context.Context, slotID int64, ttl time.Duration) (string, bool, error) {
	args := m.Called(ctx, slotID, ttl)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockLeases) ReleaseSlotLease(ctx context.Context, slotID int64, token string) error {
	args := m.Called(ctx, slotID, token)
	return args.Error(0)
}

func TestRedisLocker_SerializesAcrossLockers(t *testing.T) {
	mr := miniredis.RunT(t)
	leases := cache.NewRedisCache(config.RedisConfig{Addr: mr.Addr()}, time.Minute)
	t.Cleanup(func() { _ = leases.Close() })

	inner, slots := newMemoryLocker(t, 1)
	// Two lockers sharing one Redis behave like two API instances.
	first := NewRedisLocker(inner, inner.slots, leases, 5*time.Second, time.Millisecond, nil)
	second := NewRedisLocker(inner, inner.slots, leases, 5*time.Second, time.Millisecond, nil)

	var inside, overlaps int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		locker := first
		if i%2 == 1 {
			locker = second
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithExclusiveSlot(context.Background(), slots[0].ID, func(context.Context, *domain.Slot, repository.ReservationRepository) error {
				if atomic.AddInt32(&inside, 1) > 1 {
					atomic.AddInt32(&overlaps, 1)
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(0), overlaps)
	assert.False(t, mr.Exists("lock:slot:1"))
}

func TestRedisLocker_MissingSlotFailsWithoutLease(t *testing.T) {
	leases := &MockLeases{}
	inner, _ := newMemoryLocker(t, 1)
	locker := NewRedisLocker(inner, inner.slots, leases, time.Second, time.Millisecond, nil)

	err := locker.WithExclusiveSlot(context.Background(), 42, func(context.Context, *domain.Slot, repository.ReservationRepository) error {
		t.Error("callback must not run for a missing slot")
		return nil
	})

	assert.True(t, errors.Is(err, domain.ErrSlotNotFound))
	assert.Equal(t, "Slot not found", err.Error())
	leases.AssertNotCalled(t, "AcquireSlotLease", mock.Anything, mock.Anything, mock.Anything)
}

func TestRedisLocker_MissingSlotDoesNotWaitForHeldLease(t *testing.T) {
	mr := miniredis.RunT(t)
	leases := cache.NewRedisCache(config.RedisConfig{Addr: mr.Addr()}, time.Minute)
	t.Cleanup(func() { _ = leases.Close() })

	inner, _ := newMemoryLocker(t, 1)
	locker := NewRedisLocker(inner, inner.slots, leases, time.Minute, time.Millisecond, nil)

	// Another instance holds the lease on the id being requested.
	_, ok, err := leases.AcquireSlotLease(context.Background(), 42, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	err = locker.WithExclusiveSlot(ctx, 42, func(context.Context, *domain.Slot, repository.ReservationRepository) error {
		return nil
	})

	assert.True(t, errors.Is(err, domain.ErrSlotNotFound))
	assert.NoError(t, ctx.Err(), "missing slot must fail before waiting on the lease")
}

func TestRedisLocker_RetriesUntilGranted(t *testing.T) {
	leases := &MockLeases{}
	inner, slots := newMemoryLocker(t, 1)
	locker := NewRedisLocker(inner, inner.slots, leases, time.Second, time.Millisecond, nil)
	id := slots[0].ID

	leases.On("AcquireSlotLease", mock.Anything, id, time.Second).Return("", false, nil).Twice()
	leases.On("AcquireSlotLease", mock.Anything, id, time.Second).Return("tok", true, nil).Once()
	leases.On("ReleaseSlotLease", mock.Anything, id, "tok").Return(nil).Once()

	ran := false
	err := locker.WithExclusiveSlot(context.Background(), id, func(context.Context, *domain.Slot, repository.ReservationRepository) error {
		ran = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)
	leases.AssertExpectations(t)
}

func TestRedisLocker_AcquireError(t *testing.T) {
	leases := &MockLeases{}
	inner, slots := newMemoryLocker(t, 1)
	locker := NewRedisLocker(inner, inner.slots, leases, time.Second, time.Millisecond, nil)
	down := errors.New("connection refused")

	leases.On("AcquireSlotLease", mock.Anything, slots[0].ID, time.Second).Return("", false, down).Once()

	err := locker.WithExclusiveSlot(context.Background(), slots[0].ID, func(context.Context, *domain.Slot, repository.ReservationRepository) error {
		return nil
	})

	assert.True(t, errors.Is(err, down))
	leases.AssertNotCalled(t, "ReleaseSlotLease", mock.Anything, mock.Anything, mock.Anything)
}

func TestRedisLocker_ContextCancelledWhileWaiting(t *testing.T) {
	leases := &MockLeases{}
	inner, slots := newMemoryLocker(t, 1)
	locker := NewRedisLocker(inner, inner.slots, leases, time.Second, time.Millisecond, nil)

	leases.On("AcquireSlotLease", mock.Anything, slots[0].ID, time.Second).Return("", false, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := locker.WithExclusiveSlot(ctx, slots[0].ID, func(context.Context, *domain.Slot, repository.ReservationRepository) error {
		return nil
	})

	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
