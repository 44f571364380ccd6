package reservation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/parking/config"
	"github.com/Domenick1991/parking/internal/cache"
	"github.com/Domenick1991/parking/internal/clock"
	"github.com/Domenick1991/parking/internal/domain"
	"github.com/Domenick1991/parking/internal/pricing"
	"github.com/Domenick1991/parking/internal/repository"
	"github.com/Domenick1991/parking/internal/repository/memory"
	"github.com/Domenick1991/parking/internal/slotlock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// interleavingLedger runs during once, right after the first availability
// load has read storage and before its result reaches the caller.
type interleavingLedger struct {
	repository.ReservationRepository
	once   sync.Once
	during func()
}

func (l *interleavingLedger) FindAvailableSlots(ctx context.Context, q domain.AvailabilityQuery) (*domain.SlotPage, error) {
	page, err := l.ReservationRepository.FindAvailableSlots(ctx, q)
	l.once.Do(func() {
		if l.during != nil {
			l.during()
		}
	})
	return page, err
}

func newInterleavingService(t *testing.T, opts ...Option) (*ReservationService, *interleavingLedger, *domain.Slot) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	floor := &domain.Floor{Name: "Ground"}
	require.NoError(t, store.Floors().Create(ctx, floor))
	car := &domain.Slot{FloorID: floor.ID, SlotNumber: "A1", VehicleType: domain.VehicleTypeFourWheeler}
	require.NoError(t, store.Slots().Create(ctx, car))

	ledger := &interleavingLedger{ReservationRepository: store.Reservations()}
	opts = append([]Option{WithClock(clock.NewMockClock(now))}, opts...)
	service := NewReservationService(
		ledger,
		slotlock.NewMutexLocker(store.Slots(), store.Reservations()),
		pricing.NewCalculator(nil),
		opts...,
	)
	return service, ledger, car
}

func carReservation(slot *domain.Slot) ReserveInput {
	return ReserveInput{
		SlotID:        slot.ID,
		VehicleNumber: "KA05MH1234",
		StartTime:     at(10, 0),
		EndTime:       at(11, 0),
		VehicleType:   domain.VehicleTypeFourWheeler,
	}
}

func TestReservationService_ListAvailableSlots_ReservationDuringLoadIsNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	redisCache := cache.NewRedisCache(config.RedisConfig{Addr: mr.Addr()}, time.Minute)
	t.Cleanup(func() { _ = redisCache.Close() })

	service, ledger, car := newInterleavingService(t, WithCache(redisCache))
	ctx := context.Background()
	ledger.during = func() {
		_, err := service.Reserve(ctx, carReservation(car))
		require.NoError(t, err)
	}

	// The first caller raced the reservation and may see the slot free.
	first, err := service.ListAvailableSlots(ctx, availabilityInput())
	require.NoError(t, err)
	require.Len(t, first.Content, 1)

	second, err := service.ListAvailableSlots(ctx, availabilityInput())
	require.NoError(t, err)
	assert.Empty(t, second.Content, "a slot reserved after the load began must not be served from cache")
}

func TestReservationService_ListAvailableSlots_CallerAfterWriteDoesNotJoinEarlierLoad(t *testing.T) {
	service, ledger, car := newInterleavingService(t)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	ledger.during = func() {
		close(entered)
		<-release
	}

	firstDone := make(chan *domain.SlotPage, 1)
	go func() {
		page, err := service.ListAvailableSlots(ctx, availabilityInput())
		assert.NoError(t, err)
		firstDone <- page
	}()
	<-entered

	_, err := service.Reserve(ctx, carReservation(car))
	require.NoError(t, err)

	secondDone := make(chan *domain.SlotPage, 1)
	go func() {
		page, err := service.ListAvailableSlots(ctx, availabilityInput())
		assert.NoError(t, err)
		secondDone <- page
	}()

	select {
	case page := <-secondDone:
		assert.Empty(t, page.Content)
	case <-time.After(2 * time.Second):
		t.Fatal("caller after the reservation joined the load that started before it")
	}

	close(release)
	first := <-firstDone
	assert.Len(t, first.Content, 1)
}
