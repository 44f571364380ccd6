package api

import (
	"context"
	"time"

	"github.com/Domenick1991/parking/internal/domain"
	"github.com/Domenick1991/parking/internal/service/catalog"
	"github.com/Domenick1991/parking/internal/service/reservation"
	"github.com/stretchr/testify/mock"
)

type MockCatalogUseCase struct {
	mock.Mock
}

func (m *MockCatalogUseCase) CreateFloor(ctx context.Context, name string) (*domain.Floor, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Floor), args.Error(1)
}

func (m *MockCatalogUseCase) FloorExists(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockCatalogUseCase) CreateSlot(ctx context.Context, input catalog.CreateSlotInput) (*domain.Slot, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Slot), args.Error(1)
}

func (m *MockCatalogUseCase) GetSlot(ctx context.Context, id int64) (*domain.Slot, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Slot), args.Error(1)
}

type MockReservationUseCase struct {
	mock.Mock
}

func (m *MockReservationUseCase) Reserve(ctx context.Context, input reservation.ReserveInput) (*domain.Reservation, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationUseCase) GetReservation(ctx context.Context, id int64) (*domain.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationUseCase) CancelReservation(ctx context.Context, id int64) (*domain.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationUseCase) ListAvailableSlots(ctx context.Context, input reservation.AvailabilityInput) (*domain.SlotPage, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SlotPage), args.Error(1)
}

func (m *MockReservationUseCase) Occupancy(ctx context.Context, at time.Time) (domain.Occupancy, error) {
	args := m.Called(ctx, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.Occupancy), args.Error(1)
}
