package worker

import (
	"context"
	"testing"
	"time"

	"github.com/Domenick1991/parking/internal/clock"
	"github.com/Domenick1991/parking/internal/domain"
	"github.com/Domenick1991/parking/internal/kafka"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Record(ctx context.Context, event kafka.ReservationEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) InvalidateAvailability(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockOccupancyReader struct {
	mock.Mock
}

func (m *MockOccupancyReader) Occupancy(ctx context.Context, at time.Time) (domain.Occupancy, error) {
	args := m.Called(ctx, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.Occupancy), args.Error(1)
}

// fakeSource replays events then waits for cancellation, like a reader at
// the end of its partition.
type fakeSource struct {
	events []kafka.ReservationEvent
	err    error
}

func (s *fakeSource) Consume(ctx context.Context, handler func(context.Context, kafka.ReservationEvent) error) error {
	for _, event := range s.events {
		if err := handler(ctx, event); err != nil {
			return err
		}
	}
	if s.err != nil {
		return s.err
	}
	<-ctx.Done()
	return nil
}

func newEvent() kafka.ReservationEvent {
	return kafka.ReservationEvent{
		ID:            uuid.New(),
		Type:          kafka.EventReservationCreated,
		ReservationID: 1,
		SlotID:        2,
		Status:        "ACTIVE",
	}
}

func TestWorker_HandleEvent(t *testing.T) {
	recorder := &MockRecorder{}
	cache := &MockCache{}
	w := New(recorder, cache, nil, nil, nil)
	event := newEvent()

	recorder.On("Record", mock.Anything, event).Return(nil).Once()
	cache.On("InvalidateAvailability", mock.Anything).Return(nil).Once()

	require.NoError(t, w.HandleEvent(context.Background(), event))
	recorder.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestWorker_HandleEvent_CacheFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	recorder := &MockRecorder{}
	cache := &MockCache{}
	w := New(recorder, cache, nil, nil, zap.New(core))

	recorder.On("Record", mock.Anything, mock.Anything).Return(nil).Once()
	cache.On("InvalidateAvailability", mock.Anything).Return(errors.New("redis down")).Once()

	require.NoError(t, w.HandleEvent(context.Background(), newEvent()))
	assert.Equal(t, 1, logs.FilterMessage("availability cache invalidation failed").Len())
}

func TestWorker_HandleEvent_WithoutCache(t *testing.T) {
	recorder := &MockRecorder{}
	w := New(recorder, nil, nil, nil, nil)
	recorder.On("Record", mock.Anything, mock.Anything).Return(nil).Once()

	assert.NoError(t, w.HandleEvent(context.Background(), newEvent()))
}

func TestWorker_HandleEvent_RecordFailure(t *testing.T) {
	recorder := &MockRecorder{}
	cache := &MockCache{}
	w := New(recorder, cache, nil, nil, nil)
	sinkDown := errors.New("sink down")
	recorder.On("Record", mock.Anything, mock.Anything).Return(sinkDown).Once()

	err := w.HandleEvent(context.Background(), newEvent())

	assert.True(t, errors.Is(err, sinkDown))
	cache.AssertNotCalled(t, "InvalidateAvailability", mock.Anything)
}

func TestWorker_ReportOccupancy(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	now := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	reader := &MockOccupancyReader{}
	w := New(nil, nil, reader, clock.NewMockClock(now), zap.New(core))

	reader.On("Occupancy", mock.Anything, now).
		Return(domain.Occupancy{domain.VehicleTypeFourWheeler: 3}, nil).Once()

	w.ReportOccupancy(context.Background())

	entries := logs.FilterMessage("occupancy report").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(3), fields["FOUR_WHEELER"])
	assert.Equal(t, int64(0), fields["TWO_WHEELER"])
}

func TestWorker_ReportOccupancy_Failure(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	reader := &MockOccupancyReader{}
	w := New(nil, nil, reader, nil, zap.New(core))
	reader.On("Occupancy", mock.Anything, mock.Anything).Return(nil, errors.New("db down")).Once()

	w.ReportOccupancy(context.Background())

	assert.Equal(t, 1, logs.FilterMessage("occupancy report failed").Len())
	assert.Equal(t, 0, logs.FilterMessage("occupancy report").Len())
}

func TestWorker_Run_StopsOnCancel(t *testing.T) {
	recorder := &MockRecorder{}
	w := New(recorder, nil, &MockOccupancyReader{}, nil, nil)
	event := newEvent()
	recorder.On("Record", mock.Anything, event).Return(nil).Once()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := w.Run(ctx, &fakeSource{events: []kafka.ReservationEvent{event}}, "@every 1h")

	assert.NoError(t, err)
	recorder.AssertExpectations(t)
}

func TestWorker_Run_ConsumerFailureStopsScheduler(t *testing.T) {
	w := New(&MockRecorder{}, nil, &MockOccupancyReader{}, nil, nil)
	broken := errors.New("broker unreachable")

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background(), &fakeSource{err: broken}, "@every 1h") }()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, broken))
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after consumer failure")
	}
}

func TestWorker_Run_InvalidSchedule(t *testing.T) {
	w := New(nil, nil, nil, nil, nil)

	err := w.Run(context.Background(), nil, "every tuesday")

	assert.Error(t, err)
}
