package reservation

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Domenick1991/parking/internal/clock"
	"github.com/Domenick1991/parking/internal/domain"
	"github.com/Domenick1991/parking/internal/kafka"
	"github.com/Domenick1991/parking/internal/pricing"
	"github.com/Domenick1991/parking/internal/repository"
	"github.com/Domenick1991/parking/internal/slotlock"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultMaxDuration   = 24 * time.Hour
	DefaultPageSize      = 10
	DefaultMaxPageSize   = 100
	DefaultCancelRetries = 3
)

var vehicleNumberPattern = regexp.MustCompile(`^[A-Z]{2}\d{2}[A-Z]{2}\d{4}$`)

type ReservationUseCase interface {
	Reserve(ctx context.Context, input ReserveInput) (*domain.Reservation, error)
	GetReservation(ctx context.Context, id int64) (*domain.Reservation, error)
	CancelReservation(ctx context.Context, id int64) (*domain.Reservation, error)
	ListAvailableSlots(ctx context.Context, input AvailabilityInput) (*domain.SlotPage, error)
	Occupancy(ctx context.Context, at time.Time) (domain.Occupancy, error)
}

// Cache stores availability pages under a generation that every committed
// write advances. A page must be stored under the generation read before it
// was loaded.
type Cache interface {
	GetAvailability(ctx context.Context, q domain.AvailabilityQuery) (page *domain.SlotPage, generation int64, err error)
	SetAvailability(ctx context.Context, q domain.AvailabilityQuery, generation int64, page *domain.SlotPage) error
	InvalidateAvailability(ctx context.Context) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value any) error
}

type ReserveInput struct {
	SlotID        int64
	VehicleNumber string
	StartTime     time.Time
	EndTime       time.Time
	VehicleType   domain.VehicleType
}

type AvailabilityInput struct {
	StartTime     time.Time
	EndTime       time.Time
	VehicleType   domain.VehicleType
	Page          int
	Size          int
	SortProperty  string
	SortDirection string
}

type ReservationService struct {
	reservations repository.ReservationRepository
	locker       slotlock.Locker
	pricing      *pricing.Calculator

	cache    Cache
	producer Producer
	topic    string
	clock    clock.Clock
	log      *zap.Logger

	maxDuration   time.Duration
	maxPageSize   int
	cancelRetries int

	availability singleflight.Group
	// writes counts committed changes in this process so a caller never
	// joins an availability load that started before its own write.
	writes atomic.Int64
}

type Option func(*ReservationService)

func WithCache(cache Cache) Option {
	return func(s *ReservationService) {
		s.cache = cache
	}
}

func WithProducer(producer Producer, topic string) Option {
	return func(s *ReservationService) {
		s.producer = producer
		s.topic = topic
	}
}

func WithClock(c clock.Clock) Option {
	return func(s *ReservationService) {
		s.clock = c
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(s *ReservationService) {
		s.log = log
	}
}

func WithMaxDuration(d time.Duration) Option {
	return func(s *ReservationService) {
		if d > 0 {
			s.maxDuration = d
		}
	}
}

func WithMaxPageSize(n int) Option {
	return func(s *ReservationService) {
		if n > 0 {
			s.maxPageSize = n
		}
	}
}

func WithCancelRetries(n int) Option {
	return func(s *ReservationService) {
		if n >= 0 {
			s.cancelRetries = n
		}
	}
}

func NewReservationService(
	reservations repository.ReservationRepository,
	locker slotlock.Locker,
	calculator *pricing.Calculator,
	opts ...Option,
) *ReservationService {
	s := &ReservationService{
		reservations:  reservations,
		locker:        locker,
		pricing:       calculator,
		clock:         clock.NewRealClock(),
		log:           zap.NewNop(),
		maxDuration:   DefaultMaxDuration,
		maxPageSize:   DefaultMaxPageSize,
		cancelRetries: DefaultCancelRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ReservationService) Reserve(ctx context.Context, input ReserveInput) (*domain.Reservation, error) {
	log := s.log.With(
		zap.Int64("slot_id", input.SlotID),
		zap.String("vehicle_number", input.VehicleNumber),
		zap.Time("start_time", input.StartTime),
		zap.Time("end_time", input.EndTime),
	)
	log.Info("processing reservation request")

	if err := s.validateReserve(input); err != nil {
		log.Warn("reservation rejected", zap.Error(err))
		return nil, err
	}

	window := domain.Window{Start: input.StartTime, End: input.EndTime}
	var created *domain.Reservation
	err := s.locker.WithExclusiveSlot(ctx, input.SlotID, func(ctx context.Context, slot *domain.Slot, ledger repository.ReservationRepository) error {
		if slot.VehicleType != input.VehicleType {
			return domain.Errorf(domain.ErrInvalidReservation,
				"Vehicle type mismatch: slot supports %s, but %s was requested", slot.VehicleType, input.VehicleType)
		}

		overlaps, err := ledger.FindOverlapping(ctx, slot.ID, domain.ReservationStatusActive, window)
		if err != nil {
			return errors.Wrap(err, "find overlapping reservations")
		}
		if len(overlaps) > 0 {
			return domain.Errorf(domain.ErrSlotUnavailable, "Slot ID %d is already reserved between %s and %s",
				slot.ID, input.StartTime.Format(domain.TimestampLayout), input.EndTime.Format(domain.TimestampLayout))
		}

		res := &domain.Reservation{
			SlotID:        slot.ID,
			VehicleNumber: input.VehicleNumber,
			StartTime:     input.StartTime,
			EndTime:       input.EndTime,
			Cost:          s.pricing.Cost(slot.VehicleType, input.StartTime, input.EndTime),
			Status:        domain.ReservationStatusActive,
		}
		if err := ledger.Create(ctx, res); err != nil {
			return errors.Wrap(err, "create reservation")
		}
		created = res
		return nil
	})
	if err != nil {
		if domain.IsBusiness(err) {
			log.Warn("reservation rejected", zap.Error(err))
		}
		return nil, err
	}

	log.Info("reservation created", zap.Int64("reservation_id", created.ID), zap.Int64("cost", created.Cost))
	s.afterChange(ctx, kafka.EventReservationCreated, created)
	return created, nil
}

func (s *ReservationService) validateReserve(input ReserveInput) error {
	if input.StartTime.IsZero() || input.EndTime.IsZero() {
		return domain.Errorf(domain.ErrInvalidReservation, "Start and end time are required")
	}
	if !input.StartTime.Before(input.EndTime) {
		return domain.Errorf(domain.ErrInvalidReservation, "Start time must be before end time")
	}
	if input.EndTime.Sub(input.StartTime) > s.maxDuration {
		return domain.Errorf(domain.ErrInvalidReservation, "Reservation duration cannot exceed %s", formatHours(s.maxDuration))
	}
	// Wire timestamps carry whole seconds, so the current second still counts as present.
	if input.StartTime.Before(s.clock.Now().Truncate(time.Second)) {
		return domain.Errorf(domain.ErrInvalidReservation, "Start time must be present or future")
	}
	if !vehicleNumberPattern.MatchString(input.VehicleNumber) {
		return domain.Errorf(domain.ErrInvalidReservation, "Invalid vehicle number format. Expected: XX00XX0000 (e.g., KA05MH1234)")
	}
	return nil
}

func (s *ReservationService) GetReservation(ctx context.Context, id int64) (*domain.Reservation, error) {
	s.log.Debug("fetching reservation", zap.Int64("reservation_id", id))
	res, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, reservationLookupError(err)
	}
	return res, nil
}

// CancelReservation is idempotent: cancelling a cancelled reservation
// returns it unchanged. Concurrent writers are resolved by retrying on a
// version conflict.
func (s *ReservationService) CancelReservation(ctx context.Context, id int64) (*domain.Reservation, error) {
	log := s.log.With(zap.Int64("reservation_id", id))
	log.Info("cancelling reservation")

	var lastErr error
	for attempt := 0; attempt <= s.cancelRetries; attempt++ {
		current, err := s.reservations.GetByID(ctx, id)
		if err != nil {
			return nil, reservationLookupError(err)
		}
		if current.Status == domain.ReservationStatusCancelled {
			return current, nil
		}

		updated, err := s.reservations.UpdateStatus(ctx, id, domain.ReservationStatusCancelled, current.Version)
		if err == nil {
			log.Info("reservation cancelled", zap.Int64("slot_id", updated.SlotID))
			s.afterChange(ctx, kafka.EventReservationCancelled, updated)
			return updated, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, errors.Wrap(err, "cancel reservation")
		}
		log.Debug("retrying cancel after version conflict", zap.Int("attempt", attempt+1))
		lastErr = err
	}
	return nil, errors.Wrapf(lastErr, "cancel reservation %d after %d attempts", id, s.cancelRetries+1)
}

func (s *ReservationService) ListAvailableSlots(ctx context.Context, input AvailabilityInput) (*domain.SlotPage, error) {
	query, err := s.availabilityQuery(input)
	if err != nil {
		return nil, err
	}

	local := s.writes.Load()
	var generation int64
	cacheable := false
	if s.cache != nil {
		page, gen, err := s.cache.GetAvailability(ctx, query)
		switch {
		case err != nil:
			s.log.Warn("availability cache read failed", zap.Error(err))
		case page != nil:
			return page, nil
		default:
			generation, cacheable = gen, true
		}
	}

	// The shared load outlives any single caller's cancellation.
	loadCtx := context.WithoutCancel(ctx)
	key := fmt.Sprintf("%d:%d:%t:%s", local, generation, cacheable, query.Key())
	v, err, _ := s.availability.Do(key, func() (any, error) {
		page, err := s.reservations.FindAvailableSlots(loadCtx, query)
		if err != nil {
			return nil, errors.Wrap(err, "find available slots")
		}
		if cacheable {
			if err := s.cache.SetAvailability(loadCtx, query, generation, page); err != nil {
				s.log.Warn("availability cache write failed", zap.Error(err))
			}
		}
		return page, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.SlotPage), nil
}

func (s *ReservationService) availabilityQuery(input AvailabilityInput) (domain.AvailabilityQuery, error) {
	property := input.SortProperty
	if property == "" {
		property = domain.SortBySlotNumber
	}
	if !domain.IsAllowedSortProperty(property) {
		return domain.AvailabilityQuery{}, domain.Errorf(domain.ErrInvalidReservation,
			"Sorting by '%s' is not allowed. Allowed: [%s]", property, strings.Join(domain.AllowedSortProperties(), ", "))
	}
	direction := strings.ToLower(input.SortDirection)
	if direction == "" {
		direction = domain.SortAsc
	}
	if direction != domain.SortAsc && direction != domain.SortDesc {
		return domain.AvailabilityQuery{}, domain.Errorf(domain.ErrInvalidReservation,
			"Invalid sort direction '%s'. Allowed: [asc, desc]", input.SortDirection)
	}

	if input.StartTime.IsZero() || input.EndTime.IsZero() {
		return domain.AvailabilityQuery{}, domain.Errorf(domain.ErrInvalidReservation, "Start and end time are required")
	}
	if !input.StartTime.Before(input.EndTime) {
		return domain.AvailabilityQuery{}, domain.Errorf(domain.ErrInvalidReservation, "Start time must be before end time")
	}
	if input.EndTime.Sub(input.StartTime) > s.maxDuration {
		return domain.AvailabilityQuery{}, domain.Errorf(domain.ErrInvalidReservation, "Time range cannot exceed %s", formatHours(s.maxDuration))
	}
	if !input.VehicleType.Valid() {
		return domain.AvailabilityQuery{}, domain.Errorf(domain.ErrValidation,
			"Invalid value for 'vehicleType'. Allowed values: %s", domain.AllowedVehicleTypes())
	}
	if input.Page < 0 {
		return domain.AvailabilityQuery{}, domain.Errorf(domain.ErrInvalidReservation, "Page index must not be less than zero")
	}
	if input.Size < 1 || input.Size > s.maxPageSize {
		return domain.AvailabilityQuery{}, domain.Errorf(domain.ErrInvalidReservation, "Page size must be between 1 and %d", s.maxPageSize)
	}

	return domain.AvailabilityQuery{
		Window:        domain.Window{Start: input.StartTime, End: input.EndTime},
		VehicleType:   input.VehicleType,
		Page:          input.Page,
		Size:          input.Size,
		SortProperty:  property,
		SortDirection: direction,
	}, nil
}

func (s *ReservationService) Occupancy(ctx context.Context, at time.Time) (domain.Occupancy, error) {
	occupancy, err := s.reservations.CountActiveAt(ctx, at)
	if err != nil {
		return nil, errors.Wrap(err, "count active reservations")
	}
	return occupancy, nil
}

// afterChange runs the side effects of a committed write. Failures are
// logged; the write itself already succeeded.
func (s *ReservationService) afterChange(ctx context.Context, eventType string, res *domain.Reservation) {
	s.writes.Add(1)
	if s.cache != nil {
		if err := s.cache.InvalidateAvailability(ctx); err != nil {
			s.log.Warn("availability cache invalidation failed", zap.Error(err))
		}
	}
	if s.producer == nil {
		return
	}
	event := kafka.ReservationEvent{
		ID:            uuid.New(),
		Type:          eventType,
		ReservationID: res.ID,
		SlotID:        res.SlotID,
		VehicleNumber: res.VehicleNumber,
		StartTime:     res.StartTime,
		EndTime:       res.EndTime,
		Cost:          res.Cost,
		Status:        string(res.Status),
		OccurredAt:    s.clock.Now(),
	}
	if err := s.producer.Publish(ctx, s.topic, strconv.FormatInt(res.SlotID, 10), event); err != nil {
		s.log.Warn("failed to publish reservation event",
			zap.String("type", eventType), zap.Int64("reservation_id", res.ID), zap.Error(err))
	}
}

func reservationLookupError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Errorf(domain.ErrReservationNotFound, "Reservation not found")
	}
	return errors.Wrap(err, "get reservation")
}

func formatHours(d time.Duration) string {
	h := int64(d / time.Hour)
	if h == 1 {
		return "1 hour"
	}
	return strconv.FormatInt(h, 10) + " hours"
}

var _ ReservationUseCase = (*ReservationService)(nil)
