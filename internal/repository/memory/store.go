// Package memory keeps floors, slots and reservations in process memory.
// It backs the "memory" storage driver and the service tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Domenick1991/parking/internal/domain"
	"github.com/Domenick1991/parking/internal/repository"
	"github.com/cockroachdb/errors"
)

type Store struct {
	mu           sync.RWMutex
	floors       map[int64]domain.Floor
	slots        map[int64]domain.Slot
	reservations map[int64]domain.Reservation

	nextFloorID       int64
	nextSlotID        int64
	nextReservationID int64

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		floors:       make(map[int64]domain.Floor),
		slots:        make(map[int64]domain.Slot),
		reservations: make(map[int64]domain.Reservation),
		now:          time.Now,
	}
}

func (s *Store) Floors() repository.FloorRepository {
	return &floorRepo{s: s}
}

func (s *Store) Slots() repository.SlotRepository {
	return &slotRepo{s: s}
}

func (s *Store) Reservations() repository.ReservationRepository {
	return &reservationRepo{s: s}
}

type floorRepo struct{ s *Store }

func (r *floorRepo) Create(_ context.Context, floor *domain.Floor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, f := range r.s.floors {
		if f.Name == floor.Name {
			return errors.Mark(errors.Newf("floor %q exists", floor.Name), repository.ErrDuplicate)
		}
	}
	r.s.nextFloorID++
	floor.ID = r.s.nextFloorID
	floor.CreatedAt = r.s.now()
	r.s.floors[floor.ID] = *floor
	return nil
}

func (r *floorRepo) GetByID(_ context.Context, id int64) (*domain.Floor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	f, ok := r.s.floors[id]
	if !ok {
		return nil, errors.Mark(errors.Newf("floor %d", id), repository.ErrNotFound)
	}
	return &f, nil
}

func (r *floorRepo) ExistsByName(_ context.Context, name string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, f := range r.s.floors {
		if f.Name == name {
			return true, nil
		}
	}
	return false, nil
}

type slotRepo struct{ s *Store }

func (r *slotRepo) Create(_ context.Context, slot *domain.Slot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	floor, ok := r.s.floors[slot.FloorID]
	if !ok {
		return errors.Newf("floor %d does not exist", slot.FloorID)
	}
	for _, existing := range r.s.slots {
		if existing.FloorID == slot.FloorID && existing.SlotNumber == slot.SlotNumber {
			return errors.Mark(errors.Newf("slot %q exists on floor %d", slot.SlotNumber, slot.FloorID), repository.ErrDuplicate)
		}
	}
	r.s.nextSlotID++
	slot.ID = r.s.nextSlotID
	slot.FloorName = floor.Name
	slot.CreatedAt = r.s.now()
	r.s.slots[slot.ID] = *slot
	return nil
}

func (r *slotRepo) GetByID(_ context.Context, id int64) (*domain.Slot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	slot, ok := r.s.slots[id]
	if !ok {
		return nil, errors.Mark(errors.Newf("slot %d", id), repository.ErrNotFound)
	}
	return &slot, nil
}

type reservationRepo struct{ s *Store }

func (r *reservationRepo) Create(_ context.Context, res *domain.Reservation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.slots[res.SlotID]; !ok {
		return errors.Newf("slot %d does not exist", res.SlotID)
	}
	r.s.nextReservationID++
	now := r.s.now()
	res.ID = r.s.nextReservationID
	res.Version = 0
	res.CreatedAt = now
	res.UpdatedAt = now
	r.s.reservations[res.ID] = *res
	return nil
}

func (r *reservationRepo) GetByID(_ context.Context, id int64) (*domain.Reservation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	res, ok := r.s.reservations[id]
	if !ok {
		return nil, errors.Mark(errors.Newf("reservation %d", id), repository.ErrNotFound)
	}
	return &res, nil
}

func (r *reservationRepo) FindOverlapping(_ context.Context, slotID int64, status domain.ReservationStatus, window domain.Window) ([]domain.Reservation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var overlaps []domain.Reservation
	for _, res := range r.s.reservations {
		if res.SlotID == slotID && res.Status == status && res.Window().Overlaps(window) {
			overlaps = append(overlaps, res)
		}
	}
	sort.Slice(overlaps, func(i, j int) bool {
		return overlaps[i].StartTime.Before(overlaps[j].StartTime)
	})
	return overlaps, nil
}

func (r *reservationRepo) UpdateStatus(_ context.Context, id int64, status domain.ReservationStatus, expectedVersion int64) (*domain.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	res, ok := r.s.reservations[id]
	if !ok {
		return nil, errors.Mark(errors.Newf("reservation %d", id), repository.ErrNotFound)
	}
	if res.Version != expectedVersion {
		return nil, errors.Mark(errors.Newf("reservation %d changed concurrently", id), repository.ErrVersionConflict)
	}
	res.Status = status
	res.Version++
	res.UpdatedAt = r.s.now()
	r.s.reservations[id] = res
	return &res, nil
}

func (r *reservationRepo) FindAvailableSlots(_ context.Context, q domain.AvailabilityQuery) (*domain.SlotPage, error) {
	less, err := slotOrder(q.SortProperty, q.SortDirection)
	if err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	busy := make(map[int64]bool)
	for _, res := range r.s.reservations {
		if res.Status == domain.ReservationStatusActive && res.Window().Overlaps(q.Window) {
			busy[res.SlotID] = true
		}
	}
	var free []domain.SlotView
	for _, slot := range r.s.slots {
		if slot.VehicleType != q.VehicleType || busy[slot.ID] {
			continue
		}
		free = append(free, domain.SlotView{
			ID:          slot.ID,
			SlotNumber:  slot.SlotNumber,
			VehicleType: slot.VehicleType,
			FloorID:     slot.FloorID,
			FloorName:   r.s.floors[slot.FloorID].Name,
		})
	}
	r.s.mu.RUnlock()

	sort.Slice(free, func(i, j int) bool { return less(free[i], free[j]) })

	total := int64(len(free))
	from := min(q.Offset(), len(free))
	to := min(from+q.Size, len(free))
	return domain.NewSlotPage(free[from:to], q.Page, q.Size, total), nil
}

func (r *reservationRepo) CountActiveAt(_ context.Context, at time.Time) (domain.Occupancy, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	occupancy := domain.Occupancy{}
	for _, res := range r.s.reservations {
		if res.Status != domain.ReservationStatusActive || !res.Window().Contains(at) {
			continue
		}
		occupancy[r.s.slots[res.SlotID].VehicleType]++
	}
	return occupancy, nil
}

// slotOrder mirrors the Postgres ORDER BY: the chosen key, then id, in the
// requested direction.
func slotOrder(property, direction string) (func(a, b domain.SlotView) bool, error) {
	var key func(v domain.SlotView) string
	switch property {
	case domain.SortBySlotNumber:
		key = func(v domain.SlotView) string { return v.SlotNumber }
	case domain.SortByVehicleType:
		key = func(v domain.SlotView) string { return string(v.VehicleType) }
	case domain.SortByFloorName:
		key = func(v domain.SlotView) string { return v.FloorName }
	default:
		return nil, errors.Newf("unsupported sort property %q", property)
	}

	desc := strings.EqualFold(direction, domain.SortDesc)
	return func(a, b domain.SlotView) bool {
		ka, kb := key(a), key(b)
		if ka != kb {
			if desc {
				return ka > kb
			}
			return ka < kb
		}
		if desc {
			return a.ID > b.ID
		}
		return a.ID < b.ID
	}, nil
}

var (
	_ repository.FloorRepository       = (*floorRepo)(nil)
	_ repository.SlotRepository        = (*slotRepo)(nil)
	_ repository.ReservationRepository = (*reservationRepo)(nil)
)
