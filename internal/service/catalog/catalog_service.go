package catalog

import (
	"context"
	"strings"

	"github.com/Domenick1991/parking/internal/domain"
	"github.com/Domenick1991/parking/internal/repository"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

type CatalogUseCase interface {
	CreateFloor(ctx context.Context, name string) (*domain.Floor, error)
	FloorExists(ctx context.Context, name string) (bool, error)
	CreateSlot(ctx context.Context, input CreateSlotInput) (*domain.Slot, error)
	GetSlot(ctx context.Context, id int64) (*domain.Slot, error)
}

// Cache is the part of the availability cache touched by catalog writes.
type Cache interface {
	InvalidateAvailability(ctx context.Context) error
}

type CreateSlotInput struct {
	FloorID     int64
	SlotNumber  string
	VehicleType domain.VehicleType
}

type CatalogService struct {
	floors repository.FloorRepository
	slots  repository.SlotRepository
	cache  Cache
	log    *zap.Logger
}

func NewCatalogService(floors repository.FloorRepository, slots repository.SlotRepository, cache Cache, log *zap.Logger) *CatalogService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CatalogService{floors: floors, slots: slots, cache: cache, log: log}
}

func (s *CatalogService) FloorExists(ctx context.Context, name string) (bool, error) {
	exists, err := s.floors.ExistsByName(ctx, name)
	return exists, errors.Wrap(err, "check floor name")
}

func (s *CatalogService) CreateFloor(ctx context.Context, name string) (*domain.Floor, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.Errorf(domain.ErrValidation, "Floor name is required")
	}

	exists, err := s.FloorExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, floorExists(name)
	}

	floor := &domain.Floor{Name: name}
	if err := s.floors.Create(ctx, floor); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, floorExists(name)
		}
		return nil, errors.Wrap(err, "create floor")
	}
	s.log.Info("floor created", zap.Int64("floor_id", floor.ID), zap.String("name", floor.Name))
	return floor, nil
}

func (s *CatalogService) CreateSlot(ctx context.Context, input CreateSlotInput) (*domain.Slot, error) {
	number := strings.TrimSpace(input.SlotNumber)
	switch {
	case input.FloorID == 0:
		return nil, domain.Errorf(domain.ErrValidation, "Floor ID is required")
	case number == "":
		return nil, domain.Errorf(domain.ErrValidation, "Slot number is required")
	case input.VehicleType == "":
		return nil, domain.Errorf(domain.ErrValidation, "Vehicle type is required")
	case !input.VehicleType.Valid():
		return nil, domain.Errorf(domain.ErrValidation, "Invalid value for 'vehicleType'. Allowed values: %s", domain.AllowedVehicleTypes())
	}

	if _, err := s.floors.GetByID(ctx, input.FloorID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.Errorf(domain.ErrFloorNotFound, "Floor not found with ID: %d", input.FloorID)
		}
		return nil, errors.Wrap(err, "load floor")
	}

	slot := &domain.Slot{FloorID: input.FloorID, SlotNumber: number, VehicleType: input.VehicleType}
	if err := s.slots.Create(ctx, slot); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, domain.Errorf(domain.ErrAlreadyExists, "Slot with number '%s' already exists on floor ID %d", number, input.FloorID)
		}
		return nil, errors.Wrap(err, "create slot")
	}

	// A new slot is free in every window, so cached pages are stale.
	if s.cache != nil {
		if err := s.cache.InvalidateAvailability(ctx); err != nil {
			s.log.Warn("availability cache invalidation failed", zap.Error(err))
		}
	}
	s.log.Info("slot created",
		zap.Int64("slot_id", slot.ID),
		zap.Int64("floor_id", slot.FloorID),
		zap.String("slot_number", slot.SlotNumber),
		zap.Stringer("vehicle_type", slot.VehicleType))
	return slot, nil
}

func (s *CatalogService) GetSlot(ctx context.Context, id int64) (*domain.Slot, error) {
	slot, err := s.slots.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.Errorf(domain.ErrSlotNotFound, "Slot not found")
		}
		return nil, errors.Wrap(err, "get slot")
	}
	return slot, nil
}

func floorExists(name string) error {
	return domain.Errorf(domain.ErrAlreadyExists, "Floor with name '%s' already exists", name)
}

var _ CatalogUseCase = (*CatalogService)(nil)
