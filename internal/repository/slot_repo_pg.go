package repository

import (
	"context"

	"github.com/Domenick1991/parking/internal/domain"
	"github.com/jackc/pgx/v5"
)

type SlotRepository interface {
	Create(ctx context.Context, slot *domain.Slot) error
	GetByID(ctx context.Context, id int64) (*domain.Slot, error)
}

type PGSlotRepository struct {
	db DBTX
}

func NewSlotRepository(db DBTX) SlotRepository {
	return &PGSlotRepository{db: db}
}

const slotColumns = `s.id, s.floor_id, f.name, s.slot_number, s.vehicle_type, s.created_at`

func (r *PGSlotRepository) Create(ctx context.Context, slot *domain.Slot) error {
	err := r.db.QueryRow(ctx, `INSERT INTO slots (floor_id, slot_number, vehicle_type)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, (SELECT name FROM floors WHERE id=$1)`, slot.FloorID, slot.SlotNumber, slot.VehicleType).
		Scan(&slot.ID, &slot.CreatedAt, &slot.FloorName)
	return translate(err, "insert slot")
}

func (r *PGSlotRepository) GetByID(ctx context.Context, id int64) (*domain.Slot, error) {
	row := r.db.QueryRow(ctx, `SELECT `+slotColumns+` FROM slots s JOIN floors f ON f.id = s.floor_id WHERE s.id=$1`, id)
	slot, err := scanSlot(row)
	if err != nil {
		return nil, translate(err, "select slot")
	}
	return slot, nil
}

// LockSlot reads the slot with its floor and holds a row lock on the slot
// until tx ends.
func LockSlot(ctx context.Context, tx pgx.Tx, id int64) (*domain.Slot, error) {
	row := tx.QueryRow(ctx, `SELECT `+slotColumns+` FROM slots s JOIN floors f ON f.id = s.floor_id WHERE s.id=$1 FOR UPDATE OF s`, id)
	slot, err := scanSlot(row)
	if err != nil {
		return nil, translate(err, "lock slot")
	}
	return slot, nil
}

func scanSlot(row pgx.Row) (*domain.Slot, error) {
	var s domain.Slot
	if err := row.Scan(&s.ID, &s.FloorID, &s.FloorName, &s.SlotNumber, &s.VehicleType, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

var _ SlotRepository = (*PGSlotRepository)(nil)
