package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/parking/internal/domain"
	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
)

type ReservationRepository interface {
	Create(ctx context.Context, reservation *domain.Reservation) error
	GetByID(ctx context.Context, id int64) (*domain.Reservation, error)
	FindOverlapping(ctx context.Context, slotID int64, status domain.ReservationStatus, window domain.Window) ([]domain.Reservation, error)
	// UpdateStatus applies the change only when the stored version equals
	// expectedVersion and returns ErrVersionConflict otherwise.
	UpdateStatus(ctx context.Context, id int64, status domain.ReservationStatus, expectedVersion int64) (*domain.Reservation, error)
	FindAvailableSlots(ctx context.Context, query domain.AvailabilityQuery) (*domain.SlotPage, error)
	CountActiveAt(ctx context.Context, at time.Time) (domain.Occupancy, error)
}

type PGReservationRepository struct {
	db DBTX
}

func NewReservationRepository(db DBTX) ReservationRepository {
	return &PGReservationRepository{db: db}
}

const reservationColumns = `id, slot_id, vehicle_number, start_time, end_time, cost, status, version, created_at, updated_at`

func (r *PGReservationRepository) Create(ctx context.Context, res *domain.Reservation) error {
	err := r.db.QueryRow(ctx, `INSERT INTO reservations (slot_id, vehicle_number, start_time, end_time, cost, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, version, created_at, updated_at`,
		res.SlotID, res.VehicleNumber, res.StartTime, res.EndTime, res.Cost, res.Status).
		Scan(&res.ID, &res.Version, &res.CreatedAt, &res.UpdatedAt)
	return translate(err, "insert reservation")
}

func (r *PGReservationRepository) GetByID(ctx context.Context, id int64) (*domain.Reservation, error) {
	row := r.db.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id=$1`, id)
	res, err := scanReservation(row)
	if err != nil {
		return nil, translate(err, "select reservation")
	}
	return res, nil
}

func (r *PGReservationRepository) FindOverlapping(ctx context.Context, slotID int64, status domain.ReservationStatus, window domain.Window) ([]domain.Reservation, error) {
	rows, err := r.db.Query(ctx, `SELECT `+reservationColumns+` FROM reservations
		WHERE slot_id=$1 AND status=$2 AND end_time > $3 AND start_time < $4
		ORDER BY start_time`, slotID, status, window.Start, window.End)
	if err != nil {
		return nil, translate(err, "find overlapping reservations")
	}
	defer rows.Close()

	var overlaps []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, translate(err, "scan reservation")
		}
		overlaps = append(overlaps, *res)
	}
	return overlaps, translate(rows.Err(), "iterate reservations")
}

func (r *PGReservationRepository) UpdateStatus(ctx context.Context, id int64, status domain.ReservationStatus, expectedVersion int64) (*domain.Reservation, error) {
	row := r.db.QueryRow(ctx, `UPDATE reservations SET status=$1, version=version+1, updated_at=now()
		WHERE id=$2 AND version=$3
		RETURNING `+reservationColumns, status, id, expectedVersion)
	res, err := scanReservation(row)
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, translate(err, "update reservation status")
	}

	// No row matched: either the reservation is gone or the version moved.
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, errors.Mark(errors.Newf("reservation %d changed concurrently", id), ErrVersionConflict)
}

// sortColumns is the only source of ORDER BY text; keys come from the
// allow-list in domain.
var sortColumns = map[string]string{
	domain.SortBySlotNumber:  "s.slot_number",
	domain.SortByVehicleType: "s.vehicle_type",
	domain.SortByFloorName:   "f.name",
}

func orderByClause(property, direction string) (string, error) {
	column, ok := sortColumns[property]
	if !ok {
		return "", errors.Newf("unsupported sort property %q", property)
	}
	dir := "ASC"
	if strings.EqualFold(direction, domain.SortDesc) {
		dir = "DESC"
	}
	return fmt.Sprintf("ORDER BY %s %s, s.id %s", column, dir, dir), nil
}

func (r *PGReservationRepository) FindAvailableSlots(ctx context.Context, q domain.AvailabilityQuery) (*domain.SlotPage, error) {
	orderBy, err := orderByClause(q.SortProperty, q.SortDirection)
	if err != nil {
		return nil, err
	}

	const filter = `FROM slots s
		LEFT JOIN floors f ON f.id = s.floor_id
		WHERE s.vehicle_type = $1
		  AND s.id NOT IN (
			SELECT r.slot_id FROM reservations r
			WHERE r.status = $2 AND r.end_time > $3 AND r.start_time < $4
		  )`
	args := []any{q.VehicleType, domain.ReservationStatusActive, q.Window.Start, q.Window.End}

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) `+filter, args...).Scan(&total); err != nil {
		return nil, translate(err, "count available slots")
	}

	rows, err := r.db.Query(ctx, `SELECT s.id, s.slot_number, s.vehicle_type, s.floor_id, f.name `+filter+` `+orderBy+` LIMIT $5 OFFSET $6`,
		append(args, q.Size, q.Offset())...)
	if err != nil {
		return nil, translate(err, "select available slots")
	}
	defer rows.Close()

	content := make([]domain.SlotView, 0, q.Size)
	for rows.Next() {
		var v domain.SlotView
		if err := rows.Scan(&v.ID, &v.SlotNumber, &v.VehicleType, &v.FloorID, &v.FloorName); err != nil {
			return nil, translate(err, "scan available slot")
		}
		content = append(content, v)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, "iterate available slots")
	}
	return domain.NewSlotPage(content, q.Page, q.Size, total), nil
}

func (r *PGReservationRepository) CountActiveAt(ctx context.Context, at time.Time) (domain.Occupancy, error) {
	rows, err := r.db.Query(ctx, `SELECT s.vehicle_type, count(*) FROM reservations r
		JOIN slots s ON s.id = r.slot_id
		WHERE r.status = $1 AND r.start_time <= $2 AND r.end_time > $2
		GROUP BY s.vehicle_type`, domain.ReservationStatusActive, at)
	if err != nil {
		return nil, translate(err, "count active reservations")
	}
	defer rows.Close()

	occupancy := domain.Occupancy{}
	for rows.Next() {
		var vt domain.VehicleType
		var n int
		if err := rows.Scan(&vt, &n); err != nil {
			return nil, translate(err, "scan occupancy")
		}
		occupancy[vt] = n
	}
	return occupancy, translate(rows.Err(), "iterate occupancy")
}

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	var res domain.Reservation
	if err := row.Scan(&res.ID, &res.SlotID, &res.VehicleNumber, &res.StartTime, &res.EndTime, &res.Cost, &res.Status, &res.Version, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return nil, err
	}
	return &res, nil
}

var _ ReservationRepository = (*PGReservationRepository)(nil)
