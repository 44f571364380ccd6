package repository

import (
	"testing"

	"github.com/Domenick1991/parking/internal/domain"
	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRepositories(t *testing.T) {
	pool := &pgxpool.Pool{}
	assert.NotNil(t, NewFloorRepository(pool))
	assert.NotNil(t, NewSlotRepository(pool))
	assert.NotNil(t, NewReservationRepository(pool))
}

func TestOrderByClause(t *testing.T) {
	testCases := []struct {
		name      string
		property  string
		direction string
		expected  string
	}{
		{name: "slot number asc", property: domain.SortBySlotNumber, direction: "asc", expected: "ORDER BY s.slot_number ASC, s.id ASC"},
		{name: "vehicle type desc", property: domain.SortByVehicleType, direction: "DESC", expected: "ORDER BY s.vehicle_type DESC, s.id DESC"},
		{name: "floor name default direction", property: domain.SortByFloorName, direction: "", expected: "ORDER BY f.name ASC, s.id ASC"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			clause, err := orderByClause(tc.property, tc.direction)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, clause)
		})
	}

	_, err := orderByClause("s.id; DROP TABLE slots", "asc")
	assert.Error(t, err)
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil, "noop"))

	notFound := translate(pgx.ErrNoRows, "select")
	assert.True(t, errors.Is(notFound, ErrNotFound))

	dup := translate(&pgconn.PgError{Code: "23505"}, "insert")
	assert.True(t, errors.Is(dup, ErrDuplicate))

	other := translate(errors.New("boom"), "insert")
	assert.False(t, errors.Is(other, ErrNotFound))
	assert.False(t, errors.Is(other, ErrDuplicate))
	assert.Contains(t, other.Error(), "insert")
}
