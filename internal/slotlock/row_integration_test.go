//go:build integration

package slotlock

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/parking/internal/domain"
	"github.com/Domenick1991/parking/internal/migrations"
	"github.com/Domenick1991/parking/internal/repository"
	"github.com/cockroachdb/errors"
	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testUser     = "test"
	testPassword = "testpass"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	dsn := func(host string, port nat.Port) string {
		return fmt.Sprintf("postgres://%s:%s@%s:%s/parking?sslmode=disable", testUser, testPassword, host, port.Port())
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     testUser,
				"POSTGRES_PASSWORD": testPassword,
				"POSTGRES_DB":       "parking",
			},
			Cmd:        []string{"postgres", "-c", "fsync=off"},
			WaitingFor: wait.ForSQL("5432/tcp", "pgx", dsn).WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn(host, port))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, migrations.Up(ctx, pool))
	return pool
}

func TestRowLocker_ConcurrentReservationsOnOneSlot(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	floor := &domain.Floor{Name: "Ground"}
	require.NoError(t, repository.NewFloorRepository(pool).Create(ctx, floor))
	slot := &domain.Slot{FloorID: floor.ID, SlotNumber: "A1", VehicleType: domain.VehicleTypeFourWheeler}
	require.NoError(t, repository.NewSlotRepository(pool).Create(ctx, slot))

	locker := NewRowLocker(pool)
	window := domain.Window{
		Start: time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	conflict := errors.New("conflict")

	const workers = 12
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- locker.WithExclusiveSlot(ctx, slot.ID, func(ctx context.Context, s *domain.Slot, ledger repository.ReservationRepository) error {
				overlaps, err := ledger.FindOverlapping(ctx, s.ID, domain.ReservationStatusActive, window)
				if err != nil {
					return err
				}
				if len(overlaps) > 0 {
					return conflict
				}
				return ledger.Create(ctx, &domain.Reservation{
					SlotID:        s.ID,
					VehicleNumber: "KA05MH1234",
					StartTime:     window.Start,
					EndTime:       window.End,
					Cost:          60,
					Status:        domain.ReservationStatusActive,
				})
			})
		}()
	}
	wg.Wait()
	close(results)

	var ok, rejected int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, conflict):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, rejected)

	stored, err := repository.NewReservationRepository(pool).FindOverlapping(ctx, slot.ID, domain.ReservationStatusActive, window)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestRowLocker_MissingSlot(t *testing.T) {
	pool := startPostgres(t)

	err := NewRowLocker(pool).WithExclusiveSlot(context.Background(), 404, func(context.Context, *domain.Slot, repository.ReservationRepository) error {
		t.Error("callback must not run")
		return nil
	})
	assert.True(t, errors.Is(err, domain.ErrSlotNotFound))
}
