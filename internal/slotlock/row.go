package slotlock

import (
	"context"

	"github.com/Domenick1991/parking/internal/repository"
	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RowLocker holds a Postgres row lock on the slot for the duration of one
// transaction. The ledger handed to fn is bound to that transaction, so the
// reservation insert and the lock release commit together.
type RowLocker struct {
	pool *pgxpool.Pool
}

func NewRowLocker(pool *pgxpool.Pool) *RowLocker {
	return &RowLocker{pool: pool}
}

func (l *RowLocker) WithExclusiveSlot(ctx context.Context, slotID int64, fn Func) error {
	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin slot transaction")
	}
	defer tx.Rollback(ctx)

	slot, err := repository.LockSlot(ctx, tx, slotID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return slotNotFound()
		}
		return err
	}

	if err := fn(ctx, slot, repository.NewReservationRepository(tx)); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(ctx), "commit slot transaction")
}

var _ Locker = (*RowLocker)(nil)
