package slotlock

import (
	"context"
	"sync"

	"github.com/Domenick1991/parking/internal/repository"
	"github.com/cockroachdb/errors"
)

// MutexLocker grants exclusivity inside one process. Gates are created on
// demand and dropped once no caller references them.
type MutexLocker struct {
	slots  repository.SlotRepository
	ledger repository.ReservationRepository

	mu    sync.Mutex
	gates map[int64]*gate
}

type gate struct {
	ch   chan struct{}
	refs int
}

func NewMutexLocker(slots repository.SlotRepository, ledger repository.ReservationRepository) *MutexLocker {
	return &MutexLocker{
		slots:  slots,
		ledger: ledger,
		gates:  make(map[int64]*gate),
	}
}

func (l *MutexLocker) WithExclusiveSlot(ctx context.Context, slotID int64, fn Func) error {
	slot, err := l.slots.GetByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return slotNotFound()
		}
		return errors.Wrap(err, "load slot")
	}

	release, err := l.acquire(ctx, slotID)
	if err != nil {
		return err
	}
	defer release()

	return fn(ctx, slot, l.ledger)
}

func (l *MutexLocker) acquire(ctx context.Context, slotID int64) (func(), error) {
	l.mu.Lock()
	g, ok := l.gates[slotID]
	if !ok {
		g = &gate{ch: make(chan struct{}, 1)}
		l.gates[slotID] = g
	}
	g.refs++
	l.mu.Unlock()

	select {
	case g.ch <- struct{}{}:
		return func() {
			<-g.ch
			l.unref(slotID, g)
		}, nil
	case <-ctx.Done():
		l.unref(slotID, g)
		return nil, errors.Wrap(ctx.Err(), "wait for slot lock")
	}
}

func (l *MutexLocker) unref(slotID int64, g *gate) {
	l.mu.Lock()
	defer l.mu.Unlock()
	g.refs--
	if g.refs == 0 {
		delete(l.gates, slotID)
	}
}

var _ Locker = (*MutexLocker)(nil)
