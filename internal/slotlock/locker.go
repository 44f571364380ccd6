// Package slotlock serializes reservation writes per slot.
//
// A Locker runs a callback in a scope where no other caller holds the same
// slot. The callback receives the slot and a reservation ledger; writes made
// through that ledger are committed before the scope is released.
package slotlock

import (
	"context"

	"github.com/Domenick1991/parking/internal/domain"
	"github.com/Domenick1991/parking/internal/repository"
)

type Func func(ctx context.Context, slot *domain.Slot, ledger repository.ReservationRepository) error

type Locker interface {
	// WithExclusiveSlot fails with domain.ErrSlotNotFound, without waiting,
	// when the slot does not exist.
	WithExclusiveSlot(ctx context.Context, slotID int64, fn Func) error
}

func slotNotFound() error {
	return domain.Errorf(domain.ErrSlotNotFound, "Slot not found")
}
