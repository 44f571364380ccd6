package domain

import "github.com/cockroachdb/errors"

// Error categories. Business errors carry a client-safe message and are
// marked with exactly one category.
var (
	ErrValidation          = errors.New("validation failed")
	ErrInvalidReservation  = errors.New("invalid reservation")
	ErrSlotNotFound        = errors.New("slot not found")
	ErrFloorNotFound       = errors.New("floor not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrSlotUnavailable     = errors.New("slot unavailable")
	ErrAlreadyExists       = errors.New("already exists")
)

// Errorf builds a business error with the given message in category kind.
func Errorf(kind error, format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), kind)
}

// IsBusiness reports whether err belongs to any business category.
func IsBusiness(err error) bool {
	return errors.IsAny(err,
		ErrValidation,
		ErrInvalidReservation,
		ErrSlotNotFound,
		ErrFloorNotFound,
		ErrReservationNotFound,
		ErrSlotUnavailable,
		ErrAlreadyExists,
	)
}
