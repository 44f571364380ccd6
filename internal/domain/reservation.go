package domain

import "time"

type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "ACTIVE"
	ReservationStatusCancelled ReservationStatus = "CANCELLED"
)

// TimestampLayout is the wire format for reservation times.
const TimestampLayout = "2006-01-02T15:04:05"

type Reservation struct {
	ID            int64
	SlotID        int64
	VehicleNumber string
	StartTime     time.Time
	EndTime       time.Time
	Cost          int64
	Status        ReservationStatus
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (r Reservation) Window() Window {
	return Window{Start: r.StartTime, End: r.EndTime}
}

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Overlaps reports whether the two windows intersect. Touching endpoints
// do not overlap.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Occupancy counts reservations in progress per vehicle class.
type Occupancy map[VehicleType]int
