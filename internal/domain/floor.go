package domain

import "time"

type Floor struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Slot is a bookable unit on a floor. FloorName is filled by reads that
// join the parent floor.
type Slot struct {
	ID          int64
	FloorID     int64
	FloorName   string
	SlotNumber  string
	VehicleType VehicleType
	CreatedAt   time.Time
}
