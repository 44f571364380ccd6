package domain

import (
	"fmt"
	"strings"
)

const (
	SortBySlotNumber  = "slotNumber"
	SortByVehicleType = "vehicleType"
	SortByFloorName   = "floor.name"

	SortAsc  = "asc"
	SortDesc = "desc"
)

var allowedSortProperties = []string{SortBySlotNumber, SortByVehicleType, SortByFloorName}

func AllowedSortProperties() []string {
	return append([]string(nil), allowedSortProperties...)
}

func IsAllowedSortProperty(p string) bool {
	for _, allowed := range allowedSortProperties {
		if p == allowed {
			return true
		}
	}
	return false
}

// AvailabilityQuery is a validated request for free slots of one class.
type AvailabilityQuery struct {
	Window        Window
	VehicleType   VehicleType
	Page          int
	Size          int
	SortProperty  string
	SortDirection string
}

func (q AvailabilityQuery) Offset() int {
	return q.Page * q.Size
}

// Key identifies the query for caching and request collapsing.
func (q AvailabilityQuery) Key() string {
	return fmt.Sprintf("%s:%d:%d:%d:%d:%s:%s",
		q.VehicleType, q.Window.Start.Unix(), q.Window.End.Unix(), q.Page, q.Size, q.SortProperty, strings.ToLower(q.SortDirection))
}

type SlotView struct {
	ID          int64
	SlotNumber  string
	VehicleType VehicleType
	FloorID     int64
	FloorName   string
}

type SlotPage struct {
	Content       []SlotView
	Page          int
	Size          int
	TotalElements int64
	TotalPages    int
}

// NewSlotPage fills in the page count for the given total.
func NewSlotPage(content []SlotView, page, size int, total int64) *SlotPage {
	if content == nil {
		content = []SlotView{}
	}
	pages := 0
	if size > 0 {
		pages = int((total + int64(size) - 1) / int64(size))
	}
	return &SlotPage{
		Content:       content,
		Page:          page,
		Size:          size,
		TotalElements: total,
		TotalPages:    pages,
	}
}
