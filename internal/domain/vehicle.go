package domain

import (
	"strings"

	"github.com/cockroachdb/errors"
)

type VehicleType string

const (
	VehicleTypeTwoWheeler  VehicleType = "TWO_WHEELER"
	VehicleTypeFourWheeler VehicleType = "FOUR_WHEELER"
)

var vehicleTypes = []VehicleType{VehicleTypeTwoWheeler, VehicleTypeFourWheeler}

// VehicleTypes returns the supported vehicle classes in declaration order.
func VehicleTypes() []VehicleType {
	return append([]VehicleType(nil), vehicleTypes...)
}

// ParseVehicleType accepts the exact upper-case class name.
func ParseVehicleType(s string) (VehicleType, error) {
	vt := VehicleType(s)
	if !vt.Valid() {
		return "", errors.Newf("unknown vehicle type %q", s)
	}
	return vt, nil
}

func (v VehicleType) Valid() bool {
	for _, known := range vehicleTypes {
		if v == known {
			return true
		}
	}
	return false
}

func (v VehicleType) String() string {
	return string(v)
}

// AllowedVehicleTypes renders the supported classes as "[A, B]".
func AllowedVehicleTypes() string {
	names := make([]string, 0, len(vehicleTypes))
	for _, vt := range vehicleTypes {
		names = append(names, string(vt))
	}
	return "[" + strings.Join(names, ", ") + "]"
}
