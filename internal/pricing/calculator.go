package pricing

import (
	"time"

	"github.com/Domenick1991/parking/internal/domain"
)

// Rates maps a vehicle class to its hourly rate in currency units.
type Rates map[domain.VehicleType]int64

func DefaultRates() Rates {
	return Rates{
		domain.VehicleTypeTwoWheeler:  20,
		domain.VehicleTypeFourWheeler: 30,
	}
}

type Calculator struct {
	rates Rates
}

// NewCalculator starts from DefaultRates and applies overrides on top.
func NewCalculator(overrides Rates) *Calculator {
	rates := DefaultRates()
	for vt, rate := range overrides {
		rates[vt] = rate
	}
	return &Calculator{rates: rates}
}

// Cost bills whole minutes, rounding partial hours up.
func (c *Calculator) Cost(vt domain.VehicleType, start, end time.Time) int64 {
	minutes := int64(end.Sub(start) / time.Minute)
	hours := (minutes + 59) / 60
	return hours * c.rates[vt]
}

func (c *Calculator) HourlyRate(vt domain.VehicleType) (int64, bool) {
	rate, ok := c.rates[vt]
	return rate, ok
}
