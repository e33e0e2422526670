package entities

import (
	"fmt"
	"math"
	"time"
)

// Band is a quantized cleaning progress level of a yard.
type Band int

const (
	Band0   Band = 0
	Band20  Band = 20
	Band40  Band = 40
	Band60  Band = 60
	Band80  Band = 80
	Band100 Band = 100
)

// Bands lists every band in ascending order.
var Bands = [...]Band{Band0, Band20, Band40, Band60, Band80, Band100}

// BandFor maps a completion percentage (0..100) to its band.
// Boundaries are checked top-down so that the higher band wins a tie.
func BandFor(percentage float64) Band {
	switch {
	case percentage >= 100:
		return Band100
	case percentage >= 80:
		return Band80
	case percentage >= 60:
		return Band60
	case percentage >= 40:
		return Band40
	case percentage >= 20:
		return Band20
	default:
		return Band0
	}
}

// Next returns the band following b; ok is false for Band100.
func (b Band) Next() (next Band, ok bool) {
	for i, v := range Bands {
		if v == b && i < len(Bands)-1 {
			return Bands[i+1], true
		}
	}
	return b, false
}

// Valid reports whether b is one of the six known bands.
func (b Band) Valid() bool {
	for _, v := range Bands {
		if v == b {
			return true
		}
	}
	return false
}

func (b Band) String() string { return fmt.Sprintf("%d%%", int(b)) }

// Yard is a cleaning area from the yard directory together with its
// accrued progress. It is only mutated through CreditWork.
type Yard struct {
	ID           int     `json:"yard_id"`
	Area         float64 `json:"area"`          // m^2
	CleaningRate float64 `json:"cleaning_rate"` // m^2/s

	CleanedArea   float64 `json:"cleaned_area"`
	Status        Band    `json:"status"`
	TotalWorkTime float64 `json:"total_work_time"` // seconds
	StatusHistory []Band  `json:"status_history"`
}

// NewYard builds a yard with zero progress.
func NewYard(id int, area, cleaningRate float64) (*Yard, error) {
	if id <= 0 {
		return nil, fmt.Errorf("yard id must be positive, got %d", id)
	}
	if !(area > 0) || math.IsInf(area, 0) {
		return nil, fmt.Errorf("yard %d: area must be positive, got %v", id, area)
	}
	if !(cleaningRate > 0) || math.IsInf(cleaningRate, 0) {
		return nil, fmt.Errorf("yard %d: cleaning rate must be positive, got %v", id, cleaningRate)
	}
	return &Yard{
		ID:            id,
		Area:          area,
		CleaningRate:  cleaningRate,
		Status:        Band0,
		StatusHistory: []Band{Band0},
	}, nil
}

// CreditWork adds seconds of machine work to the yard. It returns the new
// band and true when the band changed, otherwise the current band and false.
// Non-positive or non-finite inputs are ignored.
func (y *Yard) CreditWork(seconds float64) (Band, bool) {
	if !(seconds > 0) || math.IsInf(seconds, 0) {
		return y.Status, false
	}

	y.TotalWorkTime += seconds
	y.CleanedArea += seconds * y.CleaningRate
	if y.CleanedArea > y.Area {
		y.CleanedArea = y.Area
	}

	band := BandFor(y.CompletionPercentage())
	if band == y.Status {
		return y.Status, false
	}
	y.Status = band
	y.StatusHistory = append(y.StatusHistory, band)
	return band, true
}

// CompletionPercentage is cleaned/area*100, capped at 100.
func (y *Yard) CompletionPercentage() float64 {
	if y.Area <= 0 {
		return 0
	}
	return math.Min(y.CleanedArea/y.Area*100, 100)
}

func (y *Yard) RemainingArea() float64 {
	return math.Max(0, y.Area-y.CleanedArea)
}

// EstimatedCompletion is the work time still needed at the yard's cleaning rate.
func (y *Yard) EstimatedCompletion() time.Duration {
	remaining := y.RemainingArea()
	if remaining <= 0 || y.CleaningRate <= 0 {
		return 0
	}
	return time.Duration(remaining / y.CleaningRate * float64(time.Second))
}

func (y *Yard) IsFullyCleaned() bool { return y.Status == Band100 }

// Transitions is the number of band changes observed so far.
func (y *Yard) Transitions() int { return len(y.StatusHistory) - 1 }

// Reset drops all accrued progress.
func (y *Yard) Reset() {
	y.CleanedArea = 0
	y.TotalWorkTime = 0
	y.Status = Band0
	y.StatusHistory = []Band{Band0}
}
