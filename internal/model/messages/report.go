package messages

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/LeonardoBeccarini/yard_tracker/internal/model/entities"
)

// ErrInvalidRecord is wrapped by every validation failure.
var ErrInvalidRecord = errors.New("invalid record")

var validate = validator.New()

// ValidationError lists the fields of a record that failed validation.
type ValidationError struct {
	Record string
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid fields: %s", e.Record, strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidRecord }

// Report is one telemetry message from a cleaning machine.
type Report struct {
	MachineID int       `json:"machine_id" validate:"required,gt=0"`
	Timestamp time.Time `json:"timestamp" validate:"required"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	YardID    int       `json:"yard_id,omitempty" validate:"omitempty,gt=0"` // 0: outside all yards
}

// NewReport returns a validated report or a *ValidationError.
func NewReport(machineID int, ts time.Time, x, y float64, yardID int) (Report, error) {
	r := Report{MachineID: machineID, Timestamp: ts, X: x, Y: y, YardID: yardID}
	if err := r.Validate(); err != nil {
		return Report{}, err
	}
	return r, nil
}

// Validate checks field constraints; coordinates must be finite.
func (r Report) Validate() error {
	fields := structErrors(validate.Struct(r))
	if !finite(r.X) {
		fields = append(fields, "X")
	}
	if !finite(r.Y) {
		fields = append(fields, "Y")
	}
	if len(fields) > 0 {
		return &ValidationError{Record: fmt.Sprintf("report(machine=%d)", r.MachineID), Fields: fields}
	}
	return nil
}

// Observation projects the report onto what the machine tracker consumes.
func (r Report) Observation() entities.PositionReport {
	return entities.PositionReport{
		Timestamp: r.Timestamp,
		Position:  entities.Position{X: r.X, Y: r.Y},
		YardID:    r.YardID,
	}
}

// YardRecord is one entry of the yard directory.
type YardRecord struct {
	YardID       int     `json:"yard_id" validate:"required,gt=0"`
	Area         float64 `json:"area" validate:"gt=0"`
	CleaningRate float64 `json:"cleaning_speed" validate:"gt=0"`
}

func NewYardRecord(yardID int, area, cleaningRate float64) (YardRecord, error) {
	rec := YardRecord{YardID: yardID, Area: area, CleaningRate: cleaningRate}
	fields := structErrors(validate.Struct(rec))
	if !finite(area) && !contains(fields, "Area") {
		fields = append(fields, "Area")
	}
	if !finite(cleaningRate) && !contains(fields, "CleaningRate") {
		fields = append(fields, "CleaningRate")
	}
	if len(fields) > 0 {
		return YardRecord{}, &ValidationError{Record: fmt.Sprintf("yard(%d)", yardID), Fields: fields}
	}
	return rec, nil
}

// Yard builds the domain entity for this record.
func (y YardRecord) Yard() (*entities.Yard, error) {
	return entities.NewYard(y.YardID, y.Area, y.CleaningRate)
}

func structErrors(err error) []string {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fe.Field())
	}
	return out
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
