package messages

import (
	"time"

	"github.com/LeonardoBeccarini/yard_tracker/internal/model/entities"
)

// MachineSnapshot is the final (or current) view of one machine.
type MachineSnapshot struct {
	MachineID     int     `json:"machine_id"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	CurrentYardID int     `json:"current_yard_id,omitempty"`
	YardsWorked   int     `json:"yards_worked"`
}

// YardSummary is the per-yard progress summary handed to report writers.
type YardSummary struct {
	YardID               int           `json:"yard_id"`
	Area                 float64       `json:"area"`
	CleaningRate         float64       `json:"cleaning_rate"`
	CompletionPercentage float64       `json:"completion_percentage"`
	CleanedArea          float64       `json:"cleaned_area"`
	RemainingArea        float64       `json:"remaining_area"`
	TotalWorkTime        float64       `json:"total_work_time"`
	Status               entities.Band `json:"status"`
	Transitions          int           `json:"transitions"`
	EstimatedSeconds     float64       `json:"estimated_completion_seconds"`
}

// TransportStats are the cumulative counters of the transport simulator.
type TransportStats struct {
	Generated    int64   `json:"total_generated"`
	Delivered    int64   `json:"total_delivered"`
	Lost         int64   `json:"total_lost"`
	Delayed      int64   `json:"total_delayed"`
	Corrupted    int64   `json:"total_with_errors"`
	DeliveryRate float64 `json:"delivery_rate"` // percent of generated
	ErrorRate    float64 `json:"error_rate"`    // percent of delivered
}

// Snapshot is an immutable view of a run, safe to share between goroutines.
type Snapshot struct {
	RunID       string            `json:"run_id"`
	Yards       []YardSummary     `json:"yards"`
	Machines    []MachineSnapshot `json:"machines"`
	Processed   int               `json:"processed"`
	Failed      int               `json:"failed"`
	Transitions int               `json:"transitions"`
	Transport   *TransportStats   `json:"transport,omitempty"`
	Done        bool              `json:"done"`
	TakenAt     time.Time         `json:"taken_at"`
}
