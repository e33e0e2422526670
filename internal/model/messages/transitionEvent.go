package messages

import (
	"time"

	"github.com/LeonardoBeccarini/yard_tracker/internal/model/entities"
)

// TransitionEvent is emitted exactly when a yard moves to a new progress band.
type TransitionEvent struct {
	YardID        int           `json:"yard_id"`
	OldStatus     entities.Band `json:"old_status"`
	NewStatus     entities.Band `json:"new_status"`
	Timestamp     time.Time     `json:"timestamp"`
	MachineID     int           `json:"machine_id"`
	WorkTimeAdded float64       `json:"work_time_added"` // seconds
}
